// cmd/planner/geocode.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"home-planner/internal/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Look up location suggestions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		suggestions, err := geocode.NewClient(cfg.Geocode).Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no matches")
			return nil
		}
		for _, s := range suggestions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f,%.4f\t%s\n", s.Label(), s.Lat, s.Lng, s.DisplayName)
		}
		return nil
	},
}
