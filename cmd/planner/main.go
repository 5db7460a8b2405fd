// cmd/planner/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Home furnishing planner backend",
	Long: `planner runs the furnishing-plan wizard backend and offers one-shot
commands against the same configuration.

Examples:
  # Serve the wizard API
  planner serve

  # Submit a form from a file and print the report
  planner submit form.json --format markdown

  # Look up a location
  planner geocode "Cairo"`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to ./configs/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(geocodeCmd)
}
