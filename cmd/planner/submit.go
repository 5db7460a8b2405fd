// cmd/planner/submit.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"home-planner/internal/common/observability"
	"home-planner/internal/models"
	"home-planner/internal/phases/report"
)

var submitFormat string

var submitCmd = &cobra.Command{
	Use:   "submit <form.json|->",
	Short: "Submit a home form and print the resulting plan",
	Long: `Submit a home form to the planning backend. The result is persisted like a
wizard submission, so a later "planner serve" starts with real data.

Examples:
  planner submit form.json
  cat form.json | planner submit - --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitFormat, "format", "markdown", "output format: markdown or json")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if submitFormat != "markdown" && submitFormat != "json" {
		return fmt.Errorf("unknown format %q", submitFormat)
	}

	form, err := readForm(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, observability.NewNoop())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.wizard.Submit(ctx, form)
	if err != nil {
		return err
	}

	submitted, _ := a.wizard.Form()
	rep := report.Build(report.Input{Form: &submitted, Result: *result, Now: time.Now()})
	return writeReport(cmd.OutOrStdout(), rep, submitFormat)
}

// readForm decodes a FormInput from path, or from stdin when path is "-".
func readForm(stdin io.Reader, path string) (models.FormInput, error) {
	var form models.FormInput

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return form, fmt.Errorf("open form: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&form); err != nil {
		return form, fmt.Errorf("decode form: %w", err)
	}
	return form, nil
}

func writeReport(w io.Writer, rep report.Report, format string) error {
	if format == "json" {
		raw, err := rep.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	_, err := io.WriteString(w, rep.Markdown())
	return err
}
