package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/recalc"
	"github.com/onlyadaydreamer/grid/pkg/workbook"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate every formula in a workbook",
	Long: `recalc evaluates every formula cell of the workbook in dependency order,
prints each result and optionally writes the workbook back with the results
stored alongside the formulas.`,
	Example: `  gridcalc recalc --workbook budget.yaml
  gridcalc recalc --workbook budget.yaml --output budget.out.yaml`,
	RunE: runRecalc,
}

func init() {
	recalcCmd.Flags().StringP("output", "o", "", "Write the recalculated workbook to this file")
	recalcCmd.Flags().Bool("in-place", false, "Write the recalculated workbook back to --workbook")
	recalcCmd.Flags().Int("parallelism", 0, "Concurrent evaluations per level (default GOMAXPROCS)")
}

func runRecalc(cmd *cobra.Command, args []string) error {
	s, path, err := loadStore(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("recalc needs a workbook (--workbook or GRID_WORKBOOK)")
	}

	output, _ := cmd.Flags().GetString("output")
	if inPlace, _ := cmd.Flags().GetBool("in-place"); inPlace {
		output = path
	}

	r := recalc.New(calc.New(), s)
	if n, _ := cmd.Flags().GetInt("parallelism"); n > 0 {
		r.Parallelism = n
	}
	report, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Position, res.ResultType, display(res.ParseResults))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d cells in %d levels, %d errors, %d circular\n",
		report.Evaluated, report.Levels, report.Errors, len(report.Circular))

	if output == "" {
		return nil
	}
	out, err := workbook.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// display renders a result for a terminal.
func display(r calc.ParseResults) string {
	if r.ResultType == calc.ResultError {
		if r.ErrorMessage != "" {
			return fmt.Sprintf("%s: %s", r.Error, r.ErrorMessage)
		}
		return r.Error
	}
	return r.Value().String()
}
