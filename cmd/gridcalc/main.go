// Package main is the entry point for gridcalc, the formula engine server
// and command-line tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/store"
	"github.com/onlyadaydreamer/grid/pkg/workbook"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gridcalc",
	Short: "Spreadsheet formula engine",
	Long: `gridcalc evaluates spreadsheet formulas against YAML workbooks.
It can serve the engine over HTTP, gRPC and MCP, recalculate a workbook in
dependency order, or run an interactive formula prompt.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("workbook", "", "YAML workbook to load (env GRID_WORKBOOK)")

	rootCmd.AddCommand(serveCmd, evalCmd, depsCmd, recalcCmd, replCmd, mcpCmd)
}

func main() {
	versionStr := fmt.Sprintf("%s (commit=%s, built=%s)", version, commit, date)
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(versionStr)); err != nil {
		os.Exit(1)
	}
}

// defaultSheetSize is the size of the sheet created when no workbook is
// given.
var defaultSheetSize = struct{ rows, cols int }{1000, 26}

// loadStore opens the workbook named by --workbook or GRID_WORKBOOK, or
// returns a store holding one empty Sheet1.
func loadStore(cmd *cobra.Command) (*store.Store, string, error) {
	path := os.Getenv("GRID_WORKBOOK")
	if v, _ := cmd.Flags().GetString("workbook"); v != "" {
		path = v
	}

	if path == "" {
		s := store.New()
		if _, err := s.CreateSheet(calc.BasePosition.Sheet, defaultSheetSize.rows, defaultSheetSize.cols); err != nil {
			return nil, "", err
		}
		return s, "", nil
	}

	s, err := workbook.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
