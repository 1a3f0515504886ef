package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve formula tools over the Model Context Protocol (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, path, err := loadStore(cmd)
		if err != nil {
			return err
		}
		// stdout carries the protocol.
		log.SetOutput(cmd.ErrOrStderr())
		if path != "" {
			log.Printf("Loaded workbook %s", path)
		}
		return mcp.New(s, calc.New(calc.WithCells(s)), version).Run()
	},
}
