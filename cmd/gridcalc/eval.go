package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	grpcapi "github.com/onlyadaydreamer/grid/pkg/api/grpc"
	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
)

var evalCmd = &cobra.Command{
	Use:   "eval FORMULA",
	Short: "Evaluate a formula and print its result as JSON",
	Example: `  gridcalc eval '=SUM(1,2,3)'
  gridcalc eval --workbook budget.yaml --anchor Budget!C4 '=A4*2'
  gridcalc eval --server localhost:8791 '=TODAY()'`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var depsCmd = &cobra.Command{
	Use:   "deps FORMULA",
	Short: "List the cells and ranges a formula reads",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func init() {
	for _, cmd := range []*cobra.Command{evalCmd, depsCmd} {
		cmd.Flags().String("anchor", "", "Cell the formula sits in (default Sheet1!A1)")
		cmd.Flags().String("server", "", "Evaluate on a running gridcalc gRPC server instead of locally")
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	anchorText, _ := cmd.Flags().GetString("anchor")

	if client, closeConn, err := remoteClient(cmd); err != nil {
		return err
	} else if client != nil {
		defer closeConn()
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		out, err := client.Evaluate(ctx, args[0], anchorText)
		if err != nil {
			return err
		}
		b, err := protojson.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}

	anchor, err := parseAnchor(anchorText)
	if err != nil {
		return err
	}
	s, _, err := loadStore(cmd)
	if err != nil {
		return err
	}

	res := calc.New().Parse(args[0], anchor, s)
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func runDeps(cmd *cobra.Command, args []string) error {
	anchorText, _ := cmd.Flags().GetString("anchor")

	var deps []string
	if client, closeConn, err := remoteClient(cmd); err != nil {
		return err
	} else if client != nil {
		defer closeConn()
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if deps, err = client.Dependencies(ctx, args[0], anchorText); err != nil {
			return err
		}
	} else {
		anchor, err := parseAnchor(anchorText)
		if err != nil {
			return err
		}
		refs, err := calc.New().Dependencies(args[0], anchor)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			deps = append(deps, ref.String())
		}
	}

	for _, d := range deps {
		fmt.Fprintln(cmd.OutOrStdout(), d)
	}
	return nil
}

func parseAnchor(text string) (sheet.CellPosition, error) {
	if text == "" {
		return calc.BasePosition, nil
	}
	anchor, err := sheet.ParsePosition(text, calc.BasePosition.Sheet)
	if err != nil {
		return sheet.CellPosition{}, fmt.Errorf("invalid --anchor: %w", err)
	}
	return anchor, nil
}

// remoteClient dials --server when it is set. It returns a nil client
// otherwise.
func remoteClient(cmd *cobra.Command) (*grpcapi.Client, func(), error) {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		return nil, nil, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return grpcapi.NewClient(conn), func() { conn.Close() }, nil
}
