package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/recalc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

const historyFile = ".gridcalc_history"

const replHelp = `Enter a formula to evaluate it at the current anchor. Commands:
  :anchor CELL        move the anchor, e.g. :anchor Sheet1!B2
  :set CELL TEXT      write raw text to a cell
  :get CELL           show a cell and its last result
  :deps FORMULA       list the references a formula reads
  :recalc             recalculate every formula cell
  :functions          list function names
  :quit               exit`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive formula prompt",
	RunE:  runRepl,
}

type repl struct {
	ctx    context.Context
	store  *store.Store
	calc   *calc.Calculator
	anchor sheet.CellPosition
	out    io.Writer
}

func runRepl(cmd *cobra.Command, args []string) error {
	s, _, err := loadStore(cmd)
	if err != nil {
		return err
	}
	r := &repl{
		ctx:    cmd.Context(),
		store:  s,
		calc:   calc.New(),
		anchor: calc.BasePosition,
		out:    cmd.OutOrStdout(),
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(r.out, "gridcalc "+version+" (:help for commands)")
	for {
		line, err := ln.Prompt(r.anchor.String() + "> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if r.exec(line) {
			return nil
		}
	}
}

// exec runs one line and reports whether the prompt should exit.
func (r *repl) exec(line string) bool {
	if !strings.HasPrefix(line, ":") {
		fmt.Fprintln(r.out, display(r.calc.Parse(line, r.anchor, r.store)))
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(command) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(r.out, replHelp)
	case ":anchor":
		pos, err := sheet.ParsePosition(rest, r.anchor.Sheet)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		r.anchor = pos
	case ":set":
		addr, text, _ := strings.Cut(rest, " ")
		pos, err := sheet.ParsePosition(addr, r.anchor.Sheet)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		snap := sheet.CellSnapshot{Text: text, DataType: sheet.InferDataType(text)}
		if err := r.store.SetCell(pos, snap); err != nil {
			fmt.Fprintln(r.out, err)
		}
	case ":get":
		pos, err := sheet.ParsePosition(rest, r.anchor.Sheet)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		snap, ok := r.store.Get(pos)
		if !ok {
			fmt.Fprintf(r.out, "%s is empty\n", pos)
			return false
		}
		fmt.Fprintf(r.out, "%s\t%s\t%s\n", pos, snap.Text, snap.Value())
	case ":deps":
		refs, err := r.calc.Dependencies(rest, r.anchor)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		for _, ref := range refs {
			fmt.Fprintln(r.out, ref)
		}
	case ":recalc":
		report, err := recalc.New(r.calc, r.store).Run(r.ctx)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		for _, res := range report.Results {
			fmt.Fprintf(r.out, "%s\t%s\n", res.Position, display(res.ParseResults))
		}
	case ":functions":
		fmt.Fprintln(r.out, strings.Join(r.calc.Functions(), " "))
	default:
		fmt.Fprintln(r.out, "unknown command. Type :help for commands.")
	}
	return false
}
