package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/grammar"
	"github.com/spf13/cobra"
)

func newGrammarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect the compiled shell grammar",
	}

	cmd.AddCommand(newGrammarCheckCmd())
	cmd.AddCommand(newGrammarEbnfCmd())
	cmd.AddCommand(newGrammarReportCmd())

	return cmd
}

func newGrammarCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the flattened grammar and list unresolved conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := bash.Language().Tables
			out := cmd.OutOrStdout()

			if err := grammar.Verify(tables); err != nil {
				printErrors(cmd.ErrOrStderr(), err)
				return fmt.Errorf("grammar %s does not verify", tables.Name)
			}

			report := tables.Report()
			unresolved := report.Unresolved()
			undeclared := report.Undeclared()
			fmt.Fprintf(out, "%s: %d states, %d lex modes, %d conflicts left to the parser\n",
				tables.Name, report.States, report.LexModes, len(unresolved))
			for _, c := range undeclared {
				fmt.Fprintf(out, "undeclared conflict in state %d on %s: %s\n",
					c.State, c.Lookahead, strings.Join(c.Rules, ", "))
			}
			if strict && len(undeclared) > 0 {
				return fmt.Errorf("%d undeclared conflicts", len(undeclared))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on conflicts the grammar does not declare")

	return cmd
}

func newGrammarEbnfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ebnf",
		Short: "Print the flattened grammar as EBNF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), bash.Language().Tables.EBNF())
			return err
		},
	}
}

func newGrammarReportCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the conflict report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := bash.Language().Tables
			report := tables.Report()
			if detailed {
				report = tables.Detailed()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "include terminals and productions")

	return cmd
}

// printErrors prints each element of an error list on its own line. The
// list may be wrapped.
func printErrors(w io.Writer, err error) {
	for inner := err; inner != nil; inner = errors.Unwrap(inner) {
		v := reflect.ValueOf(inner)
		if v.Kind() != reflect.Slice {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, v.Index(i).Interface())
		}
		return
	}
	fmt.Fprintln(w, err)
}
