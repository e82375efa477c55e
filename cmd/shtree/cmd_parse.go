package main

import (
	"fmt"
	"strings"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/format"
	"github.com/dhamidi/shtree/parse"
	"github.com/spf13/cobra"
)

// syntaxError reports the number of error nodes found in the inputs.
type syntaxError struct {
	count int
}

func (e *syntaxError) Error() string {
	if e.count == 1 {
		return "1 syntax error"
	}
	return fmt.Sprintf("%d syntax errors", e.count)
}

func newParseCmd(g *globals) *cobra.Command {
	var outputFormat string
	var anonymous bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse shell scripts and print their syntax trees",
		Long: "Parse shell scripts and print their syntax trees. Without files, or for\n" +
			"\"-\", the script is read from standard input. Error nodes are reported on\n" +
			"standard error and make the command fail.",
		RunE: func(cmd *cobra.Command, args []string) error {
			encoder, ok := format.New(outputFormat, cmd.OutOrStdout())
			if !ok {
				return fmt.Errorf("unknown format: %s (expected %s)", outputFormat, strings.Join(format.Names(), ", "))
			}
			if te, ok := encoder.(*format.TreeEncoder); ok {
				te.Anonymous = anonymous
			}

			parser := bash.NewParser(g.cfg.Options()...)
			errors := 0
			for _, name := range inputs(args) {
				tree, err := parseFile(cmd, g, parser, name)
				if err != nil {
					return err
				}
				if err := encoder.Encode(tree); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
				diags := format.Diagnose(tree)
				errors += len(diags)
				if !quiet {
					r := format.NewReporter(displayName(name), tree.Source())
					if err := r.Write(cmd.ErrOrStderr(), diags); err != nil {
						return err
					}
				}
			}
			if errors > 0 {
				return &syntaxError{count: errors}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "sexp", "output format ("+strings.Join(format.Names(), ", ")+")")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "include anonymous tokens in tree output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print diagnostics")

	return cmd
}

func parseFile(cmd *cobra.Command, g *globals, parser *parse.Parser, name string) (*parse.Tree, error) {
	src, err := readInput(cmd, name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.cfg.Context(cmd.Context())
	defer cancel()
	tree, err := parser.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", displayName(name), err)
	}
	return tree, nil
}

func displayName(name string) string {
	if name == "-" {
		return "<stdin>"
	}
	return name
}
