package main

import (
	"fmt"
	"strconv"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/query"
	"github.com/spf13/cobra"
)

func newQueryCmd(g *globals) *cobra.Command {
	var patternFile string

	cmd := &cobra.Command{
		Use:   "query <pattern> [file...]",
		Short: "Print the nodes captured by a query pattern",
		Long: "Print the nodes captured by a query pattern, one per line as\n" +
			"file:line:column: @capture text. With --file the pattern is read from a\n" +
			"file and every argument names a script.",
		Example: `  shtree query '(command name: (command_name) @cmd (#eq? @cmd "rm"))' deploy.sh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			switch {
			case patternFile != "":
				data, err := readInput(cmd, patternFile)
				if err != nil {
					return err
				}
				source = string(data)
			case len(args) > 0:
				source, args = args[0], args[1:]
			default:
				return fmt.Errorf("missing query pattern")
			}

			q, err := query.Compile(bash.Language(), source)
			if err != nil {
				return err
			}

			parser := bash.NewParser(g.cfg.Options()...)
			out := cmd.OutOrStdout()
			for _, name := range inputs(args) {
				tree, err := parseFile(cmd, g, parser, name)
				if err != nil {
					return err
				}
				for capture, n := range q.Captures(tree) {
					p := n.Position()
					fmt.Fprintf(out, "%s:%d:%d: @%s %s\n", displayName(name), p.Line+1, p.Column+1, capture, strconv.Quote(n.Text()))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&patternFile, "file", "", "read the query from a file")

	return cmd
}
