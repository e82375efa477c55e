package main

import (
	"fmt"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/format"
	"github.com/spf13/cobra"
)

func newTokensCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file...]",
		Short: "Print the tokens, comments and whitespace of shell scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := bash.NewParser(g.cfg.Options()...)
			enc := format.NewLineEncoder(cmd.OutOrStdout())
			for _, name := range inputs(args) {
				tree, err := parseFile(cmd, g, parser, name)
				if err != nil {
					return err
				}
				if len(args) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n", name)
				}
				if err := enc.Encode(tree); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			}
			return nil
		},
	}
}
