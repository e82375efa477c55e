package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dhamidi/shtree/config"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

// globals holds the persistent flags and the configuration they select.
type globals struct {
	configPath string
	verbosity  int
	logPath    string
	cfg        *config.Config
}

func (g *globals) load(cmd *cobra.Command) error {
	var err error
	if g.configPath != "" {
		g.cfg, err = config.Load(g.configPath)
	} else {
		g.cfg, err = config.Discover(".")
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		g.cfg.Log.Verbosity = g.verbosity
	}
	if g.logPath != "" {
		g.cfg.Log.Path = g.logPath
	}
	var path *string
	if g.cfg.Log.Path != "" {
		path = &g.cfg.Log.Path
	}
	commonlog.Configure(g.cfg.Log.Verbosity, path)
	return nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "shtree",
		Short:         "Concrete syntax trees for shell scripts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "configuration file (default: nearest .shtree.toml or .shtree.yaml)")
	rootCmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "log verbosity, repeat for more")
	rootCmd.PersistentFlags().StringVar(&g.logPath, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newParseCmd(g))
	rootCmd.AddCommand(newTokensCmd(g))
	rootCmd.AddCommand(newQueryCmd(g))
	rootCmd.AddCommand(newGrammarCmd())
	rootCmd.AddCommand(newLSPCmd(g))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readInput reads the named file, or standard input for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return data, nil
}

func inputs(args []string) []string {
	if len(args) == 0 {
		return []string{"-"}
	}
	return args
}
