// Package config loads .shtree.toml and .shtree.yaml files: parser limits,
// timeouts, logging and language server settings.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dhamidi/shtree/parse"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown config format")

// Names are the file names Find looks for, in order of preference.
var Names = []string{".shtree.toml", ".shtree.yaml", ".shtree.yml"}

// Config holds the complete configuration.
type Config struct {
	Parser ParserConfig `toml:"parser" yaml:"parser"`
	Log    LogConfig    `toml:"log" yaml:"log"`
	LSP    LSPConfig    `toml:"lsp" yaml:"lsp"`
}

// ParserConfig bounds the work of a single parse.
type ParserConfig struct {
	// MaxVersions is the number of stack versions kept while exploring
	// ambiguities.
	MaxVersions int `toml:"max_versions" yaml:"max_versions"`
	// Timeout cancels parses that run longer. Zero disables it.
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// LogConfig holds commonlog settings.
type LogConfig struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	Path      string `toml:"path" yaml:"path"`
}

// LSPConfig holds language server settings.
type LSPConfig struct {
	// MaxDiagnostics caps the diagnostics published per document.
	MaxDiagnostics int `toml:"max_diagnostics" yaml:"max_diagnostics"`
	// FoldComments folds runs of consecutive comment lines.
	FoldComments bool `toml:"fold_comments" yaml:"fold_comments"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			MaxVersions: parse.DefaultMaxVersions,
			Timeout:     Duration{10 * time.Second},
		},
		Log: LogConfig{Verbosity: 0},
		LSP: LSPConfig{MaxDiagnostics: 100, FoldComments: true},
	}
}

// Duration wraps time.Duration for text based formats.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML accepts the same strings as UnmarshalText.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string", value.Line)
	}
	if err := d.UnmarshalText([]byte(value.Value)); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// Load reads the file at path. The format follows the extension; values
// the file leaves out keep their defaults.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	default:
		err = fmt.Errorf("%s: %w", filepath.Base(path), ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Parser.MaxVersions < 1 {
		errs = append(errs, fmt.Errorf("parser.max_versions must be positive, got %d", c.Parser.MaxVersions))
	}
	if c.Parser.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("parser.timeout must not be negative, got %s", c.Parser.Timeout))
	}
	if c.LSP.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("lsp.max_diagnostics must not be negative, got %d", c.LSP.MaxDiagnostics))
	}
	return errors.Join(errs...)
}

// Find looks for a configuration file in dir and its parents and returns
// the first one found.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		for _, name := range Names {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Discover loads the file Find returns for dir, or the defaults when there
// is none.
func Discover(dir string) (*Config, error) {
	path, ok := Find(dir)
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Options returns the parser options the configuration implies.
func (c *Config) Options() []parse.Option {
	return []parse.Option{parse.WithMaxVersions(c.Parser.MaxVersions)}
}

// Context derives a context that enforces the parse timeout.
func (c *Config) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Parser.Timeout.Duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Parser.Timeout.Duration)
}
