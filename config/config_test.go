package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    func(*Config)
	}{
		{
			name: "toml",
			file: ".shtree.toml",
			content: `
[parser]
max_versions = 4
timeout = "250ms"

[log]
verbosity = 2

[lsp]
fold_comments = false
`,
			want: func(c *Config) {
				c.Parser.MaxVersions = 4
				c.Parser.Timeout = Duration{250 * time.Millisecond}
				c.Log.Verbosity = 2
				c.LSP.FoldComments = false
			},
		},
		{
			name: "yaml",
			file: ".shtree.yaml",
			content: `
parser:
  timeout: 2s
lsp:
  max_diagnostics: 5
`,
			want: func(c *Config) {
				c.Parser.Timeout = Duration{2 * time.Second}
				c.LSP.MaxDiagnostics = 5
			},
		},
		{
			name:    "empty yaml",
			file:    "cfg.yml",
			content: "",
			want:    func(*Config) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			got, err := Load(path)
			require.NoError(t, err)
			want := Default()
			tt.want(want)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		message string
	}{
		{"unknown toml key", "a.toml", "[parser]\nmax_version = 3\n", "parser.max_version"},
		{"unknown yaml key", "a.yaml", "parser:\n  max_version: 3\n", "max_version"},
		{"bad duration", "a.toml", "[parser]\ntimeout = \"soon\"\n", "soon"},
		{"bad yaml duration", "a.yaml", "parser:\n  timeout: [1]\n", "duration must be a string"},
		{"invalid value", "a.toml", "[parser]\nmax_versions = 0\n", "max_versions must be positive"},
		{"unknown format", "a.json", "{}", "unknown config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	_, ok := Find(nested)
	assert.False(t, ok)

	want := writeFile(t, root, ".shtree.yaml", "log:\n  verbosity: 1\n")
	got, ok := Find(nested)
	require.True(t, ok)
	assert.Equal(t, want, got)

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Log.Verbosity)

	want = writeFile(t, filepath.Join(root, "a"), ".shtree.toml", "")
	got, ok = Find(nested)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestConfig_Context(t *testing.T) {
	cfg := Default()
	cfg.Parser.Timeout = Duration{time.Hour}
	ctx, cancel := cfg.Context(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	cfg.Parser.Timeout = Duration{}
	ctx, cancel = cfg.Context(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)

	assert.Len(t, cfg.Options(), 1)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
