package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/shtree/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout, stderr string
	err            error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), ".shtree.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[parser]\ntimeout = \"5s\"\n"), 0o644))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCmd(t *testing.T) {
	tests := []struct {
		name   string
		stdin  string
		args   []string
		stdout string
	}{
		{
			name:   "sexp from stdin",
			stdin:  "echo hello\n",
			args:   []string{"parse"},
			stdout: "(program (command name: (command_name (word)) argument: (word)))\n",
		},
		{
			name:   "explicit stdin",
			stdin:  "a=1\n",
			args:   []string{"parse", "-"},
			stdout: "(program (variable_assignment name: (variable_name) value: (number)))\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.stdin, tt.args...)
			require.NoError(t, res.err)
			assert.Equal(t, tt.stdout, res.stdout)
			assert.Empty(t, res.stderr)
		})
	}
}

func TestParseCmd_Formats(t *testing.T) {
	path := writeScript(t, "echo hi\n")

	res := run(t, "", "parse", "--format", "tree", path)
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "program [0:0 - 1:0]\n"))

	res = run(t, "", "parse", "-f", "json", path)
	require.NoError(t, res.err)
	var root map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &root))
	assert.Equal(t, "program", root["kind"])

	res = run(t, "", "parse", "-f", "xml", path)
	assert.ErrorContains(t, res.err, "unknown format: xml")
}

func TestParseCmd_Errors(t *testing.T) {
	path := writeScript(t, "if true; then\n")

	res := run(t, "", "parse", path)
	var serr *syntaxError
	require.ErrorAs(t, res.err, &serr)
	assert.Equal(t, "1 syntax error", serr.Error())
	assert.Contains(t, res.stderr, `missing "fi"`)
	assert.Contains(t, res.stderr, path+":")

	res = run(t, "", "parse", "--quiet", path)
	require.Error(t, res.err)
	assert.Empty(t, res.stderr)

	res = run(t, "", "parse", filepath.Join(t.TempDir(), "missing.sh"))
	assert.ErrorContains(t, res.err, "read script")
}

func TestTokensCmd(t *testing.T) {
	res := run(t, "ls -l\n", "tokens")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSuffix(res.stdout, "\n"), "\n")
	assert.Contains(t, lines, "word\t0-2\t1:1\t\"ls\"")
	assert.Contains(t, lines, "word\t3-5\t1:4\t\"-l\"")
}

func TestQueryCmd(t *testing.T) {
	path := writeScript(t, "rm -rf /tmp/a\necho ok\n")

	res := run(t, "", "query", `((command_name) @cmd (#eq? @cmd "rm"))`, path)
	require.NoError(t, res.err)
	assert.Equal(t, path+":1:1: @cmd \"rm\"\n", res.stdout)

	pattern := filepath.Join(t.TempDir(), "echo.scm")
	require.NoError(t, os.WriteFile(pattern, []byte(`(command argument: (word)+ @arg)`), 0o644))
	res = run(t, "", "query", "--file", pattern, path)
	require.NoError(t, res.err)
	assert.Equal(t, []string{
		path + ":1:4: @arg \"-rf\"",
		path + ":1:8: @arg \"/tmp/a\"",
		path + ":2:6: @arg \"ok\"",
	}, strings.Split(strings.TrimSuffix(res.stdout, "\n"), "\n"))

	res = run(t, "", "query", `(nope)`, path)
	assert.ErrorContains(t, res.err, `unknown node kind "nope"`)

	res = run(t, "", "query")
	assert.ErrorContains(t, res.err, "missing query pattern")
}

func TestGrammarCmd(t *testing.T) {
	res := run(t, "", "grammar", "check")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "states")

	res = run(t, "", "grammar", "ebnf")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Program")

	res = run(t, "", "grammar", "report")
	require.NoError(t, res.err)
	var report grammar.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, "bash", report.Grammar)
	assert.Positive(t, report.States)
}

func TestConfigErrors(t *testing.T) {
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.toml"), "grammar", "ebnf"})
	assert.ErrorContains(t, cmd.Execute(), "read config")
}
