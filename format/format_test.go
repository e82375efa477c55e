package format

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/parse"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFilter = flag.String("filter", "", "filter testdata scripts by substring match on filename")

func parseScript(t *testing.T, src string) *parse.Tree {
	t.Helper()
	tree, err := bash.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tree
}

func TestSexpEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSexpEncoder(&buf)
	require.NoError(t, enc.Encode(parseScript(t, "echo hello\n")))
	assert.Equal(t, "(program (command name: (command_name (word)) argument: (word)))\n", buf.String())

	_, err := NewSexpEncoder(&buf).MarshalText()
	assert.ErrorIs(t, err, errNoTree)
}

func TestTreeEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTreeEncoder(&buf).Encode(parseScript(t, "echo hi\n")))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "program [0:0 - 1:0]\n"))
	assert.Contains(t, out, "    name: command_name [0:0 - 0:4]\n")
	assert.Contains(t, out, "      word [0:0 - 0:4]\n")
	assert.Contains(t, out, "    argument: word [0:5 - 0:7]\n")
	assert.NotContains(t, out, `"\n"`)

	buf.Reset()
	enc := NewTreeEncoder(&buf)
	enc.Anonymous = true
	require.NoError(t, enc.Encode(parseScript(t, "echo hi\n")))
	assert.Contains(t, buf.String(), `  "\n" [0:7 - 1:0]`)
}

func TestJSONEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONEncoder(&buf).Encode(parseScript(t, "a=1\n")))

	var root jsonNode
	require.NoError(t, json.Unmarshal(buf.Bytes(), &root))
	assert.Equal(t, "program", root.Kind)
	assert.Equal(t, 4, root.Span.EndByte)
	require.NotEmpty(t, root.Children)

	assign := root.Children[0]
	assert.Equal(t, "variable_assignment", assign.Kind)
	require.Len(t, assign.Children, 3)
	assert.Equal(t, "name", assign.Children[0].Field)
	assert.Equal(t, "a", assign.Children[0].Text)
	assert.Equal(t, "=", assign.Children[1].Kind)
	assert.False(t, assign.Children[1].Named)
	assert.Equal(t, "value", assign.Children[2].Field)
	assert.Equal(t, "1", assign.Children[2].Text)
}

func TestJSONEncoder_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONEncoder(&buf).Encode(parseScript(t, "if true; then\n")))
	assert.Contains(t, buf.String(), `"missing": "fi"`)
}

func TestLineEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLineEncoder(&buf).Encode(parseScript(t, "ls -l # list\n")))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Contains(t, lines, "word\t0-2\t1:1\t\"ls\"")
	assert.Contains(t, lines, "word\t3-5\t1:4\t\"-l\"")
	assert.Contains(t, lines, "comment\t6-12\t1:7\t\"# list\"")
	assert.Contains(t, lines, "trivia\t2-3\t1:3\t\" \"")
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		enc, ok := New(name, &bytes.Buffer{})
		assert.True(t, ok, name)
		assert.NotNil(t, enc)
	}
	_, ok := New("xml", &bytes.Buffer{})
	assert.False(t, ok)
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		missing string
	}{
		{"missing keyword", "if true; then\n", `missing "fi"`, "fi"},
		{"stray token", "echo a\n)\n", `unexpected ")`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := Diagnose(parseScript(t, tt.src))
			require.NotEmpty(t, diags)
			assert.True(t, strings.HasPrefix(diags[0].Message, tt.message), diags[0].Message)
			assert.Equal(t, tt.missing, diags[0].Missing)
		})
	}
	assert.Empty(t, Diagnose(parseScript(t, "echo ok\n")))
}

func TestReporter(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	d := Diagnostic{
		Message: `unexpected ")"`,
		Start:   parse.Point{Line: 1, Column: 2},
		End:     parse.Point{Line: 1, Column: 3},
	}
	out := NewReporter("run.sh", []byte("echo a\nx )\n")).Format(d)
	assert.Equal(t, strings.Join([]string{
		`error: unexpected ")"`,
		"  --> run.sh:2:3",
		"  |",
		"2 | x )",
		"  |   ^",
		"",
		"",
	}, "\n"), out)

	var buf bytes.Buffer
	require.NoError(t, NewReporter("run.sh", nil).Write(&buf, []Diagnostic{d}))
	assert.Equal(t, "error: unexpected \")\"\n  --> run.sh:2:3\n\n", buf.String())
}

// TestRoundTrip checks that the tokens of every script under testdata
// reproduce the script byte for byte.
func TestRoundTrip(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.sh"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		if *testFilter != "" && !strings.Contains(filepath.Base(file), *testFilter) {
			continue
		}
		t.Run(filepath.Base(file), func(t *testing.T) {
			src, err := os.ReadFile(file)
			require.NoError(t, err)
			tree := parseScript(t, string(src))

			var buf bytes.Buffer
			require.NoError(t, NewLineEncoder(&buf).Encode(tree))
			var rebuilt strings.Builder
			for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
				fields := strings.Split(line, "\t")
				require.Len(t, fields, 4, line)
				text, err := strconv.Unquote(fields[3])
				require.NoError(t, err)
				rebuilt.WriteString(text)
			}
			assert.Equal(t, string(src), rebuilt.String())
		})
	}
}
