package query

import (
	"context"
	"testing"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseScript(t *testing.T, src string) *parse.Tree {
	t.Helper()
	tree, err := bash.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tree
}

func captureTexts(q *Query, tree *parse.Tree) []string {
	var out []string
	for name, n := range q.Captures(tree) {
		out = append(out, name+"="+n.Text())
	}
	return out
}

func TestQuery_Captures(t *testing.T) {
	script := "greet() { echo hi; }\nx=1\necho \"$x\" | wc -l\nrm -rf /tmp/a\n"
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "function names",
			query: `(function_definition name: (word) @name)`,
			want:  []string{"name=greet"},
		},
		{
			name:  "command names",
			query: `(command name: (command_name) @cmd)`,
			want:  []string{"cmd=echo", "cmd=echo", "cmd=wc", "cmd=rm"},
		},
		{
			name:  "eq predicate",
			query: `((command name: (command_name) @cmd argument: (word) @arg) (#eq? @cmd "rm"))`,
			want:  []string{"cmd=rm", "arg=-rf"},
		},
		{
			name:  "any-of predicate",
			query: `((command_name) @cmd (#any-of? @cmd "wc" "rm"))`,
			want:  []string{"cmd=wc", "cmd=rm"},
		},
		{
			name:  "match predicate",
			query: `((word) @w (#match? @w "^/tmp/"))`,
			want:  []string{"w=/tmp/a"},
		},
		{
			name:  "not-eq predicate",
			query: `((command_name) @cmd (#not-eq? @cmd "echo"))`,
			want:  []string{"cmd=wc", "cmd=rm"},
		},
		{
			name:  "repeated children",
			query: `(command name: (command_name) @cmd (#eq? @cmd "rm") argument: (_)+ @args)`,
			want:  []string{"cmd=rm", "args=-rf", "args=/tmp/a"},
		},
		{
			name:  "optional child",
			query: `(command name: (command_name) @cmd argument: (string)? @quoted)`,
			want:  []string{"cmd=echo", "cmd=echo", "quoted=\"$x\"", "cmd=wc", "cmd=rm"},
		},
		{
			name:  "supertype",
			query: `(pipeline (_statement) @stage)`,
			want:  []string{"stage=echo \"$x\""},
		},
		{
			name:  "alternatives",
			query: `[(variable_assignment) (function_definition)] @def`,
			want:  []string{"def=greet() { echo hi; }", "def=x=1"},
		},
		{
			name:  "anonymous token",
			query: `(pipeline "|" @pipe)`,
			want:  []string{"pipe=|"},
		},
		{
			name:  "field capture",
			query: `(variable_assignment value: _ @v)`,
			want:  []string{"v=1"},
		},
	}
	tree := parseScript(t, script)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compile(bash.Language(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, captureTexts(q, tree))
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	q := MustCompile(bash.Language(), `
; every command and every assignment
(command) @cmd
(variable_assignment name: (variable_name) @name)
`)
	assert.Equal(t, 2, q.PatternCount())
	assert.Equal(t, []string{"cmd", "name"}, q.CaptureNames())

	tree := parseScript(t, "a=1\nls\n")
	var patterns []int
	for m := range q.Matches(tree) {
		patterns = append(patterns, m.Pattern)
		if m.Pattern == 1 {
			n, ok := m.Node("name")
			require.True(t, ok)
			assert.Equal(t, "a", n.Text())
			assert.Len(t, m.Nodes("name"), 1)
		}
	}
	assert.Equal(t, []int{1, 0}, patterns)
}

func TestQuery_StopsEarly(t *testing.T) {
	q := MustCompile(bash.Language(), `(command) @c`)
	tree := parseScript(t, "a\nb\nc\n")
	var seen int
	for range q.Captures(tree) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestQuery_Errors(t *testing.T) {
	q := MustCompile(bash.Language(), `(ERROR) @err`)
	tree := parseScript(t, "echo a\n)\n")
	var errs int
	for range q.Matches(tree) {
		errs++
	}
	assert.NotZero(t, errs)

	q = MustCompile(bash.Language(), `(ERROR) @err`)
	assert.Empty(t, captureTexts(q, parseScript(t, "if true; then\n")), "missing tokens are not error nodes")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"syntax", `(command`, ""},
		{"unknown kind", `(no_such_node)`, `unknown node kind "no_such_node"`},
		{"unknown field", `(command nope: (word))`, `unknown field "nope"`},
		{"unknown token", `(command "nope")`, `unknown token "nope"`},
		{"unknown predicate", `((word) @w (#lol? @w "x"))`, "unknown predicate #lol?"},
		{"unknown capture", `((word) @w (#eq? @v "x"))`, "unknown capture @v"},
		{"bad regexp", `((word) @w (#match? @w "("))`, "#match?"},
		{"eq arity", `((word) @w (#eq? @w))`, "takes two arguments"},
		{"group of two", `((word) (number))`, "exactly one pattern"},
		{"top-level quantifier", `(word)*`, "no field or quantifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(bash.Language(), tt.query)
			require.Error(t, err)
			var qerr *Error
			require.ErrorAs(t, err, &qerr)
			assert.Contains(t, qerr.Error(), tt.message)
			assert.Positive(t, qerr.Line)
		})
	}
}
