package bash

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/shtree/grammar"
	"github.com/dhamidi/shtree/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type corpusCase struct {
	Name     string `yaml:"name"`
	Input    string `yaml:"input"`
	Expected string `yaml:"expected"`
}

func loadCorpus(t *testing.T) map[string][]corpusCase {
	t.Helper()
	files, err := filepath.Glob(filepath.Join("testdata", "corpus", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	corpus := make(map[string][]corpusCase)
	for _, file := range files {
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		var cases []corpusCase
		require.NoError(t, yaml.Unmarshal(data, &cases), file)
		corpus[strings.TrimSuffix(filepath.Base(file), ".yaml")] = cases
	}
	return corpus
}

func leafText(tree *parse.Tree) string {
	var b strings.Builder
	for leaf := range tree.Leaves() {
		b.WriteString(leaf.Text())
	}
	return b.String()
}

func normalize(s string) string { return strings.Join(strings.Fields(s), " ") }

func mustParse(t *testing.T, src string) *parse.Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tree
}

func TestGrammar_Compiles(t *testing.T) {
	g := Grammar()
	tables, err := grammar.Compile(g)
	require.NoError(t, err)
	assert.Equal(t, "bash", tables.Name)
	require.NoError(t, grammar.Verify(tables))

	_, err = NewScanner(tables)
	require.NoError(t, err)
}

func TestCorpus(t *testing.T) {
	for file, cases := range loadCorpus(t) {
		t.Run(file, func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.Name, func(t *testing.T) {
					tree := mustParse(t, tc.Input)
					assert.Equal(t, normalize(tc.Expected), tree.Root().String())
					assert.Zero(t, tree.ErrorCount())
					assert.Equal(t, tc.Input, leafText(tree))
				})
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	src := "for f in *.go; do\n  gofmt -l \"$f\" >> out.txt\ndone\n"
	first := mustParse(t, src)
	second := mustParse(t, src)
	assert.Equal(t, first.Root().String(), second.Root().String())
	assert.Equal(t, src, leafText(first))
}

func TestParse_ErrorLocality(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		missing string
	}{
		{"unterminated if", "if true; then\n", "fi"},
		{"unterminated loop", "while true; do echo a\n", "done"},
		{"unterminated group", "{ echo a;\n", "}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			assert.True(t, tree.Root().HasError())
			assert.Equal(t, 1, tree.ErrorCount())
			assert.Contains(t, tree.Root().String(), `(MISSING "`+tt.missing+`")`)
			assert.Equal(t, tt.src, leafText(tree))
		})
	}
}

func TestParse_ErrorKeepsNeighbours(t *testing.T) {
	tree := mustParse(t, "echo a\n)\necho b\n")
	require.NotZero(t, tree.ErrorCount())
	var commands int
	for n := range tree.Nodes() {
		if n.Kind() == "command" {
			commands++
		}
	}
	assert.Equal(t, 2, commands)
}

func TestReparse_InsideString(t *testing.T) {
	p := NewParser()
	ctx := context.Background()
	src := []byte("echo one\necho \"a $x b\"\necho three\n")
	old, err := p.Parse(ctx, src)
	require.NoError(t, err)

	at := strings.Index(string(src), "b\"")
	next, edit, err := parse.Apply(src, at, at+1, "${y} c")
	require.NoError(t, err)
	assert.Equal(t, "echo one\necho \"a $x ${y} c\"\necho three\n", string(next))

	tree, err := p.Reparse(ctx, old, edit, next)
	require.NoError(t, err)
	fresh, err := p.Parse(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, fresh.Root().String(), tree.Root().String())
	assert.Equal(t, string(next), leafText(tree))

	lo := strings.Index(string(src), `"a`)
	hi := at + 2
	delta := len(next) - len(src)
	before := spansOutside(old, lo, hi, 0)
	after := spansOutside(tree, lo, hi+delta, delta)
	assert.NotEmpty(t, before)
	assert.Equal(t, before, after, "nodes outside the edited string are unchanged")
}

type span struct {
	kind       string
	start, end int
}

// spansOutside lists the nodes that end before lo or start at or after hi,
// moving the latter back by shift.
func spansOutside(tree *parse.Tree, lo, hi, shift int) []span {
	var out []span
	for n := range tree.Nodes() {
		switch {
		case n.EndByte() <= lo:
			out = append(out, span{n.Kind(), n.StartByte(), n.EndByte()})
		case n.StartByte() >= hi:
			out = append(out, span{n.Kind(), n.StartByte() - shift, n.EndByte() - shift})
		}
	}
	return out
}

func TestParse_NestedSubstitutionRanges(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		outer string
		inner string
	}{
		{"dollar paren", "echo $(echo $(echo x))\n", "$(echo $(echo x))", "$(echo x)"},
		{"inside string", "echo \"$(echo \"$(ls)\")\"\n", `$(echo "$(ls)")`, "$(ls)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			require.Zero(t, tree.ErrorCount())
			var subs []parse.Node
			for n := range tree.Nodes() {
				if n.Kind() == "command_substitution" {
					subs = append(subs, n)
				}
			}
			require.Len(t, subs, 2)
			outer, inner := subs[0], subs[1]
			assert.Equal(t, tt.outer, outer.Text())
			assert.Equal(t, tt.inner, inner.Text())
			assert.Equal(t, strings.Index(tt.src, tt.outer), outer.StartByte())
			assert.Less(t, outer.StartByte(), inner.StartByte())
			assert.Less(t, inner.EndByte(), outer.EndByte())
			assert.True(t, inner.Equal(outer.DescendantForRange(inner.StartByte(), inner.EndByte())))
		})
	}
}

func TestReparse_OpensQuote(t *testing.T) {
	p := NewParser()
	ctx := context.Background()
	src := []byte("echo a\necho b\n")
	old, err := p.Parse(ctx, src)
	require.NoError(t, err)

	next, edit, err := parse.Apply(src, 5, 5, `"`)
	require.NoError(t, err)
	tree, err := p.Reparse(ctx, old, edit, next)
	require.NoError(t, err)
	fresh, err := p.Parse(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, fresh.Root().String(), tree.Root().String())
	assert.Equal(t, string(next), leafText(tree))
}

func TestHeredocText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain", "cat <<EOF\nhello\n  world\nEOF\n", "hello\n  world\n"},
		{"indented", "cat <<-EOF\n\thello\n\t\tworld\n\tEOF\n", "hello\nworld\n"},
		{"raw", "cat <<'END'\n$x\nEND\n", "$x\n"},
		{"first of two on a line", "cat <<A <<B\na\nA\nb\nB\n", "a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			assert.Equal(t, tt.src, leafText(tree))
			var found bool
			for n := range tree.Nodes() {
				if n.Kind() == "heredoc_redirect" {
					assert.Equal(t, tt.want, HeredocText(n))
					found = true
					break
				}
			}
			assert.True(t, found)
		})
	}

	tree := mustParse(t, "echo a\n")
	assert.Empty(t, HeredocText(tree.Root()))
}

func TestParse_Positions(t *testing.T) {
	tree := mustParse(t, "echo a\nls -l\n")
	cmds := tree.Root().NamedChildren()
	require.Len(t, cmds, 2)
	assert.Equal(t, parse.Point{Line: 1, Column: 0}, cmds[1].Position())
	assert.Equal(t, "ls -l", cmds[1].Text())
}
