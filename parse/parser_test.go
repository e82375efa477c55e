package parse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dhamidi/shtree/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprGrammar() *grammar.Grammar {
	binary := func(prec int, op string) grammar.Rule {
		return grammar.PrecLeft(prec, grammar.Seq(
			grammar.Field("left", grammar.Sym("_expression")),
			grammar.Str(op),
			grammar.Field("right", grammar.Sym("_expression")),
		))
	}
	return &grammar.Grammar{
		Name: "expr",
		Rules: []grammar.NamedRule{
			grammar.Def("program", grammar.Repeat(grammar.Seq(grammar.Sym("_statement"), grammar.Str(";")))),
			grammar.Def("_statement", grammar.Choice(grammar.Sym("let_statement"), grammar.Sym("_expression"))),
			grammar.Def("let_statement", grammar.Seq(
				grammar.Str("let"),
				grammar.Field("name", grammar.Sym("identifier")),
				grammar.Str("="),
				grammar.Field("value", grammar.Sym("_expression")),
			)),
			grammar.Def("_expression", grammar.Choice(
				grammar.Sym("number"),
				grammar.Sym("identifier"),
				grammar.Sym("binary_expression"),
				grammar.Sym("parenthesized_expression"),
			)),
			grammar.Def("binary_expression", grammar.Choice(binary(1, "+"), binary(1, "-"), binary(2, "*"))),
			grammar.Def("parenthesized_expression", grammar.Seq(grammar.Str("("), grammar.Sym("_expression"), grammar.Str(")"))),
			grammar.Def("comment", grammar.Pat(`#[^\n]*`)),
			grammar.Def("number", grammar.Pat(`\d+`)),
			grammar.Def("identifier", grammar.Pat(`[a-z]+`)),
		},
		Extras:     []grammar.Rule{grammar.Sym("comment"), grammar.AliasAnon(grammar.Pat(`\s+`), "whitespace")},
		Supertypes: []string{"_expression"},
		Word:       "identifier",
	}
}

func newExprParser(t *testing.T, opts ...Option) *Parser {
	t.Helper()
	tables, err := grammar.Compile(exprGrammar())
	require.NoError(t, err)
	return NewParser(NewLanguage(tables), opts...)
}

func leafText(tree *Tree) string {
	var b strings.Builder
	for leaf := range tree.Leaves() {
		b.WriteString(leaf.Text())
	}
	return b.String()
}

func TestParse_Trees(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "empty",
			src:  "",
			want: "(program)",
		},
		{
			name: "precedence",
			src:  "let x = 1 + 2 * 3;",
			want: "(program (let_statement name: (identifier) value: (binary_expression left: (number) right: (binary_expression left: (number) right: (number)))))",
		},
		{
			name: "left associative",
			src:  "a - b - c;",
			want: "(program (binary_expression left: (binary_expression left: (identifier) right: (identifier)) right: (identifier)))",
		},
		{
			name: "keyword needs a whole word",
			src:  "letter;",
			want: "(program (identifier))",
		},
		{
			name: "comments are extras",
			src:  "# one\n(1); # two\n",
			want: "(program (comment) (parenthesized_expression (number)) (comment))",
		},
	}
	p := newExprParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := p.Parse(context.Background(), []byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.Root().String())
			assert.Equal(t, 0, tree.ErrorCount())
			assert.Equal(t, tt.src, leafText(tree))
			assert.Equal(t, len(tt.src), tree.Root().EndByte())
		})
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		want   string
		errors int
	}{
		{
			name:   "missing closing parenthesis",
			src:    "(1 + 2;",
			want:   `(program (parenthesized_expression (binary_expression left: (number) right: (number)) (MISSING ")")))`,
			errors: 1,
		},
		{
			name:   "unexpected token",
			src:    "1 ) 2;",
			want:   "(program (ERROR (number)) (number))",
			errors: 1,
		},
		{
			name:   "error keeps parsed expression",
			src:    "(1) ) 2;",
			want:   "(program (ERROR (parenthesized_expression (number))) (number))",
			errors: 1,
		},
		{
			name:   "unknown characters",
			src:    "@@@;",
			want:   "(program (ERROR))",
			errors: 1,
		},
		{
			name:   "later statements survive",
			src:    "let = 1;\nlet y = 2;",
			errors: 1,
		},
	}
	p := newExprParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := p.Parse(context.Background(), []byte(tt.src))
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, tree.Root().String())
			}
			assert.Equal(t, tt.errors, tree.ErrorCount())
			assert.True(t, tree.Root().HasError())
			assert.Equal(t, tt.src, leafText(tree))
		})
	}

	t.Run("missing node position", func(t *testing.T) {
		tree, err := p.Parse(context.Background(), []byte("(1 + 2;"))
		require.NoError(t, err)
		errs := tree.Errors()
		require.Len(t, errs, 1)
		assert.True(t, errs[0].IsMissing())
		assert.Equal(t, ErrorKind, errs[0].Kind())
		assert.Equal(t, 6, errs[0].StartByte())
		assert.Equal(t, 6, errs[0].EndByte())
	})

	t.Run("last statement stays intact", func(t *testing.T) {
		tree, err := p.Parse(context.Background(), []byte("let = 1;\nlet y = 2;"))
		require.NoError(t, err)
		named := tree.Root().NamedChildren()
		last := named[len(named)-1]
		assert.Equal(t, "let_statement", last.Kind())
		assert.False(t, last.HasError())
		assert.Equal(t, "let y = 2", last.Text())
	})
}

func TestParse_Conflicts(t *testing.T) {
	sum := &grammar.Grammar{
		Name: "sum",
		Rules: []grammar.NamedRule{
			grammar.Def("program", grammar.Sym("sum")),
			grammar.Def("sum", grammar.Choice(grammar.Sym("number"), grammar.Seq(grammar.Sym("sum"), grammar.Str("+"), grammar.Sym("sum")))),
			grammar.Def("number", grammar.Pat(`\d+`)),
		},
		Conflicts: [][]string{{"sum"}},
	}
	tables, err := grammar.Compile(sum)
	require.NoError(t, err)

	for _, limit := range []int{1, 2, DefaultMaxVersions} {
		p := NewParser(NewLanguage(tables), WithMaxVersions(limit))
		tree, err := p.Parse(context.Background(), []byte("1+2+3"))
		require.NoError(t, err)
		assert.Equal(t, 0, tree.ErrorCount())
		top := tree.Root().NamedChild(0)
		assert.Equal(t, "1+2+3", top.Text())
		right := top.NamedChild(top.NamedChildCount() - 1)
		assert.Equal(t, "2+3", right.Text(), "shifting wins ties")
	}
}

func TestParse_ForksStayBounded(t *testing.T) {
	kinds := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	g := &grammar.Grammar{
		Name:      "many",
		Rules:     []grammar.NamedRule{grammar.Def("identifier", grammar.Pat(`[a-z]+`))},
		Extras:    []grammar.Rule{grammar.AliasAnon(grammar.Pat(`\s+`), "whitespace")},
		Conflicts: [][]string{kinds},
	}
	var alts []grammar.Rule
	for _, k := range kinds {
		alts = append(alts, grammar.Sym(k))
		g.Rules = append(g.Rules, grammar.Def(k, grammar.Seq(grammar.Sym("identifier"), grammar.Sym("identifier"))))
	}
	g.Rules = append([]grammar.NamedRule{
		grammar.Def("program", grammar.Sym("_item")),
		grammar.Def("_item", grammar.Choice(alts...)),
	}, g.Rules...)
	tables, err := grammar.Compile(g)
	require.NoError(t, err)

	tests := []struct {
		limit int
		peak  int
	}{
		{1, 2},
		{2, 4},
		{DefaultMaxVersions, len(kinds)},
	}
	for _, tt := range tests {
		p := NewParser(NewLanguage(tables), WithMaxVersions(tt.limit))
		s := p.newSession(context.Background(), []byte("x y"), nil)
		root, err := s.run()
		require.NoError(t, err)
		tree := newTree(p.lang, s.src, root)
		assert.Equal(t, 0, tree.ErrorCount(), "limit %d", tt.limit)
		assert.Contains(t, kinds, tree.Root().NamedChild(0).Kind())
		assert.Equal(t, tt.peak, s.peak, "limit %d", tt.limit)
	}
}

func TestParse_DynamicPrecedence(t *testing.T) {
	pair := func(dyn int) *grammar.Grammar {
		return &grammar.Grammar{
			Name: "pair",
			Rules: []grammar.NamedRule{
				grammar.Def("program", grammar.Sym("_pair")),
				grammar.Def("_pair", grammar.Choice(grammar.Sym("first"), grammar.Sym("second"))),
				grammar.Def("first", grammar.Seq(grammar.Sym("identifier"), grammar.Sym("identifier"))),
				grammar.Def("second", grammar.PrecDynamic(dyn, grammar.Seq(grammar.Sym("identifier"), grammar.Sym("identifier")))),
				grammar.Def("identifier", grammar.Pat(`[a-z]+`)),
			},
			Extras:    []grammar.Rule{grammar.AliasAnon(grammar.Pat(`\s+`), "whitespace")},
			Conflicts: [][]string{{"first", "second"}},
		}
	}
	tests := []struct {
		dyn  int
		want string
	}{
		{0, "first"},
		{2, "second"},
		{-1, "first"},
	}
	for _, tt := range tests {
		tables, err := grammar.Compile(pair(tt.dyn))
		require.NoError(t, err)
		tree, err := NewParser(NewLanguage(tables)).Parse(context.Background(), []byte("a b"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, tree.Root().NamedChild(0).Kind(), "dynamic precedence %d", tt.dyn)
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExprParser(t).Parse(ctx, []byte("1;"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestParse_Reader(t *testing.T) {
	tree, err := newExprParser(t).ParseReader(context.Background(), strings.NewReader("1 + 1;"))
	require.NoError(t, err)
	assert.Equal(t, "(program (binary_expression left: (number) right: (number)))", tree.Root().String())
}

func TestReparse(t *testing.T) {
	p := newExprParser(t)
	ctx := context.Background()
	src := []byte("let a = 1;\nlet b = 2;\nlet c = 3;\n")
	old, err := p.Parse(ctx, src)
	require.NoError(t, err)

	next, edit, err := Apply(src, 19, 20, "40 + 2")
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;\nlet b = 40 + 2;\nlet c = 3;\n", string(next))

	tree, err := p.Reparse(ctx, old, edit, next)
	require.NoError(t, err)
	fresh, err := p.Parse(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, fresh.Root().String(), tree.Root().String())
	assert.Equal(t, string(next), leafText(tree))

	before, after := old.Root().NamedChildren(), tree.Root().NamedChildren()
	require.Len(t, after, 3)
	assert.Same(t, before[0].n, after[0].n, "statement before the edit is reused")
	assert.Same(t, before[2].n, after[2].n, "statement after the edit is reused")
	assert.NotSame(t, before[1].n, after[1].n)
	assert.Equal(t, 27, after[2].StartByte())
}

func TestReparse_InvalidEdits(t *testing.T) {
	p := newExprParser(t)
	ctx := context.Background()
	src := []byte("1;\n")
	old, err := p.Parse(ctx, src)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit Edit
		src  string
	}{
		{"negative start", Edit{StartByte: -1, OldEndByte: 0, NewEndByte: 0}, "1;\n"},
		{"end before start", Edit{StartByte: 2, OldEndByte: 1, NewEndByte: 2}, "1;\n"},
		{"beyond source", Edit{StartByte: 0, OldEndByte: 10, NewEndByte: 10}, "1;\n"},
		{"length mismatch", Edit{StartByte: 0, OldEndByte: 1, NewEndByte: 1}, "12;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Reparse(ctx, old, tt.edit, []byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEdit))
			var editErr *EditError
			require.ErrorAs(t, err, &editErr)
			assert.Equal(t, tt.edit, editErr.Edit)
		})
	}
}
