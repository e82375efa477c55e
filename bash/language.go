package bash

import (
	"context"
	"strings"
	"sync"

	"github.com/dhamidi/shtree/grammar"
	"github.com/dhamidi/shtree/parse"
)

var language = sync.OnceValue(func() *parse.Language {
	t := grammar.MustCompile(Grammar())
	s, err := NewScanner(t)
	if err != nil {
		panic(err)
	}
	return &parse.Language{Name: t.Name, Tables: t, Scanner: s}
})

// Language returns the shell language. The tables are compiled on first
// use and shared afterwards.
func Language() *parse.Language { return language() }

// NewParser returns a parser for shell scripts.
func NewParser(opts ...parse.Option) *parse.Parser {
	return parse.NewParser(Language(), opts...)
}

// Parse parses a script with default options.
func Parse(ctx context.Context, src []byte) (*parse.Tree, error) {
	return NewParser().Parse(ctx, src)
}

// HeredocText returns the body of a heredoc_redirect node as the shell
// would read it before expansion: for <<- the leading tabs of every line
// are removed. When more heredocs start on the same line, the bodies that
// follow the first terminator belong to them. It returns "" for other nodes.
func HeredocText(n parse.Node) string {
	if !n.IsValid() || n.Kind() != "heredoc_redirect" {
		return ""
	}
	var body parse.Node
	indent := false
scan:
	for _, c := range n.Children() {
		switch c.Kind() {
		case "<<-":
			indent = true
		case "heredoc_body":
			body = c
		case "heredoc_end":
			break scan
		}
	}
	if !body.IsValid() {
		return ""
	}
	text := body.Text()
	if !indent {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "")
}
