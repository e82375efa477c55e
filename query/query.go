// Package query finds nodes in syntax trees with S-expression patterns.
//
// A pattern names a node kind and, optionally, patterns for its children:
//
//	(function_definition name: (word) @name body: (_) @body)
//
// Child patterns match children in order, other children may sit between
// them. (_) matches any named node, _ any node, "text" an anonymous node
// and (ERROR) an error node. A supertype such as (_statement) matches every
// kind grouped under it. Children take the quantifiers ?, * and +, and
// square brackets list alternatives. Predicates filter matches by the text
// of their captures:
//
//	((command name: (command_name) @cmd) (#any-of? @cmd "rm" "mv"))
package query

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/dhamidi/shtree/parse"
)

// Error is a syntax or naming error in a query.
type Error struct {
	Line, Column int
	Message      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("query %d:%d: %s", e.Line, e.Column, e.Message)
}

func errorAt(pos lexer.Position, format string, args ...any) *Error {
	return &Error{Line: pos.Line, Column: pos.Column, Message: fmt.Sprintf(format, args...)}
}

type quantifier uint8

const (
	one quantifier = iota
	zeroOrOne
	zeroOrMore
	oneOrMore
)

type pattern struct {
	kind     string // "" for the bare wildcard and alternations
	named    bool   // kind names a named node, (_) included
	literal  bool
	field    string
	quant    quantifier
	captures []string
	children []*pattern
	alts     []*pattern
}

type predicate struct {
	name string
	args []predicateArg
	re   *regexp.Regexp
}

type predicateArg struct {
	capture string
	value   string
}

type topPattern struct {
	*pattern
	predicates []predicate
}

// Query is a compiled list of patterns. It is immutable and may be shared.
type Query struct {
	patterns []topPattern
	captures []string
}

// Capture is a node bound to a capture name.
type Capture struct {
	Name string
	Node parse.Node
}

// Match is one pattern matched at one node.
type Match struct {
	// Pattern is the index of the pattern in the query source.
	Pattern  int
	Captures []Capture
}

// Nodes returns the nodes captured under name.
func (m Match) Nodes(name string) []parse.Node {
	var out []parse.Node
	for _, c := range m.Captures {
		if c.Name == name {
			out = append(out, c.Node)
		}
	}
	return out
}

// Node returns the first node captured under name.
func (m Match) Node(name string) (parse.Node, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return parse.Node{}, false
}

// Compile parses source and checks its kinds, fields and captures against
// lang.
func Compile(lang *parse.Language, source string) (*Query, error) {
	ast, err := queryParser.ParseString("query", source)
	if err != nil {
		var pe participle.Error
		if errors.As(err, &pe) {
			return nil, errorAt(pe.Position(), "%s", pe.Message())
		}
		return nil, fmt.Errorf("parse query: %w", err)
	}
	c := &compiler{lang: lang}
	q := &Query{}
	for _, p := range ast.Patterns {
		top, err := c.top(p)
		if err != nil {
			return nil, err
		}
		q.patterns = append(q.patterns, top)
	}
	q.captures = c.names
	return q, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(lang *parse.Language, source string) *Query {
	q, err := Compile(lang, source)
	if err != nil {
		panic(err)
	}
	return q
}

// PatternCount returns the number of top-level patterns.
func (q *Query) PatternCount() int { return len(q.patterns) }

// CaptureNames returns every capture name in order of first appearance.
func (q *Query) CaptureNames() []string { return slices.Clone(q.captures) }

type compiler struct {
	lang  *parse.Language
	names []string
	local []string
}

// top compiles a top-level pattern. A parenthesized group without a kind
// wraps one pattern and its predicates.
func (c *compiler) top(p *patternAST) (topPattern, error) {
	c.local = c.local[:0]
	var preds []*predicateAST
	if p.Node != nil && p.Node.Kind == "" {
		var inner []*patternAST
		for _, item := range p.Node.Items {
			if item.Predicate != nil {
				preds = append(preds, item.Predicate)
				continue
			}
			inner = append(inner, item)
		}
		if len(inner) != 1 {
			return topPattern{}, errorAt(p.Node.Pos, "a group must hold exactly one pattern, got %d", len(inner))
		}
		if p.Quantifier != "" || len(p.Captures) > 0 || p.Field != "" {
			return topPattern{}, errorAt(p.Pos, "a group takes no field, quantifier or capture")
		}
		p = inner[0]
	}
	if p.Predicate != nil {
		return topPattern{}, errorAt(p.Pos, "predicate %s outside a pattern", p.Predicate.Name)
	}
	if p.Field != "" || p.Quantifier != "" {
		return topPattern{}, errorAt(p.Pos, "top-level patterns take no field or quantifier")
	}
	pat, err := c.pattern(p, &preds)
	if err != nil {
		return topPattern{}, err
	}
	top := topPattern{pattern: pat}
	for _, pr := range preds {
		compiled, err := c.predicate(pr)
		if err != nil {
			return topPattern{}, err
		}
		top.predicates = append(top.predicates, compiled)
	}
	return top, nil
}

func (c *compiler) pattern(p *patternAST, preds *[]*predicateAST) (*pattern, error) {
	tables := c.lang.Tables
	pat := &pattern{field: p.Field}
	if p.Field != "" {
		if _, ok := tables.FieldByName(p.Field); !ok {
			return nil, errorAt(p.Pos, "unknown field %q", p.Field)
		}
	}
	switch p.Quantifier {
	case "?":
		pat.quant = zeroOrOne
	case "*":
		pat.quant = zeroOrMore
	case "+":
		pat.quant = oneOrMore
	}
	for _, name := range p.Captures {
		name = strings.TrimPrefix(name, "@")
		pat.captures = append(pat.captures, name)
		if !slices.Contains(c.names, name) {
			c.names = append(c.names, name)
		}
		if !slices.Contains(c.local, name) {
			c.local = append(c.local, name)
		}
	}

	switch {
	case p.Wildcard:
	case p.Literal != nil:
		text, err := strconv.Unquote(*p.Literal)
		if err != nil {
			return nil, errorAt(p.Pos, "bad string %s", *p.Literal)
		}
		if !tables.HasKind(text) {
			return nil, errorAt(p.Pos, "unknown token %q", text)
		}
		pat.kind, pat.literal = text, true
	case len(p.Alts) > 0:
		for _, alt := range p.Alts {
			if alt.Predicate != nil || alt.Field != "" {
				return nil, errorAt(alt.Pos, "alternatives take no field or predicate")
			}
			compiled, err := c.pattern(alt, preds)
			if err != nil {
				return nil, err
			}
			pat.alts = append(pat.alts, compiled)
		}
	case p.Node != nil:
		kind := p.Node.Kind
		switch {
		case kind == "":
			return nil, errorAt(p.Node.Pos, "nested groups are not supported")
		case kind == "_", kind == "ERROR":
		case tables.HasKind(kind), tables.IsSupertype(kind):
		default:
			return nil, errorAt(p.Node.Pos, "unknown node kind %q", kind)
		}
		pat.kind, pat.named = kind, true
		for _, item := range p.Node.Items {
			if item.Predicate != nil {
				*preds = append(*preds, item.Predicate)
				continue
			}
			child, err := c.pattern(item, preds)
			if err != nil {
				return nil, err
			}
			pat.children = append(pat.children, child)
		}
	case p.Predicate != nil:
		return nil, errorAt(p.Pos, "predicate %s cannot take a field, quantifier or capture", p.Predicate.Name)
	}
	return pat, nil
}

func (c *compiler) predicate(p *predicateAST) (predicate, error) {
	pr := predicate{name: p.Name}
	for _, a := range p.Args {
		switch {
		case a.Capture != nil:
			name := strings.TrimPrefix(*a.Capture, "@")
			if !slices.Contains(c.local, name) {
				return pr, errorAt(p.Pos, "%s refers to unknown capture @%s", p.Name, name)
			}
			pr.args = append(pr.args, predicateArg{capture: name})
		case a.String != nil:
			text, err := strconv.Unquote(*a.String)
			if err != nil {
				return pr, errorAt(p.Pos, "bad string %s", *a.String)
			}
			pr.args = append(pr.args, predicateArg{value: text})
		case a.Ident != nil:
			pr.args = append(pr.args, predicateArg{value: *a.Ident})
		}
	}
	if len(pr.args) == 0 || pr.args[0].capture == "" {
		return pr, errorAt(p.Pos, "%s needs a capture as its first argument", p.Name)
	}
	switch p.Name {
	case "#eq?", "#not-eq?":
		if len(pr.args) != 2 {
			return pr, errorAt(p.Pos, "%s takes two arguments, got %d", p.Name, len(pr.args))
		}
	case "#match?", "#not-match?":
		if len(pr.args) != 2 || pr.args[1].capture != "" {
			return pr, errorAt(p.Pos, "%s takes a capture and a pattern", p.Name)
		}
		re, err := regexp.Compile(pr.args[1].value)
		if err != nil {
			return pr, errorAt(p.Pos, "%s: %v", p.Name, err)
		}
		pr.re = re
	case "#any-of?", "#not-any-of?":
		if len(pr.args) < 2 {
			return pr, errorAt(p.Pos, "%s needs at least one value", p.Name)
		}
		for _, a := range pr.args[1:] {
			if a.capture != "" {
				return pr, errorAt(p.Pos, "%s takes string values", p.Name)
			}
		}
	default:
		return pr, errorAt(p.Pos, "unknown predicate %s", p.Name)
	}
	return pr, nil
}

// Matches yields every match in document order; at one node, patterns are
// tried in source order.
func (q *Query) Matches(tree *parse.Tree) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for n := range tree.Nodes() {
			for i, p := range q.patterns {
				caps, ok := p.match(n, nil)
				if !ok || !p.satisfied(caps) {
					continue
				}
				if !yield(Match{Pattern: i, Captures: caps}) {
					return
				}
			}
		}
	}
}

// Captures yields the captures of every match, in match order.
func (q *Query) Captures(tree *parse.Tree) iter.Seq2[string, parse.Node] {
	return func(yield func(string, parse.Node) bool) {
		for m := range q.Matches(tree) {
			for _, c := range m.Captures {
				if !yield(c.Name, c.Node) {
					return
				}
			}
		}
	}
}
