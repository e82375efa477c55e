package parse

import (
	"iter"
	"sort"
)

// Point is a zero-based line and byte column.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Tree is the result of a parse. It covers every byte of its source and is
// immutable, so it may be shared between goroutines.
type Tree struct {
	root  *node
	src   []byte
	lang  *Language
	lines []int
}

func newTree(lang *Language, src []byte, root *node) *Tree {
	t := &Tree{root: root, src: src, lang: lang, lines: []int{0}}
	for i, b := range src {
		if b == '\n' {
			t.lines = append(t.lines, i+1)
		}
	}
	return t
}

// Root returns the root node.
func (t *Tree) Root() Node { return Node{tree: t, n: t.root} }

// Source returns the parsed source.
func (t *Tree) Source() []byte { return t.src }

// Language returns the language the tree was parsed with.
func (t *Tree) Language() *Language { return t.lang }

// Walk returns a cursor positioned on the root.
func (t *Tree) Walk() *Cursor { return newCursor(t.Root()) }

// Point converts a byte offset into a line and column.
func (t *Tree) Point(offset int) Point {
	line := sort.SearchInts(t.lines, offset+1) - 1
	return Point{Line: line, Column: offset - t.lines[line]}
}

// Offset converts a line and column into a byte offset, clamped to the
// source.
func (t *Tree) Offset(p Point) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(t.lines) {
		return len(t.src)
	}
	return min(t.lines[p.Line]+p.Column, len(t.src))
}

// Nodes iterates over every node in document order, parents before their
// children.
func (t *Tree) Nodes() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		c := t.Walk()
		for {
			if !yield(c.Node()) {
				return
			}
			if c.GotoFirstChild() {
				continue
			}
			for !c.GotoNextSibling() {
				if !c.GotoParent() {
					return
				}
			}
		}
	}
}

// Leaves iterates over the tokens of the tree, trivia included. Their text
// concatenates to the source.
func (t *Tree) Leaves() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for n := range t.Nodes() {
			if n.ChildCount() == 0 && n.n.size > 0 {
				if !yield(n) {
					return
				}
			}
		}
	}
}

// Errors returns the error nodes of the tree in document order, including
// missing-token nodes.
func (t *Tree) Errors() []Node {
	if !t.root.is(flagHasError) {
		return nil
	}
	var out []Node
	c := t.Walk()
	for {
		n := c.Node()
		if n.IsError() {
			out = append(out, n)
		}
		if n.HasError() && !n.IsError() && c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return out
			}
		}
	}
}

// ErrorCount returns the number of error nodes.
func (t *Tree) ErrorCount() int { return len(t.Errors()) }
