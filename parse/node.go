package parse

import (
	"slices"

	"github.com/dhamidi/shtree/grammar"
)

// ErrorKind is the kind of error nodes.
const ErrorKind = "ERROR"

type nodeFlags uint8

const (
	flagNamed nodeFlags = 1 << iota
	flagVisible
	flagExtra
	flagError
	flagMissing
	flagHasError
	flagLeaf
)

// node is the immutable, position-independent tree representation. Nodes
// store their size only, so unchanged subtrees can be shared between the
// trees of successive parses.
type node struct {
	sym      grammar.Symbol
	kind     string
	flags    nodeFlags
	size     int
	children []*node
	fields   []grammar.FieldID
	// state is the scanner state after a leaf, nil when clean.
	state ScannerState
}

func (n *node) is(f nodeFlags) bool { return n.flags&f != 0 }

func newLeaf(t *grammar.Tables, sym grammar.Symbol, size int, extra bool, state ScannerState) *node {
	info := t.Info(sym)
	n := &node{sym: sym, kind: info.Name, size: size, flags: flagLeaf}
	if info.Named {
		n.flags |= flagNamed
	}
	if info.Visible {
		n.flags |= flagVisible
	}
	if extra {
		n.flags |= flagExtra
	}
	if !isClean(state) {
		n.state = state
	}
	return n
}

func newInterior(t *grammar.Tables, sym grammar.Symbol) *node {
	info := t.Info(sym)
	n := &node{sym: sym, kind: info.Name}
	if info.Named {
		n.flags |= flagNamed
	}
	if info.Visible {
		n.flags |= flagVisible
	}
	return n
}

func newError(sym grammar.Symbol) *node {
	return &node{sym: sym, kind: ErrorKind, flags: flagNamed | flagVisible | flagError | flagHasError}
}

func (n *node) appendChild(c *node, field grammar.FieldID) {
	if field != 0 && n.fields == nil {
		n.fields = make([]grammar.FieldID, len(n.children), cap(n.children))
	}
	n.children = append(n.children, c)
	if n.fields != nil {
		n.fields = append(n.fields, field)
	}
	n.size += c.size
	if c.is(flagHasError) {
		n.flags |= flagHasError
	}
}

func (n *node) fieldAt(i int) grammar.FieldID {
	if n.fields == nil {
		return 0
	}
	return n.fields[i]
}

// aliased returns a shallow copy of n presented under another kind.
func (n *node) aliased(kind string, named bool) *node {
	if n.is(flagError) {
		return n
	}
	c := *n
	c.kind = kind
	c.flags |= flagVisible
	if named {
		c.flags |= flagNamed
	} else {
		c.flags &^= flagNamed
	}
	return &c
}

func (n *node) lastLeaf() *node {
	for !n.is(flagLeaf) && len(n.children) > 0 {
		n = n.children[len(n.children)-1]
	}
	return n
}

// Node is a handle on a node of a Tree. The zero Node is invalid.
type Node struct {
	tree  *Tree
	n     *node
	start int
}

// IsValid reports whether the handle refers to a node.
func (n Node) IsValid() bool { return n.n != nil }

// Tree returns the tree the node belongs to.
func (n Node) Tree() *Tree { return n.tree }

// Kind returns the node kind: the rule or alias name, the literal text of
// an anonymous token, or ERROR.
func (n Node) Kind() string { return n.n.kind }

// Symbol returns the grammar symbol the node was built from. Aliased and
// error nodes keep the symbol of their underlying rule or token.
func (n Node) Symbol() grammar.Symbol { return n.n.sym }

// StartByte returns the offset of the first byte the node covers.
func (n Node) StartByte() int { return n.start }

// EndByte returns the offset just past the node.
func (n Node) EndByte() int { return n.start + n.n.size }

// Text returns the source the node covers.
func (n Node) Text() string {
	return string(n.tree.src[n.start : n.start+n.n.size])
}

// Position returns the line and column (both from zero, column in bytes)
// of the node's start.
func (n Node) Position() Point { return n.tree.Point(n.start) }

// EndPosition returns the point just past the node.
func (n Node) EndPosition() Point { return n.tree.Point(n.EndByte()) }

// IsNamed reports whether the node is a named rule or token.
func (n Node) IsNamed() bool { return n.n.is(flagNamed) }

// IsExtra reports whether the node is trivia, such as whitespace or a
// comment, or an error node the parser placed outside the grammar.
func (n Node) IsExtra() bool { return n.n.is(flagExtra) }

// IsError reports whether the node is an error node.
func (n Node) IsError() bool { return n.n.is(flagError) }

// IsMissing reports whether the node stands for a token the parser
// inserted to recover. Missing nodes are zero-width error nodes.
func (n Node) IsMissing() bool { return n.n.is(flagMissing) }

// HasError reports whether the node is or contains an error node.
func (n Node) HasError() bool { return n.n.is(flagHasError) }

// IsLeaf reports whether the node was built from a single token.
func (n Node) IsLeaf() bool { return n.n.is(flagLeaf) }

// ChildCount returns the number of children, trivia included.
func (n Node) ChildCount() int { return len(n.n.children) }

// Child returns the i-th child.
func (n Node) Child(i int) Node {
	if i < 0 || i >= len(n.n.children) {
		return Node{}
	}
	start := n.start
	for _, c := range n.n.children[:i] {
		start += c.size
	}
	return Node{tree: n.tree, n: n.n.children[i], start: start}
}

// Children returns all children in order.
func (n Node) Children() []Node {
	out := make([]Node, 0, len(n.n.children))
	start := n.start
	for _, c := range n.n.children {
		out = append(out, Node{tree: n.tree, n: c, start: start})
		start += c.size
	}
	return out
}

// NamedChildren returns the named children in order.
func (n Node) NamedChildren() []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildCount returns the number of named children.
func (n Node) NamedChildCount() int {
	count := 0
	for _, c := range n.n.children {
		if c.is(flagNamed) {
			count++
		}
	}
	return count
}

// NamedChild returns the i-th named child.
func (n Node) NamedChild(i int) Node {
	named := n.NamedChildren()
	if i < 0 || i >= len(named) {
		return Node{}
	}
	return named[i]
}

// FieldNameForChild returns the field label of the i-th child, or "".
func (n Node) FieldNameForChild(i int) string {
	if i < 0 || i >= len(n.n.children) {
		return ""
	}
	return n.tree.lang.Tables.FieldName(n.n.fieldAt(i))
}

// ChildByFieldName returns the first child labeled with field.
func (n Node) ChildByFieldName(field string) (Node, bool) {
	all := n.ChildrenByFieldName(field)
	if len(all) == 0 {
		return Node{}, false
	}
	return all[0], true
}

// ChildrenByFieldName returns every child labeled with field.
func (n Node) ChildrenByFieldName(field string) []Node {
	id, ok := n.tree.lang.Tables.FieldByName(field)
	if !ok || n.n.fields == nil {
		return nil
	}
	var out []Node
	for i, c := range n.Children() {
		if n.n.fields[i] == id {
			out = append(out, c)
		}
	}
	return out
}

// Supertypes returns the supertype tags of the node's kind.
func (n Node) Supertypes() []string {
	return n.tree.lang.Tables.Supertypes(n.n.kind)
}

// HasSupertype reports whether the node's kind belongs to supertype.
func (n Node) HasSupertype(supertype string) bool {
	return slices.Contains(n.Supertypes(), supertype)
}

// Walk returns a cursor positioned on n.
func (n Node) Walk() *Cursor { return newCursor(n) }

// DescendantForRange returns the smallest node that contains the byte range
// [start, end).
func (n Node) DescendantForRange(start, end int) Node {
	cur := n
outer:
	for {
		for _, c := range cur.Children() {
			if c.StartByte() <= start && end <= c.EndByte() && (c.n.size > 0 || start == end) {
				if c.n.is(flagExtra) && !c.n.is(flagNamed) {
					break outer
				}
				cur = c
				continue outer
			}
		}
		return cur
	}
	return cur
}

// Equal reports whether two handles refer to the same node in the same
// place.
func (n Node) Equal(o Node) bool {
	return n.tree == o.tree && n.n == o.n && n.start == o.start
}
