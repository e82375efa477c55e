package parse

import (
	"slices"

	"github.com/dhamidi/shtree/grammar"
)

// reduce pops the children of production prod, builds their parent and
// pushes it. Extras on top of the stack stay above the new node.
func (s *session) reduce(v *version, prod int) {
	p := &s.tables.Productions[prod]
	var trailing []*node
	e := v.stack
	if len(p.Steps) > 0 {
		for e.extra() {
			trailing = append(trailing, e.node)
			e = e.prev
		}
	}
	var children []*node
	for count := 0; count < len(p.Steps) && e.node != nil; e = e.prev {
		children = append(children, e.node)
		if !e.node.is(flagExtra) {
			count++
		}
	}
	slices.Reverse(children)

	n := s.build(p, children)
	v.dynPrec += p.DynPrec
	next, _ := s.tables.Goto(e.state, p.LHS)
	v.stack = e
	v.push(next, n)
	for i := len(trailing) - 1; i >= 0; i-- {
		v.push(next, trailing[i])
	}
}

// build assembles the node for p. Hidden children are replaced by their
// own children, inheriting the field of the step they fill; aliased
// children are renamed; zero-width hidden tokens are dropped.
func (s *session) build(p *grammar.Production, children []*node) *node {
	n := newInterior(s.tables, p.LHS)
	step := 0
	for _, c := range children {
		if c.is(flagExtra) || step >= len(p.Steps) {
			n.appendChild(c, 0)
			continue
		}
		st := p.Steps[step]
		step++
		switch {
		case st.Alias != "":
			n.appendChild(c.aliased(st.Alias, st.AliasNamed), st.Field)
		case c.is(flagVisible) || c.is(flagError):
			n.appendChild(c, st.Field)
		case c.is(flagLeaf):
			if c.size > 0 {
				n.appendChild(c, st.Field)
			}
		default:
			for i, gc := range c.children {
				f := c.fieldAt(i)
				if f == 0 && !gc.is(flagExtra) {
					f = st.Field
				}
				n.appendChild(gc, f)
			}
		}
	}
	return n
}

// accept builds the root from the start node and the trivia around it.
func (s *session) accept(v *version) {
	var items []*node
	for e := v.stack; e.node != nil; e = e.prev {
		items = append(items, e.node)
	}
	slices.Reverse(items)
	v.result = s.root(items)
	v.status = statusAccepted
}

func (s *session) root(items []*node) *node {
	root := newInterior(s.tables, s.tables.Start)
	for _, it := range items {
		if it.is(flagExtra) || it.is(flagLeaf) || it.sym != s.tables.Start {
			root.appendChild(it, 0)
			continue
		}
		for i, c := range it.children {
			root.appendChild(c, it.fieldAt(i))
		}
	}
	return root
}

func (s *session) pushTrivia(v *version, end int) {
	if end <= v.pos {
		return
	}
	for _, tok := range s.lexer.Trivia(s.src, v.pos, end) {
		v.push(v.state(), newLeaf(s.tables, tok.Symbol, tok.Len(), true, v.scanner))
	}
	v.pos = end
}

func (s *session) leaf(l lexeme) *node {
	n := newLeaf(s.tables, l.Symbol, l.Len(), l.Extra, l.next)
	if l.missing {
		n.kind = ErrorKind
		n.flags |= flagError | flagMissing | flagHasError | flagNamed | flagVisible
	}
	return n
}
