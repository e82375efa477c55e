package parse

import (
	"strconv"
	"strings"
)

// String renders the node as an S-expression of its named descendants,
// with field labels, in the form (kind field: (kind) ...). Missing tokens
// print as (MISSING "text").
func (n Node) String() string {
	if !n.IsValid() {
		return "(null)"
	}
	var b strings.Builder
	writeSexp(&b, n.Walk(), "")
	return b.String()
}

func writeSexp(b *strings.Builder, c *Cursor, field string) {
	n := c.Node()
	if field != "" {
		b.WriteString(field)
		b.WriteString(": ")
	}
	if n.IsMissing() {
		b.WriteString("(MISSING ")
		b.WriteString(strconv.Quote(n.tree.lang.Tables.Info(n.Symbol()).Name))
		b.WriteString(")")
		return
	}
	b.WriteString("(")
	b.WriteString(n.Kind())
	if c.GotoFirstChild() {
		for {
			child := c.Node()
			if child.IsNamed() || child.IsMissing() {
				b.WriteString(" ")
				writeSexp(b, c, c.FieldName())
			}
			if !c.GotoNextSibling() {
				break
			}
		}
		c.GotoParent()
	}
	b.WriteString(")")
}
