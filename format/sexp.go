package format

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/dhamidi/shtree/parse"
)

var errNoTree = errors.New("no tree encoded")

// SexpEncoder writes the S-expression of the named nodes, one line per
// tree.
type SexpEncoder struct {
	writer
}

func NewSexpEncoder(w io.Writer) *SexpEncoder {
	return &SexpEncoder{writer{w: w}}
}

func (e *SexpEncoder) Encode(tree *parse.Tree) error {
	return e.encode(tree, e.MarshalText)
}

func (e *SexpEncoder) MarshalText() ([]byte, error) {
	if e.tree == nil {
		return nil, errNoTree
	}
	return []byte(e.tree.Root().String() + "\n"), nil
}

// TreeEncoder writes one named node per line, indented by depth, with its
// field label and source range.
type TreeEncoder struct {
	writer
	// Anonymous includes tokens such as keywords and punctuation.
	Anonymous bool
}

func NewTreeEncoder(w io.Writer) *TreeEncoder {
	return &TreeEncoder{writer: writer{w: w}}
}

func (e *TreeEncoder) Encode(tree *parse.Tree) error {
	return e.encode(tree, e.MarshalText)
}

func (e *TreeEncoder) MarshalText() ([]byte, error) {
	if e.tree == nil {
		return nil, errNoTree
	}
	var sb strings.Builder
	c := e.tree.Walk()
	depth := 0
	for {
		n := c.Node()
		if e.visible(n) {
			sb.WriteString(strings.Repeat("  ", depth))
			if f := c.FieldName(); f != "" {
				sb.WriteString(f)
				sb.WriteString(": ")
			}
			writeNodeLine(&sb, n)
		}
		if e.visible(n) && c.GotoFirstChild() {
			depth++
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return []byte(sb.String()), nil
			}
			depth--
		}
	}
}

func (e *TreeEncoder) visible(n parse.Node) bool {
	if n.IsNamed() || n.IsMissing() || n.IsError() {
		return true
	}
	return e.Anonymous && !n.IsExtra()
}

func writeNodeLine(sb *strings.Builder, n parse.Node) {
	switch {
	case n.IsMissing():
		sb.WriteString("MISSING ")
		sb.WriteString(quote(n.Tree().Language().Tables.Info(n.Symbol()).Name))
	case n.IsNamed():
		sb.WriteString(n.Kind())
	default:
		sb.WriteString(quote(n.Kind()))
	}
	start, end := n.Position(), n.EndPosition()
	sb.WriteString(" [")
	writePoint(sb, start)
	sb.WriteString(" - ")
	writePoint(sb, end)
	sb.WriteString("]\n")
}

func writePoint(sb *strings.Builder, p parse.Point) {
	sb.WriteString(strconv.Itoa(p.Line))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(p.Column))
}

func quote(s string) string { return strconv.Quote(s) }
