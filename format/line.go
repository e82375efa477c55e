package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/shtree/parse"
)

// LineEncoder writes one tab separated line per token: kind, byte range,
// position and the quoted text. Trivia is included.
type LineEncoder struct {
	writer
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{writer{w: w}}
}

func (e *LineEncoder) Encode(tree *parse.Tree) error {
	return e.encode(tree, e.MarshalText)
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	if e.tree == nil {
		return nil, errNoTree
	}
	var sb strings.Builder
	for leaf := range e.tree.Leaves() {
		p := leaf.Position()
		fmt.Fprintf(&sb, "%s\t%d-%d\t%d:%d\t%q\n",
			tokenKind(leaf),
			leaf.StartByte(),
			leaf.EndByte(),
			p.Line+1,
			p.Column+1,
			leaf.Text(),
		)
	}
	return []byte(sb.String()), nil
}

func tokenKind(n parse.Node) string {
	switch {
	case n.IsError():
		return "ERROR"
	case n.IsNamed():
		return n.Kind()
	case n.IsExtra():
		return "trivia"
	}
	return fmt.Sprintf("%q", n.Kind())
}
