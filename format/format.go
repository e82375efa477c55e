// Package format renders syntax trees: as S-expressions, indented trees,
// token lines and JSON, and as caret diagnostics for their error nodes.
package format

import (
	"encoding"
	"io"

	"github.com/dhamidi/shtree/parse"
)

// Encoder writes a tree to the writer it was created with. MarshalText
// renders the tree of the last Encode call.
type Encoder interface {
	encoding.TextMarshaler
	Encode(tree *parse.Tree) error
}

// New returns the encoder registered under name: sexp, tree, tokens or
// json.
func New(name string, w io.Writer) (Encoder, bool) {
	switch name {
	case "sexp":
		return NewSexpEncoder(w), true
	case "tree":
		return NewTreeEncoder(w), true
	case "tokens":
		return NewLineEncoder(w), true
	case "json":
		return NewJSONEncoder(w), true
	}
	return nil, false
}

// Names lists the encoder names accepted by New.
func Names() []string { return []string{"sexp", "tree", "tokens", "json"} }

type writer struct {
	w    io.Writer
	tree *parse.Tree
}

func (e *writer) encode(tree *parse.Tree, marshal func() ([]byte, error)) error {
	e.tree = tree
	text, err := marshal()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}
