package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/shtree/parse"
)

// JSONEncoder writes the tree as nested JSON objects. Trivia (comments
// and whitespace tokens) is left out unless Trivia is set; anonymous
// tokens are included so that the leaves cover the script.
type JSONEncoder struct {
	writer
	Trivia bool
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{writer: writer{w: w}}
}

func (e *JSONEncoder) Encode(tree *parse.Tree) error {
	return e.encode(tree, e.MarshalText)
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	if e.tree == nil {
		return nil, errNoTree
	}
	data, err := json.MarshalIndent(e.nodeToJSON(e.tree.Root(), ""), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type jsonNode struct {
	Kind     string      `json:"kind"`
	Field    string      `json:"field,omitempty"`
	Named    bool        `json:"named,omitempty"`
	Span     jsonSpan    `json:"span"`
	Text     string      `json:"text,omitempty"`
	Error    *jsonError  `json:"error,omitempty"`
	Children []*jsonNode `json:"children,omitempty"`
}

type jsonSpan struct {
	StartByte int         `json:"startByte"`
	EndByte   int         `json:"endByte"`
	Start     parse.Point `json:"start"`
	End       parse.Point `json:"end"`
}

type jsonError struct {
	Message string `json:"message"`
	Missing string `json:"missing,omitempty"`
}

func (e *JSONEncoder) nodeToJSON(n parse.Node, field string) *jsonNode {
	jn := &jsonNode{
		Kind:  n.Kind(),
		Field: field,
		Named: n.IsNamed(),
		Span: jsonSpan{
			StartByte: n.StartByte(),
			EndByte:   n.EndByte(),
			Start:     n.Position(),
			End:       n.EndPosition(),
		},
	}
	if n.IsError() {
		d := diagnose(n)
		jn.Error = &jsonError{Message: d.Message, Missing: d.Missing}
	}
	if n.ChildCount() == 0 {
		jn.Text = n.Text()
		return jn
	}
	for i, child := range n.Children() {
		if child.IsExtra() && !child.IsNamed() && !e.Trivia {
			continue
		}
		jn.Children = append(jn.Children, e.nodeToJSON(child, n.FieldNameForChild(i)))
	}
	return jn
}
