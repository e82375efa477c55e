package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhamidi/shtree/parse"
	"github.com/fatih/color"
)

// Diagnostic describes one error node of a tree.
type Diagnostic struct {
	Message string
	// Missing is the name of the token recovery inserted, if any.
	Missing   string
	StartByte int
	EndByte   int
	Start     parse.Point
	End       parse.Point
}

// Diagnose returns a diagnostic for every error node of tree, in document
// order.
func Diagnose(tree *parse.Tree) []Diagnostic {
	var out []Diagnostic
	for _, n := range tree.Errors() {
		out = append(out, diagnose(n))
	}
	return out
}

const maxExcerpt = 24

func diagnose(n parse.Node) Diagnostic {
	d := Diagnostic{
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Start:     n.Position(),
		End:       n.EndPosition(),
	}
	switch {
	case n.IsMissing():
		d.Missing = n.Tree().Language().Tables.Info(n.Symbol()).Name
		d.Message = "missing " + strconv.Quote(d.Missing)
	case n.StartByte() == n.EndByte():
		d.Message = "unexpected end of input"
	default:
		text, _, cut := strings.Cut(n.Text(), "\n")
		if len(text) > maxExcerpt {
			text, cut = text[:maxExcerpt], true
		}
		if cut {
			text += "..."
		}
		d.Message = "unexpected " + strconv.Quote(text)
	}
	return d
}

// Reporter renders diagnostics with the offending source line and a caret
// marker under the error range.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename string, src []byte) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(string(src), "\n")}
}

// Write renders every diagnostic to w.
func (r *Reporter) Write(w io.Writer, diags []Diagnostic) error {
	for _, d := range diags {
		if _, err := io.WriteString(w, r.Format(d)); err != nil {
			return err
		}
	}
	return nil
}

// Format renders a single diagnostic.
func (r *Reporter) Format(d Diagnostic) string {
	var sb strings.Builder
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	line := d.Start.Line + 1
	width := len(strconv.Itoa(line))
	indent := strings.Repeat(" ", width)

	fmt.Fprintf(&sb, "%s: %s\n", red("error"), d.Message)
	fmt.Fprintf(&sb, "%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, line, d.Start.Column+1)
	if d.Start.Line >= len(r.lines) {
		sb.WriteString("\n")
		return sb.String()
	}
	text := r.lines[d.Start.Line]
	fmt.Fprintf(&sb, "%s %s\n", indent, dim("|"))
	fmt.Fprintf(&sb, "%s %s %s\n", bold(fmt.Sprintf("%*d", width, line)), dim("|"), text)

	length := len(text) - d.Start.Column
	if d.End.Line == d.Start.Line {
		length = d.End.Column - d.Start.Column
	}
	length = max(1, length)
	marker := strings.Repeat(" ", d.Start.Column) + red(strings.Repeat("^", length))
	fmt.Fprintf(&sb, "%s %s %s\n\n", indent, dim("|"), marker)
	return sb.String()
}
