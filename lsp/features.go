package lsp

import (
	"slices"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/format"
	"github.com/dhamidi/shtree/parse"
	"github.com/dhamidi/shtree/query"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const diagnosticSource = "shtree"

// diagnostics converts the error nodes of tree. A positive limit caps the
// number returned.
func diagnostics(tree *parse.Tree, limit int) []protocol.Diagnostic {
	diags := format.Diagnose(tree)
	if limit > 0 && len(diags) > limit {
		diags = diags[:limit]
	}
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: positionOf(tree, d.StartByte),
				End:   positionOf(tree, d.EndByte),
			},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

var symbolQuery = query.MustCompile(bash.Language(), `
(function_definition name: (word) @name) @function
(variable_assignment name: (_) @name) @variable
`)

type symbol struct {
	protocol.DocumentSymbol
	end      int
	children []*symbol
}

func (s *symbol) document() protocol.DocumentSymbol {
	out := s.DocumentSymbol
	for _, c := range s.children {
		out.Children = append(out.Children, c.document())
	}
	return out
}

// documentSymbols lists function definitions and variable assignments.
// Symbols defined inside a function body become its children.
func documentSymbols(tree *parse.Tree) []protocol.DocumentSymbol {
	var roots []*symbol
	var open []*symbol
	for m := range symbolQuery.Matches(tree) {
		name, _ := m.Node("name")
		kind := protocol.SymbolKindVariable
		def, _ := m.Node("variable")
		if m.Pattern == 0 {
			kind = protocol.SymbolKindFunction
			def, _ = m.Node("function")
		}
		sym := &symbol{
			DocumentSymbol: protocol.DocumentSymbol{
				Name:           name.Text(),
				Kind:           kind,
				Range:          rangeOf(def),
				SelectionRange: rangeOf(name),
			},
			end: def.EndByte(),
		}
		for len(open) > 0 && open[len(open)-1].end <= def.StartByte() {
			open = open[:len(open)-1]
		}
		if len(open) == 0 {
			roots = append(roots, sym)
		} else {
			parent := open[len(open)-1]
			parent.children = append(parent.children, sym)
		}
		if kind == protocol.SymbolKindFunction {
			open = append(open, sym)
		}
	}
	out := make([]protocol.DocumentSymbol, 0, len(roots))
	for _, s := range roots {
		out = append(out, s.document())
	}
	return out
}

var foldable = []string{
	"compound_statement",
	"subshell",
	"do_group",
	"for_statement",
	"c_style_for_statement",
	"while_statement",
	"if_statement",
	"elif_clause",
	"else_clause",
	"case_statement",
	"case_item",
	"heredoc_body",
	"command_substitution",
}

// foldingRanges returns a range for every compound node spanning several
// lines and, when comments is set, for runs of two or more comment lines.
// Only the outermost node starting on a line folds.
func foldingRanges(tree *parse.Tree, comments bool) []protocol.FoldingRange {
	var out []protocol.FoldingRange
	folded := make(map[int]bool)
	var run []parse.Node
	flush := func() {
		if len(run) > 1 {
			kind := string(protocol.FoldingRangeKindComment)
			out = append(out, protocol.FoldingRange{
				StartLine: protocol.UInteger(run[0].Position().Line),
				EndLine:   protocol.UInteger(run[len(run)-1].Position().Line),
				Kind:      &kind,
			})
		}
		run = run[:0]
	}
	for n := range tree.Nodes() {
		if n.Kind() == "comment" && n.IsExtra() {
			if !comments {
				continue
			}
			if len(run) > 0 && run[len(run)-1].Position().Line+1 != n.Position().Line {
				flush()
			}
			run = append(run, n)
			continue
		}
		if !n.IsNamed() || !slices.Contains(foldable, n.Kind()) {
			continue
		}
		start, end := n.Position(), n.EndPosition()
		last := end.Line
		if end.Column == 0 {
			last--
		}
		if last <= start.Line || folded[start.Line] {
			continue
		}
		folded[start.Line] = true
		kind := string(protocol.FoldingRangeKindRegion)
		out = append(out, protocol.FoldingRange{
			StartLine: protocol.UInteger(start.Line),
			EndLine:   protocol.UInteger(last),
			Kind:      &kind,
		})
	}
	flush()
	slices.SortStableFunc(out, func(a, b protocol.FoldingRange) int {
		return int(a.StartLine) - int(b.StartLine)
	})
	return out
}
