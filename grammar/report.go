package grammar

import (
	"strings"
)

// Terminal describes a token in a Report.
type Terminal struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Anonymous bool   `json:"anonymous"`
	Pattern   string `json:"pattern,omitempty"`
	Prec      int    `json:"prec,omitempty"`
	Keyword   bool   `json:"keyword,omitempty"`
	Extra     bool   `json:"extra,omitempty"`
}

// Conflict is a table cell that had more than one action before
// precedence was applied.
type Conflict struct {
	State      int      `json:"state"`
	Lookahead  string   `json:"lookahead"`
	Kind       string   `json:"kind"`
	Shift      bool     `json:"shift"`
	Reductions []string `json:"reductions"`
	Rules      []string `json:"rules"`
	Resolved   bool     `json:"resolved"`
	Declared   bool     `json:"declared"`
}

// Report summarizes a compiled grammar.
type Report struct {
	Grammar     string     `json:"grammar"`
	States      int        `json:"states"`
	LexModes    int        `json:"lex_modes"`
	Terminals   []Terminal `json:"terminals"`
	Productions []string   `json:"productions"`
	Conflicts   []Conflict `json:"conflicts"`
}

// Unresolved returns the conflicts left for the parser to fork on.
func (r *Report) Unresolved() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

// Undeclared returns the unresolved conflicts between rules that the
// grammar does not list as expected.
func (r *Report) Undeclared() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if !c.Resolved && !c.Declared {
			out = append(out, c)
		}
	}
	return out
}

// Detailed returns a copy of the report with terminals and productions
// filled in.
func (t *Tables) Detailed() *Report {
	r := *t.report
	r.LexModes = len(t.valid)
	r.Terminals = make([]Terminal, 0, t.TerminalCount)
	for i := 0; i < t.TerminalCount; i++ {
		info := t.Symbols[i]
		r.Terminals = append(r.Terminals, Terminal{
			Number:    i,
			Name:      info.Name,
			Kind:      info.Kind.String(),
			Anonymous: !info.Named,
			Pattern:   info.Pattern,
			Prec:      info.LexPrec,
			Keyword:   info.Keyword,
			Extra:     info.Extra,
		})
	}
	r.Productions = make([]string, len(t.Productions))
	for i := range t.Productions {
		r.Productions[i] = t.ProductionString(i)
	}
	return &r
}

// ProductionString renders a production as "lhs → a b c".
func (t *Tables) ProductionString(i int) string {
	p := t.Productions[i]
	var b strings.Builder
	b.WriteString(t.Symbols[p.LHS].Name)
	b.WriteString(" →")
	if len(p.Steps) == 0 {
		b.WriteString(" ε")
	}
	for _, s := range p.Steps {
		b.WriteByte(' ')
		if s.Field != 0 {
			b.WriteString(t.Fields[s.Field])
			b.WriteByte(':')
		}
		info := t.Symbols[s.Symbol]
		if info.Kind == SymbolLiteral {
			b.WriteString(`"` + info.Text + `"`)
		} else {
			b.WriteString(info.Name)
		}
		if s.Alias != "" {
			b.WriteString("@" + s.Alias)
		}
	}
	return b.String()
}
