package query

import (
	"slices"

	"github.com/dhamidi/shtree/parse"
)

// match reports whether n matches p, returning caps extended with the
// captures p binds.
func (p *pattern) match(n parse.Node, caps []Capture) ([]Capture, bool) {
	if len(p.alts) > 0 {
		for _, alt := range p.alts {
			if out, ok := alt.match(n, caps); ok {
				return p.bind(n, out), true
			}
		}
		return nil, false
	}
	if !p.accepts(n) {
		return nil, false
	}
	caps = p.bind(n, caps)
	if len(p.children) == 0 {
		return caps, true
	}
	children := n.Children()
	fields := make([]string, len(children))
	for i := range children {
		fields[i] = n.FieldNameForChild(i)
	}
	s := sequence{children: children, fields: fields, pats: p.children}
	return s.match(0, 0, caps)
}

func (p *pattern) accepts(n parse.Node) bool {
	switch {
	case p.literal:
		return !n.IsNamed() && !n.IsMissing() && n.Kind() == p.kind
	case !p.named:
		return true
	case p.kind == "ERROR":
		return n.IsError() && !n.IsMissing()
	case p.kind == "_":
		return n.IsNamed()
	}
	return n.IsNamed() && (n.Kind() == p.kind || n.HasSupertype(p.kind))
}

func (p *pattern) bind(n parse.Node, caps []Capture) []Capture {
	if len(p.captures) == 0 {
		return caps
	}
	caps = slices.Clip(caps)
	for _, name := range p.captures {
		caps = append(caps, Capture{Name: name, Node: n})
	}
	return caps
}

// sequence matches child patterns against an ordered list of children.
// Children that no pattern claims are skipped.
type sequence struct {
	children []parse.Node
	fields   []string
	pats     []*pattern
}

func (s *sequence) match(ci, pi int, caps []Capture) ([]Capture, bool) {
	if pi == len(s.pats) {
		return caps, true
	}
	p := s.pats[pi]
	switch p.quant {
	case zeroOrOne:
		if out, ok := s.one(ci, pi, pi+1, caps); ok {
			return out, true
		}
		return s.match(ci, pi+1, caps)
	case zeroOrMore:
		return s.repeat(ci, pi, caps)
	case oneOrMore:
		return s.one(ci, pi, -1, caps)
	}
	return s.one(ci, pi, pi+1, caps)
}

// one matches pattern pi against some child at or after ci, then continues
// with pattern next, or with the repetition of pi when next is negative.
func (s *sequence) one(ci, pi, next int, caps []Capture) ([]Capture, bool) {
	p := s.pats[pi]
	for j := ci; j < len(s.children); j++ {
		if p.field != "" && s.fields[j] != p.field {
			continue
		}
		bound, ok := p.match(s.children[j], caps)
		if !ok {
			continue
		}
		var out []Capture
		if next < 0 {
			out, ok = s.repeat(j+1, pi, bound)
		} else {
			out, ok = s.match(j+1, next, bound)
		}
		if ok {
			return out, true
		}
	}
	return nil, false
}

// repeat matches pattern pi as many times as possible, then the rest.
func (s *sequence) repeat(ci, pi int, caps []Capture) ([]Capture, bool) {
	if out, ok := s.one(ci, pi, -1, caps); ok {
		return out, true
	}
	return s.match(ci, pi+1, caps)
}

// satisfied evaluates the predicates of a top-level pattern.
func (p topPattern) satisfied(caps []Capture) bool {
	for _, pr := range p.predicates {
		if !pr.holds(caps) {
			return false
		}
	}
	return true
}

func (pr predicate) holds(caps []Capture) bool {
	var subjects []parse.Node
	for _, c := range caps {
		if c.Name == pr.args[0].capture {
			subjects = append(subjects, c.Node)
		}
	}
	for _, n := range subjects {
		if !pr.test(n.Text(), caps) {
			return false
		}
	}
	return true
}

func (pr predicate) test(text string, caps []Capture) bool {
	switch pr.name {
	case "#eq?":
		return pr.equal(text, caps)
	case "#not-eq?":
		return !pr.equal(text, caps)
	case "#match?":
		return pr.re.MatchString(text)
	case "#not-match?":
		return !pr.re.MatchString(text)
	case "#any-of?":
		return pr.anyOf(text)
	case "#not-any-of?":
		return !pr.anyOf(text)
	}
	return false
}

func (pr predicate) equal(text string, caps []Capture) bool {
	arg := pr.args[1]
	if arg.capture == "" {
		return text == arg.value
	}
	for _, c := range caps {
		if c.Name == arg.capture {
			return c.Node.Text() == text
		}
	}
	return false
}

func (pr predicate) anyOf(text string) bool {
	for _, a := range pr.args[1:] {
		if a.value == text {
			return true
		}
	}
	return false
}
