package grammar

import (
	"fmt"
	"strings"
)

// NamedRule is a rule definition. Names starting with an underscore are
// hidden: they never produce a node of their own.
type NamedRule struct {
	Name string
	Rule Rule
}

// Def is shorthand for a NamedRule literal.
func Def(name string, r Rule) NamedRule {
	return NamedRule{Name: name, Rule: r}
}

// Grammar is a language definition. The first rule is the start rule.
type Grammar struct {
	Name  string
	Rules []NamedRule

	// Extras may appear between any two tokens (comments, whitespace).
	Extras []Rule

	// Externals are tokens recognized by the language's scanner code rather
	// than by a pattern.
	Externals []Rule

	// Inline rules never produce a node; their children are spliced into
	// the parent.
	Inline []string

	// Supertypes are hidden rules whose alternatives are tagged with the
	// supertype name.
	Supertypes []string

	// Conflicts lists groups of rules whose ambiguity is expected and is
	// resolved at parse time.
	Conflicts [][]string

	// Word is the token used for keyword extraction.
	Word string
}

// Rule returns the definition of name.
func (g *Grammar) Rule(name string) (Rule, bool) {
	for _, r := range g.Rules {
		if r.Name == name {
			return r.Rule, true
		}
	}
	return nil, false
}

// Error is a problem in a grammar definition.
type Error struct {
	Rule    string
	Message string
}

func (e *Error) Error() string {
	if e.Rule == "" {
		return "grammar: " + e.Message
	}
	return fmt.Sprintf("grammar: rule %s: %s", e.Rule, e.Message)
}

// ErrorList collects every problem found while compiling a grammar.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", msgs[0], len(l)-1) + "\n" + strings.Join(msgs[1:], "\n")
}

// Err returns nil when the list is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, "_")
}
