// Package grammar defines grammars as trees of rule combinators and compiles
// them into the shared, read-only parse tables used by package parse.
package grammar

import (
	"fmt"
	"strings"
)

// Rule is a node of a grammar definition.
type Rule interface {
	isRule()
	String() string
}

// Assoc is the associativity attached to a precedence.
type Assoc uint8

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

func (a Assoc) String() string {
	switch a {
	case AssocLeft:
		return "left"
	case AssocRight:
		return "right"
	default:
		return "none"
	}
}

// SymbolRule refers to another rule (or external token) by name.
type SymbolRule struct {
	Name string
}

// StringRule matches its value literally.
type StringRule struct {
	Value string
}

// PatternRule matches a regular expression (RE2 syntax).
type PatternRule struct {
	Value string
}

type SeqRule struct {
	Members []Rule
}

type ChoiceRule struct {
	Members []Rule
}

// RepeatRule matches its content zero or more times, or one or more times
// when AtLeastOne is set.
type RepeatRule struct {
	Content    Rule
	AtLeastOne bool
}

// BlankRule matches the empty string.
type BlankRule struct{}

// FieldRule labels every node produced by Content with a field name.
type FieldRule struct {
	Name    string
	Content Rule
}

// AliasRule renames the node produced by Content. An anonymous alias
// (Named == false) produces an unnamed node such as "$".
type AliasRule struct {
	Value   string
	Named   bool
	Content Rule
}

// PrecRule attaches a precedence to Content. Dynamic precedence is applied
// at parse time to choose between competing derivations.
type PrecRule struct {
	Value   int
	Assoc   Assoc
	Dynamic bool
	Content Rule
}

// TokenRule turns Content, which must be a string or pattern, into a single
// lexical token. Any precedence inside it becomes lexical precedence.
type TokenRule struct {
	Content Rule
}

func (SymbolRule) isRule()  {}
func (StringRule) isRule()  {}
func (PatternRule) isRule() {}
func (SeqRule) isRule()     {}
func (ChoiceRule) isRule()  {}
func (RepeatRule) isRule()  {}
func (BlankRule) isRule()   {}
func (FieldRule) isRule()   {}
func (AliasRule) isRule()   {}
func (PrecRule) isRule()    {}
func (TokenRule) isRule()   {}

func (r SymbolRule) String() string  { return r.Name }
func (r StringRule) String() string  { return fmt.Sprintf("%q", r.Value) }
func (r PatternRule) String() string { return "/" + r.Value + "/" }
func (BlankRule) String() string     { return "blank" }

func (r SeqRule) String() string {
	return "seq(" + joinRules(r.Members) + ")"
}

func (r ChoiceRule) String() string {
	return "choice(" + joinRules(r.Members) + ")"
}

func (r RepeatRule) String() string {
	if r.AtLeastOne {
		return "repeat1(" + r.Content.String() + ")"
	}
	return "repeat(" + r.Content.String() + ")"
}

func (r FieldRule) String() string {
	return fmt.Sprintf("field(%s, %s)", r.Name, r.Content)
}

func (r AliasRule) String() string {
	return fmt.Sprintf("alias(%s, %s)", r.Content, r.Value)
}

func (r PrecRule) String() string {
	switch {
	case r.Dynamic:
		return fmt.Sprintf("prec.dynamic(%d, %s)", r.Value, r.Content)
	case r.Assoc == AssocLeft:
		return fmt.Sprintf("prec.left(%d, %s)", r.Value, r.Content)
	case r.Assoc == AssocRight:
		return fmt.Sprintf("prec.right(%d, %s)", r.Value, r.Content)
	}
	return fmt.Sprintf("prec(%d, %s)", r.Value, r.Content)
}

func (r TokenRule) String() string {
	return "token(" + r.Content.String() + ")"
}

func joinRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Sym refers to the rule or external token called name.
func Sym(name string) Rule { return SymbolRule{Name: name} }

// Str matches s literally.
func Str(s string) Rule { return StringRule{Value: s} }

// Pat matches the regular expression re.
func Pat(re string) Rule { return PatternRule{Value: re} }

// Seq matches each member in order.
func Seq(members ...Rule) Rule {
	if len(members) == 1 {
		return members[0]
	}
	return SeqRule{Members: members}
}

// Choice matches exactly one of its members.
func Choice(members ...Rule) Rule {
	if len(members) == 1 {
		return members[0]
	}
	return ChoiceRule{Members: members}
}

// Optional matches r or nothing.
func Optional(r Rule) Rule { return ChoiceRule{Members: []Rule{r, BlankRule{}}} }

// Repeat matches r zero or more times.
func Repeat(r Rule) Rule { return RepeatRule{Content: r} }

// Repeat1 matches r one or more times.
func Repeat1(r Rule) Rule { return RepeatRule{Content: r, AtLeastOne: true} }

// Blank matches the empty string.
func Blank() Rule { return BlankRule{} }

// Field labels r with name.
func Field(name string, r Rule) Rule { return FieldRule{Name: name, Content: r} }

// Alias renames the node produced by r to a named kind.
func Alias(r Rule, name string) Rule { return AliasRule{Value: name, Named: true, Content: r} }

// AliasAnon renames the node produced by r to an anonymous kind.
func AliasAnon(r Rule, name string) Rule { return AliasRule{Value: name, Content: r} }

// Prec sets the static precedence of r.
func Prec(n int, r Rule) Rule { return PrecRule{Value: n, Content: r} }

// PrecLeft sets the static precedence of r and makes it left associative.
func PrecLeft(n int, r Rule) Rule { return PrecRule{Value: n, Assoc: AssocLeft, Content: r} }

// PrecRight sets the static precedence of r and makes it right associative.
func PrecRight(n int, r Rule) Rule { return PrecRule{Value: n, Assoc: AssocRight, Content: r} }

// PrecDynamic sets the dynamic precedence of every production derived from r.
func PrecDynamic(n int, r Rule) Rule { return PrecRule{Value: n, Dynamic: true, Content: r} }

// Token makes r a single lexical token.
func Token(r Rule) Rule { return TokenRule{Content: r} }

// CommaSep1 matches one or more r separated by commas.
func CommaSep1(r Rule) Rule { return Seq(r, Repeat(Seq(Str(","), r))) }

// CommaSep matches zero or more r separated by commas.
func CommaSep(r Rule) Rule { return Optional(CommaSep1(r)) }

// Strs is a choice of string literals.
func Strs(values ...string) Rule {
	members := make([]Rule, len(values))
	for i, v := range values {
		members[i] = Str(v)
	}
	return Choice(members...)
}
