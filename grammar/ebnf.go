package grammar

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"
)

// StartProduction is the name of the augmented start rule.
const StartProduction = "_start"

// EBNF renders the flattened grammar in the EBNF dialect of
// golang.org/x/exp/ebnf. Nonterminals are capitalized so that the package
// treats them as syntactic productions; named tokens stay lower case and
// are defined by their literal text or pattern.
func (t *Tables) EBNF() string {
	byLHS := make(map[Symbol][]int)
	var order []Symbol
	for i, p := range t.Productions {
		if _, ok := byLHS[p.LHS]; !ok {
			order = append(order, p.LHS)
		}
		byLHS[p.LHS] = append(byLHS[p.LHS], i)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// %s grammar: %d productions\n\n", t.Name, len(t.Productions))
	usedTokens := make(map[Symbol]bool)
	for _, lhs := range order {
		var alts []string
		empty := false
		for _, pi := range byLHS[lhs] {
			steps := t.Productions[pi].Steps
			if len(steps) == 0 {
				empty = true
				continue
			}
			terms := make([]string, len(steps))
			for i, s := range steps {
				terms[i] = t.ebnfTerm(s.Symbol, usedTokens)
			}
			alts = append(alts, strings.Join(terms, " "))
		}
		body := strings.Join(alts, " | ")
		if empty && body != "" {
			body = "[ " + body + " ]"
		}
		name := t.ebnfName(lhs)
		if body == "" {
			fmt.Fprintf(&b, "%s = .\n", name)
		} else {
			fmt.Fprintf(&b, "%s = %s .\n", name, body)
		}
	}

	b.WriteString("\n")
	for i := 0; i < t.TerminalCount; i++ {
		sym := Symbol(i)
		if !usedTokens[sym] {
			continue
		}
		info := t.Symbols[sym]
		var body string
		switch info.Kind {
		case SymbolPattern:
			body = strconv.Quote("/" + info.Pattern + "/")
		case SymbolLiteral:
			body = strconv.Quote(info.Text)
		default:
			body = strconv.Quote("<" + info.Name + ">")
		}
		fmt.Fprintf(&b, "%s = %s .\n", t.ebnfName(sym), body)
	}
	return b.String()
}

func (t *Tables) ebnfTerm(sym Symbol, used map[Symbol]bool) string {
	info := t.Symbols[sym]
	if int(sym) >= t.TerminalCount {
		return t.ebnfName(sym)
	}
	if info.Kind == SymbolLiteral {
		return strconv.Quote(info.Text)
	}
	if named, ok := t.byName[info.Name]; ok && named == sym && isIdent(info.Name) {
		used[sym] = true
		return t.ebnfName(sym)
	}
	if info.Kind == SymbolPattern {
		return strconv.Quote("/" + info.Pattern + "/")
	}
	return strconv.Quote("<" + info.Name + ">")
}

func (t *Tables) ebnfName(sym Symbol) string {
	name := t.Symbols[sym].Name
	if int(sym) < t.TerminalCount {
		return name
	}
	return productionName(name)
}

// productionName capitalizes a nonterminal name. Leading underscores move
// to the end, since the ebnf package treats any name that does not start
// with an upper case letter as lexical.
func productionName(name string) string {
	trimmed := strings.TrimLeft(name, "_")
	if trimmed == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(trimmed)
	return string(unicode.ToUpper(r)) + trimmed[size:] + strings.Repeat("_", len(name)-len(trimmed))
}

func isIdent(name string) bool {
	for i, r := range name {
		if !(r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return name != ""
}

// Verify parses the EBNF rendering of t with golang.org/x/exp/ebnf and
// checks that every production is defined and reachable from the start.
func Verify(t *Tables) error {
	g, err := ebnf.Parse(t.Name+".ebnf", strings.NewReader(t.EBNF()))
	if err != nil {
		return fmt.Errorf("parse ebnf: %w", err)
	}
	if err := ebnf.Verify(g, productionName(StartProduction)); err != nil {
		return fmt.Errorf("verify ebnf: %w", err)
	}
	return nil
}
