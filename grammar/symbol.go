package grammar

import (
	"math/bits"
	"regexp"
)

// Symbol identifies a terminal or nonterminal in compiled tables.
// Terminals come first, so a Symbol below Tables.TerminalCount is a token.
type Symbol uint16

// StateID identifies a parse state.
type StateID uint32

// FieldID identifies a field name. Zero means "no field".
type FieldID uint16

const (
	// End is the end-of-input terminal.
	End Symbol = 0
	// ErrorSymbol is the kind of error nodes.
	ErrorSymbol Symbol = 1
)

// SymbolKind says how a symbol is recognized.
type SymbolKind uint8

const (
	SymbolLiteral SymbolKind = iota
	SymbolPattern
	SymbolExternal
	SymbolNonterminal
	SymbolAuxiliary
	SymbolSpecial
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolLiteral:
		return "literal"
	case SymbolPattern:
		return "pattern"
	case SymbolExternal:
		return "external"
	case SymbolNonterminal:
		return "nonterminal"
	case SymbolAuxiliary:
		return "auxiliary"
	default:
		return "special"
	}
}

// SymbolInfo is the metadata the parser and tree builder need per symbol.
type SymbolInfo struct {
	Name    string
	Kind    SymbolKind
	Named   bool
	Visible bool

	// Supertype marks hidden rules listed in Grammar.Supertypes.
	Supertype bool
	// Extra marks tokens that may appear anywhere (trivia).
	Extra bool
	// Keyword marks literals that are recognized through the word token.
	Keyword bool

	// Text is the literal text of a literal terminal.
	Text string
	// Pattern is the regular expression of a pattern terminal.
	Pattern string
	// LexPrec orders competing tokens before match length does.
	LexPrec int

	re *regexp.Regexp
}

// IsTerminal reports whether the symbol is a token.
func (s SymbolInfo) IsTerminal() bool {
	return s.Kind <= SymbolExternal || s.Kind == SymbolSpecial
}

// Match returns the length of the longest prefix of src (from pos) the
// literal or pattern terminal matches, or -1.
func (s *SymbolInfo) Match(src []byte, pos int) int {
	switch s.Kind {
	case SymbolLiteral:
		if len(src)-pos >= len(s.Text) && string(src[pos:pos+len(s.Text)]) == s.Text {
			return len(s.Text)
		}
	case SymbolPattern:
		if s.re == nil {
			return -1
		}
		if loc := s.re.FindIndex(src[pos:]); loc != nil && loc[0] == 0 {
			return loc[1]
		}
	}
	return -1
}

// SymbolSet is a bitset of symbols.
type SymbolSet []uint64

// NewSymbolSet returns an empty set able to hold n symbols.
func NewSymbolSet(n int) SymbolSet {
	return make(SymbolSet, (n+63)/64)
}

func (s SymbolSet) Has(sym Symbol) bool {
	i := int(sym) / 64
	return i < len(s) && s[i]&(1<<(uint(sym)%64)) != 0
}

func (s SymbolSet) Add(sym Symbol) {
	s[int(sym)/64] |= 1 << (uint(sym) % 64)
}

// Union adds every member of o and reports whether s grew.
func (s SymbolSet) Union(o SymbolSet) bool {
	grew := false
	for i, w := range o {
		if n := s[i] | w; n != s[i] {
			s[i] = n
			grew = true
		}
	}
	return grew
}

func (s SymbolSet) Equal(o SymbolSet) bool {
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s SymbolSet) Empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s SymbolSet) Clone() SymbolSet {
	c := make(SymbolSet, len(s))
	copy(c, s)
	return c
}

func (s SymbolSet) Len() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// Each calls fn for every member in ascending order.
func (s SymbolSet) Each(fn func(Symbol)) {
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(Symbol(i*64 + b))
			w &^= 1 << uint(b)
		}
	}
}

func (s SymbolSet) key() string {
	b := make([]byte, 0, len(s)*8)
	for _, w := range s {
		for i := 0; i < 8; i++ {
			b = append(b, byte(w>>(8*i)))
		}
	}
	return string(b)
}
