package parse

import (
	"github.com/dhamidi/shtree/grammar"
)

// Lexer recognizes the literal and pattern terminals of a grammar. Among
// the valid terminals matching at a position it prefers higher lexical
// precedence, then the longer match, then literals over patterns, then
// the terminal declared first. When the grammar's word token is valid,
// keywords are only recognized as whole words.
type Lexer struct {
	tables   *grammar.Tables
	keywords map[string][]grammar.Symbol
	skip     []grammar.Symbol
	comments []grammar.Symbol
}

// NewLexer prepares a lexer for t.
func NewLexer(t *grammar.Tables) *Lexer {
	l := &Lexer{tables: t, keywords: make(map[string][]grammar.Symbol)}
	for i := 0; i < t.TerminalCount; i++ {
		info := t.Info(grammar.Symbol(i))
		if info.Keyword {
			l.keywords[info.Text] = append(l.keywords[info.Text], grammar.Symbol(i))
		}
	}
	for _, sym := range t.Extras() {
		info := t.Info(sym)
		if info.Kind != grammar.SymbolPattern && info.Kind != grammar.SymbolLiteral {
			continue
		}
		if info.Named {
			l.comments = append(l.comments, sym)
		} else {
			l.skip = append(l.skip, sym)
		}
	}
	return l
}

func (l *Lexer) better(sym grammar.Symbol, n int, best grammar.Symbol, bestLen int) bool {
	if bestLen < 0 {
		return true
	}
	a, b := l.tables.Info(sym), l.tables.Info(best)
	if a.LexPrec != b.LexPrec {
		return a.LexPrec > b.LexPrec
	}
	if n != bestLen {
		return n > bestLen
	}
	if (a.Kind == grammar.SymbolLiteral) != (b.Kind == grammar.SymbolLiteral) {
		return a.Kind == grammar.SymbolLiteral
	}
	return sym < best
}

// Match returns the best valid token starting exactly at pos. At the end
// of the input it returns the End token.
func (l *Lexer) Match(src []byte, pos int, valid grammar.SymbolSet) (Token, bool) {
	if pos >= len(src) {
		return Token{Symbol: grammar.End, Start: len(src), End: len(src)}, true
	}
	t := l.tables
	word := t.Word
	useWord := word != grammar.End && valid.Has(word)

	best, bestLen := grammar.End, -1
	if useWord {
		if n := t.Info(word).Match(src, pos); n > 0 {
			sym := word
			for _, kw := range l.keywords[string(src[pos:pos+n])] {
				if valid.Has(kw) {
					sym = kw
					break
				}
			}
			best, bestLen = sym, n
		}
	}
	valid.Each(func(sym grammar.Symbol) {
		if int(sym) >= t.TerminalCount || sym == word {
			return
		}
		info := t.Info(sym)
		if info.Kind != grammar.SymbolLiteral && info.Kind != grammar.SymbolPattern {
			return
		}
		if useWord && info.Keyword {
			return
		}
		n := info.Match(src, pos)
		if n <= 0 {
			return
		}
		if l.better(sym, n, best, bestLen) {
			best, bestLen = sym, n
		}
	})
	if bestLen <= 0 {
		return Token{}, false
	}
	return Token{Symbol: best, Start: pos, End: pos + bestLen, Extra: t.Info(best).Extra}, true
}

// Comment returns a named extra token (such as a comment) at pos.
func (l *Lexer) Comment(src []byte, pos int) (Token, bool) {
	best, bestLen := grammar.End, -1
	for _, sym := range l.comments {
		if n := l.tables.Info(sym).Match(src, pos); n > 0 && l.better(sym, n, best, bestLen) {
			best, bestLen = sym, n
		}
	}
	if bestLen <= 0 {
		return Token{}, false
	}
	return Token{Symbol: best, Start: pos, End: pos + bestLen, Extra: true}, true
}

// SkipTrivia advances pos past anonymous extras such as whitespace.
func (l *Lexer) SkipTrivia(src []byte, pos int) int {
	for pos < len(src) {
		n := 0
		for _, sym := range l.skip {
			n = max(n, l.tables.Info(sym).Match(src, pos))
		}
		if n <= 0 {
			return pos
		}
		pos += n
	}
	return pos
}

// Trivia splits src[start:end], a run of skipped bytes, into extra tokens.
// Bytes no extra matches become single-byte tokens of the first extra.
func (l *Lexer) Trivia(src []byte, start, end int) []Token {
	var out []Token
	gap := src[:end]
	for pos := start; pos < end; {
		best, bestLen := grammar.End, 0
		for _, sym := range l.skip {
			if n := l.tables.Info(sym).Match(gap, pos); n > bestLen {
				best, bestLen = sym, n
			}
		}
		for _, sym := range l.comments {
			if n := l.tables.Info(sym).Match(gap, pos); n > bestLen {
				best, bestLen = sym, n
			}
		}
		if bestLen == 0 {
			if len(l.skip) > 0 {
				best = l.skip[0]
			} else {
				best = grammar.ErrorSymbol
			}
			bestLen = 1
		}
		out = append(out, Token{Symbol: best, Start: pos, End: pos + bestLen, Extra: true})
		pos += bestLen
	}
	return out
}

type cleanState struct{}

func (cleanState) Clean() bool                    { return true }
func (cleanState) MarshalBinary() ([]byte, error) { return nil, nil }

// TableScanner is a stateless Scanner that recognizes only the grammar's
// literal and pattern terminals.
type TableScanner struct {
	lexer *Lexer
}

// NewTableScanner returns a TableScanner for t.
func NewTableScanner(t *grammar.Tables) *TableScanner {
	return &TableScanner{lexer: NewLexer(t)}
}

func (s *TableScanner) Initial() ScannerState { return cleanState{} }

func (s *TableScanner) Scan(src []byte, pos int, state ScannerState, valid grammar.SymbolSet) (Token, ScannerState, bool) {
	pos = s.lexer.SkipTrivia(src, pos)
	if tok, ok := s.lexer.Match(src, pos, valid); ok {
		return tok, state, true
	}
	if tok, ok := s.lexer.Comment(src, pos); ok {
		return tok, state, true
	}
	return Token{Start: pos, End: pos}, state, false
}
