// Package parse is a table-driven parsing engine. It explores conflicting
// parse actions with a small, bounded set of stack versions, builds a
// concrete syntax tree that covers every byte of the input, recovers from
// syntax errors and reuses unchanged subtrees when reparsing after an edit.
package parse

import (
	"github.com/dhamidi/shtree/grammar"
)

// Token is a lexeme recognized by a Scanner. End is exclusive. Extra
// tokens (comments) may appear between any two tokens and never take part
// in reductions.
type Token struct {
	Symbol grammar.Symbol
	Start  int
	End    int
	Extra  bool
}

// Len returns the number of bytes the token covers.
func (t Token) Len() int { return t.End - t.Start }

// ScannerState is the state a scanner threads from one token to the next.
// A clean state carries no pending context (no open quote, no queued
// heredoc) and is interchangeable with the initial state.
type ScannerState interface {
	Clean() bool
	MarshalBinary() ([]byte, error)
}

// Scanner recognizes the token at pos. valid holds the terminals the parser
// can use in its current state; the scanner returns one of them, an extra
// token, or ok == false when nothing matches. The scanner may skip trivia
// first, so the returned token can start after pos.
type Scanner interface {
	Initial() ScannerState
	Scan(src []byte, pos int, state ScannerState, valid grammar.SymbolSet) (tok Token, next ScannerState, ok bool)
}

// Language bundles compiled tables with the scanner that feeds them.
type Language struct {
	Name    string
	Tables  *grammar.Tables
	Scanner Scanner
}

// NewLanguage returns a language that uses a TableScanner, which is enough
// for grammars without external tokens.
func NewLanguage(t *grammar.Tables) *Language {
	return &Language{Name: t.Name, Tables: t, Scanner: NewTableScanner(t)}
}

func stateKey(s ScannerState) string {
	if s == nil || s.Clean() {
		return ""
	}
	b, err := s.MarshalBinary()
	if err != nil {
		return "\x00invalid"
	}
	return string(b)
}

func isClean(s ScannerState) bool {
	return s == nil || s.Clean()
}
