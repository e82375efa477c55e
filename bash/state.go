package bash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidState is returned when decoding a malformed scanner state.
var ErrInvalidState = errors.New("invalid scanner state")

// Mode is the lexical context the scanner is in.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeString
	ModeArithmetic
	ModeBracketExpr
	ModeHeredocBody
)

func (m Mode) String() string {
	switch m {
	case ModeString:
		return "string"
	case ModeArithmetic:
		return "arithmetic"
	case ModeBracketExpr:
		return "bracket-expression"
	case ModeHeredocBody:
		return "heredoc-body"
	default:
		return "normal"
	}
}

// Nesting contexts, as stored on the state's stack.
const (
	nestQuote    = '"'
	nestBacktick = '`'
	nestParen    = '('
	nestArith    = 'a'
	nestBrace    = '{'
	nestBracket  = '['
)

// Heredoc is a here-document whose body has not been read completely.
type Heredoc struct {
	Delimiter string
	// Raw bodies had a quoted delimiter and contain no expansions.
	Raw bool
	// Indent is set for <<-, which strips leading tabs.
	Indent bool
	// Started is set once the line holding the redirect has ended and the
	// body is being read.
	Started bool
	// Follows is set when an earlier heredoc of the same line has just
	// ended; the body begins after the terminator's line break.
	Follows bool
}

// ScannerState is what the scanner carries from one token to the next. It
// is a value: operations return a modified copy and never change the
// receiver.
type ScannerState struct {
	nest     string
	heredocs []Heredoc
}

// Clean reports whether no context is open and no heredoc is pending.
func (s ScannerState) Clean() bool { return s.nest == "" && len(s.heredocs) == 0 }

// Mode returns the lexical context implied by the state.
func (s ScannerState) Mode() Mode {
	if len(s.heredocs) > 0 && s.heredocs[0].Started {
		return ModeHeredocBody
	}
	switch s.top() {
	case nestQuote:
		return ModeString
	case nestArith:
		return ModeArithmetic
	case nestBracket:
		return ModeBracketExpr
	}
	return ModeNormal
}

// QuoteDepth returns how many double quotes are open.
func (s ScannerState) QuoteDepth() int { return strings.Count(s.nest, string(nestQuote)) }

// BacktickDepth returns how many backtick substitutions are open.
func (s ScannerState) BacktickDepth() int { return strings.Count(s.nest, string(nestBacktick)) }

// ArithmeticDepth returns how many (( or $(( are open.
func (s ScannerState) ArithmeticDepth() int { return strings.Count(s.nest, string(nestArith)) }

// BracketDepth returns how many [[ test expressions are open.
func (s ScannerState) BracketDepth() int { return strings.Count(s.nest, string(nestBracket)) }

// Heredocs returns the pending here-documents, oldest first.
func (s ScannerState) Heredocs() []Heredoc { return slices.Clone(s.heredocs) }

func (s ScannerState) top() byte {
	if s.nest == "" {
		return 0
	}
	return s.nest[len(s.nest)-1]
}

func (s ScannerState) push(c byte) ScannerState {
	s.nest += string(c)
	return s
}

// pop closes c if it is the innermost context.
func (s ScannerState) pop(c byte) ScannerState {
	if s.top() == c {
		s.nest = s.nest[:len(s.nest)-1]
	}
	return s
}

func (s ScannerState) toggle(c byte) ScannerState {
	if s.top() == c {
		return s.pop(c)
	}
	return s.push(c)
}

func (s ScannerState) queueHeredoc(h Heredoc) ScannerState {
	s.heredocs = append(slices.Clip(s.heredocs), h)
	return s
}

// startHeredocs marks queued heredocs as started at the end of a line.
func (s ScannerState) startHeredocs() ScannerState {
	if len(s.heredocs) == 0 || s.heredocs[0].Started {
		return s
	}
	s.heredocs = slices.Clone(s.heredocs)
	for i := range s.heredocs {
		s.heredocs[i].Started = true
	}
	return s
}

func (s ScannerState) popHeredoc() ScannerState {
	if len(s.heredocs) == 0 {
		return s
	}
	s.heredocs = s.heredocs[1:len(s.heredocs):len(s.heredocs)]
	if len(s.heredocs) == 0 {
		s.heredocs = nil
	}
	return s
}

// followHeredoc marks the next queued heredoc, if any, as following the
// terminator line of the one just popped.
func (s ScannerState) followHeredoc() ScannerState {
	if len(s.heredocs) == 0 {
		return s
	}
	s.heredocs = slices.Clone(s.heredocs)
	s.heredocs[0].Follows = true
	return s
}

func (s ScannerState) settleHeredoc() ScannerState {
	if len(s.heredocs) == 0 || !s.heredocs[0].Follows {
		return s
	}
	s.heredocs = slices.Clone(s.heredocs)
	s.heredocs[0].Follows = false
	return s
}

const (
	heredocRaw = 1 << iota
	heredocIndent
	heredocStarted
	heredocFollows
)

// MarshalBinary encodes the state. Equal states encode to equal bytes.
func (s ScannerState) MarshalBinary() ([]byte, error) {
	b := binary.AppendUvarint(nil, uint64(len(s.nest)))
	b = append(b, s.nest...)
	b = binary.AppendUvarint(b, uint64(len(s.heredocs)))
	for _, h := range s.heredocs {
		var flags byte
		if h.Raw {
			flags |= heredocRaw
		}
		if h.Indent {
			flags |= heredocIndent
		}
		if h.Started {
			flags |= heredocStarted
		}
		if h.Follows {
			flags |= heredocFollows
		}
		b = append(b, flags)
		b = binary.AppendUvarint(b, uint64(len(h.Delimiter)))
		b = append(b, h.Delimiter...)
	}
	return b, nil
}

// UnmarshalBinary decodes a state produced by MarshalBinary.
func (s *ScannerState) UnmarshalBinary(data []byte) error {
	r := stateReader{data: data}
	nest := r.readBytes()
	count := r.readUvarint()
	if r.err != nil || count > uint64(len(data)) {
		return fmt.Errorf("decode nesting: %w", ErrInvalidState)
	}
	var heredocs []Heredoc
	for range count {
		flags := r.readByte()
		delim := r.readBytes()
		if r.err != nil {
			return fmt.Errorf("decode heredoc %d: %w", len(heredocs), ErrInvalidState)
		}
		heredocs = append(heredocs, Heredoc{
			Delimiter: string(delim),
			Raw:       flags&heredocRaw != 0,
			Indent:    flags&heredocIndent != 0,
			Started:   flags&heredocStarted != 0,
			Follows:   flags&heredocFollows != 0,
		})
	}
	if len(r.data) > 0 {
		return fmt.Errorf("%d trailing bytes: %w", len(r.data), ErrInvalidState)
	}
	*s = ScannerState{nest: string(nest), heredocs: heredocs}
	return nil
}

type stateReader struct {
	data []byte
	err  error
}

func (r *stateReader) readUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.err = ErrInvalidState
		return 0
	}
	r.data = r.data[n:]
	return v
}

func (r *stateReader) readByte() byte {
	if r.err != nil || len(r.data) == 0 {
		r.err = ErrInvalidState
		return 0
	}
	c := r.data[0]
	r.data = r.data[1:]
	return c
}

func (r *stateReader) readBytes() []byte {
	n := r.readUvarint()
	if r.err != nil || n > uint64(len(r.data)) {
		r.err = ErrInvalidState
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}
