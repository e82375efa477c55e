package parse

import (
	"errors"
	"fmt"
)

// ErrInvalidEdit is matched by every EditError.
var ErrInvalidEdit = errors.New("invalid edit")

// Edit describes a change to a source: the bytes [StartByte, OldEndByte)
// of the old source were replaced, and the replacement occupies
// [StartByte, NewEndByte) of the new source.
type Edit struct {
	StartByte  int `json:"startByte"`
	OldEndByte int `json:"oldEndByte"`
	NewEndByte int `json:"newEndByte"`
}

// Delta is the change in source length.
func (e Edit) Delta() int { return e.NewEndByte - e.OldEndByte }

// InsertedLen is the length of the replacement text.
func (e Edit) InsertedLen() int { return e.NewEndByte - e.StartByte }

func (e Edit) String() string {
	return fmt.Sprintf("[%d,%d)->[%d,%d)", e.StartByte, e.OldEndByte, e.StartByte, e.NewEndByte)
}

// EditError reports an edit that does not fit the trees and sources it is
// applied to.
type EditError struct {
	Edit   Edit
	Reason string
}

func (e *EditError) Error() string {
	return fmt.Sprintf("invalid edit %s: %s", e.Edit, e.Reason)
}

func (e *EditError) Unwrap() error { return ErrInvalidEdit }

func (e Edit) check(oldLen, newLen int) error {
	fail := func(format string, args ...any) error {
		return &EditError{Edit: e, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case e.StartByte < 0:
		return fail("negative start")
	case e.OldEndByte < e.StartByte || e.NewEndByte < e.StartByte:
		return fail("end before start")
	case e.OldEndByte > oldLen:
		return fail("old end %d beyond old source length %d", e.OldEndByte, oldLen)
	case oldLen+e.Delta() != newLen:
		return fail("new source length %d, want %d", newLen, oldLen+e.Delta())
	}
	return nil
}

// Apply replaces [start, end) of src with text and returns the new source
// together with the edit that describes the change.
func Apply(src []byte, start, end int, text string) ([]byte, Edit, error) {
	e := Edit{StartByte: start, OldEndByte: end, NewEndByte: start + len(text)}
	if start < 0 || end < start || end > len(src) {
		return nil, e, &EditError{Edit: e, Reason: fmt.Sprintf("range outside source of length %d", len(src))}
	}
	out := make([]byte, 0, len(src)+e.Delta())
	out = append(out, src[:start]...)
	out = append(out, text...)
	out = append(out, src[end:]...)
	return out, e, nil
}

// reusable collects the top-level statements of old that an edit leaves
// untouched, keyed by their start in the new source. A statement before
// the edit qualifies when the separator after it also ends before the
// edit; a statement after the edit qualifies when the separator before it
// starts after the edited range. Both ends must be at a clean scanner
// state and the statement must be free of errors.
func reusable(old *Tree, e Edit) map[int]*node {
	out := make(map[int]*node)
	root := old.root
	var prevState ScannerState
	pos := 0
	for i, c := range root.children {
		start, end := pos, pos+c.size
		pos = end
		before := prevState
		prevState = c.lastLeaf().state
		if c.is(flagExtra) || !c.is(flagNamed) || c.is(flagHasError) || c.is(flagLeaf) || c.size == 0 {
			continue
		}
		if !isClean(before) || !isClean(c.lastLeaf().state) {
			continue
		}
		switch {
		case end <= e.StartByte:
			sepEnd, ok := separator(root, i, end, 1)
			if ok && sepEnd <= e.StartByte {
				out[start] = c
			}
		case start >= e.OldEndByte:
			sepStart, ok := separator(root, i, start, -1)
			if ok && sepStart >= e.OldEndByte {
				out[start+e.Delta()] = c
			}
		}
	}
	return out
}

// separator finds the nearest anonymous token next to child i of root in
// direction dir, skipping trivia. For dir > 0 it returns the token's end;
// for dir < 0 its start. at is the boundary of child i on that side.
func separator(root *node, i, at, dir int) (int, bool) {
	for j := i + dir; j >= 0 && j < len(root.children); j += dir {
		c := root.children[j]
		if dir > 0 {
			at += c.size
		} else {
			at -= c.size
		}
		if c.is(flagExtra) {
			continue
		}
		return at, c.is(flagLeaf) && !c.is(flagNamed) && !c.is(flagError) && c.size > 0
	}
	return 0, false
}
