package parse

import (
	"github.com/dhamidi/shtree/grammar"
)

// stackEntry is one cell of a persistent parse stack. Versions forked from
// each other share their common tail.
type stackEntry struct {
	state grammar.StateID
	node  *node
	prev  *stackEntry
}

func (e *stackEntry) extra() bool { return e.node != nil && e.node.is(flagExtra) }

func skipExtras(e *stackEntry) *stackEntry {
	for e != nil && e.extra() {
		e = e.prev
	}
	return e
}

// sameStates reports whether two stacks hold the same sequence of parse
// states, ignoring trivia.
func sameStates(a, b *stackEntry) bool {
	for {
		a, b = skipExtras(a), skipExtras(b)
		if a == b {
			return true
		}
		if a == nil || b == nil || a.state != b.state {
			return false
		}
		a, b = a.prev, b.prev
	}
}

// states returns the parse states of e and the non-extra entries below it,
// bottom first.
func states(e *stackEntry) []grammar.StateID {
	var out []grammar.StateID
	for e = skipExtras(e); e != nil; e = skipExtras(e.prev) {
		out = append(out, e.state)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type versionStatus uint8

const (
	statusActive versionStatus = iota
	statusFailed
	statusAccepted
)

// version is one parse in progress.
type version struct {
	id      int
	status  versionStatus
	stack   *stackEntry
	pos     int
	scanner ScannerState
	cost    int
	dynPrec int
	result  *node
}

func (v *version) state() grammar.StateID { return v.stack.state }

func (v *version) push(state grammar.StateID, n *node) {
	v.stack = &stackEntry{state: state, node: n, prev: v.stack}
}

// better orders versions: fewer errors first, then higher dynamic
// precedence, then the older version.
func (v *version) better(o *version) bool {
	if v.cost != o.cost {
		return v.cost < o.cost
	}
	if v.dynPrec != o.dynPrec {
		return v.dynPrec > o.dynPrec
	}
	return v.id < o.id
}
