package parse

import (
	"slices"
	"unicode/utf8"

	"github.com/dhamidi/shtree/grammar"
)

const (
	// maxMissing is how many tokens recovery may insert in a row.
	maxMissing = 2
	// viableBudget bounds the actions one viability check may simulate.
	viableBudget = 256
)

// recover resumes a failed version. It first tries to insert up to
// maxMissing tokens so the failing token fits; otherwise it wraps input in
// an error node until a token fits some state further down the stack.
func (s *session) recover(f failure) *version {
	v := f.v
	v.status = statusActive
	if f.tok.ok && v.pos != s.repairedAt && s.repair(v, f.tok) {
		s.repairedAt = v.pos
		s.consume(v, f.tok)
		return v
	}
	s.skip(v, f.tok)
	return v
}

// viable reports whether sym can be shifted or accepted from the given
// stack of states, following reductions.
func (s *session) viable(st []grammar.StateID, sym grammar.Symbol) bool {
	budget := viableBudget
	_, ok := s.feed(st, sym, &budget)
	return ok
}

// feed returns the states after sym has been shifted from st.
func (s *session) feed(st []grammar.StateID, sym grammar.Symbol, budget *int) ([]grammar.StateID, bool) {
	*budget--
	if *budget < 0 || len(st) == 0 {
		return nil, false
	}
	for _, act := range s.tables.Actions(st[len(st)-1], sym) {
		switch act.Type {
		case grammar.ActionShift:
			return append(slices.Clip(st), act.State), true
		case grammar.ActionAccept:
			return st, true
		case grammar.ActionReduce:
			p := &s.tables.Productions[act.Production]
			if len(p.Steps) >= len(st) {
				continue
			}
			base := st[:len(st)-len(p.Steps)]
			next, ok := s.tables.Goto(base[len(base)-1], p.LHS)
			if !ok {
				continue
			}
			if out, ok := s.feed(append(slices.Clip(base), next), sym, budget); ok {
				return out, true
			}
		}
	}
	return nil, false
}

// insertable returns the literal tokens that could be missing in state.
func (s *session) insertable(state grammar.StateID) []grammar.Symbol {
	var out []grammar.Symbol
	s.tables.Valid(state).Each(func(sym grammar.Symbol) {
		info := s.tables.Info(sym)
		if sym != grammar.End && info.Kind == grammar.SymbolLiteral && !info.Extra {
			out = append(out, sym)
		}
	})
	return out
}

func (s *session) repair(v *version, l lexeme) bool {
	st := states(v.stack)
	var search func(st []grammar.StateID, depth int) []grammar.Symbol
	search = func(st []grammar.StateID, depth int) []grammar.Symbol {
		var next [][]grammar.StateID
		cands := s.insertable(st[len(st)-1])
		for _, m := range cands {
			budget := viableBudget
			after, ok := s.feed(st, m, &budget)
			if !ok {
				next = append(next, nil)
				continue
			}
			next = append(next, after)
			if s.viable(after, l.Symbol) {
				return []grammar.Symbol{m}
			}
		}
		if depth == maxMissing {
			return nil
		}
		for i, m := range cands {
			if next[i] == nil {
				continue
			}
			if rest := search(next[i], depth+1); rest != nil {
				return append([]grammar.Symbol{m}, rest...)
			}
		}
		return nil
	}
	missing := search(st, 1)
	if missing == nil {
		return false
	}
	for _, m := range missing {
		s.log.Debugf("version %d: inserting missing %q at %d", v.id, s.tables.Info(m).Name, v.pos)
		v.cost++
		s.drive(v, lexeme{Token: Token{Symbol: m, Start: v.pos, End: v.pos}, next: v.scanner, ok: true, missing: true})
	}
	return true
}

// skip wraps the failing token, and as many following tokens as needed,
// in an error node. Recovery ends at the nearest stack entry whose state
// can take the next token; the entries above it move into the error node,
// which is then kept as trivia on top of that entry.
func (s *session) skip(v *version, l lexeme) {
	start := v.pos
	var skipped []*node
	pos, scanner := v.pos, v.scanner
	emit := func(n *node) {
		skipped = append(skipped, n)
		pos += n.size
	}
	trivia := func(end int) {
		if end > pos {
			for _, tok := range s.lexer.Trivia(s.src, pos, end) {
				emit(newLeaf(s.tables, tok.Symbol, tok.Len(), true, scanner))
			}
		}
	}

	cur := l
	for {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return
		}
		switch {
		case !cur.ok:
			at := max(cur.Start, pos)
			if at >= len(s.src) {
				at = pos
			}
			trivia(at)
			if pos < len(s.src) {
				_, size := utf8.DecodeRune(s.src[pos:])
				n := newLeaf(s.tables, grammar.ErrorSymbol, size, false, nil)
				n.kind = string(s.src[pos : pos+size])
				n.flags &^= flagNamed
				emit(n)
				v.cost++
			}
		case cur.Symbol == grammar.End:
			trivia(cur.Start)
		default:
			trivia(cur.Start)
			if cur.Len() > 0 {
				emit(s.leaf(cur))
				if !cur.Extra {
					v.cost++
				}
			}
			scanner = cur.next
		}

		if e := s.resume(v, pos, scanner); e != nil {
			s.wrap(v, e, skipped)
			v.pos, v.scanner = pos, scanner
			s.log.Debugf("version %d: error recovery skipped %d..%d", v.id, start, pos)
			return
		}
		if pos >= len(s.src) {
			s.abandon(v, skipped)
			return
		}
		cur = s.lex(pos, 0, scanner, true)
	}
}

// resume returns the topmost stack entry whose state accepts the token at
// pos, or nil.
func (s *session) resume(v *version, pos int, scanner ScannerState) *stackEntry {
	for e := skipExtras(v.stack); e != nil; e = skipExtras(e.prev) {
		l := s.lex(pos, e.state, scanner, false)
		if !l.ok || l.Extra {
			continue
		}
		if s.viable(states(e), l.Symbol) {
			return e
		}
	}
	return nil
}

// wrap moves the stack entries above e and the skipped nodes into an error
// node pushed as trivia on e.
func (s *session) wrap(v *version, e *stackEntry, skipped []*node) {
	var popped []*node
	for x := v.stack; x != e; x = x.prev {
		popped = append(popped, x.node)
	}
	slices.Reverse(popped)
	v.stack = e
	if len(popped) == 0 && len(skipped) == 0 {
		return
	}
	errNode := newError(grammar.ErrorSymbol)
	errNode.flags |= flagExtra
	for _, n := range append(popped, skipped...) {
		appendSpliced(errNode, n)
	}
	v.cost++
	v.push(e.state, errNode)
}

// appendSpliced adds n to an error node. Hidden interior nodes are
// replaced by their children so that nothing parsed before the error
// becomes invisible.
func appendSpliced(errNode, n *node) {
	if n.is(flagLeaf) || n.is(flagVisible) || n.is(flagError) {
		errNode.appendChild(n, 0)
		return
	}
	for _, c := range n.children {
		appendSpliced(errNode, c)
	}
}

// abandon ends a parse no state can finish by placing everything parsed so
// far in a single error node under the root.
func (s *session) abandon(v *version, skipped []*node) {
	var items []*node
	for e := v.stack; e.node != nil; e = e.prev {
		items = append(items, e.node)
	}
	slices.Reverse(items)
	errNode := newError(grammar.ErrorSymbol)
	for _, n := range append(items, skipped...) {
		appendSpliced(errNode, n)
	}
	v.cost++
	root := newInterior(s.tables, s.tables.Start)
	root.appendChild(errNode, 0)
	v.result = root
	v.status = statusAccepted
	v.pos = len(s.src)
}
