package parse

import (
	"context"
	"sort"

	"github.com/dhamidi/shtree/grammar"
	"github.com/tliron/commonlog"
)

type lexeme struct {
	Token
	next    ScannerState
	ok      bool
	missing bool
}

type lexKey struct {
	pos   int
	mode  int
	state string
}

type failure struct {
	v   *version
	tok lexeme
}

// session is the state of a single parse.
type session struct {
	ctx    context.Context
	lang   *Language
	tables *grammar.Tables
	lexer  *Lexer
	log    commonlog.Logger
	src    []byte
	limit  int

	versions []*version
	failed   []failure
	done     *version
	nextID   int
	peak     int
	cache    map[lexKey]lexeme

	reuse      map[int]*node
	reused     int
	repairedAt int
	err        error
}

func (s *session) newID() int {
	s.nextID++
	return s.nextID
}

// lex returns the token at pos for a version in state, caching by
// position, lex mode and scanner state. Error mode scans with every
// context-free token valid.
func (s *session) lex(pos int, state grammar.StateID, scanner ScannerState, errorMode bool) lexeme {
	key := lexKey{pos: pos, mode: -1, state: stateKey(scanner)}
	valid := s.tables.ErrorValid()
	if !errorMode {
		key.mode = s.tables.LexMode(state)
		valid = s.tables.Valid(state)
	}
	if l, ok := s.cache[key]; ok {
		return l
	}
	tok, next, ok := s.lang.Scanner.Scan(s.src, pos, scanner, valid)
	if tok.Start < pos {
		tok.Start = pos
	}
	if next == nil {
		next = scanner
	}
	l := lexeme{Token: tok, next: next, ok: ok}
	s.cache[key] = l
	return l
}

func (s *session) run() (*node, error) {
	s.versions = []*version{{stack: &stackEntry{}, scanner: s.lang.Scanner.Initial()}}
	s.peak = 1
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.versions) == 0 {
			if s.done != nil {
				break
			}
			f := s.bestFailure()
			s.failed = nil
			v := s.recover(f)
			if s.err != nil {
				return nil, s.err
			}
			s.versions = append(s.versions, v)
			s.condense()
			continue
		}
		s.advance(s.pick())
		if s.err != nil {
			return nil, s.err
		}
		s.condense()
	}
	return s.done.result, nil
}

// pick returns the active version furthest behind in the input.
func (s *session) pick() *version {
	best := s.versions[0]
	for _, v := range s.versions[1:] {
		if v.pos < best.pos || (v.pos == best.pos && v.id < best.id) {
			best = v
		}
	}
	return best
}

func (s *session) advance(v *version) {
	l := s.lex(v.pos, v.state(), v.scanner, false)
	if !l.ok {
		s.fail(v, l)
		return
	}
	s.consume(v, l)
}

// consume feeds one token to v, forking when the table offers more than
// one action.
func (s *session) consume(v *version, l lexeme) {
	s.pushTrivia(v, l.Start)
	if l.Extra && len(s.tables.Actions(v.state(), l.Symbol)) == 0 {
		v.push(v.state(), s.leaf(l))
		v.pos, v.scanner = l.End, l.next
		return
	}
	s.drive(v, l)
}

// drive applies actions to v until l is shifted or v stops. Alternative
// actions fork versions that are queued and driven in turn. Forking stops
// while twice the version limit is alive; condense trims the rest.
func (s *session) drive(v *version, l lexeme) {
	queue := []*version{v}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for {
			acts := s.tables.Actions(v.state(), l.Symbol)
			if len(acts) == 0 {
				s.fail(v, l)
				break
			}
			for _, act := range acts[1:] {
				if len(s.versions) >= 2*s.limit {
					s.log.Debugf("version %d stops forking at %d: %d versions alive", v.id, l.Start, len(s.versions))
					break
				}
				c := *v
				c.id = s.newID()
				s.versions = append(s.versions, &c)
				s.peak = max(s.peak, len(s.versions))
				s.log.Debugf("fork version %d from %d at %d on %q", c.id, v.id, l.Start, s.tables.Info(l.Symbol).Name)
				if s.apply(&c, act, l) {
					queue = append(queue, &c)
				}
			}
			if !s.apply(v, acts[0], l) {
				break
			}
		}
	}
}

// apply performs one action and reports whether the token is still
// waiting to be shifted.
func (s *session) apply(v *version, act grammar.Action, l lexeme) bool {
	switch act.Type {
	case grammar.ActionReduce:
		s.reduce(v, act.Production)
		return true
	case grammar.ActionShift:
		s.shift(v, act.State, l)
	default:
		s.accept(v)
	}
	return false
}

func (s *session) shift(v *version, state grammar.StateID, l lexeme) {
	if n := s.reusable(v, l); n != nil {
		if next, ok := s.tables.Goto(v.state(), n.sym); ok {
			v.push(next, n)
			v.pos = l.Start + n.size
			v.scanner = s.lang.Scanner.Initial()
			s.reused++
			return
		}
	}
	v.push(state, s.leaf(l))
	v.pos, v.scanner = l.End, l.next
}

func (s *session) reusable(v *version, l lexeme) *node {
	if s.reuse == nil || l.missing || len(s.versions) != 1 || !isClean(v.scanner) {
		return nil
	}
	return s.reuse[l.Start]
}

func (s *session) fail(v *version, l lexeme) {
	v.status = statusFailed
	if len(s.failed) > 0 {
		switch furthest := s.failed[0].v.pos; {
		case v.pos < furthest:
			return
		case v.pos > furthest:
			s.failed = s.failed[:0]
		}
	}
	s.failed = append(s.failed, failure{v: v, tok: l})
}

func (s *session) bestFailure() failure {
	best := s.failed[0]
	for _, f := range s.failed[1:] {
		if f.v.better(best.v) {
			best = f
		}
	}
	return best
}

// condense drops finished versions, merges versions that reached the same
// position in the same states and enforces the version limit.
func (s *session) condense() {
	live := s.versions[:0]
	for _, v := range s.versions {
		switch v.status {
		case statusAccepted:
			if s.done == nil || v.better(s.done) {
				s.done = v
			}
		case statusActive:
			merged := false
			for i, o := range live {
				if o.pos == v.pos && stateKey(o.scanner) == stateKey(v.scanner) && sameStates(o.stack, v.stack) {
					if v.better(o) {
						live[i] = v
					}
					s.log.Debugf("merge versions %d and %d at %d", o.id, v.id, v.pos)
					merged = true
					break
				}
			}
			if !merged {
				live = append(live, v)
			}
		}
	}
	if len(live) > s.limit {
		sort.SliceStable(live, func(i, j int) bool { return live[i].better(live[j]) })
		s.log.Debugf("dropping %d versions over the limit of %d", len(live)-s.limit, s.limit)
		live = live[:s.limit]
	}
	clear(s.versions[len(live):])
	s.versions = live
}
