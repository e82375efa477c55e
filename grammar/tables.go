package grammar

import (
	"slices"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("shtree.grammar")

// ActionType is the kind of a parse action.
type ActionType uint8

const (
	ActionShift ActionType = iota
	ActionReduce
	ActionAccept
)

func (t ActionType) String() string {
	switch t {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	default:
		return "accept"
	}
}

// Action is one entry of a parse table cell. Cells holding more than one
// action are conflicts left for the parser to explore in parallel.
type Action struct {
	Type       ActionType
	State      StateID
	Production int
}

// Tables are the compiled, immutable parse tables of a grammar. They are
// safe for concurrent use by any number of parsers.
type Tables struct {
	Name          string
	Symbols       []SymbolInfo
	TerminalCount int
	Fields        []string
	Productions   []Production

	// Start is the grammar's start rule; the augmented production that
	// accepts it is Productions[AcceptProduction].
	Start            Symbol
	AcceptProduction int
	// Word is the keyword-extraction token, or End when the grammar has none.
	Word Symbol

	actions  []map[Symbol][]Action
	gotos    []map[Symbol]StateID
	lexModes []int
	valid    []SymbolSet
	errValid SymbolSet
	extras   []Symbol

	origins    []string
	byName     map[string]Symbol
	fieldIDs   map[string]FieldID
	supertypes map[string][]string
	kinds      map[string]bool
	report     *Report
}

// Compile flattens g, builds its LR(1) automaton and resolves every conflict
// that static precedence decides.
func Compile(g *Grammar) (*Tables, error) {
	if len(g.Rules) == 0 {
		return nil, &Error{Message: "grammar has no rules"}
	}
	c := newCompiler(g)
	c.declareTerminals()
	c.declareNonterminals()
	extras := c.markExtras()
	c.flatten()
	c.compilePatterns()
	if err := c.errs.Err(); err != nil {
		return nil, err
	}

	start := c.byName[g.Rules[0].Name]
	augmented := c.addSymbol(SymbolInfo{Name: StartProduction, Kind: SymbolAuxiliary}, g.Rules[0].Name)
	c.productions = append(c.productions, Production{LHS: augmented, Steps: []Step{{Symbol: start}}})
	acceptProd := len(c.productions) - 1

	a := newAutomaton(c.productions, c.terminalCount, len(c.symbols))
	a.context = c.contextTokens()
	a.build(acceptProd)
	states := a.prune()

	t := &Tables{
		Name:             g.Name,
		Symbols:          c.symbols,
		TerminalCount:    c.terminalCount,
		Fields:           c.fields,
		Productions:      c.productions,
		Start:            start,
		AcceptProduction: acceptProd,
		Word:             End,
		extras:           extras,
		origins:          c.origins,
		byName:           make(map[string]Symbol),
		fieldIDs:         c.fieldIDs,
		kinds:            make(map[string]bool),
	}
	if g.Word != "" {
		t.Word = c.byName[g.Word]
	}
	for i, info := range t.Symbols {
		if _, ok := t.byName[info.Name]; !ok {
			t.byName[info.Name] = Symbol(i)
		}
		if info.Visible {
			t.kinds[info.Name] = true
		}
	}
	for name := range c.aliases {
		t.kinds[name] = true
	}

	t.buildActions(a, states, declaredConflicts(g))
	t.buildLexModes()
	t.buildSupertypes()

	log.Debugf("compiled grammar %s: %d symbols, %d productions, %d states, %d lex modes",
		g.Name, len(t.Symbols), len(t.Productions), len(states), len(t.valid))
	return t, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// grammars defined in Go source.
func MustCompile(g *Grammar) *Tables {
	t, err := Compile(g)
	if err != nil {
		panic(err)
	}
	return t
}

func declaredConflicts(g *Grammar) [][]string {
	out := make([][]string, len(g.Conflicts))
	for i, group := range g.Conflicts {
		out[i] = slices.Clone(group)
		slices.Sort(out[i])
	}
	return out
}

type shiftInfo struct {
	prec  int
	found bool
	rules []string
	// owners are the rules of the kernel items that continue with the
	// shifted token.
	owners []string
}

func (t *Tables) buildActions(a *automaton, states []*lrState, declared [][]string) {
	t.actions = make([]map[Symbol][]Action, len(states))
	t.gotos = make([]map[Symbol]StateID, len(states))
	t.report = &Report{Grammar: t.Name, States: len(states)}

	for id, st := range states {
		items, las := a.closure(st.kernel, st.la)
		actions := make(map[Symbol][]Action)
		gotos := make(map[Symbol]StateID)
		shiftPrec := make(map[Symbol]*shiftInfo)

		for sym, target := range st.trans {
			if int(sym) < t.TerminalCount {
				actions[sym] = append(actions[sym], Action{Type: ActionShift, State: StateID(target)})
			} else {
				gotos[sym] = StateID(target)
			}
		}
		for i, it := range items {
			p := &t.Productions[it.prod]
			if int(it.dot) < len(p.Steps) {
				step := p.Steps[it.dot]
				if int(step.Symbol) >= t.TerminalCount {
					continue
				}
				si := shiftPrec[step.Symbol]
				if si == nil {
					si = &shiftInfo{}
					shiftPrec[step.Symbol] = si
				}
				if !si.found || step.Prec > si.prec {
					si.prec = step.Prec
				}
				si.found = true
				si.rules = appendUnique(si.rules, t.origins[p.LHS])
				continue
			}
			las[i].Each(func(sym Symbol) {
				if int(it.prod) == t.AcceptProduction {
					actions[sym] = append(actions[sym], Action{Type: ActionAccept})
					return
				}
				act := Action{Type: ActionReduce, Production: int(it.prod)}
				if !slices.Contains(actions[sym], act) {
					actions[sym] = append(actions[sym], act)
				}
			})
		}

		for _, it := range st.kernel {
			p := &t.Productions[it.prod]
			if it.dot == 0 || int(it.dot) >= len(p.Steps) {
				continue
			}
			a.sufFirst[it.prod][it.dot].Each(func(sym Symbol) {
				if si := shiftPrec[sym]; si != nil {
					si.owners = appendUnique(si.owners, t.origins[p.LHS])
				}
			})
		}

		for sym, acts := range actions {
			if len(acts) < 2 {
				continue
			}
			resolved := t.resolve(acts, shiftPrec[sym])
			t.record(StateID(id), sym, acts, resolved, shiftPrec[sym], declared)
			actions[sym] = resolved
		}
		for _, acts := range actions {
			sortActions(acts)
		}
		t.actions[id] = actions
		t.gotos[id] = gotos
	}
	sort.Slice(t.report.Conflicts, func(i, j int) bool {
		x, y := t.report.Conflicts[i], t.report.Conflicts[j]
		if x.State != y.State {
			return x.State < y.State
		}
		return x.Lookahead < y.Lookahead
	})
}

// sortActions puts shifts first and orders reductions by declaration, so
// that forked versions are created in a deterministic order.
func sortActions(acts []Action) {
	slices.SortStableFunc(acts, func(x, y Action) int {
		if x.Type != y.Type {
			return int(x.Type) - int(y.Type)
		}
		return x.Production - y.Production
	})
}

// resolve applies static precedence and associativity to a conflicting
// cell. Whatever it cannot decide is returned unchanged.
func (t *Tables) resolve(acts []Action, shift *shiftInfo) []Action {
	var shiftAct *Action
	var reduces []Action
	for i := range acts {
		switch acts[i].Type {
		case ActionShift:
			shiftAct = &acts[i]
		case ActionReduce:
			reduces = append(reduces, acts[i])
		default:
			return acts
		}
	}

	if len(reduces) > 1 {
		best := t.Productions[reduces[0].Production].Prec
		for _, r := range reduces[1:] {
			best = max(best, t.Productions[r.Production].Prec)
		}
		kept := reduces[:0:0]
		for _, r := range reduces {
			if t.Productions[r.Production].Prec == best {
				kept = append(kept, r)
			}
		}
		reduces = kept
	}
	if shiftAct == nil || shift == nil {
		return reduces
	}

	higher, lower, left, right, other := 0, 0, 0, 0, 0
	for _, r := range reduces {
		p := t.Productions[r.Production]
		switch {
		case p.Prec > shift.prec:
			higher++
		case p.Prec < shift.prec:
			lower++
		case p.Assoc == AssocLeft:
			left++
		case p.Assoc == AssocRight:
			right++
		default:
			other++
		}
	}
	n := len(reduces)
	switch {
	case higher+left == n:
		return reduces
	case lower+right == n:
		return []Action{*shiftAct}
	}
	return append([]Action{*shiftAct}, reduces...)
}

func (t *Tables) record(state StateID, sym Symbol, before, after []Action, shift *shiftInfo, declared [][]string) {
	c := Conflict{State: int(state), Lookahead: t.Symbols[sym].Name, Resolved: len(after) == 1}
	var rules []string
	for _, act := range before {
		switch act.Type {
		case ActionShift:
			c.Shift = true
			switch {
			case shift == nil:
			case len(shift.owners) > 0:
				rules = append(rules, shift.owners...)
			default:
				rules = append(rules, shift.rules...)
			}
		case ActionReduce:
			p := t.Productions[act.Production]
			c.Reductions = append(c.Reductions, t.ProductionString(act.Production))
			rules = appendUnique(rules, t.origins[p.LHS])
		}
	}
	slices.Sort(rules)
	rules = slices.Compact(rules)
	c.Rules = rules
	if c.Shift {
		c.Kind = "shift/reduce"
	} else {
		c.Kind = "reduce/reduce"
	}
	if !c.Resolved {
		c.Declared = isDeclared(rules, declared)
		if !c.Declared {
			log.Debugf("undeclared conflict in state %d on %q between %v", state, c.Lookahead, rules)
		}
	}
	t.report.Conflicts = append(t.report.Conflicts, c)
}

func isDeclared(rules []string, declared [][]string) bool {
	for _, group := range declared {
		ok := true
		for _, r := range rules {
			if _, found := slices.BinarySearch(group, r); !found {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if s == "" || slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func (t *Tables) buildLexModes() {
	t.lexModes = make([]int, len(t.actions))
	index := make(map[string]int)
	for id, actions := range t.actions {
		set := NewSymbolSet(t.TerminalCount)
		for sym := range actions {
			set.Add(sym)
		}
		key := set.key()
		mode, ok := index[key]
		if !ok {
			mode = len(t.valid)
			index[key] = mode
			t.valid = append(t.valid, set)
		}
		t.lexModes[id] = mode
	}

	t.errValid = NewSymbolSet(t.TerminalCount)
	t.errValid.Add(End)
	for i := 2; i < t.TerminalCount; i++ {
		switch t.Symbols[i].Kind {
		case SymbolLiteral, SymbolPattern:
			t.errValid.Add(Symbol(i))
		}
	}
}

func (t *Tables) buildSupertypes() {
	t.supertypes = make(map[string][]string)
	byLHS := make(map[Symbol][]int)
	for i, p := range t.Productions {
		byLHS[p.LHS] = append(byLHS[p.LHS], i)
	}
	for i, info := range t.Symbols {
		if !info.Supertype {
			continue
		}
		seen := make(map[Symbol]bool)
		var walk func(Symbol)
		walk = func(sym Symbol) {
			if seen[sym] {
				return
			}
			seen[sym] = true
			for _, pi := range byLHS[sym] {
				p := t.Productions[pi]
				if len(p.Steps) != 1 {
					continue
				}
				step := p.Steps[0]
				child := t.Symbols[step.Symbol]
				switch {
				case step.Alias != "":
					t.addSupertype(step.Alias, info.Name)
				case child.Visible:
					t.addSupertype(child.Name, info.Name)
				case !child.IsTerminal():
					walk(step.Symbol)
				}
			}
		}
		walk(Symbol(i))
	}
}

func (t *Tables) addSupertype(kind, supertype string) {
	if !slices.Contains(t.supertypes[kind], supertype) {
		t.supertypes[kind] = append(t.supertypes[kind], supertype)
	}
}

// StateCount returns the number of parse states.
func (t *Tables) StateCount() int { return len(t.actions) }

// Actions returns the actions for sym in state. The slice must not be
// modified.
func (t *Tables) Actions(state StateID, sym Symbol) []Action {
	return t.actions[state][sym]
}

// Goto returns the state reached from state after reducing to sym.
func (t *Tables) Goto(state StateID, sym Symbol) (StateID, bool) {
	s, ok := t.gotos[state][sym]
	return s, ok
}

// Valid returns the terminals with an action in state.
func (t *Tables) Valid(state StateID) SymbolSet {
	return t.valid[t.lexModes[state]]
}

// LexMode returns the lex mode of state; states with the same valid
// terminals share a mode.
func (t *Tables) LexMode(state StateID) int { return t.lexModes[state] }

// LexModeCount returns the number of distinct lex modes.
func (t *Tables) LexModeCount() int { return len(t.valid) }

// ErrorValid is the terminal set used while skipping input during error
// recovery: every literal and pattern token plus the end of input.
func (t *Tables) ErrorValid() SymbolSet { return t.errValid }

// Extras returns the tokens that may appear between any two tokens.
func (t *Tables) Extras() []Symbol { return t.extras }

// Info returns the metadata of sym.
func (t *Tables) Info(sym Symbol) *SymbolInfo { return &t.Symbols[sym] }

// SymbolByName returns the first symbol declared with name.
func (t *Tables) SymbolByName(name string) (Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// FieldByName returns the id of a field name.
func (t *Tables) FieldByName(name string) (FieldID, bool) {
	id, ok := t.fieldIDs[name]
	return id, ok
}

// FieldName returns the name of a field id, or "" for zero.
func (t *Tables) FieldName(id FieldID) string {
	if int(id) < len(t.Fields) {
		return t.Fields[id]
	}
	return ""
}

// Supertypes returns the supertype tags of a node kind.
func (t *Tables) Supertypes(kind string) []string { return t.supertypes[kind] }

// IsSupertype reports whether name is a supertype tag.
func (t *Tables) IsSupertype(name string) bool {
	s, ok := t.byName[name]
	return ok && t.Symbols[s].Supertype
}

// HasKind reports whether a node of the given kind can appear in a tree.
func (t *Tables) HasKind(kind string) bool { return t.kinds[kind] || kind == "ERROR" }

// Report returns the conflict report built during compilation.
func (t *Tables) Report() *Report { return t.report }

// Origin returns the grammar rule a symbol was derived from.
func (t *Tables) Origin(sym Symbol) string { return t.origins[sym] }
