package grammar

import (
	"slices"
	"strconv"
	"strings"
)

type lrItem struct {
	prod int32
	dot  int32
}

type lrState struct {
	kernel  []lrItem
	la      []SymbolSet
	coreKey string

	// reduces holds the lookaheads of every completed item of the closure.
	reduces map[int32]SymbolSet
	shifts  SymbolSet
	trans   map[Symbol]int
	queued  bool
}

// automaton builds LR(1) item sets. States with the same core are merged
// only when the merge introduces no new conflict, which keeps the state
// count close to LALR(1) while precedence is still decided per context.
type automaton struct {
	prods   []Production
	nTerm   int
	nSyms   int
	prodsBy [][]int32

	nullable []bool
	first    []SymbolSet
	sufFirst [][]SymbolSet
	sufNull  [][]bool

	states []*lrState
	byCore map[string][]int
	queue  []int

	// context holds terminals that are only recognizable in particular
	// parse states. States that disagree on them are never merged.
	context SymbolSet
}

func newAutomaton(prods []Production, nTerm, nSyms int) *automaton {
	a := &automaton{
		prods:   prods,
		nTerm:   nTerm,
		nSyms:   nSyms,
		prodsBy: make([][]int32, nSyms-nTerm),
		byCore:  make(map[string][]int),
	}
	for i, p := range prods {
		a.prodsBy[int(p.LHS)-nTerm] = append(a.prodsBy[int(p.LHS)-nTerm], int32(i))
	}
	a.computeFirst()
	return a
}

func (a *automaton) computeFirst() {
	a.nullable = make([]bool, a.nSyms)
	a.first = make([]SymbolSet, a.nSyms)
	for s := 0; s < a.nSyms; s++ {
		a.first[s] = NewSymbolSet(a.nTerm)
		if s < a.nTerm {
			a.first[s].Add(Symbol(s))
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range a.prods {
			lhs := int(p.LHS)
			allNull := true
			for _, st := range p.Steps {
				if a.first[lhs].Union(a.first[st.Symbol]) {
					changed = true
				}
				if !a.nullable[st.Symbol] {
					allNull = false
					break
				}
			}
			if allNull && !a.nullable[lhs] {
				a.nullable[lhs] = true
				changed = true
			}
		}
	}

	a.sufFirst = make([][]SymbolSet, len(a.prods))
	a.sufNull = make([][]bool, len(a.prods))
	for i, p := range a.prods {
		n := len(p.Steps)
		first := make([]SymbolSet, n+1)
		null := make([]bool, n+1)
		first[n] = NewSymbolSet(a.nTerm)
		null[n] = true
		for j := n - 1; j >= 0; j-- {
			sym := p.Steps[j].Symbol
			first[j] = a.first[sym].Clone()
			if a.nullable[sym] {
				first[j].Union(first[j+1])
				null[j] = null[j+1]
			}
		}
		a.sufFirst[i] = first
		a.sufNull[i] = null
	}
}

func (a *automaton) closure(kernel []lrItem, la []SymbolSet) ([]lrItem, []SymbolSet) {
	items := slices.Clone(kernel)
	las := make([]SymbolSet, len(kernel), len(kernel)*4)
	index := make(map[lrItem]int, len(kernel)*4)
	work := make([]int, 0, len(kernel)*4)
	for i, it := range kernel {
		las[i] = la[i].Clone()
		index[it] = i
		work = append(work, i)
	}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		it := items[i]
		steps := a.prods[it.prod].Steps
		if int(it.dot) >= len(steps) {
			continue
		}
		b := int(steps[it.dot].Symbol)
		if b < a.nTerm {
			continue
		}
		rest := a.sufFirst[it.prod][it.dot+1]
		restNull := a.sufNull[it.prod][it.dot+1]
		for _, p := range a.prodsBy[b-a.nTerm] {
			key := lrItem{prod: p}
			j, seen := index[key]
			if !seen {
				j = len(items)
				items = append(items, key)
				las = append(las, NewSymbolSet(a.nTerm))
				index[key] = j
			}
			grew := las[j].Union(rest)
			if restNull && las[j].Union(las[i]) {
				grew = true
			}
			if grew || !seen {
				work = append(work, j)
			}
		}
	}
	return items, las
}

func (a *automaton) summarize(items []lrItem, las []SymbolSet) (map[int32]SymbolSet, SymbolSet) {
	reduces := make(map[int32]SymbolSet)
	shifts := NewSymbolSet(a.nTerm)
	for i, it := range items {
		steps := a.prods[it.prod].Steps
		if int(it.dot) == len(steps) {
			if r, ok := reduces[it.prod]; ok {
				r.Union(las[i])
			} else {
				reduces[it.prod] = las[i].Clone()
			}
			continue
		}
		if sym := steps[it.dot].Symbol; int(sym) < a.nTerm {
			shifts.Add(sym)
		}
	}
	return reduces, shifts
}

func coreKey(kernel []lrItem) string {
	var b strings.Builder
	for _, it := range kernel {
		b.WriteString(strconv.Itoa(int(it.prod)))
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(int(it.dot)))
		b.WriteByte(' ')
	}
	return b.String()
}

func (a *automaton) enqueue(id int) {
	if s := a.states[id]; !s.queued {
		s.queued = true
		a.queue = append(a.queue, id)
	}
}

func (a *automaton) build(startProd int) {
	la := NewSymbolSet(a.nTerm)
	la.Add(End)
	a.findOrAdd([]lrItem{{prod: int32(startProd)}}, []SymbolSet{la}, -1)
	for len(a.queue) > 0 {
		id := a.queue[0]
		a.queue = a.queue[1:]
		a.states[id].queued = false
		a.process(id)
	}
}

func (a *automaton) process(id int) {
	st := a.states[id]
	items, las := a.closure(st.kernel, st.la)
	st.reduces, st.shifts = a.summarize(items, las)

	type group struct {
		items []lrItem
		las   []SymbolSet
	}
	groups := make(map[Symbol]*group)
	var order []Symbol
	for i, it := range items {
		steps := a.prods[it.prod].Steps
		if int(it.dot) >= len(steps) {
			continue
		}
		sym := steps[it.dot].Symbol
		g, ok := groups[sym]
		if !ok {
			g = &group{}
			groups[sym] = g
			order = append(order, sym)
		}
		g.items = append(g.items, lrItem{prod: it.prod, dot: it.dot + 1})
		g.las = append(g.las, las[i])
	}
	slices.Sort(order)

	trans := make(map[Symbol]int, len(order))
	for _, sym := range order {
		g := groups[sym]
		idx := make([]int, len(g.items))
		for i := range idx {
			idx[i] = i
		}
		slices.SortFunc(idx, func(x, y int) int {
			if c := int(g.items[x].prod) - int(g.items[y].prod); c != 0 {
				return c
			}
			return int(g.items[x].dot) - int(g.items[y].dot)
		})
		kernel := make([]lrItem, len(idx))
		la := make([]SymbolSet, len(idx))
		for i, j := range idx {
			kernel[i] = g.items[j]
			la[i] = g.las[j]
		}
		prev := -1
		if t, ok := st.trans[sym]; ok {
			prev = t
		}
		trans[sym] = a.findOrAdd(kernel, la, prev)
	}
	st.trans = trans
}

func laSubset(la, of []SymbolSet) bool {
	for i := range la {
		for w := range la[i] {
			if la[i][w]&^of[i][w] != 0 {
				return false
			}
		}
	}
	return true
}

func (a *automaton) findOrAdd(kernel []lrItem, la []SymbolSet, prefer int) int {
	key := coreKey(kernel)
	candidates := a.byCore[key]
	if prefer >= 0 && slices.Contains(candidates, prefer) {
		candidates = append([]int{prefer}, candidates...)
	}

	var reduces map[int32]SymbolSet
	var shifts SymbolSet
	for _, id := range candidates {
		st := a.states[id]
		if !sameLookaheadContext(a.context, st.la, la) {
			continue
		}
		if laSubset(la, st.la) {
			return id
		}
		if reduces == nil {
			reduces, shifts = a.summarize(a.closure(kernel, la))
		}
		if !sameContext(a.context, st.reduces, reduces) || !compatible(a.nTerm, shifts, st.reduces, reduces) {
			continue
		}
		for i := range st.la {
			st.la[i].Union(la[i])
		}
		for p, set := range reduces {
			if r, ok := st.reduces[p]; ok {
				r.Union(set)
			} else {
				st.reduces[p] = set.Clone()
			}
		}
		a.enqueue(id)
		return id
	}

	if reduces == nil {
		reduces, shifts = a.summarize(a.closure(kernel, la))
	}
	st := &lrState{kernel: kernel, coreKey: key, reduces: reduces, shifts: shifts}
	st.la = make([]SymbolSet, len(la))
	for i := range la {
		st.la[i] = la[i].Clone()
	}
	id := len(a.states)
	a.states = append(a.states, st)
	a.byCore[key] = append(a.byCore[key], id)
	a.enqueue(id)
	return id
}

// sameLookaheadContext reports whether two kernels expect the same context
// terminals after each item. Kernel lookaheads flow into every successor
// state, so kernels that differ here would mix contexts further on.
func sameLookaheadContext(context SymbolSet, x, y []SymbolSet) bool {
	if context == nil {
		return true
	}
	for i := range x {
		for w := range context {
			if (x[i][w]^y[i][w])&context[w] != 0 {
				return false
			}
		}
	}
	return true
}

// sameContext reports whether two reduce tables accept the same context
// terminals as lookahead.
func sameContext(context SymbolSet, x, y map[int32]SymbolSet) bool {
	if context == nil {
		return true
	}
	xs, ys := make(SymbolSet, len(context)), make(SymbolSet, len(context))
	for _, set := range x {
		xs.Union(set)
	}
	for _, set := range y {
		ys.Union(set)
	}
	for w := range context {
		if (xs[w]^ys[w])&context[w] != 0 {
			return false
		}
	}
	return true
}

// compatible reports whether merging two states with the same core keeps
// every conflicting lookahead identical to what each state had on its own.
func compatible(nTerm int, shifts SymbolSet, x, y map[int32]SymbolSet) bool {
	for t := 0; t < nTerm; t++ {
		sym := Symbol(t)
		var xs, ys []int32
		for p, set := range x {
			if set.Has(sym) {
				xs = append(xs, p)
			}
		}
		for p, set := range y {
			if set.Has(sym) {
				ys = append(ys, p)
			}
		}
		if len(xs) == 0 && len(ys) == 0 {
			continue
		}
		merged := len(xs)
		for _, p := range ys {
			if !slices.Contains(xs, p) {
				merged++
			}
		}
		total := merged
		if shifts.Has(sym) {
			total++
		}
		if total < 2 {
			continue
		}
		xa, ya := len(xs), len(ys)
		if shifts.Has(sym) {
			xa++
			ya++
		}
		if (xa > 0 && xa != total) || (ya > 0 && ya != total) {
			return false
		}
	}
	return true
}

// prune drops states that are no longer reachable after transitions were
// retargeted and renumbers the rest in discovery order.
func (a *automaton) prune() []*lrState {
	ids := map[int]int{0: 0}
	order := []int{0}
	for i := 0; i < len(order); i++ {
		st := a.states[order[i]]
		syms := make([]Symbol, 0, len(st.trans))
		for sym := range st.trans {
			syms = append(syms, sym)
		}
		slices.Sort(syms)
		for _, sym := range syms {
			t := st.trans[sym]
			if _, ok := ids[t]; !ok {
				ids[t] = len(order)
				order = append(order, t)
			}
		}
	}
	out := make([]*lrState, len(order))
	for i, old := range order {
		st := a.states[old]
		trans := make(map[Symbol]int, len(st.trans))
		for sym, t := range st.trans {
			trans[sym] = ids[t]
		}
		st.trans = trans
		out[i] = st
	}
	return out
}
