package grammar

import (
	"fmt"
	"regexp"
)

// Step is one position of a production's right-hand side.
type Step struct {
	Symbol     Symbol
	Field      FieldID
	Alias      string
	AliasNamed bool
	Prec       int
	Assoc      Assoc
}

// Production is a flattened grammar alternative.
type Production struct {
	LHS   Symbol
	Steps []Step

	// Prec and Assoc are taken from the last step and decide conflicts in
	// which this production is reduced.
	Prec  int
	Assoc Assoc
	// DynPrec is added to the score of a parse version when it reduces this
	// production.
	DynPrec int
}

// maxAlternatives bounds the number of productions one rule may expand to.
const maxAlternatives = 1024

type ruleContext struct {
	rule       string
	prec       int
	assoc      Assoc
	field      FieldID
	alias      string
	aliasNamed bool
}

type alternative struct {
	steps  []Step
	dyn    int
	hasDyn bool
}

type compiler struct {
	g    *Grammar
	errs ErrorList

	symbols []SymbolInfo
	// origins maps a symbol to the rule that defines it; auxiliary symbols
	// map to the rule they were created for.
	origins []string

	byName   map[string]Symbol
	literals map[string]Symbol
	patterns map[string]Symbol
	lexical  map[string]bool

	fields   []string
	fieldIDs map[string]FieldID

	productions []Production
	aliases     map[string]bool
	auxCount    int

	// terminalCount is fixed once nonterminals are declared.
	terminalCount int
}

func newCompiler(g *Grammar) *compiler {
	return &compiler{
		g:        g,
		byName:   make(map[string]Symbol),
		literals: make(map[string]Symbol),
		patterns: make(map[string]Symbol),
		lexical:  make(map[string]bool),
		fields:   []string{""},
		fieldIDs: make(map[string]FieldID),
		aliases:  make(map[string]bool),
	}
}

func (c *compiler) errorf(rule, format string, args ...any) {
	c.errs = append(c.errs, &Error{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (c *compiler) addSymbol(info SymbolInfo, origin string) Symbol {
	sym := Symbol(len(c.symbols))
	c.symbols = append(c.symbols, info)
	c.origins = append(c.origins, origin)
	return sym
}

// lexicalContent unwraps token and precedence wrappers around a string or
// pattern and returns it with its lexical precedence.
func lexicalContent(r Rule) (Rule, int, bool) {
	prec := 0
	for {
		switch v := r.(type) {
		case TokenRule:
			r = v.Content
		case PrecRule:
			if v.Dynamic {
				return nil, 0, false
			}
			prec = v.Value
			r = v.Content
		case StringRule, PatternRule:
			return r, prec, true
		default:
			return nil, 0, false
		}
	}
}

func tokenInfo(name string, named bool, content Rule, prec int) SymbolInfo {
	info := SymbolInfo{Name: name, Named: named, Visible: !isHidden(name), LexPrec: prec}
	switch v := content.(type) {
	case StringRule:
		info.Kind = SymbolLiteral
		info.Text = v.Value
	case PatternRule:
		info.Kind = SymbolPattern
		info.Pattern = v.Value
	}
	return info
}

// declareTerminals assigns ids to every token: the special symbols first,
// then externals and named lexical rules in declaration order, then the
// anonymous strings and patterns in the order the rules mention them.
func (c *compiler) declareTerminals() {
	c.addSymbol(SymbolInfo{Name: "end", Kind: SymbolSpecial}, "")
	c.addSymbol(SymbolInfo{Name: "ERROR", Kind: SymbolSpecial, Named: true, Visible: true}, "")

	for _, ext := range c.g.Externals {
		switch v := ext.(type) {
		case SymbolRule:
			if _, dup := c.byName[v.Name]; dup {
				c.errorf(v.Name, "external declared twice")
				continue
			}
			c.byName[v.Name] = c.addSymbol(SymbolInfo{
				Name:    v.Name,
				Kind:    SymbolExternal,
				Named:   !isHidden(v.Name),
				Visible: !isHidden(v.Name),
			}, v.Name)
		case StringRule:
			c.literals[v.Value] = c.addSymbol(SymbolInfo{
				Name:    v.Value,
				Kind:    SymbolExternal,
				Visible: true,
				Text:    v.Value,
			}, "")
		default:
			c.errorf("", "external %s must be a symbol or string", ext)
		}
	}

	for _, r := range c.g.Rules {
		content, prec, ok := lexicalContent(r.Rule)
		if !ok {
			continue
		}
		if _, dup := c.byName[r.Name]; dup {
			c.errorf(r.Name, "rule is also declared as an external")
			continue
		}
		c.lexical[r.Name] = true
		c.byName[r.Name] = c.addSymbol(tokenInfo(r.Name, !isHidden(r.Name), content, prec), r.Name)
	}

	for _, r := range c.g.Extras {
		c.collectTokens("", r)
	}
	for _, r := range c.g.Rules {
		if !c.lexical[r.Name] {
			c.collectTokens(r.Name, r.Rule)
		}
	}
}

func patternKey(name string, named bool, content Rule, prec int) string {
	return fmt.Sprintf("%s\x00%t\x00%s\x00%d", name, named, content, prec)
}

// anonymousToken returns (creating on first use) the terminal for an
// anonymous string or pattern, or for an alias wrapped around one.
func (c *compiler) anonymousToken(alias string, named bool, content Rule, prec int) Symbol {
	if c.terminalCount > 0 {
		return c.lookupToken(alias, named, content, prec)
	}
	if s, ok := content.(StringRule); ok && alias == "" {
		if sym, ok := c.literals[s.Value]; ok {
			return sym
		}
		info := tokenInfo(s.Value, false, content, prec)
		info.Visible = true
		sym := c.addSymbol(info, "")
		c.literals[s.Value] = sym
		return sym
	}
	key := patternKey(alias, named, content, prec)
	if sym, ok := c.patterns[key]; ok {
		return sym
	}
	name := alias
	if name == "" {
		name = content.String()
	}
	info := tokenInfo(name, named, content, prec)
	info.Visible = alias != ""
	sym := c.addSymbol(info, "")
	c.patterns[key] = sym
	return sym
}

func (c *compiler) lookupToken(alias string, named bool, content Rule, prec int) Symbol {
	if s, ok := content.(StringRule); ok && alias == "" {
		if sym, ok := c.literals[s.Value]; ok {
			return sym
		}
	} else if sym, ok := c.patterns[patternKey(alias, named, content, prec)]; ok {
		return sym
	}
	c.errorf("", "token %s was not declared before the nonterminals", content)
	return ErrorSymbol
}

func (c *compiler) collectTokens(rule string, r Rule) {
	switch v := r.(type) {
	case StringRule, PatternRule, TokenRule:
		content, prec, ok := lexicalContent(v)
		if !ok {
			c.errorf(rule, "token content must be a string or pattern: %s", v)
			return
		}
		c.anonymousToken("", false, content, prec)
	case AliasRule:
		if content, prec, ok := lexicalContent(v.Content); ok {
			c.anonymousToken(v.Value, v.Named, content, prec)
			return
		}
		c.collectTokens(rule, v.Content)
	case SeqRule:
		for _, m := range v.Members {
			c.collectTokens(rule, m)
		}
	case ChoiceRule:
		for _, m := range v.Members {
			c.collectTokens(rule, m)
		}
	case RepeatRule:
		c.collectTokens(rule, v.Content)
	case FieldRule:
		c.collectTokens(rule, v.Content)
	case PrecRule:
		c.collectTokens(rule, v.Content)
	}
}

func (c *compiler) declareNonterminals() {
	c.terminalCount = len(c.symbols)
	inline := make(map[string]bool, len(c.g.Inline))
	for _, name := range c.g.Inline {
		inline[name] = true
	}
	for _, r := range c.g.Rules {
		if c.lexical[r.Name] {
			continue
		}
		if _, dup := c.byName[r.Name]; dup {
			c.errorf(r.Name, "rule declared twice")
			continue
		}
		c.byName[r.Name] = c.addSymbol(SymbolInfo{
			Name:    r.Name,
			Kind:    SymbolNonterminal,
			Named:   !isHidden(r.Name),
			Visible: !isHidden(r.Name) && !inline[r.Name],
		}, r.Name)
	}
	for _, name := range c.g.Inline {
		if _, ok := c.byName[name]; !ok {
			c.errorf(name, "inline rule is not defined")
		}
	}
	for _, name := range c.g.Supertypes {
		sym, ok := c.byName[name]
		if !ok || c.symbols[sym].Kind != SymbolNonterminal {
			c.errorf(name, "supertype must be a defined rule")
			continue
		}
		c.symbols[sym].Supertype = true
		c.symbols[sym].Visible = false
	}
}

func (c *compiler) fieldID(name string) FieldID {
	if id, ok := c.fieldIDs[name]; ok {
		return id
	}
	id := FieldID(len(c.fields))
	c.fields = append(c.fields, name)
	c.fieldIDs[name] = id
	return id
}

func (c *compiler) newAux(ctx ruleContext) Symbol {
	c.auxCount++
	name := fmt.Sprintf("%s_repeat%d", ctx.rule, c.auxCount)
	if !isHidden(name) {
		name = "_" + name
	}
	return c.addSymbol(SymbolInfo{Name: name, Kind: SymbolAuxiliary}, ctx.rule)
}

func (c *compiler) step(sym Symbol, ctx ruleContext) Step {
	return Step{
		Symbol:     sym,
		Field:      ctx.field,
		Alias:      ctx.alias,
		AliasNamed: ctx.aliasNamed,
		Prec:       ctx.prec,
		Assoc:      ctx.assoc,
	}
}

func single(s Step) []alternative {
	return []alternative{{steps: []Step{s}}}
}

// expand flattens r into the list of symbol sequences it can match.
func (c *compiler) expand(r Rule, ctx ruleContext) []alternative {
	switch v := r.(type) {
	case BlankRule:
		return []alternative{{}}

	case SymbolRule:
		sym, ok := c.byName[v.Name]
		if !ok {
			c.errorf(ctx.rule, "undefined symbol %q", v.Name)
			return []alternative{{}}
		}
		return single(c.step(sym, ctx))

	case StringRule, PatternRule, TokenRule:
		content, prec, ok := lexicalContent(v)
		if !ok {
			return []alternative{{}}
		}
		return single(c.step(c.anonymousToken("", false, content, prec), ctx))

	case AliasRule:
		if content, prec, ok := lexicalContent(v.Content); ok {
			c.aliases[v.Value] = true
			sym := c.anonymousToken(v.Value, v.Named, content, prec)
			inner := ctx
			inner.alias = ""
			return single(c.step(sym, inner))
		}
		if ctx.alias == "" {
			ctx.alias = v.Value
			ctx.aliasNamed = v.Named
			c.aliases[v.Value] = true
		}
		if _, ok := v.Content.(SymbolRule); ok {
			return c.expand(v.Content, ctx)
		}
		return single(c.step(c.auxFor(v.Content, ctx), ctx))

	case FieldRule:
		ctx.field = c.fieldID(v.Name)
		return c.expand(v.Content, ctx)

	case PrecRule:
		if v.Dynamic {
			alts := c.expand(v.Content, ctx)
			for i := range alts {
				if !alts[i].hasDyn || abs(v.Value) > abs(alts[i].dyn) {
					alts[i].dyn = v.Value
					alts[i].hasDyn = true
				}
			}
			return alts
		}
		ctx.prec = v.Value
		ctx.assoc = v.Assoc
		return c.expand(v.Content, ctx)

	case ChoiceRule:
		var alts []alternative
		for _, m := range v.Members {
			alts = append(alts, c.expand(m, ctx)...)
		}
		return alts

	case SeqRule:
		alts := []alternative{{}}
		for _, m := range v.Members {
			next := c.expand(m, ctx)
			if len(alts)*len(next) > maxAlternatives {
				c.errorf(ctx.rule, "rule expands to more than %d alternatives", maxAlternatives)
				return alts
			}
			product := make([]alternative, 0, len(alts)*len(next))
			for _, a := range alts {
				for _, b := range next {
					steps := make([]Step, 0, len(a.steps)+len(b.steps))
					steps = append(append(steps, a.steps...), b.steps...)
					alt := alternative{steps: steps, dyn: a.dyn, hasDyn: a.hasDyn}
					if b.hasDyn && (!alt.hasDyn || abs(b.dyn) > abs(alt.dyn)) {
						alt.dyn, alt.hasDyn = b.dyn, true
					}
					product = append(product, alt)
				}
			}
			alts = product
		}
		return alts

	case RepeatRule:
		aux := c.repeatAux(v.Content, ctx)
		alts := single(c.step(aux, ctx))
		if !v.AtLeastOne {
			alts = append(alts, alternative{})
		}
		return alts
	}
	c.errorf(ctx.rule, "unsupported rule %T", r)
	return []alternative{{}}
}

// repeatAux creates the hidden left-recursive rule aux -> aux content | content.
// The field and alias of the surrounding context stay on the step that
// references aux; the tree builder hands them down to the spliced children.
// Associativity of the surrounding rule does not carry into aux.
func (c *compiler) repeatAux(content Rule, ctx ruleContext) Symbol {
	aux := c.newAux(ctx)
	inner := ctx
	inner.field, inner.alias, inner.aliasNamed = 0, "", false
	inner.assoc = AssocNone
	body := c.expand(content, inner)
	recur := c.step(aux, inner)
	for _, alt := range body {
		steps := append([]Step{recur}, alt.steps...)
		c.addProduction(aux, alternative{steps: steps, dyn: alt.dyn, hasDyn: alt.hasDyn})
	}
	for _, alt := range body {
		c.addProduction(aux, alt)
	}
	return aux
}

// auxFor wraps arbitrary content in a hidden rule so that an alias can
// rename the single node it produces.
func (c *compiler) auxFor(content Rule, ctx ruleContext) Symbol {
	aux := c.newAux(ctx)
	c.symbols[aux].Name = fmt.Sprintf("_%s_alias%d", trimHidden(ctx.rule), c.auxCount)
	inner := ctx
	inner.field, inner.alias, inner.aliasNamed = 0, "", false
	for _, alt := range c.expand(content, inner) {
		c.addProduction(aux, alt)
	}
	return aux
}

func trimHidden(name string) string {
	if isHidden(name) {
		return name[1:]
	}
	return name
}

func (c *compiler) addProduction(lhs Symbol, alt alternative) {
	p := Production{LHS: lhs, Steps: alt.steps, DynPrec: alt.dyn}
	if n := len(alt.steps); n > 0 {
		p.Prec = alt.steps[n-1].Prec
		p.Assoc = alt.steps[n-1].Assoc
	}
	c.productions = append(c.productions, p)
}

func (c *compiler) flatten() {
	for _, r := range c.g.Rules {
		if c.lexical[r.Name] {
			continue
		}
		sym, ok := c.byName[r.Name]
		if !ok {
			continue
		}
		for _, alt := range c.expand(r.Rule, ruleContext{rule: r.Name}) {
			c.addProduction(sym, alt)
		}
	}
}

// compilePatterns builds the anchored, leftmost-longest matchers of pattern
// terminals and marks keywords.
func (c *compiler) compilePatterns() {
	for i := range c.symbols {
		info := &c.symbols[i]
		if info.Kind != SymbolPattern {
			continue
		}
		re, err := regexp.Compile(`^(?:` + info.Pattern + `)`)
		if err != nil {
			c.errorf(c.origins[i], "invalid pattern /%s/: %v", info.Pattern, err)
			continue
		}
		re.Longest()
		info.re = re
	}

	if c.g.Word == "" {
		return
	}
	word, ok := c.byName[c.g.Word]
	if !ok || c.symbols[word].Kind != SymbolPattern {
		c.errorf(c.g.Word, "word token must be a pattern rule")
		return
	}
	re := c.symbols[word].re
	if re == nil {
		return
	}
	for i := range c.symbols {
		info := &c.symbols[i]
		if info.Kind != SymbolLiteral || info.Text == "" {
			continue
		}
		if loc := re.FindStringIndex(info.Text); loc != nil && loc[0] == 0 && loc[1] == len(info.Text) {
			info.Keyword = true
		}
	}
}

// contextTokens returns the terminals whose recognition depends on the
// parse state: external tokens, and grammar tokens that begin with a blank
// or a newline and so compete with skipped whitespace.
func (c *compiler) contextTokens() SymbolSet {
	set := NewSymbolSet(c.terminalCount)
	for i := 2; i < c.terminalCount; i++ {
		info := &c.symbols[i]
		switch {
		case info.Extra:
		case info.Kind == SymbolExternal:
			set.Add(Symbol(i))
		case info.Kind == SymbolLiteral || info.Kind == SymbolPattern:
			for _, blank := range [...]string{" ", "\t", "\n"} {
				if info.Match([]byte(blank), 0) > 0 {
					set.Add(Symbol(i))
					break
				}
			}
		}
	}
	return set
}

func (c *compiler) markExtras() []Symbol {
	var extras []Symbol
	for _, r := range c.g.Extras {
		var sym Symbol
		switch v := r.(type) {
		case SymbolRule:
			s, ok := c.byName[v.Name]
			if !ok || !c.symbols[s].IsTerminal() {
				c.errorf(v.Name, "extra must be a token")
				continue
			}
			sym = s
		case AliasRule:
			content, prec, ok := lexicalContent(v.Content)
			if !ok {
				c.errorf("", "extra alias must wrap a token: %s", v)
				continue
			}
			sym = c.anonymousToken(v.Value, v.Named, content, prec)
		default:
			content, prec, ok := lexicalContent(r)
			if !ok {
				c.errorf("", "extra must be a token: %s", r)
				continue
			}
			sym = c.anonymousToken("", false, content, prec)
		}
		c.symbols[sym].Extra = true
		extras = append(extras, sym)
	}
	return extras
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
