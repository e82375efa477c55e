package bash

import (
	"bytes"
	"fmt"

	"github.com/dhamidi/shtree/grammar"
	"github.com/dhamidi/shtree/parse"
)

// nestOp describes how a token changes the nesting stack.
type nestOp struct {
	ctx  byte
	kind int
}

const (
	nestOpen = iota
	nestClose
	nestToggle
)

var nestingTokens = map[string]nestOp{
	`"`:   {nestQuote, nestToggle},
	"`":   {nestBacktick, nestToggle},
	"$(":  {nestParen, nestOpen},
	"(":   {nestParen, nestOpen},
	"<(":  {nestParen, nestOpen},
	">(":  {nestParen, nestOpen},
	")":   {nestParen, nestClose},
	"$((": {nestArith, nestOpen},
	"((":  {nestArith, nestOpen},
	"))":  {nestArith, nestClose},
	"${":  {nestBrace, nestOpen},
	"}":   {nestBrace, nestClose},
	"[[":  {nestBracket, nestOpen},
	"]]":  {nestBracket, nestClose},
}

// tokens are the terminals the scanner treats specially.
type tokens struct {
	heredocStart   grammar.Symbol
	heredocContent grammar.Symbol
	heredocEnd     grammar.Symbol
	fileDescriptor grammar.Symbol
	emptyValue     grammar.Symbol
	concat         grammar.Symbol
	variableName   grammar.Symbol
	regex          grammar.Symbol
	regexNoSlash   grammar.Symbol
	regexNoSpace   grammar.Symbol
	extglob        grammar.Symbol
	bareDollar     grammar.Symbol
	braceStart     grammar.Symbol
	expansionWord  grammar.Symbol
	testOperator   grammar.Symbol

	word          grammar.Symbol
	stringContent grammar.Symbol
	newline       grammar.Symbol
	closeBrace    grammar.Symbol
	closeBracket  grammar.Symbol
	closeTest     grammar.Symbol
}

// Scanner recognizes shell tokens. The context-free ones come from the
// grammar's literal and pattern terminals; the rest (heredocs, implicit
// concatenation, regex operands and the like) are recognized here from the
// source and the nesting recorded in the ScannerState.
type Scanner struct {
	lexer   *parse.Lexer
	sym     tokens
	nesting map[grammar.Symbol]nestOp
}

// NewScanner returns a scanner for tables compiled from Grammar.
func NewScanner(t *grammar.Tables) (*Scanner, error) {
	s := &Scanner{lexer: parse.NewLexer(t), nesting: make(map[grammar.Symbol]nestOp)}
	var missing []string
	lookup := func(name string) grammar.Symbol {
		sym, ok := t.SymbolByName(name)
		if !ok || int(sym) >= t.TerminalCount {
			missing = append(missing, name)
		}
		return sym
	}
	s.sym = tokens{
		heredocStart:   lookup("heredoc_start"),
		heredocContent: lookup("heredoc_content"),
		heredocEnd:     lookup("heredoc_end"),
		fileDescriptor: lookup("file_descriptor"),
		emptyValue:     lookup("_empty_value"),
		concat:         lookup("_concat"),
		variableName:   lookup("variable_name"),
		regex:          lookup("regex"),
		regexNoSlash:   lookup("_regex_no_slash"),
		regexNoSpace:   lookup("_regex_no_space"),
		extglob:        lookup("extglob_pattern"),
		bareDollar:     lookup("_bare_dollar"),
		braceStart:     lookup("_brace_start"),
		expansionWord:  lookup("_expansion_word"),
		testOperator:   lookup("test_operator"),
		word:           lookup("word"),
		stringContent:  lookup("string_content"),
		newline:        lookup("\n"),
		closeBrace:     lookup("}"),
		closeBracket:   lookup("]"),
		closeTest:      lookup("]]"),
	}
	for text, op := range nestingTokens {
		s.nesting[lookup(text)] = op
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("grammar %s lacks tokens %q", t.Name, missing)
	}
	return s, nil
}

// Initial returns the state at the start of a script.
func (s *Scanner) Initial() parse.ScannerState { return ScannerState{} }

// Scan recognizes the token at pos.
func (s *Scanner) Scan(src []byte, pos int, state parse.ScannerState, valid grammar.SymbolSet) (parse.Token, parse.ScannerState, bool) {
	st, _ := state.(ScannerState)

	if st.Mode() == ModeHeredocBody && (valid.Has(s.sym.heredocContent) || valid.Has(s.sym.heredocEnd)) {
		if st.heredocs[0].Follows {
			pos = skipLineBreak(src, pos)
			st = st.settleHeredoc()
		}
		if tok, next, ok := s.heredocBody(src, pos, st); ok {
			return tok, next, true
		}
		return s.match(src, pos, st, valid)
	}
	if valid.Has(s.sym.stringContent) && !valid.Has(s.sym.word) {
		return s.match(src, pos, st, valid)
	}

	if valid.Has(s.sym.concat) && s.joins(src, pos, st, valid) {
		return parse.Token{Symbol: s.sym.concat, Start: pos, End: pos}, st, true
	}
	if valid.Has(s.sym.emptyValue) && endsValue(src, pos) {
		return parse.Token{Symbol: s.sym.emptyValue, Start: pos, End: pos}, st, true
	}

	p := s.skip(src, pos, valid)
	if tok, next, ok := s.external(src, p, st, valid); ok {
		return tok, next, true
	}
	if tok, next, ok := s.match(src, p, st, valid); ok {
		return tok, next, true
	}
	if tok, ok := s.lexer.Comment(src, p); ok {
		return tok, st, true
	}
	return parse.Token{Start: p, End: p}, st, false
}

// match recognizes a grammar terminal at pos and tracks the nesting it
// opens or closes.
func (s *Scanner) match(src []byte, pos int, st ScannerState, valid grammar.SymbolSet) (parse.Token, parse.ScannerState, bool) {
	tok, ok := s.lexer.Match(src, pos, valid)
	if !ok {
		return parse.Token{Start: pos, End: pos}, st, false
	}
	if tok.Symbol == s.sym.newline {
		return tok, st.startHeredocs(), true
	}
	if op, ok := s.nesting[tok.Symbol]; ok {
		switch op.kind {
		case nestOpen:
			st = st.push(op.ctx)
		case nestClose:
			st = st.pop(op.ctx)
		case nestToggle:
			st = st.toggle(op.ctx)
		}
	}
	return tok, st, true
}

// skip advances past blanks and line continuations. Newlines are skipped
// only where the grammar cannot use them as terminators.
func (s *Scanner) skip(src []byte, pos int, valid grammar.SymbolSet) int {
	for pos < len(src) {
		switch c := src[pos]; {
		case c == '\n':
			if valid.Has(s.sym.newline) {
				return pos
			}
			pos++
		case isBlank(c):
			pos++
		case c == '\\' && bytes.HasPrefix(src[pos+1:], []byte("\n")):
			pos += 2
		case c == '\\' && bytes.HasPrefix(src[pos+1:], []byte("\r\n")):
			pos += 3
		default:
			return pos
		}
	}
	return pos
}

// joins reports whether the word part that just ended continues at pos.
func (s *Scanner) joins(src []byte, pos int, st ScannerState, valid grammar.SymbolSet) bool {
	if pos >= len(src) {
		return false
	}
	switch c := src[pos]; c {
	case ' ', '\t', '\r', '\n', '\v', '\f', '<', '>', '(', ')', ';', '&', '|', '#':
		return false
	case '}':
		return !valid.Has(s.sym.closeBrace)
	case ']':
		if bytes.HasPrefix(src[pos:], []byte("]]")) && valid.Has(s.sym.closeTest) {
			return false
		}
		return !valid.Has(s.sym.closeBracket)
	case '`':
		return st.top() != nestBacktick
	case '"':
		return st.top() != nestQuote
	case '\\':
		return pos+1 < len(src) && src[pos+1] != '\n' && src[pos+1] != '\r'
	}
	return true
}

func endsValue(src []byte, pos int) bool {
	if pos >= len(src) {
		return true
	}
	switch src[pos] {
	case ' ', '\t', '\r', '\n', '\v', '\f', ';', '&', '|', ')':
		return true
	}
	return false
}

// external recognizes the context-sensitive tokens the grammar expects at
// pos.
func (s *Scanner) external(src []byte, pos int, st ScannerState, valid grammar.SymbolSet) (parse.Token, ScannerState, bool) {
	tok := func(sym grammar.Symbol, end int) parse.Token {
		return parse.Token{Symbol: sym, Start: pos, End: end}
	}
	if pos >= len(src) {
		return parse.Token{}, st, false
	}
	if valid.Has(s.sym.heredocStart) {
		if end, h, ok := scanHeredocStart(src, pos); ok {
			return tok(s.sym.heredocStart, end), st.queueHeredoc(h), true
		}
	}
	if valid.Has(s.sym.testOperator) {
		if end, ok := scanTestOperator(src, pos); ok {
			return tok(s.sym.testOperator, end), st, true
		}
	}
	if valid.Has(s.sym.bareDollar) && src[pos] == '$' && (pos+1 == len(src) || isSpace(src[pos+1])) {
		return tok(s.sym.bareDollar, pos+1), st, true
	}
	if valid.Has(s.sym.fileDescriptor) {
		if end, ok := scanFileDescriptor(src, pos); ok {
			return tok(s.sym.fileDescriptor, end), st, true
		}
	}
	if valid.Has(s.sym.variableName) {
		if end, ok := scanVariableName(src, pos); ok {
			return tok(s.sym.variableName, end), st, true
		}
	}
	if valid.Has(s.sym.braceStart) {
		if ok := scanBraceRange(src, pos); ok {
			return tok(s.sym.braceStart, pos+1), st, true
		}
	}
	if valid.Has(s.sym.regexNoSlash) {
		if end, ok := scanRegex(src, pos, true); ok {
			return tok(s.sym.regexNoSlash, end), st, true
		}
	}
	if valid.Has(s.sym.regex) {
		if end, ok := scanRegex(src, pos, false); ok {
			return tok(s.sym.regex, end), st, true
		}
	}
	if valid.Has(s.sym.regexNoSpace) {
		if end, ok := scanRegexWord(src, pos); ok {
			return tok(s.sym.regexNoSpace, end), st, true
		}
	}
	if valid.Has(s.sym.extglob) {
		if end, ok := scanExtglob(src, pos); ok {
			return tok(s.sym.extglob, end), st, true
		}
	}
	if valid.Has(s.sym.expansionWord) {
		if end, ok := scanExpansionWord(src, pos); ok {
			return tok(s.sym.expansionWord, end), st, true
		}
	}
	return parse.Token{}, st, false
}

// heredocBody reads here-document text at pos: content up to the next
// expansion or terminator line, or the terminator itself.
func (s *Scanner) heredocBody(src []byte, pos int, st ScannerState) (parse.Token, ScannerState, bool) {
	h := st.heredocs[0]
	content := func(end int) (parse.Token, ScannerState, bool) {
		return parse.Token{Symbol: s.sym.heredocContent, Start: pos, End: end}, st, true
	}
	lineStart := pos == 0 || src[pos-1] == '\n'
	for i := pos; ; {
		if lineStart {
			if start, end, ok := h.terminator(src, i); ok {
				if i > pos {
					return content(i)
				}
				return parse.Token{Symbol: s.sym.heredocEnd, Start: start, End: end}, st.popHeredoc().followHeredoc(), true
			}
			lineStart = false
		}
		if i >= len(src) {
			if i > pos {
				return content(i)
			}
			return parse.Token{Symbol: s.sym.heredocEnd, Start: i, End: i}, st.popHeredoc(), true
		}
		switch c := src[i]; {
		case c == '\n':
			i++
			lineStart = true
		case c == '\\' && !h.Raw:
			i = min(i+2, len(src))
		case (c == '$' || c == '`') && !h.Raw && startsSubstitution(src, i):
			if i > pos {
				return content(i)
			}
			return parse.Token{}, st, false
		default:
			i++
		}
	}
}

// terminator reports whether the line at pos closes the heredoc, and the
// range of the delimiter on it.
func (h Heredoc) terminator(src []byte, pos int) (start, end int, ok bool) {
	start = pos
	if h.Indent {
		for start < len(src) && src[start] == '\t' {
			start++
		}
	}
	end = start + len(h.Delimiter)
	if h.Delimiter == "" || !bytes.HasPrefix(src[start:], []byte(h.Delimiter)) {
		return 0, 0, false
	}
	if rest := src[end:]; len(rest) == 0 || rest[0] == '\n' || bytes.HasPrefix(rest, []byte("\r\n")) {
		return start, end, true
	}
	return 0, 0, false
}

func skipLineBreak(src []byte, pos int) int {
	switch {
	case bytes.HasPrefix(src[pos:], []byte("\r\n")):
		return pos + 2
	case bytes.HasPrefix(src[pos:], []byte("\n")):
		return pos + 1
	}
	return pos
}

func startsSubstitution(src []byte, i int) bool {
	if src[i] == '`' {
		return true
	}
	if i+1 >= len(src) {
		return false
	}
	c := src[i+1]
	return isWordChar(c) || c == '{' || c == '(' || bytes.IndexByte([]byte("@*#?$!-"), c) >= 0
}

// scanHeredocStart reads a heredoc delimiter. Quoting anywhere in it makes
// the body raw.
func scanHeredocStart(src []byte, pos int) (int, Heredoc, bool) {
	var delim []byte
	raw := false
	i := pos
scan:
	for i < len(src) {
		switch c := src[i]; c {
		case ' ', '\t', '\r', '\n', ';', '&', '|', '<', '>', '(', ')':
			break scan
		case '\'', '"':
			raw = true
			line := src[i+1:]
			if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
				line = line[:nl]
			}
			j := bytes.IndexByte(line, c)
			if j < 0 {
				delim = append(delim, line...)
				i += 1 + len(line)
				continue
			}
			delim = append(delim, line[:j]...)
			i += j + 2
		case '\\':
			raw = true
			if i+1 < len(src) && src[i+1] != '\n' {
				delim = append(delim, src[i+1])
				i += 2
			} else {
				i++
			}
		default:
			delim = append(delim, c)
			i++
		}
	}
	if i == pos || len(delim) == 0 {
		return 0, Heredoc{}, false
	}
	return i, Heredoc{Delimiter: string(delim), Raw: raw, Indent: dashedRedirect(src, pos)}, true
}

// dashedRedirect reports whether the heredoc operator before pos is <<-.
func dashedRedirect(src []byte, pos int) bool {
	i := pos
	for i > 0 && isBlank(src[i-1]) {
		i--
	}
	return bytes.HasSuffix(src[:i], []byte("<<-"))
}

func scanTestOperator(src []byte, pos int) (int, bool) {
	if src[pos] != '-' || pos+1 >= len(src) || !isAlpha(src[pos+1]) {
		return 0, false
	}
	i := pos + 1
	for i < len(src) && isAlpha(src[i]) {
		i++
	}
	if i < len(src) && !isSpace(src[i]) {
		return 0, false
	}
	return i, true
}

func scanFileDescriptor(src []byte, pos int) (int, bool) {
	i := pos
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i == pos || i >= len(src) || (src[i] != '<' && src[i] != '>') {
		return 0, false
	}
	return i, true
}

func scanVariableName(src []byte, pos int) (int, bool) {
	if !isAlpha(src[pos]) && src[pos] != '_' {
		return 0, false
	}
	i := pos + 1
	for i < len(src) && isWordChar(src[i]) {
		i++
	}
	rest := src[i:]
	if len(rest) > 0 && (rest[0] == '=' || rest[0] == '[') || bytes.HasPrefix(rest, []byte("+=")) {
		return i, true
	}
	return 0, false
}

// scanBraceRange reports whether a {a..b} range starts at pos.
func scanBraceRange(src []byte, pos int) bool {
	if src[pos] != '{' {
		return false
	}
	i := pos + 1
	digits := func() bool {
		start := i
		for i < len(src) && isDigit(src[i]) {
			i++
		}
		return i > start
	}
	if !digits() || !bytes.HasPrefix(src[i:], []byte("..")) {
		return false
	}
	i += 2
	return digits() && i < len(src) && src[i] == '}'
}

// scanRegex reads a pattern operand inside ${...}, up to the closing brace
// or, when slash is set, the next unescaped slash.
func scanRegex(src []byte, pos int, slash bool) (int, bool) {
	if src[pos] == '"' || src[pos] == '\'' {
		return 0, false
	}
	var paren, bracket, brace int
	i := pos
	quoted := false
scan:
	for i < len(src) {
		c := src[i]
		if quoted {
			quoted = c != '\''
			i++
			continue
		}
		switch c {
		case '\\':
			i += 2
			continue
		case '\'':
			quoted = true
		case '\n':
			break scan
		case '(':
			paren++
		case '[':
			bracket++
		case '{':
			brace++
		case ')':
			if paren == 0 {
				break scan
			}
			paren--
		case ']':
			if bracket == 0 {
				break scan
			}
			bracket--
		case '}':
			if brace == 0 {
				break scan
			}
			brace--
		case '/':
			if slash && paren == 0 && bracket == 0 && brace == 0 {
				break scan
			}
		}
		i++
	}
	i = min(i, len(src))
	end := i
	for end > pos && isBlank(src[end-1]) {
		end--
	}
	if end == pos || i >= len(src) {
		return 0, false
	}
	return end, true
}

// scanRegexWord reads the right-hand side of =~ or == inside [[ ]]. Plain
// words are left to the grammar.
func scanRegexWord(src []byte, pos int) (int, bool) {
	switch src[pos] {
	case '"', '\'':
		return 0, false
	case '$':
		if pos+1 < len(src) && src[pos+1] == '(' {
			return 0, false
		}
	}
	paren := 0
	special := false
	i := pos
	for i < len(src) {
		c := src[i]
		if isSpace(c) && paren == 0 {
			break
		}
		switch c {
		case '\\':
			i++
		case '(':
			paren++
		case ')':
			paren--
		}
		if !isWordChar(c) && c != '$' && c != '-' {
			special = true
		}
		i++
	}
	i = min(i, len(src))
	if i == pos || !special {
		return 0, false
	}
	return i, true
}

// scanExtglob reads a case pattern that uses an extended glob operator.
func scanExtglob(src []byte, pos int) (int, bool) {
	paren := 0
	extended := false
	i := pos
scan:
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\':
			i += 2
			continue
		case c == '(':
			if i == pos || bytes.IndexByte([]byte("?*+@!"), src[i-1]) < 0 {
				return 0, false
			}
			extended = true
			paren++
		case c == ')':
			if paren == 0 {
				break scan
			}
			paren--
		case paren == 0 && (isSpace(c) || c == '|' || c == ';'):
			break scan
		}
		i++
	}
	i = min(i, len(src))
	if !extended || paren != 0 {
		return 0, false
	}
	return i, true
}

// scanExpansionWord reads an unquoted operand with embedded blanks, such as
// the default in ${x:-two words}.
func scanExpansionWord(src []byte, pos int) (int, bool) {
	i := pos
	for ; i < len(src) && src[i] != '}'; i++ {
		switch src[i] {
		case '$', '"', '\'', '`', '\\', '(', '{', '\n':
			return 0, false
		}
	}
	end := i
	for end > pos && isBlank(src[end-1]) {
		end--
	}
	if i >= len(src) || !bytes.ContainsAny(src[pos:end], " \t") {
		return 0, false
	}
	return end, true
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f' }
func isSpace(c byte) bool { return isBlank(c) || c == '\n' }
func isDigit(c byte) bool { return '0' <= c && c <= '9' }
func isAlpha(c byte) bool { return 'A' <= c&^0x20 && c&^0x20 <= 'Z' }

func isWordChar(c byte) bool { return isAlpha(c) || isDigit(c) || c == '_' }
