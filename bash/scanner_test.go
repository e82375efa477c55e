package bash

import (
	"testing"

	"github.com/dhamidi/shtree/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanHeredocStart(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  int
		end  int
		want Heredoc
		ok   bool
	}{
		{"bare", "cat <<EOF\n", 6, 9, Heredoc{Delimiter: "EOF"}, true},
		{"single quoted", "cat <<'EOF'\n", 6, 11, Heredoc{Delimiter: "EOF", Raw: true}, true},
		{"partly quoted", `cat <<E"O"F` + "\n", 6, 11, Heredoc{Delimiter: "EOF", Raw: true}, true},
		{"escaped", "cat <<\\EOF\n", 6, 10, Heredoc{Delimiter: "EOF", Raw: true}, true},
		{"dashed", "cat <<-EOF\n", 7, 10, Heredoc{Delimiter: "EOF", Indent: true}, true},
		{"dashed with blank", "cat <<- EOF\n", 8, 11, Heredoc{Delimiter: "EOF", Indent: true}, true},
		{"followed by pipe", "cat <<EOF|wc\n", 6, 9, Heredoc{Delimiter: "EOF"}, true},
		{"empty", "cat << ;\n", 7, 0, Heredoc{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, h, ok := scanHeredocStart([]byte(tt.src), tt.pos)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.end, end)
				assert.Equal(t, tt.want, h)
			}
		})
	}
}

func TestHeredoc_Terminator(t *testing.T) {
	tests := []struct {
		name  string
		h     Heredoc
		src   string
		start int
		ok    bool
	}{
		{"exact", Heredoc{Delimiter: "EOF"}, "EOF\n", 0, true},
		{"at end of input", Heredoc{Delimiter: "EOF"}, "EOF", 0, true},
		{"crlf", Heredoc{Delimiter: "EOF"}, "EOF\r\n", 0, true},
		{"longer word", Heredoc{Delimiter: "EOF"}, "EOFX\n", 0, false},
		{"tab without dash", Heredoc{Delimiter: "EOF"}, "\tEOF\n", 0, false},
		{"tab with dash", Heredoc{Delimiter: "EOF", Indent: true}, "\t\tEOF\n", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := tt.h.terminator([]byte(tt.src), 0)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.start, start)
				assert.Equal(t, tt.start+len(tt.h.Delimiter), end)
			}
		})
	}
}

func TestScanWords(t *testing.T) {
	type scanFunc func(src []byte, pos int) (int, bool)
	tests := []struct {
		name string
		scan scanFunc
		src  string
		end  int
		ok   bool
	}{
		{"test operator", scanTestOperator, "-f x", 2, true},
		{"test operator at end", scanTestOperator, "-nt", 3, true},
		{"negative number", scanTestOperator, "-1", 0, false},
		{"option word", scanTestOperator, "-f=x", 0, false},
		{"file descriptor", scanFileDescriptor, "2>&1", 1, true},
		{"number argument", scanFileDescriptor, "2 >x", 0, false},
		{"assignment name", scanVariableName, "a_1=2", 3, true},
		{"append name", scanVariableName, "path+=x", 4, true},
		{"subscript name", scanVariableName, "arr[0]=x", 3, true},
		{"plain word", scanVariableName, "abc def", 0, false},
		{"leading digit", scanVariableName, "1a=2", 0, false},
		{"glob regex", scanRegexWord, "b* ]]", 2, true},
		{"plain regex word", scanRegexWord, "abc ]]", 0, false},
		{"quoted regex", scanRegexWord, `"a" ]]`, 0, false},
		{"grouped regex", scanRegexWord, "(a|b c) ]]", 7, true},
		{"extglob", scanExtglob, "@(a|b))", 6, true},
		{"extglob suffix", scanExtglob, "*.+(c|h) )", 8, true},
		{"plain pattern", scanExtglob, "*.c)", 0, false},
		{"unbalanced extglob", scanExtglob, "!(a", 0, false},
		{"expansion word", scanExpansionWord, "two words}", 9, true},
		{"trailing blanks", scanExpansionWord, "a b  }", 3, true},
		{"single word", scanExpansionWord, "word}", 0, false},
		{"expansion inside", scanExpansionWord, "a $b}", 0, false},
		{"unterminated", scanExpansionWord, "a b", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := tt.scan([]byte(tt.src), 0)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.end, end)
			}
		})
	}
}

func TestScanRegex(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		slash bool
		end   int
		ok    bool
	}{
		{"to brace", "*.txt}", false, 5, true},
		{"nested brace", "a{b}c}", false, 5, true},
		{"to slash", "foo/bar}", true, 3, true},
		{"slash in class", "[/]x/y}", true, 4, true},
		{"slash kept", "foo/bar}", false, 7, true},
		{"escaped brace", `a\}b}`, false, 4, true},
		{"quoted", `"a"}`, false, 0, false},
		{"unterminated", "abc", false, 0, false},
		{"empty", "}", false, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := scanRegex([]byte(tt.src), 0, tt.slash)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.end, end)
			}
		})
	}
}

func TestScanBraceRange(t *testing.T) {
	assert.True(t, scanBraceRange([]byte("{1..10}"), 0))
	assert.False(t, scanBraceRange([]byte("{a..z}"), 0))
	assert.False(t, scanBraceRange([]byte("{1..}"), 0))
	assert.False(t, scanBraceRange([]byte("{1,2}"), 0))
}

func TestScanner_Heredoc(t *testing.T) {
	s, err := NewScanner(Language().Tables)
	require.NoError(t, err)
	valid := grammar.NewSymbolSet(Language().Tables.TerminalCount)
	valid.Add(s.sym.heredocContent)
	valid.Add(s.sym.heredocEnd)
	valid.Add(s.sym.word)

	src := []byte("cat <<EOF\nhello $name\nEOF\n")
	state := ScannerState{}.queueHeredoc(Heredoc{Delimiter: "EOF"}).startHeredocs()

	tok, next, ok := s.Scan(src, 10, state, valid)
	require.True(t, ok)
	assert.Equal(t, s.sym.heredocContent, tok.Symbol)
	assert.Equal(t, "hello ", string(src[tok.Start:tok.End]))
	assert.Equal(t, ModeHeredocBody, next.(ScannerState).Mode())

	tok, next, ok = s.Scan(src, 22, state, valid)
	require.True(t, ok)
	assert.Equal(t, s.sym.heredocEnd, tok.Symbol)
	assert.Equal(t, "EOF", string(src[tok.Start:tok.End]))
	assert.True(t, next.Clean())
}

func TestNewScanner_MissingTokens(t *testing.T) {
	g := &grammar.Grammar{
		Name:  "tiny",
		Rules: []grammar.NamedRule{grammar.Def("program", grammar.Repeat(grammar.Sym("word"))), grammar.Def("word", grammar.Pat(`\w+`))},
	}
	_, err := NewScanner(grammar.MustCompile(g))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heredoc_start")
}
