package query

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var queryLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `;[^\n]*`, Action: nil},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`, Action: nil},
		{Name: "Capture", Pattern: `@[a-zA-Z_][a-zA-Z0-9_.\-]*`, Action: nil},
		{Name: "Predicate", Pattern: `#[a-zA-Z_][a-zA-Z0-9_\-]*[?!]?`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},
		{Name: "Punctuation", Pattern: `[()\[\]:?*+]`, Action: nil},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
	},
})

var queryParser = participle.MustBuild[queryAST](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

type queryAST struct {
	Patterns []*patternAST `parser:"@@*"`
}

type patternAST struct {
	Pos lexer.Position

	Field      string        `parser:"( @Ident \":\" )?"`
	Predicate  *predicateAST `parser:"(   @@"`
	Node       *nodeAST      `parser:"  | @@"`
	Alts       []*patternAST `parser:"  | \"[\" @@+ \"]\""`
	Literal    *string       `parser:"  | @String"`
	Wildcard   bool          `parser:"  | @\"_\" )"`
	Quantifier string        `parser:"@( \"?\" | \"*\" | \"+\" )?"`
	Captures   []string      `parser:"@Capture*"`
}

type nodeAST struct {
	Pos lexer.Position

	Kind  string        `parser:"\"(\" @Ident?"`
	Items []*patternAST `parser:"@@* \")\""`
}

type predicateAST struct {
	Pos lexer.Position

	Name string    `parser:"\"(\" @Predicate"`
	Args []*argAST `parser:"@@* \")\""`
}

type argAST struct {
	Capture *string `parser:"  @Capture"`
	String  *string `parser:"| @String"`
	Ident   *string `parser:"| @Ident"`
}
