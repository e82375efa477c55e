// Package bash is the shell-script language: its grammar, the context
// sensitive scanner that complements the generated tables, and helpers to
// parse scripts with them.
package bash

import (
	"github.com/dhamidi/shtree/grammar"
)

var (
	def         = grammar.Def
	sym         = grammar.Sym
	str         = grammar.Str
	pat         = grammar.Pat
	strs        = grammar.Strs
	seq         = grammar.Seq
	choice      = grammar.Choice
	optional    = grammar.Optional
	repeat      = grammar.Repeat
	repeat1     = grammar.Repeat1
	field       = grammar.Field
	alias       = grammar.Alias
	aliasAnon   = grammar.AliasAnon
	prec        = grammar.Prec
	precLeft    = grammar.PrecLeft
	precRight   = grammar.PrecRight
	precDynamic = grammar.PrecDynamic
	token       = grammar.Token
	commaSep    = grammar.CommaSep
	commaSep1   = grammar.CommaSep1
)

// Grammar returns the definition of the shell language. Each call builds a
// fresh value, so callers may modify the result.
func Grammar() *grammar.Grammar {
	return &grammar.Grammar{
		Name: "bash",
		Rules: []grammar.NamedRule{
			def("program", optional(sym("_statements"))),

			def("_statements", seq(
				sym("_statement"),
				repeat(seq(sym("_terminator"), sym("_statement"))),
				optional(sym("_terminator")),
			)),
			def("_statements2", repeat1(seq(sym("_statement"), sym("_terminator")))),
			def("_terminated_statement", seq(sym("_statement"), sym("_terminator"))),

			def("_statement", choice(
				sym("redirected_statement"),
				sym("variable_assignment"),
				sym("variable_assignments"),
				sym("command"),
				sym("declaration_command"),
				sym("unset_command"),
				sym("test_command"),
				sym("negated_command"),
				sym("for_statement"),
				sym("c_style_for_statement"),
				sym("while_statement"),
				sym("if_statement"),
				sym("case_statement"),
				sym("pipeline"),
				sym("list"),
				sym("subshell"),
				sym("compound_statement"),
				sym("function_definition"),
			)),

			def("redirected_statement", precDynamic(-1, prec(-1, choice(
				seq(
					field("body", sym("_statement")),
					field("redirect", repeat1(choice(
						sym("file_redirect"),
						sym("heredoc_redirect"),
						sym("herestring_redirect"),
					))),
				),
				repeat1(sym("file_redirect")),
			)))),

			def("for_statement", seq(
				strs("for", "select"),
				field("variable", alias(sym("_simple_variable_name"), "variable_name")),
				optional(seq(str("in"), field("value", repeat1(sym("_literal"))))),
				sym("_terminator"),
				field("body", sym("do_group")),
			)),
			def("c_style_for_statement", seq(
				str("for"),
				str("(("),
				sym("_for_body"),
				str("))"),
				optional(str(";")),
				field("body", choice(sym("do_group"), sym("compound_statement"))),
			)),
			def("_for_body", seq(
				field("initializer", commaSep(sym("_arithmetic_expression"))),
				sym("_c_terminator"),
				field("condition", commaSep(sym("_arithmetic_expression"))),
				sym("_c_terminator"),
				field("update", commaSep(sym("_arithmetic_expression"))),
			)),
			def("_c_terminator", strs(";", "\n", "&")),

			def("while_statement", seq(
				strs("while", "until"),
				field("condition", repeat1(sym("_terminated_statement"))),
				field("body", sym("do_group")),
			)),
			def("do_group", seq(str("do"), optional(sym("_statements2")), str("done"))),

			def("if_statement", seq(
				str("if"),
				field("condition", sym("_terminated_statement")),
				str("then"),
				optional(sym("_statements2")),
				repeat(sym("elif_clause")),
				optional(sym("else_clause")),
				str("fi"),
			)),
			def("elif_clause", seq(
				str("elif"),
				sym("_terminated_statement"),
				str("then"),
				optional(sym("_statements2")),
			)),
			def("else_clause", seq(str("else"), optional(sym("_statements2")))),

			def("case_statement", seq(
				str("case"),
				field("value", sym("_literal")),
				optional(sym("_terminator")),
				str("in"),
				optional(sym("_terminator")),
				optional(seq(
					repeat(sym("case_item")),
					alias(sym("last_case_item"), "case_item"),
				)),
				str("esac"),
			)),
			def("case_item", seq(
				sym("_case_patterns"),
				optional(sym("_statements")),
				prec(1, choice(
					field("termination", str(";;")),
					field("fallthrough", strs(";&", ";;&")),
				)),
			)),
			def("last_case_item", seq(
				sym("_case_patterns"),
				optional(sym("_statements")),
				optional(prec(1, str(";;"))),
			)),
			def("_case_patterns", seq(
				optional(str("(")),
				field("value", sym("_case_pattern")),
				repeat(seq(str("|"), field("value", sym("_case_pattern")))),
				str(")"),
			)),
			def("_case_pattern", choice(sym("_literal"), sym("extglob_pattern"))),

			def("function_definition", precRight(0, seq(
				choice(
					seq(str("function"), field("name", sym("word")), optional(seq(str("("), str(")")))),
					seq(field("name", sym("word")), str("("), str(")")),
				),
				field("body", choice(
					sym("compound_statement"),
					sym("subshell"),
					sym("test_command"),
				)),
				optional(sym("file_redirect")),
			))),

			def("compound_statement", seq(str("{"), optional(sym("_statements2")), str("}"))),
			def("subshell", seq(str("("), sym("_statements"), str(")"))),
			def("pipeline", precLeft(1, seq(sym("_statement"), strs("|", "|&"), sym("_statement")))),
			def("list", precLeft(-1, seq(sym("_statement"), strs("&&", "||"), sym("_statement")))),

			def("negated_command", seq(
				str("!"),
				choice(
					prec(2, sym("command")),
					prec(1, sym("variable_assignment")),
					sym("test_command"),
					sym("subshell"),
				),
			)),

			def("test_command", choice(
				seq(str("["), optional(sym("_expression")), str("]")),
				seq(str("[["), sym("_expression"), str("]]")),
				seq(str("(("), optional(sym("_arithmetic_expression")), str("))")),
			)),

			def("declaration_command", precLeft(0, seq(
				strs("declare", "typeset", "export", "readonly", "local"),
				repeat(choice(sym("_literal"), sym("variable_assignment"))),
			))),
			def("unset_command", precLeft(0, seq(
				strs("unset", "unsetenv"),
				repeat(sym("_literal")),
			))),

			def("command", precLeft(0, seq(
				repeat(choice(sym("variable_assignment"), sym("file_redirect"))),
				field("name", sym("command_name")),
				repeat(field("argument", choice(
					sym("_literal"),
					aliasAnon(sym("_bare_dollar"), "$"),
				))),
			))),
			def("command_name", sym("_literal")),

			def("variable_assignment", seq(
				field("name", choice(sym("variable_name"), sym("subscript"))),
				strs("=", "+="),
				field("value", choice(sym("_literal"), sym("array"), sym("_empty_value"))),
			)),
			def("variable_assignments", seq(sym("variable_assignment"), repeat1(sym("variable_assignment")))),

			def("subscript", seq(
				field("name", sym("variable_name")),
				str("["),
				field("index", choice(
					sym("_literal"),
					sym("binary_expression"),
					sym("unary_expression"),
					sym("parenthesized_expression"),
				)),
				str("]"),
			)),

			def("file_redirect", precLeft(0, seq(
				field("descriptor", optional(sym("file_descriptor"))),
				choice(
					seq(
						strs("<", ">", ">>", "&>", "&>>", "<&", ">&", ">|", "<>"),
						field("destination", repeat1(sym("_literal"))),
					),
					strs("<&-", ">&-"),
				),
			))),
			// Further heredocs may start on the same line; their bodies follow
			// the first one in order.
			def("heredoc_redirect", seq(
				field("descriptor", optional(sym("file_descriptor"))),
				strs("<<", "<<-"),
				sym("heredoc_start"),
				optional(choice(
					alias(sym("_heredoc_pipeline"), "pipeline"),
					repeat1(choice(
						sym("file_redirect"),
						alias(sym("_heredoc_head"), "heredoc_redirect"),
					)),
				)),
				str("\n"),
				repeat1(seq(optional(sym("heredoc_body")), sym("heredoc_end"))),
			)),
			def("_heredoc_head", seq(
				field("descriptor", optional(sym("file_descriptor"))),
				strs("<<", "<<-"),
				sym("heredoc_start"),
			)),
			def("_heredoc_pipeline", seq(strs("|", "|&"), sym("_statement"))),
			def("heredoc_body", repeat1(choice(
				sym("heredoc_content"),
				sym("simple_expansion"),
				sym("expansion"),
				sym("command_substitution"),
				sym("arithmetic_expansion"),
			))),
			def("herestring_redirect", seq(
				field("descriptor", optional(sym("file_descriptor"))),
				str("<<<"),
				sym("_literal"),
			)),

			// Test expressions, inside [ ] and [[ ]].
			def("_expression", choice(
				sym("_literal"),
				sym("unary_expression"),
				sym("binary_expression"),
				sym("parenthesized_expression"),
			)),
			def("binary_expression", choice(
				testBinary(precLeft, 1, str("||")),
				testBinary(precLeft, 2, str("&&")),
				testBinary(precLeft, 3, choice(strs("=", "==", "!=", "=~", "<", ">"), sym("test_operator"))),
				precLeft(3, seq(
					field("left", sym("_expression")),
					field("operator", strs("==", "!=", "=~")),
					field("right", alias(sym("_regex_no_space"), "regex")),
				)),
			)),
			def("unary_expression", precRight(5, seq(
				field("operator", choice(str("!"), sym("test_operator"))),
				sym("_expression"),
			))),
			def("parenthesized_expression", seq(str("("), sym("_expression"), str(")"))),

			// Arithmetic, inside (( )) and $(( )).
			def("_arithmetic_expression", choice(
				sym("_arithmetic_literal"),
				alias(sym("_arithmetic_binary_expression"), "binary_expression"),
				alias(sym("_arithmetic_ternary_expression"), "ternary_expression"),
				alias(sym("_arithmetic_unary_expression"), "unary_expression"),
				alias(sym("_arithmetic_postfix_expression"), "postfix_expression"),
				alias(sym("_arithmetic_parenthesized_expression"), "parenthesized_expression"),
			)),
			def("_arithmetic_literal", choice(
				sym("number"),
				sym("subscript"),
				sym("simple_expansion"),
				sym("expansion"),
				sym("command_substitution"),
				sym("variable_name"),
				alias(sym("_simple_variable_name"), "variable_name"),
			)),
			def("_arithmetic_binary_expression", choice(
				arithBinary(precRight, 0, "=", "+=", "-=", "*=", "/=", "%=", "**=", "<<=", ">>=", "&=", "^=", "|="),
				arithBinary(precLeft, 2, "||"),
				arithBinary(precLeft, 3, "&&"),
				arithBinary(precLeft, 4, "|"),
				arithBinary(precLeft, 5, "^"),
				arithBinary(precLeft, 6, "&"),
				arithBinary(precLeft, 7, "==", "!="),
				arithBinary(precLeft, 8, "<", ">", "<=", ">="),
				arithBinary(precLeft, 9, "<<", ">>"),
				arithBinary(precLeft, 10, "+", "-"),
				arithBinary(precLeft, 11, "*", "/", "%"),
				arithBinary(precRight, 12, "**"),
			)),
			def("_arithmetic_ternary_expression", precRight(1, seq(
				field("condition", sym("_arithmetic_expression")),
				str("?"),
				field("consequence", sym("_arithmetic_expression")),
				str(":"),
				field("alternative", sym("_arithmetic_expression")),
			))),
			def("_arithmetic_unary_expression", prec(13, seq(
				field("operator", strs("-", "+", "~", "!", "++", "--")),
				sym("_arithmetic_expression"),
			))),
			def("_arithmetic_postfix_expression", prec(14, seq(
				sym("_arithmetic_expression"),
				field("operator", strs("++", "--")),
			))),
			def("_arithmetic_parenthesized_expression", seq(
				str("("),
				sym("_arithmetic_expression"),
				str(")"),
			)),

			// Words.
			def("_literal", choice(
				sym("concatenation"),
				sym("_primary_expression"),
				alias(sym("_special_character"), "word"),
			)),
			def("_primary_expression", choice(
				sym("word"),
				alias(sym("test_operator"), "word"),
				sym("string"),
				sym("raw_string"),
				sym("translated_string"),
				sym("ansi_c_string"),
				sym("number"),
				sym("expansion"),
				sym("simple_expansion"),
				sym("command_substitution"),
				sym("process_substitution"),
				sym("arithmetic_expansion"),
				sym("brace_expression"),
			)),
			def("concatenation", prec(-1, seq(
				sym("_concatenation_part"),
				repeat1(seq(
					sym("_concat"),
					choice(sym("_concatenation_part"), aliasAnon(sym("_bare_dollar"), "$")),
				)),
			))),
			def("_concatenation_part", choice(
				sym("_primary_expression"),
				alias(sym("_special_character"), "word"),
			)),

			def("string", seq(
				str(`"`),
				repeat(choice(
					seq(optional(str("$")), sym("string_content")),
					sym("expansion"),
					sym("simple_expansion"),
					sym("command_substitution"),
					sym("arithmetic_expansion"),
				)),
				optional(str("$")),
				str(`"`),
			)),
			def("translated_string", seq(str("$"), sym("string"))),
			def("array", seq(str("("), repeat(sym("_literal")), str(")"))),

			def("simple_expansion", seq(
				str("$"),
				choice(
					alias(sym("_simple_variable_name"), "variable_name"),
					sym("_special_variable"),
				),
			)),
			def("_special_variable", alias(sym("_special_variable_name"), "special_variable_name")),
			def("_special_variable_name", strs("*", "@", "?", "!", "#", "-", "$", "0", "_")),

			def("expansion", seq(str("${"), optional(sym("_expansion_body")), str("}"))),
			def("_expansion_body", choice(
				seq(field("operator", strs("#", "!")), sym("_expansion_name")),
				seq(field("operator", str("!")), sym("_expansion_name"), field("operator", strs("@", "*"))),
				seq(sym("_expansion_name"), optional(choice(
					sym("_expansion_default"),
					sym("_expansion_removal"),
					sym("_expansion_replacement"),
					sym("_expansion_case"),
					sym("_expansion_substring"),
					sym("_expansion_transform"),
				))),
			)),
			def("_expansion_name", choice(
				sym("variable_name"),
				alias(sym("_simple_variable_name"), "variable_name"),
				sym("_special_variable"),
				sym("subscript"),
			)),
			def("_expansion_default", seq(
				field("operator", strs("=", ":=", "-", ":-", "+", ":+", "?", ":?")),
				optional(sym("_expansion_value")),
			)),
			def("_expansion_removal", seq(
				field("operator", strs("#", "##", "%", "%%")),
				optional(choice(sym("regex"), sym("string"), sym("raw_string"))),
			)),
			def("_expansion_replacement", seq(
				field("operator", strs("/", "//", "/#", "/%")),
				alias(sym("_regex_no_slash"), "regex"),
				optional(seq(field("operator", str("/")), optional(sym("_expansion_value")))),
			)),
			def("_expansion_case", seq(
				field("operator", strs("^", "^^", ",", ",,")),
				optional(sym("regex")),
			)),
			def("_expansion_substring", seq(
				field("operator", str(":")),
				optional(sym("_substring_operand")),
				optional(seq(field("operator", str(":")), optional(sym("_substring_operand")))),
			)),
			def("_substring_operand", choice(
				sym("number"),
				alias(sym("_simple_variable_name"), "variable_name"),
				sym("simple_expansion"),
				sym("expansion"),
				sym("arithmetic_expansion"),
			)),
			def("_expansion_transform", seq(
				field("operator", str("@")),
				field("operator", strs("U", "u", "L", "Q", "E", "P", "A", "K", "a", "k")),
			)),
			def("_expansion_value", choice(
				sym("_expansion_part"),
				alias(sym("_expansion_concatenation"), "concatenation"),
				alias(sym("_expansion_word"), "word"),
				sym("array"),
			)),
			def("_expansion_part", choice(
				sym("word"),
				sym("string"),
				sym("raw_string"),
				sym("ansi_c_string"),
				sym("simple_expansion"),
				sym("expansion"),
				sym("command_substitution"),
				sym("arithmetic_expansion"),
			)),
			def("_expansion_concatenation", seq(
				sym("_expansion_part"),
				repeat1(seq(sym("_concat"), sym("_expansion_part"))),
			)),

			def("command_substitution", choice(
				seq(str("$("), sym("_statements"), str(")")),
				seq(str("$("), sym("file_redirect"), str(")")),
				seq(str("`"), sym("_statements"), str("`")),
			)),
			def("process_substitution", seq(strs("<(", ">("), sym("_statements"), str(")"))),
			def("arithmetic_expansion", seq(
				str("$(("),
				commaSep1(sym("_arithmetic_expression")),
				str("))"),
			)),
			def("brace_expression", seq(
				aliasAnon(sym("_brace_start"), "{"),
				sym("number"),
				str(".."),
				sym("number"),
				str("}"),
			)),

			def("_terminator", strs(";", "\n", "&")),

			// Tokens. number precedes word so that digits alone lex as a
			// number.
			def("comment", token(prec(-10, pat(`#.*`)))),
			def("number", pat(`-?(0x)?[0-9]+(#[0-9A-Za-z@_]+)?`)),
			def("word", pat(`(?:[^#'"<>{}\[\]()\x60$|&;\\\s]|\\[^\s])(?:[^'"<>{}\[\]()\x60$|&;\\\s]|\\[^\s]|\\ )*`)),
			def("_special_character", token(prec(-1, pat(`[{}\[\]]`)))),
			def("_simple_variable_name", pat(`\w+`)),
			def("string_content", token(prec(-1, pat(`(?:[^"\x60$\\]|\\(?:.|\r?\n))+`)))),
			def("raw_string", pat(`'[^']*'`)),
			def("ansi_c_string", pat(`\$'(?:[^'\\]|\\.)*'`)),
		},
		Extras: []grammar.Rule{
			sym("comment"),
			aliasAnon(pat(`[ \t\r\n\v\f]+`), "whitespace"),
			aliasAnon(pat(`\\\r?\n`), "line_continuation"),
		},
		Externals: []grammar.Rule{
			sym("heredoc_start"),
			sym("heredoc_content"),
			sym("heredoc_end"),
			sym("file_descriptor"),
			sym("_empty_value"),
			sym("_concat"),
			sym("variable_name"),
			sym("regex"),
			sym("_regex_no_slash"),
			sym("_regex_no_space"),
			sym("extglob_pattern"),
			sym("_bare_dollar"),
			sym("_brace_start"),
			sym("_expansion_word"),
			sym("test_operator"),
		},
		Inline: []string{
			"_statements2",
			"_terminator",
			"_c_terminator",
			"_literal",
			"_case_pattern",
			"_expansion_name",
		},
		Supertypes: []string{"_statement", "_expression", "_primary_expression"},
		Conflicts: [][]string{
			{"command", "variable_assignments"},
			{"redirected_statement", "command"},
			{"redirected_statement", "command_substitution"},
			{"_expression", "command_name"},
		},
		Word: "word",
	}
}

func testBinary(assoc func(int, grammar.Rule) grammar.Rule, prec int, op grammar.Rule) grammar.Rule {
	return assoc(prec, seq(
		field("left", sym("_expression")),
		field("operator", op),
		field("right", sym("_expression")),
	))
}

func arithBinary(assoc func(int, grammar.Rule) grammar.Rule, prec int, ops ...string) grammar.Rule {
	return assoc(prec, seq(
		field("left", sym("_arithmetic_expression")),
		field("operator", strs(ops...)),
		field("right", sym("_arithmetic_expression")),
	))
}
