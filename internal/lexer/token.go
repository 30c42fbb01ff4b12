package lexer

import "github.com/korlang-lang/korlang/internal/diag"

// TokenKind tags a lexeme. Numeric/text payloads ride along on Token.Text
// rather than on the kind itself; literal values are decoded from Text
// when needed.
type TokenKind int

const (
	Identifier TokenKind = iota
	IntLiteral
	FloatLiteral
	StringLiteral
	CharLiteral
	BoolLiteral
	NullLiteral
	Keyword

	Plus
	Minus
	Star
	Slash
	Percent

	DotPlus
	DotMinus
	DotStar
	DotSlash
	At

	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	PercentEq

	EqEq
	FatArrow
	NotEq
	Lt
	LtEq
	Gt
	GtEq

	AndAnd
	OrOr
	Not

	Arrow
	Pipe
	NullCoalesce
	Question

	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket

	Comma
	Semi
	Colon
	Dot

	InterpStart
	InterpEnd

	EOF
)

var tokenNames = map[TokenKind]string{
	Identifier: "identifier", IntLiteral: "int", FloatLiteral: "float",
	StringLiteral: "string", CharLiteral: "char", BoolLiteral: "bool", NullLiteral: "null", Keyword: "keyword",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	DotPlus: ".+", DotMinus: ".-", DotStar: ".*", DotSlash: "./", At: "@",
	Eq: "=", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=", PercentEq: "%=",
	EqEq: "==", FatArrow: "=>", NotEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=",
	AndAnd: "&&", OrOr: "||", Not: "!",
	Arrow: "->", Pipe: "|>", NullCoalesce: "?:", Question: "?",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Comma: ",", Semi: ";", Colon: ":", Dot: ".",
	InterpStart: "@{", InterpEnd: "}", EOF: "<eof>",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "<unknown>"
}

// keywords is the interned set of reserved words, including the
// at-keywords (@nogc, @import, @bridge) which lex as Keyword tokens too.
var keywords = map[string]bool{
	"fun": true, "let": true, "var": true, "const": true, "if": true, "else": true,
	"match": true, "for": true, "while": true, "break": true, "continue": true,
	"return": true, "struct": true, "enum": true, "type": true, "view": true,
	"resource": true, "interface": true, "sealed": true, "implements": true,
	"class": true, "in": true, "mut": true, "as": true, "import": true,
	"@nogc": true, "@import": true, "@bridge": true,
}

// Token is a single lexed unit: a kind, its raw text, and the span it came
// from. Literal values are decoded lazily by callers (the parser) from Text
// rather than stored redundantly on the token.
type Token struct {
	Kind TokenKind
	Text string
	Span diag.Span
}

func (t Token) String() string {
	if t.Text != "" {
		return t.Text
	}
	return t.Kind.String()
}
