package lexer

import (
	"testing"
)

func tokenize(t *testing.T, src string) []Token {
	t.Helper()
	toks, bag := New(src).Tokenize()
	if bag.HasErrors() {
		t.Fatalf("tokenize(%q): unexpected errors: %v", src, bag.Errors())
	}
	return toks
}

func TestTokenizeEndsWithEOF(t *testing.T) {
	cases := []string{
		"",
		"let x = 1;",
		"fun main() -> Int { 0 }",
		"\"a@{1+1}b\"",
	}
	for _, src := range cases {
		toks := tokenize(t, src)
		if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
			t.Errorf("tokenize(%q): last token not EOF: %+v", src, toks)
		}
	}
}

func TestStringInterpolationSequence(t *testing.T) {
	toks := tokenize(t, `"a@{x}b"`)
	want := []TokenKind{StringLiteral, InterpStart, Identifier, InterpEnd, StringLiteral, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
	if toks[0].Text != "a" || toks[4].Text != "b" {
		t.Errorf("string segments: got %q/%q, want \"a\"/\"b\"", toks[0].Text, toks[4].Text)
	}
	if toks[2].Text != "x" {
		t.Errorf("interpolated identifier: got %q, want \"x\"", toks[2].Text)
	}
}

func TestNestedBracesInsideInterpolation(t *testing.T) {
	// The braces of a block inside an interpolation must balance
	// before the terminating "}" is recognized as InterpEnd.
	toks := tokenize(t, `"@{f({1})}"`)
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	// InterpStart, ident f, LParen, LBrace, int 1, RBrace, RParen, InterpEnd, EOF
	want := []TokenKind{InterpStart, Identifier, LParen, LBrace, IntLiteral, RBrace, RParen, InterpEnd, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestBareBraceAndAtSignInStringAreLiteralText(t *testing.T) {
	// A bare "{" with no preceding "@" is not an interpolation opener, and
	// a bare "@" not immediately followed by "{" is not one either.
	toks := tokenize(t, `"a@{x}b"`)
	if toks[0].Kind != StringLiteral || toks[0].Text != "a" {
		t.Fatalf("segment before interpolation = %+v, want StringLiteral(\"a\")", toks[0])
	}

	toks = tokenize(t, `"{not interpolation} and @ alone"`)
	if len(toks) != 2 || toks[0].Kind != StringLiteral {
		t.Fatalf("got %+v, want a single literal StringLiteral segment", toks)
	}
	want := "{not interpolation} and @ alone"
	if toks[0].Text != want {
		t.Errorf("Text = %q, want %q", toks[0].Text, want)
	}
}

func TestNumericLiterals(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
	}{
		{"123", IntLiteral},
		{"0x1F", IntLiteral},
		{"0b1010", IntLiteral},
		{"3.14", FloatLiteral},
		{"1e10", FloatLiteral},
		{"1.5e-3", FloatLiteral},
	}
	for _, c := range cases {
		toks := tokenize(t, c.src)
		if toks[0].Kind != c.kind {
			t.Errorf("tokenize(%q): kind = %s, want %s", c.src, toks[0].Kind, c.kind)
		}
	}
}

func TestKeywordsRecognized(t *testing.T) {
	for _, kw := range []string{"fun", "let", "const", "if", "match", "sealed", "implements", "@nogc"} {
		toks := tokenize(t, kw)
		if toks[0].Kind != Keyword {
			t.Errorf("%q lexed as %s, want Keyword", kw, toks[0].Kind)
		}
	}
}

func TestRawString(t *testing.T) {
	toks := tokenize(t, `@"no @{escape} here"`)
	if toks[0].Kind != StringLiteral {
		t.Fatalf("raw string: kind = %s, want StringLiteral", toks[0].Kind)
	}
	if toks[0].Text != "no @{escape} here" {
		t.Errorf("raw string text = %q", toks[0].Text)
	}
}

func TestEscapesAndUnicodeEscape(t *testing.T) {
	toks := tokenize(t, `"line1\nline2\u{48}"`)
	if toks[0].Kind != StringLiteral {
		t.Fatalf("kind = %s", toks[0].Kind)
	}
	want := "line1\nline2H"
	if toks[0].Text != want {
		t.Errorf("got %q, want %q", toks[0].Text, want)
	}
}

func TestUnterminatedStringErrors(t *testing.T) {
	_, bag := New(`"unterminated`).Tokenize()
	if !bag.HasErrors() {
		t.Fatalf("expected an error for unterminated string")
	}
}

func TestUnterminatedInterpolationErrors(t *testing.T) {
	_, bag := New(`"@{1+1`).Tokenize()
	if !bag.HasErrors() {
		t.Fatalf("expected an error for unterminated interpolation")
	}
}

func TestInvalidEscapeErrors(t *testing.T) {
	_, bag := New(`"\q"`).Tokenize()
	if !bag.HasErrors() {
		t.Fatalf("expected an error for invalid escape")
	}
}

func TestCommentsAndWhitespaceSkipped(t *testing.T) {
	toks := tokenize(t, "// line comment\n/* nested /* block */ comment */ let x = 1;")
	if toks[0].Kind != Keyword || toks[0].Text != "let" {
		t.Fatalf("expected first token to be 'let' keyword after comments, got %+v", toks[0])
	}
}

func TestSpanInvariantHolds(t *testing.T) {
	toks := tokenize(t, "fun main() -> Int { let x = 1 + 2 * 3; x }")
	for _, tok := range toks {
		if tok.Span.Start.Offset > tok.Span.End.Offset {
			t.Errorf("token %+v violates span invariant", tok)
		}
	}
}
