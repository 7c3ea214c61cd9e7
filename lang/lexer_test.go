package lang

import "testing"

func tokenKinds(t *testing.T, tokens []Token) []TokenKind {
	t.Helper()
	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestLexerTokenizesDeclaration(t *testing.T) {
	source := `solid body = box { w: 20; }`
	lexer := NewLexer(source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{
		TokenSolid, TokenIdent, TokenAssign, TokenIdent,
		TokenLBrace, TokenIdent, TokenColon, TokenNumber, TokenSemicolon,
		TokenRBrace, TokenEOF,
	}
	got := tokenKinds(t, tokens)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestLexerNumberExponentRollback(t *testing.T) {
	// "1e" with no digits after 'e' rolls back to the number "1" followed
	// by an identifier "e".
	lexer := NewLexer("1e")
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected [number, ident, eof], got %d tokens: %v", len(tokens), tokens)
	}
	if tokens[0].Kind != TokenNumber || tokens[0].Lexeme != "1" {
		t.Errorf("expected number '1', got %v %q", tokens[0].Kind, tokens[0].Lexeme)
	}
	if tokens[1].Kind != TokenIdent || tokens[1].Lexeme != "e" {
		t.Errorf("expected ident 'e', got %v %q", tokens[1].Kind, tokens[1].Lexeme)
	}
}

func TestLexerNumberWithExponent(t *testing.T) {
	lexer := NewLexer("1.5e-3")
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokenNumber || tokens[0].Lexeme != "1.5e-3" {
		t.Errorf("got %v %q", tokens[0].Kind, tokens[0].Lexeme)
	}
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	_, err := NewLexer("/* never closes").Tokenize()
	if err == nil {
		t.Fatal("expected an error for unterminated block comment")
	}
}

func TestLexerLineComment(t *testing.T) {
	tokens, err := NewLexer("// hello\nsolid").Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 || tokens[0].Kind != TokenSolid {
		t.Fatalf("expected [solid, eof], got %v", tokens)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := NewLexer(`"unterminated`).Tokenize()
	if err == nil {
		t.Fatal("expected an error for unterminated string literal")
	}
}

func TestLexerInvalidStringEscape(t *testing.T) {
	_, err := NewLexer(`"bad \q escape"`).Tokenize()
	if err == nil {
		t.Fatal("expected an error for unknown string escape")
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tokens, err := NewLexer(`"a\nb\tc\"d"`).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokenString {
		t.Fatalf("expected string token, got %v", tokens[0].Kind)
	}
	unescaped, err := Unescape(tokens[0].Lexeme, tokens[0].Span)
	if err != nil {
		t.Fatalf("unescape error: %v", err)
	}
	want := "a\nb\tc\"d"
	if unescaped != want {
		t.Errorf("got %q want %q", unescaped, want)
	}
}

func TestLexerOperators(t *testing.T) {
	tokens, err := NewLexer("== != <= >= && || ! < >").Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{
		TokenEqEq, TokenNotEq, TokenLte, TokenGte, TokenAndAnd, TokenOrOr,
		TokenBang, TokenLt, TokenGt, TokenEOF,
	}
	got := tokenKinds(t, tokens)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}
