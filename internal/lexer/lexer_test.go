package lexer

import (
	"testing"

	"github.com/luma-lang/luma/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `let five = 5
var total = 5.25
let add = fn(a, b = 1)
	a + b
end
if five <= 10 and not false do
	total = total - 1
end
match xs do
	[first, ...rest] do first end
	_ do null end
end
"hi\n" == "hi"
x != y`

	tests := []struct {
		wantType   token.TokenType
		wantLexeme string
	}{
		{token.LET, "let"},
		{token.IDENT, "five"},
		{token.ASSIGN, "="},
		{token.NUMBER, "5"},
		{token.VAR, "var"},
		{token.IDENT, "total"},
		{token.ASSIGN, "="},
		{token.NUMBER, "5.25"},
		{token.LET, "let"},
		{token.IDENT, "add"},
		{token.ASSIGN, "="},
		{token.FN, "fn"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.IDENT, "b"},
		{token.ASSIGN, "="},
		{token.NUMBER, "1"},
		{token.RPAREN, ")"},
		{token.IDENT, "a"},
		{token.PLUS, "+"},
		{token.IDENT, "b"},
		{token.END, "end"},
		{token.IF, "if"},
		{token.IDENT, "five"},
		{token.LE, "<="},
		{token.NUMBER, "10"},
		{token.AND, "and"},
		{token.NOT, "not"},
		{token.FALSE, "false"},
		{token.DO, "do"},
		{token.IDENT, "total"},
		{token.ASSIGN, "="},
		{token.IDENT, "total"},
		{token.MINUS, "-"},
		{token.NUMBER, "1"},
		{token.END, "end"},
		{token.MATCH, "match"},
		{token.IDENT, "xs"},
		{token.DO, "do"},
		{token.LBRACKET, "["},
		{token.IDENT, "first"},
		{token.COMMA, ","},
		{token.ELLIPSIS, "..."},
		{token.IDENT, "rest"},
		{token.RBRACKET, "]"},
		{token.DO, "do"},
		{token.IDENT, "first"},
		{token.END, "end"},
		{token.UNDER, "_"},
		{token.DO, "do"},
		{token.NULL, "null"},
		{token.END, "end"},
		{token.END, "end"},
		{token.STRING, "hi\n"},
		{token.EQ, "=="},
		{token.STRING, "hi"},
		{token.IDENT, "x"},
		{token.NOT_EQ, "!="},
		{token.IDENT, "y"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.wantType {
			t.Fatalf("tests[%d]: wrong type, expected %q, got %q (%s)", i, tt.wantType, tok.Type, tok)
		}
		if tok.Lexeme != tt.wantLexeme {
			t.Fatalf("tests[%d]: wrong lexeme, expected %q, got %q", i, tt.wantLexeme, tok.Lexeme)
		}
	}
}

func TestComments(t *testing.T) {
	input := `1 -- a line comment
--[[ a block
comment ]] 2`

	l := New(input)
	first := l.NextToken()
	second := l.NextToken()
	eof := l.NextToken()

	if first.Lexeme != "1" || second.Lexeme != "2" {
		t.Fatalf("comments leaked tokens: %s, %s", first, second)
	}
	if eof.Type != token.EOF {
		t.Fatalf("expected EOF, got %s", eof)
	}
}

func TestPositions(t *testing.T) {
	input := "let x = 1\nx + 2"
	l := New(input)

	tests := []struct {
		lexeme string
		line   int
		column int
	}{
		{"let", 1, 1},
		{"x", 1, 5},
		{"=", 1, 7},
		{"1", 1, 9},
		{"x", 2, 1},
		{"+", 2, 3},
		{"2", 2, 5},
	}

	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Lexeme != tt.lexeme || tok.Line != tt.line || tok.Column != tt.column {
			t.Fatalf("tests[%d]: expected %q@%d:%d, got %s", i, tt.lexeme, tt.line, tt.column, tok)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"oops`)
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL for unterminated string, got %s", tok)
	}
}

func TestUnicodeIdentifiers(t *testing.T) {
	l := New("ναι = 1")
	tok := l.NextToken()
	if tok.Type != token.IDENT || tok.Lexeme != "ναι" {
		t.Fatalf("expected unicode identifier, got %s", tok)
	}
}
