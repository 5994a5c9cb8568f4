package token

import "fmt"

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers and literals
	IDENT  TokenType = "IDENT"
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING"

	// Operators
	ASSIGN   TokenType = "="
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"

	EQ     TokenType = "=="
	NOT_EQ TokenType = "!="
	LT     TokenType = "<"
	GT     TokenType = ">"
	LE     TokenType = "<="
	GE     TokenType = ">="

	// Delimiters
	COMMA    TokenType = ","
	COLON    TokenType = ":"
	DOT      TokenType = "."
	ELLIPSIS TokenType = "..."

	LPAREN   TokenType = "("
	RPAREN   TokenType = ")"
	LBRACKET TokenType = "["
	RBRACKET TokenType = "]"
	LBRACE   TokenType = "{"
	RBRACE   TokenType = "}"

	// Keywords
	LET      TokenType = "LET"
	VAR      TokenType = "VAR"
	FN       TokenType = "FN"
	DO       TokenType = "DO"
	END      TokenType = "END"
	RETURN   TokenType = "RETURN"
	TRUE     TokenType = "TRUE"
	FALSE    TokenType = "FALSE"
	NULL     TokenType = "NULL"
	IF       TokenType = "IF"
	ELSE     TokenType = "ELSE"
	WHILE    TokenType = "WHILE"
	FOR      TokenType = "FOR"
	IN       TokenType = "IN"
	BREAK    TokenType = "BREAK"
	CONTINUE TokenType = "CONTINUE"
	MATCH    TokenType = "MATCH"
	IMPORT   TokenType = "IMPORT"
	AND      TokenType = "AND"
	OR       TokenType = "OR"
	NOT      TokenType = "NOT"
	AWAIT    TokenType = "AWAIT"
	UNDER    TokenType = "_"
)

type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

var keywords = map[string]TokenType{
	"let":      LET,
	"var":      VAR,
	"fn":       FN,
	"do":       DO,
	"end":      END,
	"return":   RETURN,
	"true":     TRUE,
	"false":    FALSE,
	"null":     NULL,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"break":    BREAK,
	"continue": CONTINUE,
	"match":    MATCH,
	"import":   IMPORT,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"await":    AWAIT,
	"_":        UNDER,
}

// LookupIdent returns the keyword type for an identifier lexeme, or IDENT.
func LookupIdent(ident string) TokenType {
	if tt, ok := keywords[ident]; ok {
		return tt
	}
	return IDENT
}
