package ast

import (
	"github.com/luma-lang/luma/internal/token"
)

// Pattern is a destructuring/matching shape used in declarations, loop
// headers, and match arms.
type Pattern interface {
	Node
	patternNode()
}

// IdentPattern binds the matched value to a name.
type IdentPattern struct {
	Token token.Token
	Name  string
}

func (ip *IdentPattern) patternNode()         {}
func (ip *IdentPattern) TokenLiteral() string { return ip.Token.Lexeme }
func (ip *IdentPattern) GetToken() token.Token {
	if ip == nil {
		return token.Token{}
	}
	return ip.Token
}

// WildcardPattern matches anything without binding.
type WildcardPattern struct {
	Token token.Token
}

func (wp *WildcardPattern) patternNode()         {}
func (wp *WildcardPattern) TokenLiteral() string { return wp.Token.Lexeme }
func (wp *WildcardPattern) GetToken() token.Token {
	if wp == nil {
		return token.Token{}
	}
	return wp.Token
}

// ListPattern destructures a list: [a, _, ...rest]
type ListPattern struct {
	Token    token.Token // the '[' token
	Elements []Pattern
	Rest     string // "" when no rest binding
	HasRest  bool
}

func (lp *ListPattern) patternNode()         {}
func (lp *ListPattern) TokenLiteral() string { return lp.Token.Lexeme }
func (lp *ListPattern) GetToken() token.Token {
	if lp == nil {
		return token.Token{}
	}
	return lp.Token
}

// TablePattern destructures a table: {x, y: renamed}
type TablePattern struct {
	Token  token.Token // the '{' token
	Fields []TablePatternField
}

// TablePatternField extracts Key; Binding is the local name, defaulting
// to Key when the source had no rename.
type TablePatternField struct {
	Key     string
	Binding string
}

func (tp *TablePattern) patternNode()         {}
func (tp *TablePattern) TokenLiteral() string { return tp.Token.Lexeme }
func (tp *TablePattern) GetToken() token.Token {
	if tp == nil {
		return token.Token{}
	}
	return tp.Token
}

// LiteralPattern matches a specific number, string, boolean, or null.
type LiteralPattern struct {
	Token token.Token
	Value Expression // *NumberLiteral, *StringLiteral, *BooleanLiteral, or *NullLiteral
}

func (lp *LiteralPattern) patternNode()         {}
func (lp *LiteralPattern) TokenLiteral() string { return lp.Token.Lexeme }
func (lp *LiteralPattern) GetToken() token.Token {
	if lp == nil {
		return token.Token{}
	}
	return lp.Token
}
