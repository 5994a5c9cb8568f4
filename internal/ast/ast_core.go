package ast

import (
	"github.com/luma-lang/luma/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node of every AST the parser produces.
type Program struct {
	File       string // source file path
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) GetToken() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].GetToken()
	}
	return token.Token{}
}

// VarDecl represents a variable binding.
// let x = 1 or var x = 1
type VarDecl struct {
	Token   token.Token // the 'let' or 'var' token
	Mutable bool
	Name    string
	Value   Expression
}

func (vd *VarDecl) statementNode()       {}
func (vd *VarDecl) TokenLiteral() string { return vd.Token.Lexeme }
func (vd *VarDecl) GetToken() token.Token {
	if vd == nil {
		return token.Token{}
	}
	return vd.Token
}

// DestructuringVarDecl binds a pattern against a value.
// let [a, b, ...rest] = xs or let {x, y} = point
type DestructuringVarDecl struct {
	Token   token.Token // the 'let' or 'var' token
	Mutable bool
	Pattern Pattern
	Value   Expression
}

func (dd *DestructuringVarDecl) statementNode()       {}
func (dd *DestructuringVarDecl) TokenLiteral() string { return dd.Token.Lexeme }
func (dd *DestructuringVarDecl) GetToken() token.Token {
	if dd == nil {
		return token.Token{}
	}
	return dd.Token
}

// Assignment assigns to an identifier, member, or index target.
type Assignment struct {
	Token  token.Token // the '=' token
	Target Expression  // *Identifier, *MemberAccess, or *IndexExpression
	Value  Expression
}

func (as *Assignment) statementNode()       {}
func (as *Assignment) TokenLiteral() string { return as.Token.Lexeme }
func (as *Assignment) GetToken() token.Token {
	if as == nil {
		return token.Token{}
	}
	return as.Token
}

// ReturnStatement returns a value from the enclosing function.
type ReturnStatement struct {
	Token token.Token
	Value Expression // nil returns Null
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Lexeme }
func (rs *ReturnStatement) GetToken() token.Token {
	if rs == nil {
		return token.Token{}
	}
	return rs.Token
}

// IfStatement with optional else-if chain and else block.
type IfStatement struct {
	Token      token.Token
	Condition  Expression
	ThenBlock  []Statement
	ElifBlocks []ElifBlock
	ElseBlock  []Statement
	HasElse    bool
}

type ElifBlock struct {
	Condition Expression
	Block     []Statement
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Lexeme }
func (is *IfStatement) GetToken() token.Token {
	if is == nil {
		return token.Token{}
	}
	return is.Token
}

// WhileStatement: while cond do body end
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      []Statement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token {
	if ws == nil {
		return token.Token{}
	}
	return ws.Token
}

// DoWhileStatement: do body while cond end
type DoWhileStatement struct {
	Token     token.Token
	Body      []Statement
	Condition Expression
}

func (dw *DoWhileStatement) statementNode()       {}
func (dw *DoWhileStatement) TokenLiteral() string { return dw.Token.Lexeme }
func (dw *DoWhileStatement) GetToken() token.Token {
	if dw == nil {
		return token.Token{}
	}
	return dw.Token
}

// ForStatement: for pattern in iterable do body end
type ForStatement struct {
	Token    token.Token
	Pattern  Pattern
	Iterable Expression
	Body     []Statement
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Lexeme }
func (fs *ForStatement) GetToken() token.Token {
	if fs == nil {
		return token.Token{}
	}
	return fs.Token
}

// BreakStatement exits Level enclosing loops (default 1).
type BreakStatement struct {
	Token token.Token
	Level int
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BreakStatement) GetToken() token.Token {
	if bs == nil {
		return token.Token{}
	}
	return bs.Token
}

// ContinueStatement restarts Level enclosing loops (default 1).
type ContinueStatement struct {
	Token token.Token
	Level int
}

func (cs *ContinueStatement) statementNode()       {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Lexeme }
func (cs *ContinueStatement) GetToken() token.Token {
	if cs == nil {
		return token.Token{}
	}
	return cs.Token
}

// MatchStatement: match expr do pat do ... end ... end
type MatchStatement struct {
	Token   token.Token
	Subject Expression
	Arms    []MatchArm
}

type MatchArm struct {
	Pattern Pattern
	Block   []Statement
}

func (ms *MatchStatement) statementNode()       {}
func (ms *MatchStatement) TokenLiteral() string { return ms.Token.Lexeme }
func (ms *MatchStatement) GetToken() token.Token {
	if ms == nil {
		return token.Token{}
	}
	return ms.Token
}

// ExpressionStatement wraps an expression evaluated for its effect.
type ExpressionStatement struct {
	Token      token.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token {
	if es == nil {
		return token.Token{}
	}
	return es.Token
}
