package ast

import (
	"strconv"

	"github.com/luma-lang/luma/internal/token"
)

// Identifier refers to a variable by name.
type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token {
	if i == nil {
		return token.Token{}
	}
	return i.Token
}

// NumberLiteral is a 64-bit float literal.
type NumberLiteral struct {
	Token token.Token
	Value float64
}

func (nl *NumberLiteral) expressionNode()      {}
func (nl *NumberLiteral) TokenLiteral() string { return nl.Token.Lexeme }
func (nl *NumberLiteral) GetToken() token.Token {
	if nl == nil {
		return token.Token{}
	}
	return nl.Token
}

func (nl *NumberLiteral) String() string {
	return strconv.FormatFloat(nl.Value, 'g', -1, 64)
}

// StringLiteral is a double-quoted string literal.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token {
	if sl == nil {
		return token.Token{}
	}
	return sl.Token
}

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Lexeme }
func (bl *BooleanLiteral) GetToken() token.Token {
	if bl == nil {
		return token.Token{}
	}
	return bl.Token
}

// NullLiteral is the null value.
type NullLiteral struct {
	Token token.Token
}

func (nl *NullLiteral) expressionNode()      {}
func (nl *NullLiteral) TokenLiteral() string { return nl.Token.Lexeme }
func (nl *NullLiteral) GetToken() token.Token {
	if nl == nil {
		return token.Token{}
	}
	return nl.Token
}

// ListLiteral: [a, b, c]
type ListLiteral struct {
	Token    token.Token // the '[' token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Lexeme }
func (ll *ListLiteral) GetToken() token.Token {
	if ll == nil {
		return token.Token{}
	}
	return ll.Token
}

// TableLiteral: {key: value, "quoted key": value}
type TableLiteral struct {
	Token  token.Token // the '{' token
	Fields []TableField
}

type TableField struct {
	Key   string
	Value Expression
}

func (tl *TableLiteral) expressionNode()      {}
func (tl *TableLiteral) TokenLiteral() string { return tl.Token.Lexeme }
func (tl *TableLiteral) GetToken() token.Token {
	if tl == nil {
		return token.Token{}
	}
	return tl.Token
}

// FunctionLiteral: fn(a, b = default) do body end
type FunctionLiteral struct {
	Token  token.Token // the 'fn' token
	Params []Param
	Body   []Statement
}

type Param struct {
	Name    string
	Default Expression // nil when the parameter is required
}

func (fl *FunctionLiteral) expressionNode()      {}
func (fl *FunctionLiteral) TokenLiteral() string { return fl.Token.Lexeme }
func (fl *FunctionLiteral) GetToken() token.Token {
	if fl == nil {
		return token.Token{}
	}
	return fl.Token
}

// BinaryExpression: left op right for arithmetic and comparison operators.
type BinaryExpression struct {
	Token    token.Token // the operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (be *BinaryExpression) expressionNode()      {}
func (be *BinaryExpression) TokenLiteral() string { return be.Token.Lexeme }
func (be *BinaryExpression) GetToken() token.Token {
	if be == nil {
		return token.Token{}
	}
	return be.Token
}

// LogicalExpression: left and right, left or right (short-circuit).
type LogicalExpression struct {
	Token    token.Token // the 'and' or 'or' token
	Left     Expression
	Operator string
	Right    Expression
}

func (le *LogicalExpression) expressionNode()      {}
func (le *LogicalExpression) TokenLiteral() string { return le.Token.Lexeme }
func (le *LogicalExpression) GetToken() token.Token {
	if le == nil {
		return token.Token{}
	}
	return le.Token
}

// UnaryExpression: -x or not x.
type UnaryExpression struct {
	Token    token.Token // the operator token
	Operator string
	Operand  Expression
}

func (ue *UnaryExpression) expressionNode()      {}
func (ue *UnaryExpression) TokenLiteral() string { return ue.Token.Lexeme }
func (ue *UnaryExpression) GetToken() token.Token {
	if ue == nil {
		return token.Token{}
	}
	return ue.Token
}

// CallExpression: callee(arg, name = arg).
type CallExpression struct {
	Token     token.Token // the '(' token
	Callee    Expression
	Arguments []CallArgument
}

// CallArgument is positional when Name is empty, named otherwise.
type CallArgument struct {
	Name  string
	Token token.Token // the argument's first token, for error positions
	Value Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token {
	if ce == nil {
		return token.Token{}
	}
	return ce.Token
}

// MemberAccess: object.member
type MemberAccess struct {
	Token  token.Token // the '.' token
	Object Expression
	Member string
}

func (ma *MemberAccess) expressionNode()      {}
func (ma *MemberAccess) TokenLiteral() string { return ma.Token.Lexeme }
func (ma *MemberAccess) GetToken() token.Token {
	if ma == nil {
		return token.Token{}
	}
	return ma.Token
}

// IndexExpression: object[index]
type IndexExpression struct {
	Token  token.Token // the '[' token
	Object Expression
	Index  Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Lexeme }
func (ie *IndexExpression) GetToken() token.Token {
	if ie == nil {
		return token.Token{}
	}
	return ie.Token
}

// IfExpression: if cond do ... else do ... end used in value position.
type IfExpression struct {
	Token     token.Token
	Condition Expression
	ThenBlock []Statement
	ElseBlock []Statement
	HasElse   bool
}

func (ie *IfExpression) expressionNode()      {}
func (ie *IfExpression) TokenLiteral() string { return ie.Token.Lexeme }
func (ie *IfExpression) GetToken() token.Token {
	if ie == nil {
		return token.Token{}
	}
	return ie.Token
}

// BlockExpression: do ... end producing the value of its last expression.
type BlockExpression struct {
	Token token.Token // the 'do' token
	Body  []Statement
}

func (be *BlockExpression) expressionNode()      {}
func (be *BlockExpression) TokenLiteral() string { return be.Token.Lexeme }
func (be *BlockExpression) GetToken() token.Token {
	if be == nil {
		return token.Token{}
	}
	return be.Token
}

// MatchExpression: match in value position, evaluating to the selected arm.
type MatchExpression struct {
	Token   token.Token
	Subject Expression
	Arms    []MatchArm
}

func (me *MatchExpression) expressionNode()      {}
func (me *MatchExpression) TokenLiteral() string { return me.Token.Lexeme }
func (me *MatchExpression) GetToken() token.Token {
	if me == nil {
		return token.Token{}
	}
	return me.Token
}

// ImportExpression: import("path")
type ImportExpression struct {
	Token token.Token
	Path  Expression
}

func (ie *ImportExpression) expressionNode()      {}
func (ie *ImportExpression) TokenLiteral() string { return ie.Token.Lexeme }
func (ie *ImportExpression) GetToken() token.Token {
	if ie == nil {
		return token.Token{}
	}
	return ie.Token
}

// AwaitExpression: await x. Reserved syntax with no execution model yet;
// the compiler rejects it.
type AwaitExpression struct {
	Token   token.Token
	Operand Expression
}

func (ae *AwaitExpression) expressionNode()      {}
func (ae *AwaitExpression) TokenLiteral() string { return ae.Token.Lexeme }
func (ae *AwaitExpression) GetToken() token.Token {
	if ae == nil {
		return token.Token{}
	}
	return ae.Token
}
