package parser

import (
	"fmt"

	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/lexer"
	"github.com/luma-lang/luma/internal/token"
)

// Diagnostic is one structured parse error with a source position.
type Diagnostic struct {
	Message string
	File    string
	Line    int
	Column  int
}

func (d *Diagnostic) Error() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// Operator precedence levels, lowest first.
const (
	_ int = iota
	LOWEST
	OR          // or
	AND         // and
	EQUALITY    // == !=
	COMPARISON  // < <= > >=
	SUM         // + -
	PRODUCT     // * / %
	UNARY       // -x, not x
	POSTFIX     // call(), obj.member, obj[index]
)

var precedences = map[token.TokenType]int{
	token.OR:       OR,
	token.AND:      AND,
	token.EQ:       EQUALITY,
	token.NOT_EQ:   EQUALITY,
	token.LT:       COMPARISON,
	token.LE:       COMPARISON,
	token.GT:       COMPARISON,
	token.GE:       COMPARISON,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   POSTFIX,
	token.LBRACKET: POSTFIX,
	token.DOT:      POSTFIX,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l    *lexer.Lexer
	file string

	curToken  token.Token
	peekToken token.Token

	errors []*Diagnostic

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer, file string) *Parser {
	p := &Parser{l: l, file: file}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:    p.parseIdentifier,
		token.NUMBER:   p.parseNumberLiteral,
		token.STRING:   p.parseStringLiteral,
		token.TRUE:     p.parseBooleanLiteral,
		token.FALSE:    p.parseBooleanLiteral,
		token.NULL:     p.parseNullLiteral,
		token.MINUS:    p.parseUnaryExpression,
		token.NOT:      p.parseUnaryExpression,
		token.LPAREN:   p.parseGroupedExpression,
		token.LBRACKET: p.parseListLiteral,
		token.LBRACE:   p.parseTableLiteral,
		token.FN:       p.parseFunctionLiteral,
		token.IF:       p.parseIfExpression,
		token.DO:       p.parseBlockExpression,
		token.MATCH:    p.parseMatchExpression,
		token.IMPORT:   p.parseImportExpression,
		token.AWAIT:    p.parseAwaitExpression,
	}

	p.infixParseFns = map[token.TokenType]infixParseFn{
		token.PLUS:     p.parseBinaryExpression,
		token.MINUS:    p.parseBinaryExpression,
		token.ASTERISK: p.parseBinaryExpression,
		token.SLASH:    p.parseBinaryExpression,
		token.PERCENT:  p.parseBinaryExpression,
		token.EQ:       p.parseBinaryExpression,
		token.NOT_EQ:   p.parseBinaryExpression,
		token.LT:       p.parseBinaryExpression,
		token.LE:       p.parseBinaryExpression,
		token.GT:       p.parseBinaryExpression,
		token.GE:       p.parseBinaryExpression,
		token.AND:      p.parseLogicalExpression,
		token.OR:       p.parseLogicalExpression,
		token.LPAREN:   p.parseCallExpression,
		token.LBRACKET: p.parseIndexExpression,
		token.DOT:      p.parseMemberAccess,
	}

	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

// Parse tokenizes and parses source in one step.
func Parse(source, file string) (*ast.Program, []*Diagnostic) {
	p := New(lexer.New(source), file)
	program := p.ParseProgram()
	return program, p.Errors()
}

func (p *Parser) Errors() []*Diagnostic { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(tt token.TokenType) bool  { return p.curToken.Type == tt }
func (p *Parser) peekTokenIs(tt token.TokenType) bool { return p.peekToken.Type == tt }

func (p *Parser) expectPeek(tt token.TokenType) bool {
	if p.peekTokenIs(tt) {
		p.nextToken()
		return true
	}
	p.peekError(tt)
	return false
}

func (p *Parser) peekError(tt token.TokenType) {
	p.errorAt(p.peekToken, fmt.Sprintf("expected %s, got %s", tt, p.peekToken.Type))
}

func (p *Parser) errorAt(tok token.Token, msg string) {
	p.errors = append(p.errors, &Diagnostic{
		Message: msg,
		File:    p.file,
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

func (p *Parser) peekPrecedence() int {
	// A '(' or '[' on a new line starts its own statement; only a
	// same-line bracket continues the expression as a call or index.
	switch p.peekToken.Type {
	case token.LPAREN, token.LBRACKET:
		if p.peekToken.Line != p.curToken.Line {
			return LOWEST
		}
	}
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.file}

	for !p.curTokenIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		} else {
			// Skip the offending token so one error does not cascade.
			p.nextToken()
		}
	}

	return program
}
