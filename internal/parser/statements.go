package parser

import (
	"fmt"
	"strconv"

	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

// Statement parsers consume their whole construct: on entry curToken is the
// statement's first token, on exit it is the first token after the
// statement. Expression parsers follow the usual Pratt convention instead
// (curToken rests on the expression's last token).

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET, token.VAR:
		return p.parseVarDecl()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.DO:
		return p.parseDoStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.MATCH:
		return p.parseMatchStatement()
	default:
		return p.parseExpressionOrAssignment()
	}
}

// parseBlock collects statements until one of the terminator tokens is the
// current token. The terminator is not consumed.
func (p *Parser) parseBlock(terminators ...token.TokenType) []ast.Statement {
	var stmts []ast.Statement

	for !p.curTokenIs(token.EOF) && !p.curTokenIn(terminators) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.nextToken()
			continue
		}
		stmts = append(stmts, stmt)
	}

	if p.curTokenIs(token.EOF) {
		p.errorAt(p.curToken, "unexpected end of input inside block")
	}

	return stmts
}

func (p *Parser) curTokenIn(types []token.TokenType) bool {
	for _, tt := range types {
		if p.curToken.Type == tt {
			return true
		}
	}
	return false
}

func (p *Parser) parseVarDecl() ast.Statement {
	declTok := p.curToken
	mutable := p.curTokenIs(token.VAR)

	switch p.peekToken.Type {
	case token.LBRACKET, token.LBRACE:
		p.nextToken()
		pat := p.parsePattern()
		if pat == nil {
			return nil
		}
		if !p.expectPeek(token.ASSIGN) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		p.nextToken()
		return &ast.DestructuringVarDecl{Token: declTok, Mutable: mutable, Pattern: pat, Value: value}

	case token.IDENT:
		p.nextToken()
		name := p.curToken.Lexeme
		if !p.expectPeek(token.ASSIGN) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		p.nextToken()
		return &ast.VarDecl{Token: declTok, Mutable: mutable, Name: name, Value: value}

	default:
		p.errorAt(p.peekToken, fmt.Sprintf("expected name or pattern after %q", declTok.Lexeme))
		return nil
	}
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	p.nextToken()

	if startsExpression(p.curToken.Type) {
		stmt.Value = p.parseExpression(LOWEST)
		p.nextToken()
	}
	return stmt
}

// startsExpression reports whether a token can begin an expression; used to
// decide whether `return` carries a value.
func startsExpression(tt token.TokenType) bool {
	switch tt {
	case token.IDENT, token.NUMBER, token.STRING, token.TRUE, token.FALSE,
		token.NULL, token.MINUS, token.NOT, token.LPAREN, token.LBRACKET,
		token.LBRACE, token.FN, token.IF, token.DO, token.MATCH,
		token.IMPORT, token.AWAIT:
		return true
	}
	return false
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.DO) {
		return nil
	}
	p.nextToken()
	stmt.ThenBlock = p.parseBlock(token.ELSE, token.END)

	for p.curTokenIs(token.ELSE) && p.peekTokenIs(token.IF) {
		p.nextToken() // else
		p.nextToken() // if
		var elif ast.ElifBlock
		elif.Condition = p.parseExpression(LOWEST)
		if elif.Condition == nil {
			return nil
		}
		if !p.expectPeek(token.DO) {
			return nil
		}
		p.nextToken()
		elif.Block = p.parseBlock(token.ELSE, token.END)
		stmt.ElifBlocks = append(stmt.ElifBlocks, elif)
	}

	if p.curTokenIs(token.ELSE) {
		if !p.expectPeek(token.DO) {
			return nil
		}
		p.nextToken()
		stmt.ElseBlock = p.parseBlock(token.END)
		stmt.HasElse = true
	}

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close if")
		return nil
	}
	p.nextToken()
	return stmt
}

// parseDoStatement handles both `do ... while cond end` and a bare
// `do ... end` block in statement position.
func (p *Parser) parseDoStatement() ast.Statement {
	doTok := p.curToken
	p.nextToken()
	body := p.parseBlock(token.WHILE, token.END)

	if p.curTokenIs(token.WHILE) {
		p.nextToken()
		cond := p.parseExpression(LOWEST)
		if cond == nil {
			return nil
		}
		if !p.expectPeek(token.END) {
			return nil
		}
		p.nextToken()
		return &ast.DoWhileStatement{Token: doTok, Body: body, Condition: cond}
	}

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' or 'while' to close do block")
		return nil
	}
	p.nextToken()
	return &ast.ExpressionStatement{
		Token:      doTok,
		Expression: &ast.BlockExpression{Token: doTok, Body: body},
	}
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.DO) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseBlock(token.END)

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close while")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}

	p.nextToken()
	stmt.Pattern = p.parsePattern()
	if stmt.Pattern == nil {
		return nil
	}
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if stmt.Iterable == nil {
		return nil
	}
	if !p.expectPeek(token.DO) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseBlock(token.END)

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close for")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseBreakStatement() ast.Statement {
	stmt := &ast.BreakStatement{Token: p.curToken, Level: 1}
	if p.peekTokenIs(token.NUMBER) {
		p.nextToken()
		stmt.Level = p.parseLoopLevel()
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseContinueStatement() ast.Statement {
	stmt := &ast.ContinueStatement{Token: p.curToken, Level: 1}
	if p.peekTokenIs(token.NUMBER) {
		p.nextToken()
		stmt.Level = p.parseLoopLevel()
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseLoopLevel() int {
	level, err := strconv.Atoi(p.curToken.Lexeme)
	if err != nil || level < 1 {
		p.errorAt(p.curToken, fmt.Sprintf("invalid loop level %q", p.curToken.Lexeme))
		return 1
	}
	return level
}

func (p *Parser) parseMatchStatement() ast.Statement {
	matchTok := p.curToken

	subject, arms, ok := p.parseMatchBody()
	if !ok {
		return nil
	}
	p.nextToken() // past the closing end
	return &ast.MatchStatement{Token: matchTok, Subject: subject, Arms: arms}
}

// parseMatchBody parses `match subject do (pattern do stmts end)* end` and
// leaves curToken on the closing end, following the expression-parser
// cursor convention. Shared by the statement and expression forms.
func (p *Parser) parseMatchBody() (ast.Expression, []ast.MatchArm, bool) {
	p.nextToken()
	subject := p.parseExpression(LOWEST)
	if subject == nil {
		return nil, nil, false
	}
	if !p.expectPeek(token.DO) {
		return nil, nil, false
	}
	p.nextToken()

	var arms []ast.MatchArm
	for !p.curTokenIs(token.END) && !p.curTokenIs(token.EOF) {
		pat := p.parsePattern()
		if pat == nil {
			return nil, nil, false
		}
		if !p.expectPeek(token.DO) {
			return nil, nil, false
		}
		p.nextToken()
		block := p.parseBlock(token.END)
		if !p.curTokenIs(token.END) {
			p.errorAt(p.curToken, "expected 'end' to close match arm")
			return nil, nil, false
		}
		p.nextToken()
		arms = append(arms, ast.MatchArm{Pattern: pat, Block: block})
	}

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close match")
		return nil, nil, false
	}
	return subject, arms, true
}

// parseExpressionOrAssignment parses an expression statement, upgrading it
// to an assignment when the expression is followed by '='.
func (p *Parser) parseExpressionOrAssignment() ast.Statement {
	startTok := p.curToken
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		assignTok := p.curToken
		switch expr.(type) {
		case *ast.Identifier, *ast.MemberAccess, *ast.IndexExpression:
		default:
			p.errorAt(assignTok, "invalid assignment target")
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		p.nextToken()
		return &ast.Assignment{Token: assignTok, Target: expr, Value: value}
	}

	p.nextToken()
	return &ast.ExpressionStatement{Token: startTok, Expression: expr}
}
