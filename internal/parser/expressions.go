package parser

import (
	"fmt"
	"strconv"

	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorAt(p.curToken, fmt.Sprintf("unexpected token %s", p.curToken.Type))
		return nil
	}
	left := prefix()

	for left != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}

	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Lexeme, 64)
	if err != nil {
		p.errorAt(p.curToken, fmt.Sprintf("invalid number literal %q", p.curToken.Lexeme))
		return nil
	}
	return &ast.NumberLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Lexeme}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

func (p *Parser) parseUnaryExpression() ast.Expression {
	expr := &ast.UnaryExpression{Token: p.curToken, Operator: p.curToken.Lexeme}
	p.nextToken()
	expr.Operand = p.parseExpression(UNARY)
	if expr.Operand == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Lexeme,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	expr := &ast.LogicalExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Lexeme,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseListLiteral() ast.Expression {
	lit := &ast.ListLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		lit.Elements = append(lit.Elements, elem)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACKET) {
			p.peekError(token.RBRACKET)
			return nil
		}
	}

	p.nextToken() // ]
	return lit
}

func (p *Parser) parseTableLiteral() ast.Expression {
	lit := &ast.TableLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACE) {
		var key string
		switch p.peekToken.Type {
		case token.IDENT, token.STRING:
			p.nextToken()
			key = p.curToken.Lexeme
		default:
			p.errorAt(p.peekToken, "expected table key")
			return nil
		}

		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		lit.Fields = append(lit.Fields, ast.TableField{Key: key, Value: value})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACE) {
			p.peekError(token.RBRACE)
			return nil
		}
	}

	p.nextToken() // }
	return lit
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	for !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		param := ast.Param{Name: p.curToken.Lexeme}

		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			param.Default = p.parseExpression(LOWEST)
			if param.Default == nil {
				return nil
			}
		}
		lit.Params = append(lit.Params, param)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.peekError(token.RPAREN)
			return nil
		}
	}
	p.nextToken() // )

	if !p.expectPeek(token.DO) {
		return nil
	}
	p.nextToken()
	lit.Body = p.parseBlock(token.END)
	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close function body")
		return nil
	}
	// Leave curToken on 'end'; the caller advances per the expression
	// convention.
	return lit
}

func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.IfExpression{Token: p.curToken}

	p.nextToken()
	expr.Condition = p.parseExpression(LOWEST)
	if expr.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.DO) {
		return nil
	}
	p.nextToken()
	expr.ThenBlock = p.parseBlock(token.ELSE, token.END)

	if p.curTokenIs(token.ELSE) {
		if !p.expectPeek(token.DO) {
			return nil
		}
		p.nextToken()
		expr.ElseBlock = p.parseBlock(token.END)
		expr.HasElse = true
	}

	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close if")
		return nil
	}
	return expr
}

func (p *Parser) parseBlockExpression() ast.Expression {
	expr := &ast.BlockExpression{Token: p.curToken}
	p.nextToken()
	expr.Body = p.parseBlock(token.END)
	if !p.curTokenIs(token.END) {
		p.errorAt(p.curToken, "expected 'end' to close block")
		return nil
	}
	return expr
}

func (p *Parser) parseMatchExpression() ast.Expression {
	matchTok := p.curToken

	subject, arms, ok := p.parseMatchBody()
	if !ok {
		return nil
	}
	return &ast.MatchExpression{Token: matchTok, Subject: subject, Arms: arms}
}

func (p *Parser) parseImportExpression() ast.Expression {
	expr := &ast.ImportExpression{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	expr.Path = p.parseExpression(LOWEST)
	if expr.Path == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseAwaitExpression() ast.Expression {
	expr := &ast.AwaitExpression{Token: p.curToken}
	p.nextToken()
	expr.Operand = p.parseExpression(UNARY)
	if expr.Operand == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	call := &ast.CallExpression{Token: p.curToken, Callee: callee}

	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()

		arg := ast.CallArgument{Token: p.curToken}
		if p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN) {
			arg.Name = p.curToken.Lexeme
			p.nextToken() // =
			p.nextToken()
		}
		arg.Value = p.parseExpression(LOWEST)
		if arg.Value == nil {
			return nil
		}
		call.Arguments = append(call.Arguments, arg)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.peekError(token.RPAREN)
			return nil
		}
	}

	p.nextToken() // )
	return call
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Object: object}

	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if expr.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseMemberAccess(object ast.Expression) ast.Expression {
	expr := &ast.MemberAccess{Token: p.curToken, Object: object}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expr.Member = p.curToken.Lexeme
	return expr
}
