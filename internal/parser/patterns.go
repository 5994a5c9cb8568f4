package parser

import (
	"fmt"
	"strconv"

	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

// parsePattern follows the expression cursor convention: on exit curToken
// rests on the pattern's last token.
func (p *Parser) parsePattern() ast.Pattern {
	switch p.curToken.Type {
	case token.UNDER:
		return &ast.WildcardPattern{Token: p.curToken}

	case token.IDENT:
		return &ast.IdentPattern{Token: p.curToken, Name: p.curToken.Lexeme}

	case token.LBRACKET:
		return p.parseListPattern()

	case token.LBRACE:
		return p.parseTablePattern()

	case token.NUMBER:
		value, err := strconv.ParseFloat(p.curToken.Lexeme, 64)
		if err != nil {
			p.errorAt(p.curToken, fmt.Sprintf("invalid number literal %q", p.curToken.Lexeme))
			return nil
		}
		return &ast.LiteralPattern{
			Token: p.curToken,
			Value: &ast.NumberLiteral{Token: p.curToken, Value: value},
		}

	case token.STRING:
		return &ast.LiteralPattern{
			Token: p.curToken,
			Value: &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Lexeme},
		}

	case token.TRUE, token.FALSE:
		return &ast.LiteralPattern{
			Token: p.curToken,
			Value: &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)},
		}

	case token.NULL:
		return &ast.LiteralPattern{
			Token: p.curToken,
			Value: &ast.NullLiteral{Token: p.curToken},
		}

	default:
		p.errorAt(p.curToken, fmt.Sprintf("unexpected token %s in pattern", p.curToken.Type))
		return nil
	}
}

func (p *Parser) parseListPattern() ast.Pattern {
	pat := &ast.ListPattern{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACKET) {
		p.nextToken()

		if p.curTokenIs(token.ELLIPSIS) {
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			pat.Rest = p.curToken.Lexeme
			pat.HasRest = true
			if !p.peekTokenIs(token.RBRACKET) {
				p.errorAt(p.peekToken, "rest binding must be the last pattern element")
				return nil
			}
			break
		}

		elem := p.parsePattern()
		if elem == nil {
			return nil
		}
		pat.Elements = append(pat.Elements, elem)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACKET) {
			p.peekError(token.RBRACKET)
			return nil
		}
	}

	p.nextToken() // ]
	return pat
}

func (p *Parser) parseTablePattern() ast.Pattern {
	pat := &ast.TablePattern{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACE) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		field := ast.TablePatternField{Key: p.curToken.Lexeme, Binding: p.curToken.Lexeme}

		// {key: binding} renames the extracted field.
		if p.peekTokenIs(token.COLON) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			field.Binding = p.curToken.Lexeme
		}
		pat.Fields = append(pat.Fields, field)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACE) {
			p.peekError(token.RBRACE)
			return nil
		}
	}

	p.nextToken() // }
	return pat
}
