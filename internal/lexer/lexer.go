package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/luma-lang/luma/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	line, column := l.line, l.column

	var tok token.Token
	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Lexeme: "==", Line: line, Column: column}
		} else {
			tok = l.newToken(token.ASSIGN)
		}
	case '+':
		tok = l.newToken(token.PLUS)
	case '-':
		tok = l.newToken(token.MINUS)
	case '*':
		tok = l.newToken(token.ASTERISK)
	case '/':
		tok = l.newToken(token.SLASH)
	case '%':
		tok = l.newToken(token.PERCENT)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOT_EQ, Lexeme: "!=", Line: line, Column: column}
		} else {
			tok = l.newToken(token.ILLEGAL)
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LE, Lexeme: "<=", Line: line, Column: column}
		} else {
			tok = l.newToken(token.LT)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Lexeme: ">=", Line: line, Column: column}
		} else {
			tok = l.newToken(token.GT)
		}
	case ',':
		tok = l.newToken(token.COMMA)
	case ':':
		tok = l.newToken(token.COLON)
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			if l.peekChar() == '.' {
				l.readChar()
				tok = token.Token{Type: token.ELLIPSIS, Lexeme: "...", Line: line, Column: column}
			} else {
				tok = token.Token{Type: token.ILLEGAL, Lexeme: "..", Line: line, Column: column}
			}
		} else {
			tok = l.newToken(token.DOT)
		}
	case '(':
		tok = l.newToken(token.LPAREN)
	case ')':
		tok = l.newToken(token.RPAREN)
	case '[':
		tok = l.newToken(token.LBRACKET)
	case ']':
		tok = l.newToken(token.RBRACKET)
	case '{':
		tok = l.newToken(token.LBRACE)
	case '}':
		tok = l.newToken(token.RBRACE)
	case '"':
		return l.readString(line, column)
	case 0:
		tok = token.Token{Type: token.EOF, Lexeme: "", Line: line, Column: column}
	default:
		if isLetter(l.ch) {
			return l.readIdentifier(line, column)
		}
		if unicode.IsDigit(l.ch) {
			return l.readNumber(line, column)
		}
		tok = l.newToken(token.ILLEGAL)
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tt token.TokenType) token.Token {
	return token.Token{Type: tt, Lexeme: string(l.ch), Line: l.line, Column: l.column}
}

// skipWhitespaceAndComments consumes spaces, line comments (-- ...) and
// block comments (--[[ ... ]]).
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			l.readChar() // first -
			l.readChar() // second -
			if l.ch == '[' && l.peekChar() == '[' {
				l.readChar()
				l.readChar()
				l.skipBlockComment()
			} else {
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	for l.ch != 0 {
		if l.ch == ']' && l.peekChar() == ']' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier(line, column int) token.Token {
	start := l.position
	for isLetter(l.ch) || unicode.IsDigit(l.ch) {
		l.readChar()
	}
	lexeme := l.input[start:l.position]
	return token.Token{Type: token.LookupIdent(lexeme), Lexeme: lexeme, Line: line, Column: column}
}

func (l *Lexer) readNumber(line, column int) token.Token {
	start := l.position
	for unicode.IsDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
		l.readChar()
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	return token.Token{Type: token.NUMBER, Lexeme: l.input[start:l.position], Line: line, Column: column}
}

func (l *Lexer) readString(line, column int) token.Token {
	l.readChar() // opening quote

	var sb strings.Builder
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteRune(l.ch)
			}
		} else {
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}

	if l.ch == 0 {
		return token.Token{Type: token.ILLEGAL, Lexeme: sb.String(), Line: line, Column: column}
	}

	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Lexeme: sb.String(), Line: line, Column: column}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}
