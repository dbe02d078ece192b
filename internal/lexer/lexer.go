// Package lexer implements fox's single-pass, lookahead-1 scanner.
//
// The scanner is byte-oriented rather than rune-oriented: per spec it is
// deliberately UTF-8-oblivious, treating source as a flat byte buffer the
// same way the original C scanner (src/compiler/scanner.c) walks a raw
// char* cursor.
package lexer

import (
	"fmt"

	"github.com/foxlang/fox/internal/token"
)

// Lexer is a byte cursor plus a line counter, matching spec.md §4.1.
type Lexer struct {
	src   string
	start int // start of the token currently being scanned
	pos   int // current byte offset
	line  int
}

func New(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	return b
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) match(want byte) bool {
	if l.atEnd() || l.src[l.pos] != want {
		return false
	}
	l.pos++
	return true
}

func (l *Lexer) lexeme() string { return l.src[l.start:l.pos] }

func (l *Lexer) make(k token.Kind) token.Token {
	return token.Token{Kind: k, Lexeme: l.lexeme(), Line: l.line}
}

func (l *Lexer) errorTok(msg string) token.Token {
	return token.Token{Kind: token.ERROR, Lexeme: msg, Line: l.line}
}

// skipWhitespaceAndComments consumes spaces, tabs, CRs, newlines (bumping the
// line counter), line comments (// ...) and non-nesting block comments
// (/* ... */).
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		switch c := l.peek(); c {
		case ' ', '\t', '\r':
			l.pos++
		case '\n':
			l.line++
			l.pos++
		case '/':
			if l.peekNext() == '/' {
				for !l.atEnd() && l.peek() != '\n' {
					l.pos++
				}
			} else if l.peekNext() == '*' {
				l.pos += 2
				for !l.atEnd() && !(l.peek() == '*' && l.peekNext() == '/') {
					if l.peek() == '\n' {
						l.line++
					}
					l.pos++
				}
				if !l.atEnd() {
					l.pos += 2 // consume */
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isAlphaNumeric(c byte) bool { return isAlpha(c) || isDigit(c) }

// Next scans and returns the next token. On unterminated string or
// unexpected byte it returns an ERROR token whose Lexeme is the message;
// the compiler surfaces these as compile errors.
func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()
	l.start = l.pos
	if l.atEnd() {
		return l.make(token.EOF)
	}

	c := l.advance()

	if isAlpha(c) {
		return l.identifier()
	}
	if isDigit(c) {
		return l.number()
	}

	switch c {
	case '(':
		return l.make(token.LPAREN)
	case ')':
		return l.make(token.RPAREN)
	case '{':
		return l.make(token.LBRACE)
	case '}':
		return l.make(token.RBRACE)
	case '[':
		return l.make(token.LBRACKET)
	case ']':
		return l.make(token.RBRACKET)
	case ';':
		return l.make(token.SEMICOLON)
	case ',':
		return l.make(token.COMMA)
	case ':':
		return l.make(token.COLON)
	case '?':
		return l.make(token.QUESTION)
	case '~':
		return l.make(token.TILDE)
	case '.':
		if l.match('.') {
			if l.match('.') {
				return l.make(token.ELLIPSIS)
			}
			return l.make(token.DOTDOT)
		}
		return l.make(token.DOT)
	case '+':
		if l.match('+') {
			return l.make(token.PLUS_PLUS)
		}
		if l.match('=') {
			return l.make(token.PLUS_EQUAL)
		}
		return l.make(token.PLUS)
	case '-':
		if l.match('-') {
			return l.make(token.MINUS_MINUS)
		}
		if l.match('=') {
			return l.make(token.MINUS_EQUAL)
		}
		if l.match('>') {
			return l.make(token.ARROW)
		}
		return l.make(token.MINUS)
	case '*':
		if l.match('=') {
			return l.make(token.STAR_EQUAL)
		}
		return l.make(token.STAR)
	case '/':
		if l.match('=') {
			return l.make(token.SLASH_EQUAL)
		}
		return l.make(token.SLASH)
	case '%':
		if l.match('=') {
			return l.make(token.PERCENT_EQUAL)
		}
		return l.make(token.PERCENT)
	case '&':
		if l.match('&') {
			return l.make(token.AND_AND)
		}
		if l.match('=') {
			return l.make(token.AMP_EQUAL)
		}
		return l.make(token.AMP)
	case '|':
		if l.match('|') {
			return l.make(token.OR_OR)
		}
		if l.match('>') {
			return l.make(token.PIPE_ARROW)
		}
		if l.match('=') {
			return l.make(token.PIPE_EQUAL)
		}
		return l.make(token.PIPE)
	case '^':
		if l.match('=') {
			return l.make(token.CARET_EQUAL)
		}
		return l.make(token.CARET)
	case '=':
		if l.match('=') {
			return l.make(token.EQUAL_EQUAL)
		}
		return l.make(token.EQUAL)
	case '!':
		if l.match('=') {
			return l.make(token.BANG_EQUAL)
		}
		return l.make(token.BANG)
	case '<':
		if l.match('=') {
			return l.make(token.LESS_EQUAL)
		}
		if l.match('-') {
			return l.make(token.LARROW)
		}
		if l.match('<') {
			if l.match('=') {
				return l.make(token.SHL_EQUAL)
			}
			return l.make(token.SHL)
		}
		return l.make(token.LESS)
	case '>':
		if l.match('=') {
			return l.make(token.GREATER_EQUAL)
		}
		if l.match('>') {
			if l.match('>') {
				if l.match('=') {
					return l.make(token.USHR_EQUAL)
				}
				return l.make(token.USHR)
			}
			if l.match('=') {
				return l.make(token.SHR_EQUAL)
			}
			return l.make(token.SHR)
		}
		return l.make(token.GREATER)
	case '"':
		return l.string()
	}

	return l.errorTok(fmt.Sprintf("unexpected byte %q", c))
}

func (l *Lexer) identifier() token.Token {
	for !l.atEnd() && isAlphaNumeric(l.peek()) {
		l.pos++
	}
	return l.make(token.LookupIdent(l.lexeme()))
}

func (l *Lexer) number() token.Token {
	for !l.atEnd() && isDigit(l.peek()) {
		l.pos++
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.pos++ // consume '.'
		for !l.atEnd() && isDigit(l.peek()) {
			l.pos++
		}
	}
	return l.make(token.NUMBER)
}

// string scans a double-quoted string literal, processing the escapes
// \n \a \b \f \r \t \v \' \" \\ and allowing the literal to span newlines.
// The resulting Lexeme is the *decoded* byte contents (no quotes, escapes
// resolved) so the compiler can intern it directly.
func (l *Lexer) string() token.Token {
	var out []byte
	for {
		if l.atEnd() {
			return l.errorTok("unterminated string")
		}
		c := l.peek()
		if c == '"' {
			l.pos++
			break
		}
		if c == '\n' {
			l.line++
		}
		if c == '\\' {
			l.pos++
			if l.atEnd() {
				return l.errorTok("unterminated string")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				out = append(out, '\n')
			case 'a':
				out = append(out, '\a')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'v':
				out = append(out, '\v')
			case '\'':
				out = append(out, '\'')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				return l.errorTok(fmt.Sprintf("invalid escape sequence \\%c", esc))
			}
			continue
		}
		out = append(out, c)
		l.pos++
	}
	return token.Token{Kind: token.STRING, Lexeme: string(out), Line: l.line}
}
