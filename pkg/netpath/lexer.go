// Package netpath implements the public path addressing scheme for resolved
// block properties: "branchId/blocks[type=X]/index/property" with type
// filters, index ranges, and numeric comparison filters on quantity.
// Downstream operations code against these paths, so the syntax is a stable
// contract independent of internal node ids.
package netpath

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenIdentifier
	TokenNumber

	TokenSlash         // /
	TokenLBracket      // [
	TokenRBracket      // ]
	TokenComma         // ,
	TokenStar          // *
	TokenDotDot        // ..
	TokenEquals        // =
	TokenNotEquals     // !=
	TokenLessThan      // <
	TokenGreaterThan   // >
	TokenLessEquals    // <=
	TokenGreaterEquals // >=
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes a path expression
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over the input
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token
func (l *Lexer) Next() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '/':
		l.pos++
		return Token{Type: TokenSlash, Value: "/", Pos: start}
	case c == '[':
		l.pos++
		return Token{Type: TokenLBracket, Value: "[", Pos: start}
	case c == ']':
		l.pos++
		return Token{Type: TokenRBracket, Value: "]", Pos: start}
	case c == ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: start}
	case c == '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: start}
	case c == '=':
		l.pos++
		return Token{Type: TokenEquals, Value: "=", Pos: start}
	case c == '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Type: TokenNotEquals, Value: "!=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Value: "!", Pos: start}
	case c == '<':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Type: TokenLessEquals, Value: "<=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenLessThan, Value: "<", Pos: start}
	case c == '>':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Type: TokenGreaterEquals, Value: ">=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenGreaterThan, Value: ">", Pos: start}
	case c == '.':
		if l.peekAt(1) == '.' {
			l.pos += 2
			return Token{Type: TokenDotDot, Value: "..", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Value: ".", Pos: start}
	case c >= '0' && c <= '9':
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
		return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
	case isIdentStart(rune(c)):
		for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
			l.pos++
		}
		return Token{Type: TokenIdentifier, Value: l.input[start:l.pos], Pos: start}
	default:
		l.pos++
		return Token{Type: TokenError, Value: string(c), Pos: start}
	}
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

// ParseError is a syntax error with its position in the input
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid path %q at position %d: %s", e.Input, e.Pos, e.Msg)
}
