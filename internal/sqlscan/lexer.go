/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package sqlscan performs the lexical analysis the gateway relies on:
// statement classification, limit detection, relation scanning and
// placeholder handling. It does not parse SQL grammar.
package sqlscan

import (
	"strings"
)

// TokenKind identifies a lexical token class
type TokenKind int

const (
	TokWord        TokenKind = iota // keyword or unquoted identifier
	TokQuotedIdent                  // "identifier"
	TokString                       // '...', E'...', $tag$...$tag$
	TokNumber                       // numeric literal
	TokPositional                   // $1
	TokNamed                        // :name or @name
	TokPunct                        // any other operator or punctuation
)

// Token is a lexical token. Start and End are byte offsets into the
// source text.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Upper returns the token text in upper case
func (t Token) Upper() string {
	return strings.ToUpper(t.Text)
}

// IsKeyword reports whether t is an unquoted word equal to kw, ignoring case
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokWord && strings.EqualFold(t.Text, kw)
}

// Ident returns the identifier named by a word or quoted identifier token.
// Unquoted names fold to lower case.
func (t Token) Ident() string {
	switch t.Kind {
	case TokWord:
		return strings.ToLower(t.Text)
	case TokQuotedIdent:
		inner := t.Text[1:]
		inner = strings.TrimSuffix(inner, `"`)
		return strings.ReplaceAll(inner, `""`, `"`)
	default:
		return ""
	}
}

// Tokenize splits sql into tokens, dropping whitespace and comments.
// Unterminated literals and comments run to the end of the input; the
// server reports the syntax error.
func Tokenize(sql string) []Token {
	l := lexer{src: sql}
	return l.run()
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

func (l *lexer) emit(kind TokenKind, start int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: l.src[start:l.pos], Start: start, End: l.pos})
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

func (l *lexer) run() []Token {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		start := l.pos

		switch {
		case isSpace(c):
			l.pos++

		case c == '-' && l.peek(1) == '-':
			l.skipLineComment()

		case c == '/' && l.peek(1) == '*':
			l.skipBlockComment()

		case c == '\'':
			l.scanQuoted('\'', false)
			l.emit(TokString, start)

		case c == '"':
			l.scanQuoted('"', false)
			l.emit(TokQuotedIdent, start)

		case (c == 'E' || c == 'e') && l.peek(1) == '\'':
			l.pos++
			l.scanQuoted('\'', true)
			l.emit(TokString, start)

		case strings.IndexByte("BbXxNn", c) >= 0 && l.peek(1) == '\'':
			l.pos++
			l.scanQuoted('\'', false)
			l.emit(TokString, start)

		case c == '$' && isDigit(l.peek(1)):
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
			l.emit(TokPositional, start)

		case c == '$':
			if l.scanDollarQuoted() {
				l.emit(TokString, start)
			} else {
				l.pos++
				l.emit(TokPunct, start)
			}

		case isIdentStart(c):
			for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
				l.pos++
			}
			l.emit(TokWord, start)

		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			l.scanNumber()
			l.emit(TokNumber, start)

		case c == ':' && l.peek(1) == ':':
			l.pos += 2
			l.emit(TokPunct, start)

		case (c == ':' || c == '@') && isIdentStart(l.peek(1)) && !l.afterSliceBound(c):
			l.pos++
			for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
				l.pos++
			}
			l.emit(TokNamed, start)

		default:
			l.pos++
			l.emit(TokPunct, start)
		}
	}
	return l.tokens
}

// afterSliceBound reports whether a ':' follows a numeric array
// subscript bound, as in arr[1:n].
func (l *lexer) afterSliceBound(c byte) bool {
	if c != ':' || len(l.tokens) < 2 {
		return false
	}
	last := l.tokens[len(l.tokens)-1]
	prev := l.tokens[len(l.tokens)-2]
	return last.Kind == TokNumber && prev.Kind == TokPunct && prev.Text == "[" && last.End == l.pos
}

func (l *lexer) skipLineComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

// skipBlockComment skips a possibly nested /* */ comment
func (l *lexer) skipBlockComment() {
	depth := 0
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '/' && l.peek(1) == '*':
			depth++
			l.pos += 2
		case l.src[l.pos] == '*' && l.peek(1) == '/':
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
		default:
			l.pos++
		}
	}
}

// scanQuoted consumes a literal delimited by q, where a doubled q is an
// escaped q. With backslash set, a backslash escapes the next byte.
func (l *lexer) scanQuoted(q byte, backslash bool) {
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case backslash && c == '\\':
			l.pos += 2
		case c == q && l.peek(1) == q:
			l.pos += 2
		case c == q:
			l.pos++
			return
		default:
			l.pos++
		}
	}
	l.pos = len(l.src)
}

// scanDollarQuoted consumes $tag$...$tag$ and reports whether the text at
// the current position opened a dollar quote.
func (l *lexer) scanDollarQuoted() bool {
	i := l.pos + 1
	for i < len(l.src) && isIdentByte(l.src[i]) && l.src[i] != '$' {
		i++
	}
	if i >= len(l.src) || l.src[i] != '$' {
		return false
	}
	if i > l.pos+1 && isDigit(l.src[l.pos+1]) {
		return false
	}
	tag := l.src[l.pos : i+1]
	end := strings.Index(l.src[i+1:], tag)
	if end < 0 {
		l.pos = len(l.src)
		return true
	}
	l.pos = i + 1 + end + len(tag)
	return true
}

func (l *lexer) scanNumber() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c) || c == '.' || c == '_':
			l.pos++
		case (c == 'e' || c == 'E') && (isDigit(l.peek(1)) || ((l.peek(1) == '+' || l.peek(1) == '-') && isDigit(l.peek(2)))):
			l.pos += 2
		default:
			return
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
