/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sqlscan

import (
	"fmt"
	"strings"
)

// Role is the access a statement needs
type Role string

const (
	RoleRead        Role = "read"
	RoleWrite       Role = "write"
	RoleUnsupported Role = ""
)

var readKeywords = map[string]bool{
	"SELECT":  true,
	"SHOW":    true,
	"EXPLAIN": true,
	"WITH":    true,
}

var writeKeywords = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"CREATE": true,
	"DROP":   true,
	"ALTER":  true,
}

// LeadingKeyword returns the first token of sql in upper case, after
// whitespace and comments. It returns "" for empty input.
func LeadingKeyword(sql string) string {
	tokens := Tokenize(sql)
	if len(tokens) == 0 {
		return ""
	}
	if tokens[0].Kind != TokWord {
		return tokens[0].Text
	}
	return tokens[0].Upper()
}

// Classify maps the leading keyword of sql onto a role
func Classify(sql string) Role {
	kw := LeadingKeyword(sql)
	switch {
	case readKeywords[kw]:
		return RoleRead
	case writeKeywords[kw]:
		return RoleWrite
	default:
		return RoleUnsupported
	}
}

// HasMultipleStatements reports whether a ';' outside literals and
// comments is followed by anything else.
func HasMultipleStatements(sql string) bool {
	tokens := Tokenize(sql)
	for i, tok := range tokens {
		if tok.Kind == TokPunct && tok.Text == ";" {
			for _, rest := range tokens[i+1:] {
				if !(rest.Kind == TokPunct && rest.Text == ";") {
					return true
				}
			}
			return false
		}
	}
	return false
}

// TrimTerminator removes trailing statement terminators, along with any
// comments and whitespace after them.
func TrimTerminator(sql string) string {
	tokens := Tokenize(sql)
	end := len(tokens)
	for end > 0 && tokens[end-1].Kind == TokPunct && tokens[end-1].Text == ";" {
		end--
	}
	if end == len(tokens) {
		return strings.TrimSpace(sql)
	}
	if end == 0 {
		return ""
	}
	return strings.TrimSpace(sql[:tokens[end-1].End])
}

// HasLimitClause reports whether the outermost query carries a LIMIT or
// FETCH FIRST/NEXT clause. Clauses inside parentheses do not count.
func HasLimitClause(sql string) bool {
	depth := 0
	tokens := Tokenize(sql)
	for i, tok := range tokens {
		switch {
		case tok.Kind == TokPunct && tok.Text == "(":
			depth++
		case tok.Kind == TokPunct && tok.Text == ")":
			if depth > 0 {
				depth--
			}
		case depth == 0 && tok.IsKeyword("LIMIT"):
			return true
		case depth == 0 && tok.IsKeyword("FETCH") && i+1 < len(tokens) &&
			(tokens[i+1].IsKeyword("FIRST") || tokens[i+1].IsKeyword("NEXT")):
			return true
		}
	}
	return false
}

// LimitAlias names the derived table used by WrapWithLimit
const LimitAlias = "_gateway_sub"

// WrapWithLimit bounds a query by selecting from it as a derived table.
// The inner text is placed on its own lines so trailing line comments
// cannot swallow the closing parenthesis.
func WrapWithLimit(sql string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS %s LIMIT %d", TrimTerminator(sql), LimitAlias, limit)
}

// Wrappable reports whether a read statement can be used as a derived
// table. SHOW and EXPLAIN cannot.
func Wrappable(sql string) bool {
	kw := LeadingKeyword(sql)
	return kw == "SELECT" || kw == "WITH"
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Collapse puts sql on one line for display
func Collapse(sql string) string {
	return strings.TrimSpace(lineBreaks.Replace(sql))
}
