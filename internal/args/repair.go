/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package args

import (
	"strings"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
)

// literals maps Python, SQL and JSON spellings onto JSON literals.
var literals = map[string]string{
	"true": "true", "True": "true", "TRUE": "true",
	"false": "false", "False": "false", "FALSE": "false",
	"null": "null", "Null": "null", "NULL": "null", "None": "null", "nil": "null",
}

// Repair applies a fixed set of textual transforms to near-JSON text.
// Text inside double-quoted strings is never altered. The rules are:
//
//   - surrounding whitespace and ``` code fences are removed
//   - typographic quotes become ASCII quotes
//   - terminated single-quoted strings become double-quoted strings
//   - True/False/None style literals in value position become true/false/null
//   - bare object keys are quoted
//   - bare single-word values followed by , } ] are quoted
//   - commas directly before } or ] are dropped
//
// The result is not guaranteed to be valid JSON.
func Repair(text string) string {
	s := smartQuotes.Replace(stripFences(strings.TrimSpace(text)))

	var b strings.Builder
	b.Grow(len(s) + 16)

	// last significant byte written outside a string; 'w' marks a word
	var prev byte
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"':
			end := scanDoubleQuoted(s, i)
			b.WriteString(s[i:end])
			prev = '"'
			i = end

		case c == '\'':
			end, ok := scanSingleQuoted(s, i)
			if !ok {
				b.WriteByte(c)
				prev = c
				i++
				continue
			}
			writeRequoted(&b, s[i+1:end-1])
			prev = '"'
			i = end

		case c == ',':
			j := skipSpace(s, i+1)
			if j >= len(s) || s[j] == '}' || s[j] == ']' {
				i++
				continue
			}
			b.WriteByte(c)
			prev = c
			i++

		case isWordStart(c):
			end := scanWord(s, i)
			word := s[i:end]
			next := skipSpace(s, end)
			valuePos := prev == ':' || prev == '[' || prev == ','
			lit, isLit := literals[word]

			switch {
			case next < len(s) && s[next] == ':' && (prev == '{' || prev == ','):
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			case valuePos && isLit:
				b.WriteString(lit)
			case valuePos && (next >= len(s) || strings.IndexByte(",}]", s[next]) >= 0):
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			default:
				b.WriteString(word)
			}
			prev = 'w'
			i = end

		default:
			b.WriteByte(c)
			if !isSpace(c) {
				prev = c
			}
			i++
		}
	}

	return b.String()
}

// stripFences removes a surrounding markdown code fence, including an
// optional language tag on the opening line.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// scanDoubleQuoted returns the index just past the string starting at
// s[start]. An unterminated string runs to the end of s.
func scanDoubleQuoted(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(s)
}

// scanSingleQuoted returns the index just past a terminated single-quoted
// string starting at s[start].
func scanSingleQuoted(s string, start int) (int, bool) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			return i + 1, true
		}
	}
	return 0, false
}

// writeRequoted writes the body of a single-quoted string as a JSON
// double-quoted string.
func writeRequoted(b *strings.Builder, body string) {
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			if i+1 < len(body) && body[i+1] == '\'' {
				b.WriteByte('\'')
			} else if i+1 < len(body) {
				b.WriteByte(c)
				b.WriteByte(body[i+1])
			} else {
				b.WriteString(`\\`)
			}
			i++
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

func scanWord(s string, start int) int {
	i := start
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	return i
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '.' || c == '-'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
