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

// QualifiedName is a schema-qualified object reference. Name is empty
// when the reference is to the schema itself.
type QualifiedName struct {
	Schema string
	Name   string
}

func (q QualifiedName) String() string {
	if q.Name == "" {
		return q.Schema
	}
	return q.Schema + "." + q.Name
}

// keywords after which an object name follows
var relationKeywords = map[string]bool{
	"FROM":       true,
	"JOIN":       true,
	"INTO":       true,
	"UPDATE":     true,
	"TABLE":      true,
	"VIEW":       true,
	"SEQUENCE":   true,
	"FUNCTION":   true,
	"PROCEDURE":  true,
	"USING":      true,
	"TRUNCATE":   true,
	"LOCK":       true,
	"REFERENCES": true,
}

// relation keywords that are not followed by a comma-separated list of
// relations
var singleRelationKeywords = map[string]bool{
	"JOIN":       true,
	"INTO":       true,
	"UPDATE":     true,
	"REFERENCES": true,
}

// modifiers that may sit between a relation keyword and the name
var relationModifiers = map[string]bool{
	"ONLY":         true,
	"LATERAL":      true,
	"IF":           true,
	"NOT":          true,
	"EXISTS":       true,
	"CONCURRENTLY": true,
}

// keywords that end a FROM list at the current nesting level
var clauseKeywords = map[string]bool{
	"WHERE":     true,
	"GROUP":     true,
	"HAVING":    true,
	"ORDER":     true,
	"LIMIT":     true,
	"OFFSET":    true,
	"FETCH":     true,
	"WINDOW":    true,
	"UNION":     true,
	"INTERSECT": true,
	"EXCEPT":    true,
	"RETURNING": true,
	"SET":       true,
	"VALUES":    true,
	"SELECT":    true,
	"FOR":       true,
}

// keywords whose presence makes ON introduce a table name, as in
// CREATE INDEX i ON s.t
var onTargetKeywords = map[string]bool{
	"INDEX":   true,
	"TRIGGER": true,
	"RULE":    true,
	"POLICY":  true,
}

// functions whose argument syntax uses FROM, as in EXTRACT(YEAR FROM t.ts)
var fromFunctions = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
	"TRIM":      true,
	"OVERLAY":   true,
	"POSITION":  true,
}

// QualifiedRelations returns every schema-qualified name that appears
// where a relation or schema is expected: after FROM, JOIN, INTO, UPDATE,
// TABLE and similar keywords, after a comma inside any relation list,
// first inside a parenthesized join, and after SCHEMA. Unqualified names
// are not reported.
func QualifiedRelations(sql string) []QualifiedName {
	tokens := Tokenize(sql)
	var found []QualifiedName

	fromList := []bool{false}
	funcArgs := []bool{false}
	onTargets := false

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		depth := len(fromList) - 1

		if tok.Kind == TokPunct {
			switch tok.Text {
			case "(":
				// (a JOIN b) in relation position starts a nested FROM list
				nested := relationPosition(tokens, i, fromList[depth], funcArgs[depth], onTargets)
				fromList = append(fromList, nested)
				funcArgs = append(funcArgs, i > 0 && tokens[i-1].Kind == TokWord && fromFunctions[tokens[i-1].Upper()])
				if nested {
					if q, ok := nameAt(tokens, skipModifiers(tokens, i+1)); ok {
						found = append(found, q)
					}
				}
			case ")":
				if depth > 0 {
					fromList = fromList[:depth]
					funcArgs = funcArgs[:depth]
				}
			case ",":
				if fromList[depth] {
					if q, ok := nameAt(tokens, skipModifiers(tokens, i+1)); ok {
						found = append(found, q)
					}
				}
			}
			continue
		}
		if tok.Kind != TokWord {
			continue
		}

		kw := tok.Upper()
		switch {
		case kw == "FROM" && (funcArgs[depth] || (i > 0 && tokens[i-1].IsKeyword("DISTINCT"))):
			// not a relation list
		case kw == "SCHEMA":
			if j := skipModifiers(tokens, i+1); j < len(tokens) {
				if s := tokens[j].Ident(); s != "" {
					found = append(found, QualifiedName{Schema: s})
				}
			}
		case relationKeywords[kw] || (kw == "ON" && onTargets):
			if !singleRelationKeywords[kw] && kw != "ON" {
				fromList[depth] = true
			}
			if q, ok := nameAt(tokens, skipModifiers(tokens, i+1)); ok {
				found = append(found, q)
			}
		case onTargetKeywords[kw]:
			onTargets = true
		case clauseKeywords[kw]:
			fromList[depth] = false
		}
	}

	return found
}

// relationPosition reports whether the "(" at tokens[i] opens where a
// relation is expected: directly after a relation keyword (and its
// modifiers), after a comma in a FROM list, or inside another such "("
func relationPosition(tokens []Token, i int, inList, inFuncArgs, onTargets bool) bool {
	j := i - 1
	for j >= 0 && tokens[j].Kind == TokWord && relationModifiers[tokens[j].Upper()] {
		j--
	}
	if j < 0 {
		return false
	}
	prev := tokens[j]
	switch prev.Kind {
	case TokWord:
		kw := prev.Upper()
		if kw == "FROM" && (inFuncArgs || (j > 0 && tokens[j-1].IsKeyword("DISTINCT"))) {
			return false
		}
		return relationKeywords[kw] || (kw == "ON" && onTargets)
	case TokPunct:
		return (prev.Text == "," || prev.Text == "(") && inList
	}
	return false
}

func skipModifiers(tokens []Token, j int) int {
	for j < len(tokens) && tokens[j].Kind == TokWord && relationModifiers[tokens[j].Upper()] {
		j++
	}
	return j
}

// nameAt reads a dotted name starting at tokens[j] and reports it if it
// is schema-qualified. For three-part names the middle part is the schema.
func nameAt(tokens []Token, j int) (QualifiedName, bool) {
	var parts []string
	for j < len(tokens) {
		if tokens[j].Kind != TokWord && tokens[j].Kind != TokQuotedIdent {
			break
		}
		parts = append(parts, tokens[j].Ident())
		if j+1 < len(tokens) && tokens[j+1].Kind == TokPunct && tokens[j+1].Text == "." {
			j += 2
			continue
		}
		break
	}

	if len(parts) < 2 {
		return QualifiedName{}, false
	}
	return QualifiedName{Schema: parts[len(parts)-2], Name: parts[len(parts)-1]}, true
}
