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
	"strconv"
	"strings"
)

// Style is the placeholder convention a statement uses
type Style int

const (
	StyleNone       Style = iota
	StylePositional       // $1, $2, ...
	StyleNamed            // :name or @name
)

func (s Style) String() string {
	switch s {
	case StylePositional:
		return "positional"
	case StyleNamed:
		return "named"
	default:
		return "none"
	}
}

// Placeholders describes the parameters a statement expects
type Placeholders struct {
	Style Style
	// Count is the highest positional index, or the number of distinct names
	Count int
	// Names holds distinct named parameters in order of first use
	Names []string
}

// ScanPlaceholders finds the placeholders in sql. Mixing styles, $0 and
// unused positional indices are errors.
func ScanPlaceholders(sql string) (Placeholders, error) {
	var p Placeholders
	seenIndex := map[int]bool{}
	seenName := map[string]bool{}
	positional, named := false, false

	for _, tok := range Tokenize(sql) {
		switch tok.Kind {
		case TokPositional:
			positional = true
			n, err := strconv.Atoi(tok.Text[1:])
			if err != nil || n < 1 {
				return Placeholders{}, fmt.Errorf("invalid placeholder %s", tok.Text)
			}
			seenIndex[n] = true
			if n > p.Count {
				p.Count = n
			}
		case TokNamed:
			named = true
			name := tok.Text[1:]
			if !seenName[name] {
				seenName[name] = true
				p.Names = append(p.Names, name)
			}
		}
	}

	switch {
	case positional && named:
		return Placeholders{}, fmt.Errorf("statement mixes positional ($n) and named (:name) placeholders")
	case positional:
		p.Style = StylePositional
		for i := 1; i <= p.Count; i++ {
			if !seenIndex[i] {
				return Placeholders{}, fmt.Errorf("placeholder $%d is never used but $%d is", i, p.Count)
			}
		}
	case named:
		p.Style = StyleNamed
		p.Count = len(p.Names)
	}

	return p, nil
}

// RewriteNamed replaces named placeholders with $k, where k is the
// 1-based position of the name in p.Names. Other text is unchanged.
func RewriteNamed(sql string, p Placeholders) string {
	if p.Style != StyleNamed {
		return sql
	}

	index := make(map[string]int, len(p.Names))
	for i, name := range p.Names {
		index[name] = i + 1
	}

	var b strings.Builder
	b.Grow(len(sql))
	last := 0
	for _, tok := range Tokenize(sql) {
		if tok.Kind != TokNamed {
			continue
		}
		k, ok := index[tok.Text[1:]]
		if !ok {
			continue
		}
		b.WriteString(sql[last:tok.Start])
		b.WriteString("$")
		b.WriteString(strconv.Itoa(k))
		last = tok.End
	}
	b.WriteString(sql[last:])
	return b.String()
}
