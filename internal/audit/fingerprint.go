/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package audit

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"pgedge-sql-gateway/internal/sqlscan"
)

// Fingerprint hashes the shape of a statement. Literals are replaced by
// a marker and unquoted words are case-folded, so statements differing
// only in constants, spacing or comments share a fingerprint.
func Fingerprint(sql string) string {
	h := xxhash.New()
	for _, tok := range sqlscan.Tokenize(sql) {
		switch tok.Kind {
		case sqlscan.TokString, sqlscan.TokNumber:
			_, _ = h.WriteString("?")
		case sqlscan.TokWord:
			_, _ = h.WriteString(tok.Upper())
		case sqlscan.TokPunct:
			if tok.Text == ";" {
				continue
			}
			_, _ = h.WriteString(tok.Text)
		default:
			_, _ = h.WriteString(tok.Text)
		}
		_, _ = h.Write([]byte{0}) // separator
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
