/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package tsv renders result rows as tab-separated text using the
// escaping rules of PostgreSQL's COPY text format.
package tsv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Null is how SQL NULL is written, distinct from the empty string
const Null = `\N`

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

// FormatValue converts a value to a TSV-safe string
func FormatValue(v interface{}) string {
	if v == nil {
		return Null
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format(time.RFC3339Nano)
	case bool:
		s = strconv.FormatBool(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprintf("%d", val)
	case float32:
		s = strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case []interface{}, map[string]interface{}:
		// Arrays and JSON documents are written as compact JSON
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprintf("%v", val)
		} else {
			s = string(data)
		}
	default:
		s = fmt.Sprintf("%v", val)
	}

	return escaper.Replace(s)
}

// FormatResults converts query results to TSV: a header row followed by
// data rows. No columns yields an empty string.
func FormatResults(columnNames []string, results [][]interface{}) string {
	if len(columnNames) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(BuildRow(columnNames...))
	for _, row := range results {
		sb.WriteByte('\n')
		for i, val := range row {
			if i > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(FormatValue(val))
		}
	}
	return sb.String()
}

// BuildRow creates a single TSV row from string values
func BuildRow(values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escaper.Replace(v)
	}
	return strings.Join(escaped, "\t")
}
