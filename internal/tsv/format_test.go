/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tsv

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"nil value", nil, `\N`},
		{"empty string", "", ""},
		{"simple string", "hello", "hello"},
		{"string with tab", "hello\tworld", `hello\tworld`},
		{"string with newline", "hello\nworld", `hello\nworld`},
		{"string with carriage return", "hello\rworld", `hello\rworld`},
		{"string with backslash", `C:\temp`, `C:\\temp`},
		{"literal backslash N", `\N`, `\\N`},
		{"integer", 42, "42"},
		{"int64", int64(9223372036854775807), "9223372036854775807"},
		{"float64", 3.14159, "3.14159"},
		{"large float64", 1e21, "1e+21"},
		{"json number", json.Number("12345678901234567890.5"), "12345678901234567890.5"},
		{"bool", true, "true"},
		{"byte slice", []byte("bytes"), "bytes"},
		{"array", []interface{}{"a", nil}, `["a",null]`},
		{"map", map[string]interface{}{"key": "v\tw"}, `{"key":"v\\tw"}`},
		{"time", time.Date(2024, 1, 15, 10, 30, 0, 500, time.UTC), "2024-01-15T10:30:00.0000005Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.input); got != tt.expected {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatResults(t *testing.T) {
	tests := []struct {
		name     string
		columns  []string
		rows     [][]interface{}
		expected string
	}{
		{
			name:     "rows",
			columns:  []string{"id", "name", "active"},
			rows:     [][]interface{}{{int64(1), "Alice", true}, {int64(2), nil, false}},
			expected: "id\tname\tactive\n1\tAlice\ttrue\n2\t\\N\tfalse",
		},
		{
			name:     "header only",
			columns:  []string{"id"},
			rows:     nil,
			expected: "id",
		},
		{
			name:     "escaped header",
			columns:  []string{"a\tb"},
			rows:     [][]interface{}{{"x"}},
			expected: "a\\tb\nx",
		},
		{
			name:     "no columns",
			columns:  nil,
			rows:     [][]interface{}{{1}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatResults(tt.columns, tt.rows); got != tt.expected {
				t.Errorf("FormatResults() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBuildRow(t *testing.T) {
	if got := BuildRow("a", "b\tc", "d"); got != "a\tb\\tc\td" {
		t.Errorf("BuildRow() = %q", got)
	}
}
