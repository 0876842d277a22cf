/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package gateway

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/sqlscan"
)

// bindParams orders params to match the placeholders p describes
func bindParams(p sqlscan.Placeholders, params interface{}) ([]any, error) {
	switch v := params.(type) {
	case nil:
		if p.Style != sqlscan.StyleNone {
			return nil, bindError("statement expects %d %s parameter(s) but none were supplied", p.Count, p.Style)
		}
		return nil, nil

	case []interface{}:
		switch p.Style {
		case sqlscan.StyleNone:
			if len(v) > 0 {
				return nil, bindError("statement has no placeholders but %d parameter(s) were supplied", len(v))
			}
			return nil, nil
		case sqlscan.StyleNamed:
			return nil, bindError("statement uses named placeholders (%s); params must be a mapping", joinNames(p.Names))
		}
		if len(v) != p.Count {
			return nil, bindError("statement expects %d positional parameter(s) but %d were supplied", p.Count, len(v))
		}
		out := make([]any, len(v))
		for i, val := range v {
			s, err := scalar("$"+strconv.Itoa(i+1), val)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil

	case map[string]interface{}:
		switch p.Style {
		case sqlscan.StyleNone:
			if len(v) > 0 {
				return nil, bindError("statement has no placeholders but parameter(s) %s were supplied", joinKeys(v))
			}
			return nil, nil
		case sqlscan.StylePositional:
			return bindPositionalMap(p, v)
		}
		return bindNamedMap(p, v)

	default:
		return nil, bindError("params must be a mapping or a sequence, got %T", params)
	}
}

// bindPositionalMap accepts keys "1".."n" or "$1".."$n"
func bindPositionalMap(p sqlscan.Placeholders, m map[string]interface{}) ([]any, error) {
	out := make([]any, p.Count)
	seen := make([]bool, p.Count)
	for key, val := range m {
		n, err := strconv.Atoi(strings.TrimPrefix(key, "$"))
		if err != nil || n < 1 || n > p.Count {
			return nil, bindError("parameter %q does not match a placeholder $1..$%d", key, p.Count)
		}
		if seen[n-1] {
			return nil, bindError("parameter $%d supplied more than once", n)
		}
		s, err := scalar("$"+strconv.Itoa(n), val)
		if err != nil {
			return nil, err
		}
		out[n-1] = s
		seen[n-1] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, bindError("missing value for placeholder $%d", i+1)
		}
	}
	return out, nil
}

// bindNamedMap orders values by first use of each name
func bindNamedMap(p sqlscan.Placeholders, m map[string]interface{}) ([]any, error) {
	out := make([]any, len(p.Names))
	for i, name := range p.Names {
		val, ok := m[name]
		if !ok {
			return nil, bindError("missing value for placeholder :%s", name)
		}
		s, err := scalar(":"+name, val)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	if len(m) != len(p.Names) {
		known := make(map[string]bool, len(p.Names))
		for _, n := range p.Names {
			known[n] = true
		}
		var extra []string
		for k := range m {
			if !known[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, bindError("parameter(s) %s do not match any placeholder", strings.Join(extra, ", "))
	}
	return out, nil
}

// scalar checks that v can be sent as a single parameter value. Whole
// numbers become int64 so they bind to integer columns.
func scalar(name string, v interface{}) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int, int32, int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, bindError("parameter %s is not a valid number: %s", name, x)
		}
		return f, nil
	default:
		return nil, bindError("parameter %s must be a scalar (string, number, boolean or null), got %T", name, v)
	}
}

func bindError(format string, args ...interface{}) *failures.Error {
	return failures.New(failures.ParameterBindingError, format, args...)
}

func joinNames(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = ":" + n
	}
	return strings.Join(out, ", ")
}

func joinKeys(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
