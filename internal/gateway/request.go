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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"pgedge-sql-gateway/internal/args"
	"pgedge-sql-gateway/internal/failures"
)

const (
	// DefaultLimit bounds reads that do not ask for a limit
	DefaultLimit = 100
	// LimitCeiling bounds every read regardless of the requested limit
	LimitCeiling = 1000
)

// QueryRequest is a statement to run through the gatekeeper
type QueryRequest struct {
	SQL string `json:"sql" validate:"required"`
	// Params is nil, a []interface{} of positional values or a
	// map[string]interface{} of named (or "1", "$1" keyed) values
	Params interface{} `json:"params,omitempty"`
	// Role is "read" or "write"; empty means read
	Role string `json:"role,omitempty" validate:"omitempty,oneof=read write"`
	// Limit is the requested row bound for reads; zero means DefaultLimit
	Limit int `json:"limit,omitempty" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest checks field-level constraints and reports the first
// problem as InvalidArgumentShape.
func validateRequest(req QueryRequest) error {
	if strings.TrimSpace(req.SQL) == "" {
		return failures.New(failures.InvalidArgumentShape, "sql is required")
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "oneof":
				return failures.New(failures.InvalidArgumentShape, "role must be one of: %s (got %q)", fe.Param(), fe.Value())
			case "gte":
				return failures.New(failures.InvalidArgumentShape, "limit must be a positive integer")
			}
			return failures.New(failures.InvalidArgumentShape, "%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
		}
		return failures.Wrap(failures.InvalidArgumentShape, err, "")
	}
	return nil
}

// RequestFromArgs builds a QueryRequest from normalized tool arguments.
// params may be a mapping, a sequence or near-JSON text encoding one;
// limit may be a number or a string of digits.
func RequestFromArgs(m map[string]interface{}) (QueryRequest, error) {
	var req QueryRequest

	sql, ok := m["sql"]
	if !ok || sql == nil {
		return req, failures.New(failures.InvalidArgumentShape, "missing required field: sql")
	}
	if req.SQL, ok = sql.(string); !ok {
		return req, failures.New(failures.InvalidArgumentShape, "sql must be a string")
	}

	if role, ok := m["role"]; ok && role != nil {
		s, ok := role.(string)
		if !ok {
			return req, failures.New(failures.InvalidArgumentShape, "role must be a string")
		}
		req.Role = strings.ToLower(strings.TrimSpace(s))
	}

	if limit, ok := m["limit"]; ok && limit != nil {
		n, err := parseLimit(limit)
		if err != nil {
			return req, err
		}
		req.Limit = n
	}

	if params, ok := m["params"]; ok && params != nil {
		if text, isText := params.(string); isText {
			if strings.TrimSpace(text) == "" {
				params = nil
			} else {
				parsed, err := args.Parse(text)
				if err != nil {
					return req, err
				}
				params = parsed
			}
		}
		req.Params = params
	}

	return req, nil
}

// parseLimit accepts a positive integral number or digit string
func parseLimit(v interface{}) (int, error) {
	bad := failures.New(failures.InvalidArgumentShape, "limit must be a positive integer, got %v", v)

	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, bad
		}
		n = f
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, bad
		}
		n = float64(i)
	default:
		return 0, bad
	}

	if n < 1 || n != math.Trunc(n) {
		return 0, bad
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(n), nil
}

// effectiveLimit applies the default and the ceiling
func effectiveLimit(requested int) int {
	if requested <= 0 {
		requested = DefaultLimit
	}
	if requested > LimitCeiling {
		return LimitCeiling
	}
	return requested
}

func (r QueryRequest) role() string {
	if r.Role == "" {
		return "read"
	}
	return r.Role
}

func (r QueryRequest) String() string {
	return fmt.Sprintf("%s %q", r.role(), r.SQL)
}
