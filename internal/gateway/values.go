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
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// jsonValue converts a decoded column value into something
// encoding/json renders faithfully
func jsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool, int8, int16, int32, int64, int, uint32, uint64, time.Time, json.Number:
		return x
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case []byte:
		// bytea, rendered the way PostgreSQL prints it
		return `\x` + hex.EncodeToString(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(x)
		}
		if s, ok := dv.(string); ok {
			return numericText(s)
		}
		return jsonValue(dv)
	case fmt.Stringer:
		return x.String()
	default:
		return x
	}
}

func finite(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// numericText keeps numeric text as a JSON number when it is one
func numericText(s string) interface{} {
	if s != "" && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) && json.Valid([]byte(s)) {
		return json.Number(s)
	}
	return s
}
