/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package args turns tool arguments that arrive either as structured
// mappings or as near-JSON text into a canonical mapping.
package args

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pgedge-sql-gateway/internal/failures"
)

// Input is either a structured mapping or raw text. The zero value is an
// empty text input.
type Input struct {
	mapping map[string]interface{}
	text    string
	isMap   bool
}

// FromMapping wraps an already structured mapping
func FromMapping(m map[string]interface{}) Input {
	return Input{mapping: m, isMap: true}
}

// FromText wraps raw text that should contain a JSON object
func FromText(text string) Input {
	return Input{text: text}
}

// FromValue builds an Input from a decoded JSON value. Only objects and
// strings are accepted.
func FromValue(v interface{}) (Input, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		return FromMapping(val), nil
	case string:
		return FromText(val), nil
	case nil:
		return Input{}, failures.New(failures.InvalidArgumentShape, "payload is missing")
	default:
		return Input{}, failures.New(failures.InvalidArgumentShape,
			"payload must be an object or a JSON string, got %s", typeName(v))
	}
}

// IsText reports whether the input carries raw text
func (in Input) IsText() bool {
	return !in.isMap
}

// Normalize resolves in into a mapping. Text is parsed strictly first,
// then once more after Repair. The top-level value must be an object.
func Normalize(in Input) (map[string]interface{}, error) {
	if in.isMap {
		if in.mapping == nil {
			return nil, failures.New(failures.InvalidArgumentShape, "arguments must be an object, got null")
		}
		return in.mapping, nil
	}

	v, err := Parse(in.text)
	if err != nil {
		return nil, err
	}

	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, failures.New(failures.InvalidArgumentShape,
			"arguments must be an object, got %s", typeName(v)).WithInput(in.text)
	}
	return m, nil
}

// Parse decodes near-JSON text into a JSON value without constraining
// its top-level type.
func Parse(text string) (interface{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, failures.New(failures.MalformedArguments, "arguments are empty").WithInput(text)
	}

	v, strictErr := decodeStrict(text)
	if strictErr == nil {
		return v, nil
	}

	repaired := Repair(text)
	if repaired != text {
		if v, err := decodeStrict(repaired); err == nil {
			return v, nil
		}
	}

	return nil, (&failures.Error{
		Kind:    failures.MalformedArguments,
		Message: fmt.Sprintf("could not parse arguments as JSON: %v", strictErr),
		Err:     strictErr,
	}).WithInput(text)
}

// decodeStrict parses exactly one JSON value. Anything after it other
// than whitespace is an error. Numbers stay json.Number.
func decodeStrict(text string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return v, nil
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64, json.Number, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
