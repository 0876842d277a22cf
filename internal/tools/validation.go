/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"encoding/json"
	"errors"

	"pgedge-sql-gateway/internal/args"
	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/mcp"
)

// PayloadParam names the argument that may carry the whole request,
// either as an object or as near-JSON text
const PayloadParam = "payload"

// ErrorBody is the JSON text of an isError tool response
type ErrorBody struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
	SQLState string `json:"sqlstate,omitempty"`
	Input    string `json:"input,omitempty"`
}

// normalizeArguments resolves tool arguments into one mapping. A lone
// payload argument is unwrapped and normalized; anything else is taken
// as the mapping itself.
func normalizeArguments(raw map[string]interface{}) (map[string]interface{}, error) {
	if payload, ok := raw[PayloadParam]; ok && len(raw) == 1 {
		in, err := args.FromValue(payload)
		if err != nil {
			return nil, err
		}
		return args.Normalize(in)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return args.Normalize(args.FromMapping(raw))
}

// optionalString extracts a string argument. Absent and null yield "".
func optionalString(m map[string]interface{}, name string) (string, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", failures.New(failures.InvalidArgumentShape, "%s must be a string", name)
	}
	return s, nil
}

// errorResponse renders err as an isError tool response carrying its
// failure kind
func errorResponse(err error) (mcp.ToolResponse, error) {
	kind := failures.KindOf(err)
	body := ErrorBody{
		Error:    string(kind),
		Category: failures.Category(kind),
		Message:  err.Error(),
		SQLState: failures.SQLState(err),
	}
	if body.Error == "" {
		body.Error = "InternalError"
	}

	var ferr *failures.Error
	if errors.As(err, &ferr) && ferr.Message != "" {
		body.Message = ferr.Message
		body.Input = ferr.Input
	}

	data, merr := json.Marshal(body)
	if merr != nil {
		return mcp.NewToolError(err.Error())
	}
	return mcp.NewToolError(string(data))
}

// jsonResponse renders v as indented JSON text
func jsonResponse(v interface{}) (mcp.ToolResponse, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(err)
	}
	return mcp.NewToolSuccess(string(data))
}
