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
	"context"

	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/mcp"
)

// TableDescriber returns column and key metadata for a table
type TableDescriber interface {
	Describe(ctx context.Context, d database.TableDescriptor) (*database.TableDescription, error)
}

// DescribeTableTool creates the describe_table tool
func DescribeTableTool(describer TableDescriber) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "describe_table",
			Description: "Get the structure of a table in the public schema: columns in ordinal order with data type, nullability and default, plus the primary key. A table that does not exist yields an empty column list. Arguments may be given directly or as a single 'payload' object or JSON string.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"schema": map[string]interface{}{
						"type":        "string",
						"description": "Schema name. Only 'public' is allowed (default: public)",
					},
					"table": map[string]interface{}{
						"type":        "string",
						"description": "Table name",
					},
					PayloadParam: map[string]interface{}{
						"type":        []string{"object", "string"},
						"description": "The whole request as an object or JSON text, e.g. {\"table\": \"users\"}",
					},
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			m, err := normalizeArguments(args)
			if err != nil {
				return errorResponse(err)
			}

			var d database.TableDescriptor
			if d.Schema, err = optionalString(m, "schema"); err != nil {
				return errorResponse(err)
			}
			if d.Table, err = optionalString(m, "table"); err != nil {
				return errorResponse(err)
			}

			desc, err := describer.Describe(ctx, d)
			if err != nil {
				return errorResponse(err)
			}
			return jsonResponse(desc)
		},
	}
}
