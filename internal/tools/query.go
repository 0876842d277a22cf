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
	"fmt"
	"strings"

	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/gateway"
	"pgedge-sql-gateway/internal/mcp"
	"pgedge-sql-gateway/internal/sqlscan"
	"pgedge-sql-gateway/internal/tsv"
)

// Output formats for the query tool
const (
	FormatJSON = "json"
	FormatTSV  = "tsv"
)

// QueryExecutor runs a statement through the gatekeeper
type QueryExecutor interface {
	Execute(ctx context.Context, req gateway.QueryRequest) (*gateway.QueryResult, error)
}

// QueryTool creates the query tool
func QueryTool(executor QueryExecutor) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name: "query",
			Description: fmt.Sprintf("Unified SQL query tool. The declared role must match what the statement does: "+
				"SELECT, SHOW, EXPLAIN and WITH are reads; INSERT, UPDATE, DELETE, CREATE, DROP and ALTER are writes. "+
				"Reads run in a read-only transaction and return at most %d rows (default %d). "+
				"Bind values with $1..$n placeholders and a params array, or :name placeholders and a params object. "+
				"Only the public schema may be referenced.", gateway.LimitCeiling, gateway.DefaultLimit),
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "A single SQL statement",
					},
					"params": map[string]interface{}{
						"type":        []string{"array", "object", "string"},
						"description": "Values for the statement's placeholders: an array for $n, an object for :name",
					},
					"role": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"read", "write"},
						"description": "Declared intent of the statement (default: read)",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     gateway.LimitCeiling,
						"description": fmt.Sprintf("Maximum rows for reads (default: %d)", gateway.DefaultLimit),
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{FormatJSON, FormatTSV},
						"description": "Result format for reads (default: json)",
					},
					PayloadParam: map[string]interface{}{
						"type":        []string{"object", "string"},
						"description": "The whole request as an object or JSON text",
					},
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			m, err := normalizeArguments(args)
			if err != nil {
				return errorResponse(err)
			}

			format, err := optionalString(m, "format")
			if err != nil {
				return errorResponse(err)
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format == "" {
				format = FormatJSON
			}
			if format != FormatJSON && format != FormatTSV {
				return errorResponse(failures.New(failures.InvalidArgumentShape,
					"format must be one of: %s %s (got %q)", FormatJSON, FormatTSV, format))
			}

			req, err := gateway.RequestFromArgs(m)
			if err != nil {
				return errorResponse(err)
			}

			result, err := executor.Execute(ctx, req)
			if err != nil {
				return errorResponse(err)
			}

			if format == FormatTSV && result.Role == string(sqlscan.RoleRead) {
				return mcp.NewToolSuccess(formatTSV(result))
			}
			return jsonResponse(result)
		},
	}
}

// formatTSV renders a read result as a summary line followed by a
// header row and tab-separated data rows
func formatTSV(result *gateway.QueryResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SQL: %s\n", result.ExecutedSQL))
	if result.Truncated {
		sb.WriteString(fmt.Sprintf("Results (%d rows, truncated):\n", result.RowCount))
	} else {
		sb.WriteString(fmt.Sprintf("Results (%d rows):\n", result.RowCount))
	}
	sb.WriteString(tsv.FormatResults(result.Table()))
	return sb.String()
}

// Register adds the gateway's tools to r
func Register(r *Registry, checker HealthChecker, describer TableDescriber, executor QueryExecutor) {
	r.Register(PingTool(checker))
	r.Register(DescribeTableTool(describer))
	r.Register(QueryTool(executor))
}
