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

// HealthChecker reports database reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthStatus
}

// PingTool creates the ping tool. It always succeeds at the protocol
// level; an unreachable database is reported in the body.
func PingTool(checker HealthChecker) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "ping",
			Description: "Health check. Runs a trivial statement against the database and reports whether it succeeded and how long the round trip took.",
			InputSchema: mcp.InputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			return jsonResponse(checker.HealthCheck(ctx))
		},
	}
}
