/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package prompts

import (
	"fmt"
	"strings"

	"pgedge-sql-gateway/internal/gateway"
	"pgedge-sql-gateway/internal/mcp"
)

// SafeSQL returns the usage guide for the gateway's tools. An optional
// task argument is appended so the client can frame a request with it.
func SafeSQL() Prompt {
	return Prompt{
		Definition: mcp.Prompt{
			Name:        "safe_sql",
			Description: "How to use the ping, describe_table and query tools safely",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "task",
					Description: "What you want to do with the database",
					Required:    false,
				},
			},
		},
		Handler: func(args map[string]string) mcp.PromptResult {
			var sb strings.Builder
			sb.WriteString("pgEdge SQL Gateway - Available Tools:\n\n")
			sb.WriteString("1. ping() - Health check\n")
			sb.WriteString("2. describe_table(schema, table) or describe_table(payload) - Get table structure and primary key\n")
			sb.WriteString("3. query(sql, params, role, limit, format) - Unified SQL query tool\n\n")
			sb.WriteString("Arguments may be sent as a JSON object or as JSON text in 'payload'; slightly malformed JSON ")
			sb.WriteString("(single quotes, trailing commas, True/False/None) is repaired automatically.\n\n")
			sb.WriteString("Rules:\n")
			sb.WriteString("- Send one statement per call.\n")
			sb.WriteString("- role must match the statement: SELECT, SHOW, EXPLAIN and WITH are \"read\"; ")
			sb.WriteString("INSERT, UPDATE, DELETE, CREATE, DROP and ALTER are \"write\". The default is \"read\".\n")
			sb.WriteString(fmt.Sprintf("- Reads return at most %d rows (default %d) unless the statement has its own LIMIT.\n",
				gateway.LimitCeiling, gateway.DefaultLimit))
			sb.WriteString("- Only the public schema may be referenced.\n")
			sb.WriteString("- Pass values through params ($1..$n with an array, :name with an object); never splice them into sql.\n")
			sb.WriteString("- Call describe_table before writing to a table you have not seen.\n")

			if task := strings.TrimSpace(args["task"]); task != "" {
				sb.WriteString("\nTask: ")
				sb.WriteString(task)
				sb.WriteString("\n")
			}

			return mcp.NewPromptText("Safe SQL usage guide", sb.String())
		},
	}
}
