/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/mcp"
)

const serverInfoSQL = `
SELECT current_setting('server_version'),
       current_setting('server_version_num'),
       current_database()::text,
       current_user::text`

// ServerInfo describes the PostgreSQL server behind the gateway
type ServerInfo struct {
	Version       string `json:"version"`
	VersionNumber string `json:"version_number"`
	Database      string `json:"database"`
	User          string `json:"user"`
}

// ServerInfoResource reports the server version and session identity
func ServerInfoResource(acquirer database.Acquirer) Resource {
	return Resource{
		Definition: mcp.Resource{
			URI:         URIServerInfo,
			Name:        "PostgreSQL Server Information",
			Description: "PostgreSQL version, current database and the role the gateway connects as.",
			MimeType:    "application/json",
		},
		Handler: func(ctx context.Context) (mcp.ResourceContent, error) {
			info, err := readServerInfo(ctx, acquirer)
			if err != nil {
				return mcp.ResourceContent{}, err
			}
			body, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return mcp.ResourceContent{}, fmt.Errorf("failed to encode server info: %w", err)
			}
			return mcp.NewResourceSuccess(URIServerInfo, "application/json", string(body))
		},
	}
}

func readServerInfo(ctx context.Context, acquirer database.Acquirer) (ServerInfo, error) {
	var info ServerInfo

	lease, err := acquirer.Acquire(ctx)
	if err != nil {
		return info, err
	}
	defer lease.Release()

	rows, err := lease.Conn().Query(ctx, serverInfoSQL)
	if err != nil {
		return info, failures.Execution(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return info, failures.Execution(err)
		}
		return info, errors.New("no server information returned")
	}
	if err := rows.Scan(&info.Version, &info.VersionNumber, &info.Database, &info.User); err != nil {
		return info, failures.Execution(err)
	}
	return info, nil
}
