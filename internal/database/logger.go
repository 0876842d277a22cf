/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"strings"
	"time"

	"pgedge-sql-gateway/internal/config"
	"pgedge-sql-gateway/internal/logging"
)

// LogConnection logs a pool initialization attempt
func LogConnection(connStr string, duration time.Duration, err error) {
	// Sanitize connection string to hide password
	sanitized := SanitizeConnStr(connStr)
	if err != nil {
		logging.Error("database_connection_failed",
			"connection", sanitized,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}
	logging.Info("database_connected",
		"connection", sanitized,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogConnectionDetails logs pool settings
func LogConnectionDetails(connStr string, poolConfig map[string]interface{}) {
	keyvals := []interface{}{"connection", SanitizeConnStr(connStr)}
	for k, v := range poolConfig {
		keyvals = append(keyvals, k, v)
	}
	logging.Debug("database_pool_config", keyvals...)
}

// LogQuery logs a statement execution
func LogQuery(query string, duration time.Duration, rowCount int64, err error) {
	queryPreview := truncate(strings.TrimSpace(query), 100)
	if err != nil {
		logging.Info("query_failed",
			"query", queryPreview,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}
	logging.Info("query_succeeded",
		"query", queryPreview,
		"row_count", rowCount,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogQueryDetails logs a statement about to run
func LogQueryDetails(query string, args []interface{}) {
	logging.Debug("query_starting",
		"query", truncate(strings.TrimSpace(query), 200),
		"arg_count", len(args),
	)
}

// LogPoolStats logs connection pool statistics
func LogPoolStats(connStr string, acquiredConns, idleConns, maxConns int32) {
	logging.Debug("database_pool_stats",
		"connection", SanitizeConnStr(connStr),
		"acquired", acquiredConns,
		"idle", idleConns,
		"max", maxConns,
	)
}

// SanitizeConnStr removes the password from a connection string for logging
func SanitizeConnStr(connStr string) string {
	return config.MaskDSN(connStr)
}

// truncate truncates a string to maxLen bytes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
