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

// AllowedSchema is the only schema that may be inspected or targeted
const AllowedSchema = "public"

// TableDescriptor names a table to describe. An empty schema means public.
type TableDescriptor struct {
	Schema string `json:"schema"`
	Table  string `json:"table" validate:"required"`
}

// ColumnInfo contains information about a table column
type ColumnInfo struct {
	Name            string  `json:"name"`
	DataType        string  `json:"data_type"`
	IsNullable      bool    `json:"is_nullable"`
	DefaultValue    *string `json:"default_value"`
	OrdinalPosition int     `json:"ordinal_position"`
}

// TableDescription is a table's columns, in ordinal order, and its
// primary-key columns. Both are empty when the table does not exist.
type TableDescription struct {
	Schema     string       `json:"schema"`
	Table      string       `json:"table"`
	Columns    []ColumnInfo `json:"columns"`
	PrimaryKey []string     `json:"primary_key"`
}

// SchemaColumn is one row of the public schema listing
type SchemaColumn struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
	IsNullable string `json:"is_nullable"`
}

// HealthStatus is the outcome of a health probe
type HealthStatus struct {
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// PoolStats is a snapshot of pool usage
type PoolStats struct {
	Initialized   bool  `json:"initialized"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	TotalConns    int32 `json:"total_conns"`
	MaxConns      int32 `json:"max_conns"`
	// EmptyAcquires counts acquisitions that had to wait for a connection
	EmptyAcquires int64 `json:"empty_acquires"`
}
