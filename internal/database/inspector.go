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
	"context"
	"strings"
	"time"

	"pgedge-sql-gateway/internal/failures"
)

const describeColumnsSQL = `
SELECT column_name::text,
       data_type::text,
       is_nullable::text = 'YES',
       column_default::text,
       ordinal_position::int
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const primaryKeySQL = `
SELECT kcu.column_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY kcu.ordinal_position`

const publicSchemaSQL = `
SELECT table_name::text, column_name::text, data_type::text, is_nullable::text
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

// Inspector reads catalog metadata for the allowed schema
type Inspector struct {
	acquirer Acquirer
}

// NewInspector creates an inspector drawing connections from acquirer
func NewInspector(acquirer Acquirer) *Inspector {
	return &Inspector{acquirer: acquirer}
}

// checkDescriptor applies the schema allow-list. It runs before any
// connection is acquired.
func checkDescriptor(d TableDescriptor) (TableDescriptor, error) {
	if d.Schema == "" {
		d.Schema = AllowedSchema
	}
	if d.Schema != AllowedSchema {
		return d, failures.New(failures.SchemaNotAllowed, "schema %q is not allowed; only %q may be inspected", d.Schema, AllowedSchema)
	}
	if strings.TrimSpace(d.Table) == "" {
		return d, failures.New(failures.InvalidArgumentShape, "table is required")
	}
	return d, nil
}

// DescribeTable returns the table's columns ordered by ordinal position.
// A table that does not exist yields an empty slice.
func (i *Inspector) DescribeTable(ctx context.Context, d TableDescriptor) ([]ColumnInfo, error) {
	d, err := checkDescriptor(d)
	if err != nil {
		return nil, err
	}

	lease, err := i.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return describeColumns(ctx, lease.Conn(), d)
}

// PrimaryKey returns the table's primary-key columns in key order
func (i *Inspector) PrimaryKey(ctx context.Context, d TableDescriptor) ([]string, error) {
	d, err := checkDescriptor(d)
	if err != nil {
		return nil, err
	}

	lease, err := i.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return primaryKey(ctx, lease.Conn(), d)
}

// Describe returns columns and primary key using a single connection
func (i *Inspector) Describe(ctx context.Context, d TableDescriptor) (*TableDescription, error) {
	d, err := checkDescriptor(d)
	if err != nil {
		return nil, err
	}

	lease, err := i.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	columns, err := describeColumns(ctx, lease.Conn(), d)
	if err != nil {
		return nil, err
	}
	pk, err := primaryKey(ctx, lease.Conn(), d)
	if err != nil {
		return nil, err
	}

	return &TableDescription{Schema: d.Schema, Table: d.Table, Columns: columns, PrimaryKey: pk}, nil
}

// PublicSchema lists every column of every relation in the allowed schema
func (i *Inspector) PublicSchema(ctx context.Context) ([]SchemaColumn, error) {
	lease, err := i.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	startTime := time.Now()
	rows, err := lease.Conn().Query(ctx, publicSchemaSQL, AllowedSchema)
	if err != nil {
		LogQuery(publicSchemaSQL, time.Since(startTime), 0, err)
		return nil, failures.Execution(err)
	}
	defer rows.Close()

	columns := []SchemaColumn{}
	for rows.Next() {
		var c SchemaColumn
		if err := rows.Scan(&c.TableName, &c.ColumnName, &c.DataType, &c.IsNullable); err != nil {
			return nil, failures.Execution(err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, failures.Execution(err)
	}

	LogQuery(publicSchemaSQL, time.Since(startTime), int64(len(columns)), nil)
	return columns, nil
}

func describeColumns(ctx context.Context, conn Conn, d TableDescriptor) ([]ColumnInfo, error) {
	startTime := time.Now()
	rows, err := conn.Query(ctx, describeColumnsSQL, d.Schema, d.Table)
	if err != nil {
		LogQuery(describeColumnsSQL, time.Since(startTime), 0, err)
		return nil, failures.Execution(err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.OrdinalPosition); err != nil {
			return nil, failures.Execution(err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, failures.Execution(err)
	}

	LogQuery(describeColumnsSQL, time.Since(startTime), int64(len(columns)), nil)
	return columns, nil
}

func primaryKey(ctx context.Context, conn Conn, d TableDescriptor) ([]string, error) {
	rows, err := conn.Query(ctx, primaryKeySQL, d.Schema, d.Table)
	if err != nil {
		return nil, failures.Execution(err)
	}
	defer rows.Close()

	pk := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, failures.Execution(err)
		}
		pk = append(pk, name)
	}
	if err := rows.Err(); err != nil {
		return nil, failures.Execution(err)
	}
	return pk, nil
}
