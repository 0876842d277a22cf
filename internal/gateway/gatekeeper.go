/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package gateway

import (
	"context"
	"encoding/json"
	"time"

	"pgedge-sql-gateway/internal/audit"
	"pgedge-sql-gateway/internal/auth"
	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/logging"
	"pgedge-sql-gateway/internal/metrics"
	"pgedge-sql-gateway/internal/sqlscan"
)

// QueryResult is the outcome of an executed statement. Reads fill Rows,
// RowCount and Columns; writes fill AffectedRows and StatusTag. Only the
// fields of the executed role are marshaled.
type QueryResult struct {
	Role         string                   `json:"role"`
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	RowCount     int                      `json:"row_count,omitempty"`
	Columns      []string                 `json:"columns,omitempty"`
	Truncated    bool                     `json:"truncated,omitempty"`
	AffectedRows int64                    `json:"affected_rows,omitempty"`
	StatusTag    string                   `json:"status_tag,omitempty"`
	ExecutedSQL  string                   `json:"sql"`

	// values holds rows in column order for tabular output
	values [][]interface{}
}

type readResultJSON struct {
	Role      string                   `json:"role"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Columns   []string                 `json:"columns"`
	Truncated bool                     `json:"truncated,omitempty"`
	SQL       string                   `json:"sql"`
}

type writeResultJSON struct {
	Role         string `json:"role"`
	AffectedRows int64  `json:"affected_rows"`
	StatusTag    string `json:"status_tag"`
	SQL          string `json:"sql"`
}

// MarshalJSON encodes the read or the write shape according to Role
func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.Role == string(sqlscan.RoleWrite) {
		return json.Marshal(writeResultJSON{
			Role:         r.Role,
			AffectedRows: r.AffectedRows,
			StatusTag:    r.StatusTag,
			SQL:          r.ExecutedSQL,
		})
	}

	rows := r.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	return json.Marshal(readResultJSON{
		Role:      r.Role,
		Rows:      rows,
		RowCount:  r.RowCount,
		Columns:   columns,
		Truncated: r.Truncated,
		SQL:       r.ExecutedSQL,
	})
}

// Table returns the column names and rows in column order
func (r *QueryResult) Table() ([]string, [][]interface{}) {
	return r.Columns, r.values
}

// Gatekeeper enforces statement policy and executes what passes
type Gatekeeper struct {
	acquirer database.Acquirer
	metrics  *metrics.Metrics
	audit    audit.Recorder
}

// Option configures a Gatekeeper
type Option func(*Gatekeeper)

// WithMetrics records statement metrics to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gatekeeper) { g.metrics = m }
}

// WithAudit records every request, including rejected ones, to r
func WithAudit(r audit.Recorder) Option {
	return func(g *Gatekeeper) { g.audit = r }
}

// New creates a gatekeeper drawing connections from acquirer
func New(acquirer database.Acquirer, opts ...Option) *Gatekeeper {
	g := &Gatekeeper{acquirer: acquirer}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute checks req and, if it passes, runs it on one leased connection.
// Policy failures never acquire a connection. Once the statement has been
// sent it runs to completion even if ctx is cancelled; the lease is
// released when the driver returns.
func (g *Gatekeeper) Execute(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()

	plan, err := Prepare(req)
	if err != nil {
		kind := failures.KindOf(err)
		g.metrics.Reject(string(kind))
		logging.Info("query_rejected", "kind", kind, "error", err)
		g.record(ctx, req, nil, nil, err, time.Since(start))
		return nil, err
	}
	if plan.LimitInjected {
		g.metrics.LimitInjected()
	}

	result, err := g.run(ctx, plan)
	elapsed := time.Since(start)

	rows := 0
	if result != nil {
		rows = result.RowCount
	}
	g.metrics.ObserveStatement(string(plan.Role), err, rows, elapsed)
	database.LogQuery(plan.SQL, elapsed, int64(rows), err)
	g.record(ctx, req, plan, result, err, elapsed)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *Gatekeeper) run(ctx context.Context, plan *Plan) (*QueryResult, error) {
	lease, err := g.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	execCtx := context.WithoutCancel(ctx)
	database.LogQueryDetails(plan.SQL, plan.Args)

	var result *QueryResult
	if plan.Role == sqlscan.RoleRead {
		result, err = executeRead(execCtx, lease.Conn(), plan)
	} else {
		result, err = executeWrite(execCtx, lease.Conn(), plan)
	}
	if err != nil {
		return nil, err
	}
	result.ExecutedSQL = sqlscan.Collapse(plan.SQL)
	return result, nil
}

// executeRead runs a read inside a READ ONLY transaction and
// materializes at most plan.Limit rows
func executeRead(ctx context.Context, conn database.Conn, plan *Plan) (*QueryResult, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, failures.Execution(err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx) //nolint:errcheck // best effort; the statement error is what matters
		}
	}()

	if _, err := tx.Exec(ctx, "SET TRANSACTION READ ONLY"); err != nil {
		return nil, failures.Execution(err)
	}

	rows, err := tx.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, failures.Execution(err)
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &QueryResult{
		Role:    string(sqlscan.RoleRead),
		Rows:    []map[string]interface{}{},
		Columns: columns,
		values:  [][]interface{}{},
	}
	for rows.Next() {
		if len(result.Rows) >= plan.Limit {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, failures.Execution(err)
		}
		row := make(map[string]interface{}, len(columns))
		ordered := make([]interface{}, len(columns))
		for i, col := range columns {
			v := jsonValue(values[i])
			row[col] = v
			ordered[i] = v
		}
		result.Rows = append(result.Rows, row)
		result.values = append(result.values, ordered)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, failures.Execution(err)
	}
	result.RowCount = len(result.Rows)

	if err := tx.Commit(ctx); err != nil {
		return nil, failures.Execution(err)
	}
	committed = true

	return result, nil
}

// executeWrite runs one auto-committed statement
func executeWrite(ctx context.Context, conn database.Conn, plan *Plan) (*QueryResult, error) {
	tag, err := conn.Exec(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, failures.Execution(err)
	}
	return &QueryResult{
		Role:         string(sqlscan.RoleWrite),
		AffectedRows: tag.RowsAffected(),
		StatusTag:    tag.String(),
	}, nil
}

// record writes an audit entry. Audit failures are logged, never returned.
func (g *Gatekeeper) record(ctx context.Context, req QueryRequest, plan *Plan, result *QueryResult, err error, elapsed time.Duration) {
	if g.audit == nil {
		return
	}

	entry := audit.Entry{
		Tool:        "query",
		Client:      auth.TokenIDFromContext(ctx),
		Role:        req.role(),
		SQL:         sqlscan.Collapse(req.SQL),
		Fingerprint: audit.Fingerprint(req.SQL),
		Outcome:     audit.OutcomeOK,
		DurationMS:  float64(elapsed.Microseconds()) / 1000,
	}
	if plan != nil {
		entry.Role = string(plan.Role)
	}
	if result != nil {
		entry.RowCount = int64(result.RowCount)
		entry.AffectedRows = result.AffectedRows
	}
	if err != nil {
		entry.Outcome = string(failures.KindOf(err))
		if entry.Outcome == "" {
			entry.Outcome = "error"
		}
		entry.Message = err.Error()
	}

	if aerr := g.audit.Record(context.WithoutCancel(ctx), entry); aerr != nil {
		logging.Warn("audit_record_failed", "error", aerr)
	}
}
