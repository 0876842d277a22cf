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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The fakes below let tests in other packages exercise code that needs
// connections without a PostgreSQL server.

// FakeResult is a canned result set
type FakeResult struct {
	Columns []string
	Rows    [][]any
}

// FakeCall records one statement sent to a FakeConn
type FakeCall struct {
	SQL  string
	Args []any
}

// FakeConn implements Conn, recording every statement it receives.
// Transactions are recorded as BEGIN, COMMIT and ROLLBACK calls.
type FakeConn struct {
	// QueryFunc answers Query; nil yields an empty result
	QueryFunc func(sql string, args []any) (*FakeResult, error)
	// ExecFunc answers Exec; nil yields the tag "SELECT 0"
	ExecFunc func(sql string, args []any) (pgconn.CommandTag, error)

	mu    sync.Mutex
	calls []FakeCall
}

func (c *FakeConn) record(sql string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, FakeCall{SQL: sql, Args: args})
}

// Calls returns the statements received so far
func (c *FakeConn) Calls() []FakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FakeCall(nil), c.calls...)
}

// Begin implements Conn
func (c *FakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	c.record("BEGIN", nil)
	return &fakeTx{conn: c}, nil
}

// Exec implements Conn
func (c *FakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.record(sql, args)
	if c.ExecFunc != nil {
		return c.ExecFunc(sql, args)
	}
	return pgconn.NewCommandTag("SELECT 0"), nil
}

// Query implements Conn
func (c *FakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.record(sql, args)
	if c.QueryFunc == nil {
		return NewFakeRows(nil, nil), nil
	}
	res, err := c.QueryFunc(sql, args)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &FakeResult{}
	}
	return NewFakeRows(res.Columns, res.Rows), nil
}

// fakeTx records transaction control on its FakeConn. Methods the gateway
// does not use are left to the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	conn *FakeConn
	done bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.record("COMMIT", nil)
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.record("ROLLBACK", nil)
	return nil
}

// FakeAcquirer hands out leases on a single FakeConn and counts them
type FakeAcquirer struct {
	Conn *FakeConn
	// Err, when set, is returned by Acquire
	Err error

	mu       sync.Mutex
	acquired int
	released int
}

// Acquire implements Acquirer
func (a *FakeAcquirer) Acquire(ctx context.Context) (*Lease, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	a.acquired++
	a.mu.Unlock()
	return NewLease(a.Conn, func() {
		a.mu.Lock()
		a.released++
		a.mu.Unlock()
	}), nil
}

// Counts returns how many leases were acquired and released
func (a *FakeAcquirer) Counts() (acquired, released int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acquired, a.released
}

// fakeRows implements pgx.Rows over in-memory values
type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	pos    int
	closed bool
}

// NewFakeRows returns pgx.Rows yielding rows with the given column names
func NewFakeRows(columns []string, rows [][]any) pgx.Rows {
	fields := make([]pgconn.FieldDescription, len(columns))
	for i, name := range columns {
		fields[i] = pgconn.FieldDescription{Name: name}
	}
	return &fakeRows{fields: fields, rows: rows, pos: -1}
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.rows))) }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.rows) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil, errors.New("no current row")
	}
	return r.rows[r.pos], nil
}

func (r *fakeRows) RawValues() [][]byte {
	row := r.rows[r.pos]
	raw := make([][]byte, len(row))
	for i, v := range row {
		if v != nil {
			raw[i] = []byte(fmt.Sprint(v))
		}
	}
	return raw
}

// Scan assigns the current row to dest, converting between compatible
// Go types and allocating pointer destinations for non-NULL values.
func (r *fakeRows) Scan(dest ...any) error {
	values, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(values))
	}
	for i, d := range dest {
		if err := assign(d, values[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.New("destination is not a non-nil pointer")
	}
	target := dv.Elem()

	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	if target.Kind() == reflect.Pointer {
		elem := reflect.New(target.Type().Elem())
		if err := assign(elem.Interface(), value); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}

	vv := reflect.ValueOf(value)
	switch {
	case vv.Type().AssignableTo(target.Type()):
		target.Set(vv)
	case vv.Type().ConvertibleTo(target.Type()) && !(vv.Kind() != reflect.String && target.Kind() == reflect.String):
		target.Set(vv.Convert(target.Type()))
	case target.Kind() == reflect.Bool && vv.Kind() == reflect.String:
		target.SetBool(strings.EqualFold(vv.String(), "YES") || strings.EqualFold(vv.String(), "true"))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}
