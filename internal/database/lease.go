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
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pgedge-sql-gateway/internal/logging"
)

// Conn is the subset of a pooled connection the gateway uses.
// *pgxpool.Conn satisfies it.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Acquirer hands out connection leases
type Acquirer interface {
	Acquire(ctx context.Context) (*Lease, error)
}

// Lease is a borrowed connection. It must be released exactly once;
// further releases are logged and ignored.
type Lease struct {
	conn     Conn
	release  func()
	released atomic.Bool
}

// NewLease wraps conn; release is called on the first Release.
func NewLease(conn Conn, release func()) *Lease {
	return &Lease{conn: conn, release: release}
}

// Conn returns the leased connection
func (l *Lease) Conn() Conn {
	return l.conn
}

// Release returns the connection to its pool
func (l *Lease) Release() {
	if !l.released.CompareAndSwap(false, true) {
		logging.Warn("connection_double_release")
		return
	}
	if l.release != nil {
		l.release()
	}
}

// Released reports whether Release has been called
func (l *Lease) Released() bool {
	return l.released.Load()
}
