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
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pgedge-sql-gateway/internal/config"
	"pgedge-sql-gateway/internal/failures"
)

// Pool owns the gateway's bounded set of PostgreSQL connections. The
// underlying pgx pool is created on first use; a failed creation is not
// remembered, so the next caller tries again.
type Pool struct {
	dsn        string
	poolConfig *pgxpool.Config
	timeouts   config.Timeouts

	mu     sync.Mutex
	pool   *pgxpool.Pool
	closed bool
}

// NewPool validates cfg and prepares a pool. No connection is made.
func NewPool(cfg config.DatabaseConfig) (*Pool, error) {
	timeouts, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}
	if timeouts.Acquire <= 0 {
		return nil, fmt.Errorf("acquire_timeout must be greater than zero")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Set pool size limits
	if cfg.PoolMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.PoolMaxConns)
	}
	if cfg.PoolMinConns >= 0 && int32(cfg.PoolMinConns) <= poolConfig.MaxConns {
		poolConfig.MinConns = int32(cfg.PoolMinConns)
	}
	if timeouts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = timeouts.MaxConnIdleTime
	}
	if timeouts.Connect > 0 {
		poolConfig.ConnConfig.ConnectTimeout = timeouts.Connect
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	params := poolConfig.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok && cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if timeouts.Statement > 0 {
		params["statement_timeout"] = strconv.FormatInt(timeouts.Statement.Milliseconds(), 10)
	}
	if cfg.SearchPath != "" {
		params["search_path"] = cfg.SearchPath
	}

	LogConnectionDetails(cfg.DSN, map[string]interface{}{
		"max_conns":          poolConfig.MaxConns,
		"min_conns":          poolConfig.MinConns,
		"max_conn_idle_time": poolConfig.MaxConnIdleTime.String(),
		"connect_timeout":    timeouts.Connect.String(),
		"acquire_timeout":    timeouts.Acquire.String(),
		"statement_timeout":  timeouts.Statement.String(),
	})

	return &Pool{dsn: cfg.DSN, poolConfig: poolConfig, timeouts: timeouts}, nil
}

// Init creates the underlying pool and verifies it with a ping. Calls
// after a successful Init return nil immediately.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return failures.New(failures.ConnectionFailed, "connection pool is closed")
	}
	if p.pool != nil {
		return nil
	}

	startTime := time.Now()

	pool, err := pgxpool.NewWithConfig(ctx, p.poolConfig.Copy())
	if err != nil {
		LogConnection(p.dsn, time.Since(startTime), err)
		return failures.Wrap(failures.ConnectionFailed, err, "")
	}

	pingCtx := ctx
	if p.timeouts.Connect > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, p.timeouts.Connect)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		LogConnection(p.dsn, time.Since(startTime), err)
		return failures.Wrap(failures.ConnectionFailed, err, "")
	}

	p.pool = pool
	LogConnection(p.dsn, time.Since(startTime), nil)
	return nil
}

// Acquire borrows a connection, initializing the pool if needed. Waiting
// is bounded by the acquire timeout; running out of time while every
// connection is in use is reported as PoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()
	if pool == nil {
		return nil, failures.New(failures.ConnectionFailed, "connection pool is closed")
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.timeouts.Acquire)
	defer cancel()

	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		return nil, p.acquireError(ctx, acquireCtx, pool, err)
	}

	return NewLease(conn, conn.Release), nil
}

// acquireError classifies a failed acquisition
func (p *Pool) acquireError(ctx, acquireCtx context.Context, pool *pgxpool.Pool, err error) error {
	if ctx.Err() != nil {
		return failures.Wrap(failures.ConnectionFailed, err, "request cancelled while waiting for a connection")
	}
	if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
		stat := pool.Stat()
		if stat.AcquiredConns() >= stat.MaxConns() {
			return failures.Wrap(failures.PoolExhausted, err,
				fmt.Sprintf("no connection available within %s (%d of %d in use)",
					p.timeouts.Acquire, stat.AcquiredConns(), stat.MaxConns()))
		}
	}
	return failures.Wrap(failures.ConnectionFailed, err, "")
}

// HealthCheck acquires a connection, runs SELECT 1 and releases it. It
// never fails; problems are reported in the returned status.
func (p *Pool) HealthCheck(ctx context.Context) HealthStatus {
	startTime := time.Now()
	status := func(err error) HealthStatus {
		hs := HealthStatus{
			OK:        err == nil,
			LatencyMS: float64(time.Since(startTime).Microseconds()) / 1000.0,
		}
		if err != nil {
			hs.Error = err.Error()
		}
		return hs
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Connect+p.timeouts.Acquire)
	defer cancel()

	lease, err := p.Acquire(ctx)
	if err != nil {
		return status(err)
	}
	defer lease.Release()

	if _, err := lease.Conn().Exec(ctx, "SELECT 1"); err != nil {
		return status(err)
	}
	return status(nil)
}

// Stat returns pool usage. An uninitialized pool reports zeros.
func (p *Pool) Stat() PoolStats {
	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()

	if pool == nil {
		return PoolStats{MaxConns: p.poolConfig.MaxConns}
	}
	stat := pool.Stat()
	return PoolStats{
		Initialized:   true,
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		TotalConns:    stat.TotalConns(),
		MaxConns:      stat.MaxConns(),
		EmptyAcquires: stat.EmptyAcquireCount(),
	}
}

// Close shuts the pool down, waiting for outstanding leases to be
// released. Later acquisitions fail with ConnectionFailed.
func (p *Pool) Close() {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.closed = true
	p.mu.Unlock()

	if pool != nil {
		stat := pool.Stat()
		LogPoolStats(p.dsn, stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())
		pool.Close()
	}
}
