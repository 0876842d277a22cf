/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package metrics holds the gateway's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pgedge-sql-gateway/internal/database"
)

const namespace = "pgedge_gateway"

// Metrics holds all Prometheus metrics for the gateway. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	ToolCalls        *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
	Statements       *prometheus.CounterVec
	StatementSeconds *prometheus.HistogramVec
	Rejections       *prometheus.CounterVec
	RowsReturned     prometheus.Counter
	LimitInjections  prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"tool", "status"}, // status=ok/error
		),
		ToolDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		Statements: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Statements sent to the database",
			},
			[]string{"role", "status"},
		),
		StatementSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Statement execution time in seconds, including connection acquisition",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		Rejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Requests rejected before reaching the database, by failure kind",
			},
			[]string{"kind"},
		),
		RowsReturned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_returned_total",
				Help:      "Rows returned by read statements",
			},
		),
		LimitInjections: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "limit_injections_total",
				Help:      "Read statements wrapped with a row limit",
			},
		),
		HTTPRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests handled",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// RegisterPoolStats exports pool usage as gauges read from stat on
// every scrape.
func RegisterPoolStats(reg prometheus.Registerer, stat func() database.PoolStats) {
	gauge := func(name, help string, value func(database.PoolStats) float64) {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      name,
				Help:      help,
			},
			func() float64 { return value(stat()) },
		)
	}

	gauge("acquired_connections", "Connections currently leased",
		func(s database.PoolStats) float64 { return float64(s.AcquiredConns) })
	gauge("idle_connections", "Idle connections in the pool",
		func(s database.PoolStats) float64 { return float64(s.IdleConns) })
	gauge("max_connections", "Configured pool capacity",
		func(s database.PoolStats) float64 { return float64(s.MaxConns) })
	gauge("empty_acquires", "Acquisitions that waited for a free connection",
		func(s database.PoolStats) float64 { return float64(s.EmptyAcquires) })
}

// ObserveTool records one tool call
func (m *Metrics) ObserveTool(tool string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, statusLabel(isError)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveStatement records a statement that reached the database
func (m *Metrics) ObserveStatement(role string, err error, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.Statements.WithLabelValues(role, statusLabel(err != nil)).Inc()
	m.StatementSeconds.WithLabelValues(role).Observe(d.Seconds())
	if err == nil && rows > 0 {
		m.RowsReturned.Add(float64(rows))
	}
}

// Reject records a request refused before execution
func (m *Metrics) Reject(kind string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(kind).Inc()
}

// LimitInjected records a statement wrapped with a row limit
func (m *Metrics) LimitInjected() {
	if m == nil {
		return
	}
	m.LimitInjections.Inc()
}

func statusLabel(isError bool) string {
	if isError {
		return "error"
	}
	return "ok"
}
