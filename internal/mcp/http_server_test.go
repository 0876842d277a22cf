/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pgedge-sql-gateway/internal/auth"
	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/metrics"
)

func newTestHandler(t *testing.T, config *HTTPConfig) http.Handler {
	t.Helper()
	handler, err := newTestServer().Handler(config)
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func post(handler http.Handler, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp/v1", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPRequest(t *testing.T) {
	handler := newTestHandler(t, &HTTPConfig{})

	rec := post(handler, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != nil || resp.ID != float64(1) {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPRequestErrors(t *testing.T) {
	handler := newTestHandler(t, &HTTPConfig{})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp/v1", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		rec := post(handler, `{broken`, "")
		var resp JSONRPCResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if rec.Code != http.StatusOK || resp.Error == nil || resp.Error.Code != CodeParseError {
			t.Errorf("status = %d, response = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("notification", func(t *testing.T) {
		rec := post(handler, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "")
		if rec.Code != http.StatusAccepted || rec.Body.Len() != 0 {
			t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		rec := post(handler, strings.Repeat(" ", ScannerMaxBufferSize+1), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHTTPHealth(t *testing.T) {
	tests := []struct {
		name       string
		health     func(context.Context) database.HealthStatus
		wantStatus int
		wantState  string
	}{
		{"no database probe", nil, http.StatusOK, "ok"},
		{"database up", func(context.Context) database.HealthStatus {
			return database.HealthStatus{OK: true, LatencyMS: 1.5}
		}, http.StatusOK, "ok"},
		{"database down", func(context.Context) database.HealthStatus {
			return database.HealthStatus{OK: false, Error: "connection refused"}
		}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Health is reachable without a token even when auth is on
			store := auth.NewTokenStore("")
			handler := newTestHandler(t, &HTTPConfig{Health: tt.health, AuthEnabled: true, TokenStore: store})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState || body.Server != ServerName {
				t.Errorf("body = %+v", body)
			}
			if (tt.health != nil) != (body.Database != nil) {
				t.Errorf("Database = %+v", body.Database)
			}
		})
	}
}

func TestHTTPAuth(t *testing.T) {
	store := auth.NewTokenStore("")
	if err := store.AddToken("ci", auth.HashToken("secret"), "", nil); err != nil {
		t.Fatal(err)
	}

	var seen string
	s := NewServer(&mockToolProvider{executeFunc: func(ctx context.Context, _ string, _ map[string]interface{}) (ToolResponse, error) {
		seen = auth.TokenIDFromContext(ctx)
		return NewToolSuccess("")
	}})
	handler, err := s.Handler(&HTTPConfig{AuthEnabled: true, TokenStore: store})
	if err != nil {
		t.Fatal(err)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ping"}}`
	if rec := post(handler, body, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := post(handler, body, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := post(handler, body, "secret"); rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
	if seen != "ci" {
		t.Errorf("tool saw token ID %q, want ci", seen)
	}

	if _, err := s.Handler(&HTTPConfig{AuthEnabled: true}); err == nil {
		t.Error("Handler() with auth but no token store should fail")
	}
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	handler := newTestHandler(t, &HTTPConfig{Metrics: m, Gatherer: reg})

	post(handler, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pgedge_gateway_http_requests_total") {
		t.Errorf("/metrics does not expose HTTP request counts:\n%s", rec.Body.String())
	}

	noMetrics := newTestHandler(t, &HTTPConfig{})
	rec = httptest.NewRecorder()
	noMetrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without a gatherer: status = %d, want 404", rec.Code)
	}
}

func TestRunHTTP(t *testing.T) {
	if err := newTestServer().RunHTTP(context.Background(), nil); err == nil {
		t.Error("RunHTTP(nil) should fail")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestServer().RunHTTP(ctx, &HTTPConfig{Addr: addr}) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunHTTP() error = %v", err)
		}
	case <-time.After(ShutdownTimeout):
		t.Fatal("RunHTTP() did not return after cancellation")
	}
}

func TestRunHTTPBadTLS(t *testing.T) {
	err := newTestServer().RunHTTP(context.Background(), &HTTPConfig{
		Addr:      "127.0.0.1:0",
		TLSEnable: true,
		CertFile:  "/nonexistent/server.crt",
		KeyFile:   "/nonexistent/server.key",
	})
	if err == nil || !strings.Contains(err.Error(), "TLS") {
		t.Errorf("RunHTTP() error = %v, want TLS load failure", err)
	}
}
