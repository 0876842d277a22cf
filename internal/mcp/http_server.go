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
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pgedge-sql-gateway/internal/auth"
	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/logging"
	"pgedge-sql-gateway/internal/metrics"
)

// ShutdownTimeout bounds how long in-flight HTTP requests may take to
// finish once the server is asked to stop
const ShutdownTimeout = 10 * time.Second

// HTTPConfig holds configuration for HTTP/HTTPS server mode
type HTTPConfig struct {
	Addr        string           // Server address (e.g., ":8080")
	TLSEnable   bool             // Enable HTTPS
	CertFile    string           // Path to TLS certificate file
	KeyFile     string           // Path to TLS key file
	ChainFile   string           // Optional path to certificate chain file
	AuthEnabled bool             // Require bearer tokens
	TokenStore  *auth.TokenStore // Token store for authentication

	// Metrics records HTTP requests; nil disables recording
	Metrics *metrics.Metrics
	// Gatherer is exposed on /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	// Health backs /health; nil reports the server as up
	Health func(ctx context.Context) database.HealthStatus
}

// HealthResponse is the body served on /health
type HealthResponse struct {
	Status   string                 `json:"status"`
	Server   string                 `json:"server"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
}

// Handler returns the HTTP handler serving /mcp/v1, /health and
// optionally /metrics
func (s *Server) Handler(config *HTTPConfig) (http.Handler, error) {
	if config.AuthEnabled && config.TokenStore == nil {
		return nil, fmt.Errorf("authentication is enabled but no token store was provided")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/v1", s.handleHTTPRequest)
	mux.HandleFunc(auth.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		handleHealthCheck(w, r, config.Health)
	})
	if config.Gatherer != nil {
		mux.Handle(auth.MetricsPath, promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if config.AuthEnabled {
		handler = auth.Middleware(config.TokenStore)(handler)
	}
	// Outermost so rejected requests are counted too
	handler = metrics.Middleware(config.Metrics)(handler)

	return handler, nil
}

// RunHTTP serves HTTP or HTTPS until ctx is cancelled, then shuts down
// gracefully
func (s *Server) RunHTTP(ctx context.Context, config *HTTPConfig) error {
	if config == nil {
		return fmt.Errorf("HTTP config is required")
	}

	handler, err := s.Handler(config)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if config.TLSEnable {
		tlsConfig, err := loadTLSConfig(config)
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("http_server_starting", "address", config.Addr, "tls", config.TLSEnable, "auth", config.AuthEnabled)
		if config.TLSEnable {
			// Certificates are already in TLSConfig
			errCh <- httpServer.ListenAndServeTLS("", "")
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("http_server_stopping", "address", config.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loadTLSConfig loads TLS certificates and creates a TLS configuration
func loadTLSConfig(config *HTTPConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate and key: %w", err)
	}

	if config.ChainFile != "" {
		chainData, err := os.ReadFile(config.ChainFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate chain: %w", err)
		}
		cert.Certificate = append(cert.Certificate, chainData)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// handleHTTPRequest handles HTTP requests and translates them to JSON-RPC
func (s *Server) handleHTTPRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ScannerMaxBufferSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req JSONRPCRequest
	if err := decodeJSON(body, &req); err != nil {
		writeJSON(w, http.StatusOK, errorResponse(nil, CodeParseError, "Parse error", err.Error()))
		return
	}

	response, ok := s.Handle(r.Context(), req)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// JSON-RPC errors are still HTTP 200
	writeJSON(w, http.StatusOK, response)
}

// handleHealthCheck reports server and database health. An unreachable
// database yields 503 so load balancers can act on it.
func handleHealthCheck(w http.ResponseWriter, r *http.Request, health func(context.Context) database.HealthStatus) {
	resp := HealthResponse{Status: "ok", Server: ServerName, Version: ServerVersion}
	status := http.StatusOK

	if health != nil {
		db := health(r.Context())
		resp.Database = &db
		if !db.OK {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("http_response_write_failed", "error", err)
	}
}
