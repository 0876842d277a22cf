/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pgedge-sql-gateway/internal/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const tokenIDContextKey contextKey = "token_id"

// Paths served without authentication
const (
	HealthCheckPath = "/health"
	MetricsPath     = "/metrics"
)

// WithTokenID returns a context carrying the authenticated token ID
func WithTokenID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tokenIDContextKey, id)
}

// TokenIDFromContext returns the authenticated token ID, or "" for
// unauthenticated requests (stdio, or HTTP with auth disabled)
func TokenIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tokenIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Middleware rejects requests without a valid bearer token
func Middleware(store *TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == HealthCheckPath || r.URL.Path == MetricsPath {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				http.Error(w, "Invalid Authorization header format. Expected: Bearer <token>", http.StatusUnauthorized)
				return
			}

			id, err := store.Lookup(strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					logging.Warn("auth_token_expired", "remote_addr", r.RemoteAddr)
				} else {
					logging.Warn("auth_token_error", "remote_addr", r.RemoteAddr, "error", err)
				}
				// Generic message; details stay in the log
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			if id == "" {
				logging.Info("auth_token_unknown", "remote_addr", r.RemoteAddr)
				http.Error(w, "Invalid or unknown token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTokenID(r.Context(), id)))
		})
	}
}
