/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pgedge-sql-gateway/internal/mcp"
	"pgedge-sql-gateway/internal/metrics"
)

func staticTool(name string, resp mcp.ToolResponse, err error) Tool {
	return Tool{
		Definition: mcp.Tool{Name: name},
		Handler: func(context.Context, map[string]interface{}) (mcp.ToolResponse, error) {
			return resp, err
		},
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	ok, _ := mcp.NewToolSuccess("ok")

	registry.Register(staticTool("zeta", ok, nil))
	registry.Register(staticTool("alpha", ok, nil))

	list := registry.List()
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("List() = %+v, want alpha, zeta", list)
	}

	if _, exists := registry.Get("alpha"); !exists {
		t.Error("Get(alpha) not found")
	}
	if _, exists := registry.Get("missing"); exists {
		t.Error("Get(missing) found a tool")
	}

	resp, err := registry.Execute(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("Execute(missing) error = %v", err)
	}
	if !resp.IsError || resp.Content[0].Text != "Tool not found: missing" {
		t.Errorf("Execute(missing) = %+v", resp)
	}
}

func TestRegistryRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	registry := NewRegistry(m)

	ok, _ := mcp.NewToolSuccess("ok")
	bad, _ := mcp.NewToolError("bad")
	registry.Register(staticTool("good", ok, nil))
	registry.Register(staticTool("refused", bad, nil))
	registry.Register(staticTool("broken", mcp.ToolResponse{}, errors.New("boom")))

	ctx := context.Background()
	for _, name := range []string{"good", "good", "refused", "broken"} {
		_, _ = registry.Execute(ctx, name, nil)
	}

	tests := []struct {
		tool   string
		status string
		want   float64
	}{
		{"good", "ok", 2},
		{"refused", "error", 1},
		{"broken", "error", 1},
		{"good", "error", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues(tt.tool, tt.status)); got != tt.want {
			t.Errorf("tool_calls{%s,%s} = %v, want %v", tt.tool, tt.status, got, tt.want)
		}
	}
}
