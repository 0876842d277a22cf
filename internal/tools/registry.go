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
	"sort"
	"sync"
	"time"

	"pgedge-sql-gateway/internal/logging"
	"pgedge-sql-gateway/internal/mcp"
	"pgedge-sql-gateway/internal/metrics"
)

// Handler is a function that executes a tool
type Handler func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error)

// Tool represents a registered MCP tool
type Tool struct {
	Definition mcp.Tool
	Handler    Handler
}

// Registry manages available MCP tools
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *metrics.Metrics
}

// NewRegistry creates a new tool registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		metrics: m,
	}
}

// Register adds a tool to the registry under its definition name
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition.Name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool definitions ordered by name
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool.Definition)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Execute runs a tool by name with the given arguments
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (mcp.ToolResponse, error) {
	tool, exists := r.Get(name)
	if !exists {
		return mcp.NewToolError("Tool not found: " + name)
	}

	start := time.Now()
	resp, err := tool.Handler(ctx, args)
	elapsed := time.Since(start)

	failed := err != nil || resp.IsError
	r.metrics.ObserveTool(name, failed, elapsed)
	logging.Debug("tool_executed",
		"tool", name,
		"is_error", failed,
		"duration_ms", elapsed.Milliseconds(),
	)

	return resp, err
}
