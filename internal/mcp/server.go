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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pgedge-sql-gateway/internal/logging"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "pgedge-sql-gateway"
	ServerVersion   = "1.0.0"
)

// ToolProvider is an interface for listing and executing tools
type ToolProvider interface {
	List() []Tool
	Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResponse, error)
}

// ResourceProvider is an interface for listing and reading resources
type ResourceProvider interface {
	List() []Resource
	Read(ctx context.Context, uri string) (ResourceContent, error)
}

// PromptProvider is an interface for listing and executing prompts
type PromptProvider interface {
	List() []Prompt
	Execute(name string, args map[string]string) (PromptResult, error)
}

// Server handles MCP protocol communication. The same dispatch serves
// the stdio and HTTP transports.
type Server struct {
	tools     ToolProvider
	resources ResourceProvider
	prompts   PromptProvider
}

// NewServer creates a new MCP server
func NewServer(tools ToolProvider) *Server {
	return &Server{tools: tools}
}

// SetResourceProvider sets the resource provider for the server
func (s *Server) SetResourceProvider(resources ResourceProvider) {
	s.resources = resources
}

// SetPromptProvider sets the prompt provider for the server
func (s *Server) SetPromptProvider(prompts PromptProvider) {
	s.prompts = prompts
}

// Run serves line-delimited JSON-RPC from in to out until in is exhausted
// or ctx is cancelled. Requests are handled one at a time, in order.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, ScannerInitialBufferSize), ScannerMaxBufferSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := decodeJSON([]byte(line), &req); err != nil {
			if err := enc.Encode(errorResponse(nil, CodeParseError, "Parse error", err.Error())); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			continue
		}

		resp, ok := s.Handle(ctx, req)
		if !ok {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Handle dispatches one request. The second result is false for
// notifications, which receive no response.
func (s *Server) Handle(ctx context.Context, req JSONRPCRequest) (JSONRPCResponse, bool) {
	logging.Debug("rpc_request", "method", req.Method, "id", req.ID)

	if req.ID == nil {
		// Notifications (notifications/initialized, notifications/cancelled)
		// carry no id and never get a reply
		return JSONRPCResponse{}, false
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request", "jsonrpc must be \"2.0\""), true
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req), true
	case "ping":
		return resultResponse(req.ID, map[string]interface{}{}), true
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: s.tools.List()}), true
	case "tools/call":
		return s.handleToolCall(ctx, req), true
	case "resources/list":
		if s.resources == nil {
			return errorResponse(req.ID, CodeMethodNotFound, "Resources not supported", nil), true
		}
		return resultResponse(req.ID, ResourcesListResult{Resources: s.resources.List()}), true
	case "resources/read":
		return s.handleResourceRead(ctx, req), true
	case "prompts/list":
		if s.prompts == nil {
			return errorResponse(req.ID, CodeMethodNotFound, "Prompts not supported", nil), true
		}
		return resultResponse(req.ID, PromptsListResult{Prompts: s.prompts.List()}), true
	case "prompts/get":
		return s.handlePromptGet(req), true
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found", req.Method), true
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	var params InitializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	// Accept the client's protocol version for compatibility
	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = ProtocolVersion
	}

	capabilities := map[string]interface{}{
		"tools": map[string]interface{}{},
	}
	if s.resources != nil {
		capabilities["resources"] = map[string]interface{}{}
	}
	if s.prompts != nil {
		capabilities["prompts"] = map[string]interface{}{}
	}

	logging.Info("client_initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", protocolVersion,
	)

	return resultResponse(req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      Implementation{Name: ServerName, Version: ServerVersion},
	})
}

func (s *Server) handleToolCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", "tool name is required")
	}

	response, err := s.tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Tool execution error", err.Error())
	}
	return resultResponse(req.ID, response)
}

func (s *Server) handleResourceRead(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	if s.resources == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Resources not supported", nil)
	}

	var params ResourceReadParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	content, err := s.resources.Read(ctx, params.URI)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Resource read error", err.Error())
	}
	return resultResponse(req.ID, content)
}

func (s *Server) handlePromptGet(req JSONRPCRequest) JSONRPCResponse {
	if s.prompts == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Prompts not supported", nil)
	}

	var params PromptGetParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.prompts.Execute(params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Prompt execution error", err.Error())
	}
	return resultResponse(req.ID, result)
}

// decodeParams converts the generic params value into a typed struct
func decodeParams(params interface{}, dest interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return decodeJSON(data, dest)
}

// decodeJSON unmarshals one JSON value, keeping numbers as json.Number so
// that integers beyond 2^53 survive intact
func decodeJSON(data []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
	}
	return nil
}

func resultResponse(id, result interface{}) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id interface{}, code int, message string, data interface{}) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}
