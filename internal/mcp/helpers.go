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

// NewToolError creates a standardized error response for tools
func NewToolError(message string) (ToolResponse, error) {
	return ToolResponse{
		Content: []ContentItem{{Type: "text", Text: message}},
		IsError: true,
	}, nil
}

// NewToolSuccess creates a standardized success response for tools
func NewToolSuccess(message string) (ToolResponse, error) {
	return ToolResponse{
		Content: []ContentItem{{Type: "text", Text: message}},
	}, nil
}

// NewResourceSuccess creates a standardized success response for resources
func NewResourceSuccess(uri string, mimeType string, content string) (ResourceContent, error) {
	return ResourceContent{
		URI:      uri,
		MimeType: mimeType,
		Contents: []ContentItem{{Type: "text", Text: content}},
	}, nil
}

// NewPromptText returns a prompt result holding a single user message
func NewPromptText(description, text string) PromptResult {
	return PromptResult{
		Description: description,
		Messages: []PromptMessage{
			{Role: "user", Content: ContentItem{Type: "text", Text: text}},
		},
	}
}
