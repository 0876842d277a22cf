/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/mcp"
)

// SchemaLister lists the columns of the allowed schema
type SchemaLister interface {
	PublicSchema(ctx context.Context) ([]database.SchemaColumn, error)
}

// PublicSchemaResource exposes every column of every public relation
func PublicSchemaResource(lister SchemaLister) Resource {
	return Resource{
		Definition: mcp.Resource{
			URI:         URIPublicSchema,
			Name:        "Public Schema",
			Description: "Every column of every table and view in the public schema, with its data type and nullability.",
			MimeType:    "application/json",
		},
		Handler: func(ctx context.Context) (mcp.ResourceContent, error) {
			columns, err := lister.PublicSchema(ctx)
			if err != nil {
				return mcp.ResourceContent{}, err
			}
			body, err := json.MarshalIndent(columns, "", "  ")
			if err != nil {
				return mcp.ResourceContent{}, fmt.Errorf("failed to encode schema: %w", err)
			}
			return mcp.NewResourceSuccess(URIPublicSchema, "application/json", string(body))
		},
	}
}
