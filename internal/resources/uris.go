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

// Resource URIs
const (
	URIPublicSchema = "schema://public"
	URIServerInfo   = "pg://server_info"
)
