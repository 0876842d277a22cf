/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package gateway

import (
	"strings"

	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/failures"
	"pgedge-sql-gateway/internal/sqlscan"
)

// Plan is a request that passed every policy check, ready to execute
type Plan struct {
	Role sqlscan.Role
	// SQL is the text sent to the database, with named placeholders
	// rewritten and any row limit applied
	SQL  string
	Args []any
	// Limit bounds materialized rows for reads
	Limit int
	// LimitInjected is set when SQL was wrapped with a LIMIT clause
	LimitInjected bool
}

// Prepare runs every check that does not need the database: shape,
// classification, role, statement count, schema scope and parameter
// binding. A failure here means nothing was sent to the database.
func Prepare(req QueryRequest) (*Plan, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	role := sqlscan.Classify(req.SQL)
	if role == sqlscan.RoleUnsupported {
		kw := sqlscan.LeadingKeyword(req.SQL)
		if kw == "" {
			return nil, failures.New(failures.UnsupportedStatement, "statement has no leading keyword")
		}
		return nil, failures.New(failures.UnsupportedStatement,
			"%s statements are not supported; allowed: SELECT, SHOW, EXPLAIN, WITH, INSERT, UPDATE, DELETE, CREATE, DROP, ALTER", kw)
	}

	declared := sqlscan.Role(req.role())
	if declared != role {
		return nil, failures.New(failures.RoleMismatch,
			"%s statement is classified as %s but the request declared role %q",
			sqlscan.LeadingKeyword(req.SQL), role, declared)
	}

	if sqlscan.HasMultipleStatements(req.SQL) {
		return nil, failures.New(failures.UnsupportedStatement, "only one statement may be executed per request")
	}

	for _, rel := range sqlscan.QualifiedRelations(req.SQL) {
		if rel.Schema != database.AllowedSchema {
			return nil, failures.New(failures.SchemaNotAllowed,
				"statement references %s; only schema %q may be accessed", rel, database.AllowedSchema)
		}
	}

	placeholders, err := sqlscan.ScanPlaceholders(req.SQL)
	if err != nil {
		return nil, failures.Wrap(failures.ParameterBindingError, err, "")
	}
	bound, err := bindParams(placeholders, req.Params)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Role: role,
		SQL:  strings.TrimSpace(sqlscan.RewriteNamed(req.SQL, placeholders)),
		Args: bound,
	}

	if role == sqlscan.RoleRead {
		plan.Limit = effectiveLimit(req.Limit)
		if sqlscan.Wrappable(plan.SQL) && !sqlscan.HasLimitClause(plan.SQL) {
			plan.SQL = sqlscan.WrapWithLimit(plan.SQL, plan.Limit)
			plan.LimitInjected = true
		}
	}

	return plan, nil
}
