/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package failures defines the closed error taxonomy returned by the
// gateway's operations.
package failures

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind identifies a failure class. The set is closed.
type Kind string

const (
	MalformedArguments    Kind = "MalformedArguments"
	InvalidArgumentShape  Kind = "InvalidArgumentShape"
	RoleMismatch          Kind = "RoleMismatch"
	UnsupportedStatement  Kind = "UnsupportedStatement"
	SchemaNotAllowed      Kind = "SchemaNotAllowed"
	ParameterBindingError Kind = "ParameterBindingError"
	QueryExecutionFailed  Kind = "QueryExecutionFailed"
	PoolExhausted         Kind = "PoolExhausted"
	ConnectionFailed      Kind = "ConnectionFailed"
)

// Categories group kinds by who is at fault and whether a retry may help.
const (
	CategoryInput     = "input"
	CategoryPolicy    = "policy"
	CategoryResource  = "resource"
	CategoryExecution = "execution"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{
	MalformedArguments,
	InvalidArgumentShape,
	RoleMismatch,
	UnsupportedStatement,
	SchemaNotAllowed,
	ParameterBindingError,
	QueryExecutionFailed,
	PoolExhausted,
	ConnectionFailed,
}

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrMalformedArguments    = &Error{Kind: MalformedArguments}
	ErrInvalidArgumentShape  = &Error{Kind: InvalidArgumentShape}
	ErrRoleMismatch          = &Error{Kind: RoleMismatch}
	ErrUnsupportedStatement  = &Error{Kind: UnsupportedStatement}
	ErrSchemaNotAllowed      = &Error{Kind: SchemaNotAllowed}
	ErrParameterBindingError = &Error{Kind: ParameterBindingError}
	ErrQueryExecutionFailed  = &Error{Kind: QueryExecutionFailed}
	ErrPoolExhausted         = &Error{Kind: PoolExhausted}
	ErrConnectionFailed      = &Error{Kind: ConnectionFailed}
)

// Error is a typed failure. Input holds the offending caller text, if any.
type Error struct {
	Kind    Kind
	Message string
	Input   string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause. The cause's
// message is used verbatim when message is empty.
func Wrap(kind Kind, err error, message string) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithInput attaches the offending input text
func (e *Error) WithInput(input string) *Error {
	e.Input = input
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Category returns the taxonomy group for kind
func Category(kind Kind) string {
	switch kind {
	case MalformedArguments, InvalidArgumentShape:
		return CategoryInput
	case RoleMismatch, UnsupportedStatement, SchemaNotAllowed:
		return CategoryPolicy
	case PoolExhausted, ConnectionFailed:
		return CategoryResource
	case QueryExecutionFailed, ParameterBindingError:
		return CategoryExecution
	default:
		return ""
	}
}

// SQLSTATE codes reported when parameters do not fit the statement
var bindingSQLStates = map[string]bool{
	"42P18": true, // indeterminate_datatype
	"08P01": true, // protocol_violation, e.g. bind message parameter count
}

// Execution converts a driver error into QueryExecutionFailed, or into
// ParameterBindingError when a parameter could not be bound. The server's
// message is kept unmodified; use SQLState for the error code.
func Execution(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := QueryExecutionFailed
		if bindingSQLStates[pgErr.Code] {
			kind = ParameterBindingError
		}
		return &Error{Kind: kind, Message: pgErr.Message, Err: err}
	}
	if isEncodeError(err) {
		return Wrap(ParameterBindingError, err, "")
	}
	return Wrap(QueryExecutionFailed, err, "")
}

// isEncodeError matches the client-side errors pgx returns when an
// argument cannot be encoded for its parameter type or the argument
// count does not match the prepared statement
func isEncodeError(err error) bool {
	msg := err.Error()
	if strings.Contains(msg, "failed to encode args[") {
		return true
	}
	return strings.HasPrefix(msg, "expected ") && strings.Contains(msg, " arguments, got ")
}

// SQLState returns the PostgreSQL error code carried by err, if any
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
