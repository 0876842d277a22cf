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
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/failures"
)

func publicColumns(sql string, args []any) (*database.FakeResult, error) {
	return &database.FakeResult{
		Columns: []string{"table_name", "column_name", "data_type", "is_nullable"},
		Rows: [][]any{
			{"orders", "id", "bigint", "NO"},
			{"orders", "note", "text", "YES"},
			{"users", "id", "integer", "NO"},
		},
	}, nil
}

func TestRegistry(t *testing.T) {
	acq := &database.FakeAcquirer{Conn: &database.FakeConn{QueryFunc: publicColumns}}
	registry := NewRegistry()
	registry.Register(ServerInfoResource(acq))
	registry.Register(PublicSchemaResource(database.NewInspector(acq)))

	list := registry.List()
	if len(list) != 2 || list[0].URI != URIServerInfo || list[1].URI != URIPublicSchema {
		t.Errorf("List() = %+v", list)
	}

	_, err := registry.Read(context.Background(), "schema://internal")
	if err == nil || !strings.Contains(err.Error(), "schema://internal") {
		t.Errorf("Read(unknown) error = %v", err)
	}
	if acquired, _ := acq.Counts(); acquired != 0 {
		t.Errorf("unknown resource acquired %d connections", acquired)
	}
}

func TestPublicSchemaResource(t *testing.T) {
	acq := &database.FakeAcquirer{Conn: &database.FakeConn{QueryFunc: publicColumns}}
	registry := NewRegistry()
	registry.Register(PublicSchemaResource(database.NewInspector(acq)))

	content, err := registry.Read(context.Background(), URIPublicSchema)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if content.URI != URIPublicSchema || content.MimeType != "application/json" {
		t.Errorf("content = %+v", content)
	}
	if len(content.Contents) != 1 {
		t.Fatalf("Contents has %d items, want 1", len(content.Contents))
	}

	text := content.Contents[0].Text
	if !strings.Contains(text, "\n  {") {
		t.Errorf("schema JSON is not indented: %q", text)
	}

	var cols []database.SchemaColumn
	if err := json.Unmarshal([]byte(text), &cols); err != nil {
		t.Fatalf("schema JSON: %v", err)
	}
	if len(cols) != 3 || cols[1].ColumnName != "note" || cols[1].IsNullable != "YES" {
		t.Errorf("columns = %+v", cols)
	}

	if acquired, released := acq.Counts(); acquired != 1 || released != 1 {
		t.Errorf("leases acquired/released = %d/%d, want 1/1", acquired, released)
	}
}

func TestPublicSchemaResourceEmpty(t *testing.T) {
	acq := &database.FakeAcquirer{Conn: &database.FakeConn{}}
	content, err := PublicSchemaResource(database.NewInspector(acq)).Handler(context.Background())
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if got := content.Contents[0].Text; got != "[]" {
		t.Errorf("empty schema = %q, want []", got)
	}
}

func TestResourceErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42501", Message: "permission denied for schema public"}
	failing := &database.FakeConn{QueryFunc: func(string, []any) (*database.FakeResult, error) { return nil, pgErr }}

	tests := []struct {
		name     string
		resource func(database.Acquirer) Resource
		acquirer *database.FakeAcquirer
		want     error
	}{
		{
			name:     "schema pool exhausted",
			resource: func(a database.Acquirer) Resource { return PublicSchemaResource(database.NewInspector(a)) },
			acquirer: &database.FakeAcquirer{Err: failures.New(failures.PoolExhausted, "busy")},
			want:     failures.ErrPoolExhausted,
		},
		{
			name:     "schema query fails",
			resource: func(a database.Acquirer) Resource { return PublicSchemaResource(database.NewInspector(a)) },
			acquirer: &database.FakeAcquirer{Conn: failing},
			want:     failures.ErrQueryExecutionFailed,
		},
		{
			name:     "server info connection failed",
			resource: ServerInfoResource,
			acquirer: &database.FakeAcquirer{Err: failures.New(failures.ConnectionFailed, "refused")},
			want:     failures.ErrConnectionFailed,
		},
		{
			name:     "server info query fails",
			resource: ServerInfoResource,
			acquirer: &database.FakeAcquirer{Conn: failing},
			want:     failures.ErrQueryExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.resource(tt.acquirer).Handler(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Handler() error = %v, want %v", err, tt.want)
			}
			if acquired, released := tt.acquirer.Counts(); acquired != released {
				t.Errorf("leases acquired/released = %d/%d", acquired, released)
			}
		})
	}
}

func TestServerInfoResource(t *testing.T) {
	conn := &database.FakeConn{QueryFunc: func(sql string, args []any) (*database.FakeResult, error) {
		return &database.FakeResult{
			Columns: []string{"server_version", "server_version_num", "current_database", "current_user"},
			Rows:    [][]any{{"16.4", "160004", "app", "gateway"}},
		}, nil
	}}

	content, err := ServerInfoResource(&database.FakeAcquirer{Conn: conn}).Handler(context.Background())
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	var info ServerInfo
	if err := json.Unmarshal([]byte(content.Contents[0].Text), &info); err != nil {
		t.Fatalf("server info JSON: %v", err)
	}
	want := ServerInfo{Version: "16.4", VersionNumber: "160004", Database: "app", User: "gateway"}
	if info != want {
		t.Errorf("ServerInfo = %+v, want %+v", info, want)
	}

	if _, err := ServerInfoResource(&database.FakeAcquirer{Conn: &database.FakeConn{}}).Handler(context.Background()); err == nil {
		t.Error("Handler() with no rows should fail")
	}
}
