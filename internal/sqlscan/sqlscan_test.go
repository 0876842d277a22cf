/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sqlscan

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want Role
	}{
		{"SELECT * FROM users", RoleRead},
		{"  select 1", RoleRead},
		{"-- leading comment\nSELECT 1", RoleRead},
		{"/* block /* nested */ */ show search_path", RoleRead},
		{"EXPLAIN SELECT 1", RoleRead},
		{"WITH x AS (SELECT 1) SELECT * FROM x", RoleRead},
		{"INSERT INTO t VALUES (1)", RoleWrite},
		{"update t set a = 1", RoleWrite},
		{"DELETE FROM t", RoleWrite},
		{"CREATE TABLE t (id int)", RoleWrite},
		{"DROP TABLE users", RoleWrite},
		{"ALTER TABLE t ADD COLUMN b int", RoleWrite},
		{"TRUNCATE t", RoleUnsupported},
		{"GRANT ALL ON t TO x", RoleUnsupported},
		{"COPY t FROM '/etc/passwd'", RoleUnsupported},
		{"(SELECT 1)", RoleUnsupported},
		{"SELECTED", RoleUnsupported},
		{"", RoleUnsupported},
		{"-- only a comment", RoleUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			if got := Classify(tt.sql); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

func TestHasMultipleStatements(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", false},
		{"SELECT 1;", false},
		{"SELECT 1;;  -- done", false},
		{"SELECT 1; DROP TABLE users", true},
		{"SELECT ';' AS semi", false},
		{`SELECT 1 AS ";"`, false},
		{"SELECT $$a;b$$", false},
		{"SELECT 1 -- ; DROP TABLE users", false},
		{"SELECT 1 /* ; */", false},
	}

	for _, tt := range tests {
		if got := HasMultipleStatements(tt.sql); got != tt.want {
			t.Errorf("HasMultipleStatements(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestHasLimitClause(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT * FROM users", false},
		{"SELECT * FROM users LIMIT 5", true},
		{"select * from users limit 5 offset 10", true},
		{"SELECT * FROM users FETCH FIRST 3 ROWS ONLY", true},
		{"SELECT * FROM (SELECT * FROM users LIMIT 5) s", false},
		{"WITH x AS (SELECT 1 LIMIT 1) SELECT * FROM x", false},
		{"SELECT 'LIMIT 5' FROM users", false},
		{`SELECT "limit" FROM users`, false},
		{"SELECT * FROM users -- LIMIT 5", false},
	}

	for _, tt := range tests {
		if got := HasLimitClause(tt.sql); got != tt.want {
			t.Errorf("HasLimitClause(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestWrapWithLimit(t *testing.T) {
	got := WrapWithLimit("SELECT * FROM users; ", 100)
	want := "SELECT * FROM (\nSELECT * FROM users\n) AS _gateway_sub LIMIT 100"
	if got != want {
		t.Errorf("WrapWithLimit() = %q, want %q", got, want)
	}

	got = WrapWithLimit("SELECT 1 -- trailing", 7)
	if !strings.HasSuffix(got, "\n) AS _gateway_sub LIMIT 7") {
		t.Errorf("WrapWithLimit() = %q, comment must end before the closing parenthesis", got)
	}
}

func TestTrimTerminator(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":                 "SELECT 1",
		"SELECT 1;":                "SELECT 1",
		"SELECT 1 ; -- trailing\n": "SELECT 1",
		"SELECT ';'":               "SELECT ';'",
		";":                        "",
	}
	for in, want := range tests {
		if got := TrimTerminator(in); got != want {
			t.Errorf("TrimTerminator(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrappable(t *testing.T) {
	for _, sql := range []string{"SELECT 1", "with x as (select 1) select * from x"} {
		if !Wrappable(sql) {
			t.Errorf("Wrappable(%q) = false, want true", sql)
		}
	}
	for _, sql := range []string{"SHOW work_mem", "EXPLAIN SELECT 1"} {
		if Wrappable(sql) {
			t.Errorf("Wrappable(%q) = true, want false", sql)
		}
	}
}

func TestQualifiedRelations(t *testing.T) {
	tests := []struct {
		sql  string
		want []QualifiedName
	}{
		{"SELECT * FROM users", nil},
		{"SELECT * FROM public.users", []QualifiedName{{"public", "users"}}},
		{"SELECT * FROM internal.secrets", []QualifiedName{{"internal", "secrets"}}},
		{`SELECT * FROM "Internal"."Secrets"`, []QualifiedName{{"Internal", "Secrets"}}},
		{"SELECT * FROM INTERNAL.Secrets", []QualifiedName{{"internal", "secrets"}}},
		{"SELECT * FROM a, internal.b", []QualifiedName{{"internal", "b"}}},
		{"SELECT * FROM a JOIN x.b ON a.id = b.id", []QualifiedName{{"x", "b"}}},
		{"SELECT a.id, b.name FROM a WHERE a.x = 1", nil},
		{"SELECT * FROM a WHERE id IN (SELECT id FROM s.t)", []QualifiedName{{"s", "t"}}},
		{"SELECT f(a, b) FROM t", nil},
		{"SELECT EXTRACT(YEAR FROM t.created) FROM t", nil},
		{"SELECT a IS DISTINCT FROM t.b FROM t", nil},
		{"SELECT * FROM db.internal.secrets", []QualifiedName{{"internal", "secrets"}}},
		{"SELECT * FROM ONLY internal.t", []QualifiedName{{"internal", "t"}}},
		{"INSERT INTO audit.log (a, b) VALUES (1, 2)", []QualifiedName{{"audit", "log"}}},
		{"UPDATE hr.pay SET amount = 0", []QualifiedName{{"hr", "pay"}}},
		{"DELETE FROM t USING other.u WHERE t.id = u.id", []QualifiedName{{"other", "u"}}},
		{"DROP TABLE IF EXISTS internal.t", []QualifiedName{{"internal", "t"}}},
		{"CREATE INDEX i ON internal.t (a)", []QualifiedName{{"internal", "t"}}},
		{"DROP SCHEMA internal CASCADE", []QualifiedName{{Schema: "internal"}}},
		{"SELECT 'FROM internal.t'", nil},
		{"SELECT * FROM t ORDER BY a, b.c", nil},
		{"DROP TABLE public.a, internal.secrets", []QualifiedName{{"public", "a"}, {"internal", "secrets"}}},
		{"DROP VIEW IF EXISTS a, internal.v CASCADE", []QualifiedName{{"internal", "v"}}},
		{"LOCK TABLE a, ONLY internal.t", []QualifiedName{{"internal", "t"}}},
		{"SELECT * FROM (internal.secrets CROSS JOIN public.t)", []QualifiedName{{"internal", "secrets"}, {"public", "t"}}},
		{"SELECT * FROM ((internal.a JOIN b ON true) JOIN c ON true)", []QualifiedName{{"internal", "a"}}},
		{"SELECT * FROM a, (internal.b JOIN c ON true)", []QualifiedName{{"internal", "b"}}},
		{"SELECT * FROM (SELECT a, b.c FROM t) s", nil},
		{"SELECT * FROM a JOIN b ON (a.id = b.id)", nil},
		{"SELECT EXTRACT(YEAR FROM (t.created)) FROM t", nil},
		{"CREATE TABLE t (a int, b int REFERENCES other.u (id))", []QualifiedName{{"other", "u"}}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			got := QualifiedRelations(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("QualifiedRelations(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestScanPlaceholders(t *testing.T) {
	tests := []struct {
		sql     string
		want    Placeholders
		wantErr bool
	}{
		{sql: "SELECT 1", want: Placeholders{}},
		{sql: "SELECT * FROM t WHERE a = $1 AND b = $2", want: Placeholders{Style: StylePositional, Count: 2}},
		{sql: "SELECT $2, $1, $1", want: Placeholders{Style: StylePositional, Count: 2}},
		{sql: "SELECT * FROM t WHERE a = :a AND b = @b OR a = :a", want: Placeholders{Style: StyleNamed, Count: 2, Names: []string{"a", "b"}}},
		{sql: "SELECT a::text, '{1}'::int[] <@ b, c @> d FROM t", want: Placeholders{}},
		{sql: "SELECT ':notaparam', '$1' FROM t", want: Placeholders{}},
		{sql: "SELECT arr[1:3] FROM t", want: Placeholders{}},
		{sql: "SELECT $1, :b", wantErr: true},
		{sql: "SELECT $2", wantErr: true},
		{sql: "SELECT $0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			got, err := ScanPlaceholders(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ScanPlaceholders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ScanPlaceholders() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRewriteNamed(t *testing.T) {
	sql := "SELECT * FROM t WHERE a = :a AND b = @b AND c = ':a' AND d = :a::int"
	p, err := ScanPlaceholders(sql)
	if err != nil {
		t.Fatalf("ScanPlaceholders() error = %v", err)
	}
	got := RewriteNamed(sql, p)
	want := "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = ':a' AND d = $1::int"
	if got != want {
		t.Errorf("RewriteNamed() = %q, want %q", got, want)
	}
}

func TestTokenizeLiterals(t *testing.T) {
	tokens := Tokenize(`SELECT E'it\'s', 'a''b', $tag$ x $tag$, "q""i", 1.5e3`)
	var kinds []TokenKind
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{TokWord, TokString, TokPunct, TokString, TokPunct, TokString, TokPunct, TokQuotedIdent, TokPunct, TokNumber}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("Tokenize() kinds = %v, want %v", kinds, want)
	}
	if got := tokens[7].Ident(); got != `q"i` {
		t.Errorf("Ident() = %q, want %q", got, `q"i`)
	}
}

func TestCollapse(t *testing.T) {
	if got := Collapse("SELECT *\nFROM t\r\n"); got != "SELECT * FROM t" {
		t.Errorf("Collapse() = %q", got)
	}
}
