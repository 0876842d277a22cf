/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates unique tokens", func(t *testing.T) {
		token1, err := GenerateToken()
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}
		token2, err := GenerateToken()
		if err != nil {
			t.Fatalf("Failed to generate second token: %v", err)
		}
		if token1 == "" || token1 == token2 {
			t.Fatalf("GenerateToken() = %q, %q, want distinct non-empty tokens", token1, token2)
		}
	})

	t.Run("generates tokens of correct length", func(t *testing.T) {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}
		// Base64 encoding of 32 bytes is 44 characters
		if len(token) != 44 {
			t.Errorf("len(GenerateToken()) = %d, want 44", len(token))
		}
	})
}

func TestHashToken(t *testing.T) {
	if HashToken("a") != HashToken("a") {
		t.Error("same token produced different hashes")
	}
	if HashToken("a") == HashToken("b") {
		t.Error("different tokens produced the same hash")
	}
	if got := len(HashToken("x")); got != 64 {
		t.Errorf("len(HashToken()) = %d, want 64", got)
	}
}

func TestAddToken(t *testing.T) {
	store := NewTokenStore("")

	if err := store.AddToken("ci", HashToken("secret"), "CI runner", nil); err != nil {
		t.Fatalf("AddToken() error = %v", err)
	}
	if err := store.AddToken("ci", HashToken("other"), "", nil); err == nil {
		t.Error("AddToken() with duplicate ID should fail")
	}
	if err := store.AddToken("", HashToken("other"), "", nil); err == nil {
		t.Error("AddToken() with empty ID should fail")
	}

	tok := store.Tokens["ci"]
	if tok == nil || tok.Annotation != "CI runner" || tok.CreatedAt.IsZero() {
		t.Errorf("stored token = %+v", tok)
	}
}

func TestRemoveToken(t *testing.T) {
	newStore := func() *TokenStore {
		s := NewTokenStore("")
		_ = s.AddToken("alpha", "aaaaaaaa11111111111111111111111111111111111111111111111111111111", "", nil)
		_ = s.AddToken("beta", "aaaaaaaa22222222222222222222222222222222222222222222222222222222", "", nil)
		_ = s.AddToken("gamma", "cccccccc33333333333333333333333333333333333333333333333333333333", "", nil)
		return s
	}

	tests := []struct {
		name       string
		identifier string
		removed    bool
		wantErr    bool
		remaining  int
	}{
		{"by id", "beta", true, false, 2},
		{"by unique prefix", "cccccccc", true, false, 2},
		{"ambiguous prefix", "aaaaaaaa", false, true, 3},
		{"short prefix ignored", "ccc", false, false, 3},
		{"prefix longer than hash", "cccccccc33333333333333333333333333333333333333333333333333333333ff", false, false, 3},
		{"unknown", "zeta", false, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			removed, err := store.RemoveToken(tt.identifier)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RemoveToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if removed != tt.removed {
				t.Errorf("RemoveToken() = %v, want %v", removed, tt.removed)
			}
			if len(store.Tokens) != tt.remaining {
				t.Errorf("remaining tokens = %d, want %d", len(store.Tokens), tt.remaining)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	store := NewTokenStore("")
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	_ = store.AddToken("forever", HashToken("t1"), "", nil)
	_ = store.AddToken("later", HashToken("t2"), "", &future)
	_ = store.AddToken("gone", HashToken("t3"), "", &past)

	tests := []struct {
		token   string
		wantID  string
		wantErr error
	}{
		{"t1", "forever", nil},
		{"t2", "later", nil},
		{"t3", "", ErrTokenExpired},
		{"t4", "", nil},
		{"", "", nil},
	}

	for _, tt := range tests {
		id, err := store.Lookup(tt.token)
		if id != tt.wantID || !errors.Is(err, tt.wantErr) {
			t.Errorf("Lookup(%q) = %q, %v, want %q, %v", tt.token, id, err, tt.wantID, tt.wantErr)
		}
		valid, _ := store.ValidateToken(tt.token)
		if valid != (tt.wantID != "") {
			t.Errorf("ValidateToken(%q) = %v", tt.token, valid)
		}
	}
}

func TestRemoveExpired(t *testing.T) {
	store := NewTokenStore("")
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	_ = store.AddToken("b-old", HashToken("1"), "", &past)
	_ = store.AddToken("a-old", HashToken("2"), "", &past)
	_ = store.AddToken("fresh", HashToken("3"), "", &future)
	_ = store.AddToken("forever", HashToken("4"), "", nil)

	removed := store.RemoveExpired()
	if len(removed) != 2 || removed[0] != "a-old" || removed[1] != "b-old" {
		t.Errorf("RemoveExpired() = %v, want [a-old b-old]", removed)
	}
	if len(store.Tokens) != 2 {
		t.Errorf("remaining tokens = %d, want 2", len(store.Tokens))
	}
}

func TestListTokens(t *testing.T) {
	store := NewTokenStore("")
	past := time.Now().Add(-time.Minute)
	_ = store.AddToken("first", HashToken("1"), "one", nil)
	_ = store.AddToken("second", HashToken("2"), "two", &past)
	store.Tokens["first"].CreatedAt = time.Now().Add(-time.Hour)

	list := store.ListTokens()
	if len(list) != 2 {
		t.Fatalf("ListTokens() returned %d entries, want 2", len(list))
	}
	if list[0].ID != "first" || list[1].ID != "second" {
		t.Errorf("ListTokens() order = %s, %s", list[0].ID, list[1].ID)
	}
	if len(list[0].HashPrefix) != 12 {
		t.Errorf("HashPrefix = %q, want 12 characters", list[0].HashPrefix)
	}
	if list[0].Expired || !list[1].Expired {
		t.Errorf("Expired flags = %v/%v, want false/true", list[0].Expired, list[1].Expired)
	}
}

func TestSaveAndLoadTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.yaml")
	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	store := NewTokenStore(path)
	_ = store.AddToken("ops", HashToken("secret"), "operations", &expiry)
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}

	loaded, err := LoadTokenStore(path)
	if err != nil {
		t.Fatalf("LoadTokenStore() error = %v", err)
	}
	tok := loaded.Tokens["ops"]
	if tok == nil || tok.Annotation != "operations" || tok.ExpiresAt == nil || !tok.ExpiresAt.Equal(expiry) {
		t.Errorf("loaded token = %+v", tok)
	}
	if id, _ := loaded.Lookup("secret"); id != "ops" {
		t.Errorf("Lookup() after load = %q, want ops", id)
	}
	if loaded.Path() != path {
		t.Errorf("Path() = %q, want %q", loaded.Path(), path)
	}
}

func TestLoadTokenStoreErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadTokenStore(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("LoadTokenStore(missing) error = %v, want not-exist", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("tokens: [unclosed"), 0600)
	if _, err := LoadTokenStore(bad); err == nil {
		t.Error("LoadTokenStore(invalid yaml) should fail")
	}

	noHash := filepath.Join(dir, "nohash.yaml")
	_ = os.WriteFile(noHash, []byte("tokens:\n  ci:\n    annotation: x\n"), 0600)
	if _, err := LoadTokenStore(noHash); err == nil {
		t.Error("LoadTokenStore(token without hash) should fail")
	}

	empty := filepath.Join(dir, "empty.yaml")
	_ = os.WriteFile(empty, nil, 0600)
	store, err := LoadTokenStore(empty)
	if err != nil || store.Tokens == nil {
		t.Errorf("LoadTokenStore(empty) = %+v, %v", store, err)
	}
}

func TestReloadKeepsTokensOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := NewTokenStore(path)
	_ = store.AddToken("ops", HashToken("secret"), "", nil)
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_ = os.WriteFile(path, []byte("tokens: [broken"), 0600)
	if err := store.Reload(); err == nil {
		t.Fatal("Reload() of a broken file should fail")
	}
	if id, _ := store.Lookup("secret"); id != "ops" {
		t.Error("failed reload discarded existing tokens")
	}

	if err := NewTokenStore("").Reload(); err == nil {
		t.Error("Reload() without a path should fail")
	}
}
