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
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"pgedge-sql-gateway/internal/logging"
)

// ErrTokenExpired is returned when a known token is past its expiry
var ErrTokenExpired = errors.New("token has expired")

// Token is a stored bearer token. Only the hash of the secret is kept.
type Token struct {
	Hash       string     `yaml:"hash"`       // SHA256 hash of the token
	ExpiresAt  *time.Time `yaml:"expires_at"` // nil means never
	Annotation string     `yaml:"annotation"`
	CreatedAt  time.Time  `yaml:"created_at"`
}

// TokenStore holds the bearer tokens accepted by the HTTP transport
type TokenStore struct {
	mu      sync.RWMutex
	Tokens  map[string]*Token `yaml:"tokens"` // keyed by token ID
	path    string
	watcher *FileWatcher
}

// GenerateToken creates a new random API token
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashToken creates a SHA256 hash of the token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// NewTokenStore creates an empty store that will be saved to path
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{Tokens: make(map[string]*Token), path: path}
}

// LoadTokenStore loads tokens from a YAML file
func LoadTokenStore(path string) (*TokenStore, error) {
	tokens, err := readTokens(path)
	if err != nil {
		return nil, err
	}
	return &TokenStore{Tokens: tokens, path: path}, nil
}

func readTokens(path string) (map[string]*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if file.Tokens == nil {
		file.Tokens = make(map[string]*Token)
	}
	for id, tok := range file.Tokens {
		if tok == nil || len(tok.Hash) != sha256.Size*2 {
			return nil, fmt.Errorf("token %q in %s has no valid hash", id, path)
		}
	}
	return file.Tokens, nil
}

// Path returns the file the store was loaded from or will be saved to
func (s *TokenStore) Path() string {
	return s.path
}

// Reload re-reads the token file. On error the current tokens are kept.
func (s *TokenStore) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	tokens, err := readTokens(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Tokens = tokens
	s.mu.Unlock()

	logging.Info("tokens_reloaded", "path", s.path, "count", len(tokens))
	return nil
}

// Save writes the store to its path with owner-only permissions
func (s *TokenStore) Save() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	s.mu.RLock()
	data, err := yaml.Marshal(struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}{s.Tokens})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// AddToken adds a new token to the store
func (s *TokenStore) AddToken(tokenID, hash, annotation string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenID == "" {
		return fmt.Errorf("token ID is required")
	}
	if _, exists := s.Tokens[tokenID]; exists {
		return fmt.Errorf("token with ID '%s' already exists", tokenID)
	}

	s.Tokens[tokenID] = &Token{
		Hash:       hash,
		ExpiresAt:  expiresAt,
		Annotation: annotation,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// RemoveToken removes a token by ID, or by a hash prefix of at least
// eight characters that matches exactly one token
func (s *TokenStore) RemoveToken(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Tokens[identifier]; exists {
		delete(s.Tokens, identifier)
		return true, nil
	}

	if len(identifier) < 8 {
		return false, nil
	}

	var matches []string
	for id, token := range s.Tokens {
		if len(token.Hash) >= len(identifier) && token.Hash[:len(identifier)] == identifier {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return false, nil
	case 1:
		delete(s.Tokens, matches[0])
		return true, nil
	default:
		sort.Strings(matches)
		return false, fmt.Errorf("hash prefix %q matches several tokens: %v", identifier, matches)
	}
}

// Lookup returns the ID of the token matching the bearer secret.
// An unknown token yields "" and no error; an expired one ErrTokenExpired.
func (s *TokenStore) Lookup(token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := []byte(HashToken(token))
	now := time.Now()

	for id, stored := range s.Tokens {
		if subtle.ConstantTimeCompare([]byte(stored.Hash), hash) == 1 {
			if stored.ExpiresAt != nil && stored.ExpiresAt.Before(now) {
				return "", ErrTokenExpired
			}
			return id, nil
		}
	}
	return "", nil
}

// ValidateToken checks if a token is valid (exists and not expired)
func (s *TokenStore) ValidateToken(token string) (bool, error) {
	id, err := s.Lookup(token)
	return id != "", err
}

// RemoveExpired deletes expired tokens and returns their IDs
func (s *TokenStore) RemoveExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	now := time.Now()
	for id, token := range s.Tokens {
		if token.ExpiresAt != nil && token.ExpiresAt.Before(now) {
			removed = append(removed, id)
			delete(s.Tokens, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// TokenInfo is a display-friendly representation of a token
type TokenInfo struct {
	ID         string
	HashPrefix string
	ExpiresAt  *time.Time
	Annotation string
	CreatedAt  time.Time
	Expired    bool
}

// ListTokens returns all tokens ordered by creation time
func (s *TokenStore) ListTokens() []TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TokenInfo, 0, len(s.Tokens))
	now := time.Now()
	for id, token := range s.Tokens {
		prefix := token.Hash
		if len(prefix) > 12 {
			prefix = prefix[:12]
		}
		result = append(result, TokenInfo{
			ID:         id,
			HashPrefix: prefix,
			ExpiresAt:  token.ExpiresAt,
			Annotation: token.Annotation,
			CreatedAt:  token.CreatedAt,
			Expired:    token.ExpiresAt != nil && token.ExpiresAt.Before(now),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// StartWatching reloads the store whenever its file changes
func (s *TokenStore) StartWatching() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	watcher, err := NewFileWatcher(s.path, s.Reload)
	if err != nil {
		return err
	}
	s.watcher = watcher
	s.watcher.Start()
	return nil
}

// StopWatching stops watching the token file
func (s *TokenStore) StopWatching() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}
