/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"sync"

	"pgedge-sql-gateway/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload capability
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
		onReload: make([]func(*Config), 0),
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file.
// Returns an error if the reload fails, but keeps the old config.
// Only the log level takes effect without a restart.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()

	if rc.path == "" {
		rc.mu.Unlock()
		return fmt.Errorf("no configuration file path set")
	}

	// LoadConfig applies CLI flags and validates
	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		rc.mu.Unlock()
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rc.logRestartRequiredSettings(newConfig)
	rc.config = newConfig
	callbacks := append([]func(*Config){}, rc.onReload...)
	rc.mu.Unlock()

	for _, callback := range callbacks {
		callback(newConfig)
	}

	logging.Info("configuration_reloaded", "path", rc.path)
	return nil
}

// logRestartRequiredSettings logs settings that changed but require a restart
func (rc *ReloadableConfig) logRestartRequiredSettings(newConfig *Config) {
	old := rc.config

	changed := func(setting string, differs bool) {
		if differs {
			logging.Warn("configuration_change_requires_restart", "setting", setting)
		}
	}

	changed("http.enabled", old.HTTP.Enabled != newConfig.HTTP.Enabled)
	changed("http.address", old.HTTP.Address != newConfig.HTTP.Address)
	changed("http.tls", old.HTTP.TLS != newConfig.HTTP.TLS)
	changed("http.auth.enabled", old.HTTP.Auth.Enabled != newConfig.HTTP.Auth.Enabled)
	changed("database", old.Database != newConfig.Database)
	changed("audit", old.Audit != newConfig.Audit)
}

// OnReload registers a callback to be called when configuration is reloaded
// The callback receives the new configuration
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
