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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	// Database connection configuration
	Database DatabaseConfig `yaml:"database"`

	// Statement audit trail
	Audit AuditConfig `yaml:"audit"`

	// Minimum log level: debug, info, warn or error
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// HTTPConfig holds HTTP/HTTPS server settings
type HTTPConfig struct {
	Enabled bool       `yaml:"enabled"`
	Address string     `yaml:"address" validate:"required_if=Enabled true"`
	Metrics bool       `yaml:"metrics"` // Serve Prometheus metrics on /metrics
	TLS     TLSConfig  `yaml:"tls"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Whether bearer tokens are required
	TokenFile string `yaml:"token_file"` // Path to token file
}

// TLSConfig holds TLS/HTTPS settings
type TLSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	CertFile  string `yaml:"cert_file" validate:"required_if=Enabled true"`
	KeyFile   string `yaml:"key_file" validate:"required_if=Enabled true"`
	ChainFile string `yaml:"chain_file"`
}

// DatabaseConfig holds the connection descriptor and pool settings. These
// are read once at startup.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" validate:"required"` // PostgreSQL connection string

	// Connection pool settings
	PoolMaxConns        int    `yaml:"pool_max_conns" validate:"gte=1,lte=1000"`                 // Maximum number of connections (default: 10)
	PoolMinConns        int    `yaml:"pool_min_conns" validate:"gte=0,ltefield=PoolMaxConns"`    // Minimum number of connections (default: 1)
	PoolMaxConnIdleTime string `yaml:"pool_max_conn_idle_time" validate:"omitempty,duration"`    // Idle time before a connection is closed (default: 30m)
	AcquireTimeout      string `yaml:"acquire_timeout" validate:"required,duration,positive"`    // Wait bound for a free connection (default: 5s)
	ConnectTimeout      string `yaml:"connect_timeout" validate:"required,duration,positive"`    // Dial and authentication bound (default: 5s)
	StatementTimeout    string `yaml:"statement_timeout" validate:"omitempty,duration"`          // Server-side statement_timeout (default: 30s, 0 disables)
	SearchPath          string `yaml:"search_path"`                                              // Session search_path (default: public)
	ApplicationName     string `yaml:"application_name"`                                         // Reported to pg_stat_activity
}

// AuditConfig holds settings for the local statement audit trail
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"` // SQLite database file
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables (including a .env file)
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load config file if it exists
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			// If file was explicitly specified, error out
			if cliFlags.ConfigFileSet || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			// Otherwise just use defaults (file may not exist and that's ok)
		}
	}

	if err := loadDotEnv(cliFlags.EnvFile, cliFlags.EnvFileSet); err != nil {
		return nil, err
	}

	// Override with environment variables
	applyEnvironmentVariables(cfg)

	// Override with command line flags (highest priority)
	applyCLIFlags(cfg, cliFlags)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	EnvFile    string
	EnvFileSet bool

	// HTTP flags
	HTTPEnabled    bool
	HTTPEnabledSet bool
	HTTPAddr       string
	HTTPAddrSet    bool
	Metrics        bool
	MetricsSet     bool

	// TLS flags
	TLSEnabled    bool
	TLSEnabledSet bool
	TLSCertFile   string
	TLSCertSet    bool
	TLSKeyFile    string
	TLSKeySet     bool
	TLSChainFile  string
	TLSChainSet   bool

	// Auth flags
	AuthEnabled    bool
	AuthEnabledSet bool
	AuthTokenFile  string
	AuthTokenSet   bool

	// Database flags
	DSN    string
	DSNSet bool

	// Audit flags
	AuditPath    string
	AuditPathSet bool

	LogLevel    string
	LogLevelSet bool
}

// Default returns the built-in configuration, used as the starting
// point for a new config file
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled: false,
			Address: ":8080",
			Metrics: true,
			TLS: TLSConfig{
				Enabled:  false,
				CertFile: "./server.crt",
				KeyFile:  "./server.key",
			},
			Auth: AuthConfig{
				Enabled:   true, // Authentication enabled by default
				TokenFile: "",   // Will be set to default path if not specified
			},
		},
		Database: DatabaseConfig{
			PoolMaxConns:        10,
			PoolMinConns:        1,
			PoolMaxConnIdleTime: "30m",
			AcquireTimeout:      "5s",
			ConnectTimeout:      "5s",
			StatementTimeout:    "30s",
			SearchPath:          "public",
			ApplicationName:     "pgedge-sql-gateway",
		},
		Audit: AuditConfig{
			Enabled: false,
		},
		LogLevel: "",
	}
}

// loadConfigFile decodes a YAML file over cfg. Keys absent from the file
// keep their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadDotEnv loads variables from a .env file without overriding the
// process environment. A missing default file is not an error.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback sets a string config value from an environment variable,
// checking multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setBoolFromEnv sets a boolean config value from an environment variable if it exists
// Accepts "true", "1", or "yes" as true values
func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		_, err := fmt.Sscanf(val, "%d", &intVal)
		if err == nil {
			*dest = intVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist
func applyEnvironmentVariables(cfg *Config) {
	// HTTP
	setBoolFromEnv(&cfg.HTTP.Enabled, "PGEDGE_GATEWAY_HTTP_ENABLED")
	setStringFromEnv(&cfg.HTTP.Address, "PGEDGE_GATEWAY_HTTP_ADDRESS")
	setBoolFromEnv(&cfg.HTTP.Metrics, "PGEDGE_GATEWAY_METRICS")

	// TLS
	setBoolFromEnv(&cfg.HTTP.TLS.Enabled, "PGEDGE_GATEWAY_TLS_ENABLED")
	setStringFromEnv(&cfg.HTTP.TLS.CertFile, "PGEDGE_GATEWAY_TLS_CERT_FILE")
	setStringFromEnv(&cfg.HTTP.TLS.KeyFile, "PGEDGE_GATEWAY_TLS_KEY_FILE")
	setStringFromEnv(&cfg.HTTP.TLS.ChainFile, "PGEDGE_GATEWAY_TLS_CHAIN_FILE")

	// Auth
	setBoolFromEnv(&cfg.HTTP.Auth.Enabled, "PGEDGE_GATEWAY_AUTH_ENABLED")
	setStringFromEnv(&cfg.HTTP.Auth.TokenFile, "PGEDGE_GATEWAY_AUTH_TOKEN_FILE")

	// Database. PG_DSN is accepted for compatibility with earlier deployments.
	setStringFromEnvWithFallback(&cfg.Database.DSN, "PGEDGE_GATEWAY_DSN", "PG_DSN")
	setIntFromEnv(&cfg.Database.PoolMaxConns, "PGEDGE_GATEWAY_POOL_MAX_CONNS")
	setIntFromEnv(&cfg.Database.PoolMinConns, "PGEDGE_GATEWAY_POOL_MIN_CONNS")
	setStringFromEnv(&cfg.Database.AcquireTimeout, "PGEDGE_GATEWAY_ACQUIRE_TIMEOUT")
	setStringFromEnv(&cfg.Database.ConnectTimeout, "PGEDGE_GATEWAY_CONNECT_TIMEOUT")
	setStringFromEnv(&cfg.Database.StatementTimeout, "PGEDGE_GATEWAY_STATEMENT_TIMEOUT")

	// Audit
	setBoolFromEnv(&cfg.Audit.Enabled, "PGEDGE_GATEWAY_AUDIT_ENABLED")
	setStringFromEnv(&cfg.Audit.Path, "PGEDGE_GATEWAY_AUDIT_PATH")

	setStringFromEnv(&cfg.LogLevel, "PGEDGE_GATEWAY_LOG_LEVEL")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	// HTTP
	if flags.HTTPEnabledSet {
		cfg.HTTP.Enabled = flags.HTTPEnabled
	}
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}
	if flags.MetricsSet {
		cfg.HTTP.Metrics = flags.Metrics
	}

	// TLS
	if flags.TLSEnabledSet {
		cfg.HTTP.TLS.Enabled = flags.TLSEnabled
	}
	if flags.TLSCertSet {
		cfg.HTTP.TLS.CertFile = flags.TLSCertFile
	}
	if flags.TLSKeySet {
		cfg.HTTP.TLS.KeyFile = flags.TLSKeyFile
	}
	if flags.TLSChainSet {
		cfg.HTTP.TLS.ChainFile = flags.TLSChainFile
	}

	// Auth
	if flags.AuthEnabledSet {
		cfg.HTTP.Auth.Enabled = flags.AuthEnabled
	}
	if flags.AuthTokenSet {
		cfg.HTTP.Auth.TokenFile = flags.AuthTokenFile
	}

	// Database
	if flags.DSNSet {
		cfg.Database.DSN = flags.DSN
	}

	// Audit
	if flags.AuditPathSet {
		cfg.Audit.Path = flags.AuditPath
		cfg.Audit.Enabled = flags.AuditPath != ""
	}

	if flags.LogLevelSet {
		cfg.LogLevel = flags.LogLevel
	}
}

// Timeouts holds the parsed duration settings of a DatabaseConfig
type Timeouts struct {
	MaxConnIdleTime time.Duration
	Acquire         time.Duration
	Connect         time.Duration
	Statement       time.Duration
}

// Timeouts parses the duration settings. Empty values parse as zero.
func (cfg *DatabaseConfig) Timeouts() (Timeouts, error) {
	var t Timeouts
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"pool_max_conn_idle_time", cfg.PoolMaxConnIdleTime, &t.MaxConnIdleTime},
		{"acquire_timeout", cfg.AcquireTimeout, &t.Acquire},
		{"connect_timeout", cfg.ConnectTimeout, &t.Connect},
		{"statement_timeout", cfg.StatementTimeout, &t.Statement},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return Timeouts{}, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dest = d
	}
	return t, nil
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/pgedge/sql-gateway/ first, then binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/pgedge/sql-gateway/pgedge-sql-gateway.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "pgedge-sql-gateway.yaml")
}

// GetDefaultTokenPath returns the default token file path next to the binary
func GetDefaultTokenPath(binaryPath string) string {
	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "pgedge-sql-gateway-tokens.yaml")
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveConfig saves the configuration to a YAML file. The DSN is written
// with its password masked.
func SaveConfig(path string, cfg *Config) error {
	out := *cfg
	out.Database.DSN = MaskDSN(cfg.Database.DSN)

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write with appropriate permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MaskDSN hides the password in a URL or keyword/value connection string
func MaskDSN(dsn string) string {
	if schemeIdx := strings.Index(dsn, "://"); schemeIdx >= 0 {
		rest := dsn[schemeIdx+3:]
		// The credentials end at the last @ before the path or query
		hostEnd := strings.IndexAny(rest, "/?")
		if hostEnd < 0 {
			hostEnd = len(rest)
		}
		at := strings.LastIndex(rest[:hostEnd], "@")
		if at < 0 {
			return dsn
		}
		creds := rest[:at]
		colon := strings.Index(creds, ":")
		if colon < 0 {
			return dsn
		}
		return dsn[:schemeIdx+3] + creds[:colon] + ":***" + rest[at:]
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
