/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pgedge-sql-gateway/internal/audit"
	"pgedge-sql-gateway/internal/auth"
	"pgedge-sql-gateway/internal/config"
	"pgedge-sql-gateway/internal/database"
	"pgedge-sql-gateway/internal/gateway"
	"pgedge-sql-gateway/internal/logging"
	"pgedge-sql-gateway/internal/mcp"
	"pgedge-sql-gateway/internal/metrics"
	"pgedge-sql-gateway/internal/prompts"
	"pgedge-sql-gateway/internal/resources"
	"pgedge-sql-gateway/internal/tools"
)

// How often expired tokens are pruned from the token file
const tokenCleanupInterval = 5 * time.Minute

type serveOptions struct {
	configFile string
	envFile    string
	httpMode   bool
	httpAddr   string
	metrics    bool
	tlsMode    bool
	certFile   string
	keyFile    string
	chainFile  string
	noAuth     bool
	tokenFile  string
	dsn        string
	auditPath  string
	logLevel   string
}

func serveCmd() *cobra.Command {
	return newServeCmd(&serveOptions{})
}

func newServeCmd(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway over stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runServe(cmd.Context(), opts.cliFlags(cmd.Flags()))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")
	f.StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default: ./.env if present)")
	f.BoolVar(&opts.httpMode, "http", false, "Enable HTTP transport mode (default: stdio)")
	f.StringVar(&opts.httpAddr, "addr", "", "HTTP server address")
	f.BoolVar(&opts.metrics, "metrics", true, "Serve Prometheus metrics on /metrics (HTTP mode)")
	f.BoolVar(&opts.tlsMode, "tls", false, "Enable TLS/HTTPS (requires --http)")
	f.StringVar(&opts.certFile, "cert", "", "Path to TLS certificate file")
	f.StringVar(&opts.keyFile, "key", "", "Path to TLS key file")
	f.StringVar(&opts.chainFile, "chain", "", "Path to TLS certificate chain file (optional)")
	f.BoolVar(&opts.noAuth, "no-auth", false, "Disable API token authentication in HTTP mode")
	f.StringVar(&opts.tokenFile, "token-file", "", "Path to API token file")
	f.StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string")
	f.StringVar(&opts.auditPath, "audit-path", "", "Record executed statements in this SQLite file")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}

// cliFlags records which flags were explicitly set so that only those
// override the config file and environment
func (o *serveOptions) cliFlags(flags *pflag.FlagSet) config.CLIFlags {
	cliFlags := config.CLIFlags{}
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			cliFlags.ConfigFileSet = true
			cliFlags.ConfigFile = o.configFile
		case "env-file":
			cliFlags.EnvFileSet = true
			cliFlags.EnvFile = o.envFile
		case "http":
			cliFlags.HTTPEnabledSet = true
			cliFlags.HTTPEnabled = o.httpMode
		case "addr":
			cliFlags.HTTPAddrSet = true
			cliFlags.HTTPAddr = o.httpAddr
		case "metrics":
			cliFlags.MetricsSet = true
			cliFlags.Metrics = o.metrics
		case "tls":
			cliFlags.TLSEnabledSet = true
			cliFlags.TLSEnabled = o.tlsMode
		case "cert":
			cliFlags.TLSCertSet = true
			cliFlags.TLSCertFile = o.certFile
		case "key":
			cliFlags.TLSKeySet = true
			cliFlags.TLSKeyFile = o.keyFile
		case "chain":
			cliFlags.TLSChainSet = true
			cliFlags.TLSChainFile = o.chainFile
		case "no-auth":
			cliFlags.AuthEnabledSet = true
			cliFlags.AuthEnabled = !o.noAuth // Invert because it's "no-auth"
		case "token-file":
			cliFlags.AuthTokenSet = true
			cliFlags.AuthTokenFile = o.tokenFile
		case "dsn":
			cliFlags.DSNSet = true
			cliFlags.DSN = o.dsn
		case "audit-path":
			cliFlags.AuditPathSet = true
			cliFlags.AuditPath = o.auditPath
		case "log-level":
			cliFlags.LogLevelSet = true
			cliFlags.LogLevel = o.logLevel
		}
	})
	return cliFlags
}

// resolveConfigPath returns the config file to load, or "" when the
// default file does not exist
func resolveConfigPath(cliFlags config.CLIFlags) (string, error) {
	if cliFlags.ConfigFileSet {
		return cliFlags.ConfigFile, nil
	}
	execPath, err := executablePath()
	if err != nil {
		return "", err
	}
	configPath := config.GetDefaultConfigPath(execPath)
	if !config.ConfigFileExists(configPath) {
		return "", nil
	}
	return configPath, nil
}

// applyLogLevel sets the log level from configuration. An empty value
// leaves the level chosen by the environment in place.
func applyLogLevel(value string) {
	if value == "" {
		return
	}
	if level, ok := logging.ParseLevel(value); ok {
		logging.SetLevel(level)
	}
}

func runServe(ctx context.Context, cliFlags config.CLIFlags) error {
	configPath, err := resolveConfigPath(cliFlags)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath, cliFlags)
	if err != nil {
		return err
	}
	if cfg.HTTP.TLS.Enabled && !cfg.HTTP.Enabled {
		return fmt.Errorf("TLS options (--tls, --cert, --key, --chain) require --http")
	}
	applyLogLevel(cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to configure connection pool: %w", err)
	}
	defer pool.Close()

	// The pool initializes lazily; an unreachable database at startup is
	// retried on the first request rather than preventing startup
	if err := pool.Init(ctx); err != nil {
		logging.Warn("database_unavailable_at_startup", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	metrics.RegisterPoolStats(registry, pool.Stat)

	gatekeeperOpts := []gateway.Option{gateway.WithMetrics(m)}
	if cfg.Audit.Enabled {
		store, err := audit.NewStore(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		defer store.Close()
		gatekeeperOpts = append(gatekeeperOpts, gateway.WithAudit(store))
		logging.Info("audit_enabled", "path", store.Path())
	}

	gatekeeper := gateway.New(pool, gatekeeperOpts...)
	inspector := database.NewInspector(pool)

	toolRegistry := tools.NewRegistry(m)
	tools.Register(toolRegistry, pool, inspector, gatekeeper)

	resourceRegistry := resources.NewRegistry()
	resourceRegistry.Register(resources.PublicSchemaResource(inspector))
	resourceRegistry.Register(resources.ServerInfoResource(pool))

	promptRegistry := prompts.NewRegistry()
	promptRegistry.Register(prompts.SafeSQL())

	server := mcp.NewServer(toolRegistry)
	server.SetResourceProvider(resourceRegistry)
	server.SetPromptProvider(promptRegistry)

	// Watch the config file so that log level changes apply without a restart
	if configPath != "" {
		reloadable := config.NewReloadableConfig(cfg, configPath, cliFlags)
		reloadable.OnReload(func(c *config.Config) { applyLogLevel(c.LogLevel) })
		watcher, err := auth.NewFileWatcher(configPath, reloadable.Reload)
		if err != nil {
			logging.Warn("config_watch_failed", "path", configPath, "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	if !cfg.HTTP.Enabled {
		logging.Info("server_starting", "transport", "stdio", "database", config.MaskDSN(cfg.Database.DSN))
		return server.Run(ctx, os.Stdin, os.Stdout)
	}

	return serveHTTP(ctx, server, cfg, pool, m, registry)
}

func serveHTTP(ctx context.Context, server *mcp.Server, cfg *config.Config, pool *database.Pool, m *metrics.Metrics, registry *prometheus.Registry) error {
	// Verify TLS files exist if HTTPS is enabled
	if cfg.HTTP.TLS.Enabled {
		for _, f := range []string{cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile, cfg.HTTP.TLS.ChainFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("TLS file not found: %s", f)
			}
		}
	}

	var tokenStore *auth.TokenStore
	if cfg.HTTP.Auth.Enabled {
		tokenFile := cfg.HTTP.Auth.TokenFile
		if tokenFile == "" {
			var err error
			if tokenFile, err = defaultTokenFile(""); err != nil {
				return err
			}
		}
		if _, err := os.Stat(tokenFile); os.IsNotExist(err) {
			return fmt.Errorf("token file not found: %s\nCreate tokens with: %s add-token\nOr disable authentication with: --no-auth",
				tokenFile, os.Args[0])
		}

		var err error
		tokenStore, err = auth.LoadTokenStore(tokenFile)
		if err != nil {
			return fmt.Errorf("failed to load token file: %w", err)
		}
		logging.Info("tokens_loaded", "count", len(tokenStore.ListTokens()), "path", tokenFile)

		if err := tokenStore.StartWatching(); err != nil {
			logging.Warn("token_watch_failed", "path", tokenFile, "error", err)
		} else {
			defer tokenStore.StopWatching()
		}

		pruneExpiredTokens(tokenStore)
		go func() {
			ticker := time.NewTicker(tokenCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pruneExpiredTokens(tokenStore)
				}
			}
		}()
	} else {
		logging.Warn("authentication_disabled", "address", cfg.HTTP.Address)
	}

	httpConfig := &mcp.HTTPConfig{
		Addr:        cfg.HTTP.Address,
		TLSEnable:   cfg.HTTP.TLS.Enabled,
		CertFile:    cfg.HTTP.TLS.CertFile,
		KeyFile:     cfg.HTTP.TLS.KeyFile,
		ChainFile:   cfg.HTTP.TLS.ChainFile,
		AuthEnabled: cfg.HTTP.Auth.Enabled,
		TokenStore:  tokenStore,
		Metrics:     m,
		Health:      pool.HealthCheck,
	}
	if cfg.HTTP.Metrics {
		httpConfig.Gatherer = registry
	}

	logging.Info("server_starting",
		"transport", "http",
		"address", cfg.HTTP.Address,
		"tls", cfg.HTTP.TLS.Enabled,
		"auth", cfg.HTTP.Auth.Enabled,
		"metrics", cfg.HTTP.Metrics,
		"database", config.MaskDSN(cfg.Database.DSN),
	)
	return server.RunHTTP(ctx, httpConfig)
}

// pruneExpiredTokens removes expired tokens and persists the change
func pruneExpiredTokens(store *auth.TokenStore) {
	removed := store.RemoveExpired()
	if len(removed) == 0 {
		return
	}
	if err := store.Save(); err != nil {
		logging.Warn("token_file_save_failed", "path", store.Path(), "error", err)
		return
	}
	logging.Info("expired_tokens_removed", "count", len(removed), "ids", removed)
}
