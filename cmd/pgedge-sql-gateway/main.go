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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pgedge-sql-gateway/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pgedge-sql-gateway",
	Short: "pgEdge SQL Gateway - Guarded SQL access to PostgreSQL over MCP",
	Long: `pgedge-sql-gateway exposes a PostgreSQL database to MCP clients through
three tools: ping, describe_table and query. Statements are classified as reads
or writes, checked against the caller's declared role, restricted to the public
schema and bounded by a row limit before they reach the database.

The server speaks JSON-RPC over stdio by default, or over HTTP(S) with bearer
token authentication when --http is given.`,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(addTokenCmd())
	rootCmd.AddCommand(removeTokenCmd())
	rootCmd.AddCommand(listTokensCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(initConfigCmd())
}

func main() {
	// Usage is shown for flag parse errors, but suppressed for runtime
	// errors via cmd.SilenceUsage in each RunE
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// executablePath returns the path of the running binary, used to locate
// default config and token files
func executablePath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return execPath, nil
}

// defaultTokenFile resolves the token file for the token commands
func defaultTokenFile(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("PGEDGE_GATEWAY_AUTH_TOKEN_FILE"); env != "" {
		return env, nil
	}
	execPath, err := executablePath()
	if err != nil {
		return "", err
	}
	return config.GetDefaultTokenPath(execPath), nil
}
