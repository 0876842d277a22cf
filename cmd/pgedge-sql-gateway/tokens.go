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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pgedge-sql-gateway/internal/auth"
)

func addTokenCmd() *cobra.Command {
	var tokenFile, note, expiry string
	cmd := &cobra.Command{
		Use:   "add-token",
		Short: "Create a new API token for HTTP mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := defaultTokenFile(tokenFile)
			if err != nil {
				return err
			}
			// Only prompt for missing values when a person is at the keyboard
			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return addToken(cmd.OutOrStdout(), os.Stdin, interactive, path, note, expiry)
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to API token file")
	cmd.Flags().StringVar(&note, "note", "", "Annotation for the new token")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Token expiry: '30d', '1y', '2w', '12h' or 'never'")
	return cmd
}

func removeTokenCmd() *cobra.Command {
	var tokenFile string
	cmd := &cobra.Command{
		Use:   "remove-token <id|hash-prefix>",
		Short: "Remove an API token by ID or hash prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := defaultTokenFile(tokenFile)
			if err != nil {
				return err
			}
			return removeToken(cmd.OutOrStdout(), path, args[0])
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to API token file")
	return cmd
}

func listTokensCmd() *cobra.Command {
	var tokenFile string
	var prune bool
	cmd := &cobra.Command{
		Use:   "list-tokens",
		Short: "List API tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := defaultTokenFile(tokenFile)
			if err != nil {
				return err
			}
			return listTokens(cmd.OutOrStdout(), path, prune)
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to API token file")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove expired tokens before listing")
	return cmd
}

// loadOrCreateTokenStore loads the token file, starting an empty store
// when it does not exist yet
func loadOrCreateTokenStore(w io.Writer, tokenFile string) (*auth.TokenStore, error) {
	if _, err := os.Stat(tokenFile); os.IsNotExist(err) {
		fmt.Fprintf(w, "Creating new token file: %s\n", tokenFile)
		return auth.NewTokenStore(tokenFile), nil
	}
	store, err := auth.LoadTokenStore(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load token file: %w", err)
	}
	return store, nil
}

// addToken creates a token, stores its hash and prints the token once
func addToken(w io.Writer, in io.Reader, interactive bool, tokenFile, annotation, expiry string) error {
	store, err := loadOrCreateTokenStore(w, tokenFile)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	if annotation == "" && interactive {
		fmt.Fprint(w, "Enter annotation/note for this token (optional): ")
		annotation = readLine(reader)
	}
	if expiry == "" && interactive {
		fmt.Fprint(w, "Enter expiry duration (e.g., '30d', '1y', or 'never'): ")
		expiry = readLine(reader)
	}

	expiresAt, err := expiryTime(expiry, time.Now())
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	hash := auth.HashToken(token)
	tokenID := "token-" + strings.SplitN(uuid.NewString(), "-", 2)[0]

	if err := store.AddToken(tokenID, hash, annotation, expiresAt); err != nil {
		return fmt.Errorf("failed to add token: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "Token created successfully!")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\nToken: %s\n", token)
	fmt.Fprintf(w, "Hash:  %s...\n", hash[:16])
	fmt.Fprintf(w, "ID:    %s\n", tokenID)
	if annotation != "" {
		fmt.Fprintf(w, "Note:  %s\n", annotation)
	}
	if expiresAt != nil {
		fmt.Fprintf(w, "Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Expires: Never")
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "\nIMPORTANT: Save this token securely - it will not be shown again!")
	fmt.Fprintln(w, "Use it in API requests with: Authorization: Bearer <token>")
	fmt.Fprintln(w, rule)

	return nil
}

// removeToken deletes a token by ID or hash prefix
func removeToken(w io.Writer, tokenFile, identifier string) error {
	store, err := auth.LoadTokenStore(tokenFile)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	removed, err := store.RemoveToken(identifier)
	if err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	if !removed {
		return fmt.Errorf("token not found: %s", identifier)
	}

	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	fmt.Fprintf(w, "Token removed successfully: %s\n", identifier)
	return nil
}

// listTokens prints the tokens as a table, optionally pruning expired ones
func listTokens(w io.Writer, tokenFile string, prune bool) error {
	store, err := auth.LoadTokenStore(tokenFile)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	if prune {
		if removed := store.RemoveExpired(); len(removed) > 0 {
			if err := store.Save(); err != nil {
				return fmt.Errorf("failed to save token file: %w", err)
			}
			fmt.Fprintf(w, "Removed %d expired token(s): %s\n", len(removed), strings.Join(removed, ", "))
		}
	}

	tokens := store.ListTokens()
	if len(tokens) == 0 {
		fmt.Fprintln(w, "No tokens found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Hash Prefix", "Created", "Expires", "Status", "Annotation"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignCenter},
		{Number: 6, WidthMax: 30},
	})

	for _, token := range tokens {
		status := "Active"
		if token.Expired {
			status = "EXPIRED"
		}
		expires := "Never"
		if token.ExpiresAt != nil {
			expires = token.ExpiresAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			token.ID,
			token.HashPrefix,
			token.CreatedAt.Format("2006-01-02 15:04"),
			expires,
			status,
			token.Annotation,
		})
	}
	t.Render()

	return nil
}

func readLine(r *bufio.Reader) string {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// expiryTime turns an expiry setting into an absolute time. Empty and
// "never" mean the token does not expire.
func expiryTime(expiry string, now time.Time) (*time.Time, error) {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" || strings.EqualFold(expiry, "never") {
		return nil, nil
	}
	d, err := parseDuration(expiry)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry duration: %w", err)
	}
	t := now.Add(d)
	return &t, nil
}

// parseDuration parses durations like "30d", "1y", "2w", "12h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format")
	}

	numStr := s[:len(s)-1]
	unit := s[len(s)-1]

	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid number in duration: %w", err)
	}
	if num <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}

	switch unit {
	case 'h':
		return time.Duration(num) * time.Hour, nil
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(num) * 30 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(num) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %c (use h, d, w, m, or y)", unit)
	}
}
