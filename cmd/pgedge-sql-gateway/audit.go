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
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"pgedge-sql-gateway/internal/audit"
	"pgedge-sql-gateway/internal/sqlscan"
)

func auditCmd() *cobra.Command {
	var path string
	var limit int
	var summary bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent statements from the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if path == "" {
				path = os.Getenv("PGEDGE_GATEWAY_AUDIT_PATH")
			}
			if path == "" {
				return fmt.Errorf("no audit database given; use --path or PGEDGE_GATEWAY_AUDIT_PATH")
			}
			return showAudit(cmd.Context(), cmd.OutOrStdout(), path, limit, summary)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Path to the audit SQLite database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (max 1000)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show counts per outcome instead of entries")
	return cmd
}

// showAudit prints recent audit entries, or a per-outcome summary
func showAudit(ctx context.Context, w io.Writer, path string, limit int, summary bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audit database not found: %s", path)
	}

	store, err := audit.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if ctx == nil {
		ctx = context.Background()
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	if summary {
		counts, err := store.CountByOutcome(ctx)
		if err != nil {
			return err
		}
		outcomes := make([]string, 0, len(counts))
		for outcome := range counts {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)

		t.AppendHeader(table.Row{"Outcome", "Statements"})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		var total int64
		for _, outcome := range outcomes {
			t.AppendRow(table.Row{outcome, counts[outcome]})
			total += counts[outcome]
		}
		t.AppendFooter(table.Row{"Total", total})
		t.Render()
		return nil
	}

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No audit entries found.")
		return nil
	}

	t.AppendHeader(table.Row{"Time", "Client", "Role", "Outcome", "Rows", "ms", "SQL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, WidthMax: 60},
	})
	for _, e := range entries {
		rows := e.RowCount
		if e.Role == string(sqlscan.RoleWrite) {
			rows = e.AffectedRows
		}
		outcome := e.Outcome
		if e.Message != "" && e.Outcome != audit.OutcomeOK {
			outcome += ": " + truncate(e.Message, 40)
		}
		t.AppendRow(table.Row{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Client,
			e.Role,
			outcome,
			rows,
			fmt.Sprintf("%.1f", e.DurationMS),
			sqlscan.Collapse(e.SQL),
		})
	}
	t.Render()
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
