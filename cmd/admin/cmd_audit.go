package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"simbridge.dev/internal/persistence/indexdb"
	persistlog "simbridge.dev/internal/persistence/log"
)

const (
	sourceIndex = "index"
	sourceAudit = "audit"
)

func newCommandsCmd(p *paths) *cobra.Command {
	var (
		f      indexdb.CommandFilter
		since  time.Duration
		source string
	)
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List executed commands, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			var rows []indexdb.CommandRow
			var err error
			switch source {
			case sourceIndex:
				rows, err = indexCommands(p.indexPath(), f)
			case sourceAudit:
				rows, err = auditCommands(p.auditDir(), f)
			default:
				return fmt.Errorf("unknown --source %q (want index|audit)", source)
			}
			if err != nil {
				return fmt.Errorf("commands: %w", err)
			}
			printCommands(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Hash, "hash", "", "filter by command hash")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "filter by command kind")
	cmd.Flags().BoolVar(&f.FailedOnly, "failed", false, "only commands the host rejected")
	cmd.Flags().DurationVar(&since, "since", 0, "only commands newer than this (e.g. 15m)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum number of rows")
	cmd.Flags().StringVar(&source, "source", sourceIndex, "read from the sqlite index or the audit logs (index|audit)")
	return cmd
}

func indexCommands(path string, f indexdb.CommandFilter) ([]indexdb.CommandRow, error) {
	r, err := indexdb.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Commands(context.Background(), f)
}

// auditCommands applies the same filter to the JSONL audit trail. Files
// are oldest first, so rows are collected and reversed.
func auditCommands(dir string, f indexdb.CommandFilter) ([]indexdb.CommandRow, error) {
	files, err := persistlog.Files(dir, "commands")
	if err != nil {
		return nil, err
	}
	var rows []indexdb.CommandRow
	err = persistlog.Scan(files, func(e persistlog.CommandEntry) bool {
		if f.Hash != "" && e.Hash != f.Hash {
			return true
		}
		if f.Kind != "" && e.Kind != f.Kind {
			return true
		}
		if f.FailedOnly && e.Error == "" {
			return true
		}
		if !f.Since.IsZero() && e.Time.Before(f.Since) {
			return true
		}
		rows = append(rows, indexdb.CommandRow{
			At: e.Time, Hash: e.Hash, Kind: e.Kind, Priority: e.Priority,
			Load: e.Load, Budget: e.Budget, Error: e.Error, Script: e.Script,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func printCommands(w io.Writer, rows []indexdb.CommandRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No commands found.")
		return
	}
	fmt.Fprintf(w, "%-24s %-32s %-18s %-9s %5s %6s %s\n", "TIME", "HASH", "KIND", "PRIORITY", "LOAD", "BUDGET", "ERROR")
	for _, r := range rows {
		fmt.Fprintf(w, "%-24s %-32s %-18s %-9s %5d %6d %s\n",
			r.At.UTC().Format("2006-01-02T15:04:05.000Z"), r.Hash, r.Kind, r.Priority, r.Load, r.Budget, r.Error)
	}
}

func newRequestsCmd(p *paths) *cobra.Command {
	var (
		f     indexdb.RequestFilter
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List handled client intents, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			r, err := indexdb.OpenReader(p.indexPath())
			if err != nil {
				return fmt.Errorf("requests: %w", err)
			}
			defer r.Close()
			rows, err := r.Requests(context.Background(), f)
			if err != nil {
				return fmt.Errorf("requests: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(w, "No requests found.")
				return nil
			}
			fmt.Fprintf(w, "%-24s %-16s %-15s %-28s %-9s %s\n", "TIME", "USER", "ROLE", "INTENT", "STATUS", "DETAIL")
			for _, r := range rows {
				detail := r.Hash
				if r.Reason != "" {
					detail = r.Reason
				}
				fmt.Fprintf(w, "%-24s %-16s %-15s %-28s %-9s %s\n",
					r.At.UTC().Format("2006-01-02T15:04:05.000Z"), r.Username, r.Role, r.Intent, r.Status, detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Username, "user", "", "filter by username")
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by outcome (queued|duplicate|applied|dropped|unknown)")
	cmd.Flags().DurationVar(&since, "since", 0, "only requests newer than this (e.g. 15m)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum number of rows")
	return cmd
}

func newStatsCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Executed and failed command counts per kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := indexdb.OpenReader(p.indexPath())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer r.Close()
			stats, err := r.CommandStats(context.Background())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			w := cmd.OutOrStdout()
			var total, failed int
			fmt.Fprintf(w, "%-18s %8s %6s\n", "KIND", "EXECUTED", "FAILED")
			for _, s := range stats {
				fmt.Fprintf(w, "%-18s %8d %6d\n", s.Kind, s.Executed, s.Failed)
				total += s.Executed
				failed += s.Failed
			}
			fmt.Fprintf(w, "%s\n%-18s %8d %6d\n", strings.Repeat("-", 34), "total", total, failed)
			return nil
		},
	}
}
