package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/delta"
)

func newSnapshotCmd(p *paths) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List and inspect state snapshots",
	}
	cmd.AddCommand(newSnapshotListCmd(p), newSnapshotInspectCmd(p))
	return cmd
}

func newSnapshotListCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := snapshot.List(p.snapshotDir())
			if err != nil {
				return fmt.Errorf("snapshot list: %w", err)
			}
			w := cmd.OutOrStdout()
			for _, f := range files {
				h, err := snapshot.ReadHeader(f)
				if err != nil {
					fmt.Fprintf(w, "%s\tunreadable: %v\n", filepath.Base(f), err)
					continue
				}
				fmt.Fprintf(w, "%s\tv%d\tsession=%s\ttime=%d\n", filepath.Base(f), h.Version, h.SessionHash, h.Time)
			}
			return nil
		},
	}
}

type snapshotSummary struct {
	Path     string               `json:"path"`
	Header   snapshot.Header      `json:"header"`
	HostTime int64                `json:"host_time"`
	Mission  string               `json:"mission"`
	Theatre  string               `json:"theatre"`
	Options  any                  `json:"command_mode_options"`
	Pending  []snapshot.PendingV1 `json:"pending"`
	Executed int                  `json:"executed"`
	Units    int                  `json:"units"`
	Weapons  int                  `json:"weapons"`

	UnitRecords   []map[string]any `json:"unit_records,omitempty"`
	WeaponRecords []map[string]any `json:"weapon_records,omitempty"`
}

func newSnapshotInspectCmd(p *paths) *cobra.Command {
	var entities bool
	cmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Print a snapshot as JSON (defaults to the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				latest, err := snapshot.Latest(p.snapshotDir())
				if err != nil {
					return fmt.Errorf("snapshot inspect: %w", err)
				}
				if latest == "" {
					return fmt.Errorf("snapshot inspect: no snapshots in %s", p.snapshotDir())
				}
				path = latest
			}
			snap, err := snapshot.ReadSnapshot(path)
			if err != nil {
				return fmt.Errorf("snapshot inspect: %w", err)
			}
			sum, err := summarize(path, snap, entities)
			if err != nil {
				return fmt.Errorf("snapshot inspect: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	cmd.Flags().BoolVar(&entities, "entities", false, "include decoded unit and weapon records")
	return cmd
}

func summarize(path string, snap snapshot.SnapshotV1, entities bool) (snapshotSummary, error) {
	s := snapshotSummary{
		Path:     path,
		Header:   snap.Header,
		HostTime: snap.HostTime,
		Mission:  snap.Mission.Name,
		Theatre:  snap.Mission.Theatre,
		Options:  snap.Options,
		Pending:  snap.Pending,
		Executed: snap.Executed,
	}
	_, units, err := delta.Decode(snap.Units)
	if err != nil {
		return s, fmt.Errorf("units frame: %w", err)
	}
	_, weapons, err := delta.Decode(snap.Weapons)
	if err != nil {
		return s, fmt.Errorf("weapons frame: %w", err)
	}
	s.Units, s.Weapons = len(units), len(weapons)
	if entities {
		for _, r := range units {
			s.UnitRecords = append(s.UnitRecords, r.Named())
		}
		for _, r := range weapons {
			s.WeaponRecords = append(s.WeaponRecords, r.Named())
		}
	}
	return s, nil
}
