package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

// paths are the runtime data locations shared by every subcommand.
type paths struct {
	dataDir string
}

func (p *paths) auditDir() string    { return filepath.Join(p.dataDir, "audit") }
func (p *paths) indexPath() string   { return filepath.Join(p.dataDir, "index", "bridge.sqlite") }
func (p *paths) snapshotDir() string { return filepath.Join(p.dataDir, "snapshots") }

func newRootCmd() *cobra.Command {
	p := &paths{}
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect a simbridge data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&p.dataDir, "data", "./data", "runtime data directory")

	cmd.AddCommand(
		newCommandsCmd(p),
		newRequestsCmd(p),
		newStatsCmd(p),
		newSnapshotCmd(p),
		newHashPasswordCmd(),
		newSchemaCmd(),
	)
	return cmd
}
