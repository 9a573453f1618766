package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"simbridge.dev/internal/persistence/r2s3"
	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/bridge"
)

type snapshotSink struct {
	dir    string
	keep   int
	idx    runtimeIndex
	mirror *r2s3.Mirror
}

func (s snapshotSink) write(st bridge.State) (string, error) {
	snap := snapshot.FromState(st)
	path := filepath.Join(s.dir, snapshot.FileName(st.Time))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	s.mirror.Enqueue(path)
	if _, err := snapshot.Prune(s.dir, s.keep); err != nil {
		return path, err
	}
	return path, nil
}

// runSnapshots writes a snapshot every interval and a final one on shutdown.
func runSnapshots(ctx context.Context, b *bridge.Bridge, sink snapshotSink, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	take := func() {
		if _, err := sink.write(b.Snapshot()); err != nil {
			logger.Printf("snapshot write: %v", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			take()
			return
		case <-t.C:
			take()
		}
	}
}
