package indexdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"simbridge.dev/internal/catalogs"
	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/bridge"
)

func TestSQLiteIndex_CommandsAndRequests(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var _ bridge.Audit = idx

	at := time.UnixMilli(1_700_000_000_000)
	idx.CommandExecuted(bridge.CommandRecord{Time: at, Hash: "h1", Kind: "smoke", Priority: "low", Load: 2, Script: "s1"})
	idx.CommandExecuted(bridge.CommandRecord{Time: at.Add(time.Second), Hash: "h2", Kind: "move", Priority: "high", Load: 5, Error: "queue full", Script: "s2"})
	idx.CommandExecuted(bridge.CommandRecord{Time: at.Add(2 * time.Second), Hash: "h3", Kind: "smoke", Priority: "low", Load: 2, Script: "s3"})
	idx.RequestHandled(bridge.RequestRecord{Time: at, Username: "gm", Role: "Game master", Intent: "smoke", Status: "queued", Hash: "h1"})
	idx.RequestHandled(bridge.RequestRecord{Time: at, Username: "blue", Role: "Blue commander", Intent: "spawnAircrafts", Status: "dropped", Reason: "not enough spawn points"})
	idx.RecordSnapshot("/tmp/a.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Time: at.UnixMilli(), SessionHash: "s"}})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	all, err := r.Commands(ctx, CommandFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("commands = %+v, %v", all, err)
	}
	if all[0].Hash != "h3" {
		t.Fatalf("newest first: got %s", all[0].Hash)
	}
	failed, _ := r.Commands(ctx, CommandFilter{FailedOnly: true})
	if len(failed) != 1 || failed[0].Error != "queue full" {
		t.Fatalf("failed = %+v", failed)
	}
	byHash, _ := r.Commands(ctx, CommandFilter{Hash: "h1"})
	if len(byHash) != 1 || !byHash[0].At.Equal(at) {
		t.Fatalf("by hash = %+v", byHash)
	}
	recent, _ := r.Commands(ctx, CommandFilter{Since: at.Add(time.Second), Limit: 1})
	if len(recent) != 1 || recent[0].Hash != "h3" {
		t.Fatalf("since+limit = %+v", recent)
	}

	dropped, _ := r.Requests(ctx, RequestFilter{Status: "dropped"})
	if len(dropped) != 1 || dropped[0].Username != "blue" || dropped[0].Reason == "" {
		t.Fatalf("dropped requests = %+v", dropped)
	}

	stats, err := r.CommandStats(ctx)
	if err != nil || len(stats) != 2 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
	if stats[0].Kind != "move" || stats[0].Failed != 1 || stats[1].Executed != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dbDir, "navyunitdatabase.json"), []byte(`{"CVN_71": {"label": "CVN-71"}}`), 0o644)
	cats, err := catalogs.Load(dbDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}

	idx, err := OpenSQLite(filepath.Join(dir, "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	if err := idx.UpsertCatalogs(cats); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT unit_types FROM catalogs WHERE category = 'NavyUnit'`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("unit_types = %d, %v", n, err)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.Close()
	idx.CommandExecuted(bridge.CommandRecord{Hash: "late"})
	if idx.Dropped() != 0 {
		t.Fatalf("closed index counted a drop")
	}
	var nilIdx *SQLiteIndex
	nilIdx.RequestHandled(bridge.RequestRecord{})
}
