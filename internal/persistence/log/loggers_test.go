package log

import (
	"io"
	stdlog "log"
	"path/filepath"
	"testing"
	"time"

	"simbridge.dev/internal/sim/bridge"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "commands")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }
	var closed []string
	w.OnClosed(func(p string) { closed = append(closed, filepath.Base(p)) })

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(closed) != 1 || closed[0] != "commands-2026-03-01-10.jsonl.zst" {
		t.Fatalf("closed after rotation = %v", closed)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(closed) != 2 || closed[1] != "commands-2026-03-01-11.jsonl.zst" {
		t.Fatalf("closed after Close = %v", closed)
	}

	files, err := Files(dir, "commands")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "commands-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files = %v", files)
	}
	var got []int
	err = Scan(files, func(v map[string]int) bool {
		got = append(got, v["n"])
		return true
	})
	if err != nil || len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("scan = %v, %v", got, err)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "requests")
		if err := w.Write(map[string]int{"run": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = w.Close()
	}
	files, _ := Files(dir, "requests")
	n := 0
	_ = Scan(files, func(map[string]int) bool { n++; return true })
	if n != 2 {
		t.Fatalf("lines = %d, want 2", n)
	}
}

func TestAuditLogger_WritesBothStreams(t *testing.T) {
	dir := t.TempDir()
	a := NewAuditLogger(dir, stdlog.New(io.Discard, "", 0))
	var _ bridge.Audit = a

	a.CommandExecuted(bridge.CommandRecord{Hash: "abc", Kind: "smoke", Load: 2})
	a.CommandExecuted(bridge.CommandRecord{Hash: "def", Kind: "move", Error: "queue full"})
	a.RequestHandled(bridge.RequestRecord{Username: "gm", Intent: "smoke", Status: "queued"})
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := Files(filepath.Join(dir, "audit"), "commands")
	var cmds []CommandEntry
	_ = Scan(files, func(e CommandEntry) bool {
		cmds = append(cmds, e)
		return true
	})
	if len(cmds) != 2 || cmds[0].Hash != "abc" || cmds[1].Error != "queue full" {
		t.Fatalf("commands = %+v", cmds)
	}
	if cmds[0].ID == "" || cmds[0].ID >= cmds[1].ID {
		t.Fatalf("ids not increasing: %q %q", cmds[0].ID, cmds[1].ID)
	}

	files, _ = Files(filepath.Join(dir, "audit"), "requests")
	var first RequestEntry
	_ = Scan(files, func(e RequestEntry) bool {
		first = e
		return false
	})
	if first.Username != "gm" || first.Status != "queued" {
		t.Fatalf("request = %+v", first)
	}
}
