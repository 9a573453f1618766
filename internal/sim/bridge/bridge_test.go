package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"simbridge.dev/internal/sim/delta"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/router"
	"simbridge.dev/internal/sim/scheduler"
)

type fakeRuntime struct {
	scripts []string
	err     error
}

func (r *fakeRuntime) Exec(_, script string) error {
	if r.err != nil {
		return r.err
	}
	r.scripts = append(r.scripts, script)
	return nil
}

type memAudit struct {
	mu       sync.Mutex
	commands []CommandRecord
	requests []RequestRecord
}

func (a *memAudit) CommandExecuted(rec CommandRecord) {
	a.mu.Lock()
	a.commands = append(a.commands, rec)
	a.mu.Unlock()
}

func (a *memAudit) RequestHandled(rec RequestRecord) {
	a.mu.Lock()
	a.requests = append(a.requests, rec)
	a.mu.Unlock()
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newBridge(t *testing.T, cfg Config) (*Bridge, *testClock, *memAudit) {
	t.Helper()
	clk := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	audit := &memAudit{}
	b, err := New(cfg, log.New(io.Discard, "", 0), Options{Audit: audit, Now: clk.now})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return b, clk, audit
}

func unitUpdate(id uint32, category string, alive bool) entity.Update {
	return entity.Update{ID: id, Patch: entity.Patch{
		Category:  entity.Ptr(category),
		Alive:     entity.Ptr(alive),
		Coalition: entity.Ptr(uint8(2)),
		Name:      entity.Ptr("F-16C_50"),
		UnitName:  entity.Ptr("Viper-1"),
		GroupName: entity.Ptr("Viper"),
		IsLeader:  entity.Ptr(true),
	}}
}

func TestHeartbeat_AppliesUpdatesAndServesFrames(t *testing.T) {
	b, clk, _ := newBridge(t, Config{})
	b.Heartbeat(Frame{Time: 12, Units: []entity.Update{
		unitUpdate(1, entity.CategoryAircraft, true),
		unitUpdate(2, "Spaceship", true),
	}})

	clk.t = clk.t.Add(time.Second)
	now, recs, err := delta.Decode(b.UnitsFrame(0))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if now != clk.t.UnixMilli() {
		t.Fatalf("frame time = %d, want %d", now, clk.t.UnixMilli())
	}
	if len(recs) != 1 || recs[0].ID != 1 {
		t.Fatalf("records = %+v, want only unit 1", recs)
	}
	if got := recs[0].Named()["unitName"]; got != "Viper-1" {
		t.Fatalf("unitName = %v", got)
	}

	// Nothing changed since the first poll.
	_, recs, _ = delta.Decode(b.UnitsFrame(clk.t.UnixMilli()))
	if len(recs) != 1 || len(recs[0].Fields) != 0 {
		t.Fatalf("incremental frame not empty: %+v", recs)
	}
}

func TestHeartbeat_RemovesAndSweeps(t *testing.T) {
	b, clk, _ := newBridge(t, Config{DeadEntityTTL: time.Minute})
	b.Heartbeat(Frame{Units: []entity.Update{
		unitUpdate(1, entity.CategoryAircraft, true),
		unitUpdate(2, entity.CategoryGroundUnit, true),
		unitUpdate(3, entity.CategoryGroundUnit, true),
	}})
	b.Heartbeat(Frame{
		Units:        []entity.Update{{ID: 3, Patch: entity.Patch{Alive: entity.Ptr(false)}}},
		RemovedUnits: []uint32{2},
	})
	if got := b.Stats().Units; got != 2 {
		t.Fatalf("units after removal = %d, want 2", got)
	}
	clk.t = clk.t.Add(2 * time.Minute)
	b.Heartbeat(Frame{})
	if got := b.Stats().Units; got != 1 {
		t.Fatalf("units after sweep = %d, want 1", got)
	}
}

func TestSubmit_ExecutesOnHeartbeat(t *testing.T) {
	b, clk, audit := newBridge(t, Config{})
	rt := &fakeRuntime{}
	if err := b.AttachRuntime(rt, Mission{Name: "training", Theatre: "Caucasus"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"green","location":{"lat":42,"lng":41}}}`), &batch)
	res := b.Submit(router.Caller{Username: "gm", Role: router.RoleGameMaster}, batch)
	if res.CommandHash == "" {
		t.Fatalf("no command hash")
	}
	if b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("executed before heartbeat")
	}

	clk.t = clk.t.Add(10 * time.Millisecond)
	b.Heartbeat(Frame{})
	if !b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("not executed after heartbeat")
	}
	if len(rt.scripts) != 1 || !strings.Contains(rt.scripts[0], "Olympus.smoke") {
		t.Fatalf("scripts = %q", rt.scripts)
	}
	if len(audit.commands) != 1 || audit.commands[0].Hash != res.CommandHash || audit.commands[0].Kind != "smoke" {
		t.Fatalf("command audit = %+v", audit.commands)
	}
	if len(audit.requests) != 1 || audit.requests[0].Status != router.StatusQueued || audit.requests[0].Username != "gm" {
		t.Fatalf("request audit = %+v", audit.requests)
	}
	if s := b.Stats(); s.CommandsExecuted != 1 || s.Requests != 1 || !s.HostConnected {
		t.Fatalf("stats = %+v", s)
	}
}

func TestHeartbeat_RuntimeFailureIsAudited(t *testing.T) {
	b, _, audit := newBridge(t, Config{})
	rt := &fakeRuntime{err: errors.New("queue full")}
	_ = b.AttachRuntime(rt, Mission{})
	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"red","location":{"lat":1,"lng":1}}}`), &batch)
	res := b.Submit(router.Caller{Role: router.RoleGameMaster}, batch)
	b.Heartbeat(Frame{})
	if b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("failed command reported executed")
	}
	if len(audit.commands) != 1 || audit.commands[0].Error != "queue full" {
		t.Fatalf("command audit = %+v", audit.commands)
	}
	if s := b.Stats(); s.CommandsFailed != 1 || s.Pending != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestScriptFailed_RetractsExecutedCommand(t *testing.T) {
	b, clk, audit := newBridge(t, Config{})
	_ = b.AttachRuntime(&fakeRuntime{}, Mission{})
	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"red","location":{"lat":1,"lng":1}}}`), &batch)
	res := b.Submit(router.Caller{Role: router.RoleGameMaster}, batch)
	clk.t = clk.t.Add(10 * time.Millisecond)
	b.Heartbeat(Frame{})
	if !b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("command not dispatched")
	}

	b.ScriptFailed(res.CommandHash, "attempt to index a nil value")
	if b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("rejected command still reported executed")
	}
	if s := b.Stats(); s.CommandsFailed != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if n := len(audit.commands); n != 2 || audit.commands[1].Error != "attempt to index a nil value" {
		t.Fatalf("command audit = %+v", audit.commands)
	}

	// A second report for the same hash changes nothing.
	b.ScriptFailed(res.CommandHash, "again")
	if s := b.Stats(); s.CommandsFailed != 1 {
		t.Fatalf("stats after repeat = %+v", s)
	}
}

func TestSubmit_ReloadRunsOutsideLock(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	clk := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	b, err := New(Config{}, log.New(io.Discard, "", 0), Options{
		Now: clk.now,
		Reload: func() error {
			close(entered)
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"reloadDatabases":{}}`), &batch)

	submitted := make(chan router.Result, 1)
	go func() { submitted <- b.Submit(router.Caller{Username: "gm", Role: router.RoleGameMaster}, batch) }()
	<-entered

	beat := make(chan struct{})
	go func() {
		b.Heartbeat(Frame{Units: []entity.Update{unitUpdate(1, entity.CategoryAircraft, true)}})
		close(beat)
	}()
	select {
	case <-beat:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatalf("heartbeat blocked while the reload was running")
	}
	close(release)
	res := <-submitted
	if !res.ReloadDatabases {
		t.Fatalf("result = %+v", res)
	}
}

func TestHeartbeat_SameMillisecondAsPollIsNotLost(t *testing.T) {
	b, clk, _ := newBridge(t, Config{})
	u := unitUpdate(1, entity.CategoryAircraft, true)
	u.Patch.Speed = entity.Ptr(200.0)
	b.Heartbeat(Frame{Units: []entity.Update{u}})

	ref, _, err := delta.Decode(b.UnitsFrame(0))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The clock has not moved: the heartbeat lands in the poll's millisecond.
	b.Heartbeat(Frame{Units: []entity.Update{{ID: 1, Patch: entity.Patch{Speed: entity.Ptr(250.0)}}}})

	now, recs, err := delta.Decode(b.UnitsFrame(ref))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].Named()["speed"] != 250.0 {
		t.Fatalf("records since %d = %+v, want the new speed", ref, recs)
	}

	clk.t = clk.t.Add(time.Millisecond)
	_, recs, _ = delta.Decode(b.UnitsFrame(clk.t.UnixMilli()))
	if len(recs) != 1 || len(recs[0].Fields) != 0 {
		t.Fatalf("change repeated after a later poll (previous header %d): %+v", now, recs)
	}
}

func TestAttachRuntime_Exclusive(t *testing.T) {
	b, _, _ := newBridge(t, Config{})
	first, second := &fakeRuntime{}, &fakeRuntime{}
	if err := b.AttachRuntime(first, Mission{}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := b.AttachRuntime(second, Mission{}); !errors.Is(err, ErrRuntimeBusy) {
		t.Fatalf("second attach err = %v", err)
	}
	b.DetachRuntime(second)
	if !b.Stats().HostConnected {
		t.Fatalf("detaching a stranger detached the runtime")
	}
	b.DetachRuntime(first)
	if b.Stats().HostConnected {
		t.Fatalf("still connected")
	}
	if err := b.AttachRuntime(second, Mission{}); err != nil {
		t.Fatalf("reattach: %v", err)
	}
}

func TestStatus_SessionStable(t *testing.T) {
	b, clk, _ := newBridge(t, Config{})
	s1 := b.Status()
	clk.t = clk.t.Add(time.Second)
	s2 := b.Status()
	if s1.SessionHash == "" || s1.SessionHash != s2.SessionHash {
		t.Fatalf("session hash changed: %q -> %q", s1.SessionHash, s2.SessionHash)
	}
	if s2.Time-s1.Time != 1000 {
		t.Fatalf("status time delta = %d", s2.Time-s1.Time)
	}
}

func TestSnapshot_RoundTripsOptions(t *testing.T) {
	opts := scheduler.CommandModeOptions{RestrictSpawns: true, SpawnPoints: scheduler.SpawnPoints{Blue: 400, Red: 300}, Eras: []string{"Modern"}}
	b, _, _ := newBridge(t, Config{Scheduler: scheduler.Config{Options: opts}})
	b.Heartbeat(Frame{Units: []entity.Update{unitUpdate(7, entity.CategoryNavyUnit, true)}})
	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"red","location":{"lat":1,"lng":1}}}`), &batch)
	b.Submit(router.Caller{Role: router.RoleGameMaster}, batch)

	st := b.Snapshot()
	if len(st.Pending) != 1 || st.Pending[0].Kind != "smoke" {
		t.Fatalf("pending = %+v", st.Pending)
	}
	if _, recs, err := delta.Decode(st.Units); err != nil || len(recs) != 1 {
		t.Fatalf("units frame: %v %+v", err, recs)
	}

	other, _, _ := newBridge(t, Config{})
	other.RestoreOptions(st.Options)
	_, got := other.Mission()
	if got.SpawnPoints.Blue != 400 || !got.RestrictSpawns || len(got.Eras) != 1 {
		t.Fatalf("restored options = %+v", got)
	}
}
