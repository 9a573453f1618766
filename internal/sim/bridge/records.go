package bridge

import (
	"time"

	"simbridge.dev/internal/sim/delta"
	"simbridge.dev/internal/sim/encoding"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/scheduler"
)

// CommandRecord describes one command handed to the runtime.
type CommandRecord struct {
	Time     time.Time `json:"time"`
	Hash     string    `json:"hash"`
	Kind     string    `json:"kind"`
	Priority string    `json:"priority"`
	Load     int       `json:"load"`
	Budget   int       `json:"budget"`
	Script   string    `json:"script"`
	Error    string    `json:"error,omitempty"`
}

// RequestRecord describes how one intent of a client batch was handled.
type RequestRecord struct {
	Time     time.Time `json:"time"`
	Username string    `json:"username,omitempty"`
	Role     string    `json:"role"`
	Intent   string    `json:"intent"`
	Status   string    `json:"status"`
	Hash     string    `json:"hash,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

func commandRecord(ex scheduler.Executed) CommandRecord {
	r := CommandRecord{
		Time:     ex.At,
		Hash:     ex.Hash,
		Kind:     ex.Kind,
		Priority: ex.Priority.String(),
		Load:     ex.Load,
		Budget:   ex.Budget,
		Script:   ex.Script,
	}
	if ex.Err != nil {
		r.Error = ex.Err.Error()
	}
	return r
}

// PendingCommand is the inspectable form of a queued command.
type PendingCommand struct {
	Hash     string
	Kind     string
	Priority string
	Load     int
	Script   string
}

// State is a point-in-time copy of the bridge, suitable for snapshots.
// Units and Weapons hold full delta frames (reference time 0).
type State struct {
	Time        time.Time
	SessionHash string
	HostTime    int64
	Mission     Mission
	Options     scheduler.CommandModeOptions
	Units       []byte
	Weapons     []byte
	Pending     []PendingCommand
	Executed    int
}

// Snapshot copies the current state.
func (b *Bridge) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	st := State{
		Time:        now,
		SessionHash: b.session,
		HostTime:    b.hostTime,
		Mission:     b.mission,
		Options:     b.sched.CommandModeOptions(),
		Units:       fullFrame(b.units, now.UnixMilli()),
		Weapons:     fullFrame(b.weapons, now.UnixMilli()),
		Executed:    b.sched.ExecutedCount(),
	}
	for _, c := range b.sched.Pending() {
		st.Pending = append(st.Pending, PendingCommand{
			Hash:     c.Hash(),
			Kind:     c.Kind(),
			Priority: c.Priority.String(),
			Load:     c.Load,
			Script:   c.Script(),
		})
	}
	return st
}

func fullFrame(s *entity.Store, now int64) []byte {
	w := encoding.NewBuffer(16 + 128*s.Len())
	w.Uint64(uint64(now))
	s.Each(func(e entity.Entity) bool {
		delta.EncodeFull(w, e)
		return true
	})
	return w.Bytes()
}

// RestoreOptions reinstates command mode options saved in a snapshot.
// Entity state is not restored; the host resends it on every heartbeat.
func (b *Bridge) RestoreOptions(o scheduler.CommandModeOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sched.SetCommandModeOptions(o.Patch())
}

// MultiAudit fans records out to several sinks in order.
type MultiAudit []Audit

func (m MultiAudit) CommandExecuted(rec CommandRecord) {
	for _, a := range m {
		a.CommandExecuted(rec)
	}
}

func (m MultiAudit) RequestHandled(rec RequestRecord) {
	for _, a := range m {
		a.RequestHandled(rec)
	}
}
