// Package bridge owns the authoritative state shared between the simulation
// host link and client requests.
//
// One mutex guards the entity stores, the scheduler and the router. Every
// exported method holds it for its whole duration. Audit records produced
// under the lock are handed to the Audit sink only after unlocking.
package bridge

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"simbridge.dev/internal/sim/delta"
	"simbridge.dev/internal/sim/encoding"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/router"
	"simbridge.dev/internal/sim/scheduler"
	"simbridge.dev/internal/sim/tasking"
)

type Config struct {
	// DeadEntityTTL removes entities dead for longer than this. Zero keeps them.
	DeadEntityTTL   time.Duration
	FrameRateWindow time.Duration
	Scheduler       scheduler.Config
}

// Audit receives records of executed commands and handled requests.
// Implementations may do I/O; they are never called under the bridge lock.
type Audit interface {
	CommandExecuted(rec CommandRecord)
	RequestHandled(rec RequestRecord)
}

type Options struct {
	Catalog router.Catalog
	// Reload rereads the unit databases. It runs after the lock is
	// released, on the goroutine of the batch that asked for it.
	Reload func() error
	Audit  Audit
	// Now overrides the wall clock.
	Now func() time.Time
}

// Frame is one heartbeat from the simulation host.
type Frame struct {
	Time           int64
	Units          []entity.Update
	Weapons        []entity.Update
	RemovedUnits   []uint32
	RemovedWeapons []uint32
}

// Mission is the static mission data reported by the host on connect.
type Mission struct {
	Name      string          `json:"name"`
	Theatre   string          `json:"theatre"`
	DateTime  string          `json:"dateAndTime,omitempty"`
	Airbases  json.RawMessage `json:"airbases,omitempty"`
	Bullseyes json.RawMessage `json:"bullseyes,omitempty"`
}

type Status struct {
	Time        int64  `json:"time"`
	SessionHash string `json:"sessionHash"`
	Load        int    `json:"load"`
	FrameRate   int    `json:"frameRate"`
}

type Stats struct {
	Heartbeats       uint64
	CommandsExecuted uint64
	CommandsFailed   uint64
	Requests         uint64
	IntentsDropped   uint64
	Units            int
	Weapons          int
	Pending          int
	HostConnected    bool
}

var ErrRuntimeBusy = errors.New("a simulation runtime is already attached")

type Bridge struct {
	log  *log.Logger
	cfg  Config
	opts Options
	now  func() time.Time

	session string

	mu       sync.Mutex
	units    *entity.Store
	weapons  *entity.Store
	sched    *scheduler.Scheduler
	router   *router.Router
	tasker   *tasking.Tasker
	meter    *scheduler.FrameRateMeter
	runtime  scheduler.Runtime
	mission  Mission
	hostTime int64
	stats    Stats
}

func New(cfg Config, logger *log.Logger, opts Options) (*Bridge, error) {
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	clock := func() int64 { return now().UnixMilli() }
	b := &Bridge{
		log:     logger,
		cfg:     cfg,
		opts:    opts,
		now:     now,
		session: uuid.NewString(),
		units:   entity.NewStore(entity.KindUnit, clock),
		weapons: entity.NewStore(entity.KindWeapon, clock),
		sched:   scheduler.New(cfg.Scheduler, logger),
		tasker:  tasking.New(logger),
		meter:   scheduler.NewFrameRateMeter(cfg.FrameRateWindow),
	}
	b.sched.SetClock(now)
	r, err := router.New(b.sched, b.units, router.Options{Catalog: opts.Catalog}, logger)
	if err != nil {
		return nil, err
	}
	b.router = r
	return b, nil
}

// SessionHash identifies this process run. It never changes.
func (b *Bridge) SessionHash() string { return b.session }

// AttachRuntime makes rt the target of executed scripts. Only one runtime
// may be attached at a time.
func (b *Bridge) AttachRuntime(rt scheduler.Runtime, mission Mission) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runtime != nil {
		return ErrRuntimeBusy
	}
	b.runtime = rt
	b.sched.SetRuntime(rt)
	b.mission = mission
	b.stats.HostConnected = true
	b.log.Printf("simulation host attached: mission=%q theatre=%q", mission.Name, mission.Theatre)
	return nil
}

// DetachRuntime detaches rt if it is the current runtime.
func (b *Bridge) DetachRuntime(rt scheduler.Runtime) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runtime != rt {
		return
	}
	b.runtime = nil
	b.sched.SetRuntime(nil)
	b.stats.HostConnected = false
	b.log.Printf("simulation host detached")
}

// Heartbeat applies one host frame and runs one scheduler tick.
func (b *Bridge) Heartbeat(f Frame) {
	var recs []CommandRecord
	func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		recs = b.heartbeatLocked(f)
	}()
	if b.opts.Audit != nil {
		for _, r := range recs {
			b.opts.Audit.CommandExecuted(r)
		}
	}
}

func (b *Bridge) heartbeatLocked(f Frame) []CommandRecord {
	b.stats.Heartbeats++
	b.hostTime = f.Time
	if fps, ok := b.meter.Tick(b.now()); ok {
		b.sched.SetFrameRate(fps)
	}

	b.apply(b.units, f.Units)
	b.apply(b.weapons, f.Weapons)
	for _, id := range f.RemovedUnits {
		b.units.Remove(id)
		b.tasker.Forget(id)
	}
	for _, id := range f.RemovedWeapons {
		b.weapons.Remove(id)
	}
	if ttl := b.cfg.DeadEntityTTL; ttl > 0 {
		b.units.SweepDead(ttl)
		b.weapons.SweepDead(ttl)
	}

	b.tasker.Run(b.units, b.sched)

	ex, ok := b.sched.Execute()
	if !ok {
		return nil
	}
	b.stats.CommandsExecuted++
	if ex.Err != nil {
		b.stats.CommandsFailed++
	}
	return []CommandRecord{commandRecord(ex)}
}

func (b *Bridge) apply(s *entity.Store, updates []entity.Update) {
	for _, u := range updates {
		if _, err := s.Upsert(u.ID, u.Patch); err != nil {
			b.log.Printf("skipping %s update: %v", s.Kind(), err)
		}
	}
}

// Submit routes a client batch. The result carries commandHash when the
// batch created a command.
func (b *Bridge) Submit(caller router.Caller, batch map[string]json.RawMessage) router.Result {
	var res router.Result
	func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		res = b.router.Handle(caller, batch)
		b.stats.Requests++
		for _, o := range res.Outcomes {
			if o.Status == router.StatusDropped {
				b.stats.IntentsDropped++
			}
		}
	}()
	if b.opts.Audit != nil {
		at := b.now()
		for _, o := range res.Outcomes {
			b.opts.Audit.RequestHandled(RequestRecord{
				Time:     at,
				Username: caller.Username,
				Role:     string(caller.Role),
				Intent:   o.Intent,
				Status:   o.Status,
				Hash:     o.Hash,
				Reason:   o.Reason,
			})
		}
	}
	if res.ReloadDatabases && b.opts.Reload != nil {
		if err := b.opts.Reload(); err != nil {
			b.log.Printf("reload databases requested by %s: %v", caller.Username, err)
		}
	}
	return res
}

// ScriptFailed records that the host rejected the script of an already
// dispatched command: its hash stops reporting executed.
func (b *Bridge) ScriptFailed(hash, reason string) {
	var rec *CommandRecord
	func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.sched.Retract(hash) {
			return
		}
		b.stats.CommandsFailed++
		rec = &CommandRecord{Time: b.now(), Hash: hash, Kind: "scriptResult", Error: reason}
	}()
	if rec == nil {
		return
	}
	b.log.Printf("host rejected command %s: %s", hash, reason)
	if b.opts.Audit != nil {
		b.opts.Audit.CommandExecuted(*rec)
	}
}

func (b *Bridge) IsCommandExecuted(hash string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sched.IsCommandExecuted(hash)
}

// UnitsFrame renders the unit poll response for reference time ref.
func (b *Bridge) UnitsFrame(ref int64) []byte { return b.frame(b.units, ref) }

// WeaponsFrame renders the weapon poll response for reference time ref.
func (b *Bridge) WeaponsFrame(ref int64) []byte { return b.frame(b.weapons, ref) }

func (b *Bridge) frame(s *entity.Store, ref int64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UnixMilli()
	s.IssueCursor(now)
	w := encoding.NewBuffer(16 + 64*s.Len())
	delta.Frame(w, now, s, ref)
	return w.Bytes()
}

func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Bridge) statusLocked() Status {
	return Status{
		Time:        b.now().UnixMilli(),
		SessionHash: b.session,
		Load:        b.sched.Load(),
		FrameRate:   b.sched.FrameRate(),
	}
}

func (b *Bridge) Mission() (Mission, scheduler.CommandModeOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mission, b.sched.CommandModeOptions()
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Units = b.units.Len()
	s.Weapons = b.weapons.Len()
	s.Pending = len(b.sched.Pending())
	return s
}
