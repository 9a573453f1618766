// Package scheduler admits, throttles and executes authoritative commands.
//
// The scheduler is not synchronized. Its owner (the bridge) serializes every
// call, including the once-per-frame Execute.
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"time"

	"simbridge.dev/internal/sim/command"
)

var ErrNoRuntime = errors.New("no simulation runtime attached")

// Runtime executes script text inside the simulation host. Exec must not
// block: the scheduler calls it while the bridge lock is held. hash
// identifies the command so an asynchronous rejection can be retracted.
type Runtime interface {
	Exec(hash, script string) error
}

// Executed describes one command consumed by Execute.
type Executed struct {
	Hash     string
	Kind     string
	Script   string
	Priority command.Priority
	Load     int
	Budget   int
	Err      error
	At       time.Time
}

type Config struct {
	// HashHorizon bounds how long executed hashes are remembered.
	// Zero keeps them for the life of the process.
	HashHorizon time.Duration
	Options     CommandModeOptions
}

type hashEntry struct {
	hash string
	at   time.Time
}

type Scheduler struct {
	log  *log.Logger
	now  func() time.Time
	rt   Runtime
	cfg  Config
	opts CommandModeOptions

	pending   []*command.Command
	budget    int
	frameRate int

	executed      map[string]time.Time
	executedOrder []hashEntry
}

func New(cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		log:      logger,
		now:      time.Now,
		cfg:      cfg,
		opts:     cfg.Options.clone(),
		executed: map[string]time.Time{},
	}
}

// SetClock replaces the wall clock. Tests use it.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

func (s *Scheduler) SetRuntime(rt Runtime) { s.rt = rt }

func (s *Scheduler) SetFrameRate(fps int) { s.frameRate = fps }
func (s *Scheduler) FrameRate() int       { return s.frameRate }

// Budget is the number of ticks left before the next command may run.
func (s *Scheduler) Budget() int { return s.budget }

// Load is the summed load of all pending commands.
func (s *Scheduler) Load() int {
	n := 0
	for _, c := range s.pending {
		n += c.Load
	}
	return n
}

func (s *Scheduler) Pending() []*command.Command {
	return append([]*command.Command(nil), s.pending...)
}

// AppendCommand queues c unless a pending command has the same rendered
// text and priority. It reports whether c was queued.
func (s *Scheduler) AppendCommand(c *command.Command) bool {
	_, queued := s.Admit(c)
	return queued
}

// Admit is AppendCommand returning the pending command that now stands for
// c: c itself when queued, otherwise the earlier duplicate whose hash will
// be the one reported executed.
func (s *Scheduler) Admit(c *command.Command) (*command.Command, bool) {
	if c == nil {
		return nil, false
	}
	for _, p := range s.pending {
		if p.Priority == c.Priority && p.Render() == c.Render() {
			return p, false
		}
	}
	s.pending = append(s.pending, c)
	return c, true
}

// Multiplier converts an observed frame rate into the load multiplier:
// 60/(fps+3) with integer division, clamped to [1, 20].
func Multiplier(fps int) int {
	if fps+3 <= 0 {
		return 20
	}
	return min(20, max(1, 60/(fps+3)))
}

// Execute runs at most one command. While the load budget is positive it
// only decrements the budget. Otherwise the first pending command of the
// highest non-empty priority band is submitted and consumed, and the budget
// is reloaded from its cost. A command the runtime rejects is consumed as
// well, but its hash is never reported executed and its callback never runs.
// A rejection the host reports later goes through Retract.
func (s *Scheduler) Execute() (Executed, bool) {
	if s.budget > 0 {
		s.budget--
		return Executed{}, false
	}
	now := s.now()
	s.pruneExecuted(now)

	idx := s.pick()
	if idx < 0 {
		return Executed{}, false
	}
	c := s.pending[idx]
	script := c.Script()

	var err error
	if s.rt == nil {
		err = ErrNoRuntime
	} else {
		err = s.rt.Exec(c.Hash(), script)
	}
	if err != nil {
		s.log.Printf("error executing command %s: %v", script, err)
	}

	s.budget = c.Load * Multiplier(s.frameRate)
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	if err == nil {
		s.remember(c.Hash(), now)
		s.log.Printf("command %s executed, pending load %d", c.Kind(), s.Load())
		if c.Callback != nil {
			s.runCallback(c)
		}
	}
	return Executed{
		Hash:     c.Hash(),
		Kind:     c.Kind(),
		Script:   script,
		Priority: c.Priority,
		Load:     c.Load,
		Budget:   s.budget,
		Err:      err,
		At:       now,
	}, true
}

func (s *Scheduler) pick() int {
	for _, p := range command.ScanOrder {
		for i, c := range s.pending {
			if c.Priority == p {
				return i
			}
		}
	}
	return -1
}

func (s *Scheduler) runCallback(c *command.Command) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("command %s callback panic: %v", c.Kind(), r)
		}
	}()
	c.Callback()
}

func (s *Scheduler) remember(hash string, at time.Time) {
	if _, ok := s.executed[hash]; !ok {
		s.executedOrder = append(s.executedOrder, hashEntry{hash: hash, at: at})
	}
	s.executed[hash] = at
}

func (s *Scheduler) pruneExecuted(now time.Time) {
	if s.cfg.HashHorizon <= 0 {
		return
	}
	cut := 0
	for cut < len(s.executedOrder) && now.Sub(s.executedOrder[cut].at) > s.cfg.HashHorizon {
		e := s.executedOrder[cut]
		// A hash re-executed later keeps its newer timestamp.
		if at, ok := s.executed[e.hash]; ok && !at.After(e.at) {
			delete(s.executed, e.hash)
		}
		cut++
	}
	if cut > 0 {
		s.executedOrder = append(s.executedOrder[:0], s.executedOrder[cut:]...)
	}
}

func (s *Scheduler) IsCommandExecuted(hash string) bool {
	_, ok := s.executed[hash]
	return ok
}

// Retract forgets an executed hash after the host reported that its script
// failed. The callback has already run by then.
func (s *Scheduler) Retract(hash string) bool {
	if _, ok := s.executed[hash]; !ok {
		return false
	}
	delete(s.executed, hash)
	return true
}

// ExecutedCount is the number of remembered executed hashes.
func (s *Scheduler) ExecutedCount() int { return len(s.executed) }

// CheckSpawnPoints reserves amount spawn points for coalition. With spawn
// restriction off it always succeeds. An insufficient budget is left as is.
func (s *Scheduler) CheckSpawnPoints(amount int, coalition string) bool {
	if !s.opts.RestrictSpawns {
		return true
	}
	var budget *int
	switch coalition {
	case "blue":
		budget = &s.opts.SpawnPoints.Blue
	case "red":
		budget = &s.opts.SpawnPoints.Red
	default:
		s.log.Printf("spawn points requested for unknown coalition %q", coalition)
		return false
	}
	if *budget-amount < 0 {
		s.log.Printf("Not enough %s coalition spawn points available. Available: %d, required: %d", coalition, *budget, amount)
		return false
	}
	*budget -= amount
	return true
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("scheduler(pending=%d budget=%d fps=%d)", len(s.pending), s.budget, s.frameRate)
}
