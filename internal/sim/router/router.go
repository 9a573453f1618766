// Package router turns client intents into scheduler commands or advisory
// unit state changes.
//
// Authoritative engine actions go through Authority and are throttled by the
// scheduler. Advisory changes go through Advisor and only touch unit fields;
// the advisory side has no path to the scheduler.
package router

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"simbridge.dev/internal/sim/command"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/scheduler"
)

//go:embed intents.schema.json
var intentSchemas []byte

const schemaURL = "https://simbridge.dev/schemas/intents.schema.json"

// Authority is the throttled, authoritative side.
type Authority interface {
	// Admit queues c, or returns the pending duplicate that absorbs it.
	Admit(c *command.Command) (*command.Command, bool)
	CheckSpawnPoints(amount int, coalition string) bool
	CommandModeOptions() scheduler.CommandModeOptions
	SetCommandModeOptions(p scheduler.CommandModePatch)
}

// Advisor is the advisory side: unit lookup and direct state changes.
type Advisor interface {
	Unit(id uint32) (*entity.Unit, bool)
	GroupLeader(id uint32) (*entity.Unit, bool)
	AcquireControl(id uint32)
}

// Catalog answers unit-type lookups against the loaded unit databases.
type Catalog interface {
	HasUnitType(category, unitType string) (found, loaded bool)
}

type Role string

const (
	RoleGameMaster    Role = "Game master"
	RoleBlueCommander Role = "Blue commander"
	RoleRedCommander  Role = "Red commander"
)

// Coalition returns the coalition a commander role is bound to.
func (r Role) Coalition() (string, bool) {
	switch r {
	case RoleBlueCommander:
		return "blue", true
	case RoleRedCommander:
		return "red", true
	}
	return "", false
}

type Caller struct {
	Username string
	Role     Role
}

const (
	StatusQueued    = "queued"
	StatusDuplicate = "duplicate"
	StatusApplied   = "applied"
	StatusDropped   = "dropped"
	StatusUnknown   = "unknown"
)

// Outcome is the per-intent result of a batch.
type Outcome struct {
	Intent string `json:"intent"`
	Status string `json:"status"`
	Hash   string `json:"hash,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Result struct {
	// CommandHash is the hash of the last command created by the batch.
	CommandHash string
	Outcomes    []Outcome
	// ReloadDatabases is set when the batch asked for a unit database
	// reload. The caller performs it outside its lock.
	ReloadDatabases bool
}

type Options struct {
	Catalog Catalog
}

type Router struct {
	log      *log.Logger
	auth     Authority
	adv      Advisor
	opts     Options
	handlers map[string]handler
}

type handler struct {
	schema *jsonschema.Schema
	fn     func(r *Router, c *call) error
}

// call carries one intent through its handler.
type call struct {
	Caller
	key     string
	raw     json.RawMessage
	command *command.Command
	reload  bool
}

var (
	errUnresolved = errors.New("unresolved reference")
	errForbidden  = errors.New("forbidden")
)

func New(auth Authority, adv Advisor, opts Options, logger *log.Logger) (*Router, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(intentSchemas)); err != nil {
		return nil, fmt.Errorf("intent schemas: %w", err)
	}
	r := &Router{log: logger, auth: auth, adv: adv, opts: opts, handlers: map[string]handler{}}
	for key, def := range intentTable {
		s, err := c.Compile(schemaURL + "#/$defs/" + def.schema)
		if err != nil {
			return nil, fmt.Errorf("intent %s: compile schema %s: %w", key, def.schema, err)
		}
		r.handlers[key] = handler{schema: s, fn: def.fn}
	}
	return r, nil
}

// Intents lists the recognized intent keys.
func (r *Router) Intents() []string {
	return slices.Sorted(maps.Keys(r.handlers))
}

// Handle processes a batch in key order. A failing intent is dropped and
// logged; the rest of the batch still runs.
func (r *Router) Handle(caller Caller, batch map[string]json.RawMessage) Result {
	var res Result
	for _, key := range slices.Sorted(maps.Keys(batch)) {
		out := r.handleOne(caller, key, batch[key], &res)
		if out.Hash != "" {
			res.CommandHash = out.Hash
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res
}

func (r *Router) handleOne(caller Caller, key string, raw json.RawMessage, res *Result) (out Outcome) {
	out = Outcome{Intent: key}
	defer func() {
		if p := recover(); p != nil {
			r.log.Printf("intent %s from %s: panic: %v", key, caller.Username, p)
			out = Outcome{Intent: key, Status: StatusDropped, Reason: fmt.Sprint(p)}
		}
	}()

	h, ok := r.handlers[key]
	if !ok {
		r.log.Printf("unknown intent %q from %s", key, caller.Username)
		out.Status = StatusUnknown
		return out
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return r.drop(caller, key, fmt.Errorf("decode: %w", err))
	}
	if err := h.schema.Validate(v); err != nil {
		return r.drop(caller, key, err)
	}

	c := &call{Caller: caller, key: key, raw: raw}
	if err := h.fn(r, c); err != nil {
		return r.drop(caller, key, err)
	}
	if c.reload {
		res.ReloadDatabases = true
	}
	if c.command != nil {
		held, queued := r.auth.Admit(c.command)
		out.Hash = held.Hash()
		if queued {
			out.Status = StatusQueued
			r.log.Printf("%s queued %s %s", caller.Username, c.command.Kind(), out.Hash)
		} else {
			out.Status = StatusDuplicate
		}
		return out
	}
	out.Status = StatusApplied
	return out
}

func (r *Router) drop(caller Caller, key string, err error) Outcome {
	r.log.Printf("dropping intent %s from %s: %v", key, caller.Username, err)
	return Outcome{Intent: key, Status: StatusDropped, Reason: err.Error()}
}

func (c *call) decode(dst any) error {
	if err := json.Unmarshal(c.raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// mayCommand enforces restrictToCoalition for commander roles.
func (r *Router) mayCommand(c *call, coalition string) error {
	if !r.auth.CommandModeOptions().RestrictToCoalition {
		return nil
	}
	side, bound := c.Role.Coalition()
	if !bound || side == coalition {
		return nil
	}
	return fmt.Errorf("%w: %s may not act for coalition %s", errForbidden, c.Role, coalition)
}

// leader acquires control of id's group and resolves its leader.
func (r *Router) leader(c *call, id uint32) (*entity.Unit, error) {
	u, ok := r.adv.Unit(id)
	if !ok || !u.Alive() {
		return nil, fmt.Errorf("%w: unit %d", errUnresolved, id)
	}
	if err := r.mayCommand(c, entity.CoalitionName(u.Coalition())); err != nil {
		return nil, err
	}
	r.adv.AcquireControl(id)
	l, ok := r.adv.GroupLeader(id)
	if !ok {
		return nil, fmt.Errorf("%w: leader of unit %d", errUnresolved, id)
	}
	return l, nil
}
