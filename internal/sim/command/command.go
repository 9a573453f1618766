// Package command defines the authoritative engine actions queued by the
// scheduler. Intent is a closed set: only the variants in this package
// implement it.
package command

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type Priority uint8

const (
	Low Priority = iota
	Medium
	High
	Immediate
)

// ScanOrder lists the priority bands from highest to lowest.
var ScanOrder = []Priority{Immediate, High, Medium, Low}

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Immediate:
		return "immediate"
	}
	return fmt.Sprintf("priority(%d)", uint8(p))
}

// Intent is one concrete engine action.
type Intent interface {
	// Kind is the engine function the intent maps to.
	Kind() string
	// Render returns the engine invocation text, e.g. `Olympus.smoke, "red", 41.1, 43.2`.
	Render() string

	defaults() (Priority, int)
}

// Command is a queued intent with its scheduling metadata.
type Command struct {
	Intent   Intent
	Priority Priority
	Load     int
	Callback func()

	hash string
	text string
}

type Option func(*Command)

func WithPriority(p Priority) Option { return func(c *Command) { c.Priority = p } }
func WithLoad(n int) Option          { return func(c *Command) { c.Load = n } }
func WithCallback(fn func()) Option  { return func(c *Command) { c.Callback = fn } }

// New builds a command with the intent's default priority and load.
func New(in Intent, opts ...Option) *Command {
	p, load := in.defaults()
	c := &Command{Intent: in, Priority: p, Load: load}
	for _, o := range opts {
		o(c)
	}
	if c.Load < 1 {
		c.Load = 1
	}
	c.text = in.Render()
	c.hash = Hash(in)
	return c
}

func (c *Command) Kind() string   { return c.Intent.Kind() }
func (c *Command) Hash() string   { return c.hash }
func (c *Command) Render() string { return c.text }

// Script is the protected invocation submitted to the simulation runtime.
func (c *Command) Script() string {
	return "Olympus.protectedCall(" + c.text + ")"
}

// Hash is the completion hash of an intent: the first 128 bits of
// sha256(kind, 0x00, canonical JSON of the intent), hex encoded.
// Formatting of the rendered text does not affect it.
func Hash(in Intent) string {
	b, err := json.Marshal(in)
	if err != nil {
		// Intents are plain data; only NaN/Inf floats can fail here.
		b = []byte(in.Render())
	}
	h := sha256.New()
	h.Write([]byte(in.Kind()))
	h.Write([]byte{0})
	h.Write(b)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
