package entity

import (
	"fmt"
	"time"

	"simbridge.dev/internal/sim/encoding"
)

// Clock returns the current wall-clock time in epoch milliseconds.
type Clock func() int64

func WallClock() int64 { return time.Now().UnixMilli() }

// Kind separates the id spaces of the two entity families.
type Kind uint8

const (
	KindUnit Kind = iota + 1
	KindWeapon
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindWeapon:
		return "weapon"
	}
	return "unknown"
}

// Entity is the capability set shared by units and weapons.
type Entity interface {
	ID() uint32
	Kind() Kind
	Category() string
	Alive() bool
	Coalition() uint8
	Name() string
	Position() Coords

	// UpdateTimeOf returns the last mutation time of f, or 0 if f was never set.
	UpdateTimeOf(f Field) int64
	// Fields lists the fields this entity carries, in wire enumeration order.
	Fields() []Field
	// WriteField appends the value of f (without its tag) and reports whether
	// the entity carries f at all.
	WriteField(w *encoding.Buffer, f Field) bool

	apply(p *Patch)
}

// base holds the shared fields and the per-field dirty timestamps.
// All mutation goes through set/touch so stamping cannot be skipped.
type base struct {
	id     uint32
	clock  Clock
	stamps [fieldLimit]int64

	category  string
	alive     bool
	coalition uint8
	name      string
	position  Coords
	speed     float64
	heading   float64

	onTouch func(Field)
}

func (b *base) ID() uint32       { return b.id }
func (b *base) Category() string { return b.category }
func (b *base) Alive() bool      { return b.alive }
func (b *base) Coalition() uint8 { return b.coalition }
func (b *base) Name() string     { return b.name }
func (b *base) Position() Coords { return b.position }
func (b *base) Speed() float64   { return b.speed }
func (b *base) Heading() float64 { return b.heading }

func (b *base) UpdateTimeOf(f Field) int64 {
	if !f.Valid() {
		return 0
	}
	return b.stamps[f]
}

func (b *base) touch(f Field) {
	b.stamps[f] = b.clock()
	if b.onTouch != nil {
		b.onTouch(f)
	}
}

// set assigns v and stamps f when the value changes, or when f has never
// been set (so a first assignment of the zero value is still reported).
func set[T comparable](b *base, f Field, dst *T, v T) {
	if *dst == v && b.stamps[f] != 0 {
		return
	}
	*dst = v
	b.touch(f)
}

func (b *base) applyShared(p *Patch) {
	if p.Alive != nil {
		set(b, FieldAlive, &b.alive, *p.Alive)
	}
	if p.Coalition != nil {
		set(b, FieldCoalition, &b.coalition, *p.Coalition)
	}
	if p.Name != nil {
		set(b, FieldName, &b.name, *p.Name)
	}
	if p.Position != nil {
		set(b, FieldPosition, &b.position, *p.Position)
	}
	if p.Speed != nil {
		set(b, FieldSpeed, &b.speed, *p.Speed)
	}
	if p.Heading != nil {
		set(b, FieldHeading, &b.heading, *p.Heading)
	}
}

func (b *base) writeShared(w *encoding.Buffer, f Field) bool {
	switch f {
	case FieldCategory:
		w.String(b.category)
	case FieldAlive:
		w.Bool(b.alive)
	case FieldCoalition:
		w.Uint8(b.coalition)
	case FieldName:
		w.String(b.name)
	case FieldPosition:
		writeCoords(w, b.position)
	case FieldSpeed:
		w.Float64(b.speed)
	case FieldHeading:
		w.Float64(b.heading)
	default:
		return false
	}
	return true
}

func writeCoords(w *encoding.Buffer, c Coords) {
	w.Float64(c.Lat)
	w.Float64(c.Lng)
	w.Float64(c.Alt)
}

// Describe renders an entity for log lines.
func Describe(e Entity) string {
	if e == nil {
		return "<nil>"
	}
	if u, ok := e.(*Unit); ok && u.UnitName() != "" {
		return fmt.Sprintf("%s(%s)", u.UnitName(), u.Name())
	}
	return fmt.Sprintf("%s#%d(%s)", e.Kind(), e.ID(), e.Name())
}
