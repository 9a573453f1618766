package entity

import "simbridge.dev/internal/sim/encoding"

const (
	CategoryMissile = "Missile"
	CategoryBomb    = "Bomb"
)

// Weapon is a missile or bomb in flight.
type Weapon struct {
	base
}

func newWeapon(id uint32, category string, clock Clock) *Weapon {
	w := &Weapon{base: base{id: id, clock: clock}}
	set(&w.base, FieldCategory, &w.category, category)
	return w
}

func (w *Weapon) Kind() Kind      { return KindWeapon }
func (w *Weapon) Fields() []Field { return weaponFields }
func (w *Weapon) apply(p *Patch)  { w.applyShared(p) }

func (w *Weapon) WriteField(b *encoding.Buffer, f Field) bool {
	return w.writeShared(b, f)
}
