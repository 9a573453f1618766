// Package delta renders entity state as differential binary poll frames.
//
// Frame:  [u64 now][record...]
// Record: [u32 id]([u8 tag][value])*[u8 0xFF]
//
// All integers are little-endian. A record carries only the fields whose
// update time is strictly after the client's reference time.
package delta

import (
	"simbridge.dev/internal/sim/encoding"
	"simbridge.dev/internal/sim/entity"
)

// Encode appends the record of e relative to ref. It does not mutate e.
func Encode(w *encoding.Buffer, e entity.Entity, ref int64) {
	w.Uint32(e.ID())
	if !e.Alive() && ref == 0 {
		writeTagged(w, e, entity.FieldCategory)
		writeTagged(w, e, entity.FieldAlive)
		w.End()
		return
	}
	for _, f := range e.Fields() {
		if e.UpdateTimeOf(f) > ref {
			writeTagged(w, e, f)
		}
	}
	w.End()
}

// EncodeFull appends a record carrying every field that has ever been set.
// Snapshots use it; polls never do.
func EncodeFull(w *encoding.Buffer, e entity.Entity) {
	w.Uint32(e.ID())
	for _, f := range e.Fields() {
		if e.UpdateTimeOf(f) > 0 {
			writeTagged(w, e, f)
		}
	}
	w.End()
}

func writeTagged(w *encoding.Buffer, e entity.Entity, f entity.Field) {
	mark := w.Len()
	w.Tag(uint8(f))
	if !e.WriteField(w, f) {
		w.Truncate(mark)
	}
}

// Source is the read side of an entity store.
type Source interface {
	Each(fn func(entity.Entity) bool)
}

// Frame renders a complete poll response: the header time followed by one
// record per entity in store order.
func Frame(w *encoding.Buffer, now int64, src Source, ref int64) {
	w.Uint64(uint64(now))
	src.Each(func(e entity.Entity) bool {
		Encode(w, e, ref)
		return true
	})
}
