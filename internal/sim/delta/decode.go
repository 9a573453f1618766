package delta

import (
	"fmt"

	"simbridge.dev/internal/sim/encoding"
	"simbridge.dev/internal/sim/entity"
)

// Record is one decoded entity record.
type Record struct {
	ID     uint32
	Fields []entity.Field
	Values map[entity.Field]any
}

func (r Record) Has(f entity.Field) bool {
	_, ok := r.Values[f]
	return ok
}

// Named returns the values keyed by field name, for JSON output.
func (r Record) Named() map[string]any {
	out := make(map[string]any, len(r.Values)+1)
	out["id"] = r.ID
	for f, v := range r.Values {
		out[f.String()] = v
	}
	return out
}

// Decode parses a poll frame produced by Frame.
func Decode(b []byte) (int64, []Record, error) {
	r := encoding.NewReader(b)
	now, err := r.Uint64()
	if err != nil {
		return 0, nil, fmt.Errorf("frame header: %w", err)
	}
	var recs []Record
	for r.Remaining() > 0 {
		rec, err := DecodeRecord(r)
		if err != nil {
			return int64(now), recs, err
		}
		recs = append(recs, rec)
	}
	return int64(now), recs, nil
}

// DecodeRecord reads a single record, including its end marker.
func DecodeRecord(r *encoding.Reader) (Record, error) {
	id, err := r.Uint32()
	if err != nil {
		return Record{}, fmt.Errorf("record id: %w", err)
	}
	rec := Record{ID: id, Values: map[entity.Field]any{}}
	for {
		tag, err := r.Uint8()
		if err != nil {
			return rec, fmt.Errorf("record %d: %w", id, err)
		}
		if tag == encoding.EndOfRecord {
			return rec, nil
		}
		f := entity.Field(tag)
		v, err := entity.ReadField(r, f)
		if err != nil {
			return rec, fmt.Errorf("record %d at offset %d: %w", id, r.Offset(), err)
		}
		rec.Fields = append(rec.Fields, f)
		rec.Values[f] = v
	}
}
