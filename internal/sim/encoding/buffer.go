package encoding

import (
	"encoding/binary"
	"math"
)

// EndOfRecord terminates every entity record in a poll frame.
const EndOfRecord byte = 0xFF

// MaxStringLen is the longest string that fits the u16 length prefix.
// Longer strings are truncated.
const MaxStringLen = math.MaxUint16

// Buffer accumulates little-endian fixed-width values for a poll frame.
// The zero value is ready to use.
type Buffer struct {
	b []byte
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

func (w *Buffer) Bytes() []byte { return w.b }
func (w *Buffer) Len() int      { return len(w.b) }
func (w *Buffer) Reset()        { w.b = w.b[:0] }

// Truncate drops everything written after offset n.
func (w *Buffer) Truncate(n int) {
	if n >= 0 && n < len(w.b) {
		w.b = w.b[:n]
	}
}

// Tag writes a single field tag byte.
func (w *Buffer) Tag(t uint8) { w.b = append(w.b, t) }

// End writes the record terminator.
func (w *Buffer) End() { w.b = append(w.b, EndOfRecord) }

func (w *Buffer) Bool(v bool) {
	if v {
		w.b = append(w.b, 1)
		return
	}
	w.b = append(w.b, 0)
}

func (w *Buffer) Uint8(v uint8) { w.b = append(w.b, v) }

func (w *Buffer) Uint16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }

func (w *Buffer) Uint32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *Buffer) Uint64(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }

func (w *Buffer) Float64(v float64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, math.Float64bits(v))
}

// String writes a u16 length prefix followed by the raw bytes.
func (w *Buffer) String(s string) {
	if len(s) > MaxStringLen {
		s = s[:MaxStringLen]
	}
	w.Uint16(uint16(len(s)))
	w.b = append(w.b, s...)
}
