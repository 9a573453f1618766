package encoding

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBuffer_FixedWidthLayout(t *testing.T) {
	var w Buffer
	w.Uint32(7)
	w.Tag(2)
	w.Bool(true)
	w.Tag(14)
	w.Float64(1.5)
	w.End()

	want := []byte{
		7, 0, 0, 0, // id
		2, 1, // alive
		14, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F, // 1.5
		EndOfRecord,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("layout mismatch:\n got %v\nwant %v", w.Bytes(), want)
	}
}

func TestBuffer_StringIsLengthPrefixed(t *testing.T) {
	var w Buffer
	w.String("F-16C")
	if w.Len() != 2+5 {
		t.Fatalf("len=%d want 7", w.Len())
	}
	r := NewReader(w.Bytes())
	s, err := r.String()
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if s != "F-16C" || r.Remaining() != 0 {
		t.Fatalf("got %q remaining=%d", s, r.Remaining())
	}
}

func TestBuffer_TruncatesOversizedStrings(t *testing.T) {
	var w Buffer
	w.String(strings.Repeat("x", MaxStringLen+10))
	s, err := NewReader(w.Bytes()).String()
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if len(s) != MaxStringLen {
		t.Fatalf("len=%d want %d", len(s), MaxStringLen)
	}
}

func TestReader_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Uint64(); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	// A failed read does not consume input.
	if r.Remaining() != 3 {
		t.Fatalf("remaining=%d want 3", r.Remaining())
	}
}
