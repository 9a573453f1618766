package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrShortBuffer = errors.New("encoding: short buffer")

// Reader is the decoding counterpart of Buffer. It is used by clients
// (cmd/simhost, cmd/admin) and by tests to walk poll frames.
type Reader struct {
	b   []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) Remaining() int { return len(r.b) - r.off }
func (r *Reader) Offset() int    { return r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d at offset %d, have %d", ErrShortBuffer, n, r.off, r.Remaining())
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) Uint8() (uint8, error) {
	p, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

func (r *Reader) Uint16() (uint16, error) {
	p, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (r *Reader) Uint32() (uint32, error) {
	p, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (r *Reader) Uint64() (uint64, error) {
	p, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) String() (string, error) {
	n, err := r.Uint16()
	if err != nil {
		return "", err
	}
	p, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}
