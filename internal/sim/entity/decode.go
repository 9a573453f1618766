package entity

import (
	"fmt"

	"simbridge.dev/internal/sim/encoding"
)

// ReadField decodes the value of f as written by WriteField. The result is
// one of bool, uint8, uint32, float64, string, Coords, Offset, TACAN, Radio,
// GeneralSettings or []Coords.
func ReadField(r *encoding.Reader, f Field) (any, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("read field: unknown tag %d", uint8(f))
	}
	switch fieldInfo[f].kind {
	case kindBool:
		return r.Bool()
	case kindUint8:
		return r.Uint8()
	case kindUint32:
		return r.Uint32()
	case kindFloat64:
		return r.Float64()
	case kindString:
		return r.String()
	case kindCoords:
		return readCoords(r)
	case kindOffset:
		c, err := readCoords(r)
		return Offset{X: c.Lat, Y: c.Lng, Z: c.Alt}, err
	case kindTACAN:
		var t TACAN
		var err error
		if t.IsOn, err = r.Bool(); err != nil {
			return nil, err
		}
		if t.Channel, err = r.Uint8(); err != nil {
			return nil, err
		}
		xy, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		t.XY = string(rune(xy))
		if t.Callsign, err = r.String(); err != nil {
			return nil, err
		}
		return t, nil
	case kindRadio:
		var v Radio
		var err error
		if v.Frequency, err = r.Uint32(); err != nil {
			return nil, err
		}
		if v.Callsign, err = r.Uint8(); err != nil {
			return nil, err
		}
		if v.CallsignNumber, err = r.Uint8(); err != nil {
			return nil, err
		}
		return v, nil
	case kindGeneralSettings:
		var g GeneralSettings
		for _, dst := range []*bool{&g.ProhibitJettison, &g.ProhibitAA, &g.ProhibitAG, &g.ProhibitAfterburner, &g.ProhibitAirWpn} {
			v, err := r.Bool()
			if err != nil {
				return nil, err
			}
			*dst = v
		}
		return g, nil
	case kindPath:
		n, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		path := make([]Coords, 0, n)
		for i := 0; i < int(n); i++ {
			c, err := readCoords(r)
			if err != nil {
				return nil, err
			}
			path = append(path, c)
		}
		return path, nil
	}
	return nil, fmt.Errorf("read field %s: no decoder", f)
}

func readCoords(r *encoding.Reader) (Coords, error) {
	var c Coords
	var err error
	if c.Lat, err = r.Float64(); err != nil {
		return c, err
	}
	if c.Lng, err = r.Float64(); err != nil {
		return c, err
	}
	c.Alt, err = r.Float64()
	return c, err
}
