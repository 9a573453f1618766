package command

import (
	"strconv"
	"strings"
)

// Table is an ordered Lua table literal. Keys render in slice order so the
// rendered text and the hash are deterministic.
type Table []KV

type KV struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}

func (t Table) With(key string, v any) Table { return append(t, KV{Key: key, Value: v}) }

func (t Table) String() string {
	var b strings.Builder
	writeLua(&b, t)
	return b.String()
}

// List is a Lua sequence.
type List []any

func writeLua(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case string:
		b.WriteString(luaQuote(x))
	case float64:
		b.WriteString(num(x))
	case float32:
		b.WriteString(num(float64(x)))
	case int:
		b.WriteString(strconv.Itoa(x))
	case int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case Table:
		b.WriteByte('{')
		for i, kv := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(kv.Key)
			b.WriteString(" = ")
			writeLua(b, kv.Value)
		}
		b.WriteByte('}')
	case List:
		b.WriteByte('{')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeLua(b, e)
		}
		b.WriteByte('}')
	default:
		b.WriteString("nil")
	}
}

// num formats like a 10-digit precision stream: no exponent for ordinary
// magnitudes, no trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func luaQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				d := strconv.Itoa(int(c))
				b.WriteByte('\\')
				b.WriteString(strings.Repeat("0", 3-len(d)))
				b.WriteString(d)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func args(fn string, vs ...any) string {
	var b strings.Builder
	b.WriteString("Olympus.")
	b.WriteString(fn)
	for _, v := range vs {
		b.WriteString(", ")
		writeLua(&b, v)
	}
	return b.String()
}
