// Package logbuf keeps the most recent server log lines in memory.
package logbuf

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type entry struct {
	seq  uint64
	at   int64
	line string
}

// Ring is an io.Writer holding the last N lines written to it.
type Ring struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []entry
	next    int
	full    bool
	seq     uint64
	partial strings.Builder
}

func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring{now: time.Now, entries: make([]entry, capacity)}
}

// Write splits p into lines. A trailing fragment is held until its newline arrives.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now().UnixMilli()
	rest := string(p)
	for {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			r.partial.WriteString(rest)
			break
		}
		r.partial.WriteString(rest[:i])
		r.push(at, r.partial.String())
		r.partial.Reset()
		rest = rest[i+1:]
	}
	return len(p), nil
}

func (r *Ring) push(at int64, line string) {
	r.seq++
	r.entries[r.next] = entry{seq: r.seq, at: at, line: line}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Since returns the lines logged strictly after t (epoch ms), keyed by
// their sequence number.
func (r *Ring) Since(t int64) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string)
	r.each(func(e entry) {
		if e.at > t {
			out[strconv.FormatUint(e.seq, 10)] = e.line
		}
	})
	return out
}

// Len reports how many lines are held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

func (r *Ring) each(fn func(entry)) {
	if r.full {
		for _, e := range r.entries[r.next:] {
			fn(e)
		}
	}
	for _, e := range r.entries[:r.next] {
		fn(e)
	}
}
