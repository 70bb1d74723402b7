// Package logring keeps the most recent structured log records in a bounded
// in-memory ring for the status and monitor surfaces. Appends never fail into
// the caller; when the ring is full the oldest record is dropped.
package logring

import (
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the ring when no capacity is configured.
const DefaultCapacity = 2000

// Record is one captured log event.
type Record struct {
	Time     time.Time
	Level    string
	Logger   string // the component attribute, "" when unset
	Message  string
	Function string
	File     string
	Line     int
	Attrs    map[string]string
}

// Ring is a thread-safe bounded deque of Records.
type Ring struct {
	mu    sync.RWMutex
	buf   []Record
	start int // index of the oldest record
	size  int
}

// New creates a Ring with the given capacity (DefaultCapacity if <= 0).
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = rec
		r.size++
		return
	}
	r.buf[r.start] = rec
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of records held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Recent returns up to limit records, newest first.
func (r *Ring) Recent(limit int) []Record {
	return r.filter(limit, func(Record) bool { return true })
}

// ByLevel returns up to limit records with the given level, newest first.
func (r *Ring) ByLevel(level string, limit int) []Record {
	want := strings.ToUpper(level)
	return r.filter(limit, func(rec Record) bool {
		return strings.ToUpper(rec.Level) == want
	})
}

// ByLogger returns up to limit records from the named logger, newest first.
func (r *Ring) ByLogger(name string, limit int) []Record {
	return r.filter(limit, func(rec Record) bool {
		return rec.Logger == name
	})
}

// filter walks newest to oldest collecting matches.
func (r *Ring) filter(limit int, keep func(Record) bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]Record, 0, limit)
	for i := r.size - 1; i >= 0 && len(out) < limit; i-- {
		rec := r.buf[(r.start+i)%len(r.buf)]
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}
