// Package ratelimit implements a lock-free, fixed-capacity sliding window
// counter used to cap outbound requests per upstream provider. One Limiter
// is created per provider, lazily, by internal/state.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// windowSeconds is the sliding window width the limiter enforces. It is
// fixed, not configurable per spec.md §4.1 ("admission requires that the
// slot about to be overwritten is older than 60 s").
const windowSeconds = 60

// Limiter is a ring of up to limit UNIX-second timestamps. Admission on the
// fast path never takes a lock: every field is accessed with atomics.
//
// Invariant: once count reaches limit, every new Record overwrites the slot
// at cursor mod limit; Admit only succeeds for that slot once its previous
// occupant is older than windowSeconds.
type Limiter struct {
	timestamps []atomic.Int64
	cursor     atomic.Uint64
	count      atomic.Int64
	limit      int

	// now is overridable in tests; defaults to wall-clock UNIX seconds.
	now func() int64
}

// New creates a Limiter with the given capacity. limit must be >= 1; the
// caller guarantees this (spec.md §4.1 edge cases).
func New(limit int) *Limiter {
	if limit < 1 {
		panic("ratelimit: limit must be >= 1")
	}
	return &Limiter{
		timestamps: make([]atomic.Int64, limit),
		limit:      limit,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Limit returns the configured capacity.
func (l *Limiter) Limit() int {
	return l.limit
}

// Admit reports whether a new request may be counted right now. It does not
// mutate state — callers that proceed must also call Record.
func (l *Limiter) Admit() bool {
	count := l.count.Load()
	if count < int64(l.limit) {
		return true
	}

	// Every slot is occupied: find the one that would be overwritten next
	// and check it has aged out of the window.
	oldest := l.timestamps[l.oldestIndex()].Load()
	return saturatingSub(l.now(), oldest) >= windowSeconds
}

// Record commits one request, overwriting the oldest slot once the ring is
// full. Cursor advances unconditionally so concurrent Record calls never
// collide on the same slot.
func (l *Limiter) Record() {
	idx := l.cursor.Add(1) - 1
	slot := int(idx % uint64(l.limit))
	l.timestamps[slot].Store(l.now())

	for {
		count := l.count.Load()
		if count >= int64(l.limit) {
			return
		}
		if l.count.CompareAndSwap(count, count+1) {
			return
		}
	}
}

// Current returns the number of timestamps recorded within the last
// windowSeconds seconds.
func (l *Limiter) Current() int {
	count := l.count.Load()
	if count < int64(l.limit) {
		return int(count)
	}

	now := l.now()
	n := 0
	for i := 0; i < l.limit; i++ {
		ts := l.timestamps[i].Load()
		if ts > 0 && saturatingSub(now, ts) < windowSeconds {
			n++
		}
	}
	return n
}

// oldestIndex returns the slot that the next Record call will overwrite,
// i.e. the one written longest ago.
func (l *Limiter) oldestIndex() int {
	idx := l.cursor.Load()
	return int(idx % uint64(l.limit))
}

// saturatingSub computes a-b but never returns negative, tolerating
// system-clock regressions per spec.md §4.1.
func saturatingSub(a, b int64) int64 {
	d := a - b
	if d < 0 {
		return 0
	}
	return d
}
