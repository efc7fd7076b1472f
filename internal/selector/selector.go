// Package selector picks which configured upstream provider a dispatch
// attempt should target, given the shared proxy state.
package selector

import (
	"hash/maphash"
	"time"
)

// Mode selects how the first pass's start index is derived. The second
// pass always starts from a randomized index (see Select) regardless of
// Mode, so that once no provider is healthy, concurrent clients spread
// across the remaining rate-admitted candidates instead of piling onto
// whichever one the round-robin cursor happens to be pointing at.
type Mode int

const (
	// RoundRobin advances the shared cursor by one per call.
	RoundRobin Mode = iota
	// Randomized hashes the current instant instead of consulting the
	// cursor, for callers that want the first pass itself randomized too.
	Randomized
)

// Limiter is the subset of ratelimit.Limiter the selector needs.
type Limiter interface {
	Admit() bool
}

// Health is the subset of health.Tracker the selector needs.
type Health interface {
	Healthy() bool
}

// Candidate is one entry the selector chooses among. Index is the position
// in the caller's provider slice, used as the stable identity for ties and
// for mapping back to the chosen provider.
type Candidate struct {
	Index    int
	Disabled bool
	Limiter  Limiter
	Health   Health
}

// cursor abstracts the round-robin counter so the selector doesn't need to
// know about internal/state's concrete type.
type Cursor interface {
	Next(n int) int
}

var hashSeed = maphash.MakeSeed()

// Select runs the two-pass algorithm over candidates and returns the chosen
// index into the slice, or -1 if none qualify in either pass.
func Select(candidates []Candidate, mode Mode, cursor Cursor) int {
	n := len(candidates)
	if n == 0 {
		return -1
	}

	start := startIndex(mode, n, cursor)

	// First pass: not disabled, rate-admitted, and healthy.
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		c := candidates[idx]
		if c.Disabled {
			continue
		}
		if c.Limiter.Admit() && c.Health.Healthy() {
			return idx
		}
	}

	// Second pass: not disabled, rate-admitted only. Restart from a
	// randomized index rather than reusing the first pass's start: every
	// candidate just failed the healthy check together, so re-walking from
	// the same position would send every caller racing for the same
	// fallback slot instead of spreading across whichever providers still
	// have rate-limit budget.
	fallbackStart := randomizedStart(n)
	for i := 0; i < n; i++ {
		idx := (fallbackStart + i) % n
		c := candidates[idx]
		if c.Disabled {
			continue
		}
		if c.Limiter.Admit() {
			return idx
		}
	}

	return -1
}

func startIndex(mode Mode, n int, cursor Cursor) int {
	if mode == RoundRobin {
		return cursor.Next(n)
	}
	return randomizedStart(n)
}

// randomizedStart hashes the current instant and goroutine-local entropy
// source into an index, spreading concurrent callers across upstreams when
// round-robin alone would concentrate them on the same slot.
func randomizedStart(n int) int {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	var buf [8]byte
	nanos := uint64(time.Now().UnixNano())
	for i := range buf {
		buf[i] = byte(nanos >> (8 * i))
	}
	h.Write(buf[:])
	return int(h.Sum64() % uint64(n))
}
