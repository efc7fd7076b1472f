// Package health implements the per-provider health score: a 0-100 gauge
// derived from a rolling count of consecutive successes/failures, with a
// slow idle-drift recovery and an emergency-recovery escape hatch.
package health

import (
	"sync"
	"time"
)

const (
	// maxScore is the ceiling (and starting value) for a healthy provider.
	maxScore = 100

	// healthyThreshold is the score above which a provider is considered
	// usable by the selector's first pass.
	healthyThreshold = 20

	// idleDriftAfter is how long a provider may go silent before Score
	// starts nudging it back up, on the assumption that an untested
	// provider deserves another chance.
	idleDriftAfter = 300 * time.Second

	// idleDriftAmount is added once per Score() call once idleDriftAfter
	// has elapsed since the last observation.
	idleDriftAmount = 5

	// emergencyRecoveryScore is the floor an emergency-mode success jumps a
	// fully-down (score 0) provider to.
	emergencyRecoveryScore = 10
)

// Tracker holds the mutable health state for one provider. Zero value is
// not usable; construct with New.
type Tracker struct {
	mu sync.Mutex

	score              int
	consecutiveSuccess int
	consecutiveFailure int
	lastObserved       time.Time

	// now is overridable in tests.
	now func() time.Time
}

// New returns a Tracker starting at a perfect score, as spec.md §4.2
// requires ("score starts at 100").
func New() *Tracker {
	return &Tracker{
		score: maxScore,
		now:   time.Now,
	}
}

// RecordSuccess resets the failure streak, grows the success streak, and
// adds recovery credit scaled to how many consecutive failures preceded it
// (a provider that just came back from a long outage should heal faster
// than one that only blipped once).
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	priorFailures := t.consecutiveFailure
	t.consecutiveFailure = 0
	t.consecutiveSuccess++
	t.lastObserved = t.now()

	if t.score < maxScore {
		t.score += recoveryFor(priorFailures, t.consecutiveSuccess)
		if t.score > maxScore {
			t.score = maxScore
		}
	}
}

// RecordFailure resets the success streak, grows the failure streak, and
// subtracts a penalty scaled to the new failure streak length.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.consecutiveSuccess = 0
	t.consecutiveFailure++
	t.lastObserved = t.now()

	penalty := penaltyFor(t.consecutiveFailure)
	if penalty >= t.score {
		t.score = 0
	} else {
		t.score -= penalty
	}
}

// Score returns the current health score, applying idle drift first if the
// provider has been silent for longer than idleDriftAfter.
func (t *Tracker) Score() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyIdleDriftLocked()
	return t.score
}

// Healthy reports whether the provider currently clears the first-pass
// selection bar.
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyIdleDriftLocked()
	return t.score > healthyThreshold
}

// Down reports whether the provider has bottomed out entirely.
func (t *Tracker) Down() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyIdleDriftLocked()
	return t.score == 0
}

// ConsecutiveFailures returns the current failure streak length.
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveFailure
}

// EmergencyRecovery is called when a provider that was fully down answers a
// request successfully during emergency-mode dispatch: it jumps the score
// to emergencyRecoveryScore and clears the failure streak so the next
// ordinary RecordSuccess isn't computing recovery off a stale streak.
func (t *Tracker) EmergencyRecovery() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.score == 0 {
		t.score = emergencyRecoveryScore
	}
	t.consecutiveFailure = 0
	t.lastObserved = t.now()
}

// applyIdleDriftLocked must be called with t.mu held.
func (t *Tracker) applyIdleDriftLocked() {
	if t.lastObserved.IsZero() {
		return
	}
	if t.now().Sub(t.lastObserved) <= idleDriftAfter {
		return
	}
	t.score += idleDriftAmount
	if t.score > maxScore {
		t.score = maxScore
	}
	t.lastObserved = t.now()
}

// recoveryFor returns the score credit for a success, scaled to how many
// consecutive failures immediately preceded it. When no failure preceded the
// success, credit instead scales with the consecutive-success streak
// (min(3*s, 15)), so a provider that is simply humming along climbs back to
// 100 gradually rather than instantly.
func recoveryFor(priorFailures, successStreak int) int {
	switch {
	case priorFailures == 0:
		credit := 3 * successStreak
		if credit > 15 {
			return 15
		}
		return credit
	case priorFailures <= 2:
		return 10
	case priorFailures <= 4:
		return 15
	case priorFailures <= 10:
		return 25
	default:
		return 35
	}
}

// penaltyFor returns the score penalty for a failure, scaled to the new
// consecutive-failure streak length (including the failure just recorded).
func penaltyFor(streak int) int {
	switch {
	case streak == 1:
		return 5
	case streak == 2:
		return 10
	case streak == 3:
		return 20
	case streak == 4:
		return 35
	case streak <= 10:
		return 50
	default:
		return maxScore
	}
}
