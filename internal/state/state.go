// Package state owns the shared, concurrency-safe proxy state: one set of
// per-provider rate limiters and health trackers, the last-status and
// token-usage maps, the round-robin cursor, and the operator-controlled
// disabled-set. Every field the dispatcher, selector, and TUI touch lives
// here so there are no process-wide singletons.
package state

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mintya/auto-proxy/internal/health"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/ratelimit"
)

// ProxyState is the single shared handle passed to the dispatcher, selector,
// HTTP front, and TUI. All fields are created lazily on first access under
// per-map locks (read-through caches), per spec.md §4.6.
type ProxyState struct {
	logger *slog.Logger

	rateLimit int

	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter

	trackersMu sync.Mutex
	trackers   map[string]*health.Tracker

	statusMu sync.Mutex
	status   map[string]int

	usageMu sync.Mutex
	usage   map[string]int64

	disabledMu sync.Mutex
	disabled   map[string]bool

	cursor atomic.Uint64
}

// New creates an empty ProxyState. rateLimit is the per-provider
// requests-per-minute cap applied to every lazily-created Limiter.
func New(logger *slog.Logger, rateLimit int) *ProxyState {
	return &ProxyState{
		logger:    logger,
		rateLimit: rateLimit,
		limiters:  make(map[string]*ratelimit.Limiter),
		trackers:  make(map[string]*health.Tracker),
		status:    make(map[string]int),
		usage:     make(map[string]int64),
		disabled:  make(map[string]bool),
	}
}

// Limiter returns the rate limiter for name, creating it on first access.
func (s *ProxyState) Limiter(name string) *ratelimit.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	defer s.RecoverPoisoned("limiter")
	l, ok := s.limiters[name]
	if !ok {
		l = ratelimit.New(s.rateLimit)
		s.limiters[name] = l
	}
	return l
}

// Tracker returns the health tracker for name, creating it on first access.
func (s *ProxyState) Tracker(name string) *health.Tracker {
	s.trackersMu.Lock()
	defer s.trackersMu.Unlock()
	defer s.RecoverPoisoned("tracker")
	tr, ok := s.trackers[name]
	if !ok {
		tr = health.New()
		s.trackers[name] = tr
	}
	return tr
}

// LastStatus returns the last recorded HTTP status for name (0 if unknown or
// the last attempt was a network error).
func (s *ProxyState) LastStatus(name string) int {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status[name]
}

// SetLastStatus records the outcome status for the most recent attempt
// against name. A status of 0 denotes a network-level error.
func (s *ProxyState) SetLastStatus(name string, code int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	defer s.RecoverPoisoned("set_last_status")
	s.status[name] = code
}

// TokenUsage returns the cumulative estimated token usage for name.
func (s *ProxyState) TokenUsage(name string) int64 {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	return s.usage[name]
}

// AddTokenUsage accumulates an estimated token count for name.
func (s *ProxyState) AddTokenUsage(name string, tokens int64) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	defer s.RecoverPoisoned("add_token_usage")
	s.usage[name] += tokens
}

// Disabled reports whether the operator has disabled name.
func (s *ProxyState) Disabled(name string) bool {
	s.disabledMu.Lock()
	defer s.disabledMu.Unlock()
	return s.disabled[name]
}

// SetDisabled flips the disabled bit for name. Written by the TUI and the
// admin HTTP toggle endpoint; read by the selector.
func (s *ProxyState) SetDisabled(name string, disabled bool) {
	s.disabledMu.Lock()
	defer s.disabledMu.Unlock()
	defer s.RecoverPoisoned("set_disabled")
	if disabled {
		s.disabled[name] = true
	} else {
		delete(s.disabled, name)
	}
}

// Next atomically advances the round-robin cursor and returns an index in
// [0, n). n must be > 0. Satisfies selector.Cursor.
func (s *ProxyState) Next(n int) int {
	v := s.cursor.Add(1) - 1
	return int(v % uint64(n))
}

// Snapshot captures the observable fields for one provider, matching the
// fields spec.md §6 says the UI collaborator reads.
type Snapshot struct {
	Name            string `json:"name"`
	HealthScore     int    `json:"health_score"`
	CurrentRequests int    `json:"current_requests"`
	RateLimit       int    `json:"rate_limit"`
	CanRequest      bool   `json:"can_request"`
	LastStatusCode  int    `json:"last_status_code"`
	TokenUsage      int64  `json:"token_usage"`
	IsDisabled      bool   `json:"is_disabled"`
}

// SnapshotAll returns one Snapshot per provider, in the given order.
func (s *ProxyState) SnapshotAll(providers []provider.Provider) []Snapshot {
	defer s.RecoverPoisoned("snapshot_all")
	out := make([]Snapshot, 0, len(providers))
	for _, p := range providers {
		limiter := s.Limiter(p.Name)
		tracker := s.Tracker(p.Name)
		out = append(out, Snapshot{
			Name:            p.Name,
			HealthScore:     tracker.Score(),
			CurrentRequests: limiter.Current(),
			RateLimit:       limiter.Limit(),
			CanRequest:      limiter.Admit(),
			LastStatusCode:  s.LastStatus(p.Name),
			TokenUsage:      s.TokenUsage(p.Name),
			IsDisabled:      s.Disabled(p.Name),
		})
	}
	return out
}

// RecoverPoisoned logs a recovery event instead of letting a panic inside a
// state-mutating critical section propagate. Deferred (after the mutex's own
// Unlock defer, so the lock is always released) by every accessor above that
// mutates one of the per-map fields. Go's own mutexes don't poison on panic
// the way the source runtime's did, but the recovery still matters: without
// it, a panic triggered mid-update — by a future change to one of these
// accessors, or to a caller-supplied value — would crash the whole process,
// taking the TUI and every in-flight dispatch down with one bad provider
// name.
func (s *ProxyState) RecoverPoisoned(op string) {
	if r := recover(); r != nil {
		s.logger.Warn("recovered from panic in state update", "op", op, "panic", r)
	}
}
