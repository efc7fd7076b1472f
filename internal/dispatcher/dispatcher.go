// Package dispatcher orchestrates the normal/emergency failover state
// machine: given a buffered inbound request and the shared proxy state, it
// picks upstreams, forwards the request, and produces the response the
// HTTP front relays verbatim.
package dispatcher

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/selector"
	"github.com/mintya/auto-proxy/internal/state"
	"github.com/mintya/auto-proxy/internal/upstream"
)

// Result is what a dispatch attempt produces for the HTTP front to relay.
// Exactly one of Response or (StatusCode, RetryAfter, Body) is meaningful.
type Result struct {
	Response   *http.Response // non-nil on success: relay verbatim
	StatusCode int            // used only when Response is nil
	RetryAfter int            // seconds; 0 means no Retry-After header
	Body       string
	Provider   string    // name of the provider that produced Response, if any
	Attempts   []Attempt // every provider tried this dispatch, in order, win or lose
}

// Attempt records one provider's outcome within a single Dispatch call, so
// callers that observe per-provider metrics aren't limited to only the
// terminal winner.
type Attempt struct {
	Provider string
	Outcome  string // "success" or "failure"
}

// Dispatcher ties a Client to the shared state and logs one event per
// attempt, mirroring the forward/outcome logging pairs the chain failover
// loop this package is modeled on already uses.
type Dispatcher struct {
	client *upstream.Client
	state  *state.ProxyState
	sink   *obs.Sink
	audit  *security.AuditLogger
}

// New builds a Dispatcher. Forwarding logged through sink so every
// per-attempt event also reaches the ring buffer the TUI and /ws/events
// read from, not just stdout.
func New(client *upstream.Client, st *state.ProxyState, sink *obs.Sink) *Dispatcher {
	return &Dispatcher{client: client, state: st, sink: sink}
}

// SetAuditLogger attaches an audit trail: every rate-limit rejection a
// provider hits is recorded as an EventRateLimit entry alongside the
// ordinary slog warning, so an operator reviewing the JSONL audit file can
// tell rate-limit exhaustion apart from upstream errors without grepping
// free-text messages.
func (d *Dispatcher) SetAuditLogger(a *security.AuditLogger) {
	d.audit = a
}

// Dispatch runs the Start → Normal|Emergency → Fail|Return state machine
// described in spec.md §4.4.
func (d *Dispatcher) Dispatch(ctx context.Context, providers []provider.Provider, req upstream.Request) Result {
	n := len(providers)
	if n == 0 {
		return Result{StatusCode: http.StatusServiceUnavailable, Body: "No providers configured"}
	}

	allDisabled := true
	allDown := true
	anyHealthy := false
	for _, p := range providers {
		if !d.state.Disabled(p.Name) {
			allDisabled = false
		}
		tr := d.state.Tracker(p.Name)
		if !tr.Down() {
			allDown = false
		}
		if tr.Healthy() {
			anyHealthy = true
		}
	}

	if allDisabled {
		return Result{StatusCode: http.StatusServiceUnavailable, Body: "All providers are disabled by user configuration"}
	}

	if allDown {
		for _, p := range providers {
			d.state.Tracker(p.Name).EmergencyRecovery()
		}
		anyHealthy = false
	}

	if !anyHealthy {
		return d.emergency(ctx, providers, req)
	}
	return d.normal(ctx, providers, req)
}

// normal loops up to n times selecting round-robin among non-disabled
// providers, forwarding to the winner, and on any non-2xx or error
// recording failure and continuing to the next selection.
func (d *Dispatcher) normal(ctx context.Context, providers []provider.Provider, req upstream.Request) Result {
	n := len(providers)
	var attempts []Attempt
	for attempt := 0; attempt < n; attempt++ {
		idx := d.selectIndex(providers, selector.RoundRobin)
		if idx < 0 {
			break
		}
		p := providers[idx]

		d.sink.Info("forward", "method", req.Method, "uri", req.Path, "provider", p.Name)
		resp, err := d.client.Forward(ctx, p, d.state.Limiter(p.Name), req)
		if err != nil {
			d.recordFailure(p, 0, err)
			attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "failure"})
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.recordSuccess(p, resp, req)
			attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "success"})
			return Result{Response: resp, Provider: p.Name, Attempts: attempts}
		}

		drainAndClose(resp)
		d.recordFailure(p, resp.StatusCode, nil)
		attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "failure"})
	}

	return Result{
		StatusCode: http.StatusServiceUnavailable,
		RetryAfter: 30,
		Body:       "Service temporarily unavailable, all providers failed",
		Attempts:   attempts,
	}
}

// emergency iterates providers in config order, skipping disabled ones,
// attempting each exactly once.
func (d *Dispatcher) emergency(ctx context.Context, providers []provider.Provider, req upstream.Request) Result {
	var attempts []Attempt
	for _, p := range providers {
		if d.state.Disabled(p.Name) {
			continue
		}

		d.sink.Warning("forward (emergency mode)", "method", req.Method, "uri", req.Path, "provider", p.Name)
		resp, err := d.client.Forward(ctx, p, d.state.Limiter(p.Name), req)
		if err != nil {
			d.recordFailure(p, 0, err)
			attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "failure"})
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.state.Tracker(p.Name).EmergencyRecovery()
			d.recordSuccess(p, resp, req)
			attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "success"})
			return Result{Response: resp, Provider: p.Name, Attempts: attempts}
		}

		drainAndClose(resp)
		d.recordFailure(p, resp.StatusCode, nil)
		attempts = append(attempts, Attempt{Provider: p.Name, Outcome: "failure"})
	}

	return Result{
		StatusCode: http.StatusServiceUnavailable,
		RetryAfter: 120,
		Body:       "Service unavailable, all providers are down",
		Attempts:   attempts,
	}
}

func (d *Dispatcher) selectIndex(providers []provider.Provider, mode selector.Mode) int {
	candidates := make([]selector.Candidate, len(providers))
	for i, p := range providers {
		candidates[i] = selector.Candidate{
			Index:    i,
			Disabled: d.state.Disabled(p.Name),
			Limiter:  d.state.Limiter(p.Name),
			Health:   d.state.Tracker(p.Name),
		}
	}
	return selector.Select(candidates, mode, d.state)
}

func (d *Dispatcher) recordSuccess(p provider.Provider, resp *http.Response, req upstream.Request) {
	d.state.Tracker(p.Name).RecordSuccess()
	d.state.SetLastStatus(p.Name, resp.StatusCode)
	d.state.AddTokenUsage(p.Name, estimateTokens(req.Body))
	d.sink.Success("success", "provider", p.Name, "status", resp.StatusCode)
}

func (d *Dispatcher) recordFailure(p provider.Provider, status int, err error) {
	d.state.Tracker(p.Name).RecordFailure()
	d.state.SetLastStatus(p.Name, status)
	if err != nil {
		d.sink.Warning("network error", "provider", p.Name, "error", err)
		if d.audit != nil && errors.Is(err, upstream.ErrRateLimited) {
			d.audit.Log(security.AuditEvent{
				Type:   security.EventRateLimit,
				Detail: "provider rejected for exceeding its per-minute request budget",
				Metadata: map[string]string{
					"provider": p.Name,
				},
			})
		}
	} else {
		d.sink.Warning("upstream error", "provider", p.Name, "status", status)
	}
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// estimateTokens is a rough, JSON-aware heuristic: roughly 4 bytes per
// token for plain text, ported from original_source/src/token.rs's
// fallback estimator. It is only ever used for the observability counter,
// never for billing.
func estimateTokens(body []byte) int64 {
	if len(body) == 0 {
		return 0
	}
	return int64(len(body)) / 4
}
