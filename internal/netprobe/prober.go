// Package netprobe implements a best-effort network-reachability check,
// ported from original_source/src/network.rs: DNS resolution followed by a
// race among a handful of well-known HTTP probe endpoints. It is purely
// observational — the dispatcher and selector never consult it, per
// spec.md §1's "external collaborator" framing.
package netprobe

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mintya/auto-proxy/internal/obs"
)

// probeURLs mirrors the original's concurrent-race probe set.
var probeURLs = []string{
	"https://httpbin.org/ip",
	"https://api.ipify.org?format=json",
	"https://ifconfig.me/ip",
}

// probeTimeout matches spec.md §5's "default 3 s for connectivity probes".
const probeTimeout = 3 * time.Second

// Status is the outcome of one probe cycle.
type Status struct {
	Online     bool
	DNSWorking bool
	LatencyMS  int64
}

// Prober implements cron.Job, running a probe cycle on each tick and
// publishing the result to the observability sink.
type Prober struct {
	sink   *obs.Sink
	client *http.Client

	mu   sync.RWMutex
	last Status
}

// New builds a Prober that logs through sink.
func New(sink *obs.Sink) *Prober {
	return &Prober{
		sink:   sink,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name implements cron.Job.
func (p *Prober) Name() string { return "netprobe" }

// Schedule implements cron.Job: every 30s, per SPEC_FULL.md §4.13.
func (p *Prober) Schedule() string { return "@every 30s" }

// Run implements cron.Job.
func (p *Prober) Run(ctx context.Context) error {
	status := p.detect(ctx)

	p.mu.Lock()
	p.last = status
	p.mu.Unlock()

	if status.Online {
		p.sink.Debug("network probe: online", "latency_ms", status.LatencyMS, "dns", status.DNSWorking)
	} else {
		p.sink.Warning("network probe: offline", "dns", status.DNSWorking)
	}
	return nil
}

// Last returns the most recent probe result, for the TUI header.
func (p *Prober) Last() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// detect runs one DNS check followed by a race across probeURLs, returning
// as soon as the first succeeds (or all fail).
func (p *Prober) detect(ctx context.Context) Status {
	var status Status

	resolver := net.Resolver{}
	dnsCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := resolver.LookupHost(dnsCtx, "dns.google"); err == nil {
		status.DNSWorking = true
	} else {
		return status
	}

	type probeResult struct {
		ok      bool
		latency time.Duration
	}
	results := make(chan probeResult, len(probeURLs))
	start := time.Now()

	var wg sync.WaitGroup
	for _, url := range probeURLs {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
			if err != nil {
				results <- probeResult{}
				return
			}
			resp, err := p.client.Do(req)
			if err != nil {
				results <- probeResult{}
				return
			}
			resp.Body.Close()
			results <- probeResult{ok: true, latency: time.Since(start)}
		}(url)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.ok {
			status.Online = true
			status.LatencyMS = r.latency.Milliseconds()
			break
		}
	}

	return status
}
