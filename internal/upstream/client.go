// Package upstream forwards an inbound request to one configured provider,
// rewriting auth and host headers along the way.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/ratelimit"
)

// ErrRateLimited is returned when the provider's limiter refuses admission.
var ErrRateLimited = errors.New("upstream: rate limit exceeded")

// Client forwards requests to a single provider at a time. One Client is
// shared across all providers; it carries no per-provider state itself.
type Client struct {
	httpClient *http.Client
}

// New builds a Client with a transport that trusts the system root store
// and speaks HTTP/1.1 (HTTP/2 is left to the transport's own negotiation,
// which is acceptable per spec.md §4.5).
func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2: false,
			},
		},
	}
}

// Request is the inbound request data the front buffered before dispatch.
type Request struct {
	Method string
	Path   string // path + query, as received
	Header http.Header
	Body   []byte
}

// Forward sends req to p, performing the admission check against limiter
// defensively (callers are expected to have already checked it via the
// selector, but spec.md §4.5 requires the client to re-check and record on
// its own). Returns ErrRateLimited without making any network call if the
// limiter refuses.
func (c *Client) Forward(ctx context.Context, p provider.Provider, limiter *ratelimit.Limiter, req Request) (*http.Response, error) {
	if !limiter.Admit() {
		return nil, ErrRateLimited
	}

	target := p.BaseURL + req.Path
	outReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("upstream: building request for %s: %w", p.Name, err)
	}

	for name, values := range req.Header {
		if strings.EqualFold(name, "Host") || strings.EqualFold(name, "Authorization") {
			continue
		}
		for _, v := range values {
			outReq.Header.Add(name, v)
		}
	}
	outReq.Header.Set("Authorization", "Bearer "+p.Token)
	outReq.Host = outReq.URL.Host

	limiter.Record()

	resp, err := c.httpClient.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s: %w", p.Name, err)
	}
	return resp, nil
}

// ProbeTimeout is the default timeout used for connectivity probes
// (spec.md §5), not for forwarded requests themselves.
const ProbeTimeout = 3 * time.Second

// ReadBody fully buffers an inbound body so it can be replayed across
// multiple upstream attempts, per spec.md §4.7.
func ReadBody(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("upstream: reading inbound body: %w", err)
	}
	return b, nil
}
