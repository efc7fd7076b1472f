package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/state"
	"github.com/mintya/auto-proxy/internal/upstream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardSink() *obs.Sink {
	return obs.New(slog.NewTextHandler(io.Discard, nil), security.NewRedactor(), security.NewCredentialStore())
}

func TestDispatch_NoProviders(t *testing.T) {
	t.Parallel()
	st := state.New(discardLogger(), 5)
	d := New(upstream.New(), st, discardSink())

	res := d.Dispatch(context.Background(), nil, upstream.Request{Method: http.MethodGet, Path: "/x"})
	if res.StatusCode != http.StatusServiceUnavailable || res.Body != "No providers configured" {
		t.Fatalf("Dispatch(nil providers) = %+v", res)
	}
}

func TestDispatch_AllDisabled(t *testing.T) {
	t.Parallel()
	st := state.New(discardLogger(), 5)
	providers := []provider.Provider{
		{Name: "a", Token: "t", BaseURL: "http://unused.example.com"},
	}
	st.SetDisabled("a", true)

	d := New(upstream.New(), st, discardSink())
	res := d.Dispatch(context.Background(), providers, upstream.Request{Method: http.MethodGet, Path: "/x"})
	if res.StatusCode != http.StatusServiceUnavailable || res.Body != "All providers are disabled by user configuration" {
		t.Fatalf("Dispatch(all disabled) = %+v", res)
	}
}

func TestDispatch_HappyPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	st := state.New(discardLogger(), 5)
	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: srv.URL}}

	d := New(upstream.New(), st, discardSink())
	res := d.Dispatch(context.Background(), providers, upstream.Request{Method: http.MethodGet, Path: "/v1/messages"})
	if res.Response == nil {
		t.Fatalf("Dispatch() = %+v, want a relayed response", res)
	}
	defer res.Response.Body.Close()
	if res.Response.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.Response.StatusCode)
	}
	if got := st.TokenUsage("a"); got <= 0 {
		t.Errorf("TokenUsage(a) = %d, want > 0", got)
	}
}

func TestDispatch_FailoverOnError(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	st := state.New(discardLogger(), 5)
	providers := []provider.Provider{
		{Name: "a", Token: "t", BaseURL: failing.URL},
		{Name: "b", Token: "t", BaseURL: healthy.URL},
	}

	d := New(upstream.New(), st, discardSink())
	res := d.Dispatch(context.Background(), providers, upstream.Request{Method: http.MethodGet, Path: "/x"})
	if res.Response == nil || res.Response.StatusCode != http.StatusOK {
		t.Fatalf("Dispatch() = %+v, want successful failover to b", res)
	}
	res.Response.Body.Close()

	if st.LastStatus("a") != http.StatusInternalServerError {
		t.Errorf("LastStatus(a) = %d, want 500", st.LastStatus("a"))
	}
	if st.Tracker("a").Score() >= 100 {
		t.Errorf("Tracker(a).Score() = %d, want penalized below 100", st.Tracker("a").Score())
	}
}

func TestDispatch_NormalExhaustionRetryAfter30(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	st := state.New(discardLogger(), 5)
	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: failing.URL}}

	d := New(upstream.New(), st, discardSink())
	res := d.Dispatch(context.Background(), providers, upstream.Request{Method: http.MethodGet, Path: "/x"})
	if res.StatusCode != http.StatusServiceUnavailable || res.RetryAfter != 30 {
		t.Fatalf("Dispatch() = %+v, want 503 Retry-After 30", res)
	}
}

func TestDispatch_EmergencyModeRetryAfter120(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	st := state.New(discardLogger(), 5)
	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: failing.URL}}

	// Force the provider down so Dispatch enters emergency mode directly.
	for i := 0; i < 20; i++ {
		st.Tracker("a").RecordFailure()
	}
	if !st.Tracker("a").Down() {
		t.Fatal("setup: provider not down after repeated failures")
	}

	d := New(upstream.New(), st, discardSink())
	res := d.Dispatch(context.Background(), providers, upstream.Request{Method: http.MethodGet, Path: "/x"})
	if res.StatusCode != http.StatusServiceUnavailable || res.RetryAfter != 120 {
		t.Fatalf("Dispatch() = %+v, want 503 Retry-After 120 (emergency exhaustion)", res)
	}
}
