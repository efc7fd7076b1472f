package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mintya/auto-proxy/internal/dispatcher"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/state"
	"github.com/mintya/auto-proxy/internal/upstream"
	"github.com/mintya/auto-proxy/internal/obs"
)

func testSink() *obs.Sink {
	return obs.New(slog.NewTextHandler(io.Discard, nil), security.NewRedactor(), security.NewCredentialStore())
}

func TestHandleProxy_RelaysUpstreamResponseVerbatim(t *testing.T) {
	t.Parallel()

	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstreamSrv.Close()

	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: upstreamSrv.URL}}
	st := state.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 5)
	d := dispatcher.New(upstream.New(), st, testSink())
	srv := New(d, st, providers, testSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(`{"hi":1}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Fatalf("body = %q, want verbatim upstream body", rec.Body.String())
	}
}

func TestHandleStatus_ReturnsProviderSnapshots(t *testing.T) {
	t.Parallel()

	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: "http://unused.example.com"}}
	st := state.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 5)
	d := dispatcher.New(upstream.New(), st, testSink())
	srv := New(d, st, providers, testSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.ProviderCount != 1 || len(got.Providers) != 1 || got.Providers[0].Name != "a" {
		t.Fatalf("status payload = %+v", got)
	}
}

func TestHandleToggleProvider_FlipsDisabledBit(t *testing.T) {
	t.Parallel()

	providers := []provider.Provider{{Name: "a", Token: "t", BaseURL: "http://unused.example.com"}}
	st := state.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 5)
	d := dispatcher.New(upstream.New(), st, testSink())
	srv := New(d, st, providers, testSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodPost, "/api/providers/a/toggle", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !st.Disabled("a") {
		t.Fatal("provider a not disabled after toggle")
	}
}

func TestHandleToggleProvider_UnknownProviderNotFound(t *testing.T) {
	t.Parallel()

	st := state.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 5)
	d := dispatcher.New(upstream.New(), st, testSink())
	srv := New(d, st, nil, testSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodPost, "/api/providers/ghost/toggle", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	st := state.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 5)
	d := dispatcher.New(upstream.New(), st, testSink())
	srv := New(d, st, nil, testSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
