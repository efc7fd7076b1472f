// Package gateway is the HTTP front: it accepts inbound connections,
// buffers bodies, drives the dispatcher, and exposes the operator-facing
// JSON/WebSocket/Prometheus surface alongside the catch-all proxy route.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mintya/auto-proxy/internal/config"
	"github.com/mintya/auto-proxy/internal/dispatcher"
	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/state"
	"github.com/mintya/auto-proxy/internal/upstream"
)

// Server wires the chi router, dispatcher, and shared state into a single
// http.Handler.
type Server struct {
	router     chi.Router
	dispatcher *dispatcher.Dispatcher
	state      *state.ProxyState
	providers  []provider.Provider
	sink       *obs.Sink
	metrics    *Metrics
	logger     *slog.Logger
	audit      *security.AuditLogger

	// promotePreferred and configPath gate the optional preferred-provider
	// write-back (SPEC_FULL.md §9, gated behind --promote-preferred).
	promotePreferred bool
	configPath       string
}

// New builds a Server. providers is the immutable, already-validated list
// loaded at startup (spec.md §9: "no back-references from provider records
// to state").
func New(d *dispatcher.Dispatcher, st *state.ProxyState, providers []provider.Provider, sink *obs.Sink, logger *slog.Logger) *Server {
	s := &Server{
		dispatcher: d,
		state:      st,
		providers:  providers,
		sink:       sink,
		metrics:    NewMetrics(),
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/api/providers", s.handleListProviders)
	r.Post("/api/providers/{name}/toggle", s.handleToggleProvider)
	r.Get("/ws/events", s.handleWebSocketEvents)
	r.NotFound(s.handleProxy) // catch-all: anything else is a proxied request

	s.router = r
	return s
}

// SetAuditLogger attaches an audit trail for operator-driven admin actions
// (currently: provider enable/disable toggles).
func (s *Server) SetAuditLogger(a *security.AuditLogger) {
	s.audit = a
}

// EnablePromotePreferred turns on the optional write-back: whenever a
// non-preferred provider wins a dispatch, the config file at path is
// rewritten in a detached goroutine to mark it preferred.
func (s *Server) EnablePromotePreferred(path string) {
	s.promotePreferred = true
	s.configPath = path
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleProxy is the core request path: buffer the inbound body fully
// (spec.md §4.7 — it may be replayed across multiple upstream attempts),
// dispatch, and relay the result verbatim.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := upstream.ReadBody(r.Body)
	if err != nil {
		s.sink.Warning("inbound body read failed", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	req := upstream.Request{
		Method: r.Method,
		Path:   r.URL.RequestURI(),
		Header: r.Header.Clone(),
		Body:   body,
	}

	result := s.dispatcher.Dispatch(r.Context(), s.providers, req)
	s.metrics.ObserveDispatch(time.Since(start))
	for _, a := range result.Attempts {
		s.metrics.ObserveOutcome(a.Provider, a.Outcome)
	}
	if result.Provider != "" && s.promotePreferred {
		s.maybePromote(result.Provider)
	}
	relay(w, result)
}

// maybePromote schedules a config write-back when a non-preferred provider
// just won a dispatch. It never blocks the response (spec.md §5).
func (s *Server) maybePromote(name string) {
	for _, p := range s.providers {
		if p.Name == name && p.Preferred {
			return
		}
	}
	go config.PromotePreferred(s.logger, s.configPath, s.providers, name)
}

// relay writes a dispatch Result to the client, either by streaming the
// upstream response verbatim or by producing one of the proxy's own
// terminal error responses.
func relay(w http.ResponseWriter, result dispatcher.Result) {
	if result.Response != nil {
		defer result.Response.Body.Close()
		for name, values := range result.Response.Header {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(result.Response.StatusCode)
		copyBody(w, result.Response)
		return
	}

	if result.RetryAfter > 0 {
		w.Header().Set("Retry-After", intToString(result.RetryAfter))
	}
	http.Error(w, result.Body, result.StatusCode)
}
