package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/state"
)

// handleHealth is a liveness probe: if the process can answer, it's up.
// It does not reflect provider health — use /status or /api/providers for
// that.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statusResponse is the /status payload: one summary line plus the
// per-provider snapshot, the same shape /api/providers returns so
// operators can use either endpoint interchangeably.
type statusResponse struct {
	ProviderCount int              `json:"provider_count"`
	Providers     []state.Snapshot `json:"providers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snaps := s.snapshotAndRecordGauges()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		ProviderCount: len(s.providers),
		Providers:     snaps,
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshotAndRecordGauges())
}

// snapshotAndRecordGauges reads the current per-provider snapshot and
// pushes it into the Prometheus gauges, so /metrics reflects the same
// numbers /status and /api/providers just reported.
func (s *Server) snapshotAndRecordGauges() []state.Snapshot {
	snaps := s.state.SnapshotAll(s.providers)
	for _, snap := range snaps {
		s.metrics.SetGauges(snap.Name, snap.HealthScore, snap.CurrentRequests)
	}
	return snaps
}

func (s *Server) handleToggleProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	found := false
	for _, p := range s.providers {
		if p.Name == name {
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	disabled := !s.state.Disabled(name)
	s.state.SetDisabled(name, disabled)
	s.sink.Info("provider toggled", "provider", name, "disabled", disabled)
	if s.audit != nil {
		s.audit.Log(security.AuditEvent{
			Type:   security.EventConfigChange,
			Detail: "provider enabled/disabled via admin API",
			Metadata: map[string]string{
				"provider": name,
				"disabled": boolString(disabled),
			},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"name": name, "disabled": disabled})
}
