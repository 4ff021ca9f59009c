package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/statvalue/statvalue-companion/internal/api/response"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/metrics"
	"github.com/statvalue/statvalue-companion/internal/version"
)

// StatsProvider reports backend client statistics.
type StatsProvider interface {
	GetStats() backend.ClientStats
}

// LatencyProvider reports per-endpoint backend latency.
type LatencyProvider interface {
	Latency() map[string]metrics.LatencySummary
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Count() int
}

// SystemHandler handles system status requests.
type SystemHandler struct {
	stats    StatsProvider
	latency  LatencyProvider
	cache    Pinger
	sessions SessionCounter
	started  time.Time
}

// NewSystemHandler creates a new SystemHandler. Any dependency may be nil.
func NewSystemHandler(stats StatsProvider, latency LatencyProvider, cache Pinger, sessions SessionCounter) *SystemHandler {
	return &SystemHandler{
		stats:    stats,
		latency:  latency,
		cache:    cache,
		sessions: sessions,
		started:  time.Now(),
	}
}

// StatusResponse is the system status.
type StatusResponse struct {
	Status   string                            `json:"status"`
	Version  string                            `json:"version"`
	Uptime   string                            `json:"uptime"`
	Sessions int                               `json:"sessions"`
	Cache    string                            `json:"cache"`
	Backend  *backend.ClientStats              `json:"backend,omitempty"`
	Latency  map[string]metrics.LatencySummary `json:"latency,omitempty"`
}

// GetStatus returns the service status. A failing cache degrades the
// status but does not fail the request.
func (h *SystemHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "ok",
		Version: version.GetVersion(),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Cache:   "disabled",
	}

	if h.sessions != nil {
		resp.Sessions = h.sessions.Count()
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		resp.Backend = &stats
	}
	if h.latency != nil {
		resp.Latency = h.latency.Latency()
	}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			resp.Cache = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Cache = "ok"
		}
	}

	response.Success(w, resp)
}
