package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	deps HealthService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthService) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz requests. It answers 503 when a source
// is unreachable.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.deps.Health(r.Context())
	if err != nil {
		writeFailure(w, WrapKind("api.healthz", ErrUnavailable, err))
		return
	}
	status := http.StatusOK
	if !health.SourcesReachable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// HandleMetrics handles GET /metrics requests from the service registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
