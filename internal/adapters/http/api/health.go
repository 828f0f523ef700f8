package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/padmap/pkg/metrics"
)

// ActiveProfile reports the active profile name.
type ActiveProfile interface {
	ActiveName() (name, activation string)
}

type healthResponse struct {
	Status        string `json:"status"`
	ActiveProfile string `json:"active_profile,omitempty"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	active ActiveProfile
}

// NewHealthHandler creates a new health handler. active may be nil.
func NewHealthHandler(active ActiveProfile) *HealthHandler {
	return &HealthHandler{active: active}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.active != nil {
		resp.ActiveProfile, _ = h.active.ActiveName()
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the service's Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
