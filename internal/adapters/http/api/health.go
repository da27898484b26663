package api

import (
	"net/http"

	"github.com/okian/botscope/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	source  ReportSource
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(source ReportSource) *HealthHandler {
	return &HealthHandler{
		source:  source,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"players_processed"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Processed: len(h.source.Reports())})
}

// HandleMetrics serves the custom Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
