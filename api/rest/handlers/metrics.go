package handlers

import (
	"net/http"

	"hpc-gateway/core/monitoring"
)

// MetricsHandler serves engine metrics in Prometheus text format
type MetricsHandler struct {
	exporter *monitoring.MetricsExporter
}

// NewMetricsHandler creates a metrics handler
func NewMetricsHandler(exporter *monitoring.MetricsExporter) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(h.exporter.GetPrometheusMetrics()))
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
