package routes

import (
	"hpc-gateway/api/rest/handlers"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/messaging"
	"hpc-gateway/core/monitoring"
	"hpc-gateway/core/repository"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	r *mux.Router,
	registry *repository.Registry,
	eng *engine.Engine,
	coordinator engine.Coordinator,
	publisher messaging.Publisher,
	exporter *monitoring.MetricsExporter,
) {
	experimentHandler := handlers.NewExperimentHandler(registry, eng, coordinator, publisher)
	metricsHandler := handlers.NewMetricsHandler(exporter)

	api := r.PathPrefix("/v1").Subrouter()

	// Experiment endpoints
	api.HandleFunc("/experiments", experimentHandler.SubmitExperiment).Methods("POST")
	api.HandleFunc("/experiments/{id}", experimentHandler.GetExperiment).Methods("GET")
	api.HandleFunc("/experiments/{id}/launch", experimentHandler.LaunchExperiment).Methods("POST")
	api.HandleFunc("/experiments/{id}/cancel", experimentHandler.CancelExperiment).Methods("POST")

	// Process endpoints
	api.HandleFunc("/processes/{id}", experimentHandler.GetProcess).Methods("GET")

	r.HandleFunc("/metrics", metricsHandler.GetMetrics).Methods("GET")
	r.HandleFunc("/health", handlers.Health).Methods("GET")
}
