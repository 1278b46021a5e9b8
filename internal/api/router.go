package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autobrr/qbit-exporter/internal/api/handlers"
	apimiddleware "github.com/autobrr/qbit-exporter/internal/api/middleware"
	"github.com/autobrr/qbit-exporter/internal/metrics"
)

// Dependencies holds all the dependencies needed for the HTTP surface
type Dependencies struct {
	MetricsManager *metrics.Manager
}

// NewRouter creates and configures the exporter router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.HTTPLogger)

	metricsHandler := handlers.NewMetricsHandler(deps.MetricsManager)
	r.Get("/metrics", metricsHandler.ServeMetrics)

	// Liveness probes answer independently of upstream health
	healthz := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/", healthz)
	r.Get("/health", healthz)

	return r
}
