// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/qbit-exporter/internal/metrics"
)

// gatherErrorLogger routes exposition errors into the zerolog stream so a
// broken gather shows up in the exporter's own logs, not just as a 500 to
// the scraper.
type gatherErrorLogger struct{}

func (gatherErrorLogger) Println(v ...interface{}) {
	log.Error().Msgf("metrics exposition error: %v", v)
}

type MetricsHandler struct {
	handler http.Handler
}

func NewMetricsHandler(manager *metrics.Manager) *MetricsHandler {
	handler := promhttp.HandlerFor(
		manager.GetRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorLog:          gatherErrorLogger{},
		},
	)

	return &MetricsHandler{
		handler: handler,
	}
}

func (h *MetricsHandler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
