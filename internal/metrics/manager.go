// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/qbit-exporter/internal/collector"
)

type Manager struct {
	registry          *prometheus.Registry
	exporterCollector *ExporterCollector
}

func NewManager(cache *collector.Cache, namespace, torrentLabel string) *Manager {
	registry := prometheus.NewRegistry()

	exporterCollector := NewExporterCollector(cache, namespace, torrentLabel)
	registry.MustRegister(exporterCollector)

	log.Info().
		Str("namespace", namespace).
		Str("torrentLabel", torrentLabel).
		Msg("Metrics manager initialized with exporter collector")

	return &Manager{
		registry:          registry,
		exporterCollector: exporterCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
