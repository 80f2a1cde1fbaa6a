/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache activity per entity type on a private registry.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the cache counters and registers them on a fresh
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitymap",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of selects served from the cache",
			},
			[]string{"entity_type"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitymap",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cacheable selects read from storage",
			},
			[]string{"entity_type"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitymap",
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Total number of inheritance family invalidations",
			},
			[]string{"entity_type"},
		),
	}
	registry.MustRegister(m.hits, m.misses, m.invalidations)
	return m
}

// Registry returns the registry holding the cache counters, for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordHit(entityType string) {
	m.hits.WithLabelValues(entityType).Inc()
}

func (m *Metrics) recordMiss(entityType string) {
	m.misses.WithLabelValues(entityType).Inc()
}

func (m *Metrics) recordInvalidation(entityType string) {
	m.invalidations.WithLabelValues(entityType).Inc()
}
