package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initFleetMetrics initializes embedding backfill and graph projection metrics.
func (m *Manager) initFleetMetrics(cfg Config) {
	m.rowsEmbedded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_rows_embedded_total",
			Help: "Total number of rows backfilled with an embedding",
		},
		[]string{"model"},
	)

	m.rowsFlagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_rows_flagged_total",
			Help: "Total number of rows flagged instead of embedded",
		},
		[]string{"reason"},
	)

	m.rowsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_rows_failed_total",
			Help: "Total number of rows that failed after exhausting retries",
		},
	)

	m.embedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_embed_duration_seconds",
			Help:    "Time spent producing one embedding",
			Buckets: cfg.EmbedDurationBuckets,
		},
		[]string{"model"},
	)

	m.graphNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_nodes_projected_total",
			Help: "Total number of memory nodes projected into the graph",
		},
	)

	m.graphEdges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_relationships_projected_total",
			Help: "Total number of relationships projected into the graph",
		},
	)

	m.graphErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_projection_errors_total",
			Help: "Total number of per-row graph projection failures",
		},
	)

	m.registry.MustRegister(m.rowsEmbedded)
	m.registry.MustRegister(m.rowsFlagged)
	m.registry.MustRegister(m.rowsFailed)
	m.registry.MustRegister(m.embedDuration)
	m.registry.MustRegister(m.graphNodes)
	m.registry.MustRegister(m.graphEdges)
	m.registry.MustRegister(m.graphErrors)
}

// RecordEmbedded records a row backfilled with an embedding.
func (m *Manager) RecordEmbedded(model string) {
	if !m.enabled {
		return
	}
	m.rowsEmbedded.WithLabelValues(model).Inc()
}

// RecordEmbedDuration records the time one embedding call took.
func (m *Manager) RecordEmbedDuration(model string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.embedDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordFlagged records a row flagged in metadata instead of embedded.
func (m *Manager) RecordFlagged(reason string) {
	if !m.enabled {
		return
	}
	m.rowsFlagged.WithLabelValues(reason).Inc()
}

// RecordEmbedFailed records a row that failed after exhausting retries.
func (m *Manager) RecordEmbedFailed() {
	if !m.enabled {
		return
	}
	m.rowsFailed.Inc()
}

// RecordGraphNodes records memory nodes projected into the graph.
func (m *Manager) RecordGraphNodes(n int) {
	if !m.enabled {
		return
	}
	m.graphNodes.Add(float64(n))
}

// RecordGraphRelationships records relationships projected into the graph.
func (m *Manager) RecordGraphRelationships(n int) {
	if !m.enabled {
		return
	}
	m.graphEdges.Add(float64(n))
}

// RecordGraphError records a per-row graph projection failure.
func (m *Manager) RecordGraphError() {
	if !m.enabled {
		return
	}
	m.graphErrors.Inc()
}
