package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initPipelineMetrics initializes capture and intake pipeline metrics.
func (m *Manager) initPipelineMetrics(cfg Config) {
	m.exchangesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steno_exchanges_total",
			Help: "Total number of exchanges captured from session transcripts",
		},
		[]string{"source"},
	)

	m.recordsEnriched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_enriched_total",
			Help: "Total number of exchange records enriched",
		},
		[]string{"source"},
	)

	m.recordsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_persisted_total",
			Help: "Total number of enriched records persisted to the memory store",
		},
	)

	m.recordsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_failed_total",
			Help: "Total number of records rejected during intake",
		},
		[]string{"reason"},
	)

	m.persistRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_persist_retries_total",
			Help: "Total number of transient-failure retries during persist",
		},
	)

	m.enrichDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_enrich_duration_seconds",
			Help:    "Time spent enriching a single record",
			Buckets: cfg.EnrichDurationBuckets,
		},
	)

	m.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intake_queue_depth",
			Help: "Current number of files waiting in a filesystem queue",
		},
		[]string{"queue"},
	)

	m.supervisorChildren = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "steno_supervisor_children",
			Help: "Current number of stenographer children managed by the supervisor",
		},
	)

	m.registry.MustRegister(m.exchangesEmitted)
	m.registry.MustRegister(m.recordsEnriched)
	m.registry.MustRegister(m.recordsPersisted)
	m.registry.MustRegister(m.recordsFailed)
	m.registry.MustRegister(m.persistRetries)
	m.registry.MustRegister(m.enrichDuration)
	m.registry.MustRegister(m.queueDepth)
	m.registry.MustRegister(m.supervisorChildren)
}

// RecordExchange records an exchange captured from a session transcript.
func (m *Manager) RecordExchange(source string) {
	if !m.enabled {
		return
	}
	m.exchangesEmitted.WithLabelValues(source).Inc()
}

// RecordEnriched records a record passing through the enrichment stage.
func (m *Manager) RecordEnriched(source string) {
	if !m.enabled {
		return
	}
	m.recordsEnriched.WithLabelValues(source).Inc()
}

// RecordEnrichDuration records the time spent enriching one record.
func (m *Manager) RecordEnrichDuration(duration time.Duration) {
	if !m.enabled {
		return
	}
	m.enrichDuration.Observe(duration.Seconds())
}

// RecordPersisted records a record committed to the memory store.
func (m *Manager) RecordPersisted() {
	if !m.enabled {
		return
	}
	m.recordsPersisted.Inc()
}

// RecordFailed records a record rejected during intake.
func (m *Manager) RecordFailed(reason string) {
	if !m.enabled {
		return
	}
	m.recordsFailed.WithLabelValues(reason).Inc()
}

// RecordPersistRetry records a transient-failure retry during persist.
func (m *Manager) RecordPersistRetry() {
	if !m.enabled {
		return
	}
	m.persistRetries.Inc()
}

// SetSupervisorChildren sets the current number of managed children.
func (m *Manager) SetSupervisorChildren(n int) {
	if !m.enabled {
		return
	}
	m.supervisorChildren.Set(float64(n))
}

// SetQueueDepth sets the current depth of a filesystem queue.
func (m *Manager) SetQueueDepth(queue string, depth float64) {
	if !m.enabled {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(depth)
}
