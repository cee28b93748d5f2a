// Package metrics exposes Prometheus collectors for the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smart_todo"

var (
	// FragmentsTotal counts capture fragments.
	// Labels: channel, result (accepted, repeated, ignored)
	FragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "fragments_total",
			Help:      "Total number of capture fragments by result",
		},
		[]string{"channel", "result"},
	)

	// FlushesTotal counts flush requests.
	// Labels: channel, outcome (dispatched, empty, dropped)
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "flushes_total",
			Help:      "Total number of flush requests by outcome",
		},
		[]string{"channel", "outcome"},
	)

	// ActiveSessions tracks open capture sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "active_sessions",
			Help:      "Number of open capture sessions",
		},
	)

	// ProviderCalls counts text-generation calls.
	// Labels: provider, result (success, error)
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "provider_calls_total",
			Help:      "Total number of text-generation calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	// ProviderLatency tracks text-generation call duration.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "provider_latency_seconds",
			Help:      "Duration of text-generation calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CandidatesTotal counts extracted candidates.
	// Labels: result (accepted, below_floor, duplicate, malformed)
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "candidates_total",
			Help:      "Total number of extracted candidates by result",
		},
		[]string{"result"},
	)

	// FallbacksTotal counts calls answered by the secondary provider.
	// Labels: result (success, error)
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fallbacks_total",
			Help:      "Total number of secondary provider attempts by result",
		},
		[]string{"result"},
	)

	// TasksCreated counts persisted tasks.
	// Labels: source
	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created by the pipeline",
		},
		[]string{"source"},
	)

	// BatchItems counts items handled by batch scans.
	// Labels: agent, result (created, skipped, error)
	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_items_total",
			Help:      "Total number of batch items by agent and result",
		},
		[]string{"agent", "result"},
	)

	// RecurrencesTotal counts tasks reactivated by the recurrence scan.
	RecurrencesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurrence",
			Name:      "reactivated_total",
			Help:      "Total number of completed tasks returned to incoming",
		},
	)

	// RecurrenceScanDuration tracks how long a recurrence scan takes.
	RecurrenceScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recurrence",
			Name:      "scan_duration_seconds",
			Help:      "Duration of recurrence scans in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// JobsTotal counts queue jobs handled by the worker.
	// Labels: type, result (completed, delayed, retried, dead_lettered)
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total number of queue jobs by type and result",
		},
		[]string{"type", "result"},
	)

	// DLQPurged counts dead-lettered jobs removed by the garbage collector.
	DLQPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "dlq_purged_total",
			Help:      "Total number of dead-lettered jobs purged after the retention window",
		},
	)
)
