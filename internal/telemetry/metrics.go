package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SourceRecords counts candidate records produced by the source parsers
	SourceRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "certmap",
			Name:      "source_records_total",
			Help:      "Total number of candidate records parsed from source listings",
		},
		[]string{"source"},
	)

	// SourceRowsSkipped counts rows dropped by the parsers (malformed, duplicate, orphaned)
	SourceRowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "certmap",
			Name:      "source_rows_skipped_total",
			Help:      "Total number of source rows skipped",
		},
		[]string{"source", "reason"},
	)

	// MergeRecords counts merge outcomes
	MergeRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "certmap",
			Name:      "merge_records_total",
			Help:      "Total number of candidate records merged, by result",
		},
		[]string{"result"},
	)

	// Documents counts per-document pipeline outcomes
	Documents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "certmap",
			Name:      "documents_total",
			Help:      "Total number of document operations, by stage and outcome",
		},
		[]string{"stage", "document", "outcome"},
	)

	// References counts accepted and rejected reference candidates
	References = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "certmap",
			Name:      "references_total",
			Help:      "Total number of reference candidates, by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration observes how long each pipeline stage takes
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "certmap",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"stage"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(SourceRecords)
		prometheus.DefaultRegisterer.Register(SourceRowsSkipped)
		prometheus.DefaultRegisterer.Register(MergeRecords)
		prometheus.DefaultRegisterer.Register(Documents)
		prometheus.DefaultRegisterer.Register(References)
		prometheus.DefaultRegisterer.Register(StageDuration)
	})
}
