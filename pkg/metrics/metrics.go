// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionRecordsTotal tracks records processed by resolution passes,
	// by source kind and outcome
	ResolutionRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "records_total",
			Help:      "Total number of raw records processed by resolution passes",
		},
		[]string{"source_kind", "outcome"},
	)

	// ResolutionPassDuration tracks resolution pass duration in seconds
	ResolutionPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "pass_duration_seconds",
			Help:      "Duration of resolution passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// OpenCases tracks ambiguous cases awaiting manual review
	OpenCases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "cases",
			Name:      "open",
			Help:      "Number of ambiguous cases awaiting manual review",
		},
	)

	// KafkaMessagesConsumed tracks snapshot messages consumed, by status
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of snapshot messages consumed from Kafka",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks event messages published, by status
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of event messages published to Kafka",
		},
		[]string{"status"},
	)
)

// RecordOutcome records the outcome of one raw record in a resolution pass
func RecordOutcome(sourceKind, outcome string) {
	ResolutionRecordsTotal.WithLabelValues(sourceKind, outcome).Inc()
}

// ObservePassDuration records the duration of a completed resolution pass
func ObservePassDuration(d time.Duration) {
	ResolutionPassDuration.Observe(d.Seconds())
}

// SetOpenCases sets the current size of the manual review queue
func SetOpenCases(n int) {
	OpenCases.Set(float64(n))
}

// RecordKafkaConsume records a consumed snapshot message
func RecordKafkaConsume(status string) {
	KafkaMessagesConsumed.WithLabelValues(status).Inc()
}

// RecordKafkaPublish records a published event message
func RecordKafkaPublish(status string) {
	KafkaMessagesPublished.WithLabelValues(status).Inc()
}
