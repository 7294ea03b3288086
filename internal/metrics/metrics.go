package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for GenerationsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeStopped   = "stopped"
)

var (
	StreamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flow_streams_active",
			Help: "Number of stream handles that have not reached a terminal event.",
		},
		[]string{"backend"},
	)

	StreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_stream_events_total",
			Help: "Events appended to stream logs, by event type.",
		},
		[]string{"type"},
	)

	StreamAttaches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_stream_attaches_total",
			Help: "Subscriptions opened against the stream registry.",
		},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_generations_total",
			Help: "Finished generations, by outcome.",
		},
		[]string{"outcome"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flow_generation_duration_seconds",
			Help:    "Wall time from worker start to final upsert.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	SnapshotWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_snapshot_writes_total",
			Help: "Periodic in-flight content snapshots written to the message store.",
		},
	)

	ReapedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_reaped_messages_total",
			Help: "Streaming messages marked as error by the stale stream reaper.",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_rate_limited_total",
			Help: "Chat submissions rejected by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StreamsActive,
		StreamEvents,
		StreamAttaches,
		GenerationsTotal,
		GenerationDuration,
		SnapshotWrites,
		ReapedMessages,
		RateLimited,
	)
}
