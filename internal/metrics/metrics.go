package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline health counters, mirrored by the pipeline's queryable Stats.
var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "events_ingested_total",
		Help:      "Raw events enqueued, by source connector.",
	}, []string{"source"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "fetch_errors_total",
		Help:      "Source fetch failures, by source connector.",
	}, []string{"source"})

	SinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "sink_errors_total",
		Help:      "Failed sink writes (per sub-batch or batch).",
	})

	ComputeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "compute_fallbacks_total",
		Help:      "Items that received a neutral fallback score.",
	})

	ThrottledRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "throttled_runs_total",
		Help:      "Source task runs skipped because quota usage crossed the limit.",
	}, []string{"source"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavewatch",
		Name:      "queue_depth",
		Help:      "Raw events currently buffered in the ingestion queue.",
	})

	EventsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "events_flushed_total",
		Help:      "Raw events persisted to the sink.",
	})

	BinsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "bins_emitted_total",
		Help:      "Time bins produced by normalization passes.",
	})

	ScoresComputed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "scores_computed_total",
		Help:      "Wave scores computed.",
	})

	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavewatch",
		Name:      "alerts_sent_total",
		Help:      "High scoring trends included in notifications.",
	})
)
