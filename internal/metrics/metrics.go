// Package metrics exposes the scanner's Prometheus instrumentation,
// renamed from the teacher's trading-latency metrics to this pipeline's
// own stages: ingestion, evaluation and emission.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderbookApplyLatency times how long applying one inbound delta or
// snapshot to the cache takes.
var OrderbookApplyLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "arbscan",
		Subsystem: "ingest",
		Name:      "orderbook_apply_latency_ms",
		Help:      "Time to apply one order-book update in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

// ScanTickDuration times an entire scan tick: enumerate + evaluate + emit.
var ScanTickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "arbscan",
		Subsystem: "scanner",
		Name:      "scan_tick_duration_ms",
		Help:      "Wall-clock duration of one scan tick in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
)

// CyclesEvaluatedTotal counts cycles evaluated, partitioned by outcome.
var CyclesEvaluatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "scanner",
		Name:      "cycles_evaluated_total",
		Help:      "Total number of cycles evaluated",
	},
	[]string{"outcome"}, // qualified, rejected
)

// EvaluatorRejectionsTotal counts rejections by reason, for alerting on a
// spike in a specific rejection cause.
var EvaluatorRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "evaluator",
		Name:      "rejections_total",
		Help:      "Total number of cycle rejections by reason",
	},
	[]string{"reason"},
)

// OpportunitiesEmittedTotal counts qualifying records handed to sinks.
var OpportunitiesEmittedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "scanner",
		Name:      "opportunities_emitted_total",
		Help:      "Total number of qualifying opportunities emitted to sinks",
	},
)

// ScanTicksSkippedTotal counts ticks skipped because the previous tick's
// worker pool was still draining (spec.md §5 "skip if busy").
var ScanTicksSkippedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "scanner",
		Name:      "scan_ticks_skipped_total",
		Help:      "Total number of scan ticks skipped because the prior tick was still running",
	},
)

// CacheResyncTotal counts order-book sequence gaps that forced a resync.
var CacheResyncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "ingest",
		Name:      "cache_resync_total",
		Help:      "Total number of order-book resyncs triggered by a sequence gap",
	},
	[]string{"exchange", "symbol"},
)

// CacheQuarantinedTotal counts internal invariant violations that
// permanently quarantined a symbol (crossed book, negative quantity).
var CacheQuarantinedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbscan",
		Subsystem: "ingest",
		Name:      "cache_quarantined_total",
		Help:      "Total number of symbols quarantined by an internal invariant violation",
	},
	[]string{"exchange", "symbol", "reason"},
)
