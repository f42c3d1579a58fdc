// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TickDuration observes full evaluateTick wall time.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tradepulse",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one full decision tick across all instruments.",
		Buckets:   prometheus.DefBuckets,
	})

	// Decisions counts emitted per-instrument decisions by action.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepulse",
		Name:      "decisions_total",
		Help:      "Per-instrument filtered decisions by action.",
	}, []string{"action"})

	// GateVetoes counts position-gate demotions by cause.
	GateVetoes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepulse",
		Name:      "gate_vetoes_total",
		Help:      "Decisions demoted by the position gate, by cause.",
	}, []string{"cause"})

	// SkippedInstruments counts instruments dropped from a tick.
	SkippedInstruments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepulse",
		Name:      "skipped_instruments_total",
		Help:      "Instrument evaluations skipped, by reason.",
	}, []string{"reason"})

	// TickFailures counts tick-level failures where no aggregate was
	// emitted.
	TickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradepulse",
		Name:      "tick_failures_total",
		Help:      "Ticks that emitted no aggregate decision.",
	})
)
