// Package telemetry exposes the engine's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the pipeline reports into.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	Rejections     *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	CandidateCount prometheus.Gauge
	ShortlistSize  prometheus.Gauge
	FallbacksTotal prometheus.Counter
	ActiveRuns     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_runs_total",
				Help: "Total discovery runs by final status",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ignite_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_rejections_total",
				Help: "Symbols and fields rejected, by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_provider_errors_total",
				Help: "Provider adapter fetch failures by adapter",
			},
			[]string{"provider"},
		),
		CandidateCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ignite_candidates",
				Help: "Composite candidates published by the last run",
			},
		),
		ShortlistSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ignite_explosive_shortlist",
				Help: "Explosive shortlist size from the last run",
			},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ignite_elastic_fallbacks_total",
				Help: "Runs where the explosive floor fallback engaged",
			},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ignite_active_runs",
				Help: "Currently executing discovery runs",
			},
		),
	}

	m.Registry.MustRegister(
		m.RunsTotal, m.StageDuration, m.Rejections, m.ProviderErrors,
		m.CandidateCount, m.ShortlistSize, m.FallbacksTotal, m.ActiveRuns,
	)
	return m
}
