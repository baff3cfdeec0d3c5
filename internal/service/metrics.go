package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts publish outcomes and scan passes.
type Metrics struct {
	PublishSuccess *prometheus.CounterVec
	PublishFailure *prometheus.CounterVec
	ScanRuns       prometheus.Counter
	ScanDuration   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paracket_publish_success_total",
			Help: "Successful platform publications.",
		}, []string{"platform"}),
		PublishFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paracket_publish_failure_total",
			Help: "Failed platform publications.",
		}, []string{"platform", "kind"}),
		ScanRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paracket_scan_runs_total",
			Help: "Completed scan-and-dispatch passes.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paracket_scan_duration_seconds",
			Help:    "Wall time of one scan pass.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	reg.MustRegister(m.PublishSuccess, m.PublishFailure, m.ScanRuns, m.ScanDuration)
	return m
}
