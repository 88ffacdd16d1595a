// File: internal/services/metrics.go
package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the diagnosis collectors exposed on /metrics.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Fallbacks *prometheus.CounterVec
	CacheHits prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diagnosis_requests_total",
			Help: "Diagnosis calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diagnosis_duration_seconds",
			Help:    "Wall time of provider diagnosis calls, retries included.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diagnosis_fallbacks_total",
			Help: "Runtime fallbacks away from a failing provider.",
		}, []string{"from"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diagnosis_cache_hits_total",
			Help: "Diagnoses served from the response cache.",
		}),
	}
	reg.MustRegister(m.Requests, m.Duration, m.Fallbacks, m.CacheHits)
	return m
}
