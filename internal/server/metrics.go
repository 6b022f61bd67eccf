package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "palettron"

// Metrics holds the collectors the server records into.
type Metrics struct {
	// requestsTotal counts handled requests by route pattern and status code.
	requestsTotal *prometheus.CounterVec

	// stageDuration is a histogram of pipeline stage duration in seconds.
	stageDuration *prometheus.HistogramVec

	// paletteColours is the distribution of extracted palette sizes.
	paletteColours prometheus.Histogram

	// jobsActive is the number of images currently being processed.
	jobsActive prometheus.Gauge
}

// NewMetrics creates the server collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Histogram of pipeline stage duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"}, // stage: decode, extract, apply, encode
		),
		paletteColours: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "palette_colours",
				Help:      "Number of colours in extracted palettes",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
			},
		),
		jobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Number of images currently being processed",
			},
		),
	}

	reg.MustRegister(m.requestsTotal, m.stageDuration, m.paletteColours, m.jobsActive)
	return m
}
