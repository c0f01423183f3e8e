// Package metrics holds the Prometheus instruments of the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "news"

type Metrics struct {
	SweepsTotal          *prometheus.CounterVec
	SweepDurationSeconds prometheus.Histogram

	FeedFetchesTotal         *prometheus.CounterVec
	FeedFetchDurationSeconds *prometheus.HistogramVec

	ArticlesTotal        *prometheus.CounterVec
	ArticlesEvictedTotal prometheus.Counter
}

// New registers the instruments on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		SweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Sweeps started by the scheduler, by result",
			},
			[]string{"result"},
		),
		SweepDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of a full ingest and retention sweep",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		FeedFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetches_total",
				Help:      "Feed fetches by category and result",
			},
			[]string{"category", "result"},
		),
		FeedFetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_fetch_duration_seconds",
				Help:      "Time spent fetching and processing one feed",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"category"},
		),
		ArticlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_total",
				Help:      "Candidates seen by the persistence gate, by outcome",
			},
			[]string{"outcome"},
		),
		ArticlesEvictedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_evicted_total",
				Help:      "Articles removed by the retention sweeper",
			},
		),
	}
}

// NewUnregistered returns instruments that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
