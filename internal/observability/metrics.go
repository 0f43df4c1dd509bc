// Package observability exposes the service's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	registry *prometheus.Registry

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Grid acquisition metrics
	GridAgeSeconds    *prometheus.GaugeVec
	DownloadsTotal    *prometheus.CounterVec
	DownloadDuration  prometheus.Histogram
	ExtractionPoints  prometheus.Histogram
	IndicatorsEmitted prometheus.Counter
}

// NewCollector creates a new metrics collector. Metrics register against
// the collector's own registry so independent collectors never collide.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query duration in seconds by endpoint",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		GridAgeSeconds: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "grid_age_seconds",
				Help:      "Age of the installed grid snapshot's valid time by product",
			},
			[]string{"product"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grib_downloads_total",
				Help:      "Total GRIB downloads by product and outcome",
			},
			[]string{"product", "outcome"},
		),

		DownloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grib_download_duration_seconds",
				Help:      "GRIB download duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		ExtractionPoints: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_points",
				Help:      "Number of grid cells returned per extraction",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),

		IndicatorsEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storm_indicators_total",
				Help:      "Total storm indicators emitted by hazard evaluation",
			},
		),
	}
}

// Registry exposes the collector's registry for scrape handlers.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordQuery increments the query counter and observes its duration.
func (c *Collector) RecordQuery(endpoint, status string, elapsed time.Duration) {
	c.QueriesTotal.WithLabelValues(endpoint, status).Inc()
	c.QueryDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordDownload increments the download counter for a product.
func (c *Collector) RecordDownload(product, outcome string, elapsed time.Duration) {
	c.DownloadsTotal.WithLabelValues(product, outcome).Inc()
	if outcome == "ok" {
		c.DownloadDuration.Observe(elapsed.Seconds())
	}
}

// SetGridAge publishes how stale a product's installed grid is.
func (c *Collector) SetGridAge(product string, age time.Duration) {
	c.GridAgeSeconds.WithLabelValues(product).Set(age.Seconds())
}

// RecordExtraction observes how many grid cells one extraction returned.
func (c *Collector) RecordExtraction(points int) {
	c.ExtractionPoints.Observe(float64(points))
}

// RecordIndicators counts storm indicators emitted by a hazards query.
func (c *Collector) RecordIndicators(n int) {
	if n > 0 {
		c.IndicatorsEmitted.Add(float64(n))
	}
}
