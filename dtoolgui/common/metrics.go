package common

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors of the client core
type Metrics struct {
	// Lookup client
	LookupRequestsTotal   *prometheus.CounterVec
	LookupRequestDuration *prometheus.HistogramVec
	LookupAuthFailures    prometheus.Counter

	// Copy manager
	CopyItemsTotal   prometheus.Counter
	CopyBytesTotal   prometheus.Counter
	CopyJobsTotal    *prometheus.CounterVec
	CopyActiveJobs   prometheus.Gauge
	CopyItemDuration prometheus.Histogram

	// Layout engine
	LayoutIterations prometheus.Counter
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics registers all collectors on reg. A nil registerer yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LookupRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Lookup server requests by route and outcome.",
		}, []string{"route", "outcome"}),
		LookupRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dtool_gui",
			Subsystem: "lookup",
			Name:      "request_duration_seconds",
			Help:      "Lookup server request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		LookupAuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "lookup",
			Name:      "auth_failures_total",
			Help:      "Requests rejected for a missing or expired token.",
		}),
		CopyItemsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "copy",
			Name:      "items_total",
			Help:      "Items accounted for by copy jobs, including resumed items.",
		}),
		CopyBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "copy",
			Name:      "bytes_total",
			Help:      "Bytes transferred by copy jobs.",
		}),
		CopyJobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "copy",
			Name:      "jobs_total",
			Help:      "Finished copy jobs by outcome.",
		}, []string{"outcome"}),
		CopyActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dtool_gui",
			Subsystem: "copy",
			Name:      "active_jobs",
			Help:      "Copy jobs currently in flight.",
		}),
		CopyItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dtool_gui",
			Subsystem: "copy",
			Name:      "item_duration_seconds",
			Help:      "Time to copy a single item.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		LayoutIterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dtool_gui",
			Subsystem: "layout",
			Name:      "iterations_total",
			Help:      "FIRE layout iterations performed.",
		}),
	}
}

// DefaultMetrics returns process-wide collectors that are not registered anywhere.
// The entry point registers its own set when it exposes metrics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(nil)
	})
	return defaultMetrics
}

// ObserveLookup records one lookup request
func (m *Metrics) ObserveLookup(route string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsAuthFailure(err):
		outcome = "auth_failure"
		m.LookupAuthFailures.Inc()
	case IsCancellation(err):
		outcome = "cancelled"
	default:
		outcome = "error"
	}
	m.LookupRequestsTotal.WithLabelValues(route, outcome).Inc()
	m.LookupRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
