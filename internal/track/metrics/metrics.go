// Package metrics exports tracker lifecycle events as Prometheus metrics.
package metrics

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"

	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// Collector is a tracker.Observer backed by Prometheus collectors.
//
// Thread Safety: Safe for concurrent use. The tracker calls Completed from
// runtime notification goroutines.
type Collector struct {
	Outstanding   prometheus.Gauge
	Completions   *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	NotifyLatency *prometheus.HistogramVec
}

var _ tracker.Observer = (*Collector)(nil)

// NewCollector creates unregistered collectors.
func NewCollector() *Collector {
	// 1µs .. ~1s
	buckets := prometheus.ExponentialBuckets(1e-6, 4, 11)
	return &Collector{
		Outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asynctrack_outstanding_entries",
			Help: "Entries admitted and not yet deleted.",
		}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asynctrack_completions_total",
			Help: "Completed operations by kind.",
		}, []string{"kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asynctrack_operation_duration_seconds",
			Help:    "Hardware execution time (begin to end) by kind.",
			Buckets: buckets,
		}, []string{"kind"}),
		NotifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asynctrack_notify_latency_seconds",
			Help:    "Time from hardware end to the completion callback by kind.",
			Buckets: buckets,
		}, []string{"kind"}),
	}
}

// Register adds all collectors to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	var err error
	for _, col := range []prometheus.Collector{c.Outstanding, c.Completions, c.Duration, c.NotifyLatency} {
		err = multierr.Append(err, reg.Register(col))
	}
	return err
}

// Admitted implements tracker.Observer.
func (c *Collector) Admitted() {
	c.Outstanding.Inc()
}

// Deleted implements tracker.Observer.
func (c *Collector) Deleted() {
	c.Outstanding.Dec()
}

// Completed implements tracker.Observer.
func (c *Collector) Completed(a tracker.Activity) {
	kind := a.Kind.String()
	c.Completions.WithLabelValues(kind).Inc()
	c.Duration.WithLabelValues(kind).Observe(a.Record.Duration().Seconds())
	c.NotifyLatency.WithLabelValues(kind).Observe(a.Record.NotifyLatency().Seconds())
}

// Handler serves the metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteText writes the metrics gathered from g in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
