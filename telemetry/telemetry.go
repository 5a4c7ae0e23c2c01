// Package telemetry exports classifier metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	col, err := telemetry.New(reg)
//	c, err := hembs.New(n, hembs.WithMetricsCollector(col))
//	http.Handle("/metrics", telemetry.Handler(reg))
package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/hupe1980/hembs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hembs"

// Collector is a hembs.MetricsCollector backed by Prometheus metrics.
type Collector struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	matches  prometheus.Counter
	work     *prometheus.CounterVec
}

var _ hembs.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Classifier operations by kind and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of classifier operations.",
			Buckets:   prometheus.ExponentialBuckets(50e-9, 2, 16),
		}, []string{"op"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_matches_total",
			Help:      "Searches that returned a rule.",
		}),
		work: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_work_total",
			Help:      "Sum of the per-search work counters.",
		}, []string{"counter"}),
	}

	for _, m := range []prometheus.Collector{c.ops, c.duration, c.matches, c.work} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RegisterFootprint exports fn as the classifier memory footprint gauge.
func RegisterFootprint(reg prometheus.Registerer, fn func() int64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_footprint_bytes",
		Help:      "Bytes owned by the classifier.",
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, hembs.ErrNotFound):
		return "not_found"
	case errors.Is(err, hembs.ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, hembs.ErrMemoryLimitExceeded):
		return "memory_limit"
	case errors.Is(err, hembs.ErrMalformedRule):
		return "malformed"
	default:
		return "error"
	}
}

func (c *Collector) record(op string, d time.Duration, err error) {
	c.ops.WithLabelValues(op, result(err)).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordInsert implements hembs.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.record("insert", d, err)
}

// RecordDelete implements hembs.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.record("delete", d, err)
}

// RecordSearch implements hembs.MetricsCollector.
func (c *Collector) RecordSearch(d time.Duration, ctr hembs.Counters, matched bool, err error) {
	c.record("search", d, err)
	if err != nil {
		return
	}
	if matched {
		c.matches.Inc()
	}
	c.work.WithLabelValues("check").Add(float64(ctr.CheckNum))
	c.work.WithLabelValues("and").Add(float64(ctr.AndNum))
	c.work.WithLabelValues("cmp").Add(float64(ctr.CmpNum))
	c.work.WithLabelValues("agg_bingo").Add(float64(ctr.AggBingo))
	c.work.WithLabelValues("agg_fail").Add(float64(ctr.AggFail))
}
