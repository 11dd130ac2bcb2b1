// Package metrics exposes Prometheus counters for a load run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sensorbench"

// Collector records per-scenario request metrics.
type Collector struct {
	startTime time.Time

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payloadBytes    *prometheus.HistogramVec
	violationsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	slowTotal       *prometheus.CounterVec
}

// NewCollector registers the metrics on reg. A nil reg uses the default
// Prometheus registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		startTime: time.Now(),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests sent",
			},
			[]string{"scenario", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scenario"},
		),
		payloadBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payload_bytes",
				Help:      "Decoded payload blob size in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 9),
			},
			[]string{"scenario"},
		),
		violationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Total number of response contract violations",
			},
			[]string{"scenario"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_errors_total",
				Help:      "Requests that failed before a response was read",
			},
			[]string{"scenario"},
		),
		slowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slow_requests_total",
				Help:      "Requests slower than the configured threshold",
			},
			[]string{"scenario"},
		),
	}
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(scenario string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(scenario, statusClass(status)).Inc()
	c.requestDuration.WithLabelValues(scenario).Observe(duration.Seconds())
}

// RecordPayload records the decoded size of one payload blob.
func (c *Collector) RecordPayload(scenario string, size int) {
	if size > 0 {
		c.payloadBytes.WithLabelValues(scenario).Observe(float64(size))
	}
}

// RecordViolations adds n contract violations.
func (c *Collector) RecordViolations(scenario string, n int) {
	if n > 0 {
		c.violationsTotal.WithLabelValues(scenario).Add(float64(n))
	}
}

// RecordError records a transport failure.
func (c *Collector) RecordError(scenario string) {
	c.errorsTotal.WithLabelValues(scenario).Inc()
}

// RecordSlow records a request over the slow-request threshold.
func (c *Collector) RecordSlow(scenario string) {
	c.slowTotal.WithLabelValues(scenario).Inc()
}

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
