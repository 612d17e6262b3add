// Package metrics exports retry decisions as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

// Sink is a retry.NotificationSink that records every event.
type Sink struct {
	// Retries counts backoff retries per policy
	Retries *prometheus.CounterVec

	// Ignored counts failures repeated without a wait
	Ignored *prometheus.CounterVec

	// RetryDelay observes the wait chosen before each retry
	RetryDelay *prometheus.HistogramVec

	// ErrorCodes counts the codes seen on retried or ignored failures
	ErrorCodes *prometheus.CounterVec

	// Throttled counts throttling errors by decoded mode
	Throttled *prometheus.CounterVec
}

// NewSink registers the retry metrics with reg.
func NewSink(reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mssqlretry_retries_total",
				Help: "Total number of retries scheduled",
			},
			[]string{"policy"},
		),
		Ignored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mssqlretry_ignored_total",
				Help: "Total number of failures repeated without waiting",
			},
			[]string{"policy"},
		),
		RetryDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mssqlretry_retry_delay_seconds",
				Help:    "Backoff delay chosen before a retry, in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"policy"},
		),
		ErrorCodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mssqlretry_error_codes_total",
				Help: "Error codes seen on retried or ignored failures",
			},
			[]string{"policy", "code"},
		),
		Throttled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mssqlretry_throttled_total",
				Help: "Throttling errors by decoded mode",
			},
			[]string{"policy", "mode"},
		),
	}
}

func (s *Sink) Retrying(e retry.RetryEvent) {
	s.Retries.WithLabelValues(e.Policy).Inc()
	s.RetryDelay.WithLabelValues(e.Policy).Observe(e.Delay.Seconds())
	s.countCodes(e.Policy, e.Codes)
	if e.Throttling != nil {
		s.Throttled.WithLabelValues(e.Policy, e.Throttling.Mode.String()).Inc()
	}
}

func (s *Sink) Ignoring(e retry.IgnoreEvent) {
	s.Ignored.WithLabelValues(e.Policy).Inc()
	s.countCodes(e.Policy, e.Codes)
}

func (s *Sink) countCodes(policy string, codes []int32) {
	for _, c := range codes {
		s.ErrorCodes.WithLabelValues(policy, strconv.FormatInt(int64(c), 10)).Inc()
	}
}

var _ retry.NotificationSink = (*Sink)(nil)
