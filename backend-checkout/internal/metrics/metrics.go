package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "checkout"

var (
	// Checkout lifecycle
	CheckoutsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "started_total",
		Help:      "Total number of checkouts started",
	}, []string{"target_kind"})

	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Payment attempt outcomes by final state and reason",
	}, []string{"state", "reason"})

	SubmitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submit_rejections_total",
		Help:      "Submissions blocked before reaching the booking backend",
	}, []string{"reason"})

	QuotesComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Price computations by target kind",
	}, []string{"target_kind"})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Outcome events that could not be published",
	})

	// Booking backend calls
	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of booking backend calls",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "outcome"})
)

// RecordCheckoutOutcome counts a finished payment attempt
func RecordCheckoutOutcome(state, reason string) {
	if reason == "" {
		reason = "none"
	}
	CheckoutOutcomes.WithLabelValues(state, reason).Inc()
}

// RecordSubmitRejection counts a submission blocked by local validation
func RecordSubmitRejection(reason string) {
	SubmitRejections.WithLabelValues(reason).Inc()
}

// ObserveBackendCall records the latency of one booking backend call
func ObserveBackendCall(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	BackendRequestDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
}
