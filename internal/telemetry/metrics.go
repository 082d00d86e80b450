// Package telemetry holds the Prometheus metrics shared by the three
// service binaries, adapted from the teacher's src/metrics/prometheus.go /
// internal/api/middleware/prometheus.go HTTP instrumentation, generalized
// from banking operation counters to reservation, saga, and publish
// counters.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

var (
	// ReservationOperationsTotal counts Ledger reservation-engine outcomes.
	// operation: reserve, commit, release, credit, get_balance.
	// status: success, idempotent_replay, error category (apperr.Category string).
	ReservationOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reservation_operations_total",
			Help: "Total number of Ledger reservation-engine operations",
		},
		[]string{"operation", "status"},
	)

	// SagaStepTotal counts each orchestrator saga step outcome.
	SagaStepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_saga_step_total",
			Help: "Total number of payment saga steps executed",
		},
		[]string{"step", "status"},
	)

	// CompensationTotal counts compensating actions fired by the saga.
	CompensationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_compensation_total",
			Help: "Total number of saga compensating actions executed",
		},
		[]string{"action", "status"},
	)

	// EventsPublishedTotal counts event publisher outcomes.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"event_type", "status"},
	)

	PaymentAmountHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_payment_amount_minor_units",
			Help:    "Distribution of payment amounts in minor units",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
		},
	)
)

// RecordReservationOp records the outcome of a Ledger engine operation.
func RecordReservationOp(operation, status string) {
	ReservationOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSagaStep records the outcome of one saga step.
func RecordSagaStep(step, status string) {
	SagaStepTotal.WithLabelValues(step, status).Inc()
}

// RecordCompensation records a best-effort compensating action.
func RecordCompensation(action, status string) {
	CompensationTotal.WithLabelValues(action, status).Inc()
}

// RecordEventPublished records a publish attempt outcome.
func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordHTTP records one request/response cycle.
func RecordHTTP(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HTTPDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
