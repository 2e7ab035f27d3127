package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_gateway_active_streams",
		Help: "Number of client turns currently streaming",
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_turns_total",
		Help: "Total number of streamed turns by terminal outcome",
	}, []string{"outcome"}) // completed, interrupted, failed, cancelled

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_gateway_turn_duration_seconds",
		Help:    "Duration of streamed turns in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Upstream metrics
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_upstream_requests_total",
		Help: "Total upstream Responses API calls by HTTP status",
	}, []string{"status"})

	consentInterrupts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_consent_interrupts_total",
		Help: "Total turns paused for OAuth consent",
	})

	tokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_token_fetches_total",
		Help: "Total bearer token fetches",
	}, []string{"status"})

	// Client event metrics
	clientEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_client_events_total",
		Help: "Total client stream events emitted by type",
	}, []string{"type"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Turn outcome labels.
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

// TurnMetrics tracks metrics for a single streamed turn
type TurnMetrics struct {
	startTime time.Time
}

// NewTurnMetrics starts tracking one turn
func NewTurnMetrics() *TurnMetrics {
	activeStreams.Inc()
	return &TurnMetrics{startTime: time.Now()}
}

// RecordTurnEnd records the terminal outcome of the turn
func (m *TurnMetrics) RecordTurnEnd(outcome string) {
	activeStreams.Dec()
	turnDuration.Observe(time.Since(m.startTime).Seconds())
	turnsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeInterrupted {
		consentInterrupts.Inc()
	}
}

// RecordClientEvent counts one emitted client stream event
func RecordClientEvent(eventType string) {
	clientEvents.WithLabelValues(eventType).Inc()
}

// RecordUpstreamStatus counts one upstream call's HTTP status
func RecordUpstreamStatus(statusCode int) {
	upstreamRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokenFetch counts one bearer token fetch
func RecordTokenFetch(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	tokenFetches.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
