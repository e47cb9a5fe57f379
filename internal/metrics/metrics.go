package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type runtimeMetrics struct {
	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	turnRounds   prometheus.Histogram
	retryTotal   *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	activeSessions prometheus.Gauge
	activeTurns    prometheus.Gauge

	tokensTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *runtimeMetrics
)

func getMetrics() *runtimeMetrics {
	metricsOnce.Do(func() {
		m := &runtimeMetrics{
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_turn_total",
					Help: "Total agent turns by provider and outcome.",
				},
				[]string{"provider", "outcome"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "convo_turn_duration_seconds",
					Help:    "Agent turn duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			turnRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convo_turn_rounds",
					Help:    "Model rounds taken per turn.",
					Buckets: []float64{1, 2, 3, 4, 5, 8, 10, 15, 20},
				},
			),
			retryTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_model_retry_total",
					Help: "Total model call retries by provider.",
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "convo_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "convo_active_sessions",
					Help: "Current cached session count.",
				},
			),
			activeTurns: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "convo_active_turns",
					Help: "Turns currently executing.",
				},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_tokens_total",
					Help: "Total tokens consumed by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
		}

		prometheus.MustRegister(
			m.turnTotal,
			m.turnDuration,
			m.turnRounds,
			m.retryTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.activeSessions,
			m.activeTurns,
			m.tokensTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordTurn(provider, outcome string, duration time.Duration, rounds int) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(provider, outcome).Inc()
	m.turnDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.turnRounds.Observe(float64(rounds))
}

func RecordRetry(provider string) {
	getMetrics().retryTotal.WithLabelValues(provider).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func TurnStarted() {
	getMetrics().activeTurns.Inc()
}

func TurnFinished() {
	getMetrics().activeTurns.Dec()
}

func RecordTokens(provider string, input, output int) {
	m := getMetrics()
	if input > 0 {
		m.tokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		m.tokensTotal.WithLabelValues(provider, "output").Add(float64(output))
	}
}
