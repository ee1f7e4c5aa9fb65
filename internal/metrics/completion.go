package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat-completion Prometheus metrics.
var (
	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoir",
			Name:      "completion_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"provider", "model", "mode", "status"}, // mode: stream/once; status: success/error/canceled
	)

	CompletionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memoir",
			Name:      "completion_request_duration_seconds",
			Help:      "Chat completion duration from request to resolution in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "mode"},
	)

	CompletionStreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoir",
			Name:      "completion_stream_tokens_total",
			Help:      "Total incremental tokens decoded from completion streams",
		},
		[]string{"provider", "model"},
	)

	CompletionDroppedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoir",
			Name:      "completion_dropped_events_total",
			Help:      "Stream events dropped because their payload could not be decoded",
		},
		[]string{"provider", "model"},
	)

	MatchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoir",
			Name:      "match_outcomes_total",
			Help:      "Photo match outcomes",
		},
		[]string{"outcome"}, // "matched" / "no_match" / "failed"
	)
)

var completionMetricsRegistered bool

// RegisterCompletionMetrics registers completion and match metrics. Must be called once from main.
func RegisterCompletionMetrics() {
	if completionMetricsRegistered {
		return
	}
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionRequestDuration)
	prometheus.MustRegister(CompletionStreamTokensTotal)
	prometheus.MustRegister(CompletionDroppedEventsTotal)
	prometheus.MustRegister(MatchOutcomesTotal)
	completionMetricsRegistered = true
}
