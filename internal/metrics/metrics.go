package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GrantDuration tracks the latency of reward grant evaluation
	GrantDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reward_grant_duration_seconds",
			Help: "Duration of reward grant requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"status"}, // success or failure
	)

	// GrantsIssued counts issued redemption codes by reward kind
	GrantsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_grants_issued_total",
			Help: "Number of redemption codes issued",
		},
		[]string{"reward_kind"},
	)

	// RedemptionOutcomes counts verify/use calls by result
	RedemptionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_redemptions_total",
			Help: "Redemption code checks by action and result",
		},
		[]string{"action", "result"}, // verify|use, ok|not_found|already_used|error
	)

	// AssistantReplies counts assistant replies by source and intent
	AssistantReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_replies_total",
			Help: "Assistant replies by source (llm or local) and intent",
		},
		[]string{"source", "intent"},
	)
)

// RecordGrantDuration records the duration of a grant request
func RecordGrantDuration(status string, duration float64) {
	GrantDuration.WithLabelValues(status).Observe(duration)
}

// RecordGrantIssued counts one issued code
func RecordGrantIssued(rewardKind string) {
	GrantsIssued.WithLabelValues(rewardKind).Inc()
}

// RecordRedemption counts one verify or use outcome
func RecordRedemption(action, result string) {
	RedemptionOutcomes.WithLabelValues(action, result).Inc()
}

// RecordAssistantReply counts one assistant reply
func RecordAssistantReply(source, intent string) {
	AssistantReplies.WithLabelValues(source, intent).Inc()
}
