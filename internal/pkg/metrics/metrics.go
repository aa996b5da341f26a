package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Claim
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_claims_total",
		Help: "Task claims by category and result (accepted/rejected)",
	}, []string{"category", "result"})
	StaminaSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_stamina_spent_total",
		Help: "Stamina points consumed by accepted claims",
	})

	// Complete
	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_completions_total",
		Help: "Settled task completions by category",
	}, []string{"category"})
	CompletionReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_completion_replays_total",
		Help: "Completions answered from a stored snapshot instead of being settled again",
	})
	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_points_awarded_total",
		Help: "Points appended to the ledger by task completions",
	})
	LevelUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_level_ups_total",
		Help: "Global level-ups",
	})
	CompleteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quest_complete_latency_seconds",
		Help:    "Latency of the complete transaction",
		Buckets: prometheus.DefBuckets,
	})

	// Streaks
	StreaksResetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_streaks_reset_total",
		Help: "Streaks zeroed by the daily sweep",
	})

	// Store
	ConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_store_conflicts_total",
		Help: "Retryable store conflicts by operation",
	}, []string{"op"})
)
