package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jan-server/services/conversation-api/internal/domain/conversation"
)

// Tree metrics
var (
	TurnsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "turns_appended_total",
			Help:      "Total user/assistant turns appended to the tree",
		},
	)

	BranchesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "branches_created_total",
			Help:      "Total branches forked from messages",
		},
	)

	BranchesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "branches_deleted_total",
			Help:      "Total branches deleted",
		},
	)

	BranchMessagesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "branch_messages_deleted_total",
			Help:      "Total messages removed by branch deletion",
		},
	)

	RepairsAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "repairs_applied_total",
			Help:      "Total messages re-attached by tree repair",
		},
	)

	PathWalkLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "path_walk_length",
			Help:      "Messages traversed per branch path reconstruction",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
		},
	)

	ConsistencyViolations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "conversation_api",
			Name:      "consistency_violations_last_check",
			Help:      "Violations found by the most recent consistency check",
		},
	)
)

// TreeMetrics is the prometheus implementation of the domain metrics sink.
type TreeMetrics struct{}

// NewTreeMetrics builds the prometheus-backed recorder.
func NewTreeMetrics() *TreeMetrics {
	return &TreeMetrics{}
}

var _ conversation.Metrics = (*TreeMetrics)(nil)

func (*TreeMetrics) TurnAppended() {
	TurnsAppendedTotal.Inc()
}

func (*TreeMetrics) BranchCreated() {
	BranchesCreatedTotal.Inc()
}

func (*TreeMetrics) BranchDeleted(messagesRemoved int) {
	BranchesDeletedTotal.Inc()
	BranchMessagesDeletedTotal.Add(float64(messagesRemoved))
}

func (*TreeMetrics) RepairApplied(messagesAttached int) {
	RepairsAppliedTotal.Add(float64(messagesAttached))
}

func (*TreeMetrics) PathWalked(length int) {
	PathWalkLength.Observe(float64(length))
}

func (*TreeMetrics) ViolationsSeen(count int) {
	ConsistencyViolations.Set(float64(count))
}
