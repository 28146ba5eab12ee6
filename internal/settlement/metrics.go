package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_settlements_total",
		Help: "Settlement units of work by operation and result.",
	}, []string{"operation", "result"})

	settlementConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_settlement_conflicts_total",
		Help: "Transactions aborted by a concurrent update and retried.",
	})

	settlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitledger_settlement_duration_seconds",
		Help:    "Time spent in a settlement unit of work, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// resultLabel buckets an operation outcome for the settlements counter.
func resultLabel(err error, alreadySettled bool) string {
	switch {
	case err == nil && alreadySettled:
		return "already_settled"
	case err == nil:
		return "ok"
	default:
		return "error"
	}
}
