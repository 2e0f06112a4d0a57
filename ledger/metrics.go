package ledger

import (
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultCommitted         = "committed"
	resultInvalid           = "invalid"
	resultNotFound          = "not_found"
	resultInsufficientFunds = "insufficient_funds"
	resultCommitFailed      = "commit_failed"
)

var (
	transferCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyledger",
			Subsystem: "ledger",
			Name:      "transfer_total",
			Help:      "Counter of transfers by result.",
		}, []string{"result"})

	transferDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinyledger",
			Subsystem: "ledger",
			Name:      "transfer_duration_seconds",
			Help:      "Bucketed histogram of transfer latency, latch wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		})

	storeCommitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tinyledger",
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Bucketed histogram of durable store commit latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"status"})

	accountsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinyledger",
			Subsystem: "ledger",
			Name:      "accounts",
			Help:      "Number of accounts held by the ledger.",
		})
)

func init() {
	prometheus.MustRegister(transferCounter)
	prometheus.MustRegister(transferDuration)
	prometheus.MustRegister(storeCommitDuration)
	prometheus.MustRegister(accountsGauge)
}

func transferResult(err error) string {
	if err == nil {
		return resultCommitted
	}
	switch errors.Cause(err).(type) {
	case *ErrAccountNotFound:
		return resultNotFound
	case *ErrInsufficientFunds:
		return resultInsufficientFunds
	case *ErrCommitFailed:
		return resultCommitFailed
	}
	return resultInvalid
}
