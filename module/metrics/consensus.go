package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

// ConsensusCollector implements metric collection for the consensus adapter and handler.
type ConsensusCollector struct {
	submitted       *prometheus.CounterVec
	submitFailed    *prometheus.CounterVec
	pending         prometheus.Gauge
	handled         *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	lowScoring      prometheus.Gauge
	throughputLevel prometheus.Gauge
}

var _ module.ConsensusMetrics = (*ConsensusCollector)(nil)

func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	c := &ConsensusCollector{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "transactions_submitted_total",
			Help:      "the number of transactions handed to consensus",
		}, []string{LabelTxKind}),
		submitFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "transactions_submit_failed_total",
			Help:      "the number of failed submission attempts",
		}, []string{LabelTxKind}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "pending_transactions",
			Help:      "the number of transactions submitted but not yet sequenced",
		}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "transactions_handled_total",
			Help:      "the number of ordered transactions delivered by consensus",
		}, []string{LabelTxKind}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "transactions_rejected_total",
			Help:      "the number of transactions refused by the admission validator",
		}, []string{LabelTxKind}),
		lowScoring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "low_scoring_authorities",
			Help:      "the number of authorities currently scored low",
		}),
		throughputLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemConsensus,
			Name:      "throughput_level",
			Help:      "the current throughput profile level",
		}),
	}
	registerer.MustRegister(c.submitted, c.submitFailed, c.pending, c.handled, c.rejected, c.lowScoring, c.throughputLevel)
	return c
}

func (c *ConsensusCollector) TransactionSubmitted(kind dwallet.ConsensusTransactionKind) {
	c.submitted.WithLabelValues(kind.String()).Inc()
}

func (c *ConsensusCollector) TransactionSubmitFailed(kind dwallet.ConsensusTransactionKind) {
	c.submitFailed.WithLabelValues(kind.String()).Inc()
}

func (c *ConsensusCollector) PendingTransactions(pending int) {
	c.pending.Set(float64(pending))
}

func (c *ConsensusCollector) TransactionHandled(kind dwallet.ConsensusTransactionKind) {
	c.handled.WithLabelValues(kind.String()).Inc()
}

func (c *ConsensusCollector) TransactionRejected(kind dwallet.ConsensusTransactionKind) {
	c.rejected.WithLabelValues(kind.String()).Inc()
}

func (c *ConsensusCollector) LowScoringAuthorities(count int) {
	c.lowScoring.Set(float64(count))
}

func (c *ConsensusCollector) ThroughputLevel(level int) {
	c.throughputLevel.Set(float64(level))
}
