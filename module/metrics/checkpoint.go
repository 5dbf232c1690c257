package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

// CheckpointCollector implements metric collection for the checkpoint and params message services.
type CheckpointCollector struct {
	builtSequence     *prometheus.GaugeVec
	certifiedSequence *prometheus.GaugeVec
	batchMessages     *prometheus.HistogramVec
	batchBytes        *prometheus.HistogramVec
	pendingMessages   *prometheus.GaugeVec
}

var _ module.CheckpointMetrics = (*CheckpointCollector)(nil)

func NewCheckpointCollector(registerer prometheus.Registerer) *CheckpointCollector {
	c := &CheckpointCollector{
		builtSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemCheckpoint,
			Name:      "last_built_sequence",
			Help:      "the sequence of the last batch built by this node",
		}, []string{LabelKind}),
		certifiedSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemCheckpoint,
			Name:      "last_certified_sequence",
			Help:      "the sequence of the last batch certified by a quorum",
		}, []string{LabelKind}),
		batchMessages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemCheckpoint,
			Name:      "batch_messages",
			Help:      "the number of messages in a built batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{LabelKind}),
		batchBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemCheckpoint,
			Name:      "batch_bytes",
			Help:      "the size of the messages in a built batch",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{LabelKind}),
		pendingMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceDWallet,
			Subsystem: subsystemCheckpoint,
			Name:      "pending_messages",
			Help:      "the number of messages waiting for the next batch",
		}, []string{LabelKind}),
	}
	registerer.MustRegister(c.builtSequence, c.certifiedSequence, c.batchMessages, c.batchBytes, c.pendingMessages)
	return c
}

func (c *CheckpointCollector) BatchBuilt(kind dwallet.BatchKind, sequence uint64, messages int, bytes int) {
	c.builtSequence.WithLabelValues(kind.String()).Set(float64(sequence))
	c.batchMessages.WithLabelValues(kind.String()).Observe(float64(messages))
	c.batchBytes.WithLabelValues(kind.String()).Observe(float64(bytes))
}

func (c *CheckpointCollector) BatchCertified(kind dwallet.BatchKind, sequence uint64) {
	c.certifiedSequence.WithLabelValues(kind.String()).Set(float64(sequence))
}

func (c *CheckpointCollector) PendingMessages(kind dwallet.BatchKind, pending int) {
	c.pendingMessages.WithLabelValues(kind.String()).Set(float64(pending))
}
