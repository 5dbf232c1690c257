package module

import (
	"time"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// EpochMetrics tracks the reconfiguration loop.
type EpochMetrics interface {
	// CurrentEpoch reports the epoch the node is currently running.
	CurrentEpoch(epoch dwallet.EpochID)

	// IsValidator reports whether the node runs validator components in the current epoch.
	IsValidator(validator bool)

	// RoleTransition counts a boundary resolved with the given role transition.
	RoleTransition(transition string)

	// ReconfigurationDuration measures the time from epoch completion until the next epoch
	// is fully running.
	ReconfigurationDuration(duration time.Duration)

	// OrchestratorRestarted counts restarts of the reconfiguration loop after an error.
	OrchestratorRestarted()
}

// CheckpointMetrics tracks the checkpoint and params message services.
type CheckpointMetrics interface {
	// BatchBuilt reports the sequence of a batch this node built.
	BatchBuilt(kind dwallet.BatchKind, sequence uint64, messages int, bytes int)

	// BatchCertified reports the sequence of a batch certified by a quorum.
	BatchCertified(kind dwallet.BatchKind, sequence uint64)

	// PendingMessages reports the number of messages waiting for the next batch.
	PendingMessages(kind dwallet.BatchKind, pending int)
}

// ConsensusMetrics tracks the consensus adapter and handler.
type ConsensusMetrics interface {
	// TransactionSubmitted counts transactions handed to consensus.
	TransactionSubmitted(kind dwallet.ConsensusTransactionKind)

	// TransactionSubmitFailed counts submission attempts which returned an error.
	TransactionSubmitFailed(kind dwallet.ConsensusTransactionKind)

	// PendingTransactions reports the number of transactions submitted but not yet sequenced.
	PendingTransactions(pending int)

	// TransactionHandled counts ordered transactions delivered by consensus.
	TransactionHandled(kind dwallet.ConsensusTransactionKind)

	// TransactionRejected counts transactions refused by the admission validator.
	TransactionRejected(kind dwallet.ConsensusTransactionKind)

	// LowScoringAuthorities reports the number of authorities currently scored low.
	LowScoringAuthorities(count int)

	// ThroughputLevel reports the current throughput profile level.
	ThroughputLevel(level int)
}

// MPCMetrics tracks the network key service and the outputs verifier.
type MPCMetrics interface {
	// NetworkKeyInstantiated counts network keys this node produced an output for.
	NetworkKeyInstantiated()

	// OutputVerified counts MPC outputs accepted by a quorum.
	OutputVerified()
}
