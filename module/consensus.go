package module

import (
	"context"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/storage"
)

// ConsensusSubmitter hands transactions to consensus for ordering.
type ConsensusSubmitter interface {
	// SubmitToConsensus submits transactions on behalf of this authority. It returns once the
	// transactions are accepted for submission, not when they are sequenced.
	SubmitToConsensus(ctx context.Context, transactions ...*dwallet.ConsensusTransaction) error
}

// ConsensusClient is the raw submission endpoint of a running consensus instance.
type ConsensusClient interface {
	// Submit hands serialized transactions to the local consensus instance.
	Submit(ctx context.Context, transactions [][]byte) error
}

// ConsensusHandler consumes the ordered output of consensus.
type ConsensusHandler interface {
	// HandleConsensusOutput processes a commit of ordered transactions. Transactions of a
	// commit are delivered in order and every commit is delivered exactly once.
	HandleConsensusOutput(ctx context.Context, commit uint64, transactions []*dwallet.ConsensusTransaction) error
}

// TransactionValidator decides whether a transaction is admitted for ordering.
type TransactionValidator interface {
	// ValidateTransaction returns an error if tx must not be ordered.
	ValidateTransaction(tx *dwallet.ConsensusTransaction) error
}

// ConsensusEngine runs the consensus protocol for one epoch at a time.
type ConsensusEngine interface {

	// Start runs consensus for the epoch of store. Ordered output is delivered to handler and
	// every incoming transaction is checked by validator before ordering. The returned client
	// stays valid until Shutdown.
	Start(ctx context.Context, store storage.EpochStore, handler ConsensusHandler, validator TransactionValidator) (ConsensusClient, error)

	// Shutdown stops the running instance and returns once it has exited.
	Shutdown(ctx context.Context) error
}
