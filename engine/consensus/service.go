package consensus

import (
	"context"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// BatchService is the part of a checkpoint or params message service fed by consensus.
type BatchService interface {
	// Kind returns the kind of batches the service builds.
	Kind() dwallet.BatchKind

	// AddMessage queues a message in the commit being handled.
	AddMessage(ctx context.Context, message []byte) error

	// CommitBoundary seals the messages queued while handling commit. Batches are cut from
	// sealed commits only.
	CommitBoundary(commit uint64)

	// HandleSignature records a committee member's signature over a built batch.
	HandleSignature(ctx context.Context, signature *dwallet.BatchSignature) error

	// AcceptsSequence returns true if signatures for sequence can still be used.
	AcceptsSequence(sequence uint64) bool
}
