package module

import (
	"context"

	"github.com/dwallet-network/dwallet-node/engine/common/stop"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// EpochResult is the outcome of driving one epoch body to completion. Exactly one of
// NextCommittee and Condition is set.
type EpochResult struct {
	// NextCommittee is set when the epoch completed and the committee of the next epoch is known.
	NextCommittee *dwallet.Committee
	// Condition is set when the operator requested a stop through a run-with-range directive.
	Condition *stop.RunWithRange
}

// EpochComplete returns the result of a regularly completed epoch.
func EpochComplete(next *dwallet.Committee) EpochResult {
	return EpochResult{NextCommittee: next}
}

// RunWithRangeCondition returns the result of an epoch ended by a stop directive.
func RunWithRangeCondition(condition *stop.RunWithRange) EpochResult {
	return EpochResult{Condition: condition}
}

// Stopped returns true if the result ends the node.
func (r EpochResult) Stopped() bool {
	return r.Condition != nil
}

// SettlementChainOracle is the read-only view of the settlement chain that drives epochs.
type SettlementChainOracle interface {

	// RunEpoch blocks until the chain has completed epoch, or until the node has reached
	// the bound of runWithRange. It returns an error only if ctx is cancelled.
	RunEpoch(ctx context.Context, epoch dwallet.EpochID, runWithRange *stop.RunWithRange) (EpochResult, error)

	// GetSystemInner reads the current dWallet system object. Errors are transient and may
	// be retried.
	GetSystemInner(ctx context.Context) (*dwallet.SystemInner, error)

	// GetCoordinatorInner reads the current dWallet coordinator object. Errors are transient
	// and may be retried.
	GetCoordinatorInner(ctx context.Context) (*dwallet.CoordinatorInner, error)
}
