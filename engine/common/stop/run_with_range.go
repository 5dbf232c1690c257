package stop

import (
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// RangeKind selects what a RunWithRange directive is measured in.
type RangeKind uint8

const (
	// EpochRange stops the node once the given epoch has completed.
	EpochRange RangeKind = iota + 1
	// CheckpointRange stops the node once the given checkpoint sequence has been certified.
	CheckpointRange
)

// RunWithRange is an operator directive to run the node up to a bound and then stop.
type RunWithRange struct {
	Kind  RangeKind
	Value uint64
}

// UntilEpoch returns a directive to stop after epoch completes.
func UntilEpoch(epoch dwallet.EpochID) *RunWithRange {
	return &RunWithRange{Kind: EpochRange, Value: uint64(epoch)}
}

// UntilCheckpoint returns a directive to stop after checkpoint sequence is certified.
func UntilCheckpoint(sequence uint64) *RunWithRange {
	return &RunWithRange{Kind: CheckpointRange, Value: sequence}
}

// EpochReached returns true if the directive asks to stop once epoch completes.
func (r *RunWithRange) EpochReached(epoch dwallet.EpochID) bool {
	return r != nil && r.Kind == EpochRange && uint64(epoch) >= r.Value
}

// CheckpointReached returns true if the directive asks to stop once sequence is certified.
func (r *RunWithRange) CheckpointReached(sequence uint64) bool {
	return r != nil && r.Kind == CheckpointRange && sequence >= r.Value
}

func (r *RunWithRange) String() string {
	if r == nil {
		return "none"
	}
	switch r.Kind {
	case EpochRange:
		return fmt.Sprintf("epoch(%d)", r.Value)
	case CheckpointRange:
		return fmt.Sprintf("checkpoint(%d)", r.Value)
	default:
		return fmt.Sprintf("range(%d, %d)", r.Kind, r.Value)
	}
}
