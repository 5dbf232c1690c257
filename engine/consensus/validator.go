package consensus

import (
	"errors"
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/state/epoch"
)

// ErrTransactionRejected wraps every reason a transaction is refused for ordering.
var ErrTransactionRejected = errors.New("consensus transaction rejected")

// Validator admits transactions for ordering in one epoch.
type Validator struct {
	state       *epoch.State
	checkpoints BatchService
	params      BatchService
	encoder     encoding.Encoder
	metrics     module.ConsensusMetrics
}

var _ module.TransactionValidator = (*Validator)(nil)

func NewValidator(state *epoch.State, checkpoints BatchService, params BatchService, encoder encoding.Encoder, metrics module.ConsensusMetrics) *Validator {
	return &Validator{
		state:       state,
		checkpoints: checkpoints,
		params:      params,
		encoder:     encoder,
		metrics:     metrics,
	}
}

// ValidateTransaction returns an error wrapping ErrTransactionRejected if tx must not be ordered.
func (v *Validator) ValidateTransaction(tx *dwallet.ConsensusTransaction) error {
	err := v.validate(tx)
	if err != nil {
		v.metrics.TransactionRejected(tx.Kind)
		return fmt.Errorf("%w: %v", ErrTransactionRejected, err)
	}
	return nil
}

func (v *Validator) validate(tx *dwallet.ConsensusTransaction) error {
	err := tx.Validate()
	if err != nil {
		return err
	}
	if tx.Epoch != v.state.Epoch() {
		return fmt.Errorf("transaction for epoch %d in epoch %d", tx.Epoch, v.state.Epoch())
	}
	if !v.state.IsMember(tx.Authority) {
		return fmt.Errorf("sender %s is not a committee member", tx.Authority.Short())
	}

	encoded, err := v.encoder.Encode(tx)
	if err != nil {
		return fmt.Errorf("could not encode: %w", err)
	}
	limit := v.state.ProtocolConfig().MaxConsensusTransactionSize
	if len(encoded) > limit {
		return fmt.Errorf("transaction size %d exceeds limit %d", len(encoded), limit)
	}

	switch tx.Kind {
	case dwallet.CheckpointSignature:
		if !v.checkpoints.AcceptsSequence(tx.Signature.Sequence) {
			return fmt.Errorf("stale checkpoint signature for sequence %d", tx.Signature.Sequence)
		}
	case dwallet.ParamsMessageSignature:
		if !v.params.AcceptsSequence(tx.Signature.Sequence) {
			return fmt.Errorf("stale params message signature for sequence %d", tx.Signature.Sequence)
		}
	}
	return nil
}
