package dwallet

import (
	"errors"
	"fmt"
)

// ConsensusTransactionKind is the type of payload carried by a consensus transaction.
type ConsensusTransactionKind uint8

const (
	CapabilityNotification ConsensusTransactionKind = iota + 1
	CheckpointSignature
	ParamsMessageSignature
	MPCOutputNotification
)

func (k ConsensusTransactionKind) String() string {
	switch k {
	case CapabilityNotification:
		return "capability_notification"
	case CheckpointSignature:
		return "checkpoint_signature"
	case ParamsMessageSignature:
		return "params_message_signature"
	case MPCOutputNotification:
		return "mpc_output"
	default:
		return fmt.Sprintf("consensus_transaction_kind(%d)", uint8(k))
	}
}

var ErrMalformedTransaction = errors.New("malformed consensus transaction")

// ConsensusTransaction is submitted by an authority for ordering by consensus. Exactly one
// payload field is set, matching Kind.
type ConsensusTransaction struct {
	Kind      ConsensusTransactionKind
	Authority AuthorityName
	Epoch     EpochID

	Capabilities *AuthorityCapabilities `cbor:",omitempty"`
	Signature    *BatchSignature        `cbor:",omitempty"`
	Output       *MPCOutput             `cbor:",omitempty"`
}

// NewCapabilityTransaction wraps a capability announcement.
func NewCapabilityTransaction(caps *AuthorityCapabilities) *ConsensusTransaction {
	return &ConsensusTransaction{
		Kind:         CapabilityNotification,
		Authority:    caps.Authority,
		Epoch:        caps.Epoch,
		Capabilities: caps,
	}
}

// NewSignatureTransaction wraps a batch signature.
func NewSignatureTransaction(sig *BatchSignature) *ConsensusTransaction {
	kind := CheckpointSignature
	if sig.Kind == ParamsBatch {
		kind = ParamsMessageSignature
	}
	return &ConsensusTransaction{
		Kind:      kind,
		Authority: sig.Authority,
		Epoch:     sig.Epoch,
		Signature: sig,
	}
}

// NewOutputTransaction wraps an MPC output.
func NewOutputTransaction(output *MPCOutput) *ConsensusTransaction {
	return &ConsensusTransaction{
		Kind:      MPCOutputNotification,
		Authority: output.Authority,
		Epoch:     output.Epoch,
		Output:    output,
	}
}

// Validate checks that the payload matches the kind and is attributed to the sender.
func (tx *ConsensusTransaction) Validate() error {
	switch tx.Kind {
	case CapabilityNotification:
		if tx.Capabilities == nil || tx.Capabilities.Authority != tx.Authority || tx.Capabilities.Epoch != tx.Epoch {
			return fmt.Errorf("%w: bad capabilities payload", ErrMalformedTransaction)
		}
	case CheckpointSignature, ParamsMessageSignature:
		if tx.Signature == nil || tx.Signature.Authority != tx.Authority || tx.Signature.Epoch != tx.Epoch {
			return fmt.Errorf("%w: bad signature payload", ErrMalformedTransaction)
		}
		if (tx.Kind == CheckpointSignature) != (tx.Signature.Kind == CheckpointBatch) {
			return fmt.Errorf("%w: signature kind %s does not match transaction kind %s", ErrMalformedTransaction, tx.Signature.Kind, tx.Kind)
		}
	case MPCOutputNotification:
		if tx.Output == nil || tx.Output.Authority != tx.Authority || tx.Output.Epoch != tx.Epoch {
			return fmt.Errorf("%w: bad output payload", ErrMalformedTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrMalformedTransaction, tx.Kind)
	}
	return nil
}

// Digest returns the digest over the canonical encoding of the transaction.
func (tx *ConsensusTransaction) Digest() Digest {
	return MustMakeDigest(tx)
}

// Key identifies the transaction for deduplication of resubmissions.
func (tx *ConsensusTransaction) Key() string {
	switch tx.Kind {
	case CapabilityNotification:
		return fmt.Sprintf("%s/%s/%d", tx.Kind, tx.Authority, tx.Epoch)
	case CheckpointSignature, ParamsMessageSignature:
		return fmt.Sprintf("%s/%s/%d", tx.Kind, tx.Authority, tx.Signature.Sequence)
	case MPCOutputNotification:
		return fmt.Sprintf("%s/%s/%s", tx.Kind, tx.Authority, tx.Output.SessionID)
	default:
		return tx.Digest().String()
	}
}
