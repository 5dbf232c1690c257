package dwallet

import "fmt"

// BatchKind distinguishes the two sequenced outputs of the committee.
type BatchKind uint8

const (
	// CheckpointBatch carries verified MPC outputs back to the settlement chain.
	CheckpointBatch BatchKind = iota + 1
	// ParamsBatch carries system parameter updates agreed by the committee.
	ParamsBatch
)

func (k BatchKind) String() string {
	switch k {
	case CheckpointBatch:
		return "checkpoint"
	case ParamsBatch:
		return "params_message"
	default:
		return fmt.Sprintf("batch_kind(%d)", uint8(k))
	}
}

// Batch is an ordered group of messages under a sequence number. Sequence numbers of a kind
// are gap-free across epochs.
type Batch struct {
	Kind     BatchKind
	Epoch    EpochID
	Sequence uint64
	Messages [][]byte
}

// Digest returns the digest over the canonical encoding of the batch.
func (b *Batch) Digest() Digest {
	return MustMakeDigest(b)
}

// Size returns the total size of the batch messages in bytes.
func (b *Batch) Size() int {
	size := 0
	for _, msg := range b.Messages {
		size += len(msg)
	}
	return size
}

// BatchSignature is one authority's signature over a batch digest.
type BatchSignature struct {
	Kind      BatchKind
	Epoch     EpochID
	Sequence  uint64
	Digest    Digest
	Authority AuthorityName
	Signature []byte
}

// CertifiedBatch is a batch together with signatures from a quorum of the committee.
type CertifiedBatch struct {
	Batch      Batch
	Signatures []BatchSignature
}

// MPCOutput is one authority's view of the result of an MPC session.
type MPCOutput struct {
	SessionID Digest
	Epoch     EpochID
	Authority AuthorityName
	Output    []byte
}

// OutputDigest identifies the output bytes independently of the sending authority.
func (o *MPCOutput) OutputDigest() Digest {
	return MustMakeDigest(struct {
		SessionID Digest
		Output    []byte
	}{o.SessionID, o.Output})
}
