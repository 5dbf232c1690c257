package checkpoint

import (
	"context"
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

// OutputSink signs built batches on behalf of this authority and shares the signatures with
// the committee through consensus.
type OutputSink struct {
	self      dwallet.AuthorityName
	signer    module.Signer
	submitter module.ConsensusSubmitter
}

func NewOutputSink(self dwallet.AuthorityName, signer module.Signer, submitter module.ConsensusSubmitter) *OutputSink {
	return &OutputSink{
		self:      self,
		signer:    signer,
		submitter: submitter,
	}
}

// SignAndSubmit signs batch and submits the signature to consensus.
func (o *OutputSink) SignAndSubmit(ctx context.Context, batch *dwallet.Batch, digest dwallet.Digest) error {
	sig, err := o.signer.Sign(digest)
	if err != nil {
		return fmt.Errorf("could not sign %s %d: %w", batch.Kind, batch.Sequence, err)
	}
	signature := &dwallet.BatchSignature{
		Kind:      batch.Kind,
		Epoch:     batch.Epoch,
		Sequence:  batch.Sequence,
		Digest:    digest,
		Authority: o.self,
		Signature: sig,
	}
	err = o.submitter.SubmitToConsensus(ctx, dwallet.NewSignatureTransaction(signature))
	if err != nil {
		return fmt.Errorf("could not submit signature for %s %d: %w", batch.Kind, batch.Sequence, err)
	}
	return nil
}

// Verify checks a signature of another committee member.
func (o *OutputSink) Verify(signature *dwallet.BatchSignature) error {
	return o.signer.Verify(signature.Authority, signature.Digest, signature.Signature)
}
