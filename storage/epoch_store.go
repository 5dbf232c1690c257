package storage

import (
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/state/epoch"
)

// OutputsVerifier checks MPC outputs forwarded by consensus before they are queued for
// checkpoint inclusion.
type OutputsVerifier interface {
	// Verify records output and returns true exactly once per session, when enough
	// authorities agree on the same output.
	Verify(output *dwallet.MPCOutput) (bool, error)
	// VerifyBatch verifies outputs in order, returning one verdict per output.
	VerifyBatch(outputs []*dwallet.MPCOutput) ([]bool, error)
}

// EpochStore holds everything the node persists for a single epoch. It is opened when the
// epoch becomes current and closed when the last reference is released.
type EpochStore interface {
	// Epoch returns the epoch this store belongs to.
	Epoch() dwallet.EpochID

	// State returns the immutable state snapshot of the epoch.
	State() *epoch.State

	// Acquire takes an additional reference on the store. Every Acquire must be paired
	// with a Release.
	// Expected errors during normal operations:
	//   - storage.ErrStoreClosed if the last reference was already released
	Acquire() error

	// Release drops a reference. The underlying database is closed when the last reference
	// is released.
	Release() error

	// StoreCapabilities records the capabilities announced by an authority for this epoch.
	// Later announcements from the same authority replace earlier ones.
	StoreCapabilities(caps *dwallet.AuthorityCapabilities) error

	// HasCapabilities returns true if authority has announced its capabilities this epoch.
	HasCapabilities(authority dwallet.AuthorityName) (bool, error)

	// Capabilities returns all announcements of the epoch.
	Capabilities() (map[dwallet.AuthorityName]*dwallet.AuthorityCapabilities, error)

	// SetProtocolUpgradePending marks that a quorum agreed on a new protocol version.
	SetProtocolUpgradePending(version dwallet.ProtocolVersion) error

	// ProtocolUpgradePending returns true once an upgrade has been agreed in this epoch.
	ProtocolUpgradePending() (bool, error)

	// InstallOutputsVerifier sets the verifier consulted for consensus-forwarded MPC outputs.
	InstallOutputsVerifier(verifier OutputsVerifier)

	// OutputsVerifier returns the installed verifier, or nil.
	OutputsVerifier() OutputsVerifier

	// StoreVerifiedOutput records an MPC output accepted by the outputs verifier.
	// Expected errors during normal operations:
	//   - storage.ErrAlreadyExists if an output for the session was already stored
	StoreVerifiedOutput(output *dwallet.MPCOutput) error

	// VerifiedOutputs returns the number of outputs accepted in this epoch.
	VerifiedOutputs() (uint64, error)

	// SetLastBuiltSequence records the highest sequence built in this epoch for kind.
	SetLastBuiltSequence(kind dwallet.BatchKind, sequence uint64) error

	// LastBuiltSequence returns the highest sequence built in this epoch for kind.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if nothing was built yet
	LastBuiltSequence(kind dwallet.BatchKind) (uint64, error)
}

// SequencedStore persists certified batches of one kind across epochs, keyed by sequence.
type SequencedStore interface {
	// Store persists a certified batch. The sequence must directly follow the last stored one.
	// Expected errors during normal operations:
	//   - storage.ErrAlreadyExists if a batch with the sequence was stored already
	//   - storage.ErrDataMismatch if the sequence would leave a gap
	Store(batch *dwallet.CertifiedBatch) error

	// BySequence returns the certified batch with the given sequence.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no such batch exists
	BySequence(sequence uint64) (*dwallet.CertifiedBatch, error)

	// LastSequence returns the highest stored sequence.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if the store is empty
	LastSequence() (uint64, error)
}
