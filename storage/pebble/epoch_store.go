package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/state/epoch"
	"github.com/dwallet-network/dwallet-node/storage"
)

// EpochStore is the pebble-backed storage.EpochStore. It is reference counted: the database
// is closed when the last holder releases it, so readers still working on a previous epoch
// are not invalidated by reconfiguration.
type EpochStore struct {
	db    *pebble.DB
	state *epoch.State

	refMu sync.Mutex
	refs  int

	// writeMu serializes read-modify-write updates of aggregated keys.
	writeMu sync.Mutex

	verifierMu sync.RWMutex
	verifier   storage.OutputsVerifier
}

var _ storage.EpochStore = (*EpochStore)(nil)

// NewEpochStore wraps an open database. The returned store holds one reference.
func NewEpochStore(db *pebble.DB, state *epoch.State) *EpochStore {
	return &EpochStore{
		db:    db,
		state: state,
		refs:  1,
	}
}

func (s *EpochStore) Epoch() dwallet.EpochID {
	return s.state.Epoch()
}

func (s *EpochStore) State() *epoch.State {
	return s.state
}

func (s *EpochStore) Acquire() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.refs == 0 {
		return fmt.Errorf("could not acquire store of epoch %d: %w", s.Epoch(), storage.ErrStoreClosed)
	}
	s.refs++
	return nil
}

func (s *EpochStore) Release() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.refs == 0 {
		return fmt.Errorf("could not release store of epoch %d: %w", s.Epoch(), storage.ErrStoreClosed)
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("could not close store of epoch %d: %w", s.Epoch(), err)
	}
	return nil
}

// Refs returns the number of outstanding references.
func (s *EpochStore) Refs() int {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.refs
}

func (s *EpochStore) StoreCapabilities(caps *dwallet.AuthorityCapabilities) error {
	if caps.Epoch != s.Epoch() {
		return fmt.Errorf("capabilities for epoch %d stored in epoch %d", caps.Epoch, s.Epoch())
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.Capabilities()
	if err != nil {
		return err
	}
	all[caps.Authority] = caps
	return insert(s.db, capabilitiesKey, all)
}

func (s *EpochStore) HasCapabilities(authority dwallet.AuthorityName) (bool, error) {
	all, err := s.Capabilities()
	if err != nil {
		return false, err
	}
	_, ok := all[authority]
	return ok, nil
}

func (s *EpochStore) Capabilities() (map[dwallet.AuthorityName]*dwallet.AuthorityCapabilities, error) {
	all := make(map[dwallet.AuthorityName]*dwallet.AuthorityCapabilities)
	err := retrieve(s.db, capabilitiesKey, &all)
	if errors.Is(err, storage.ErrNotFound) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve capabilities: %w", err)
	}
	return all, nil
}

func (s *EpochStore) SetProtocolUpgradePending(version dwallet.ProtocolVersion) error {
	return s.db.Set(upgradePendingKey, encodedUint64(uint64(version)), pebble.Sync)
}

func (s *EpochStore) ProtocolUpgradePending() (bool, error) {
	ok, err := exists(s.db, upgradePendingKey)
	if err != nil {
		return false, fmt.Errorf("could not check protocol upgrade flag: %w", err)
	}
	return ok, nil
}

func (s *EpochStore) InstallOutputsVerifier(verifier storage.OutputsVerifier) {
	s.verifierMu.Lock()
	defer s.verifierMu.Unlock()
	s.verifier = verifier
}

func (s *EpochStore) OutputsVerifier() storage.OutputsVerifier {
	s.verifierMu.RLock()
	defer s.verifierMu.RUnlock()
	return s.verifier
}

func (s *EpochStore) StoreVerifiedOutput(output *dwallet.MPCOutput) error {
	key := append([]byte{codeVerifiedOutput}, output.SessionID[:]...)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	found, err := exists(s.db, key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("output for session %s: %w", output.SessionID, storage.ErrAlreadyExists)
	}

	count, err := s.verifiedOutputs()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	err = insert(batch, key, output)
	if err != nil {
		return err
	}
	err = batch.Set(verifiedCountKey, encodedUint64(count+1), nil)
	if err != nil {
		return fmt.Errorf("could not update output count: %w", err)
	}
	return batch.Commit(pebble.Sync)
}

func (s *EpochStore) VerifiedOutputs() (uint64, error) {
	return s.verifiedOutputs()
}

func (s *EpochStore) verifiedOutputs() (uint64, error) {
	count, err := retrieveUint64(s.db, verifiedCountKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	return count, err
}

func (s *EpochStore) SetLastBuiltSequence(kind dwallet.BatchKind, sequence uint64) error {
	return s.db.Set([]byte{codeLastBuiltSequence, byte(kind)}, encodedUint64(sequence), pebble.Sync)
}

func (s *EpochStore) LastBuiltSequence(kind dwallet.BatchKind) (uint64, error) {
	return retrieveUint64(s.db, []byte{codeLastBuiltSequence, byte(kind)})
}
