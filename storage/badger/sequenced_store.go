package badger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v2"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/storage"
	"github.com/dwallet-network/dwallet-node/storage/badger/operation"
)

// SequencedStore persists the certified batches of one kind. Batches survive across epochs
// so that sequence numbering continues where the previous epoch stopped.
type SequencedStore struct {
	db    *badger.DB
	kind  dwallet.BatchKind
	cache *Cache[uint64, *dwallet.CertifiedBatch]

	// storeMu serializes the gap check with the write.
	storeMu sync.Mutex
}

var _ storage.SequencedStore = (*SequencedStore)(nil)

func NewSequencedStore(db *badger.DB, kind dwallet.BatchKind) *SequencedStore {
	retrieve := func(sequence uint64) (*dwallet.CertifiedBatch, error) {
		var batch dwallet.CertifiedBatch
		err := db.View(operation.RetrieveCertifiedBatch(kind, sequence, &batch))
		return &batch, err
	}

	return &SequencedStore{
		db:   db,
		kind: kind,
		cache: newCache[uint64, *dwallet.CertifiedBatch](
			withLimit[uint64, *dwallet.CertifiedBatch](100),
			withRetrieve[uint64, *dwallet.CertifiedBatch](retrieve),
		),
	}
}

func (s *SequencedStore) Store(batch *dwallet.CertifiedBatch) error {
	if batch.Batch.Kind != s.kind {
		return fmt.Errorf("cannot store %s batch in %s store", batch.Batch.Kind, s.kind)
	}
	sequence := batch.Batch.Sequence

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	last, err := s.LastSequence()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// first batch ever, any starting sequence is accepted
	case err != nil:
		return fmt.Errorf("could not read last %s sequence: %w", s.kind, err)
	case sequence <= last:
		return fmt.Errorf("%s %d already stored: %w", s.kind, sequence, storage.ErrAlreadyExists)
	case sequence != last+1:
		return fmt.Errorf("%s %d does not follow %d: %w", s.kind, sequence, last, storage.ErrDataMismatch)
	}

	err = operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		err := operation.InsertCertifiedBatch(batch)(tx)
		if err != nil {
			return fmt.Errorf("could not insert %s %d: %w", s.kind, sequence, err)
		}
		err = operation.UpdateLastSequence(s.kind, sequence)(tx)
		if err != nil {
			return fmt.Errorf("could not update last %s sequence: %w", s.kind, err)
		}
		return nil
	})
	if err != nil {
		return operation.TerminateOnFullDisk(err)
	}

	s.cache.Insert(sequence, batch)
	return nil
}

func (s *SequencedStore) BySequence(sequence uint64) (*dwallet.CertifiedBatch, error) {
	return s.cache.Get(sequence)
}

func (s *SequencedStore) LastSequence() (uint64, error) {
	var sequence uint64
	err := s.db.View(operation.RetrieveLastSequence(s.kind, &sequence))
	if err != nil {
		return 0, err
	}
	return sequence, nil
}
