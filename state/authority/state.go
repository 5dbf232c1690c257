// Package authority owns the per-epoch store of the node and swaps it at reconfiguration.
package authority

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/state"
	"github.com/dwallet-network/dwallet-node/state/epoch"
	"github.com/dwallet-network/dwallet-node/storage"
	"github.com/dwallet-network/dwallet-node/storage/pebble"
)

// StoreOpener opens the epoch store for a state snapshot. The returned store holds one reference.
type StoreOpener func(state *epoch.State) (storage.EpochStore, error)

// PebbleOpener opens epoch stores below dataDir.
func PebbleOpener(dataDir string, cacheSize int64) StoreOpener {
	return func(state *epoch.State) (storage.EpochStore, error) {
		return pebble.OpenEpochStore(dataDir, state, cacheSize)
	}
}

// State is the authority-wide state of the node. It holds exactly one current epoch store.
type State struct {
	log  zerolog.Logger
	name dwallet.AuthorityName
	open StoreOpener

	mu    sync.RWMutex
	store storage.EpochStore
}

// New opens the store of the initial epoch.
func New(log zerolog.Logger, name dwallet.AuthorityName, initial *epoch.State, open StoreOpener) (*State, error) {
	store, err := open(initial)
	if err != nil {
		return nil, fmt.Errorf("could not open store of initial epoch %d: %w", initial.Epoch(), err)
	}
	return &State{
		log:   log.With().Str("component", "authority_state").Logger(),
		name:  name,
		open:  open,
		store: store,
	}, nil
}

// Name returns the authority name of this node.
func (s *State) Name() dwallet.AuthorityName {
	return s.name
}

// LoadEpochStore returns the current epoch store with an additional reference taken on it.
// The caller must Release the store when done.
func (s *State) LoadEpochStore() (storage.EpochStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	err := s.store.Acquire()
	if err != nil {
		return nil, fmt.Errorf("could not load epoch store: %w", err)
	}
	return s.store, nil
}

// CurrentEpoch returns the epoch of the current store.
func (s *State) CurrentEpoch() dwallet.EpochID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Epoch()
}

// Reconfigure opens the store of next and makes it current. The authority's reference on the
// previous store is dropped after the swap; the previous database stays open until every
// other holder has released it as well. The new store is returned with an additional
// reference the caller must Release.
// Expected errors during normal operations:
//   - state.InvalidEpochTransitionError if next is not the epoch following the current one
func (s *State) Reconfigure(next *epoch.State) (storage.EpochStore, error) {
	s.mu.RLock()
	current := s.store.Epoch()
	s.mu.RUnlock()

	if next.Epoch() != current+1 {
		return nil, state.NewInvalidEpochTransitionErrorf("cannot reconfigure from epoch %d to epoch %d", current, next.Epoch())
	}

	store, err := s.open(next)
	if err != nil {
		return nil, fmt.Errorf("could not open store of epoch %d: %w", next.Epoch(), err)
	}
	err = store.Acquire()
	if err != nil {
		// the store is not published, drop the reference taken by open
		releaseErr := store.Release()
		if releaseErr != nil {
			s.log.Warn().Err(releaseErr).Uint64("epoch", uint64(next.Epoch())).Msg("could not release unused epoch store")
		}
		return nil, fmt.Errorf("could not acquire new epoch store: %w", err)
	}

	s.mu.Lock()
	previous := s.store
	s.store = store
	s.mu.Unlock()

	err = previous.Release()
	if err != nil {
		s.log.Warn().Err(err).Uint64("epoch", uint64(previous.Epoch())).Msg("could not release previous epoch store")
	}

	s.log.Info().
		Uint64("previous_epoch", uint64(current)).
		Uint64("epoch", uint64(next.Epoch())).
		Msg("authority state reconfigured")

	return store, nil
}

// Close releases the authority's reference on the current store.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Release()
}
