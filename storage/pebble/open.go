package pebble

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/pebble"
	"github.com/hashicorp/go-multierror"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/state/epoch"
	"github.com/dwallet-network/dwallet-node/storage"
)

// EpochsDir is the directory holding one database per epoch below the node data directory.
const EpochsDir = "epochs"

// EpochDir returns the database directory of epoch below root.
func EpochDir(root string, epochID dwallet.EpochID) string {
	return filepath.Join(root, EpochsDir, strconv.FormatUint(uint64(epochID), 10))
}

// OpenEpochDB opens the pebble database at dir.
func OpenEpochDB(dir string, cacheSize int64) (*pebble.DB, error) {
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache: cache,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	return db, nil
}

// bootstrapEpochState writes state to a fresh database, or checks that an existing database
// belongs to the same epoch.
func bootstrapEpochState(db *pebble.DB, state *epoch.State) error {
	var stored epoch.EncodableState
	err := retrieve(db, epochStateKey, &stored)
	if errors.Is(err, storage.ErrNotFound) {
		return insert(db, epochStateKey, state.Encodable())
	}
	if err != nil {
		return fmt.Errorf("could not read stored epoch state: %w", err)
	}
	if stored.StartConfig.Epoch != state.Epoch() {
		return fmt.Errorf("database holds epoch %d, expected %d: %w", stored.StartConfig.Epoch, state.Epoch(), storage.ErrDataMismatch)
	}
	return nil
}

// OpenEpochStore opens (creating if needed) the store of state's epoch below root.
// The returned store holds one reference.
func OpenEpochStore(root string, state *epoch.State, cacheSize int64) (*EpochStore, error) {
	db, err := OpenEpochDB(EpochDir(root, state.Epoch()), cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open store for epoch %d: %w", state.Epoch(), err)
	}

	err = bootstrapEpochState(db, state)
	if err != nil {
		dbErr := db.Close()
		if dbErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to close db: %w", dbErr))
		}
		return nil, fmt.Errorf("failed to bootstrap store for epoch %d: %w", state.Epoch(), err)
	}

	return NewEpochStore(db, state), nil
}
