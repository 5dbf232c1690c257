package scaffold

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
)

// InitPerpetualDB opens the database of certified checkpoints and params messages at dir.
func InitPerpetualDB(dir string) (*badger.DB, error) {
	// Pre-create DB path
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("could not create perpetual db (path: %s): %w", dir, err)
	}

	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open perpetual db (path: %s): %w", dir, err)
	}
	return db, nil
}

// InitDataDirs creates the directories of the node below its data directory.
func InitDataDirs(dirs ...string) error {
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}
	return nil
}
