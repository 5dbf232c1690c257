package pebble

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
	"github.com/dwallet-network/dwallet-node/storage"
)

func handleError(err error, t interface{}) error {
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("could not retrieve %T: %w", t, err)
	}
	return nil
}

// retrieve reads the value under key and decodes it into entity.
func retrieve(db *pebble.DB, key []byte, entity interface{}) error {
	val, closer, err := db.Get(key)
	if err != nil {
		return handleError(err, entity)
	}
	defer closer.Close()

	err = cbor.DecMode.Unmarshal(val, entity)
	if err != nil {
		return fmt.Errorf("could not decode %T: %w", entity, err)
	}
	return nil
}

// insert encodes entity and writes it under key.
func insert(w pebble.Writer, key []byte, entity interface{}) error {
	val, err := cbor.EncMode.Marshal(entity)
	if err != nil {
		return fmt.Errorf("could not encode %T: %w", entity, err)
	}
	err = w.Set(key, val, pebble.Sync)
	if err != nil {
		return fmt.Errorf("could not store %T: %w", entity, err)
	}
	return nil
}

func exists(db *pebble.DB, key []byte) (bool, error) {
	_, closer, err := db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not check key: %w", err)
	}
	closer.Close()
	return true, nil
}

func encodedUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func retrieveUint64(db *pebble.DB, key []byte) (uint64, error) {
	val, closer, err := db.Get(key)
	if err != nil {
		return 0, handleError(err, uint64(0))
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("invalid uint64 value length %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
