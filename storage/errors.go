package storage

import (
	"errors"
)

var (
	// Note: there are other not found errors: pebble.ErrNotFound and badger.ErrKeyNotFound.
	// Stores in storage/pebble and storage/badger translate them into storage.ErrNotFound.
	ErrNotFound = errors.New("key not found")

	ErrAlreadyExists = errors.New("key already exists")
	ErrDataMismatch  = errors.New("data for key is different")

	// ErrStoreClosed is returned by an epoch store whose last reference has been released.
	ErrStoreClosed = errors.New("epoch store is closed")
)
