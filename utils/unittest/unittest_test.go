package unittest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgerDB_CreatesMissingDirectory(t *testing.T) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, filepath.Join(dir, "run-1", "sequenced"))
		require.NoError(t, db.Close())
	})
}
