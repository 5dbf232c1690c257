package pebble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/state/epoch"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

// RunWithEpochStore opens a store for state in a temporary directory and releases it after f returns.
func RunWithEpochStore(tb testing.TB, state *epoch.State, f func(store *EpochStore)) {
	unittest.RunWithTempDir(tb, func(dir string) {
		store, err := OpenEpochStore(dir, state, 1<<20)
		require.NoError(tb, err)

		f(store)

		if store.Refs() > 0 {
			require.NoError(tb, store.Release())
		}
	})
}
