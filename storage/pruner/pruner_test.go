package pruner

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func makeEpochDirs(t *testing.T, root string, epochs ...uint64) {
	for _, epoch := range epochs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, strconv.FormatUint(epoch, 10)), 0o755))
	}
}

func listDirs(t *testing.T, root string) []string {
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestPruneOnce(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		consensus := filepath.Join(dir, "consensus")
		epochs := filepath.Join(dir, "epochs")
		makeEpochDirs(t, consensus, 1, 2, 3, 4, 5)
		makeEpochDirs(t, epochs, 3, 4, 5)
		// unrelated entries are left alone
		require.NoError(t, os.MkdirAll(filepath.Join(consensus, "wal"), 0o755))

		cfg := DefaultConfig()
		cfg.RetentionEpochs = 1
		cfg.ThrottleDelay = 0
		p := New(unittest.Logger(), cfg, 5, consensus, epochs, filepath.Join(dir, "missing"))

		removed, err := p.PruneOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, removed)
		assert.ElementsMatch(t, []string{"4", "5", "wal"}, listDirs(t, consensus))
		assert.ElementsMatch(t, []string{"4", "5"}, listDirs(t, epochs))

		// nothing left to prune until the epoch advances
		removed, err = p.PruneOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		p.SetEpoch(6)
		removed, err = p.PruneOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		assert.Equal(t, uint64(6), p.Pruned())
	})
}

func TestPruneOnce_WithinRetention(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		makeEpochDirs(t, dir, 0, 1)

		p := New(unittest.Logger(), DefaultConfig(), 2, dir)
		removed, err := p.PruneOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})
}

// TestPruner_Periodic verifies the started pruner removes directories on its own and stops on cancel.
func TestPruner_Periodic(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		makeEpochDirs(t, dir, 0, 1, 2, 3, 4)

		cfg := DefaultConfig()
		cfg.Period = 10 * time.Millisecond
		cfg.ThrottleDelay = 0
		p := New(unittest.Logger(), cfg, 4, dir)

		ctx, cancel := context.WithCancel(context.Background())
		signalerCtx := irrecoverable.NewMockSignalerContext(t, ctx)
		p.Start(signalerCtx)
		unittest.RequireCloseBefore(t, p.Ready(), time.Second, "pruner not ready")

		require.Eventually(t, func() bool {
			return p.Pruned() == 2
		}, time.Second, 10*time.Millisecond)

		cancel()
		unittest.RequireCloseBefore(t, p.Done(), time.Second, "pruner did not stop")
	})
}
