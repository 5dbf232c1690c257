package epochmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dwallet-network/dwallet-node/engine/common/stop"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	mockmodule "github.com/dwallet-network/dwallet-node/module/mock"
	"github.com/dwallet-network/dwallet-node/module/settlement"
	"github.com/dwallet-network/dwallet-node/network/p2p"
	"github.com/dwallet-network/dwallet-node/state/authority"
	"github.com/dwallet-network/dwallet-node/storage"
	bstorage "github.com/dwallet-network/dwallet-node/storage/badger"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

// countingConsensus is a consensus engine which tracks how many instances are running.
type countingConsensus struct {
	mu      sync.Mutex
	live    int
	maxLive int
	starts  int
}

func (c *countingConsensus) Start(context.Context, storage.EpochStore, module.ConsensusHandler, module.TransactionValidator) (module.ConsensusClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live++
	c.starts++
	if c.live > c.maxLive {
		c.maxLive = c.live
	}
	return c, nil
}

func (c *countingConsensus) Shutdown(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live--
	return nil
}

func (c *countingConsensus) Submit(context.Context, [][]byte) error {
	return nil
}

// scriptedOracle completes the epochs of a fixed list of committees and stops the node in the
// last one. It records whether the engine ran validator components in every epoch.
type scriptedOracle struct {
	committees []*dwallet.Committee
	engine     func() *Engine

	mu         sync.Mutex
	next       dwallet.EpochID
	validating map[dwallet.EpochID]bool
}

func (o *scriptedOracle) RunEpoch(_ context.Context, epochID dwallet.EpochID, _ *stop.RunWithRange) (module.EpochResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.validating[epochID] = o.engine().IsValidator()
	if int(epochID)+1 >= len(o.committees) {
		return module.RunWithRangeCondition(stop.UntilEpoch(epochID)), nil
	}
	o.next = epochID + 1
	return module.EpochComplete(o.committees[o.next]), nil
}

func (o *scriptedOracle) GetSystemInner(context.Context) (*dwallet.SystemInner, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return unittest.SystemInnerFixture(o.next, o.committees[o.next]), nil
}

func (o *scriptedOracle) GetCoordinatorInner(context.Context) (*dwallet.CoordinatorInner, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return unittest.CoordinatorInnerFixture(o.next, 0), nil
}

// TestEngine_MembershipProperty runs the loop through random membership sequences. In every
// epoch the node runs validator components exactly when it is a committee member, and never
// more than one consensus instance is alive.
func TestEngine_MembershipProperty(t *testing.T) {
	log := unittest.Logger()
	root := unittest.TempDir(t)
	defer os.RemoveAll(root)

	run := 0
	rapid.Check(t, func(rt *rapid.T) {
		membership := rapid.SliceOfN(rapid.Bool(), 1, 5).Draw(rt, "membership")
		run++
		dir := filepath.Join(root, fmt.Sprintf("run-%d", run))
		require.NoError(rt, os.MkdirAll(dir, 0o700))

		self := unittest.AuthorityNameFixture()
		committees := make([]*dwallet.Committee, 0, len(membership))
		for i, member := range membership {
			committees = append(committees, withSelf(dwallet.EpochID(i), 3, self, member))
		}

		db := unittest.BadgerDB(t, filepath.Join(dir, "sequenced"))
		defer db.Close()
		state, err := authority.New(log, self, unittest.EpochStateFixture(0, committees[0]), authority.PebbleOpener(dir, 1<<20))
		require.NoError(rt, err)
		defer state.Close()

		signer := mockmodule.NewSigner(t)
		signer.On("Sign", mock.Anything).Return([]byte("signature"), nil).Maybe()
		consensus := &countingConsensus{}
		channels := testChannels(log)

		var engine *Engine
		oracle := &scriptedOracle{
			committees: committees,
			engine:     func() *Engine { return engine },
			validating: make(map[dwallet.EpochID]bool),
		}
		engine = New(log, testConfig(dir), Dependencies{
			Authority:    state,
			Oracle:       settlement.NewRetryingOracle(log, oracle, settlement.DefaultRetryConfig()),
			Consensus:    consensus,
			Signer:       signer,
			KeyProtocol:  mockmodule.NewNetworkKeyProtocol(t),
			Checkpoints:  bstorage.NewSequencedStore(db, dwallet.CheckpointBatch),
			Params:       bstorage.NewSequencedStore(db, dwallet.ParamsBatch),
			StateSync:    mockmodule.NewStateSyncSink(t),
			Connections:  p2p.NewConnectionMonitor(log),
			Encoder:      cbor.NewEncoder(),
			Metrics:      NoopMetrics(),
			RunWithRange: stop.UntilEpoch(dwallet.EpochID(len(committees) - 1)),
		}, channels)

		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		defer cancel()
		require.NoError(rt, engine.Run(ctx))

		for i, member := range membership {
			require.Equal(rt, member, oracle.validating[dwallet.EpochID(i)], "epoch %d", i)
		}
		require.False(rt, engine.IsValidator())
		require.LessOrEqual(rt, consensus.maxLive, 1)
		require.Equal(rt, 0, consensus.live)

		// a fresh instance for every member epoch, also when the node stays in the committee
		members := 0
		for _, member := range membership {
			if member {
				members++
			}
		}
		require.Equal(rt, members, consensus.starts)

		select {
		case <-channels.Shutdown.Done():
		default:
			rt.Fatalf("shutdown signal not sent")
		}
	})
}
