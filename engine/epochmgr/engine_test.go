package epochmgr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dwallet-network/dwallet-node/engine/common/stop"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/broadcast"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	mockmodule "github.com/dwallet-network/dwallet-node/module/mock"
	"github.com/dwallet-network/dwallet-node/module/settlement"
	"github.com/dwallet-network/dwallet-node/module/taskset"
	"github.com/dwallet-network/dwallet-node/module/watch"
	"github.com/dwallet-network/dwallet-node/network/p2p"
	"github.com/dwallet-network/dwallet-node/state/authority"
	bstorage "github.com/dwallet-network/dwallet-node/storage/badger"
	pstorage "github.com/dwallet-network/dwallet-node/storage/pebble"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Consensus.SubmitDelayStep = time.Millisecond
	cfg.MPC.PollInterval = 10 * time.Millisecond
	cfg.RestartBaseDelay = 10 * time.Millisecond
	cfg.RestartMaxDelay = 50 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	cfg.EpochStoreDir = filepath.Join(dir, pstorage.EpochsDir)
	return cfg
}

func testChannels(log zerolog.Logger) Channels {
	committee, _ := watch.New[*dwallet.Committee](nil)
	keys, _ := watch.New[dwallet.NetworkKeys](dwallet.NetworkKeys{})
	peers, _ := watch.New[p2p.TrustedPeerChange](p2p.TrustedPeerChange{})
	return Channels{
		EpochChange:   broadcast.NewChannel[*dwallet.SystemInner](4),
		NextCommittee: committee,
		NetworkKeys:   keys,
		TrustedPeers:  peers,
		Shutdown:      stop.NewShutdownSignal(log),
	}
}

// withSelf returns a committee fixture of n other members, plus self if member is set.
func withSelf(epochID dwallet.EpochID, n int, self dwallet.AuthorityName, member bool) *dwallet.Committee {
	if !member {
		return unittest.CommitteeFixture(epochID, n)
	}
	return unittest.CommitteeFixture(epochID, n, unittest.AuthorityFixture(unittest.WithName(self)))
}

// blockUntilDone is a RunEpoch hook which blocks until the context is cancelled.
func blockUntilDone(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

type EngineSuite struct {
	suite.Suite

	log   zerolog.Logger
	dir   string
	self  dwallet.AuthorityName
	db    *badger.DB
	state *authority.State

	oracle    *mockmodule.SettlementChainOracle
	consensus *mockmodule.ConsensusEngine
	client    *mockmodule.ConsensusClient
	signer    *mockmodule.Signer
	keys      *mockmodule.NetworkKeyProtocol
	stateSync *mockmodule.StateSyncSink

	channels Channels
	engine   *Engine

	ctx    *irrecoverable.MockSignalerContext
	cancel context.CancelFunc
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.cancel, s.engine, s.state = nil, nil, nil
	s.log = unittest.Logger()
	s.dir = unittest.TempDir(s.T())
	s.self = unittest.AuthorityNameFixture()
	s.db = unittest.BadgerDB(s.T(), filepath.Join(s.dir, "sequenced"))

	s.oracle = mockmodule.NewSettlementChainOracle(s.T())
	s.consensus = mockmodule.NewConsensusEngine(s.T())
	s.client = mockmodule.NewConsensusClient(s.T())
	s.signer = mockmodule.NewSigner(s.T())
	s.keys = mockmodule.NewNetworkKeyProtocol(s.T())
	s.stateSync = mockmodule.NewStateSyncSink(s.T())

	s.consensus.On("Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(s.client, nil).Maybe()
	s.consensus.On("Shutdown", mock.Anything).Return(nil).Maybe()

	s.channels = testChannels(s.log)
}

func (s *EngineSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
		unittest.RequireComponentsDoneBefore(s.T(), 5*time.Second, s.engine)
	}
	if s.state != nil {
		s.Require().NoError(s.state.Close())
	}
	s.Require().NoError(s.db.Close())
	s.Require().NoError(os.RemoveAll(s.dir))
}

// initialize opens the authority state at epoch 0 with committee and creates the engine.
func (s *EngineSuite) initialize(committee *dwallet.Committee, runWithRange *stop.RunWithRange) {
	var err error
	s.state, err = authority.New(s.log, s.self, unittest.EpochStateFixture(0, committee), authority.PebbleOpener(s.dir, 1<<20))
	s.Require().NoError(err)

	s.engine = New(s.log, testConfig(s.dir), Dependencies{
		Authority:    s.state,
		Oracle:       settlement.NewRetryingOracle(s.log, s.oracle, settlement.DefaultRetryConfig()),
		Consensus:    s.consensus,
		Signer:       s.signer,
		KeyProtocol:  s.keys,
		Checkpoints:  bstorage.NewSequencedStore(s.db, dwallet.CheckpointBatch),
		Params:       bstorage.NewSequencedStore(s.db, dwallet.ParamsBatch),
		StateSync:    s.stateSync,
		Connections:  p2p.NewConnectionMonitor(s.log),
		Encoder:      cbor.NewEncoder(),
		Metrics:      NoopMetrics(),
		RunWithRange: runWithRange,
	}, s.channels)
}

func (s *EngineSuite) start() {
	s.ctx, s.cancel = irrecoverable.NewMockSignalerContextWithCancel(s.T(), context.Background())
	s.engine.Start(s.ctx)
	unittest.RequireComponentsReadyBefore(s.T(), time.Second, s.engine)
}

// completeEpoch expects epoch to complete with next as the following committee.
func (s *EngineSuite) completeEpoch(epochID dwallet.EpochID, next *dwallet.Committee) {
	s.oracle.On("RunEpoch", mock.Anything, epochID, mock.Anything).Return(module.EpochComplete(next), nil).Once()
	s.oracle.On("GetSystemInner", mock.Anything).Return(unittest.SystemInnerFixture(next.Epoch, next), nil).Once()
	s.oracle.On("GetCoordinatorInner", mock.Anything).Return(unittest.CoordinatorInnerFixture(next.Epoch, 0), nil).Once()
}

// reachEpoch expects epoch to run until the engine shuts down. The returned channel is closed
// once the loop waits on epoch.
func (s *EngineSuite) reachEpoch(epochID dwallet.EpochID) <-chan struct{} {
	reached := make(chan struct{})
	s.oracle.On("RunEpoch", mock.Anything, epochID, mock.Anything).
		Run(func(args mock.Arguments) {
			close(reached)
			blockUntilDone(args)
		}).
		Return(module.EpochResult{}, context.Canceled).
		Once()
	return reached
}

// TestContinue checks that a validator staying in the committee replaces its components
// exactly once and keeps the consensus manager and adapter.
func (s *EngineSuite) TestContinue() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	s.initialize(withSelf(0, 3, s.self, true), nil)

	var previous *ValidatorComponents
	next := withSelf(1, 3, s.self, true)
	s.oracle.On("RunEpoch", mock.Anything, dwallet.EpochID(0), mock.Anything).
		Run(func(mock.Arguments) { previous = s.engine.ValidatorComponents() }).
		Return(module.EpochComplete(next), nil).
		Once()
	s.oracle.On("GetSystemInner", mock.Anything).Return(unittest.SystemInnerFixture(1, next), nil).Once()
	s.oracle.On("GetCoordinatorInner", mock.Anything).Return(unittest.CoordinatorInnerFixture(1, 0), nil).Once()
	reached := s.reachEpoch(1)
	s.start()

	unittest.RequireCloseBefore(s.T(), reached, 5*time.Second, "epoch 1 not reached")

	comps := s.engine.ValidatorComponents()
	s.Require().NotNil(comps)
	s.Require().NotNil(previous)
	s.Assert().NotSame(previous, comps)
	s.Assert().Same(previous.ConsensusManager, comps.ConsensusManager)
	s.Assert().Same(previous.ConsensusAdapter, comps.ConsensusAdapter)
	s.Assert().True(s.engine.IsValidator())
	s.Assert().Equal(dwallet.EpochID(1), comps.Epoch)
	s.Assert().Equal(dwallet.EpochID(1), s.engine.CurrentEpoch())
	s.Assert().True(comps.ConsensusManager.IsRunning())
	adapterEpoch, ok := comps.ConsensusAdapter.Epoch()
	s.Require().True(ok)
	s.Assert().Equal(dwallet.EpochID(1), adapterEpoch)

	s.consensus.AssertNumberOfCalls(s.T(), "Start", 2)
	s.consensus.AssertNumberOfCalls(s.T(), "Shutdown", 1)
	// one capability announcement per epoch
	s.client.AssertNumberOfCalls(s.T(), "Submit", 2)

	s.Assert().Equal(dwallet.EpochID(1), s.channels.NextCommittee.Borrow().Epoch)
}

// requireDrained asserts every task of tasks was aborted and terminated regularly.
func (s *EngineSuite) requireDrained(tasks *taskset.TaskSet) {
	s.Require().True(tasks.Aborted())
	for _, res := range tasks.Join() {
		s.Assert().Contains([]taskset.Outcome{taskset.Completed, taskset.Cancelled}, res.Outcome, "task %s", res.Name)
	}
}

// TestDemote checks that a validator leaving the committee drains its components and runs as
// a fullnode afterwards.
func (s *EngineSuite) TestDemote() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	s.initialize(withSelf(0, 3, s.self, true), nil)

	var previous *ValidatorComponents
	next := withSelf(1, 3, s.self, false)
	s.oracle.On("RunEpoch", mock.Anything, dwallet.EpochID(0), mock.Anything).
		Run(func(mock.Arguments) { previous = s.engine.ValidatorComponents() }).
		Return(module.EpochComplete(next), nil).
		Once()
	s.oracle.On("GetSystemInner", mock.Anything).Return(unittest.SystemInnerFixture(1, next), nil).Once()
	s.oracle.On("GetCoordinatorInner", mock.Anything).Return(unittest.CoordinatorInnerFixture(1, 0), nil).Once()
	reached := s.reachEpoch(1)
	s.start()

	unittest.RequireCloseBefore(s.T(), reached, 5*time.Second, "epoch 1 not reached")

	s.Assert().False(s.engine.IsValidator())
	s.Assert().Nil(s.engine.ValidatorComponents())
	s.Assert().Equal(dwallet.EpochID(1), s.engine.CurrentEpoch())

	s.Require().NotNil(previous)
	s.requireDrained(previous.checkpointTasks)
	s.requireDrained(previous.paramsTasks)
	unittest.RequireCloseBefore(s.T(), previous.NetworkKeyService.Done(), time.Second, "network key service did not stop")
	s.Assert().False(previous.ConsensusManager.IsRunning())

	s.consensus.AssertNumberOfCalls(s.T(), "Start", 1)
	s.consensus.AssertNumberOfCalls(s.T(), "Shutdown", 1)
	s.client.AssertNumberOfCalls(s.T(), "Submit", 1)
}

// TestPromote checks that a fullnode joining the committee builds every component at the
// boundary and announces its capabilities.
func (s *EngineSuite) TestPromote() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	s.initialize(withSelf(0, 3, s.self, false), nil)

	s.oracle.On("RunEpoch", mock.Anything, dwallet.EpochID(0), mock.Anything).
		Run(func(mock.Arguments) {
			s.Assert().False(s.engine.IsValidator())
			s.consensus.AssertNotCalled(s.T(), "Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}).
		Return(module.EpochComplete(withSelf(1, 3, s.self, true)), nil).
		Once()
	s.oracle.On("GetSystemInner", mock.Anything).Return(unittest.SystemInnerFixture(1, unittest.CommitteeFixture(1, 1)), nil).Once()
	s.oracle.On("GetCoordinatorInner", mock.Anything).Return(unittest.CoordinatorInnerFixture(1, 0), nil).Once()
	reached := s.reachEpoch(1)
	s.start()

	unittest.RequireCloseBefore(s.T(), reached, 5*time.Second, "epoch 1 not reached")

	comps := s.engine.ValidatorComponents()
	s.Require().NotNil(comps)
	s.Assert().Equal(dwallet.EpochID(1), comps.Epoch)

	// consensus manager and adapter
	s.Require().NotNil(comps.ConsensusManager)
	s.Require().NotNil(comps.ConsensusAdapter)
	s.Assert().True(comps.ConsensusManager.IsRunning())

	// pruner
	s.Assert().NotNil(comps.Pruner)

	// checkpoint and params services, each with a builder and an aggregator
	s.Require().NotNil(comps.CheckpointService)
	s.Require().NotNil(comps.ParamsService)
	s.Assert().Equal(2, comps.checkpointTasks.Len())
	s.Assert().Equal(2, comps.paramsTasks.Len())
	s.Assert().False(comps.checkpointTasks.Aborted())
	s.Assert().False(comps.paramsTasks.Aborted())

	// outputs verifier installed in the epoch store
	store, err := s.state.LoadEpochStore()
	s.Require().NoError(err)
	s.Assert().Same(comps.OutputsVerifier, store.OutputsVerifier())
	s.Require().NoError(store.Release())

	// network key service still running
	s.Require().NotNil(comps.NetworkKeyService)
	select {
	case <-comps.NetworkKeyService.Done():
		s.Fail("network key service stopped")
	default:
	}

	// low scoring and throughput shared with the adapter
	s.Require().NotNil(comps.LowScoring)
	s.Require().NotNil(comps.Throughput)
	s.Assert().Same(comps.LowScoring, comps.ConsensusAdapter.LowScoring())

	s.consensus.AssertNumberOfCalls(s.T(), "Start", 1)
	s.consensus.AssertNotCalled(s.T(), "Shutdown", mock.Anything)
	s.client.AssertNumberOfCalls(s.T(), "Submit", 1)
}

// TestTeardownPanicPropagates checks that a task panicking while the components are drained
// at a boundary is re-raised out of the epoch loop, and that the stopped components are no
// longer published.
func (s *EngineSuite) TestTeardownPanicPropagates() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	s.initialize(withSelf(0, 3, s.self, true), nil)

	var previous *ValidatorComponents
	next := withSelf(1, 3, s.self, true)
	s.oracle.On("RunEpoch", mock.Anything, dwallet.EpochID(0), mock.Anything).
		Run(func(mock.Arguments) {
			previous = s.engine.ValidatorComponents()
			previous.checkpointTasks.Spawn("faulty", func(ctx context.Context) error {
				<-ctx.Done()
				panic("state sync sink corrupted")
			})
		}).
		Return(module.EpochComplete(next), nil).
		Once()
	s.oracle.On("GetSystemInner", mock.Anything).Return(unittest.SystemInnerFixture(1, next), nil).Once()
	s.oracle.On("GetCoordinatorInner", mock.Anything).Return(unittest.CoordinatorInnerFixture(1, 0), nil).Once()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(s.T(), context.Background())
	defer cancel()

	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		_, _ = s.engine.runOnce(ctx)
	}()

	s.Require().NotNil(recovered, "teardown panic was swallowed")
	panicErr, ok := recovered.(*taskset.PanicError)
	s.Require().True(ok, "unexpected panic value %v", recovered)
	s.Assert().Equal("faulty", panicErr.Task)
	s.Assert().Equal("state sync sink corrupted", panicErr.Value)

	s.Assert().Nil(s.engine.ValidatorComponents())
	s.Assert().False(s.engine.IsValidator())
	// the boundary was not crossed
	s.Assert().Equal(dwallet.EpochID(0), s.engine.CurrentEpoch())
	s.oracle.AssertNotCalled(s.T(), "RunEpoch", mock.Anything, dwallet.EpochID(1), mock.Anything)

	// stop what the aborted teardown left running
	previous.paramsTasks.AbortAndDrain(s.log)
	previous.mpcExit.Close()
	unittest.RequireCloseBefore(s.T(), previous.NetworkKeyService.Done(), time.Second, "network key service did not stop")
	s.Require().NoError(previous.ConsensusManager.Shutdown(context.Background()))
	previous.OutputsVerifier.Close()
	s.Require().NoError(previous.store.Release())
}

// TestRunWithRange checks that a stop directive tears down the components, sends the
// shutdown signal once and ends the loop.
func (s *EngineSuite) TestRunWithRange() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	condition := stop.UntilEpoch(0)
	s.initialize(withSelf(0, 3, s.self, true), condition)

	s.oracle.On("RunEpoch", mock.Anything, dwallet.EpochID(0), condition).
		Return(module.RunWithRangeCondition(condition), nil).
		Once()
	s.start()

	unittest.RequireCloseBefore(s.T(), s.channels.Shutdown.Done(), 5*time.Second, "shutdown signal not sent")
	s.Assert().Equal(condition, s.channels.Shutdown.Reason())

	// the loop returned regularly, so the worker exits without cancellation
	unittest.RequireCloseBefore(s.T(), s.engine.Done(), 5*time.Second, "engine did not stop")
	s.Assert().False(s.engine.IsValidator())
	s.consensus.AssertNumberOfCalls(s.T(), "Shutdown", 1)
	s.oracle.AssertNotCalled(s.T(), "GetSystemInner", mock.Anything)
}

// TestRestartAfterSubmitFailure checks that a failed capability announcement restarts the
// loop, which reuses the running components and announces again.
func (s *EngineSuite) TestRestartAfterSubmitFailure() {
	s.client.On("Submit", mock.Anything, mock.Anything).Return(errors.New("consensus unavailable")).Once()
	s.client.On("Submit", mock.Anything, mock.Anything).Return(nil)
	s.initialize(withSelf(0, 3, s.self, true), nil)

	reached := s.reachEpoch(0)
	s.start()

	unittest.RequireCloseBefore(s.T(), reached, 5*time.Second, "epoch 0 not reached after restart")
	s.client.AssertNumberOfCalls(s.T(), "Submit", 2)
	s.consensus.AssertNumberOfCalls(s.T(), "Start", 1)
	s.Assert().True(s.engine.IsValidator())
}

// TestNoAnnouncementWhileUpgradePending checks that capabilities are not announced once a
// protocol upgrade was agreed in the epoch.
func (s *EngineSuite) TestNoAnnouncementWhileUpgradePending() {
	s.initialize(withSelf(0, 3, s.self, true), nil)

	store, err := s.state.LoadEpochStore()
	s.Require().NoError(err)
	s.Require().NoError(store.SetProtocolUpgradePending(dwallet.MaxSupportedProtocolVersion))
	s.Require().NoError(store.Release())

	reached := s.reachEpoch(0)
	s.start()

	unittest.RequireCloseBefore(s.T(), reached, 5*time.Second, "epoch 0 not reached")
	s.client.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func TestPruneRoots(t *testing.T) {
	e := &Engine{cfg: Config{ConsensusDir: "/data/consensus/", EpochStoreDir: ""}}
	require.Equal(t, []string{"/data/consensus"}, e.pruneRoots())

	e.cfg.EpochStoreDir = "/data/epochs"
	require.Equal(t, []string{"/data/consensus", "/data/epochs"}, e.pruneRoots())
}
