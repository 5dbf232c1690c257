package checkpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/metrics"
	mockmodule "github.com/dwallet-network/dwallet-node/module/mock"
	"github.com/dwallet-network/dwallet-node/module/taskset"
	"github.com/dwallet-network/dwallet-node/storage"
	bstorage "github.com/dwallet-network/dwallet-node/storage/badger"
	pstorage "github.com/dwallet-network/dwallet-node/storage/pebble"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

// loopbackSubmitter plays consensus: every submitted signature is echoed back to the service
// as if each of the signing authorities had produced it.
type loopbackSubmitter struct {
	mu      sync.Mutex
	service *Service
	signers []dwallet.AuthorityName
}

var _ module.ConsensusSubmitter = (*loopbackSubmitter)(nil)

func (l *loopbackSubmitter) SubmitToConsensus(ctx context.Context, transactions ...*dwallet.ConsensusTransaction) error {
	l.mu.Lock()
	service := l.service
	l.mu.Unlock()

	for _, tx := range transactions {
		for _, name := range l.signers {
			sig := *tx.Signature
			sig.Authority = name
			err := service.HandleSignature(ctx, &sig)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loopbackSubmitter) bind(service *Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.service = service
}

type serviceFixture struct {
	committee *dwallet.Committee
	sequenced storage.SequencedStore
	signer    *mockmodule.Signer
	stateSync *mockmodule.StateSyncSink
	submitter *loopbackSubmitter
}

func newServiceFixture(t *testing.T, db *badger.DB, kind dwallet.BatchKind, committee *dwallet.Committee, signers int) *serviceFixture {
	fx := &serviceFixture{
		committee: committee,
		sequenced: bstorage.NewSequencedStore(db, kind),
		signer:    mockmodule.NewSigner(t),
		stateSync: mockmodule.NewStateSyncSink(t),
		submitter: &loopbackSubmitter{signers: committee.Names()[:signers]},
	}
	fx.signer.On("Sign", mock.Anything).Return([]byte("signature"), nil).Maybe()
	fx.stateSync.On("NotifyCertifiedBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	return fx
}

// start creates the service and spawns its tasks. preload is queued as the content of
// commit 1.
func (fx *serviceFixture) start(t *testing.T, kind dwallet.BatchKind, store storage.EpochStore, lastSequence *uint64, preload ...[]byte) (*Service, *taskset.TaskSet) {
	output := NewOutputSink(fx.committee.Members[0].Name, fx.signer, fx.submitter)
	service, err := NewService(unittest.Logger(), DefaultConfig(), kind, store, fx.sequenced, output, fx.stateSync, metrics.NewNoopCollector(), lastSequence)
	require.NoError(t, err)
	fx.submitter.bind(service)

	for _, msg := range preload {
		require.NoError(t, service.AddMessage(context.Background(), msg))
	}
	service.CommitBoundary(1)
	tasks := taskset.New(context.Background())
	tasks.Spawn("builder", service.buildLoop)
	tasks.Spawn("aggregator", service.aggregateLoop)
	return service, tasks
}

func messages(n int, size int) [][]byte {
	msgs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, unittest.RandomBytes(size))
	}
	return msgs
}

// addCommit queues msgs as the content of commit.
func addCommit(t *testing.T, service *Service, commit uint64, msgs ...[]byte) {
	for _, msg := range msgs {
		require.NoError(t, service.AddMessage(context.Background(), msg))
	}
	service.CommitBoundary(commit)
}

func requireCertifiedUpTo(t *testing.T, service *Service, sequence uint64) {
	require.Eventually(t, func() bool {
		return service.NextSequence() > sequence
	}, 2*time.Second, 5*time.Millisecond, "sequence %d not certified", sequence)
}

func TestService_CertifiesWithQuorum(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		pstorage.RunWithEpochStore(t, unittest.EpochStateFixture(1, committee), func(store *pstorage.EpochStore) {
			fx := newServiceFixture(t, db, dwallet.CheckpointBatch, committee, 3)
			fx.signer.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			service, tasks := fx.start(t, dwallet.CheckpointBatch, store, nil, messages(3, 16)...)
			requireCertifiedUpTo(t, service, 0)
			tasks.AbortAndDrain(unittest.Logger())

			certified, err := fx.sequenced.BySequence(0)
			require.NoError(t, err)
			assert.Len(t, certified.Batch.Messages, 3)
			assert.Len(t, certified.Signatures, 3)
			for _, sig := range certified.Signatures {
				assert.Equal(t, certified.Batch.Digest(), sig.Digest)
			}

			built, err := store.LastBuiltSequence(dwallet.CheckpointBatch)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), built)
			assert.False(t, service.AcceptsSequence(0))
			assert.True(t, service.AcceptsSequence(1))
		})
	})
}

func TestService_NoQuorum(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		pstorage.RunWithEpochStore(t, unittest.EpochStateFixture(1, committee), func(store *pstorage.EpochStore) {
			fx := newServiceFixture(t, db, dwallet.CheckpointBatch, committee, 2)
			fx.signer.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			service, tasks := fx.start(t, dwallet.CheckpointBatch, store, nil)

			addCommit(t, service, 2, unittest.RandomBytes(16))
			require.Eventually(t, func() bool {
				_, err := store.LastBuiltSequence(dwallet.CheckpointBatch)
				return err == nil
			}, time.Second, 5*time.Millisecond)

			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, uint64(0), service.NextSequence())
			tasks.AbortAndDrain(unittest.Logger())

			_, err := fx.sequenced.LastSequence()
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	})
}

func TestService_InvalidSignaturesDropped(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		pstorage.RunWithEpochStore(t, unittest.EpochStateFixture(1, committee), func(store *pstorage.EpochStore) {
			fx := newServiceFixture(t, db, dwallet.CheckpointBatch, committee, 4)
			fx.signer.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(module.ErrInvalidSignature)
			service, tasks := fx.start(t, dwallet.CheckpointBatch, store, nil)

			addCommit(t, service, 2, unittest.RandomBytes(16))
			time.Sleep(100 * time.Millisecond)
			assert.Equal(t, uint64(0), service.NextSequence())
			tasks.AbortAndDrain(unittest.Logger())
		})
	})
}

// TestService_BatchLimits checks that params messages are split at the protocol message limit.
func TestService_BatchLimits(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	state := unittest.EpochStateFixture(1, committee)
	limit := state.ProtocolConfig().MaxMessagesPerParamsMessage

	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		pstorage.RunWithEpochStore(t, state, func(store *pstorage.EpochStore) {
			fx := newServiceFixture(t, db, dwallet.ParamsBatch, committee, 4)
			fx.signer.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			service, tasks := fx.start(t, dwallet.ParamsBatch, store, nil, messages(limit+5, 8)...)
			requireCertifiedUpTo(t, service, 1)
			tasks.AbortAndDrain(unittest.Logger())

			first, err := fx.sequenced.BySequence(0)
			require.NoError(t, err)
			second, err := fx.sequenced.BySequence(1)
			require.NoError(t, err)
			assert.Len(t, first.Batch.Messages, limit)
			assert.Len(t, second.Batch.Messages, 5)
		})
	})
}

// TestService_SequenceContinuesAcrossEpochs checks that numbering is gap free when the service
// of the next epoch is seeded with the last certified sequence.
func TestService_SequenceContinuesAcrossEpochs(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	next := unittest.CommitteeFixture(2, 0, committee.Members...)

	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		fx := newServiceFixture(t, db, dwallet.CheckpointBatch, committee, 4)
		fx.signer.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		pstorage.RunWithEpochStore(t, unittest.EpochStateFixture(1, committee), func(store *pstorage.EpochStore) {
			service, tasks := fx.start(t, dwallet.CheckpointBatch, store, nil)
			addCommit(t, service, 2, unittest.RandomBytes(16))
			requireCertifiedUpTo(t, service, 0)
			addCommit(t, service, 3, unittest.RandomBytes(16))
			requireCertifiedUpTo(t, service, 1)
			tasks.AbortAndDrain(unittest.Logger())
		})

		last, err := fx.sequenced.LastSequence()
		require.NoError(t, err)
		require.Equal(t, uint64(1), last)

		pstorage.RunWithEpochStore(t, unittest.EpochStateFixture(2, next), func(store *pstorage.EpochStore) {
			fx.committee = next
			service, tasks := fx.start(t, dwallet.CheckpointBatch, store, &last)
			assert.Equal(t, uint64(2), service.NextSequence())

			addCommit(t, service, 1, unittest.RandomBytes(16))
			requireCertifiedUpTo(t, service, 2)
			tasks.AbortAndDrain(unittest.Logger())
		})

		for sequence := uint64(0); sequence <= 2; sequence++ {
			batch, err := fx.sequenced.BySequence(sequence)
			require.NoError(t, err)
			assert.Equal(t, sequence, batch.Batch.Sequence)
		}
		third, err := fx.sequenced.BySequence(2)
		require.NoError(t, err)
		assert.Equal(t, dwallet.EpochID(2), third.Batch.Epoch)
	})
}

// TestService_BatchesFollowCommits checks that batch content depends only on the sealed
// commits: members queueing the same commits at different times build identical batches,
// and unsealed messages are never batched.
func TestService_BatchesFollowCommits(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	state := unittest.EpochStateFixture(1, committee)
	limit := state.ProtocolConfig().MaxMessagesPerParamsMessage
	first := messages(limit+5, 8)
	second := messages(2, 8)

	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		pstorage.RunWithEpochStore(t, state, func(store *pstorage.EpochStore) {
			newService := func() *Service {
				output := NewOutputSink(committee.Members[0].Name, mockmodule.NewSigner(t), &loopbackSubmitter{})
				service, err := NewService(unittest.Logger(), DefaultConfig(), dwallet.ParamsBatch, store, bstorage.NewSequencedStore(db, dwallet.ParamsBatch), output, mockmodule.NewStateSyncSink(t), metrics.NewNoopCollector(), nil)
				require.NoError(t, err)
				return service
			}

			eager := newService()
			for i, msg := range first {
				require.NoError(t, eager.AddMessage(context.Background(), msg))
				if i == 0 {
					time.Sleep(30 * time.Millisecond)
				}
			}
			_, ok := eager.nextBatch()
			require.False(t, ok, "messages of an unsealed commit must not be batched")
			eager.CommitBoundary(1)
			addCommit(t, eager, 2, second...)
			eager.CommitBoundary(3)

			late := newService()
			addCommit(t, late, 1, first...)
			addCommit(t, late, 2, second...)

			sizes := []int{limit, 5, 2}
			for i, size := range sizes {
				a, ok := eager.nextBatch()
				require.True(t, ok)
				b, ok := late.nextBatch()
				require.True(t, ok)

				assert.Equal(t, uint64(i), a.batch.Sequence)
				assert.Len(t, a.batch.Messages, size)
				assert.Equal(t, a.digest, b.digest, "batch %d differs", i)
			}
			_, ok = eager.nextBatch()
			assert.False(t, ok)
		})
	})
}
