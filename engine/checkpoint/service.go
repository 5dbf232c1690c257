// Package checkpoint builds and certifies the sequenced batches of the committee. The same
// service serves checkpoints and params messages, parameterized by the batch kind.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dwallet-network/dwallet-node/engine"
	"github.com/dwallet-network/dwallet-node/engine/consensus"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/taskset"
	"github.com/dwallet-network/dwallet-node/storage"
)

// segment holds the messages queued while handling one consensus commit.
type segment struct {
	commit   uint64
	messages [][]byte
}

type builtBatch struct {
	batch  *dwallet.Batch
	digest dwallet.Digest
}

// Service queues messages ordered by consensus, groups them into batches, signs every batch
// and certifies it once signatures from a quorum of the committee agree on its digest.
// Certified batches are persisted in sequence order and announced to state sync.
//
// Batch content depends only on the commit stream: the messages of a commit are sealed by
// CommitBoundary and split at the protocol limits, and a batch never spans two commits.
// Every member fed the same commits therefore builds the same batches.
//
// The service runs two tasks: the builder and the aggregator. Both stop when the task set
// returned by Start is aborted.
type Service struct {
	log       zerolog.Logger
	cfg       Config
	kind      dwallet.BatchKind
	store     storage.EpochStore
	committee *dwallet.Committee
	sequenced storage.SequencedStore
	output    *OutputSink
	stateSync module.StateSyncSink
	metrics   module.CheckpointMetrics

	maxMessages int
	maxBytes    int

	pending        engine.Notifier
	built          engine.Notifier
	signatures     chan *dwallet.BatchSignature
	aggregatorDone chan struct{}

	mu        sync.Mutex
	open      [][]byte
	queue     deque.Deque // of *segment
	queued    int
	nextBuild uint64
	batches   map[uint64]builtBatch

	nextCertify *atomic.Uint64

	// owned by the aggregator
	votes map[uint64]map[dwallet.AuthorityName]*dwallet.BatchSignature
}

var _ consensus.BatchService = (*Service)(nil)

// NewService creates a service for batches of kind. Numbering continues after lastSequence,
// the highest sequence certified in earlier epochs, or starts at zero if lastSequence is nil.
func NewService(
	log zerolog.Logger,
	cfg Config,
	kind dwallet.BatchKind,
	store storage.EpochStore,
	sequenced storage.SequencedStore,
	output *OutputSink,
	stateSync module.StateSyncSink,
	metrics module.CheckpointMetrics,
	lastSequence *uint64,
) (*Service, error) {
	protocol := store.State().ProtocolConfig()
	var maxMessages, maxBytes int
	switch kind {
	case dwallet.CheckpointBatch:
		maxMessages, maxBytes = protocol.MaxMessagesPerCheckpoint, protocol.MaxCheckpointSizeBytes
	case dwallet.ParamsBatch:
		maxMessages, maxBytes = protocol.MaxMessagesPerParamsMessage, protocol.MaxParamsMessageSizeBytes
	default:
		return nil, fmt.Errorf("unknown batch kind %d", kind)
	}

	var next uint64
	if lastSequence != nil {
		next = *lastSequence + 1
	}

	return &Service{
		log: log.With().
			Str("component", kind.String()+"_service").
			Uint64("epoch", uint64(store.Epoch())).
			Logger(),
		cfg:            cfg,
		kind:           kind,
		store:          store,
		committee:      store.State().Committee(),
		sequenced:      sequenced,
		output:         output,
		stateSync:      stateSync,
		metrics:        metrics,
		maxMessages:    maxMessages,
		maxBytes:       maxBytes,
		pending:        engine.NewNotifier(),
		built:          engine.NewNotifier(),
		signatures:     make(chan *dwallet.BatchSignature, cfg.SignatureBuffer),
		aggregatorDone: make(chan struct{}),
		nextBuild:      next,
		batches:        make(map[uint64]builtBatch),
		nextCertify:    atomic.NewUint64(next),
		votes:          make(map[uint64]map[dwallet.AuthorityName]*dwallet.BatchSignature),
	}, nil
}

// Start creates the service and spawns its builder and aggregator in a new task set.
func Start(
	ctx context.Context,
	log zerolog.Logger,
	cfg Config,
	kind dwallet.BatchKind,
	store storage.EpochStore,
	sequenced storage.SequencedStore,
	output *OutputSink,
	stateSync module.StateSyncSink,
	metrics module.CheckpointMetrics,
	lastSequence *uint64,
) (*Service, *taskset.TaskSet, error) {
	s, err := NewService(log, cfg, kind, store, sequenced, output, stateSync, metrics, lastSequence)
	if err != nil {
		return nil, nil, err
	}
	tasks := taskset.New(ctx)
	tasks.Spawn(kind.String()+"_builder", s.buildLoop)
	tasks.Spawn(kind.String()+"_aggregator", s.aggregateLoop)
	return s, tasks, nil
}

func (s *Service) Kind() dwallet.BatchKind {
	return s.kind
}

// NextSequence returns the sequence of the next batch to be certified.
func (s *Service) NextSequence() uint64 {
	return s.nextCertify.Load()
}

// AddMessage queues message in the commit being handled. It is batched once the commit is
// sealed by CommitBoundary.
func (s *Service) AddMessage(_ context.Context, message []byte) error {
	s.mu.Lock()
	s.open = append(s.open, message)
	s.queued++
	queued := s.queued
	s.mu.Unlock()

	s.metrics.PendingMessages(s.kind, queued)
	return nil
}

// CommitBoundary seals the messages queued since the previous boundary as the content of
// commit. Commits without messages produce no batch.
func (s *Service) CommitBoundary(commit uint64) {
	s.mu.Lock()
	if len(s.open) == 0 {
		s.mu.Unlock()
		return
	}
	s.queue.PushBack(&segment{commit: commit, messages: s.open})
	s.open = nil
	s.mu.Unlock()

	s.pending.Notify()
}

// AcceptsSequence returns false for sequences which are already certified.
func (s *Service) AcceptsSequence(sequence uint64) bool {
	return sequence >= s.nextCertify.Load()
}

// HandleSignature forwards a verified signature of a committee member to the aggregator.
// Signatures of non members, of other epochs and invalid signatures are dropped.
func (s *Service) HandleSignature(ctx context.Context, signature *dwallet.BatchSignature) error {
	log := s.log.With().
		Str("authority", signature.Authority.Short()).
		Uint64("sequence", signature.Sequence).
		Logger()

	if signature.Kind != s.kind || signature.Epoch != s.store.Epoch() {
		log.Warn().Msg("dropping signature for another service")
		return nil
	}
	if !s.committee.Contains(signature.Authority) {
		log.Warn().Msg("dropping signature of non member")
		return nil
	}
	err := s.output.Verify(signature)
	if errors.Is(err, module.ErrInvalidSignature) {
		log.Warn().Err(err).Msg("dropping invalid signature")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not verify signature: %w", err)
	}

	select {
	case s.signatures <- signature:
		return nil
	case <-s.aggregatorDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) buildLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pending.Channel():
		}

		for {
			next, ok := s.nextBatch()
			if !ok {
				break
			}
			err := s.publish(ctx, next)
			if err != nil {
				return err
			}
		}
	}
}

// nextBatch takes messages of the oldest sealed commit up to the protocol limits. A single
// message larger than the byte limit is batched alone.
func (s *Service) nextBatch() (builtBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	front, ok := s.queue.Front()
	if !ok {
		return builtBatch{}, false
	}
	seg := front.(*segment)

	batch := &dwallet.Batch{
		Kind:     s.kind,
		Epoch:    s.store.Epoch(),
		Sequence: s.nextBuild,
	}
	size := 0
	taken := 0
	for taken < len(seg.messages) && taken < s.maxMessages {
		msg := seg.messages[taken]
		if taken > 0 && size+len(msg) > s.maxBytes {
			break
		}
		size += len(msg)
		taken++
	}
	batch.Messages = seg.messages[:taken:taken]
	seg.messages = seg.messages[taken:]
	if len(seg.messages) == 0 {
		s.queue.PopFront()
	}
	s.queued -= taken

	built := builtBatch{batch: batch, digest: batch.Digest()}
	s.batches[batch.Sequence] = built
	s.nextBuild++
	s.metrics.PendingMessages(s.kind, s.queued)
	return built, true
}

func (s *Service) publish(ctx context.Context, next builtBatch) error {
	batch := next.batch
	err := s.store.SetLastBuiltSequence(s.kind, batch.Sequence)
	if err != nil {
		return fmt.Errorf("could not record built sequence %d: %w", batch.Sequence, err)
	}
	s.metrics.BatchBuilt(s.kind, batch.Sequence, len(batch.Messages), batch.Size())
	s.built.Notify()

	err = s.output.SignAndSubmit(ctx, batch, next.digest)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// the batch can still be certified by the signatures of the other members
		s.log.Error().Err(err).Uint64("sequence", batch.Sequence).Msg("could not share batch signature")
	}
	s.log.Debug().
		Uint64("sequence", batch.Sequence).
		Int("messages", len(batch.Messages)).
		Str("digest", next.digest.String()).
		Msg("built batch")
	return nil
}

func (s *Service) aggregateLoop(ctx context.Context) error {
	defer close(s.aggregatorDone)

	for {
		select {
		case <-ctx.Done():
			return nil
		case signature := <-s.signatures:
			s.addVote(signature)
		case <-s.built.Channel():
		}

		err := s.certifyReady(ctx)
		if err != nil {
			return err
		}
	}
}

func (s *Service) addVote(signature *dwallet.BatchSignature) {
	if signature.Sequence < s.nextCertify.Load() {
		return
	}
	votes, ok := s.votes[signature.Sequence]
	if !ok {
		votes = make(map[dwallet.AuthorityName]*dwallet.BatchSignature)
		s.votes[signature.Sequence] = votes
	}
	if _, dup := votes[signature.Authority]; dup {
		return
	}
	votes[signature.Authority] = signature
}

// certifyReady certifies batches in sequence order for as long as the next one is built
// locally and has a quorum of signatures over its digest.
func (s *Service) certifyReady(ctx context.Context) error {
	for {
		sequence := s.nextCertify.Load()

		s.mu.Lock()
		next, ok := s.batches[sequence]
		s.mu.Unlock()
		if !ok {
			return nil
		}

		var power uint64
		signatures := make([]dwallet.BatchSignature, 0, len(s.votes[sequence]))
		for name, vote := range s.votes[sequence] {
			if vote.Digest != next.digest {
				continue
			}
			power += s.committee.VotingPower(name)
			signatures = append(signatures, *vote)
		}
		if power < s.committee.QuorumThreshold() {
			return nil
		}
		sort.Slice(signatures, func(i, j int) bool {
			return string(signatures[i].Authority[:]) < string(signatures[j].Authority[:])
		})

		certified := &dwallet.CertifiedBatch{
			Batch:      *next.batch,
			Signatures: signatures,
		}
		err := s.sequenced.Store(certified)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("could not store certified %s %d: %w", s.kind, sequence, err)
		}
		err = s.stateSync.NotifyCertifiedBatch(ctx, certified)
		if err != nil {
			s.log.Warn().Err(err).Uint64("sequence", sequence).Msg("could not notify state sync")
		}

		s.mu.Lock()
		delete(s.batches, sequence)
		s.mu.Unlock()
		delete(s.votes, sequence)
		s.nextCertify.Store(sequence + 1)

		s.metrics.BatchCertified(s.kind, sequence)
		s.log.Info().
			Uint64("sequence", sequence).
			Uint64("voting_power", power).
			Msg("certified batch")
	}
}
