package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/network/p2p"
)

var (
	// ErrEpochMismatch is returned when a transaction is submitted for an epoch other than
	// the one the adapter is configured for.
	ErrEpochMismatch = errors.New("transaction epoch does not match adapter epoch")

	// ErrTooManyPending is returned when the submission would exceed the pending bound.
	ErrTooManyPending = errors.New("too many pending consensus transactions")

	// ErrNotConfigured is returned when submitting before the adapter has been configured for an epoch.
	ErrNotConfigured = errors.New("consensus adapter not configured")
)

// ConnectionStatuses reports the connection state of committee members.
type ConnectionStatuses interface {
	Status(name dwallet.AuthorityName) p2p.ConnectionStatus
}

// adapterEpoch is the epoch scoped configuration of the adapter. It is replaced as a whole
// at every boundary.
type adapterEpoch struct {
	committee  *dwallet.Committee
	lowScoring *LowScoringAuthorities
	profiler   *ThroughputProfiler
	limiter    *rate.Limiter
	maxPending int
}

// Adapter submits transactions of this authority to consensus. Submissions are staggered by
// the position of this authority in a digest seeded order of the committee, paced according
// to the current throughput profile and bounded by the number of pending transactions.
type Adapter struct {
	log         zerolog.Logger
	cfg         Config
	self        dwallet.AuthorityName
	client      module.ConsensusClient
	connections ConnectionStatuses
	encoder     encoding.Encoder
	metrics     module.ConsensusMetrics

	current *atomic.Pointer[adapterEpoch]

	mu      sync.Mutex
	pending map[string]struct{}
}

var _ module.ConsensusSubmitter = (*Adapter)(nil)

// NewAdapter creates an adapter submitting through client. The adapter refuses submissions
// until Reconfigure is called. connections may be nil, in which case every member is
// considered connected.
func NewAdapter(
	log zerolog.Logger,
	cfg Config,
	self dwallet.AuthorityName,
	client module.ConsensusClient,
	connections ConnectionStatuses,
	encoder encoding.Encoder,
	metrics module.ConsensusMetrics,
) *Adapter {
	return &Adapter{
		log:         log.With().Str("component", "consensus_adapter").Logger(),
		cfg:         cfg,
		self:        self,
		client:      client,
		connections: connections,
		encoder:     encoder,
		metrics:     metrics,
		current:     atomic.NewPointer[adapterEpoch](nil),
		pending:     make(map[string]struct{}),
	}
}

// Reconfigure binds the adapter to a new epoch. Transactions pending from the previous epoch
// are dropped since they can no longer be sequenced.
func (a *Adapter) Reconfigure(committee *dwallet.Committee, lowScoring *LowScoringAuthorities, profiler *ThroughputProfiler) {
	profile := profiler.Profile()
	a.current.Store(&adapterEpoch{
		committee:  committee,
		lowScoring: lowScoring,
		profiler:   profiler,
		limiter:    rate.NewLimiter(profile.SubmitRate, profile.Burst),
		maxPending: a.cfg.MaxPendingTransactionsPerAuthority * committee.Size(),
	})

	a.mu.Lock()
	dropped := len(a.pending)
	a.pending = make(map[string]struct{})
	a.mu.Unlock()

	a.metrics.PendingTransactions(0)
	a.log.Info().
		Uint64("epoch", uint64(committee.Epoch)).
		Int("dropped_pending", dropped).
		Msg("consensus adapter reconfigured")
}

// Epoch returns the epoch the adapter is configured for.
func (a *Adapter) Epoch() (dwallet.EpochID, bool) {
	cur := a.current.Load()
	if cur == nil {
		return 0, false
	}
	return cur.committee.Epoch, true
}

// LowScoring returns the low scoring set of the current epoch, or nil before the first epoch.
func (a *Adapter) LowScoring() *LowScoringAuthorities {
	cur := a.current.Load()
	if cur == nil {
		return nil
	}
	return cur.lowScoring
}

// Pending returns the number of transactions submitted and not yet sequenced.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// SubmitToConsensus submits transactions after the submit delay of this authority. It blocks
// for the delay and for pacing, and returns once consensus accepted the transactions.
// Expected errors during normal operations:
//   - consensus.ErrNotConfigured if Reconfigure was never called
//   - consensus.ErrEpochMismatch if a transaction belongs to another epoch
//   - consensus.ErrTooManyPending if the pending bound would be exceeded
//   - context errors if ctx is cancelled while waiting
func (a *Adapter) SubmitToConsensus(ctx context.Context, transactions ...*dwallet.ConsensusTransaction) error {
	if len(transactions) == 0 {
		return nil
	}
	cur := a.current.Load()
	if cur == nil {
		return ErrNotConfigured
	}

	payloads := make([][]byte, 0, len(transactions))
	keys := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Epoch != cur.committee.Epoch {
			return fmt.Errorf("%w: transaction for epoch %d, adapter at %d", ErrEpochMismatch, tx.Epoch, cur.committee.Epoch)
		}
		payload, err := a.encoder.Encode(tx)
		if err != nil {
			return fmt.Errorf("could not encode %s transaction: %w", tx.Kind, err)
		}
		payloads = append(payloads, payload)
		keys = append(keys, tx.Key())
	}

	err := a.addPending(keys, cur.maxPending)
	if err != nil {
		return err
	}

	err = a.submit(ctx, cur, transactions[0].Digest(), payloads)
	if err != nil {
		a.removePending(keys...)
		for _, tx := range transactions {
			a.metrics.TransactionSubmitFailed(tx.Kind)
		}
		return err
	}
	for _, tx := range transactions {
		a.metrics.TransactionSubmitted(tx.Kind)
	}
	return nil
}

func (a *Adapter) submit(ctx context.Context, cur *adapterEpoch, digest dwallet.Digest, payloads [][]byte) error {
	delay := a.submitDelay(cur, digest)
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	profile := cur.profiler.Profile()
	if cur.limiter.Limit() != profile.SubmitRate {
		cur.limiter.SetLimit(profile.SubmitRate)
		cur.limiter.SetBurst(profile.Burst)
		a.metrics.ThroughputLevel(int(profile.Level))
	}
	err := cur.limiter.WaitN(ctx, 1)
	if err != nil {
		return fmt.Errorf("submission pacing interrupted: %w", err)
	}

	err = a.client.Submit(ctx, payloads)
	if err != nil {
		return fmt.Errorf("could not submit %d transactions to consensus: %w", len(payloads), err)
	}
	return nil
}

// submitDelay returns how long this authority waits before submitting a transaction with the
// given digest. Only connected authorities which are not scored low and precede this
// authority in the digest order count towards the delay. A low scoring authority waits
// behind the whole committee.
func (a *Adapter) submitDelay(cur *adapterEpoch, digest dwallet.Digest) time.Duration {
	if cur.lowScoring.Contains(a.self) {
		return time.Duration(cur.committee.Size()) * a.cfg.SubmitDelayStep
	}
	position := 0
	for _, name := range cur.committee.ShuffleByDigest(digest) {
		if name == a.self {
			break
		}
		if cur.lowScoring.Contains(name) {
			continue
		}
		if a.connections != nil && a.connections.Status(name) != p2p.Connected {
			continue
		}
		position++
	}
	return time.Duration(position) * a.cfg.SubmitDelayStep
}

// Sequenced marks a transaction of this authority as ordered by consensus.
func (a *Adapter) Sequenced(tx *dwallet.ConsensusTransaction) {
	if tx.Authority != a.self {
		return
	}
	a.removePending(tx.Key())
}

func (a *Adapter) addPending(keys []string, max int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, key := range keys {
		if _, ok := a.pending[key]; !ok {
			added++
		}
	}
	if len(a.pending)+added > max {
		return fmt.Errorf("%w: %d pending, limit %d", ErrTooManyPending, len(a.pending), max)
	}
	for _, key := range keys {
		a.pending[key] = struct{}{}
	}
	a.metrics.PendingTransactions(len(a.pending))
	return nil
}

func (a *Adapter) removePending(keys ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, key := range keys {
		delete(a.pending, key)
	}
	a.metrics.PendingTransactions(len(a.pending))
}
