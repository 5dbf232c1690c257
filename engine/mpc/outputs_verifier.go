package mpc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/storage"
)

type session struct {
	voters map[dwallet.AuthorityName]struct{}
	power  map[dwallet.Digest]uint64
}

// OutputsVerifier accepts an MPC output once authorities holding a quorum of voting power
// reported the same output for its session. Each session is accepted at most once.
type OutputsVerifier struct {
	log       zerolog.Logger
	committee *dwallet.Committee
	metrics   module.MPCMetrics
	completed *lru.Cache[dwallet.Digest, struct{}]

	poolMu  sync.RWMutex
	pool    *workerpool.WorkerPool
	stopped bool

	mu       sync.Mutex
	sessions map[dwallet.Digest]*session
}

// ErrVerifierClosed is returned by Verify after Close.
var ErrVerifierClosed = errors.New("outputs verifier closed")

var _ storage.OutputsVerifier = (*OutputsVerifier)(nil)

func NewOutputsVerifier(log zerolog.Logger, cfg Config, committee *dwallet.Committee, metrics module.MPCMetrics) (*OutputsVerifier, error) {
	completed, err := lru.New[dwallet.Digest, struct{}](cfg.CompletedSessionsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create completed sessions cache: %w", err)
	}
	return &OutputsVerifier{
		log: log.With().
			Str("component", "outputs_verifier").
			Uint64("epoch", uint64(committee.Epoch)).
			Logger(),
		committee: committee,
		metrics:   metrics,
		pool:      workerpool.New(cfg.VerifierWorkers),
		completed: completed,
		sessions:  make(map[dwallet.Digest]*session),
	}, nil
}

// Verify records output and returns true exactly once per session, when the output it
// carries is reported by a quorum. Outputs of non members and repeated reports of an
// authority are ignored.
func (v *OutputsVerifier) Verify(output *dwallet.MPCOutput) (bool, error) {
	verified, err := v.VerifyBatch([]*dwallet.MPCOutput{output})
	if err != nil {
		return false, err
	}
	return verified[0], nil
}

// VerifyBatch records outputs in order and reports for each whether it completed the quorum
// of its session. Digests are computed concurrently on the worker pool, votes are applied
// in input order, so the result equals verifying the outputs one by one.
func (v *OutputsVerifier) VerifyBatch(outputs []*dwallet.MPCOutput) ([]bool, error) {
	for _, output := range outputs {
		if output.Epoch != v.committee.Epoch {
			return nil, fmt.Errorf("output for epoch %d in epoch %d", output.Epoch, v.committee.Epoch)
		}
	}

	digests, err := v.outputDigests(outputs)
	if err != nil {
		return nil, err
	}

	verified := make([]bool, len(outputs))
	for i, output := range outputs {
		verified[i] = v.record(output, digests[i])
	}
	return verified, nil
}

func (v *OutputsVerifier) record(output *dwallet.MPCOutput, digest dwallet.Digest) bool {
	if !v.committee.Contains(output.Authority) {
		v.log.Warn().Str("authority", output.Authority.Short()).Msg("ignoring output of non member")
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.completed.Contains(output.SessionID) {
		return false
	}
	s, ok := v.sessions[output.SessionID]
	if !ok {
		s = &session{
			voters: make(map[dwallet.AuthorityName]struct{}),
			power:  make(map[dwallet.Digest]uint64),
		}
		v.sessions[output.SessionID] = s
	}
	if _, voted := s.voters[output.Authority]; voted {
		return false
	}
	s.voters[output.Authority] = struct{}{}
	s.power[digest] += v.committee.VotingPower(output.Authority)

	if s.power[digest] < v.committee.QuorumThreshold() {
		return false
	}

	delete(v.sessions, output.SessionID)
	v.completed.Add(output.SessionID, struct{}{})
	v.metrics.OutputVerified()
	v.log.Debug().Str("session", output.SessionID.String()).Msg("output verified")
	return true
}

// outputDigests hashes outputs on the worker pool.
func (v *OutputsVerifier) outputDigests(outputs []*dwallet.MPCOutput) ([]dwallet.Digest, error) {
	v.poolMu.RLock()
	defer v.poolMu.RUnlock()
	if v.stopped {
		return nil, ErrVerifierClosed
	}

	digests := make([]dwallet.Digest, len(outputs))
	var wg sync.WaitGroup
	for i, output := range outputs {
		i, output := i, output
		wg.Add(1)
		v.pool.Submit(func() {
			defer wg.Done()
			digests[i] = output.OutputDigest()
		})
	}
	wg.Wait()
	return digests, nil
}

// Pending returns the number of sessions without a quorum yet.
func (v *OutputsVerifier) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sessions)
}

// Close stops the worker pool, waiting for in-flight work.
func (v *OutputsVerifier) Close() {
	v.poolMu.Lock()
	defer v.poolMu.Unlock()
	if v.stopped {
		return
	}
	v.stopped = true
	v.pool.StopWait()
}
