package mpc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/watch"
)

// ExitSignal stops a running NetworkKeyService when closed.
type ExitSignal = watch.Sender[struct{}]

// NewExitSignal returns an exit signal and the receiver the service watches.
func NewExitSignal() (*ExitSignal, *watch.Receiver[struct{}]) {
	return watch.New(struct{}{})
}

// NetworkKeyService instantiates every network key of the coordinator for this authority in
// the current epoch and shares the resulting outputs through consensus. It runs until its
// exit signal is closed, observing the signal at least once per poll interval.
type NetworkKeyService struct {
	log       zerolog.Logger
	cfg       Config
	self      dwallet.AuthorityName
	epoch     dwallet.EpochID
	protocol  module.NetworkKeyProtocol
	submitter module.ConsensusSubmitter
	metrics   module.MPCMetrics
	keys      *watch.Receiver[dwallet.NetworkKeys]
	exit      *watch.Receiver[struct{}]

	instantiated map[dwallet.NetworkKeyID]struct{}
	done         chan struct{}
}

func NewNetworkKeyService(
	log zerolog.Logger,
	cfg Config,
	self dwallet.AuthorityName,
	epoch dwallet.EpochID,
	protocol module.NetworkKeyProtocol,
	submitter module.ConsensusSubmitter,
	metrics module.MPCMetrics,
	keys *watch.Receiver[dwallet.NetworkKeys],
	exit *watch.Receiver[struct{}],
) *NetworkKeyService {
	return &NetworkKeyService{
		log: log.With().
			Str("component", "network_key_service").
			Uint64("epoch", uint64(epoch)).
			Logger(),
		cfg:          cfg,
		self:         self,
		epoch:        epoch,
		protocol:     protocol,
		submitter:    submitter,
		metrics:      metrics,
		keys:         keys,
		exit:         exit,
		instantiated: make(map[dwallet.NetworkKeyID]struct{}),
		done:         make(chan struct{}),
	}
}

// Run polls for network keys until the exit signal is closed or ctx is cancelled.
func (s *NetworkKeyService) Run(ctx context.Context) {
	defer close(s.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// a long running instantiation must also observe the exit signal
	go func() {
		select {
		case <-s.exit.Closed():
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.log.Info().Msg("network key service started")
	defer s.log.Info().Msg("network key service stopped")

	for {
		s.instantiateAll(ctx)

		select {
		case <-s.exit.Closed():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Done is closed once Run has returned.
func (s *NetworkKeyService) Done() <-chan struct{} {
	return s.done
}

func (s *NetworkKeyService) instantiateAll(ctx context.Context) {
	keys := s.keys.BorrowAndUpdate()
	for _, id := range keys.IDs() {
		if _, ok := s.instantiated[id]; ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		err := s.instantiate(ctx, keys[id])
		if err != nil {
			// retried on the next poll
			s.log.Warn().Err(err).Str("key", id.String()).Msg("could not instantiate network key")
			continue
		}
		s.instantiated[id] = struct{}{}
		s.metrics.NetworkKeyInstantiated()
	}
}

func (s *NetworkKeyService) instantiate(ctx context.Context, key dwallet.NetworkKey) error {
	output, err := s.protocol.InstantiateNetworkKey(ctx, s.epoch, key)
	if err != nil {
		return fmt.Errorf("protocol failed: %w", err)
	}
	tx := dwallet.NewOutputTransaction(&dwallet.MPCOutput{
		SessionID: key.ID,
		Epoch:     s.epoch,
		Authority: s.self,
		Output:    output,
	})
	err = s.submitter.SubmitToConsensus(ctx, tx)
	if err != nil {
		return fmt.Errorf("could not submit output: %w", err)
	}
	s.log.Info().Str("key", key.ID.String()).Msg("network key instantiated")
	return nil
}
