package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/storage"
)

// Handler applies the ordered output of consensus to the epoch. One handler is created per
// epoch and discarded with the consensus instance.
type Handler struct {
	log         zerolog.Logger
	cfg         Config
	store       storage.EpochStore
	committee   *dwallet.Committee
	adapter     *Adapter
	lowScoring  *LowScoringAuthorities
	throughput  *ThroughputCalculator
	checkpoints BatchService
	params      BatchService
	encoder     encoding.Encoder
	metrics     module.ConsensusMetrics

	lastCommit *atomic.Uint64
	handled    *atomic.Bool
}

var _ module.ConsensusHandler = (*Handler)(nil)

func NewHandler(
	log zerolog.Logger,
	cfg Config,
	store storage.EpochStore,
	adapter *Adapter,
	lowScoring *LowScoringAuthorities,
	throughput *ThroughputCalculator,
	checkpoints BatchService,
	params BatchService,
	encoder encoding.Encoder,
	metrics module.ConsensusMetrics,
) *Handler {
	return &Handler{
		log: log.With().
			Str("component", "consensus_handler").
			Uint64("epoch", uint64(store.Epoch())).
			Logger(),
		cfg:         cfg,
		store:       store,
		committee:   store.State().Committee(),
		adapter:     adapter,
		lowScoring:  lowScoring,
		throughput:  throughput,
		checkpoints: checkpoints,
		params:      params,
		encoder:     encoder,
		metrics:     metrics,
		lastCommit:  atomic.NewUint64(0),
		handled:     atomic.NewBool(false),
	}
}

// HandleConsensusOutput applies the transactions of one commit. Commits at or below the last
// handled one are ignored, which makes replays after a consensus restart harmless.
// No errors are expected during normal operation.
func (h *Handler) HandleConsensusOutput(ctx context.Context, commit uint64, transactions []*dwallet.ConsensusTransaction) error {
	if h.handled.Load() && commit <= h.lastCommit.Load() {
		h.log.Debug().Uint64("commit", commit).Msg("skipping already handled commit")
		return nil
	}

	verdicts, err := h.verifyOutputs(transactions)
	if err != nil {
		return fmt.Errorf("could not verify outputs of commit %d: %w", commit, err)
	}

	for _, tx := range transactions {
		err := h.handleTransaction(ctx, tx, verdicts)
		if err != nil {
			return fmt.Errorf("could not handle %s transaction of commit %d: %w", tx.Kind, commit, err)
		}
		h.metrics.TransactionHandled(tx.Kind)
		if h.adapter != nil {
			h.adapter.Sequenced(tx)
		}
	}

	h.checkpoints.CommitBoundary(commit)
	h.params.CommitBoundary(commit)

	h.throughput.AddTransactions(time.Now(), len(transactions))
	h.lastCommit.Store(commit)
	h.handled.Store(true)
	return nil
}

// verifyOutputs verifies the MPC outputs of one commit as a single batch.
func (h *Handler) verifyOutputs(transactions []*dwallet.ConsensusTransaction) (map[*dwallet.MPCOutput]bool, error) {
	var outputs []*dwallet.MPCOutput
	for _, tx := range transactions {
		if tx.Kind == dwallet.MPCOutputNotification {
			outputs = append(outputs, tx.Output)
		}
	}
	if len(outputs) == 0 {
		return nil, nil
	}

	verifier := h.store.OutputsVerifier()
	if verifier == nil {
		return nil, fmt.Errorf("no outputs verifier installed for epoch %d", h.committee.Epoch)
	}
	verified, err := verifier.VerifyBatch(outputs)
	if err != nil {
		return nil, err
	}
	verdicts := make(map[*dwallet.MPCOutput]bool, len(outputs))
	for i, output := range outputs {
		verdicts[output] = verified[i]
	}
	return verdicts, nil
}

func (h *Handler) handleTransaction(ctx context.Context, tx *dwallet.ConsensusTransaction, verdicts map[*dwallet.MPCOutput]bool) error {
	switch tx.Kind {
	case dwallet.CapabilityNotification:
		return h.handleCapabilities(ctx, tx.Capabilities)
	case dwallet.CheckpointSignature:
		return h.checkpoints.HandleSignature(ctx, tx.Signature)
	case dwallet.ParamsMessageSignature:
		return h.params.HandleSignature(ctx, tx.Signature)
	case dwallet.MPCOutputNotification:
		return h.handleOutput(ctx, tx.Output, verdicts[tx.Output])
	default:
		// admission already rejects unknown kinds
		h.log.Warn().Uint8("kind", uint8(tx.Kind)).Msg("ignoring transaction of unknown kind")
		return nil
	}
}

func (h *Handler) handleCapabilities(ctx context.Context, caps *dwallet.AuthorityCapabilities) error {
	protocol := h.store.State().ProtocolConfig()
	if !protocol.AcceptsNodeVersion(caps.NodeVersion) {
		h.log.Warn().
			Str("authority", caps.Authority.String()).
			Str("node_version", caps.NodeVersion).
			Uint64("protocol_version", uint64(protocol.Version)).
			Msg("ignoring capabilities of outdated node")
		return nil
	}

	err := h.store.StoreCapabilities(caps)
	if err != nil {
		return fmt.Errorf("could not store capabilities: %w", err)
	}
	return h.checkProtocolUpgrade(ctx, protocol.Version)
}

// checkProtocolUpgrade marks an upgrade pending once authorities holding a quorum of voting
// power support the version after current.
func (h *Handler) checkProtocolUpgrade(ctx context.Context, current dwallet.ProtocolVersion) error {
	pending, err := h.store.ProtocolUpgradePending()
	if err != nil {
		return fmt.Errorf("could not read protocol upgrade flag: %w", err)
	}
	if pending {
		return nil
	}

	all, err := h.store.Capabilities()
	if err != nil {
		return fmt.Errorf("could not read capabilities: %w", err)
	}
	next := current + 1
	var support uint64
	for name, caps := range all {
		if caps.SupportedVersions.IsSupported(next) {
			support += h.committee.VotingPower(name)
		}
	}
	if support < h.committee.QuorumThreshold() {
		return nil
	}

	err = h.store.SetProtocolUpgradePending(next)
	if err != nil {
		return fmt.Errorf("could not set protocol upgrade pending: %w", err)
	}
	msg, err := h.encoder.Encode(&dwallet.ProtocolUpgrade{Epoch: h.committee.Epoch, Version: next})
	if err != nil {
		return fmt.Errorf("could not encode protocol upgrade: %w", err)
	}
	err = h.params.AddMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("could not queue protocol upgrade: %w", err)
	}

	h.log.Info().
		Uint64("version", uint64(next)).
		Uint64("support", support).
		Msg("quorum supports protocol upgrade")
	return nil
}

func (h *Handler) handleOutput(ctx context.Context, output *dwallet.MPCOutput, verified bool) error {
	if !verified {
		return nil
	}

	err := h.store.StoreVerifiedOutput(output)
	if errors.Is(err, storage.ErrAlreadyExists) {
		h.log.Debug().Str("session", output.SessionID.String()).Msg("output already verified")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not store verified output: %w", err)
	}

	msg, err := h.encoder.Encode(output)
	if err != nil {
		return fmt.Errorf("could not encode output: %w", err)
	}
	return h.checkpoints.AddMessage(ctx, msg)
}

// HandleReputationScores recomputes the low scoring authorities from the latest consensus
// reputation scores.
func (h *Handler) HandleReputationScores(scores map[dwallet.AuthorityName]uint64) {
	low := ComputeLowScoring(h.committee, scores, h.cfg.LowScoreThresholdPercent)
	h.lowScoring.Swap(low)
	h.metrics.LowScoringAuthorities(len(low))
	h.log.Debug().Int("low_scoring", len(low)).Msg("updated low scoring authorities")
}
