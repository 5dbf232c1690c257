// Package epochmgr drives the node through epochs. Its Engine waits for the settlement chain
// to complete each epoch, then tears down the validator components of the ending epoch,
// swaps the epoch store and builds the components of the next epoch if this node is a
// member of the next committee.
package epochmgr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dwallet-network/dwallet-node/engine/common/stop"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/broadcast"
	"github.com/dwallet-network/dwallet-node/module/component"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/module/metrics"
	"github.com/dwallet-network/dwallet-node/module/settlement"
	"github.com/dwallet-network/dwallet-node/module/watch"
	"github.com/dwallet-network/dwallet-node/network/p2p"
	"github.com/dwallet-network/dwallet-node/state/authority"
	"github.com/dwallet-network/dwallet-node/state/epoch"
	"github.com/dwallet-network/dwallet-node/storage"
	"github.com/dwallet-network/dwallet-node/storage/pruner"
)

// Metrics groups the metrics of the orchestrator and the components it runs.
type Metrics struct {
	Epoch      module.EpochMetrics
	Checkpoint module.CheckpointMetrics
	Consensus  module.ConsensusMetrics
	MPC        module.MPCMetrics
}

func NoopMetrics() Metrics {
	noop := metrics.NewNoopCollector()
	return Metrics{Epoch: noop, Checkpoint: noop, Consensus: noop, MPC: noop}
}

// Channels are the outputs of the orchestrator consumed by other subsystems of the node.
type Channels struct {
	// EpochChange receives the system object of every new epoch.
	EpochChange *broadcast.Channel[*dwallet.SystemInner]
	// NextCommittee holds the committee of the latest epoch.
	NextCommittee *watch.Sender[*dwallet.Committee]
	// NetworkKeys holds the network keys of the latest coordinator object.
	NetworkKeys *watch.Sender[dwallet.NetworkKeys]
	// TrustedPeers holds the peers of the latest committee.
	TrustedPeers *watch.Sender[p2p.TrustedPeerChange]
	// Shutdown is sent once when a run-with-range condition ends the node.
	Shutdown *stop.ShutdownSignal
}

// Dependencies are the collaborators of the orchestrator.
type Dependencies struct {
	Authority    *authority.State
	Oracle       *settlement.RetryingOracle
	Consensus    module.ConsensusEngine
	Signer       module.Signer
	KeyProtocol  module.NetworkKeyProtocol
	Checkpoints  storage.SequencedStore
	Params       storage.SequencedStore
	StateSync    module.StateSyncSink
	Connections  *p2p.ConnectionMonitor
	Encoder      encoding.Encoder
	Metrics      Metrics
	RunWithRange *stop.RunWithRange
}

// Engine is the epoch lifecycle orchestrator. It runs a single loop which owns the current
// epoch store and the validator components. Other subsystems read the components through
// IsValidator and ValidatorComponents.
type Engine struct {
	component.Component

	log          zerolog.Logger
	cfg          Config
	authority    *authority.State
	oracle       *settlement.RetryingOracle
	consensus    module.ConsensusEngine
	signer       module.Signer
	keyProtocol  module.NetworkKeyProtocol
	checkpoints  storage.SequencedStore
	params       storage.SequencedStore
	stateSync    module.StateSyncSink
	connections  *p2p.ConnectionMonitor
	encoder      encoding.Encoder
	metrics      Metrics
	runWithRange *stop.RunWithRange

	epochChange   *broadcast.Channel[*dwallet.SystemInner]
	nextCommittee *watch.Sender[*dwallet.Committee]
	networkKeys   *watch.Sender[dwallet.NetworkKeys]
	trustedPeers  *watch.Sender[p2p.TrustedPeerChange]
	shutdown      *stop.ShutdownSignal

	// owned by the loop goroutine
	pruner *pruner.Pruner

	mu         sync.RWMutex
	components *ValidatorComponents
}

func New(log zerolog.Logger, cfg Config, deps Dependencies, channels Channels) *Engine {
	e := &Engine{
		log:           log.With().Str("component", "epoch_orchestrator").Logger(),
		cfg:           cfg,
		authority:     deps.Authority,
		oracle:        deps.Oracle,
		consensus:     deps.Consensus,
		signer:        deps.Signer,
		keyProtocol:   deps.KeyProtocol,
		checkpoints:   deps.Checkpoints,
		params:        deps.Params,
		stateSync:     deps.StateSync,
		connections:   deps.Connections,
		encoder:       deps.Encoder,
		metrics:       deps.Metrics,
		runWithRange:  deps.RunWithRange,
		epochChange:   channels.EpochChange,
		nextCommittee: channels.NextCommittee,
		networkKeys:   channels.NetworkKeys,
		trustedPeers:  channels.TrustedPeers,
		shutdown:      channels.Shutdown,
	}

	e.Component = component.NewComponentManagerBuilder().
		AddWorker(e.supervise).
		Build()

	return e
}

// IsValidator returns true while validator components are running. It is false from the start
// of a boundary teardown until the components of the next epoch are installed.
func (e *Engine) IsValidator() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.components != nil
}

// ValidatorComponents returns the running validator components, or nil for a fullnode and
// while a boundary replaces them. A returned bundle may still be stopped by a later boundary.
func (e *Engine) ValidatorComponents() *ValidatorComponents {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.components
}

// CurrentEpoch returns the epoch of the current epoch store.
func (e *Engine) CurrentEpoch() dwallet.EpochID {
	return e.authority.CurrentEpoch()
}

func (e *Engine) setComponents(comps *ValidatorComponents) {
	e.mu.Lock()
	e.components = comps
	e.mu.Unlock()
}

func (e *Engine) pruneRoots() []string {
	var roots []string
	for _, dir := range []string{e.cfg.ConsensusDir, e.cfg.EpochStoreDir} {
		if dir != "" {
			roots = append(roots, filepath.Clean(dir))
		}
	}
	return roots
}

// supervise runs the loop until it terminates regularly or the node shuts down. Errors
// returned by the loop are logged and the loop is restarted after a capped exponential
// backoff. Running components are stopped before the worker exits.
func (e *Engine) supervise(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	defer e.stopOnExit()

	backoff := retry.NewExponential(e.cfg.RestartBaseDelay)
	backoff = retry.WithCappedDuration(e.cfg.RestartMaxDelay, backoff)

	for {
		err := e.Run(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		delay, _ := backoff.Next()
		e.metrics.Epoch.OrchestratorRestarted()
		e.log.Error().Err(err).Dur("restart_in", delay).Msg("epoch orchestrator failed - restarting...")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (e *Engine) stopOnExit() {
	comps := e.ValidatorComponents()
	if comps == nil {
		return
	}
	e.setComponents(nil)
	e.teardown(context.Background(), comps)
}

// Run executes the reconfiguration loop. It returns nil once the node reached its
// run-with-range condition, and an error if the loop failed or ctx was cancelled.
func (e *Engine) Run(ctx irrecoverable.SignalerContext) error {
	for {
		done, err := e.runOnce(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// runOnce drives one epoch. It returns true once the node must stop.
func (e *Engine) runOnce(ctx irrecoverable.SignalerContext) (bool, error) {
	store, err := e.authority.LoadEpochStore()
	if err != nil {
		return false, err
	}
	defer func() {
		err := store.Release()
		if err != nil {
			e.log.Warn().Err(err).Uint64("epoch", uint64(store.Epoch())).Msg("could not release epoch store")
		}
	}()

	state := store.State()
	self := e.authority.Name()
	log := e.log.With().Uint64("epoch", uint64(state.Epoch())).Logger()
	e.metrics.Epoch.CurrentEpoch(state.Epoch())

	// members without components, on startup or after a restart of the loop
	if e.ValidatorComponents() == nil && state.IsMember(self) {
		comps, err := e.constructComponents(ctx, store, nil)
		if err != nil {
			return false, fmt.Errorf("could not construct validator components for epoch %d: %w", state.Epoch(), err)
		}
		e.setComponents(comps)
	}
	e.metrics.Epoch.IsValidator(e.IsValidator())

	err = e.announceCapabilities(ctx, store)
	if err != nil {
		return false, err
	}

	log.Info().Bool("validator", e.IsValidator()).Msg("running epoch")
	result, err := e.oracle.RunEpoch(ctx, state.Epoch(), e.runWithRange)
	if err != nil {
		return false, fmt.Errorf("epoch %d interrupted: %w", state.Epoch(), err)
	}

	if result.Stopped() {
		log.Info().Str("condition", result.Condition.String()).Msg("run-with-range condition reached, stopping")
		if comps := e.ValidatorComponents(); comps != nil {
			e.setComponents(nil)
			e.teardown(ctx, comps)
		}
		e.shutdown.Send(result.Condition)
		return true, nil
	}

	err = e.reconfigure(ctx, store, result.NextCommittee)
	if err != nil {
		return false, err
	}
	return false, nil
}

// announceCapabilities submits this authority's capabilities once per epoch, while the node is
// a validator and no protocol upgrade has been agreed yet.
func (e *Engine) announceCapabilities(ctx context.Context, store storage.EpochStore) error {
	comps := e.ValidatorComponents()
	if comps == nil {
		return nil
	}
	self := e.authority.Name()
	announced, err := store.HasCapabilities(self)
	if err != nil {
		return fmt.Errorf("could not read capabilities: %w", err)
	}
	pending, err := store.ProtocolUpgradePending()
	if err != nil {
		return fmt.Errorf("could not read protocol upgrade flag: %w", err)
	}
	if announced || pending {
		return nil
	}

	caps := dwallet.NewAuthorityCapabilities(self, store.Epoch(), e.cfg.NodeVersion, e.cfg.AvailableMemory)
	err = comps.ConsensusAdapter.SubmitToConsensus(ctx, dwallet.NewCapabilityTransaction(caps))
	if err != nil {
		return fmt.Errorf("could not submit capabilities for epoch %d: %w", store.Epoch(), err)
	}
	e.log.Info().
		Uint64("epoch", uint64(store.Epoch())).
		Str("supported_versions", caps.SupportedVersions.String()).
		Msg("capabilities submitted")
	return nil
}

// reconfigure moves the node from the epoch of store to the epoch of next.
func (e *Engine) reconfigure(ctx irrecoverable.SignalerContext, store storage.EpochStore, next *dwallet.Committee) error {
	start := time.Now()
	self := e.authority.Name()
	log := e.log.With().
		Uint64("epoch", uint64(store.Epoch())).
		Uint64("next_epoch", uint64(next.Epoch)).
		Logger()

	nextState, err := e.fetchNextEpoch(ctx, next)
	if err != nil {
		return err
	}

	current := e.ValidatorComponents()
	transition := Transition(current != nil, next.Contains(self))
	e.metrics.Epoch.RoleTransition(transition.String())
	log.Info().Str("transition", transition.String()).Msg("epoch complete, reconfiguring")

	if transition.TearsDown() {
		// unpublished before it is stopped
		e.setComponents(nil)
		e.teardown(ctx, current)
	}

	nextStore, err := e.authority.Reconfigure(nextState)
	if err != nil {
		return fmt.Errorf("could not reconfigure authority state: %w", err)
	}
	defer func() {
		err := nextStore.Release()
		if err != nil {
			log.Warn().Err(err).Msg("could not release new epoch store")
		}
	}()

	var built *ValidatorComponents
	if transition.Constructs() {
		var previous *ValidatorComponents
		if transition == Continue {
			previous = current
		}
		built, err = e.constructComponents(ctx, nextStore, previous)
		if err != nil {
			e.setComponents(nil)
			return fmt.Errorf("could not construct validator components for epoch %d: %w", next.Epoch, err)
		}
	}
	if transition != Noop {
		e.setComponents(built)
	}

	if e.pruner != nil {
		e.pruner.SetEpoch(next.Epoch)
	}
	e.metrics.Epoch.ReconfigurationDuration(time.Since(start))
	log.Info().Dur("duration", time.Since(start)).Msg("reconfiguration complete")
	return nil
}

// fetchNextEpoch reads the system and coordinator objects of the next epoch and publishes
// them to the rest of the node.
func (e *Engine) fetchNextEpoch(ctx context.Context, next *dwallet.Committee) (*epoch.State, error) {
	var system *dwallet.SystemInner
	var coordinator *dwallet.CoordinatorInner

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		system, err = e.oracle.MustGetSystemInner(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		coordinator, err = e.oracle.MustGetCoordinatorInner(gctx)
		return err
	})
	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("could not read next epoch from settlement chain: %w", err)
	}

	nextState, err := epoch.NewState(next, system.EpochStartConfig())
	if err != nil {
		return nil, fmt.Errorf("could not build state of epoch %d: %w", next.Epoch, err)
	}

	_, err = e.epochChange.Send(system)
	if errors.Is(err, broadcast.ErrNoSubscribers) {
		e.log.Debug().Msg("no subscribers for epoch change")
	} else if err != nil {
		e.log.Warn().Err(err).Msg("could not broadcast epoch change")
	}

	e.sendWatch("next committee", e.nextCommittee.Send(next))
	e.sendWatch("network keys", e.networkKeys.Send(coordinator.NetworkKeys))

	e.connections.UpdateMapping(next)
	trusted, err := p2p.NewTrustedPeerChange(next)
	if err != nil {
		e.log.Warn().Err(err).Msg("trusted peer set is incomplete")
	}
	e.sendWatch("trusted peers", e.trustedPeers.Send(trusted))

	return nextState, nil
}

func (e *Engine) sendWatch(name string, err error) {
	if err != nil {
		e.log.Warn().Err(err).Str("channel", name).Msg("could not publish to closed channel")
	}
}
