package epochmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dwallet-network/dwallet-node/engine/checkpoint"
	"github.com/dwallet-network/dwallet-node/engine/consensus"
	"github.com/dwallet-network/dwallet-node/engine/mpc"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/module/taskset"
	"github.com/dwallet-network/dwallet-node/storage"
	"github.com/dwallet-network/dwallet-node/storage/pruner"
)

// ValidatorComponents are the services a validator runs for one epoch. At most one instance
// is live at any time, owned by the Engine. Fields are read only once published.
type ValidatorComponents struct {
	Epoch dwallet.EpochID

	ConsensusManager *consensus.Manager
	ConsensusAdapter *consensus.Adapter
	LowScoring       *consensus.LowScoringAuthorities
	Throughput       *consensus.ThroughputProfiler

	CheckpointService *checkpoint.Service
	ParamsService     *checkpoint.Service
	OutputsVerifier   *mpc.OutputsVerifier
	NetworkKeyService *mpc.NetworkKeyService
	Pruner            *pruner.Pruner

	checkpointTasks *taskset.TaskSet
	paramsTasks     *taskset.TaskSet
	mpcExit         *mpc.ExitSignal
	store           storage.EpochStore
}

// lastSequence returns the highest certified sequence of store, or nil if it is empty.
func lastSequence(store storage.SequencedStore) (*uint64, error) {
	last, err := store.LastSequence()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

// constructComponents builds the validator components for the epoch of store. The consensus
// manager and adapter of previous are reused when given. Either every step succeeds and the
// components are returned, or everything started so far is stopped again and an error is
// returned.
func (e *Engine) constructComponents(ctx irrecoverable.SignalerContext, store storage.EpochStore, previous *ValidatorComponents) (comps *ValidatorComponents, err error) {
	state := store.State()
	committee := state.Committee()
	log := e.log.With().Uint64("epoch", uint64(state.Epoch())).Logger()

	err = store.Acquire()
	if err != nil {
		return nil, fmt.Errorf("could not acquire epoch store: %w", err)
	}
	comps = &ValidatorComponents{
		Epoch: state.Epoch(),
		store: store,
	}
	defer func() {
		if err != nil {
			e.rollback(comps)
			comps = nil
		}
	}()

	// (1) consensus adapter and manager
	if previous != nil {
		comps.ConsensusManager = previous.ConsensusManager
		comps.ConsensusAdapter = previous.ConsensusAdapter
	} else {
		comps.ConsensusManager = consensus.NewManager(e.log, e.consensus)
		comps.ConsensusAdapter = consensus.NewAdapter(
			e.log,
			e.cfg.Consensus,
			e.authority.Name(),
			comps.ConsensusManager,
			e.connections,
			e.encoder,
			e.metrics.Consensus,
		)
	}

	// (2) pruner, once per node lifetime
	if e.pruner == nil {
		e.pruner = pruner.New(e.log, e.cfg.Pruner, state.Epoch(), e.pruneRoots()...)
		e.pruner.Start(ctx)
	}
	comps.Pruner = e.pruner

	// (3) checkpoint and params message services
	output := checkpoint.NewOutputSink(e.authority.Name(), e.signer, comps.ConsensusAdapter)
	lastCheckpoint, err := lastSequence(e.checkpoints)
	if err != nil {
		return nil, fmt.Errorf("could not read last checkpoint sequence: %w", err)
	}
	comps.CheckpointService, comps.checkpointTasks, err = checkpoint.Start(ctx, e.log, e.cfg.Checkpoint, dwallet.CheckpointBatch, store, e.checkpoints, output, e.stateSync, e.metrics.Checkpoint, lastCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("could not start checkpoint service: %w", err)
	}
	lastParams, err := lastSequence(e.params)
	if err != nil {
		return nil, fmt.Errorf("could not read last params message sequence: %w", err)
	}
	comps.ParamsService, comps.paramsTasks, err = checkpoint.Start(ctx, e.log, e.cfg.Checkpoint, dwallet.ParamsBatch, store, e.params, output, e.stateSync, e.metrics.Checkpoint, lastParams)
	if err != nil {
		return nil, fmt.Errorf("could not start params message service: %w", err)
	}

	// (4) outputs verifier, installed before consensus can deliver outputs
	comps.OutputsVerifier, err = mpc.NewOutputsVerifier(e.log, e.cfg.MPC, committee, e.metrics.MPC)
	if err != nil {
		return nil, fmt.Errorf("could not create outputs verifier: %w", err)
	}
	store.InstallOutputsVerifier(comps.OutputsVerifier)

	// (5) network key service with its own exit signal
	exit, exitRx := mpc.NewExitSignal()
	comps.mpcExit = exit
	comps.NetworkKeyService = mpc.NewNetworkKeyService(
		e.log,
		e.cfg.MPC,
		e.authority.Name(),
		state.Epoch(),
		e.keyProtocol,
		comps.ConsensusAdapter,
		e.metrics.MPC,
		e.networkKeys.Subscribe(),
		exitRx,
	)
	go comps.NetworkKeyService.Run(ctx)

	// (6) low scoring authorities and throughput profile, shared by handler and adapter
	comps.LowScoring = consensus.NewLowScoringAuthorities()
	comps.Throughput = consensus.NewThroughputProfiler(
		consensus.NewThroughputCalculator(e.cfg.Consensus.ThroughputWindow),
		consensus.DefaultThroughputProfiles(),
	)
	comps.ConsensusAdapter.Reconfigure(committee, comps.LowScoring, comps.Throughput)

	// (7) consensus
	handler := consensus.NewHandler(
		e.log,
		e.cfg.Consensus,
		store,
		comps.ConsensusAdapter,
		comps.LowScoring,
		comps.Throughput.Calculator(),
		comps.CheckpointService,
		comps.ParamsService,
		e.encoder,
		e.metrics.Consensus,
	)
	validator := consensus.NewValidator(state, comps.CheckpointService, comps.ParamsService, e.encoder, e.metrics.Consensus)
	err = comps.ConsensusManager.Start(ctx, store, handler, validator)
	if err != nil {
		return nil, fmt.Errorf("could not start consensus: %w", err)
	}

	log.Info().Msg("validator components started")
	return comps, nil
}

// rollback stops whatever a failed construction started. Panics of drained tasks propagate.
func (e *Engine) rollback(comps *ValidatorComponents) {
	e.log.Warn().Uint64("epoch", uint64(comps.Epoch)).Msg("rolling back partially constructed validator components")
	err := e.stopComponents(context.Background(), comps)
	if err != nil {
		e.log.Error().Err(err).Msg("errors during rollback of validator components")
	}
}

// teardown stops comps in boundary order. Panics of drained tasks propagate.
func (e *Engine) teardown(ctx context.Context, comps *ValidatorComponents) {
	start := time.Now()
	err := e.stopComponents(ctx, comps)
	if err != nil {
		e.log.Error().Err(err).Uint64("epoch", uint64(comps.Epoch)).Msg("errors during teardown of validator components")
	}
	e.log.Info().
		Uint64("epoch", uint64(comps.Epoch)).
		Dur("duration", time.Since(start)).
		Msg("validator components torn down")
}

// stopComponents aborts and joins the checkpoint and params tasks, closes the MPC exit signal,
// shuts down consensus and releases the components' reference on the epoch store. Any of
// the parts may be missing.
func (e *Engine) stopComponents(ctx context.Context, comps *ValidatorComponents) error {
	var errs *multierror.Error

	if comps.checkpointTasks != nil {
		comps.checkpointTasks.AbortAndDrain(e.log)
	}
	if comps.paramsTasks != nil {
		comps.paramsTasks.AbortAndDrain(e.log)
	}

	if comps.mpcExit != nil {
		comps.mpcExit.Close()
		select {
		case <-comps.NetworkKeyService.Done():
		case <-ctx.Done():
		}
	}

	if comps.ConsensusManager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
		err := comps.ConsensusManager.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if comps.OutputsVerifier != nil {
		comps.OutputsVerifier.Close()
	}

	if comps.store != nil {
		err := comps.store.Release()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not release epoch store: %w", err))
		}
	}

	return errs.ErrorOrNil()
}
