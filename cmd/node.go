// Package cmd assembles a dWallet node from its configuration and runs it until it is
// interrupted or reaches its run-with-range condition.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/admin"
	"github.com/dwallet-network/dwallet-node/admin/commands"
	"github.com/dwallet-network/dwallet-node/admin/commands/common"
	epochcommands "github.com/dwallet-network/dwallet-node/admin/commands/epoch"
	"github.com/dwallet-network/dwallet-node/cmd/scaffold"
	"github.com/dwallet-network/dwallet-node/config"
	"github.com/dwallet-network/dwallet-node/engine/common/stop"
	"github.com/dwallet-network/dwallet-node/engine/epochmgr"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/broadcast"
	"github.com/dwallet-network/dwallet-node/module/component"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/module/metrics"
	"github.com/dwallet-network/dwallet-node/module/settlement"
	"github.com/dwallet-network/dwallet-node/module/util"
	"github.com/dwallet-network/dwallet-node/module/watch"
	"github.com/dwallet-network/dwallet-node/network/p2p"
	"github.com/dwallet-network/dwallet-node/state/authority"
	"github.com/dwallet-network/dwallet-node/state/epoch"
	bstorage "github.com/dwallet-network/dwallet-node/storage/badger"
)

// epochChangeCapacity is the number of epoch changes buffered per subscriber.
const epochChangeCapacity = 16

// External are the collaborators of the node implemented outside of this module.
type External struct {
	Oracle      module.SettlementChainOracle
	Consensus   module.ConsensusEngine
	Signer      module.Signer
	KeyProtocol module.NetworkKeyProtocol
	StateSync   module.StateSyncSink
	// RunWithRange optionally stops the node at an epoch or checkpoint.
	RunWithRange *stop.RunWithRange
}

var _ component.Component = (*Node)(nil)

// Node runs the epoch orchestrator together with the admin and metrics servers.
type Node struct {
	*component.ComponentManager

	Logger       zerolog.Logger
	Config       *config.NodeConfig
	Orchestrator *epochmgr.Engine
	Channels     epochmgr.Channels
	// ConnGater admits only the peers of the current committee. It is handed to the
	// libp2p host by the networking layer.
	ConnGater *p2p.ConnGater

	state      *authority.State
	perpetual  *badger.DB
	components []component.Component
}

// NewNode opens the node storage, reads the current epoch from the settlement chain and
// creates all components. The configuration must have been validated.
func NewNode(ctx context.Context, log zerolog.Logger, cfg *config.NodeConfig, ext External) (*Node, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	self, err := cfg.Authority()
	if err != nil {
		return nil, fmt.Errorf("invalid authority name: %w", err)
	}
	cacheSize, err := cfg.EpochDBCacheBytes()
	if err != nil {
		return nil, err
	}
	epochCfg := cfg.EpochConfig()

	err = scaffold.InitDataDirs(epochCfg.EpochStoreDir, epochCfg.ConsensusDir)
	if err != nil {
		return nil, err
	}

	oracle := settlement.NewRetryingOracle(log, ext.Oracle, cfg.Oracle)
	initial, err := bootstrapEpoch(ctx, oracle)
	if err != nil {
		return nil, err
	}

	node := &Node{
		Logger: log.With().Str("node_role", "dwallet").Logger(),
		Config: cfg,
	}
	// release what was opened if a later step fails
	success := false
	defer func() {
		if !success {
			err := node.close()
			if err != nil {
				log.Warn().Err(err).Msg("could not close storage after failed node initialization")
			}
		}
	}()

	node.state, err = authority.New(log, self, initial, authority.PebbleOpener(cfg.Storage.DataDir, cacheSize))
	if err != nil {
		return nil, fmt.Errorf("could not initialize authority state: %w", err)
	}
	node.perpetual, err = scaffold.InitPerpetualDB(cfg.PerpetualDir())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	epochMetrics := epochmgr.Metrics{
		Epoch:      metrics.NewEpochCollector(registry),
		Checkpoint: metrics.NewCheckpointCollector(registry),
		Consensus:  metrics.NewConsensusCollector(registry),
		MPC:        metrics.NewMPCCollector(registry),
	}

	nextCommittee, _ := watch.New[*dwallet.Committee](initial.Committee())
	networkKeys, _ := watch.New[dwallet.NetworkKeys](dwallet.NetworkKeys{})
	trusted, err := p2p.NewTrustedPeerChange(initial.Committee())
	if err != nil {
		log.Warn().Err(err).Msg("could not build initial trusted peer set")
	}
	trustedPeers, trustedReceiver := watch.New[p2p.TrustedPeerChange](trusted)
	node.ConnGater = p2p.NewConnGater(log, trustedReceiver)
	node.Channels = epochmgr.Channels{
		EpochChange:   broadcast.NewChannel[*dwallet.SystemInner](epochChangeCapacity),
		NextCommittee: nextCommittee,
		NetworkKeys:   networkKeys,
		TrustedPeers:  trustedPeers,
		Shutdown:      stop.NewShutdownSignal(log),
	}

	connections := p2p.NewConnectionMonitor(log)
	connections.UpdateMapping(initial.Committee())

	node.Orchestrator = epochmgr.New(log, epochCfg, epochmgr.Dependencies{
		Authority:    node.state,
		Oracle:       oracle,
		Consensus:    ext.Consensus,
		Signer:       ext.Signer,
		KeyProtocol:  ext.KeyProtocol,
		Checkpoints:  bstorage.NewSequencedStore(node.perpetual, dwallet.CheckpointBatch),
		Params:       bstorage.NewSequencedStore(node.perpetual, dwallet.ParamsBatch),
		StateSync:    ext.StateSync,
		Connections:  connections,
		Encoder:      cbor.NewEncoder(),
		Metrics:      epochMetrics,
		RunWithRange: ext.RunWithRange,
	}, node.Channels)
	node.components = append(node.components, node.Orchestrator)

	if cfg.Admin.Address != "" {
		runner := admin.NewCommandRunner(log, cfg.Admin.Address)
		commands.Register(runner, "set-log-level", common.NewSetLogLevelCommand())
		epochcommands.Register(runner, node.Orchestrator)
		node.components = append(node.components, runner)
	}
	if cfg.Metrics.Port > 0 {
		node.components = append(node.components, metrics.NewServer(log, cfg.Metrics.Port, registry))
	}

	builder := component.NewComponentManagerBuilder()
	for _, c := range node.components {
		builder.AddWorker(startComponent(c))
	}
	node.ComponentManager = builder.Build()

	success = true
	return node, nil
}

// bootstrapEpoch builds the state of the epoch currently running on the settlement chain.
func bootstrapEpoch(ctx context.Context, oracle *settlement.RetryingOracle) (*epoch.State, error) {
	system, err := oracle.MustGetSystemInner(ctx)
	if err != nil {
		return nil, err
	}
	committee, err := dwallet.NewCommittee(system.Epoch, system.Committee)
	if err != nil {
		return nil, fmt.Errorf("invalid committee of epoch %d: %w", system.Epoch, err)
	}
	state, err := epoch.NewState(committee, system.EpochStartConfig())
	if err != nil {
		return nil, fmt.Errorf("could not build state of epoch %d: %w", system.Epoch, err)
	}
	return state, nil
}

func startComponent(c component.Component) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		c.Start(ctx)
		select {
		case <-c.Ready():
			ready()
		case <-ctx.Done():
			return
		}
		<-c.Done()
	}
}

// close releases the storage of the node.
func (node *Node) close() error {
	var errs *multierror.Error
	if node.state != nil {
		err := node.state.Close()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not close authority state: %w", err))
		}
	}
	if node.perpetual != nil {
		err := node.perpetual.Close()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not close perpetual db: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// Run starts all components of the node and blocks until a SIGINT or SIGTERM is received, an
// irrecoverable error is thrown or the node reached its run-with-range condition. Components
// are then shut down gracefully. A second signal aborts the shutdown.
func (node *Node) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	go node.Start(signalerCtx)

	go func() {
		select {
		case <-node.Ready():
			node.Logger.Info().Msg("node startup complete")
		case <-ctx.Done():
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	// block till a signal is received, the node stops on its own or a fatal error is encountered
	sigCtx, _ := util.WithSignal(ctx, signalChan)
	stopCtx, _ := util.WithDone(sigCtx, node.Channels.Shutdown.Done())
	if err := util.WaitError(errChan, stopCtx.Done()); err != nil {
		node.Logger.Fatal().Err(err).Msg("unhandled irrecoverable error")
	}

	node.Logger.Info().Msg("node shutting down")
	cancel()

	sigCtx, _ = util.WithSignal(context.Background(), signalChan)
	doneCtx, _ := util.WithDone(sigCtx, node.Done())
	if err := util.WaitError(errChan, doneCtx.Done()); err != nil {
		node.Logger.Fatal().Err(err).Msg("unhandled irrecoverable error during shutdown")
	} else if errors.Is(sigCtx.Err(), util.ErrSignalReceived) {
		node.Logger.Fatal().Msg("node shutdown aborted")
	}

	err := node.close()
	if err != nil {
		node.Logger.Error().Err(err).Msg("could not close node storage")
	}

	node.Logger.Info().Msg("node shutdown complete")
	os.Exit(0)
}
