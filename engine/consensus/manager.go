package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/storage"
)

// ErrNotRunning is returned when submitting while no consensus instance is running.
var ErrNotRunning = errors.New("consensus is not running")

// Manager owns the consensus engine across epochs. It runs at most one instance at a time and
// serves as the submission client of the adapter, forwarding to whichever instance is running.
type Manager struct {
	log    zerolog.Logger
	engine module.ConsensusEngine

	mu     sync.RWMutex
	epoch  dwallet.EpochID
	client module.ConsensusClient
}

var _ module.ConsensusClient = (*Manager)(nil)

func NewManager(log zerolog.Logger, engine module.ConsensusEngine) *Manager {
	return &Manager{
		log:    log.With().Str("component", "consensus_manager").Logger(),
		engine: engine,
	}
}

// Start runs consensus for the epoch of store.
func (m *Manager) Start(ctx context.Context, store storage.EpochStore, handler module.ConsensusHandler, validator module.TransactionValidator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return fmt.Errorf("consensus already running for epoch %d", m.epoch)
	}

	client, err := m.engine.Start(ctx, store, handler, validator)
	if err != nil {
		return fmt.Errorf("could not start consensus for epoch %d: %w", store.Epoch(), err)
	}
	m.client = client
	m.epoch = store.Epoch()
	m.log.Info().Uint64("epoch", uint64(m.epoch)).Msg("consensus started")
	return nil
}

// Shutdown stops the running instance and waits for it to exit. It is a no-op if nothing runs.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	// the client is dropped even if shutdown fails, a failed instance is not reused
	m.client = nil
	err := m.engine.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("could not shut down consensus for epoch %d: %w", m.epoch, err)
	}
	m.log.Info().Uint64("epoch", uint64(m.epoch)).Msg("consensus shut down")
	return nil
}

// IsRunning returns true while an instance is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Submit forwards transactions to the running instance.
// Expected errors during normal operations:
//   - consensus.ErrNotRunning if no instance is running
func (m *Manager) Submit(ctx context.Context, transactions [][]byte) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return ErrNotRunning
	}
	return client.Submit(ctx, transactions)
}
