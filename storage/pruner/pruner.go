// Package pruner removes per-epoch data directories of epochs that fell out of the retention window.
package pruner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module/component"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
)

// Pruner periodically deletes epoch directories below a set of roots. Each root holds one
// subdirectory per epoch, named by the epoch number. Directories of the current epoch and the
// RetentionEpochs epochs before it are kept.
type Pruner struct {
	component.Component

	log   zerolog.Logger
	cfg   Config
	roots []string

	currentEpoch *atomic.Uint64
	pruned       *atomic.Uint64
}

// New returns a pruner for the epoch directories below roots.
func New(log zerolog.Logger, cfg Config, currentEpoch dwallet.EpochID, roots ...string) *Pruner {
	p := &Pruner{
		log:          log.With().Str("component", "epoch_pruner").Logger(),
		cfg:          cfg,
		roots:        roots,
		currentEpoch: atomic.NewUint64(uint64(currentEpoch)),
		pruned:       atomic.NewUint64(0),
	}

	p.Component = component.NewComponentManagerBuilder().
		AddWorker(p.loop).
		Build()

	return p
}

// SetEpoch moves the retention window to end at epoch.
func (p *Pruner) SetEpoch(epoch dwallet.EpochID) {
	p.currentEpoch.Store(uint64(epoch))
}

// Pruned returns the number of directories removed since startup.
func (p *Pruner) Pruned() uint64 {
	return p.pruned.Load()
}

func (p *Pruner) loop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	ticker := time.NewTicker(p.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := p.PruneOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				// a failed round is retried on the next tick
				p.log.Warn().Err(err).Msg("pruning round failed")
			}
		}
	}
}

// PruneOnce removes every epoch directory older than the retention window and returns the
// number of directories removed.
func (p *Pruner) PruneOnce(ctx context.Context) (int, error) {
	current := p.currentEpoch.Load()
	if current <= p.cfg.RetentionEpochs {
		return 0, nil
	}
	threshold := current - p.cfg.RetentionEpochs

	removed := 0
	for _, root := range p.roots {
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("could not list %s: %w", root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			epoch, err := strconv.ParseUint(entry.Name(), 10, 64)
			if err != nil || epoch >= threshold {
				continue
			}

			dir := filepath.Join(root, entry.Name())
			err = os.RemoveAll(dir)
			if err != nil {
				return removed, fmt.Errorf("could not remove %s: %w", dir, err)
			}
			removed++
			p.pruned.Inc()
			p.log.Info().Str("dir", dir).Uint64("epoch", epoch).Msg("pruned epoch directory")

			select {
			case <-ctx.Done():
				return removed, ctx.Err()
			case <-time.After(p.cfg.ThrottleDelay):
			}
		}
	}
	return removed, nil
}
