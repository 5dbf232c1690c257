package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

// RetryConfig configures the backoff of reads from the settlement chain.
type RetryConfig struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `validate:"gt=0" mapstructure:"base-delay"`
	// MaxDelay caps the delay between two attempts.
	MaxDelay time.Duration `validate:"gtefield=BaseDelay" mapstructure:"max-delay"`
	// JitterPercent randomizes each delay by up to this percentage.
	JitterPercent uint64 `validate:"lte=100" mapstructure:"jitter-percent"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterPercent: 10,
	}
}

// RetryingOracle wraps a SettlementChainOracle with reads that retry until they succeed.
// The chain objects are prerequisites for all further work of the node, so transient read
// errors are never surfaced to callers.
type RetryingOracle struct {
	module.SettlementChainOracle

	log zerolog.Logger
	cfg RetryConfig
}

func NewRetryingOracle(log zerolog.Logger, oracle module.SettlementChainOracle, cfg RetryConfig) *RetryingOracle {
	return &RetryingOracle{
		SettlementChainOracle: oracle,
		log:                   log.With().Str("component", "settlement_oracle").Logger(),
		cfg:                   cfg,
	}
}

func (o *RetryingOracle) backoff() retry.Backoff {
	// this backoff configuration will never terminate on its own, the reads only
	// exit on success or when the context is cancelled
	backoff := retry.NewExponential(o.cfg.BaseDelay)
	backoff = retry.WithCappedDuration(o.cfg.MaxDelay, backoff)
	backoff = retry.WithJitterPercent(o.cfg.JitterPercent, backoff)
	return backoff
}

// MustGetSystemInner reads the system object, retrying until it succeeds.
// It returns an error only if ctx is cancelled.
func (o *RetryingOracle) MustGetSystemInner(ctx context.Context) (*dwallet.SystemInner, error) {
	var system *dwallet.SystemInner
	attempt := 0
	err := retry.Do(ctx, o.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		system, err = o.GetSystemInner(ctx)
		if err != nil {
			o.log.Warn().Err(err).Int("attempt", attempt).Msg("could not read system object - retrying...")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read system object: %w", err)
	}
	return system, nil
}

// MustGetCoordinatorInner reads the coordinator object, retrying until it succeeds.
// It returns an error only if ctx is cancelled.
func (o *RetryingOracle) MustGetCoordinatorInner(ctx context.Context) (*dwallet.CoordinatorInner, error) {
	var coordinator *dwallet.CoordinatorInner
	attempt := 0
	err := retry.Do(ctx, o.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		coordinator, err = o.GetCoordinatorInner(ctx)
		if err != nil {
			o.log.Warn().Err(err).Int("attempt", attempt).Msg("could not read coordinator object - retrying...")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read coordinator object: %w", err)
	}
	return coordinator, nil
}
