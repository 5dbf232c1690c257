package consensus

import (
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	// MaxPendingTransactionsPerAuthority bounds the transactions submitted but not yet sequenced.
	// The adapter allows this many per committee member.
	MaxPendingTransactionsPerAuthority int `validate:"gt=0" mapstructure:"max-pending-transactions-per-authority"`

	// SubmitDelayStep is the delay added per position of this authority in the submission order.
	SubmitDelayStep time.Duration `validate:"gte=0" mapstructure:"submit-delay-step"`

	// LowScoreThresholdPercent marks an authority low scoring when its reputation score is below
	// this percentage of the median score.
	LowScoreThresholdPercent uint64 `validate:"lte=100" mapstructure:"low-score-threshold-percent"`

	// ThroughputWindow is the period over which the handled transaction rate is averaged.
	ThroughputWindow time.Duration `validate:"gt=0" mapstructure:"throughput-window"`
}

func DefaultConfig() Config {
	return Config{
		MaxPendingTransactionsPerAuthority: 20,
		SubmitDelayStep:                    50 * time.Millisecond,
		LowScoreThresholdPercent:           20,
		ThroughputWindow:                   10 * time.Second,
	}
}

type OptionFunc func(*Config)

// WithSubmitDelayStep sets the delay added per position in the submission order.
func WithSubmitDelayStep(step time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.SubmitDelayStep = step
	}
}

// WithMaxPendingTransactionsPerAuthority sets the per-member bound of pending transactions.
func WithMaxPendingTransactionsPerAuthority(max int) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxPendingTransactionsPerAuthority = max
	}
}

// ThroughputLevel orders the throughput profiles.
type ThroughputLevel int

const (
	ThroughputLow ThroughputLevel = iota
	ThroughputMedium
	ThroughputHigh
)

func (l ThroughputLevel) String() string {
	switch l {
	case ThroughputLow:
		return "low"
	case ThroughputMedium:
		return "medium"
	case ThroughputHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ThroughputProfile is entered once the handled transaction rate reaches Throughput. While a
// profile is active the adapter paces its own submissions to SubmitRate.
type ThroughputProfile struct {
	Level      ThroughputLevel
	Throughput uint64
	SubmitRate rate.Limit
	Burst      int
}

// DefaultThroughputProfiles are ordered by increasing throughput.
func DefaultThroughputProfiles() []ThroughputProfile {
	return []ThroughputProfile{
		{Level: ThroughputLow, Throughput: 0, SubmitRate: rate.Inf, Burst: 1},
		{Level: ThroughputMedium, Throughput: 500, SubmitRate: 200, Burst: 50},
		{Level: ThroughputHigh, Throughput: 2_000, SubmitRate: 50, Burst: 10},
	}
}
