package pruner

import "time"

type Config struct {
	// RetentionEpochs is the number of past epochs whose data is kept on disk.
	RetentionEpochs uint64 `validate:"gte=1" mapstructure:"retention-epochs"`
	// Period is the interval between two pruning rounds.
	Period time.Duration `validate:"gt=0" mapstructure:"period"`
	// ThrottleDelay is a pause between two directory removals.
	ThrottleDelay time.Duration `validate:"gte=0" mapstructure:"throttle-delay"`
}

func DefaultConfig() Config {
	return Config{
		RetentionEpochs: 2,
		Period:          time.Hour,
		ThrottleDelay:   10 * time.Millisecond,
	}
}
