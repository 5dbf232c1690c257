package mpc

import "time"

type Config struct {
	// PollInterval is how often the network key service looks for new keys and for its exit signal.
	PollInterval time.Duration `validate:"gt=0" mapstructure:"poll-interval"`
	// VerifierWorkers bounds the number of outputs hashed concurrently by the outputs verifier.
	VerifierWorkers int `validate:"gt=0" mapstructure:"verifier-workers"`
	// CompletedSessionsCacheSize is the number of verified sessions remembered for deduplication.
	CompletedSessionsCacheSize int `validate:"gt=0" mapstructure:"completed-sessions-cache-size"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval:               100 * time.Millisecond,
		VerifierWorkers:            4,
		CompletedSessionsCacheSize: 10_000,
	}
}
