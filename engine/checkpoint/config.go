package checkpoint

type Config struct {
	// SignatureBuffer is the number of signatures queued for the aggregator.
	SignatureBuffer int `validate:"gt=0" mapstructure:"signature-buffer"`
}

func DefaultConfig() Config {
	return Config{
		SignatureBuffer: 1024,
	}
}
