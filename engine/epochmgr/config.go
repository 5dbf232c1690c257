package epochmgr

import (
	"time"

	"github.com/dwallet-network/dwallet-node/engine/checkpoint"
	"github.com/dwallet-network/dwallet-node/engine/consensus"
	"github.com/dwallet-network/dwallet-node/engine/mpc"
	"github.com/dwallet-network/dwallet-node/storage/pruner"
)

type Config struct {
	Consensus  consensus.Config  `mapstructure:"consensus"`
	Checkpoint checkpoint.Config `mapstructure:"checkpoint"`
	MPC        mpc.Config        `mapstructure:"mpc"`
	Pruner     pruner.Config     `mapstructure:"pruner"`

	// NodeVersion is the semantic version announced in capability messages.
	NodeVersion string `validate:"semver" mapstructure:"node-version"`
	// AvailableMemory is the memory in bytes announced in capability messages.
	AvailableMemory uint64 `mapstructure:"-"`
	// ConsensusDir and EpochStoreDir hold one directory per epoch. Both are pruned.
	ConsensusDir  string `mapstructure:"-"`
	EpochStoreDir string `mapstructure:"-"`

	// RestartBaseDelay and RestartMaxDelay bound the backoff between restarts of the loop.
	RestartBaseDelay time.Duration `validate:"gt=0" mapstructure:"restart-base-delay"`
	RestartMaxDelay  time.Duration `validate:"gtefield=RestartBaseDelay" mapstructure:"restart-max-delay"`
	// ShutdownTimeout bounds the consensus shutdown when the node stops.
	ShutdownTimeout time.Duration `validate:"gt=0" mapstructure:"shutdown-timeout"`
}

func DefaultConfig() Config {
	return Config{
		Consensus:        consensus.DefaultConfig(),
		Checkpoint:       checkpoint.DefaultConfig(),
		MPC:              mpc.DefaultConfig(),
		Pruner:           pruner.DefaultConfig(),
		NodeVersion:      "0.2.0",
		RestartBaseDelay: time.Second,
		RestartMaxDelay:  time.Minute,
		ShutdownTimeout:  30 * time.Second,
	}
}
