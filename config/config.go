// Package config holds the configuration of a dWallet node. Values are read from command line
// flags, an optional config file and DWALLET_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dwallet-network/dwallet-node/engine/epochmgr"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module/settlement"
	"github.com/dwallet-network/dwallet-node/storage/pebble"
)

// EnvPrefix is the prefix of environment variables overriding config values.
const EnvPrefix = "DWALLET"

var ErrInvalidConfig = errors.New("invalid node config")

type StorageConfig struct {
	// DataDir holds the epoch stores, the consensus directories and the perpetual store.
	DataDir string `validate:"required" mapstructure:"data-dir"`
	// EpochDBCacheSize is the block cache size of every epoch database, e.g. "64MiB".
	EpochDBCacheSize string `validate:"required" mapstructure:"epoch-db-cache-size"`
}

type AdminConfig struct {
	// Address of the admin server. The server is disabled if empty.
	Address string `validate:"omitempty,hostname_port" mapstructure:"address"`
}

type MetricsConfig struct {
	// Port of the prometheus endpoint. The endpoint is disabled if 0.
	Port uint `validate:"lte=65535" mapstructure:"port"`
}

// NodeConfig is the full configuration of a node.
type NodeConfig struct {
	// AuthorityName is the hex encoded name of this authority.
	AuthorityName string `validate:"required,hexadecimal" mapstructure:"authority-name"`
	LogLevel      string `validate:"oneof=trace debug info warn error" mapstructure:"loglevel"`
	// AvailableMemory is announced in capability messages, e.g. "32GiB". Empty announces 0.
	AvailableMemory string `mapstructure:"available-memory"`

	Storage StorageConfig          `mapstructure:"storage"`
	Epoch   epochmgr.Config        `mapstructure:"epoch"`
	Oracle  settlement.RetryConfig `mapstructure:"oracle"`
	Admin   AdminConfig            `mapstructure:"admin"`
	Metrics MetricsConfig          `mapstructure:"metrics"`
}

func DefaultConfig() NodeConfig {
	return NodeConfig{
		LogLevel: "info",
		Storage: StorageConfig{
			DataDir:          "/data",
			EpochDBCacheSize: "64MiB",
		},
		Epoch:  epochmgr.DefaultConfig(),
		Oracle: settlement.DefaultRetryConfig(),
		Admin: AdminConfig{
			Address: "localhost:9002",
		},
		Metrics: MetricsConfig{
			Port: 8080,
		},
	}
}

// flag names mapped to their config keys
var flagKeys = map[string]string{
	"authority-name":   "authority-name",
	"loglevel":         "loglevel",
	"available-memory": "available-memory",

	"data-dir":            "storage.data-dir",
	"epoch-db-cache-size": "storage.epoch-db-cache-size",

	"node-version":       "epoch.node-version",
	"restart-base-delay": "epoch.restart-base-delay",
	"restart-max-delay":  "epoch.restart-max-delay",
	"shutdown-timeout":   "epoch.shutdown-timeout",

	"consensus-max-pending-transactions-per-authority": "epoch.consensus.max-pending-transactions-per-authority",
	"consensus-submit-delay-step":                      "epoch.consensus.submit-delay-step",
	"consensus-low-score-threshold-percent":            "epoch.consensus.low-score-threshold-percent",
	"consensus-throughput-window":                      "epoch.consensus.throughput-window",

	"checkpoint-signature-buffer": "epoch.checkpoint.signature-buffer",

	"mpc-poll-interval":                 "epoch.mpc.poll-interval",
	"mpc-verifier-workers":              "epoch.mpc.verifier-workers",
	"mpc-completed-sessions-cache-size": "epoch.mpc.completed-sessions-cache-size",

	"pruner-retention-epochs": "epoch.pruner.retention-epochs",
	"pruner-period":           "epoch.pruner.period",
	"pruner-throttle-delay":   "epoch.pruner.throttle-delay",

	"oracle-base-delay":     "oracle.base-delay",
	"oracle-max-delay":      "oracle.max-delay",
	"oracle-jitter-percent": "oracle.jitter-percent",

	"admin-addr":   "admin.address",
	"metrics-port": "metrics.port",
}

// InitializeFlags registers all node flags on flags, with the values of cfg as defaults.
func InitializeFlags(flags *pflag.FlagSet, cfg *NodeConfig) {
	flags.String("authority-name", cfg.AuthorityName, "hex encoded authority name of this node")
	flags.String("loglevel", cfg.LogLevel, "level for logging output")
	flags.String("available-memory", cfg.AvailableMemory, "memory announced to the committee, e.g. 32GiB")

	flags.String("data-dir", cfg.Storage.DataDir, "directory to store the node databases")
	flags.String("epoch-db-cache-size", cfg.Storage.EpochDBCacheSize, "block cache size of each epoch database, e.g. 64MiB")

	flags.String("node-version", cfg.Epoch.NodeVersion, "semantic version announced in capability messages")
	flags.Duration("restart-base-delay", cfg.Epoch.RestartBaseDelay, "initial delay before the epoch loop is restarted after an error")
	flags.Duration("restart-max-delay", cfg.Epoch.RestartMaxDelay, "maximum delay before the epoch loop is restarted after an error")
	flags.Duration("shutdown-timeout", cfg.Epoch.ShutdownTimeout, "maximum time to wait for consensus to shut down")

	flags.Int("consensus-max-pending-transactions-per-authority", cfg.Epoch.Consensus.MaxPendingTransactionsPerAuthority, "transactions submitted but not yet sequenced, per committee member")
	flags.Duration("consensus-submit-delay-step", cfg.Epoch.Consensus.SubmitDelayStep, "submission delay per position in the submission order")
	flags.Uint64("consensus-low-score-threshold-percent", cfg.Epoch.Consensus.LowScoreThresholdPercent, "authorities scoring below this percentage of the median are low scoring")
	flags.Duration("consensus-throughput-window", cfg.Epoch.Consensus.ThroughputWindow, "window over which consensus throughput is averaged")

	flags.Int("checkpoint-signature-buffer", cfg.Epoch.Checkpoint.SignatureBuffer, "number of batch signatures queued for aggregation")

	flags.Duration("mpc-poll-interval", cfg.Epoch.MPC.PollInterval, "interval at which new network keys are picked up")
	flags.Int("mpc-verifier-workers", cfg.Epoch.MPC.VerifierWorkers, "number of workers verifying mpc outputs")
	flags.Int("mpc-completed-sessions-cache-size", cfg.Epoch.MPC.CompletedSessionsCacheSize, "number of completed mpc sessions remembered for deduplication")

	flags.Uint64("pruner-retention-epochs", cfg.Epoch.Pruner.RetentionEpochs, "number of past epochs kept on disk")
	flags.Duration("pruner-period", cfg.Epoch.Pruner.Period, "interval between two pruning rounds")
	flags.Duration("pruner-throttle-delay", cfg.Epoch.Pruner.ThrottleDelay, "pause between two removed epoch directories")

	flags.Duration("oracle-base-delay", cfg.Oracle.BaseDelay, "initial delay between settlement chain read retries")
	flags.Duration("oracle-max-delay", cfg.Oracle.MaxDelay, "maximum delay between settlement chain read retries")
	flags.Uint64("oracle-jitter-percent", cfg.Oracle.JitterPercent, "jitter applied to settlement chain read retries")

	flags.String("admin-addr", cfg.Admin.Address, "address of the admin server, empty to disable")
	flags.Uint("metrics-port", cfg.Metrics.Port, "port of the metrics server, 0 to disable")
}

// Load reads the configuration from flags, the optional config file at path and the
// environment, in increasing order of precedence for flags set explicitly.
// Expected errors during normal operations:
//   - config.ErrInvalidConfig if the resulting configuration does not validate
func Load(flags *pflag.FlagSet, path string) (*NodeConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		err := v.BindPFlag(key, flag)
		if err != nil {
			return nil, fmt.Errorf("could not bind flag %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks all fields of the config.
// Expected errors during normal operations:
//   - config.ErrInvalidConfig if any field is invalid
func (c *NodeConfig) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	_, err = c.Authority()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	_, err = c.EpochDBCacheBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	_, err = c.AvailableMemoryBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Authority returns the parsed authority name.
func (c *NodeConfig) Authority() (dwallet.AuthorityName, error) {
	return dwallet.HexToAuthorityName(c.AuthorityName)
}

// EpochDBCacheBytes returns the epoch database cache size in bytes.
func (c *NodeConfig) EpochDBCacheBytes() (int64, error) {
	size, err := units.RAMInBytes(c.Storage.EpochDBCacheSize)
	if err != nil {
		return 0, fmt.Errorf("invalid epoch db cache size: %w", err)
	}
	return size, nil
}

// AvailableMemoryBytes returns the announced memory in bytes.
func (c *NodeConfig) AvailableMemoryBytes() (uint64, error) {
	if c.AvailableMemory == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(c.AvailableMemory)
	if err != nil {
		return 0, fmt.Errorf("invalid available memory: %w", err)
	}
	if size < 0 {
		return 0, fmt.Errorf("invalid available memory: %d", size)
	}
	return uint64(size), nil
}

// EpochStoreDir is the directory holding one database per epoch.
func (c *NodeConfig) EpochStoreDir() string {
	return filepath.Join(c.Storage.DataDir, pebble.EpochsDir)
}

// ConsensusDir is the directory holding the consensus data of every epoch.
func (c *NodeConfig) ConsensusDir() string {
	return filepath.Join(c.Storage.DataDir, "consensus")
}

// PerpetualDir is the directory of the store of certified checkpoints and params messages.
func (c *NodeConfig) PerpetualDir() string {
	return filepath.Join(c.Storage.DataDir, "perpetual")
}

// EpochConfig returns the orchestrator config with all derived fields set. The config must
// have been validated.
func (c *NodeConfig) EpochConfig() epochmgr.Config {
	cfg := c.Epoch
	cfg.AvailableMemory, _ = c.AvailableMemoryBytes()
	cfg.ConsensusDir = c.ConsensusDir()
	cfg.EpochStoreDir = c.EpochStoreDir()
	return cfg
}
