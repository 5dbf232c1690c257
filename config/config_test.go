package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	cfg := DefaultConfig()
	flags := pflag.NewFlagSet("node", pflag.ContinueOnError)
	InitializeFlags(flags, &cfg)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	name := unittest.AuthorityNameFixture()
	cfg, err := Load(newFlags(t, "--authority-name", name.String()), "")
	require.NoError(t, err)

	authority, err := cfg.Authority()
	require.NoError(t, err)
	assert.Equal(t, name, authority)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Epoch, cfg.Epoch)
	assert.Equal(t, defaults.Oracle, cfg.Oracle)

	size, err := cfg.EpochDBCacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), size)
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	t.Setenv("DWALLET_EPOCH_CONSENSUS_SUBMIT_DELAY_STEP", "75ms")

	flags := newFlags(t,
		"--authority-name", unittest.AuthorityNameFixture().String(),
		"--data-dir", "/var/lib/dwallet",
		"--available-memory", "2GiB",
		"--pruner-retention-epochs", "5",
	)
	cfg, err := Load(flags, "")
	require.NoError(t, err)

	assert.Equal(t, 75*time.Millisecond, cfg.Epoch.Consensus.SubmitDelayStep)
	assert.Equal(t, uint64(5), cfg.Epoch.Pruner.RetentionEpochs)

	epochCfg := cfg.EpochConfig()
	assert.Equal(t, uint64(2<<30), epochCfg.AvailableMemory)
	assert.Equal(t, filepath.Join("/var/lib/dwallet", "epochs"), epochCfg.EpochStoreDir)
	assert.Equal(t, filepath.Join("/var/lib/dwallet", "consensus"), epochCfg.ConsensusDir)
}

func TestLoad_ConfigFile(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		path := filepath.Join(dir, "node.yaml")
		content := strings.Join([]string{
			"authority-name: " + unittest.AuthorityNameFixture().String(),
			"epoch:",
			"  node-version: 1.4.2",
			"  mpc:",
			"    verifier-workers: 16",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(newFlags(t), path)
		require.NoError(t, err)
		assert.Equal(t, "1.4.2", cfg.Epoch.NodeVersion)
		assert.Equal(t, 16, cfg.Epoch.MPC.VerifierWorkers)
	})
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.AuthorityName = unittest.AuthorityNameFixture().String()
	require.NoError(t, valid.Validate())

	cases := map[string]func(*NodeConfig){
		"missing authority":   func(c *NodeConfig) { c.AuthorityName = "" },
		"short authority":     func(c *NodeConfig) { c.AuthorityName = "abcd" },
		"bad log level":       func(c *NodeConfig) { c.LogLevel = "loud" },
		"bad node version":    func(c *NodeConfig) { c.Epoch.NodeVersion = "one" },
		"bad cache size":      func(c *NodeConfig) { c.Storage.EpochDBCacheSize = "lots" },
		"bad memory":          func(c *NodeConfig) { c.AvailableMemory = "plenty" },
		"zero retention":      func(c *NodeConfig) { c.Epoch.Pruner.RetentionEpochs = 0 },
		"inverted backoff":    func(c *NodeConfig) { c.Oracle.MaxDelay = c.Oracle.BaseDelay / 2 },
		"threshold above 100": func(c *NodeConfig) { c.Epoch.Consensus.LowScoreThresholdPercent = 101 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
