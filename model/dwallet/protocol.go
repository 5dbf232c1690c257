package dwallet

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
)

// ProtocolVersion is the version of the rules every authority applies during an epoch.
type ProtocolVersion uint64

const (
	MinSupportedProtocolVersion ProtocolVersion = 1
	MaxSupportedProtocolVersion ProtocolVersion = 2
)

// SupportedProtocolVersions is the inclusive range of protocol versions a binary can run.
type SupportedProtocolVersions struct {
	Min ProtocolVersion
	Max ProtocolVersion
}

// SupportedVersions is the range this binary supports.
var SupportedVersions = SupportedProtocolVersions{
	Min: MinSupportedProtocolVersion,
	Max: MaxSupportedProtocolVersion,
}

// IsSupported returns true if v lies within the range.
func (s SupportedProtocolVersions) IsSupported(v ProtocolVersion) bool {
	return v >= s.Min && v <= s.Max
}

func (s SupportedProtocolVersions) String() string {
	return fmt.Sprintf("[%d, %d]", s.Min, s.Max)
}

// ProtocolConfig holds the protocol constants in effect for one epoch.
type ProtocolConfig struct {
	Version ProtocolVersion

	// MaxMessagesPerCheckpoint and MaxCheckpointSizeBytes bound a single checkpoint batch.
	MaxMessagesPerCheckpoint int
	MaxCheckpointSizeBytes   int

	// MaxMessagesPerParamsMessage and MaxParamsMessageSizeBytes bound a single params batch.
	MaxMessagesPerParamsMessage int
	MaxParamsMessageSizeBytes   int

	// MaxConsensusTransactionSize is the largest transaction accepted for ordering.
	MaxConsensusTransactionSize int

	// MinNodeVersion is the oldest node software whose capabilities count towards an upgrade.
	MinNodeVersion *semver.Version
}

var protocolConfigs = map[ProtocolVersion]ProtocolConfig{
	1: {
		Version:                     1,
		MaxMessagesPerCheckpoint:    100,
		MaxCheckpointSizeBytes:      50 * 1024,
		MaxMessagesPerParamsMessage: 20,
		MaxParamsMessageSizeBytes:   16 * 1024,
		MaxConsensusTransactionSize: 256 * 1024,
		MinNodeVersion:              semver.New("0.1.0"),
	},
	2: {
		Version:                     2,
		MaxMessagesPerCheckpoint:    500,
		MaxCheckpointSizeBytes:      256 * 1024,
		MaxMessagesPerParamsMessage: 50,
		MaxParamsMessageSizeBytes:   32 * 1024,
		MaxConsensusTransactionSize: 1024 * 1024,
		MinNodeVersion:              semver.New("0.2.0"),
	},
}

// ProtocolConfigForVersion returns the protocol constants for v.
func ProtocolConfigForVersion(v ProtocolVersion) (ProtocolConfig, error) {
	if !SupportedVersions.IsSupported(v) {
		return ProtocolConfig{}, fmt.Errorf("protocol version %d is not supported by this binary (supported %s)", v, SupportedVersions)
	}
	cfg, ok := protocolConfigs[v]
	if !ok {
		return ProtocolConfig{}, fmt.Errorf("no protocol config for version %d", v)
	}
	return cfg, nil
}

// AcceptsNodeVersion returns true if a node running version may vote for protocol upgrades.
func (c ProtocolConfig) AcceptsNodeVersion(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	if c.MinNodeVersion == nil {
		return true
	}
	return !v.LessThan(*c.MinNodeVersion)
}
