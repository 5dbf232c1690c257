package dwallet

import (
	"sort"
	"time"
)

// EpochStartConfig is the part of the system state fixed at the start of an epoch.
type EpochStartConfig struct {
	Epoch                 EpochID
	ProtocolVersion       ProtocolVersion
	EpochStartTimestampMs uint64
	EpochDurationMs       uint64
}

// StartTime returns the epoch start as a time.
func (c EpochStartConfig) StartTime() time.Time {
	return time.UnixMilli(int64(c.EpochStartTimestampMs))
}

// SystemInner is the dWallet system object as stored on the settlement chain.
type SystemInner struct {
	Epoch                 EpochID
	ProtocolVersion       ProtocolVersion
	EpochStartTimestampMs uint64
	EpochDurationMs       uint64
	Committee             []Authority
}

// EpochStartConfig extracts the epoch start configuration from the system object.
func (s *SystemInner) EpochStartConfig() EpochStartConfig {
	return EpochStartConfig{
		Epoch:                 s.Epoch,
		ProtocolVersion:       s.ProtocolVersion,
		EpochStartTimestampMs: s.EpochStartTimestampMs,
		EpochDurationMs:       s.EpochDurationMs,
	}
}

// NetworkKeyID identifies a network encryption key.
type NetworkKeyID = Digest

// NetworkKey is a network decryption key shared by the committee.
type NetworkKey struct {
	ID    NetworkKeyID
	Epoch EpochID
	// PublicOutput is the public output of the key generation protocol.
	PublicOutput []byte
}

// NetworkKeys maps key IDs to keys.
type NetworkKeys map[NetworkKeyID]NetworkKey

// IDs returns the key IDs in ascending order.
func (k NetworkKeys) IDs() []NetworkKeyID {
	ids := make([]NetworkKeyID, 0, len(k))
	for id := range k {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// CoordinatorInner is the dWallet coordinator object as stored on the settlement chain.
type CoordinatorInner struct {
	Epoch       EpochID
	NetworkKeys NetworkKeys
}
