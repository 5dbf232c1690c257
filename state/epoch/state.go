// Package epoch holds the immutable per-epoch snapshot every epoch-scoped component reads from.
package epoch

import (
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// State is the snapshot of one epoch: its committee, the protocol constants in effect and the
// start configuration read from the settlement chain. A State is never modified once built;
// reconfiguration replaces it as a whole.
type State struct {
	epoch          dwallet.EpochID
	committee      *dwallet.Committee
	protocolConfig dwallet.ProtocolConfig
	startConfig    dwallet.EpochStartConfig
}

// NewState builds the snapshot for the epoch of committee.
// Returns an error if the committee and start config disagree on the epoch, or if the
// protocol version is not supported by this binary.
func NewState(committee *dwallet.Committee, startConfig dwallet.EpochStartConfig) (*State, error) {
	if committee == nil {
		return nil, fmt.Errorf("missing committee")
	}
	if committee.Epoch != startConfig.Epoch {
		return nil, fmt.Errorf("committee epoch %d does not match start config epoch %d", committee.Epoch, startConfig.Epoch)
	}
	protocolConfig, err := dwallet.ProtocolConfigForVersion(startConfig.ProtocolVersion)
	if err != nil {
		return nil, fmt.Errorf("could not load protocol config for epoch %d: %w", startConfig.Epoch, err)
	}
	return &State{
		epoch:          committee.Epoch,
		committee:      committee,
		protocolConfig: protocolConfig,
		startConfig:    startConfig,
	}, nil
}

func (s *State) Epoch() dwallet.EpochID {
	return s.epoch
}

func (s *State) Committee() *dwallet.Committee {
	return s.committee
}

func (s *State) ProtocolConfig() dwallet.ProtocolConfig {
	return s.protocolConfig
}

func (s *State) EpochStartConfig() dwallet.EpochStartConfig {
	return s.startConfig
}

// IsMember returns true if name is in the committee of the epoch.
func (s *State) IsMember(name dwallet.AuthorityName) bool {
	return s.committee.Contains(name)
}

// EncodableState is the persisted form of a State.
type EncodableState struct {
	Committee   dwallet.Committee
	StartConfig dwallet.EpochStartConfig
}

func (s *State) Encodable() EncodableState {
	return EncodableState{
		Committee:   *s.committee,
		StartConfig: s.startConfig,
	}
}

// FromEncodable rebuilds a State from its persisted form.
func FromEncodable(enc EncodableState) (*State, error) {
	committee := enc.Committee
	return NewState(&committee, enc.StartConfig)
}
