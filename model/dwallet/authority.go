package dwallet

import (
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// EpochID identifies an epoch of the dWallet network. Epochs start at zero and increase by one
// at every reconfiguration.
type EpochID uint64

// AuthorityNameLength is the size of an authority name in bytes.
const AuthorityNameLength = 32

// AuthorityName is the public identity of a committee member.
type AuthorityName [AuthorityNameLength]byte

// ZeroAuthority is the empty authority name.
var ZeroAuthority = AuthorityName{}

// HexToAuthorityName parses the hex representation of an authority name.
func HexToAuthorityName(s string) (AuthorityName, error) {
	var name AuthorityName
	b, err := hex.DecodeString(s)
	if err != nil {
		return name, fmt.Errorf("could not decode authority name %q: %w", s, err)
	}
	if len(b) != AuthorityNameLength {
		return name, fmt.Errorf("invalid authority name length (%d != %d)", len(b), AuthorityNameLength)
	}
	copy(name[:], b)
	return name, nil
}

// Bytes returns the byte representation of the name.
func (n AuthorityName) Bytes() []byte { return n[:] }

func (n AuthorityName) String() string {
	return hex.EncodeToString(n[:])
}

// Short returns the first four bytes of the name in hex, for log lines.
func (n AuthorityName) Short() string {
	return hex.EncodeToString(n[:4])
}

func (n AuthorityName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *AuthorityName) UnmarshalText(text []byte) error {
	name, err := HexToAuthorityName(string(text))
	if err != nil {
		return err
	}
	*n = name
	return nil
}

// Authority is a committee member and its weight for one epoch.
type Authority struct {
	Name           AuthorityName
	VotingPower    uint64
	NetworkAddress string
	PeerID         peer.ID
}
