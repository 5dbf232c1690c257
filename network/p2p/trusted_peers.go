package p2p

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// TrustedPeerChange is pushed to the networking layer at every epoch boundary. The peers of the
// new committee are allowed to connect and are protected from connection pruning.
type TrustedPeerChange struct {
	Epoch dwallet.EpochID
	Peers []peer.AddrInfo
}

// NewTrustedPeerChange builds the trusted peer set from the members of committee. Members with
// an unparsable network address are trusted by peer ID only.
func NewTrustedPeerChange(committee *dwallet.Committee) (TrustedPeerChange, error) {
	change := TrustedPeerChange{
		Epoch: committee.Epoch,
		Peers: make([]peer.AddrInfo, 0, committee.Size()),
	}

	var invalid []dwallet.AuthorityName
	for _, member := range committee.Members {
		if member.PeerID == "" {
			invalid = append(invalid, member.Name)
			continue
		}
		info := peer.AddrInfo{ID: member.PeerID}
		addr, err := multiaddr.NewMultiaddr(member.NetworkAddress)
		if err == nil {
			info.Addrs = []multiaddr.Multiaddr{addr}
		}
		change.Peers = append(change.Peers, info)
	}

	if len(invalid) > 0 {
		return change, fmt.Errorf("%d committee members without peer id: %w", len(invalid), ErrInvalidId)
	}
	return change, nil
}

// PeerIDs returns the IDs of the trusted peers.
func (c TrustedPeerChange) PeerIDs() peer.IDSlice {
	ids := make(peer.IDSlice, 0, len(c.Peers))
	for _, info := range c.Peers {
		ids = append(ids, info.ID)
	}
	return ids
}
