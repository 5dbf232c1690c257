package p2p

import (
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

var (
	// ErrInvalidId indicates that the given ID (either `peer.ID` or `dwallet.AuthorityName`) has an invalid format.
	ErrInvalidId = errors.New("empty peer ID")

	// ErrUnknownId indicates that the given ID (either `peer.ID` or `dwallet.AuthorityName`) is unknown.
	ErrUnknownId = errors.New("unknown ID")
)

// IDTranslator provides an interface for converting from authority names to LibP2P peer ID's
// and vice versa.
type IDTranslator interface {
	// GetPeerID returns the peer ID for the given authority.
	// During normal operations, the following error returns are expected
	//  * ErrUnknownId if the given authority is unknown
	//  * ErrInvalidId if the authority does not advertise a peer ID
	GetPeerID(dwallet.AuthorityName) (peer.ID, error)

	// GetAuthority returns the authority name for the given `peer.ID`.
	// During normal operations, the following error returns are expected
	//  * ErrUnknownId if the given peer is unknown
	GetAuthority(peer.ID) (dwallet.AuthorityName, error)
}
