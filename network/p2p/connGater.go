package p2p

import (
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/module/watch"
)

var _ connmgr.ConnectionGater = (*ConnGater)(nil)

// ConnGater is the implementation of the libp2p connmgr.ConnectionGater interface.
// It allows connections only to and from the peers of the latest trusted peer set,
// which is replaced at every epoch boundary.
type ConnGater struct {
	log     zerolog.Logger
	trusted *watch.Receiver[TrustedPeerChange]
}

func NewConnGater(log zerolog.Logger, trusted *watch.Receiver[TrustedPeerChange]) *ConnGater {
	return &ConnGater{
		log:     log.With().Str("component", "conn_gater").Logger(),
		trusted: trusted,
	}
}

// IsTrusted reports whether p belongs to the latest trusted peer set.
func (c *ConnGater) IsTrusted(p peer.ID) bool {
	for _, info := range c.trusted.Borrow().Peers {
		if info.ID == p {
			return true
		}
	}
	return false
}

// InterceptPeerDial - a callback which allows or disallows outbound connection
func (c *ConnGater) InterceptPeerDial(p peer.ID) bool {
	return c.IsTrusted(p)
}

// InterceptAddrDial allows any address of a trusted peer.
func (c *ConnGater) InterceptAddrDial(p peer.ID, _ multiaddr.Multiaddr) bool {
	return c.IsTrusted(p)
}

// InterceptAccept is not used, the peer id is only known after the security handshake.
func (c *ConnGater) InterceptAccept(network.ConnMultiaddrs) bool {
	return true
}

// InterceptSecured - a callback executed after the libp2p security handshake. It tests whether to accept or reject
// an inbound connection based on its peer id.
func (c *ConnGater) InterceptSecured(dir network.Direction, p peer.ID, addr network.ConnMultiaddrs) bool {
	if dir != network.DirInbound {
		// outbound connections were filtered on dial
		return true
	}
	allowed := c.IsTrusted(p)
	if !allowed {
		c.log.Info().
			Str("peer_id", p.String()).
			Uint64("epoch", uint64(c.trusted.Borrow().Epoch)).
			Str("local_address", addr.LocalMultiaddr().String()).
			Str("remote_address", addr.RemoteMultiaddr().String()).
			Msg("rejected inbound connection")
	}
	return allowed
}

// Decision to continue or drop the connection should have been made before this call
func (c *ConnGater) InterceptUpgraded(network.Conn) (allow bool, reason control.DisconnectReason) {
	return true, 0
}
