package p2p

import (
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// ConnectionStatus is the last observed state of the connection to a peer.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// ConnectionMonitor keeps the authority to peer mapping of the current committee and the
// connection state of each committee peer. It is registered as a libp2p network notifiee.
type ConnectionMonitor struct {
	log zerolog.Logger

	mu          sync.RWMutex
	epoch       dwallet.EpochID
	peers       map[dwallet.AuthorityName]peer.ID
	authorities map[peer.ID]dwallet.AuthorityName
	status      map[peer.ID]ConnectionStatus
}

var (
	_ IDTranslator     = (*ConnectionMonitor)(nil)
	_ network.Notifiee = (*ConnectionMonitor)(nil)
)

func NewConnectionMonitor(log zerolog.Logger) *ConnectionMonitor {
	return &ConnectionMonitor{
		log:         log.With().Str("component", "connection_monitor").Logger(),
		peers:       make(map[dwallet.AuthorityName]peer.ID),
		authorities: make(map[peer.ID]dwallet.AuthorityName),
		status:      make(map[peer.ID]ConnectionStatus),
	}
}

// UpdateMapping replaces the authority to peer mapping with the members of committee.
// The connection state of peers that remain in the committee is kept.
func (m *ConnectionMonitor) UpdateMapping(committee *dwallet.Committee) {
	peers := make(map[dwallet.AuthorityName]peer.ID, committee.Size())
	authorities := make(map[peer.ID]dwallet.AuthorityName, committee.Size())
	for _, member := range committee.Members {
		if member.PeerID == "" {
			m.log.Warn().Str("authority", member.Name.String()).Msg("committee member without peer id")
			continue
		}
		peers[member.Name] = member.PeerID
		authorities[member.PeerID] = member.Name
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[peer.ID]ConnectionStatus, len(authorities))
	for pid := range authorities {
		status[pid] = m.status[pid]
	}
	m.epoch = committee.Epoch
	m.peers = peers
	m.authorities = authorities
	m.status = status

	m.log.Info().Uint64("epoch", uint64(committee.Epoch)).Int("peers", len(peers)).Msg("updated authority to peer mapping")
}

func (m *ConnectionMonitor) GetPeerID(name dwallet.AuthorityName) (peer.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.peers[name]
	if !ok {
		return "", fmt.Errorf("authority %s: %w", name, ErrUnknownId)
	}
	return pid, nil
}

func (m *ConnectionMonitor) GetAuthority(pid peer.ID) (dwallet.AuthorityName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.authorities[pid]
	if !ok {
		return dwallet.ZeroAuthority, fmt.Errorf("peer %s: %w", pid, ErrUnknownId)
	}
	return name, nil
}

// Status returns the connection state of the peer of authority. Unknown authorities are
// reported as disconnected.
func (m *ConnectionMonitor) Status(name dwallet.AuthorityName) ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.peers[name]
	if !ok {
		return Disconnected
	}
	return m.status[pid]
}

// OnConnected records that a connection to pid was established.
func (m *ConnectionMonitor) OnConnected(pid peer.ID) {
	m.setStatus(pid, Connected)
}

// OnDisconnected records that the last connection to pid was closed.
func (m *ConnectionMonitor) OnDisconnected(pid peer.ID) {
	m.setStatus(pid, Disconnected)
}

func (m *ConnectionMonitor) setStatus(pid peer.ID, status ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authorities[pid]; !ok {
		return
	}
	m.status[pid] = status
}

func (m *ConnectionMonitor) Listen(network.Network, multiaddr.Multiaddr)      {}
func (m *ConnectionMonitor) ListenClose(network.Network, multiaddr.Multiaddr) {}

func (m *ConnectionMonitor) Connected(_ network.Network, conn network.Conn) {
	m.OnConnected(conn.RemotePeer())
}

func (m *ConnectionMonitor) Disconnected(n network.Network, conn network.Conn) {
	pid := conn.RemotePeer()
	if n != nil && n.Connectedness(pid) == network.Connected {
		// another connection to the peer is still open
		return
	}
	m.OnDisconnected(pid)
}
