package dwallet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/libp2p/go-libp2p/core/peer"
)

var (
	ErrEmptyCommittee      = errors.New("committee has no members")
	ErrDuplicateAuthority  = errors.New("duplicate authority in committee")
	ErrZeroVotingPower     = errors.New("authority has zero voting power")
	ErrAuthorityNotInEpoch = errors.New("authority is not a member of the committee")
)

// Committee is the set of authorities valid for exactly one epoch. Members are sorted by name.
// A Committee must not be modified once built.
type Committee struct {
	Epoch   EpochID
	Members []Authority
}

// NewCommittee validates the members and returns a committee sorted by authority name.
func NewCommittee(epoch EpochID, members []Authority) (*Committee, error) {
	if len(members) == 0 {
		return nil, ErrEmptyCommittee
	}

	sorted := make([]Authority, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Name[:], sorted[j].Name[:]) < 0
	})

	for i, member := range sorted {
		if member.VotingPower == 0 {
			return nil, fmt.Errorf("%w: %s", ErrZeroVotingPower, member.Name)
		}
		if i > 0 && sorted[i-1].Name == member.Name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAuthority, member.Name)
		}
	}

	return &Committee{
		Epoch:   epoch,
		Members: sorted,
	}, nil
}

// Size returns the number of authorities in the committee.
func (c *Committee) Size() int {
	return len(c.Members)
}

// Index returns the position of name in the sorted member list.
func (c *Committee) Index(name AuthorityName) (int, bool) {
	i := sort.Search(len(c.Members), func(i int) bool {
		return bytes.Compare(c.Members[i].Name[:], name[:]) >= 0
	})
	if i < len(c.Members) && c.Members[i].Name == name {
		return i, true
	}
	return 0, false
}

// Contains returns true if name is a member of the committee.
func (c *Committee) Contains(name AuthorityName) bool {
	if c == nil {
		return false
	}
	_, ok := c.Index(name)
	return ok
}

// Authority returns the member with the given name.
func (c *Committee) Authority(name AuthorityName) (Authority, error) {
	i, ok := c.Index(name)
	if !ok {
		return Authority{}, fmt.Errorf("%w: %s (epoch %d)", ErrAuthorityNotInEpoch, name, c.Epoch)
	}
	return c.Members[i], nil
}

// VotingPower returns the voting power of name, or zero if it is not a member.
func (c *Committee) VotingPower(name AuthorityName) uint64 {
	i, ok := c.Index(name)
	if !ok {
		return 0
	}
	return c.Members[i].VotingPower
}

func (c *Committee) TotalVotingPower() uint64 {
	var total uint64
	for _, member := range c.Members {
		total += member.VotingPower
	}
	return total
}

// QuorumThreshold is the minimum voting power of a quorum (2f+1).
func (c *Committee) QuorumThreshold() uint64 {
	return 2*c.TotalVotingPower()/3 + 1
}

// ValidityThreshold is the minimum voting power that contains at least one honest authority (f+1).
func (c *Committee) ValidityThreshold() uint64 {
	return (c.TotalVotingPower() + 2) / 3
}

// Names returns the authority names in committee order.
func (c *Committee) Names() []AuthorityName {
	names := make([]AuthorityName, 0, len(c.Members))
	for _, member := range c.Members {
		names = append(names, member.Name)
	}
	return names
}

// PeerIDs returns the peer IDs of all members which advertise one.
func (c *Committee) PeerIDs() peer.IDSlice {
	ids := make(peer.IDSlice, 0, len(c.Members))
	for _, member := range c.Members {
		if member.PeerID == "" {
			continue
		}
		ids = append(ids, member.PeerID)
	}
	return ids
}

// ShuffleByDigest returns the member names in a permutation seeded by digest. Every
// authority computes the same permutation for the same digest.
func (c *Committee) ShuffleByDigest(digest Digest) []AuthorityName {
	names := c.Names()
	seed := int64(binary.LittleEndian.Uint64(digest[:8]))
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
	return names
}

// PositionByDigest returns the position of name in the permutation seeded by digest.
func (c *Committee) PositionByDigest(name AuthorityName, digest Digest) (int, bool) {
	for i, n := range c.ShuffleByDigest(digest) {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
