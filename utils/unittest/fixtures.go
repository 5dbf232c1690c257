package unittest

import (
	crand "crypto/rand"
	"fmt"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/state/epoch"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	read, err := crand.Read(b)
	if err != nil {
		panic("cannot read random bytes")
	}
	if read != n {
		panic(fmt.Errorf("cannot read enough random bytes (got %d of %d)", read, n))
	}
	return b
}

func AuthorityNameFixture() dwallet.AuthorityName {
	var name dwallet.AuthorityName
	_, _ = crand.Read(name[:])
	return name
}

func DigestFixture() dwallet.Digest {
	var d dwallet.Digest
	_, _ = crand.Read(d[:])
	return d
}

func PeerIDFixture() peer.ID {
	_, pub, err := p2pcrypto.GenerateEd25519Key(crand.Reader)
	if err != nil {
		panic(fmt.Errorf("cannot generate peer key: %w", err))
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		panic(fmt.Errorf("cannot derive peer id: %w", err))
	}
	return id
}

// WithVotingPower sets the voting power of an authority fixture.
func WithVotingPower(power uint64) func(*dwallet.Authority) {
	return func(authority *dwallet.Authority) {
		authority.VotingPower = power
	}
}

// WithName sets the name of an authority fixture.
func WithName(name dwallet.AuthorityName) func(*dwallet.Authority) {
	return func(authority *dwallet.Authority) {
		authority.Name = name
	}
}

func AuthorityFixture(opts ...func(*dwallet.Authority)) dwallet.Authority {
	authority := dwallet.Authority{
		Name:           AuthorityNameFixture(),
		VotingPower:    1000,
		NetworkAddress: fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", 3000+int(RandomBytes(1)[0])),
		PeerID:         PeerIDFixture(),
	}
	for _, apply := range opts {
		apply(&authority)
	}
	return authority
}

func AuthorityListFixture(n int, opts ...func(*dwallet.Authority)) []dwallet.Authority {
	list := make([]dwallet.Authority, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, AuthorityFixture(opts...))
	}
	return list
}

// CommitteeFixture returns a committee of n authorities with equal voting power, plus
// any extra members given.
func CommitteeFixture(epochID dwallet.EpochID, n int, extra ...dwallet.Authority) *dwallet.Committee {
	members := append(AuthorityListFixture(n), extra...)
	committee, err := dwallet.NewCommittee(epochID, members)
	if err != nil {
		panic(err)
	}
	return committee
}

func SystemInnerFixture(epochID dwallet.EpochID, committee *dwallet.Committee) *dwallet.SystemInner {
	return &dwallet.SystemInner{
		Epoch:                 epochID,
		ProtocolVersion:       dwallet.MinSupportedProtocolVersion,
		EpochStartTimestampMs: 1_700_000_000_000 + uint64(epochID)*86_400_000,
		EpochDurationMs:       86_400_000,
		Committee:             committee.Members,
	}
}

func CoordinatorInnerFixture(epochID dwallet.EpochID, keys int) *dwallet.CoordinatorInner {
	networkKeys := make(dwallet.NetworkKeys, keys)
	for i := 0; i < keys; i++ {
		id := DigestFixture()
		networkKeys[id] = dwallet.NetworkKey{
			ID:           id,
			Epoch:        epochID,
			PublicOutput: RandomBytes(64),
		}
	}
	return &dwallet.CoordinatorInner{
		Epoch:       epochID,
		NetworkKeys: networkKeys,
	}
}

// EpochStateFixture returns the state for epochID run by committee under the lowest supported
// protocol version.
func EpochStateFixture(epochID dwallet.EpochID, committee *dwallet.Committee) *epoch.State {
	system := SystemInnerFixture(epochID, committee)
	state, err := epoch.NewState(committee, system.EpochStartConfig())
	if err != nil {
		panic(err)
	}
	return state
}

func BatchFixture(kind dwallet.BatchKind, epochID dwallet.EpochID, sequence uint64, messages int) *dwallet.Batch {
	batch := &dwallet.Batch{
		Kind:     kind,
		Epoch:    epochID,
		Sequence: sequence,
	}
	for i := 0; i < messages; i++ {
		batch.Messages = append(batch.Messages, RandomBytes(32))
	}
	return batch
}

func MPCOutputFixture(epochID dwallet.EpochID, authority dwallet.AuthorityName) *dwallet.MPCOutput {
	return &dwallet.MPCOutput{
		SessionID: DigestFixture(),
		Epoch:     epochID,
		Authority: authority,
		Output:    RandomBytes(128),
	}
}
