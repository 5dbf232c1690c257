package module

import (
	"context"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// NetworkKeyProtocol runs the MPC protocols which make a network key usable by this
// authority in an epoch.
type NetworkKeyProtocol interface {
	// InstantiateNetworkKey computes this authority's output for key in epoch. The output is
	// shared with the committee through consensus.
	InstantiateNetworkKey(ctx context.Context, epoch dwallet.EpochID, key dwallet.NetworkKey) ([]byte, error)
}
