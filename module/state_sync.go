package module

import (
	"context"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// StateSyncSink receives certified batches to serve them to peers.
type StateSyncSink interface {
	// NotifyCertifiedBatch announces a newly certified batch.
	NotifyCertifiedBatch(ctx context.Context, batch *dwallet.CertifiedBatch) error
}
