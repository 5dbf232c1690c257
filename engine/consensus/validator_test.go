package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
	"github.com/dwallet-network/dwallet-node/module/metrics"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func TestValidator(t *testing.T) {
	committee := unittest.CommitteeFixture(5, 4)
	state := unittest.EpochStateFixture(5, committee)
	checkpoints := newRecordingService(dwallet.CheckpointBatch)
	checkpoints.accepted = 10
	params := newRecordingService(dwallet.ParamsBatch)
	validator := NewValidator(state, checkpoints, params, cbor.NewEncoder(), metrics.NewNoopCollector())
	member := committee.Members[0].Name

	t.Run("member output accepted", func(t *testing.T) {
		err := validator.ValidateTransaction(dwallet.NewOutputTransaction(unittest.MPCOutputFixture(5, member)))
		require.NoError(t, err)
	})

	t.Run("non member rejected", func(t *testing.T) {
		err := validator.ValidateTransaction(dwallet.NewOutputTransaction(unittest.MPCOutputFixture(5, unittest.AuthorityNameFixture())))
		require.ErrorIs(t, err, ErrTransactionRejected)
	})

	t.Run("wrong epoch rejected", func(t *testing.T) {
		err := validator.ValidateTransaction(dwallet.NewOutputTransaction(unittest.MPCOutputFixture(4, member)))
		require.ErrorIs(t, err, ErrTransactionRejected)
	})

	t.Run("malformed rejected", func(t *testing.T) {
		tx := dwallet.NewOutputTransaction(unittest.MPCOutputFixture(5, member))
		tx.Output = nil
		err := validator.ValidateTransaction(tx)
		require.ErrorIs(t, err, ErrTransactionRejected)
		assert.ErrorContains(t, err, "bad output payload")
	})

	t.Run("oversized rejected", func(t *testing.T) {
		output := unittest.MPCOutputFixture(5, member)
		output.Output = unittest.RandomBytes(state.ProtocolConfig().MaxConsensusTransactionSize + 1)
		err := validator.ValidateTransaction(dwallet.NewOutputTransaction(output))
		require.ErrorIs(t, err, ErrTransactionRejected)
	})

	t.Run("stale checkpoint signature rejected", func(t *testing.T) {
		stale := dwallet.NewSignatureTransaction(&dwallet.BatchSignature{Kind: dwallet.CheckpointBatch, Epoch: 5, Sequence: 9, Authority: member})
		require.ErrorIs(t, validator.ValidateTransaction(stale), ErrTransactionRejected)

		current := dwallet.NewSignatureTransaction(&dwallet.BatchSignature{Kind: dwallet.CheckpointBatch, Epoch: 5, Sequence: 10, Authority: member})
		require.NoError(t, validator.ValidateTransaction(current))
	})
}
