package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

func InsertCertifiedBatch(batch *dwallet.CertifiedBatch) func(*badger.Txn) error {
	return insert(makePrefix(batchCode(batch.Batch.Kind), batch.Batch.Sequence), batch)
}

func RetrieveCertifiedBatch(kind dwallet.BatchKind, sequence uint64, batch *dwallet.CertifiedBatch) func(*badger.Txn) error {
	return retrieve(makePrefix(batchCode(kind), sequence), batch)
}

func UpdateLastSequence(kind dwallet.BatchKind, sequence uint64) func(*badger.Txn) error {
	return upsert(makePrefix(lastSequenceCode(kind)), sequence)
}

func RetrieveLastSequence(kind dwallet.BatchKind, sequence *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(lastSequenceCode(kind)), sequence)
}
