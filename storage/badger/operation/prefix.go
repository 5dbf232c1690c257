package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

const (
	// codes for certified batches, by sequence
	codeCertifiedCheckpoint    = 10
	codeCertifiedParamsMessage = 11

	// codes for the highest stored sequence of each kind
	codeLastCheckpointSequence    = 20
	codeLastParamsMessageSequence = 21
)

func batchCode(kind dwallet.BatchKind) byte {
	switch kind {
	case dwallet.CheckpointBatch:
		return codeCertifiedCheckpoint
	case dwallet.ParamsBatch:
		return codeCertifiedParamsMessage
	default:
		panic(fmt.Sprintf("unsupported batch kind %s", kind))
	}
}

func lastSequenceCode(kind dwallet.BatchKind) byte {
	switch kind {
	case dwallet.CheckpointBatch:
		return codeLastCheckpointSequence
	case dwallet.ParamsBatch:
		return codeLastParamsMessageSequence
	default:
		panic(fmt.Sprintf("unsupported batch kind %s", kind))
	}
}

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := []byte{code}
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case dwallet.EpochID:
		return b(uint64(i))
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
