package cbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Epoch  uint64
	Labels map[string]uint64
}

// TestEncoder_Deterministic verifies map iteration order does not leak into the encoding.
func TestEncoder_Deterministic(t *testing.T) {
	encoder := NewEncoder()
	labels := map[string]uint64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}

	first := encoder.MustEncode(record{Epoch: 3, Labels: labels})
	for i := 0; i < 20; i++ {
		copied := make(map[string]uint64, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		assert.Equal(t, first, encoder.MustEncode(record{Epoch: 3, Labels: copied}))
	}

	var decoded record
	encoder.MustDecode(first, &decoded)
	assert.Equal(t, record{Epoch: 3, Labels: labels}, decoded)
}

func TestEncoder_RejectsDuplicateKeys(t *testing.T) {
	// map(2) {"a": 1, "a": 2}
	data := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	var decoded map[string]uint64
	err := NewEncoder().Decode(data, &decoded)
	require.Error(t, err)
}
