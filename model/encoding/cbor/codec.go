package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dwallet-network/dwallet-node/model/encoding"
)

// EncMode is the canonical CBOR encoding mode. Identical values always encode to
// identical bytes, which makes the output suitable for hashing.
var EncMode = func() cbor.EncMode {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not build cbor encoding mode: %v", err))
	}
	return encMode
}()

// DecMode rejects duplicate map keys so that a decoded value has exactly one encoding.
var DecMode = func() cbor.DecMode {
	decMode, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("could not build cbor decoding mode: %v", err))
	}
	return decMode
}()

var _ encoding.Encoder = (*Encoder)(nil)

type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Encode(val interface{}) ([]byte, error) {
	return EncMode.Marshal(val)
}

func (e *Encoder) Decode(b []byte, val interface{}) error {
	return DecMode.Unmarshal(b, val)
}

func (e *Encoder) MustEncode(val interface{}) []byte {
	b, err := e.Encode(val)
	if err != nil {
		panic(err)
	}
	return b
}

func (e *Encoder) MustDecode(b []byte, val interface{}) {
	err := e.Decode(b, val)
	if err != nil {
		panic(err)
	}
}
