package dwallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dwallet-network/dwallet-node/model/encoding/cbor"
)

// DigestLength is the size of a digest in bytes.
const DigestLength = sha256.Size

// Digest is the sha256 hash of the canonical cbor encoding of a value.
type Digest [DigestLength]byte

// ZeroDigest is the empty digest.
var ZeroDigest = Digest{}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("could not decode digest: %w", err)
	}
	if len(b) != DigestLength {
		return fmt.Errorf("invalid digest length (%d != %d)", len(b), DigestLength)
	}
	copy(d[:], b)
	return nil
}

// MakeDigest hashes the canonical encoding of v.
func MakeDigest(v interface{}) (Digest, error) {
	data, err := cbor.EncMode.Marshal(v)
	if err != nil {
		return ZeroDigest, fmt.Errorf("could not encode value for digest: %w", err)
	}
	return sha256.Sum256(data), nil
}

// MustMakeDigest hashes the canonical encoding of v and panics if v cannot be encoded.
func MustMakeDigest(v interface{}) Digest {
	d, err := MakeDigest(v)
	if err != nil {
		panic(err)
	}
	return d
}
