package module

import (
	"errors"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = errors.New("invalid signature")

// Signer signs batch digests on behalf of this authority and verifies the signatures of
// other committee members.
type Signer interface {
	// Sign returns the signature of this authority over digest.
	Sign(digest dwallet.Digest) ([]byte, error)

	// Verify checks that sig is the signature of authority over digest.
	// Expected errors during normal operations:
	//   - module.ErrInvalidSignature if the signature does not verify
	Verify(authority dwallet.AuthorityName, digest dwallet.Digest, sig []byte) error
}
