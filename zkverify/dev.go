package zkverify

import (
	"bytes"
	"crypto/sha256"

	"github.com/zkpay/shieldpool/types"
)

var devProofDomain = []byte("shieldpool/dev-proof/v1")

// DevVerifier accepts exactly the structural proofs produced by DevProve:
// a keyed digest of the public statement. It performs no cryptography and
// exists for development networks and tests, where running the groth16
// trusted setup per circuit is too slow.
type DevVerifier struct{}

// DevProve returns the structural proof DevVerifier accepts for pub.
func DevProve(pub *types.PublicInputs) []byte {
	h := sha256.New()
	h.Write(devProofDomain)
	h.Write(pub.Canonical())
	return h.Sum(nil)
}

// Verify implements Verifier.
func (DevVerifier) Verify(pub *types.PublicInputs, proof []byte) error {
	if !bytes.Equal(proof, DevProve(pub)) {
		return ErrProofInvalid
	}
	return nil
}
