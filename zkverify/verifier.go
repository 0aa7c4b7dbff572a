// Package zkverify checks zero-knowledge proofs attached to shielded
// transactions against their public statement. It supports natively
// generated gnark/groth16 proofs, circom/snarkjs proofs via rapidsnark,
// and a structural verifier for development and tests.
package zkverify

import (
	"errors"

	"github.com/zkpay/shieldpool/types"
)

// ErrProofInvalid is returned when a proof fails cryptographic
// verification against its public inputs. Malformed proofs or statements
// return distinct errors.
var ErrProofInvalid = errors.New("proof verification failed")

// Verifier validates a proof against the public statement it claims to
// attest. Implementations must be safe for concurrent use.
type Verifier interface {
	// Verify returns nil if proof is valid for pub, ErrProofInvalid if the
	// pairing check fails, or another error if the proof or statement is
	// malformed.
	Verify(pub *types.PublicInputs, proof []byte) error
}
