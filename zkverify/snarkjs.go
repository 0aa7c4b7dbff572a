package zkverify

import (
	"encoding/json"
	"fmt"
	"sync"

	rapidsnark "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"

	"github.com/zkpay/shieldpool/types"
)

// SnarkJSVerifier verifies circom/snarkjs groth16 proofs via rapidsnark.
// Proof bytes are the JSON proof document produced by snarkjs; verification
// keys are the snarkjs JSON vkey per transaction kind. Public signals are
// derived from the statement, never taken from the submitted document, so a
// proof cannot smuggle its own inputs.
type SnarkJSVerifier struct {
	mu    sync.RWMutex
	vkeys map[types.TxKind][]byte
}

// NewSnarkJSVerifier returns an empty verifier.
func NewSnarkJSVerifier() *SnarkJSVerifier {
	return &SnarkJSVerifier{vkeys: make(map[types.TxKind][]byte)}
}

// RegisterKey installs the snarkjs verification key JSON for one kind.
func (v *SnarkJSVerifier) RegisterKey(kind types.TxKind, vkey []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vkeys[kind] = vkey
}

// Verify implements Verifier.
func (v *SnarkJSVerifier) Verify(pub *types.PublicInputs, proof []byte) error {
	v.mu.RLock()
	vkey, ok := v.vkeys[pub.Kind]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no verification key registered for kind %s", pub.Kind)
	}

	var proofData rapidsnark.ProofData
	if err := json.Unmarshal(proof, &proofData); err != nil {
		return fmt.Errorf("decode snarkjs proof: %w", err)
	}

	ordered := pub.Ordered()
	signals := make([]string, len(ordered))
	for i, s := range ordered {
		signals[i] = s.String()
	}

	zkp := rapidsnark.ZKProof{
		Proof:      &proofData,
		PubSignals: signals,
	}
	if err := verifier.VerifyGroth16(zkp, vkey); err != nil {
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	return nil
}
