package circuits

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/zkpay/shieldpool/types"
)

// For returns an empty circuit of the given transaction kind, ready for
// compilation or witness assignment.
func For(kind types.TxKind) (frontend.Circuit, error) {
	switch kind {
	case types.TxKindMint:
		return &MintCircuit{}, nil
	case types.TxKindPrivateTransfer:
		return &TransferCircuit{}, nil
	case types.TxKindReclaim:
		return &ReclaimCircuit{}, nil
	}
	return nil, fmt.Errorf("no circuit for transaction kind %s", kind)
}

// Compile compiles the circuit of the given kind to an R1CS over BN254.
func Compile(kind types.TxKind) (constraint.ConstraintSystem, error) {
	circuit, err := For(kind)
	if err != nil {
		return nil, err
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile %s circuit: %w", kind, err)
	}
	return ccs, nil
}

// CompileAndSetup compiles the circuit for the given kind and runs the
// Groth16 setup. The returned proving key serves the wallet-side prover and
// the test suites; the validation engine only ever needs the verifying key.
func CompileAndSetup(kind types.TxKind) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := Compile(kind)
	if err != nil {
		return nil, nil, nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("groth16 setup for %s: %w", kind, err)
	}
	return ccs, pk, vk, nil
}

// MarshalVerifyingKey serializes a verifying key to its canonical binary
// form, the format accepted by zkverify.Groth16Verifier key registration.
func MarshalVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write verifying key: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalVerifyingKey reads a verifying key from its canonical binary form.
func UnmarshalVerifyingKey(data []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return vk, nil
}
