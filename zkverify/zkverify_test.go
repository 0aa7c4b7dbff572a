package zkverify

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	qt "github.com/frankban/quicktest"

	"github.com/zkpay/shieldpool/circuits"
	"github.com/zkpay/shieldpool/crypto/mimc"
	"github.com/zkpay/shieldpool/types"
)

func mintStatement(c *qt.C, assetID, value, pkOwner, rho, rnd int64) (*types.PublicInputs, *circuits.MintCircuit) {
	cm, err := mimc.Commitment(big.NewInt(assetID), big.NewInt(value), big.NewInt(pkOwner), big.NewInt(rho), big.NewInt(rnd))
	c.Assert(err, qt.IsNil)
	pub := &types.PublicInputs{
		Kind:        types.TxKindMint,
		Commitments: []types.HexBytes{mimc.Digest(cm)},
		AssetID:     new(types.BigInt).SetBytes(big.NewInt(assetID).Bytes()),
		Value:       uint64(value),
	}
	assignment := &circuits.MintCircuit{
		Commitment: cm,
		AssetID:    assetID,
		Value:      value,
		PkOwner:    pkOwner,
		Rho:        rho,
		Rand:       rnd,
	}
	return pub, assignment
}

func TestDevVerifier(t *testing.T) {
	c := qt.New(t)

	pub, _ := mintStatement(c, 1, 100, 11, 22, 33)
	proof := DevProve(pub)

	v := DevVerifier{}
	c.Assert(v.Verify(pub, proof), qt.IsNil)

	// a different statement rejects the proof
	other, _ := mintStatement(c, 1, 101, 11, 22, 33)
	c.Assert(v.Verify(other, proof), qt.ErrorIs, ErrProofInvalid)

	// and a tampered proof rejects too
	bad := bytes.Clone(proof)
	bad[0] ^= 1
	c.Assert(v.Verify(pub, bad), qt.ErrorIs, ErrProofInvalid)
}

func TestVerifyBatchMatchesSequential(t *testing.T) {
	c := qt.New(t)

	v := DevVerifier{}
	var items []BatchItem
	for i := int64(0); i < 20; i++ {
		pub, _ := mintStatement(c, 1, 100+i, 11, 22+i, 33)
		proof := DevProve(pub)
		if i%3 == 0 {
			proof[0] ^= 1 // corrupt every third proof
		}
		items = append(items, BatchItem{Pub: pub, Proof: proof})
	}

	results := VerifyBatch(context.Background(), v, items)
	c.Assert(results, qt.HasLen, len(items))
	for i, item := range items {
		sequential := v.Verify(item.Pub, item.Proof)
		if sequential == nil {
			c.Assert(results[i], qt.IsNil)
		} else {
			c.Assert(results[i], qt.ErrorIs, ErrProofInvalid)
		}
	}
}

func TestVerifyBatchCancelledContext(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub, _ := mintStatement(c, 1, 100, 11, 22, 33)
	items := []BatchItem{{Pub: pub, Proof: DevProve(pub)}}
	results := VerifyBatch(ctx, DevVerifier{}, items)
	c.Assert(results[0], qt.ErrorIs, context.Canceled)
}

func TestGroth16MintProof(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	c := qt.New(t)

	ccs, pk, vk, err := circuits.CompileAndSetup(types.TxKindMint)
	c.Assert(err, qt.IsNil)

	pub, assignment := mintStatement(c, 5, 1500, 101, 202, 303)

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	c.Assert(err, qt.IsNil)
	proof, err := groth16.Prove(ccs, pk, witness)
	c.Assert(err, qt.IsNil)
	var proofBuf bytes.Buffer
	_, err = proof.WriteTo(&proofBuf)
	c.Assert(err, qt.IsNil)

	v, err := NewGroth16Verifier()
	c.Assert(err, qt.IsNil)
	v.RegisterKey(types.TxKindMint, vk)

	c.Assert(v.Verify(pub, proofBuf.Bytes()), qt.IsNil)
	// cache hit takes the same path
	c.Assert(v.Verify(pub, proofBuf.Bytes()), qt.IsNil)

	// the proof does not transfer to a different public statement
	tampered, _ := mintStatement(c, 5, 1501, 101, 202, 303)
	c.Assert(v.Verify(tampered, proofBuf.Bytes()), qt.ErrorIs, ErrProofInvalid)

	// verifying key round-trips through its binary form
	vkBytes, err := circuits.MarshalVerifyingKey(vk)
	c.Assert(err, qt.IsNil)
	v2, err := NewGroth16Verifier()
	c.Assert(err, qt.IsNil)
	c.Assert(v2.RegisterKeyBytes(types.TxKindMint, vkBytes), qt.IsNil)
	c.Assert(v2.Verify(pub, proofBuf.Bytes()), qt.IsNil)
}
