package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/zkpay/shieldpool/types"
)

// InputNote is the secret witness for one spent note: its open contents, the
// spending key and the accumulator membership path of its commitment.
type InputNote struct {
	AssetID   frontend.Variable
	Value     frontend.Variable
	Sk        frontend.Variable
	Rho       frontend.Variable
	Rand      frontend.Variable
	LeafIndex frontend.Variable
	Path      MerkleProof
}

// OutputNote is the secret witness for one created note.
type OutputNote struct {
	AssetID frontend.Variable
	Value   frontend.Variable
	PkOwner frontend.Variable
	Rho     frontend.Variable
	Rand    frontend.Variable
}

// TransferCircuit proves a 2-in/2-out private transfer:
//   - each spent commitment is a member of the accumulator at Root,
//   - the prover knows the spending keys of both inputs,
//   - the declared nullifiers are the PRF of those keys over the notes' rho,
//   - inputs and outputs carry the same asset and their values balance,
//   - the declared output commitments encode the output notes.
//
// Public input order: Root, Nullifiers[0..1], Commitments[0..1], Tags[0..1].
type TransferCircuit struct {
	Root        frontend.Variable                          `gnark:",public"`
	Nullifiers  [types.TransferInputs]frontend.Variable    `gnark:",public"`
	Commitments [types.TransferOutputs]frontend.Variable   `gnark:",public"`
	Tags        [types.TransferOutputs]frontend.Variable   `gnark:",public"`

	In  [types.TransferInputs]InputNote
	Out [types.TransferOutputs]OutputNote
}

// Define declares the circuit constraints.
func (c *TransferCircuit) Define(api frontend.API) error {
	for i := range c.In {
		in := &c.In[i]
		assertValueRange(api, in.Value)
		pk := ownerKey(api, in.Sk)
		cm := noteCommitment(api, in.AssetID, in.Value, pk, in.Rho, in.Rand)
		in.Path.Verify(api, in.LeafIndex, cm, c.Root)
		vn := noteNullifier(api, in.Sk, in.Rho)
		api.AssertIsEqual(vn, c.Nullifiers[i])
	}
	// spending the same note twice within one transfer would fold two inputs
	// into one; distinct nullifiers exclude it
	api.AssertIsDifferent(c.Nullifiers[0], c.Nullifiers[1])

	for i := range c.Out {
		out := &c.Out[i]
		assertValueRange(api, out.Value)
		cm := noteCommitment(api, out.AssetID, out.Value, out.PkOwner, out.Rho, out.Rand)
		api.AssertIsEqual(cm, c.Commitments[i])
	}

	// single-asset transfer: every note carries the same asset id
	api.AssertIsEqual(c.In[0].AssetID, c.In[1].AssetID)
	api.AssertIsEqual(c.In[0].AssetID, c.Out[0].AssetID)
	api.AssertIsEqual(c.In[0].AssetID, c.Out[1].AssetID)

	// supply-neutral: value in equals value out
	api.AssertIsEqual(
		api.Add(c.In[0].Value, c.In[1].Value),
		api.Add(c.Out[0].Value, c.Out[1].Value),
	)

	// ciphertext tags carry no constraint of their own; they only have to be
	// part of the statement so swapping a ciphertext invalidates the proof
	bindPublic(api, c.Tags[0])
	bindPublic(api, c.Tags[1])
	return nil
}
