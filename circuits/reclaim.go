package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/zkpay/shieldpool/types"
)

// ReclaimCircuit proves a 2-in/1-out spend that reveals a public amount
// leaving the private pool. The constraints are those of TransferCircuit with
// the second output replaced by the public (AssetID, Value) pair.
//
// Public input order: Root, AssetID, Value, Nullifiers[0..1], Commitment, Tag.
type ReclaimCircuit struct {
	Root       frontend.Variable                       `gnark:",public"`
	AssetID    frontend.Variable                       `gnark:",public"`
	Value      frontend.Variable                       `gnark:",public"`
	Nullifiers [types.TransferInputs]frontend.Variable `gnark:",public"`
	Commitment frontend.Variable                       `gnark:",public"`
	Tag        frontend.Variable                       `gnark:",public"`

	In     [types.TransferInputs]InputNote
	Change OutputNote
}

// Define declares the circuit constraints.
func (c *ReclaimCircuit) Define(api frontend.API) error {
	assertValueRange(api, c.Value)
	for i := range c.In {
		in := &c.In[i]
		assertValueRange(api, in.Value)
		pk := ownerKey(api, in.Sk)
		cm := noteCommitment(api, in.AssetID, in.Value, pk, in.Rho, in.Rand)
		in.Path.Verify(api, in.LeafIndex, cm, c.Root)
		vn := noteNullifier(api, in.Sk, in.Rho)
		api.AssertIsEqual(vn, c.Nullifiers[i])
	}
	api.AssertIsDifferent(c.Nullifiers[0], c.Nullifiers[1])

	assertValueRange(api, c.Change.Value)
	changeCm := noteCommitment(api, c.Change.AssetID, c.Change.Value, c.Change.PkOwner, c.Change.Rho, c.Change.Rand)
	api.AssertIsEqual(changeCm, c.Commitment)

	// the revealed asset is the asset of every note involved
	api.AssertIsEqual(c.AssetID, c.In[0].AssetID)
	api.AssertIsEqual(c.AssetID, c.In[1].AssetID)
	api.AssertIsEqual(c.AssetID, c.Change.AssetID)

	// value leaving the pool plus shielded change equals value spent
	api.AssertIsEqual(
		api.Add(c.In[0].Value, c.In[1].Value),
		api.Add(c.Value, c.Change.Value),
	)

	bindPublic(api, c.Tag)
	return nil
}
