package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// MintCircuit proves that a commitment correctly encodes the publicly
// declared asset and amount under a hidden owner key and blinding. No
// accumulator state is referenced: mints create the note, they do not spend
// any.
//
// Public input order: Commitment, AssetID, Value.
type MintCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	AssetID    frontend.Variable `gnark:",public"`
	Value      frontend.Variable `gnark:",public"`

	PkOwner frontend.Variable
	Rho     frontend.Variable
	Rand    frontend.Variable
}

// Define declares the circuit constraints.
func (c *MintCircuit) Define(api frontend.API) error {
	assertValueRange(api, c.Value)
	cm := noteCommitment(api, c.AssetID, c.Value, c.PkOwner, c.Rho, c.Rand)
	api.AssertIsEqual(cm, c.Commitment)
	return nil
}
