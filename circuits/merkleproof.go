package circuits

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/arbo"
	garbo "github.com/vocdoni/gnark-crypto-primitives/tree/arbo"
)

// MerkleProof carries one accumulator membership path as circuit witnesses.
// Key is the leaf index, Value the commitment digest; hashing Key+Value
// through Siblings must produce Root.
type MerkleProof struct {
	Siblings [AccumulatorLevels]frontend.Variable
}

// Verify checks that leaf (key, value) is included under root.
func (mp *MerkleProof) Verify(api frontend.API, key, value, root frontend.Variable) {
	if err := garbo.CheckInclusionProof(api, HashFn, key, value, root, mp.Siblings[:]); err != nil {
		FrontendError(api, "inclusion proof check failed", err)
	}
}

// PadSiblings unpacks an arbo packed sibling list and pads it with zeros to
// the circuit path length. Used when assembling witnesses from accumulator
// proofs.
func PadSiblings(packedSiblings []byte) ([AccumulatorLevels]frontend.Variable, error) {
	siblings := [AccumulatorLevels]frontend.Variable{}
	unpacked, err := arbo.UnpackSiblings(arbo.HashFunctionMiMC_BN254, packedSiblings)
	if err != nil {
		return siblings, err
	}
	for i := range AccumulatorLevels {
		if i < len(unpacked) {
			siblings[i] = arbo.BytesToBigInt(unpacked[i])
		} else {
			siblings[i] = big.NewInt(0)
		}
	}
	return siblings, nil
}
