// Package poseidon wraps the iden3 Poseidon hash with support for arbitrary
// input counts. Poseidon natively accepts at most 16 field elements, so
// longer inputs are hashed in 16-element chunks and the chunk digests are
// hashed once more.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// maxInputs bounds the total number of elements MultiPoseidon accepts
// (16 chunks of 16 elements).
const maxInputs = 256

// MultiPoseidon hashes up to 256 field elements into a single digest.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	if len(inputs) > maxInputs {
		return nil, fmt.Errorf("too many inputs: %d > %d", len(inputs), maxInputs)
	}
	var hashes []*big.Int
	for off := 0; off < len(inputs); off += 16 {
		end := off + 16
		if end > len(inputs) {
			end = len(inputs)
		}
		hash, err := poseidon.Hash(inputs[off:end])
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return poseidon.Hash(hashes)
}
