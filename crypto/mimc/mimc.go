// Package mimc implements the native MiMC-BN254 hashing used for note
// commitments, owner keys and the nullifier PRF. Each hash writes a distinct
// domain tag first so the three derivations can never collide. The in-circuit
// counterparts (circuits package) write the same field element sequence, so
// native and constraint-system digests coincide.
package mimc

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/vocdoni/arbo"
)

// Domain tags. Written as the first hash input of each derivation.
var (
	DomainCommitment = big.NewInt(1)
	DomainNullifier  = big.NewInt(2)
	DomainOwnerKey   = big.NewInt(3)
)

// FieldOrder returns the BN254 scalar field modulus.
func FieldOrder() *big.Int {
	return fr.Modulus()
}

// Hash hashes the given field elements with MiMC-BN254 and returns the
// digest as a big.Int. Inputs must be already reduced modulo the scalar
// field.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	h := mimc.NewMiMC()
	for _, input := range inputs {
		var e fr.Element
		e.SetBigInt(input)
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, fmt.Errorf("mimc write: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Commitment derives the note commitment binding (assetID, value, owner key,
// rho, rand).
func Commitment(assetID, value, pkOwner, rho, rand *big.Int) (*big.Int, error) {
	return Hash(DomainCommitment, assetID, value, pkOwner, rho, rand)
}

// Nullifier derives the note nullifier as a PRF of the owner's spending key
// over the note randomness rho. Only the key owner can compute it, and it
// reveals nothing about which commitment it voids.
func Nullifier(sk, rho *big.Int) (*big.Int, error) {
	return Hash(DomainNullifier, sk, rho)
}

// OwnerKey derives the public owner key bound inside commitments from the
// spending key.
func OwnerKey(sk *big.Int) (*big.Int, error) {
	return Hash(DomainOwnerKey, sk)
}

// Digest converts a hash result to the 32-byte little-endian representation
// used by the accumulator and the wire types (arbo convention).
func Digest(v *big.Int) []byte {
	return arbo.BigIntToBytes(32, v)
}

// DigestToBigInt is the inverse of Digest.
func DigestToBigInt(b []byte) *big.Int {
	return arbo.BytesToBigInt(b)
}
