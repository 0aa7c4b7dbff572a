// Package note models a shielded asset note: the hidden (asset, value, owner,
// randomness) tuple a commitment binds. The validation engine never sees open
// notes; this package serves the wallet-side mint path and the test suites.
package note

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/zkpay/shieldpool/crypto/mimc"
	"github.com/zkpay/shieldpool/types"
)

// Note is an open shielded note. Rho feeds the nullifier PRF and Rand blinds
// the commitment, so equal (asset, value, owner) notes still commit to
// different digests.
type Note struct {
	AssetID *big.Int
	Value   uint64
	PkOwner *big.Int
	Rho     *big.Int
	Rand    *big.Int
}

// randomFieldElement samples a uniform scalar below the BN254 field order.
func randomFieldElement() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	v := new(big.Int).SetBytes(buf)
	return v.Mod(v, mimc.FieldOrder()), nil
}

// New creates a fresh note owned by the holder of sk.
func New(assetID *big.Int, value uint64, sk *big.Int) (*Note, error) {
	rho, err := randomFieldElement()
	if err != nil {
		return nil, err
	}
	rnd, err := randomFieldElement()
	if err != nil {
		return nil, err
	}
	pk, err := mimc.OwnerKey(sk)
	if err != nil {
		return nil, err
	}
	return &Note{
		AssetID: assetID,
		Value:   value,
		PkOwner: pk,
		Rho:     rho,
		Rand:    rnd,
	}, nil
}

// Commitment returns the accumulator leaf digest of the note.
func (n *Note) Commitment() (types.HexBytes, error) {
	cm, err := mimc.Commitment(n.AssetID, new(big.Int).SetUint64(n.Value), n.PkOwner, n.Rho, n.Rand)
	if err != nil {
		return nil, err
	}
	return mimc.Digest(cm), nil
}

// Nullifier returns the void identifier for the note under the given spending
// key. It verifies key ownership first so a wrong key fails loudly instead of
// producing an unspendable nullifier.
func (n *Note) Nullifier(sk *big.Int) (types.HexBytes, error) {
	pk, err := mimc.OwnerKey(sk)
	if err != nil {
		return nil, err
	}
	if pk.Cmp(n.PkOwner) != 0 {
		return nil, fmt.Errorf("spending key does not own this note")
	}
	vn, err := mimc.Nullifier(sk, n.Rho)
	if err != nil {
		return nil, err
	}
	return mimc.Digest(vn), nil
}

// GenerateSpendingKey samples a fresh spending key.
func GenerateSpendingKey() (*big.Int, error) {
	return randomFieldElement()
}
