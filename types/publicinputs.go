package types

import (
	"encoding/binary"
	"math/big"
)

// PublicInputs is the public statement a transaction proof is verified
// against. Which fields are meaningful depends on Kind:
//
//	mint:     Commitments[0], AssetID, Value
//	transfer: Root, Nullifiers[0..1], Commitments[0..1], Tags[0..1]
//	reclaim:  Root, AssetID, Value, Nullifiers[0..1], Commitments[0], Tags[0]
//
// Tags are the deterministic ciphertext validity tags computed by the
// validator from the transaction's ciphertexts; including them in the
// statement binds each ciphertext to its commitment.
type PublicInputs struct {
	Kind        TxKind     `json:"kind"`
	Root        HexBytes   `json:"root,omitempty"`
	Nullifiers  []HexBytes `json:"nullifiers,omitempty"`
	Commitments []HexBytes `json:"commitments,omitempty"`
	Tags        []HexBytes `json:"tags,omitempty"`
	AssetID     *BigInt    `json:"assetId,omitempty"`
	Value       uint64     `json:"value,omitempty"`
}

// leBytesToBigInt interprets a digest in the accumulator's little-endian
// field representation.
func leBytesToBigInt(b []byte) *big.Int {
	rev := make([]byte, len(b))
	for i := range b {
		rev[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(rev)
}

// Ordered returns the public witness values in the fixed order the circuits
// declare them. Verifiers for every proving system consume this ordering.
func (p *PublicInputs) Ordered() []*big.Int {
	var out []*big.Int
	appendDigests := func(ds []HexBytes) {
		for _, d := range ds {
			out = append(out, leBytesToBigInt(d))
		}
	}
	assetID := new(big.Int)
	if p.AssetID != nil {
		assetID = p.AssetID.MathBigInt()
	}
	switch p.Kind {
	case TxKindMint:
		appendDigests(p.Commitments)
		out = append(out, assetID, new(big.Int).SetUint64(p.Value))
	case TxKindPrivateTransfer:
		appendDigests([]HexBytes{p.Root})
		appendDigests(p.Nullifiers)
		appendDigests(p.Commitments)
		appendDigests(p.Tags)
	case TxKindReclaim:
		appendDigests([]HexBytes{p.Root})
		out = append(out, assetID, new(big.Int).SetUint64(p.Value))
		appendDigests(p.Nullifiers)
		appendDigests(p.Commitments)
		appendDigests(p.Tags)
	}
	return out
}

// Canonical returns a deterministic byte encoding of the statement,
// including the kind tag. Used for proof cache keys and structural
// (development) proofs.
func (p *PublicInputs) Canonical() []byte {
	out := []byte{byte(p.Kind)}
	for _, v := range p.Ordered() {
		b := v.Bytes()
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(b)))
		out = append(out, length...)
		out = append(out, b...)
	}
	return out
}
