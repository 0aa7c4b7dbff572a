// Package notecipher implements the note ciphertext envelope: a BabyJubJub
// ECDH key agreement with a MiMC keystream over the note's hidden fields, plus
// the deterministic validity tag that binds a ciphertext to its commitment.
//
// The validation engine treats ciphertexts as opaque; it only recomputes tags.
// Encryption and decryption are the wallet-side counterpart, kept here so
// tests can exercise the full note lifecycle.
package notecipher

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/zkpay/shieldpool/crypto/hash/poseidon"
	"github.com/zkpay/shieldpool/crypto/mimc"
)

// domainKeystream separates keystream derivation from the other MiMC uses.
var domainKeystream = big.NewInt(4)

// fieldsPerNote is the number of hidden field elements carried by a note
// ciphertext: assetID, value, rho, rand.
const fieldsPerNote = 4

// CiphertextSize is the byte length of a serialized note ciphertext:
// a compressed ephemeral public key followed by four encrypted field
// elements.
const CiphertextSize = 32 + fieldsPerNote*32

// bn254ScalarField is the modulus the keystream addition is reduced by.
var bn254ScalarField, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// GenerateViewingKey returns a fresh viewing keypair. The secret scalar stays
// with the wallet; the public point is what senders encrypt to.
func GenerateViewingKey() (*big.Int, *babyjub.Point, error) {
	skBuf := make([]byte, 32)
	if _, err := rand.Read(skBuf); err != nil {
		return nil, nil, fmt.Errorf("read random: %w", err)
	}
	sk := new(big.Int).Mod(new(big.Int).SetBytes(skBuf), babyjub.SubOrder)
	pk := babyjub.NewPoint().Mul(sk, babyjub.B8)
	return sk, pk, nil
}

// Encrypt seals the four note fields to the recipient's viewing key. The
// ephemeral key is fresh per call, so encrypting the same note twice yields
// different ciphertexts.
func Encrypt(recipient *babyjub.Point, assetID, value, rho, rnd *big.Int) ([]byte, error) {
	eskBuf := make([]byte, 32)
	if _, err := rand.Read(eskBuf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	esk := new(big.Int).Mod(new(big.Int).SetBytes(eskBuf), babyjub.SubOrder)
	epk := babyjub.NewPoint().Mul(esk, babyjub.B8)
	shared := babyjub.NewPoint().Mul(esk, recipient)

	out := make([]byte, 0, CiphertextSize)
	compressed := epk.Compress()
	out = append(out, compressed[:]...)
	for i, m := range []*big.Int{assetID, value, rho, rnd} {
		key, err := mimc.Hash(domainKeystream, shared.X, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
		ct := new(big.Int).Add(m, key)
		ct.Mod(ct, bn254ScalarField)
		out = append(out, mimc.Digest(ct)...)
	}
	return out, nil
}

// Decrypt opens a note ciphertext with the recipient's viewing key secret.
// Returns (assetID, value, rho, rand).
func Decrypt(sk *big.Int, ciphertext []byte) (assetID, value, rho, rnd *big.Int, err error) {
	if len(ciphertext) != CiphertextSize {
		return nil, nil, nil, nil, fmt.Errorf("ciphertext: expected %d bytes, got %d", CiphertextSize, len(ciphertext))
	}
	var compressed [32]byte
	copy(compressed[:], ciphertext[:32])
	epk, err := babyjub.NewPoint().Decompress(compressed)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("decompress ephemeral key: %w", err)
	}
	shared := babyjub.NewPoint().Mul(sk, epk)

	fields := make([]*big.Int, fieldsPerNote)
	for i := range fields {
		key, err := mimc.Hash(domainKeystream, shared.X, big.NewInt(int64(i)))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ct := mimc.DigestToBigInt(ciphertext[32+i*32 : 32+(i+1)*32])
		m := new(big.Int).Sub(ct, key)
		m.Mod(m, bn254ScalarField)
		fields[i] = m
	}
	return fields[0], fields[1], fields[2], fields[3], nil
}

// Tag computes the deterministic validity tag binding a ciphertext to its
// commitment: a Poseidon digest over the commitment and the ciphertext split
// into field-sized chunks. The validator recomputes tags itself, so a
// transaction cannot carry a ciphertext that does not belong to its declared
// output.
func Tag(commitment, ciphertext []byte) ([]byte, error) {
	inputs := []*big.Int{mimc.DigestToBigInt(commitment)}
	for off := 0; off < len(ciphertext); off += 31 {
		end := off + 31
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		inputs = append(inputs, new(big.Int).SetBytes(ciphertext[off:end]))
	}
	digest, err := poseidon.MultiPoseidon(inputs...)
	if err != nil {
		return nil, fmt.Errorf("poseidon tag: %w", err)
	}
	return mimc.Digest(digest), nil
}
