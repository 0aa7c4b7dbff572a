package zkverify

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/arbo"

	"github.com/zkpay/shieldpool/circuits"
	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/types"
)

// DefaultProofCacheSize bounds the number of verification results cached by
// a Groth16Verifier. Re-submitted transactions (gossip duplicates, retries)
// hit the cache instead of paying a pairing check.
const DefaultProofCacheSize = 4096

// Groth16Verifier verifies gnark groth16 proofs over BN254. One verifying
// key is registered per transaction kind; proofs are expected in gnark's
// canonical binary encoding.
type Groth16Verifier struct {
	mu    sync.RWMutex
	vks   map[types.TxKind]groth16.VerifyingKey
	cache *lru.Cache[[32]byte, bool]
}

// NewGroth16Verifier returns an empty verifier. Verifying keys must be
// registered per kind before proofs of that kind can be checked.
func NewGroth16Verifier() (*Groth16Verifier, error) {
	cache, err := lru.New[[32]byte, bool](DefaultProofCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create proof cache: %w", err)
	}
	return &Groth16Verifier{
		vks:   make(map[types.TxKind]groth16.VerifyingKey),
		cache: cache,
	}, nil
}

// RegisterKey installs the verifying key for one transaction kind,
// replacing any previously registered key.
func (v *Groth16Verifier) RegisterKey(kind types.TxKind, vk groth16.VerifyingKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vks[kind] = vk
	log.Debugw("registered groth16 verifying key", "kind", kind.String())
}

// RegisterKeyBytes installs a verifying key from its canonical binary form.
func (v *Groth16Verifier) RegisterKeyBytes(kind types.TxKind, data []byte) error {
	vk, err := circuits.UnmarshalVerifyingKey(data)
	if err != nil {
		return fmt.Errorf("verifying key for %s: %w", kind, err)
	}
	v.RegisterKey(kind, vk)
	return nil
}

// Verify implements Verifier.
func (v *Groth16Verifier) Verify(pub *types.PublicInputs, proof []byte) error {
	v.mu.RLock()
	vk, ok := v.vks[pub.Kind]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no verifying key registered for kind %s", pub.Kind)
	}

	key := cacheKey(pub, proof)
	if valid, ok := v.cache.Get(key); ok {
		if valid {
			return nil
		}
		return ErrProofInvalid
	}

	assignment, err := publicAssignment(pub)
	if err != nil {
		return err
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}

	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("decode proof: %w", err)
	}

	if err := groth16.Verify(p, vk, witness); err != nil {
		v.cache.Add(key, false)
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	v.cache.Add(key, true)
	return nil
}

func cacheKey(pub *types.PublicInputs, proof []byte) [32]byte {
	h := sha256.New()
	h.Write(pub.Canonical())
	h.Write(proof)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// publicAssignment builds a circuit assignment carrying only the public
// statement. Secret fields stay unassigned; the witness is extracted in
// public-only mode.
func publicAssignment(pub *types.PublicInputs) (frontend.Circuit, error) {
	switch pub.Kind {
	case types.TxKindMint:
		if len(pub.Commitments) != 1 || pub.AssetID == nil {
			return nil, fmt.Errorf("malformed mint statement")
		}
		return &circuits.MintCircuit{
			Commitment: arbo.BytesToBigInt(pub.Commitments[0]),
			AssetID:    pub.AssetID.MathBigInt(),
			Value:      pub.Value,
		}, nil

	case types.TxKindPrivateTransfer:
		if len(pub.Root) == 0 ||
			len(pub.Nullifiers) != types.TransferInputs ||
			len(pub.Commitments) != types.TransferOutputs ||
			len(pub.Tags) != types.TransferOutputs {
			return nil, fmt.Errorf("malformed transfer statement")
		}
		c := &circuits.TransferCircuit{Root: arbo.BytesToBigInt(pub.Root)}
		for i := range c.Nullifiers {
			c.Nullifiers[i] = arbo.BytesToBigInt(pub.Nullifiers[i])
		}
		for i := range c.Commitments {
			c.Commitments[i] = arbo.BytesToBigInt(pub.Commitments[i])
			c.Tags[i] = arbo.BytesToBigInt(pub.Tags[i])
		}
		return c, nil

	case types.TxKindReclaim:
		if len(pub.Root) == 0 || pub.AssetID == nil ||
			len(pub.Nullifiers) != types.TransferInputs ||
			len(pub.Commitments) != 1 || len(pub.Tags) != 1 {
			return nil, fmt.Errorf("malformed reclaim statement")
		}
		c := &circuits.ReclaimCircuit{
			Root:       arbo.BytesToBigInt(pub.Root),
			AssetID:    pub.AssetID.MathBigInt(),
			Value:      pub.Value,
			Commitment: arbo.BytesToBigInt(pub.Commitments[0]),
			Tag:        arbo.BytesToBigInt(pub.Tags[0]),
		}
		for i := range c.Nullifiers {
			c.Nullifiers[i] = arbo.BytesToBigInt(pub.Nullifiers[i])
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %d", pub.Kind)
}
