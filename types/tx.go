package types

import (
	"fmt"
)

// TxKind tags the transaction variants accepted by the ledger.
type TxKind uint8

const (
	TxKindMint TxKind = iota
	TxKindPrivateTransfer
	TxKindReclaim
)

// String returns the lowercase name of the transaction kind.
func (k TxKind) String() string {
	switch k {
	case TxKindMint:
		return "mint"
	case TxKindPrivateTransfer:
		return "transfer"
	case TxKindReclaim:
		return "reclaim"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Mint moves a publicly declared amount of an asset into the private pool,
// creating one shielded output commitment.
type Mint struct {
	AssetID    BigInt   `json:"assetId"`
	Value      uint64   `json:"value"`
	Commitment HexBytes `json:"commitment"`
	Ciphertext HexBytes `json:"ciphertext"`
	Proof      HexBytes `json:"proof"`
}

// PrivateTransfer spends two shielded notes and creates two new ones. Sender,
// receiver and amounts stay hidden; the proof guarantees membership of the
// spent notes at RootRef, authorization, nullifier derivation and per-asset
// balance.
type PrivateTransfer struct {
	RootRef     HexBytes                  `json:"rootRef"`
	Nullifiers  [TransferInputs]HexBytes  `json:"nullifiers"`
	Commitments [TransferOutputs]HexBytes `json:"commitments"`
	Ciphertexts [TransferOutputs]HexBytes `json:"ciphertexts"`
	Proof       HexBytes                  `json:"proof"`
}

// Reclaim spends two shielded notes, reveals a public amount leaving the
// private pool and creates one shielded change output.
type Reclaim struct {
	RootRef    HexBytes                 `json:"rootRef"`
	AssetID    BigInt                   `json:"assetId"`
	Value      uint64                   `json:"value"`
	Nullifiers [TransferInputs]HexBytes `json:"nullifiers"`
	Commitment HexBytes                 `json:"commitment"`
	Ciphertext HexBytes                 `json:"ciphertext"`
	Proof      HexBytes                 `json:"proof"`
}

// Transaction is the tagged variant handed to the ledger by the
// block-production collaborator, already decoded from the wire format.
// Exactly one of the three payload fields is set, matching Kind.
type Transaction struct {
	Kind     TxKind           `json:"kind"`
	Mint     *Mint            `json:"mint,omitempty"`
	Transfer *PrivateTransfer `json:"transfer,omitempty"`
	Reclaim  *Reclaim         `json:"reclaim,omitempty"`
}

// Nullifiers returns the input nullifiers declared by the transaction, in
// declaration order. Empty for mints.
func (tx *Transaction) Nullifiers() []HexBytes {
	switch tx.Kind {
	case TxKindPrivateTransfer:
		if tx.Transfer != nil {
			return tx.Transfer.Nullifiers[:]
		}
	case TxKindReclaim:
		if tx.Reclaim != nil {
			return tx.Reclaim.Nullifiers[:]
		}
	}
	return nil
}

// Commitments returns the output commitments declared by the transaction, in
// declaration order. Empty only for malformed payloads.
func (tx *Transaction) Commitments() []HexBytes {
	switch tx.Kind {
	case TxKindMint:
		if tx.Mint != nil {
			return []HexBytes{tx.Mint.Commitment}
		}
	case TxKindPrivateTransfer:
		if tx.Transfer != nil {
			return tx.Transfer.Commitments[:]
		}
	case TxKindReclaim:
		if tx.Reclaim != nil {
			return []HexBytes{tx.Reclaim.Commitment}
		}
	}
	return nil
}

// RootRef returns the accumulator root the transaction proof was built
// against, or nil for mints (which reference no accumulator state).
func (tx *Transaction) RootRef() HexBytes {
	switch tx.Kind {
	case TxKindPrivateTransfer:
		if tx.Transfer != nil {
			return tx.Transfer.RootRef
		}
	case TxKindReclaim:
		if tx.Reclaim != nil {
			return tx.Reclaim.RootRef
		}
	}
	return nil
}

// Proof returns the zero-knowledge proof bytes of the transaction.
func (tx *Transaction) Proof() HexBytes {
	switch tx.Kind {
	case TxKindMint:
		if tx.Mint != nil {
			return tx.Mint.Proof
		}
	case TxKindPrivateTransfer:
		if tx.Transfer != nil {
			return tx.Transfer.Proof
		}
	case TxKindReclaim:
		if tx.Reclaim != nil {
			return tx.Reclaim.Proof
		}
	}
	return nil
}

// Validate checks the structural well-formedness of the transaction: the
// payload matching the kind is present and all digests have the expected
// width. It does not touch ledger state.
func (tx *Transaction) Validate() error {
	checkDigest := func(name string, b HexBytes) error {
		if len(b) != DigestSize {
			return fmt.Errorf("%s: expected %d bytes, got %d", name, DigestSize, len(b))
		}
		return nil
	}
	switch tx.Kind {
	case TxKindMint:
		if tx.Mint == nil {
			return fmt.Errorf("mint payload missing")
		}
		return checkDigest("commitment", tx.Mint.Commitment)
	case TxKindPrivateTransfer:
		if tx.Transfer == nil {
			return fmt.Errorf("transfer payload missing")
		}
		if err := checkDigest("rootRef", tx.Transfer.RootRef); err != nil {
			return err
		}
		for i, n := range tx.Transfer.Nullifiers {
			if err := checkDigest(fmt.Sprintf("nullifier[%d]", i), n); err != nil {
				return err
			}
		}
		for i, cm := range tx.Transfer.Commitments {
			if err := checkDigest(fmt.Sprintf("commitment[%d]", i), cm); err != nil {
				return err
			}
		}
		return nil
	case TxKindReclaim:
		if tx.Reclaim == nil {
			return fmt.Errorf("reclaim payload missing")
		}
		if err := checkDigest("rootRef", tx.Reclaim.RootRef); err != nil {
			return err
		}
		for i, n := range tx.Reclaim.Nullifiers {
			if err := checkDigest(fmt.Sprintf("nullifier[%d]", i), n); err != nil {
				return err
			}
		}
		return checkDigest("commitment", tx.Reclaim.Commitment)
	}
	return fmt.Errorf("unknown transaction kind %d", tx.Kind)
}
