package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding. Deterministic CBOR so independent validators
// persist byte-identical artifacts for identical histories.
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

func hashKey(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:maxKeySize]
}

// setReservation writes a reservation marker for key under the given prefix.
// It fails if the reservation already exists.
func (s *Storage) setReservation(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if _, err := wTx.Get(key); err == nil {
		wTx.Discard()
		return fmt.Errorf("reservation already exists")
	}
	if err := wTx.Set(key, []byte{1}); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// isReserved reports whether key carries a reservation under the prefix.
func (s *Storage) isReserved(prefix, key []byte) bool {
	reader := prefixeddb.NewPrefixedReader(s.db, prefix)
	_, err := reader.Get(key)
	return err == nil
}

// deleteArtifact removes key under the given prefix. Returns ErrNotFound if
// the key does not exist.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	reader := prefixeddb.NewPrefixedReader(s.db, prefix)
	if _, err := reader.Get(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
