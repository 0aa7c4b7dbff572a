// Package nullifier implements the registry of consumed-note identifiers.
// Membership is permanent: once a nullifier is recorded the note it voids can
// never be spent again. The registry offers an atomic check-and-insert over
// the batch of nullifiers belonging to one transaction, and transaction-
// scoped variants so the ledger can fold registry writes into the single
// per-block commit.
package nullifier

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/types"
)

// ErrAlreadyPresent is returned when any nullifier of a batch is already
// recorded. The whole batch is rejected in that case; none are inserted.
var ErrAlreadyPresent = errors.New("nullifier already present")

var (
	setPrefix  = []byte("nf/")
	metaPrefix = []byte("nm/")

	keyCount = []byte("count")
)

// Registry is the nullifier set over a shared key-value store. Reads are
// lock-free on the underlying store; writes are serialized by the ledger's
// block-application cycle.
type Registry struct {
	db db.Database
}

// New opens the registry stored in the database.
func New(database db.Database) *Registry {
	return &Registry{db: database}
}

// Contains reports whether the nullifier is recorded.
func (r *Registry) Contains(vn types.HexBytes) (bool, error) {
	reader := prefixeddb.NewPrefixedReader(r.db, setPrefix)
	_, err := reader.Get(vn)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("read nullifier: %w", err)
	}
}

// Count returns the number of recorded nullifiers.
func (r *Registry) Count() (uint64, error) {
	reader := prefixeddb.NewPrefixedReader(r.db, metaPrefix)
	data, err := reader.Get(keyCount)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read nullifier count: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}

// InsertBatch atomically records all nullifiers of one transaction. If any
// is already present, nothing is inserted and the error wraps
// ErrAlreadyPresent naming the offending nullifier.
func (r *Registry) InsertBatch(vns []types.HexBytes) error {
	wTx := r.db.WriteTx()
	defer wTx.Discard()
	if err := r.InsertBatchWithTx(wTx, vns); err != nil {
		return err
	}
	return wTx.Commit()
}

// InsertBatchWithTx stages the batch insert into wTx after checking every
// nullifier is absent from both the committed set and the writes already
// staged in wTx. The caller commits or discards wTx.
func (r *Registry) InsertBatchWithTx(wTx db.WriteTx, vns []types.HexBytes) error {
	set := prefixeddb.NewPrefixedWriteTx(wTx, setPrefix)
	for i, vn := range vns {
		// wTx reads observe staged writes, so earlier transactions of the
		// same block are visible here
		if _, err := set.Get(vn); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyPresent, vn.String())
		} else if !errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("read nullifier %d: %w", i, err)
		}
		// duplicates within the batch itself
		for j := range i {
			if string(vns[j]) == string(vn) {
				return fmt.Errorf("%w: %s declared twice", ErrAlreadyPresent, vn.String())
			}
		}
	}
	count, err := r.countWithTx(wTx)
	if err != nil {
		return err
	}
	for _, vn := range vns {
		if err := set.Set(vn, []byte{1}); err != nil {
			return fmt.Errorf("insert nullifier: %w", err)
		}
	}
	meta := prefixeddb.NewPrefixedWriteTx(wTx, metaPrefix)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count+uint64(len(vns)))
	return meta.Set(keyCount, buf)
}

// AnyPresentWithTx reports the first nullifier of the batch that is already
// recorded (committed or staged in wTx), or nil if none are.
func (r *Registry) AnyPresentWithTx(wTx db.WriteTx, vns []types.HexBytes) (types.HexBytes, error) {
	set := prefixeddb.NewPrefixedWriteTx(wTx, setPrefix)
	for i, vn := range vns {
		if _, err := set.Get(vn); err == nil {
			return vn, nil
		} else if !errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("read nullifier %d: %w", i, err)
		}
	}
	return nil, nil
}

func (r *Registry) countWithTx(wTx db.WriteTx) (uint64, error) {
	meta := prefixeddb.NewPrefixedWriteTx(wTx, metaPrefix)
	data, err := meta.Get(keyCount)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read nullifier count: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}
