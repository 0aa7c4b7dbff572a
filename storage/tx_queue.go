package storage

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/types"
)

// PushTransaction stores a decoded transaction into the pending queue. The
// key is a truncated hash of the encoded transaction, so pushing the exact
// same payload twice is idempotent.
func (s *Storage) PushTransaction(tx *types.Transaction) error {
	val, err := encodeArtifact(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), txPrefix)
	key := hashKey(val)
	if err := wTx.Set(key, val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// PullTransactions returns up to maxCount non-reserved pending transactions
// and reserves them. Returns ErrNoMoreElements when nothing is available.
// The returned keys mark the items done (or release them) after processing.
func (s *Storage) PullTransactions(maxCount int) ([]*types.Transaction, [][]byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if maxCount == 0 {
		return nil, nil, nil
	}
	reader := prefixeddb.NewPrefixedReader(s.db, txPrefix)
	var txs []*types.Transaction
	var keys [][]byte
	if err := reader.Iterate(nil, func(k, v []byte) bool {
		if maxCount > 0 && len(txs) >= maxCount {
			return false
		}
		if s.isReserved(txReservationPrefix, k) {
			return true
		}
		tx := &types.Transaction{}
		if err := decodeArtifact(v, tx); err != nil {
			log.Warnw("failed to decode pending transaction", "key", hex.EncodeToString(k), "error", err.Error())
			return true
		}
		if err := s.setReservation(txReservationPrefix, k); err != nil {
			log.Warnw("failed to reserve pending transaction", "key", hex.EncodeToString(k), "error", err.Error())
			return true
		}
		keyCopy := make([]byte, len(k))
		copy(keyCopy, k)
		txs = append(txs, tx)
		keys = append(keys, keyCopy)
		return true
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate pending transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil, ErrNoMoreElements
	}
	return txs, keys, nil
}

// MarkTransactionDone removes a processed transaction and its reservation.
func (s *Storage) MarkTransactionDone(key []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(txReservationPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if err := s.deleteArtifact(txPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete pending transaction: %w", err)
	}
	return nil
}

// ReleaseTransaction drops the reservation, making the transaction available
// to the next pull. Used when a batch is abandoned before application.
func (s *Storage) ReleaseTransaction(key []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(txReservationPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// CountPendingTransactions returns the number of queued transactions,
// including reserved ones.
func (s *Storage) CountPendingTransactions() int {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	reader := prefixeddb.NewPrefixedReader(s.db, txPrefix)
	count := 0
	if err := reader.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		log.Warnw("failed to count pending transactions", "error", err.Error())
	}
	return count
}
