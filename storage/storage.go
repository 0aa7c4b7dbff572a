// Package storage persists the ledger artifacts that are not part of the
// accumulator or nullifier structures themselves: the checkpoint log of
// applied state deltas (the source the sync exporter reads) and the queue of
// pending transactions awaiting validation. It is a prefixed key-value store;
// the following prefixes are used:
//   - 'cl/' for the checkpoint log (big-endian checkpoint id -> state delta)
//   - 'cm/' for checkpoint log metadata (head id)
//   - 'tx/' for pending transactions (queued)
//   - 'tr/' for pending transaction reservations
//
// Queue reservations let several workers pull work without handing the same
// transaction to two of them; a reservation disappears when the item is
// marked done or released.
package storage

import (
	"errors"
	"sync"

	"go.vocdoni.io/dvote/db"

	"github.com/zkpay/shieldpool/log"
)

var (
	// Prefixes for the keys in the database.
	checkpointPrefix     = []byte("cl/")
	checkpointMetaPrefix = []byte("cm/")
	txPrefix             = []byte("tx/")
	txReservationPrefix  = []byte("tr/")
)

var (
	// ErrNotFound is returned when the artifact is not in the storage.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned by queue getters when every pending item
	// is reserved or the queue is empty.
	ErrNoMoreElements = errors.New("no more elements")
)

const (
	// maxKeySize is the number of bytes of an artifact hash used as its
	// queue key.
	maxKeySize = 12
)

// Storage wraps the database with the artifact and queue operations.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance over the given database.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage database", "error", err.Error())
	}
}
