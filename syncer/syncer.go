// Package syncer exports the applied state history as gap-free pages of
// state deltas, so light clients and fresh validators can rebuild their
// commitment and nullifier views from any acknowledged checkpoint.
package syncer

import (
	"errors"
	"fmt"

	"github.com/zkpay/shieldpool/storage"
	"github.com/zkpay/shieldpool/types"
)

// ErrUnknownCheckpoint is returned when the requested cursor lies beyond the
// head of the checkpoint log.
var ErrUnknownCheckpoint = errors.New("unknown checkpoint")

// DefaultPageSize bounds a sync page when the caller does not.
const DefaultPageSize = 256

// MaxPageSize is the hard page bound, whatever the caller requests.
const MaxPageSize = 1024

// SyncBatch is one page of the state history: every delta with checkpoint id
// in (From, To], in order. More signals that the log continues past To.
type SyncBatch struct {
	From   uint64              `json:"from"`
	To     uint64              `json:"to"`
	Deltas []*types.StateDelta `json:"deltas"`
	More   bool                `json:"more"`
}

// Syncer reads the checkpoint log. It holds no mutable state; the cursor
// lives with the caller.
type Syncer struct {
	store *storage.Storage
}

// New returns a syncer over the given storage.
func New(store *storage.Storage) *Syncer {
	return &Syncer{store: store}
}

// ExportSince returns the deltas recorded after checkpointID, at most limit
// of them. A crashed or lagging consumer resumes by re-requesting from its
// last acknowledged id; pages never skip a checkpoint.
func (s *Syncer) ExportSince(checkpointID uint64, limit int) (*SyncBatch, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	head, err := s.store.HeadCheckpointID()
	if err != nil {
		return nil, fmt.Errorf("checkpoint log head: %w", err)
	}
	if checkpointID > head {
		return nil, fmt.Errorf("%w: %d is beyond head %d", ErrUnknownCheckpoint, checkpointID, head)
	}
	deltas, err := s.store.DeltasAfter(checkpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("read state deltas: %w", err)
	}
	batch := &SyncBatch{From: checkpointID, To: checkpointID, Deltas: deltas}
	if len(deltas) > 0 {
		batch.To = deltas[len(deltas)-1].Checkpoint.ID
	}
	batch.More = batch.To < head
	return batch, nil
}
