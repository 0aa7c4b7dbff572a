package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/types"
)

var keyHead = []byte("head")

// checkpointKey encodes a checkpoint id as a big-endian key, so prefix
// iteration yields deltas in checkpoint order.
func checkpointKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// AppendDeltaWithTx stages one applied state delta into the checkpoint log
// inside wTx, keyed by its checkpoint id, and advances the head marker. The
// ledger calls this from the same transaction that mutates the accumulator
// and the nullifier set, so the log can never diverge from them.
func (s *Storage) AppendDeltaWithTx(wTx db.WriteTx, delta *types.StateDelta) error {
	val, err := encodeArtifact(delta)
	if err != nil {
		return fmt.Errorf("encode state delta: %w", err)
	}
	cl := prefixeddb.NewPrefixedWriteTx(wTx, checkpointPrefix)
	if err := cl.Set(checkpointKey(delta.Checkpoint.ID), val); err != nil {
		return fmt.Errorf("append state delta: %w", err)
	}
	meta := prefixeddb.NewPrefixedWriteTx(wTx, checkpointMetaPrefix)
	return meta.Set(keyHead, checkpointKey(delta.Checkpoint.ID))
}

// Delta returns the state delta recorded for the given checkpoint id.
// Returns ErrNotFound for unknown ids (including 0: genesis records no
// delta).
func (s *Storage) Delta(id uint64) (*types.StateDelta, error) {
	reader := prefixeddb.NewPrefixedReader(s.db, checkpointPrefix)
	data, err := reader.Get(checkpointKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state delta %d: %w", id, err)
	}
	delta := &types.StateDelta{}
	if err := decodeArtifact(data, delta); err != nil {
		return nil, fmt.Errorf("decode state delta %d: %w", id, err)
	}
	return delta, nil
}

// HeadCheckpointID returns the id of the most recent checkpoint with a
// recorded delta, or 0 when the log is empty (only the genesis checkpoint
// exists).
func (s *Storage) HeadCheckpointID() (uint64, error) {
	reader := prefixeddb.NewPrefixedReader(s.db, checkpointMetaPrefix)
	data, err := reader.Get(keyHead)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read checkpoint head: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}

// DeltasAfter returns up to limit deltas with checkpoint ids strictly greater
// than since, in checkpoint order.
func (s *Storage) DeltasAfter(since uint64, limit int) ([]*types.StateDelta, error) {
	if limit <= 0 {
		return nil, nil
	}
	reader := prefixeddb.NewPrefixedReader(s.db, checkpointPrefix)
	var out []*types.StateDelta
	var iterErr error
	// dvote iterators scan the whole prefix in key order; big-endian ids
	// make that checkpoint order
	if err := reader.Iterate(nil, func(k, v []byte) bool {
		id := binary.BigEndian.Uint64(k)
		if id <= since {
			return true
		}
		delta := &types.StateDelta{}
		if err := decodeArtifact(v, delta); err != nil {
			iterErr = fmt.Errorf("decode state delta %d: %w", id, err)
			return false
		}
		out = append(out, delta)
		return len(out) < limit
	}); err != nil {
		return nil, fmt.Errorf("iterate checkpoint log: %w", err)
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return out, nil
}
