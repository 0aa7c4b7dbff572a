package accumulator

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/types"
)

// Staging stages accumulator mutations into one write transaction. Inserts
// and checkpoint records are visible inside the staging (and to tree reads
// through the transaction) but reach the shared accumulator state only on
// Commit; Discard leaves no trace.
//
// A staging holds the accumulator write lock from NewStaging until Commit or
// Discard: one logical writer per block-application cycle.
type Staging struct {
	acc  *Accumulator
	wTx  db.WriteTx
	done bool

	// staged view of the mutable fields
	leaves      uint64 // active shard leaf count including staged inserts
	checkpoints []types.Checkpoint
	nextCp      uint64
}

// NewStaging starts a staged mutation bound to wTx. The caller owns wTx and
// must call exactly one of Commit or Discard.
func (a *Accumulator) NewStaging(wTx db.WriteTx) *Staging {
	a.mu.Lock()
	return &Staging{
		acc:    a,
		wTx:    wTx,
		leaves: a.shards[a.active].leaves,
		nextCp: a.nextCp,
	}
}

// Free returns the remaining leaf capacity of the active shard, counting
// staged inserts. Callers that stage several inserts atomically check Free
// first so a full shard rejects the group before anything is written.
func (s *Staging) Free() uint64 {
	return s.acc.cfg.Capacity() - s.leaves
}

// Insert appends a commitment to the active shard and returns its global
// leaf index. Returns ErrCapacityExceeded when the shard is full; nothing is
// staged in that case.
func (s *Staging) Insert(cm types.HexBytes) (uint64, error) {
	a := s.acc
	if s.leaves >= a.cfg.Capacity() {
		return 0, fmt.Errorf("%w: shard %d at %d leaves", ErrCapacityExceeded, a.active, s.leaves)
	}
	sh := a.shards[a.active]
	prefixed := prefixeddb.NewPrefixedWriteTx(s.wTx, shardPrefix(sh.index))
	if err := sh.tree.AddWithTx(prefixed, a.leafKey(s.leaves), cm); err != nil {
		return 0, fmt.Errorf("insert commitment: %w", err)
	}
	leafIndex := uint64(sh.index)*a.cfg.Capacity() + s.leaves
	s.leaves++
	return leafIndex, nil
}

// RecordCheckpoint records the staged accumulator head as the next
// checkpoint and returns it.
func (s *Staging) RecordCheckpoint() (types.Checkpoint, error) {
	a := s.acc
	sh := a.shards[a.active]
	prefixed := prefixeddb.NewPrefixedWriteTx(s.wTx, shardPrefix(sh.index))
	root, err := sh.tree.RootWithTx(prefixed)
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("staged root: %w", err)
	}
	var total uint64
	for _, other := range a.shards {
		if other.index != sh.index {
			total += other.leaves
		}
	}
	total += s.leaves
	cp := types.Checkpoint{
		ID:         s.nextCp,
		ShardIndex: sh.index,
		Root:       root,
		LeafCount:  total,
	}
	s.checkpoints = append(s.checkpoints, cp)
	s.nextCp++
	return cp, nil
}

// ContainsRoot reports whether root is in the retained window or among the
// staged checkpoints. Later transactions of a block see the roots recorded
// by earlier ones.
func (s *Staging) ContainsRoot(root types.HexBytes) bool {
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		if string(s.checkpoints[i].Root) == string(root) {
			return true
		}
	}
	return s.acc.windowContains(root)
}

// Commit writes the staged metadata into the transaction, commits it, and
// folds the staged state into the accumulator. The transaction commit is the
// single atomicity point for the whole block.
func (s *Staging) Commit() error {
	if s.done {
		return fmt.Errorf("staging already finished")
	}
	a := s.acc

	// fold staged state in memory, then persist metadata in the same tx
	prevLeaves := a.shards[a.active].leaves
	prevWindow := a.window
	prevNextCp := a.nextCp

	a.shards[a.active].leaves = s.leaves
	a.window = append(a.window, s.checkpoints...)
	if excess := len(a.window) - a.cfg.RootWindow; excess > 0 {
		a.window = append([]types.Checkpoint{}, a.window[excess:]...)
	}
	a.nextCp = s.nextCp

	if err := a.writeMeta(s.wTx); err != nil {
		a.shards[a.active].leaves = prevLeaves
		a.window = prevWindow
		a.nextCp = prevNextCp
		a.mu.Unlock()
		s.done = true
		return fmt.Errorf("stage accumulator metadata: %w", err)
	}
	if err := s.wTx.Commit(); err != nil {
		a.shards[a.active].leaves = prevLeaves
		a.window = prevWindow
		a.nextCp = prevNextCp
		a.mu.Unlock()
		s.done = true
		return fmt.Errorf("commit block transaction: %w", err)
	}
	s.done = true
	a.mu.Unlock()
	return nil
}

// Discard abandons the staged mutations. The caller discards wTx itself.
func (s *Staging) Discard() {
	if s.done {
		return
	}
	s.done = true
	s.acc.mu.Unlock()
}

// encodeWindow serializes the checkpoint window with deterministic CBOR, so
// independent validators persist byte-identical metadata for identical
// histories.
func encodeWindow(window []types.Checkpoint) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(window)
}

func decodeWindow(data []byte, window *[]types.Checkpoint) error {
	return cbor.Unmarshal(data, window)
}
