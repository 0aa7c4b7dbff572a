package accumulator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zkpay/shieldpool/types"
)

// snapshotMagic identifies the canonical accumulator snapshot encoding.
var snapshotMagic = [4]byte{'S', 'A', 'C', '1'}

// SnapshotTo writes the canonical byte-exact encoding of the accumulator:
// header, per-shard leaves in index order, and the retained checkpoint
// window. Two validators that applied the same transaction history produce
// identical snapshots.
func (a *Accumulator) SnapshotTo(w io.Writer) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}
	header := []any{
		uint32(a.cfg.Levels),
		uint32(len(a.shards)),
		uint32(a.active),
		a.nextCp,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}

	for _, sh := range a.shards {
		if err := binary.Write(w, binary.BigEndian, sh.leaves); err != nil {
			return err
		}
		for pos := uint64(0); pos < sh.leaves; pos++ {
			_, value, err := sh.tree.Get(a.leafKey(pos))
			if err != nil {
				return fmt.Errorf("read leaf %d of shard %d: %w", pos, sh.index, err)
			}
			if len(value) != types.DigestSize {
				return fmt.Errorf("leaf %d of shard %d: unexpected size %d", pos, sh.index, len(value))
			}
			if _, err := w.Write(value); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(a.window))); err != nil {
		return err
	}
	for _, cp := range a.window {
		if err := binary.Write(w, binary.BigEndian, cp.ID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, cp.ShardIndex); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, cp.LeafCount); err != nil {
			return err
		}
		if len(cp.Root) != types.DigestSize {
			return fmt.Errorf("checkpoint %d: unexpected root size %d", cp.ID, len(cp.Root))
		}
		if _, err := w.Write(cp.Root); err != nil {
			return err
		}
	}
	return nil
}

// RestoreFrom rebuilds the accumulator from a snapshot. The receiver must be
// freshly bootstrapped (no commitments inserted); shard roots are recomputed
// from the restored leaves and checked against the snapshot's window head.
func (a *Accumulator) RestoreFrom(r io.Reader) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.TotalLeaves() != 0 || a.nextCp != 1 {
		return fmt.Errorf("restore requires a fresh accumulator")
	}

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read snapshot magic: %w", err)
	}
	if magic != snapshotMagic {
		return fmt.Errorf("unknown snapshot format %q", magic)
	}
	var levels, shardCount, active uint32
	var nextCp uint64
	for _, v := range []any{&levels, &shardCount, &active, &nextCp} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return fmt.Errorf("read snapshot header: %w", err)
		}
	}
	if int(levels) != a.cfg.Levels {
		return fmt.Errorf("snapshot levels %d do not match configuration %d", levels, a.cfg.Levels)
	}
	if int(shardCount) > a.cfg.MaxShards {
		return fmt.Errorf("snapshot has %d shards, configuration allows %d", shardCount, a.cfg.MaxShards)
	}

	for i := uint32(0); i < shardCount; i++ {
		if i > 0 {
			sh, err := a.openShard(i)
			if err != nil {
				return err
			}
			a.shards = append(a.shards, sh)
		}
		sh := a.shards[i]
		var leaves uint64
		if err := binary.Read(r, binary.BigEndian, &leaves); err != nil {
			return fmt.Errorf("read leaf count of shard %d: %w", i, err)
		}
		if leaves > a.cfg.Capacity() {
			return fmt.Errorf("shard %d: %d leaves exceed capacity %d", i, leaves, a.cfg.Capacity())
		}
		buf := make([]byte, types.DigestSize)
		for pos := uint64(0); pos < leaves; pos++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return fmt.Errorf("read leaf %d of shard %d: %w", pos, i, err)
			}
			if err := sh.tree.Add(a.leafKey(pos), bytes.Clone(buf)); err != nil {
				return fmt.Errorf("restore leaf %d of shard %d: %w", pos, i, err)
			}
		}
		sh.leaves = leaves
	}
	a.active = int(active)
	a.nextCp = nextCp

	var windowLen uint32
	if err := binary.Read(r, binary.BigEndian, &windowLen); err != nil {
		return fmt.Errorf("read window length: %w", err)
	}
	window := make([]types.Checkpoint, windowLen)
	for i := range window {
		cp := &window[i]
		if err := binary.Read(r, binary.BigEndian, &cp.ID); err != nil {
			return err
		}
		if err := binary.Read(r, binary.BigEndian, &cp.ShardIndex); err != nil {
			return err
		}
		if err := binary.Read(r, binary.BigEndian, &cp.LeafCount); err != nil {
			return err
		}
		root := make([]byte, types.DigestSize)
		if _, err := io.ReadFull(r, root); err != nil {
			return err
		}
		cp.Root = root
	}
	a.window = window

	// the recomputed active root must match the snapshot head
	head := a.window[len(a.window)-1]
	root, err := a.shards[a.active].tree.Root()
	if err != nil {
		return fmt.Errorf("restored root: %w", err)
	}
	if !bytes.Equal(root, head.Root) {
		return fmt.Errorf("restored root %x does not match snapshot checkpoint %x", root, head.Root)
	}

	wTx := a.db.WriteTx()
	defer wTx.Discard()
	if err := a.writeMeta(wTx); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit restored metadata: %w", err)
	}
	return nil
}
