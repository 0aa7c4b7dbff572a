// Package accumulator maintains the append-only commitment accumulator: a
// sequence of fixed-capacity shards, each one an arbo Merkle tree over the
// key-value store, plus a bounded window of recent root checkpoints.
//
// Leaf positions are assigned sequentially and never change. The active shard
// rejects inserts once full (CapacityExceeded is an operator condition, not a
// per-transaction retry); opening the next shard is the explicit
// ActivateShard operation.
//
// All mutation goes through a Staging bound to one write transaction, so the
// ledger can combine commitment inserts, nullifier inserts and checkpoint
// records into a single atomic commit.
package accumulator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/types"
)

var (
	// ErrCapacityExceeded is returned when the active shard is full. It is a
	// fatal configuration condition: the operator must activate a new shard
	// generation.
	ErrCapacityExceeded = errors.New("accumulator shard capacity exceeded")
	// ErrMaxShards is returned by ActivateShard once the configured shard
	// bound is reached.
	ErrMaxShards = errors.New("maximum number of shards reached")
	// ErrLeafNotFound is returned for membership proofs of unassigned leaf
	// indexes.
	ErrLeafNotFound = errors.New("leaf index not assigned")
)

// hashFunc is the accumulator tree hash. The circuits' in-circuit arbo
// verification assumes this exact function.
var hashFunc = arbo.HashMiMC_BN254{}

// Config are the accumulator policy parameters.
type Config struct {
	// Levels is the depth of each shard tree; shard capacity is 2^Levels.
	Levels int
	// RootWindow is the number of recent checkpoints retained for the
	// staleness test. A larger window tolerates older proofs at the cost of
	// more retained roots.
	RootWindow int
	// MaxShards bounds how many shard generations can be activated.
	MaxShards int
}

// DefaultConfig returns the default accumulator parameters.
func DefaultConfig() Config {
	return Config{
		Levels:     types.AccumulatorLevels,
		RootWindow: 64,
		MaxShards:  256,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.Levels <= 0 || c.Levels > 64 {
		return fmt.Errorf("levels must be in 1..64, got %d", c.Levels)
	}
	if c.RootWindow <= 0 {
		return fmt.Errorf("root window must be positive, got %d", c.RootWindow)
	}
	if c.MaxShards <= 0 {
		return fmt.Errorf("max shards must be positive, got %d", c.MaxShards)
	}
	return nil
}

// Capacity returns the leaf capacity of one shard.
func (c Config) Capacity() uint64 { return uint64(1) << c.Levels }

// Database prefixes. Shard trees live under shardPrefix+index, the
// accumulator metadata under metaPrefix.
var (
	metaPrefix = []byte("am/")

	keyShardCount  = []byte("shards")
	keyActiveShard = []byte("active")
	keyWindow      = []byte("window")
	keyNextCp      = []byte("nextcp")
	keyLeafCount   = []byte("leaves/") // + big-endian shard index
)

func shardPrefix(index uint32) []byte {
	p := make([]byte, 3+4)
	copy(p, "as/")
	binary.BigEndian.PutUint32(p[3:], index)
	return p
}

func leafCountKey(index uint32) []byte {
	k := make([]byte, len(keyLeafCount)+4)
	copy(k, keyLeafCount)
	binary.BigEndian.PutUint32(k[len(keyLeafCount):], index)
	return k
}

// shard is one opened shard generation.
type shard struct {
	index  uint32
	tree   *arbo.Tree
	leaves uint64
}

// Accumulator is the commitment accumulator over a shared key-value store.
// Safe for concurrent readers; all writes go through a Staging.
type Accumulator struct {
	mu     sync.RWMutex
	db     db.Database
	cfg    Config
	shards []*shard
	active int
	// window holds the most recent checkpoints, oldest first, bounded by
	// cfg.RootWindow.
	window []types.Checkpoint
	nextCp uint64
}

// keyLen is the byte width of shard leaf keys.
func (a *Accumulator) keyLen() int { return (a.cfg.Levels + 7) / 8 }

// leafKey encodes a position inside a shard as an arbo key.
func (a *Accumulator) leafKey(pos uint64) []byte {
	return arbo.BigIntToBytes(a.keyLen(), new(big.Int).SetUint64(pos))
}

// openShard opens (or creates) the arbo tree of one shard generation.
func (a *Accumulator) openShard(index uint32) (*shard, error) {
	pdb := prefixeddb.NewPrefixedDatabase(a.db, shardPrefix(index))
	tree, err := arbo.NewTree(arbo.Config{
		Database: pdb, MaxLevels: a.cfg.Levels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("open shard %d: %w", index, err)
	}
	return &shard{index: index, tree: tree}, nil
}

// New opens the accumulator stored in the database, creating the genesis
// state (one empty shard, checkpoint 0 over the empty root) on first use.
func New(database db.Database, cfg Config) (*Accumulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("accumulator config: %w", err)
	}
	a := &Accumulator{db: database, cfg: cfg}

	meta := prefixeddb.NewPrefixedReader(database, metaPrefix)
	countData, err := meta.Get(keyShardCount)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		if err := a.bootstrap(); err != nil {
			return nil, err
		}
		return a, nil
	case err != nil:
		return nil, fmt.Errorf("read shard count: %w", err)
	}

	count := binary.BigEndian.Uint32(countData)
	for i := uint32(0); i < count; i++ {
		sh, err := a.openShard(i)
		if err != nil {
			return nil, err
		}
		leavesData, err := meta.Get(leafCountKey(i))
		if err != nil {
			return nil, fmt.Errorf("read leaf count of shard %d: %w", i, err)
		}
		sh.leaves = binary.BigEndian.Uint64(leavesData)
		a.shards = append(a.shards, sh)
	}

	activeData, err := meta.Get(keyActiveShard)
	if err != nil {
		return nil, fmt.Errorf("read active shard: %w", err)
	}
	a.active = int(binary.BigEndian.Uint32(activeData))

	windowData, err := meta.Get(keyWindow)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint window: %w", err)
	}
	if err := decodeWindow(windowData, &a.window); err != nil {
		return nil, fmt.Errorf("decode checkpoint window: %w", err)
	}

	nextData, err := meta.Get(keyNextCp)
	if err != nil {
		return nil, fmt.Errorf("read next checkpoint id: %w", err)
	}
	a.nextCp = binary.BigEndian.Uint64(nextData)

	log.Debugw("accumulator opened", "shards", count, "active", a.active,
		"leaves", a.TotalLeaves(), "nextCheckpoint", a.nextCp)
	return a, nil
}

// bootstrap initializes the genesis state: shard 0 and checkpoint 0 over the
// empty root.
func (a *Accumulator) bootstrap() error {
	sh, err := a.openShard(0)
	if err != nil {
		return err
	}
	a.shards = []*shard{sh}
	a.active = 0

	root, err := sh.tree.Root()
	if err != nil {
		return fmt.Errorf("genesis root: %w", err)
	}
	genesis := types.Checkpoint{ID: 0, ShardIndex: 0, Root: root, LeafCount: 0}
	a.window = []types.Checkpoint{genesis}
	a.nextCp = 1

	wTx := a.db.WriteTx()
	defer wTx.Discard()
	if err := a.writeMeta(wTx); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit genesis metadata: %w", err)
	}
	log.Infow("accumulator bootstrapped", "genesisRoot", genesis.Root.String())
	return nil
}

// writeMeta stages the current in-memory metadata into wTx. Callers hold the
// write lock or operate on a not-yet-shared instance.
func (a *Accumulator) writeMeta(wTx db.WriteTx) error {
	meta := prefixeddb.NewPrefixedWriteTx(wTx, metaPrefix)

	buf4 := make([]byte, 4)
	binary.BigEndian.PutUint32(buf4, uint32(len(a.shards)))
	if err := meta.Set(keyShardCount, buf4); err != nil {
		return err
	}
	buf4 = make([]byte, 4)
	binary.BigEndian.PutUint32(buf4, uint32(a.active))
	if err := meta.Set(keyActiveShard, buf4); err != nil {
		return err
	}
	for _, sh := range a.shards {
		buf8 := make([]byte, 8)
		binary.BigEndian.PutUint64(buf8, sh.leaves)
		if err := meta.Set(leafCountKey(sh.index), buf8); err != nil {
			return err
		}
	}
	windowData, err := encodeWindow(a.window)
	if err != nil {
		return err
	}
	if err := meta.Set(keyWindow, windowData); err != nil {
		return err
	}
	buf8 := make([]byte, 8)
	binary.BigEndian.PutUint64(buf8, a.nextCp)
	return meta.Set(keyNextCp, buf8)
}

// Root returns the current root of the active shard.
func (a *Accumulator) Root() (types.HexBytes, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	root, err := a.shards[a.active].tree.Root()
	if err != nil {
		return nil, fmt.Errorf("active shard root: %w", err)
	}
	return root, nil
}

// RootAt returns the current root of the given shard generation, sealed or
// active.
func (a *Accumulator) RootAt(index uint32) (types.HexBytes, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(index) >= len(a.shards) {
		return nil, fmt.Errorf("shard %d does not exist", index)
	}
	root, err := a.shards[index].tree.Root()
	if err != nil {
		return nil, fmt.Errorf("shard %d root: %w", index, err)
	}
	return root, nil
}

// RootHistory returns a copy of the retained checkpoint window, oldest first.
func (a *Accumulator) RootHistory() []types.Checkpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.Checkpoint, len(a.window))
	copy(out, a.window)
	return out
}

// ContainsRoot reports whether root is among the retained checkpoints. This
// is the staleness test: a proof referencing a root outside the window is
// rejected as stale, not as cryptographically invalid.
func (a *Accumulator) ContainsRoot(root types.HexBytes) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.windowContains(root)
}

func (a *Accumulator) windowContains(root types.HexBytes) bool {
	for i := len(a.window) - 1; i >= 0; i-- {
		if bytes.Equal(a.window[i].Root, root) {
			return true
		}
	}
	return false
}

// LatestCheckpoint returns the most recent checkpoint.
func (a *Accumulator) LatestCheckpoint() types.Checkpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.window[len(a.window)-1]
}

// TotalLeaves returns the number of commitments across all shards.
func (a *Accumulator) TotalLeaves() uint64 {
	var total uint64
	for _, sh := range a.shards {
		total += sh.leaves
	}
	return total
}

// ActivateShard seals the active shard and opens the next generation. It is
// an explicit operator action, never triggered by transaction traffic.
func (a *Accumulator) ActivateShard() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.shards) >= a.cfg.MaxShards {
		return 0, fmt.Errorf("%w: %d", ErrMaxShards, a.cfg.MaxShards)
	}
	index := uint32(len(a.shards))
	sh, err := a.openShard(index)
	if err != nil {
		return 0, err
	}
	a.shards = append(a.shards, sh)
	a.active = int(index)

	wTx := a.db.WriteTx()
	defer wTx.Discard()
	if err := a.writeMeta(wTx); err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit shard activation: %w", err)
	}
	log.Infow("accumulator shard activated", "shard", index)
	return index, nil
}

// Proof is a membership proof for one commitment leaf.
type Proof struct {
	// Root the proof verifies against.
	Root types.HexBytes `json:"root"`
	// Siblings is the arbo packed sibling list.
	Siblings types.HexBytes `json:"siblings"`
	// LeafIndex is the global leaf position.
	LeafIndex uint64 `json:"leafIndex"`
	// ShardIndex is the shard generation holding the leaf.
	ShardIndex uint32 `json:"shardIndex"`
	// Commitment is the leaf value.
	Commitment types.HexBytes `json:"commitment"`
}

// MembershipProof generates a proof for the leaf at the given global index
// against the current root of its shard.
func (a *Accumulator) MembershipProof(leafIndex uint64) (*Proof, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	capacity := a.cfg.Capacity()
	shardIdx := leafIndex / capacity
	pos := leafIndex % capacity
	if shardIdx >= uint64(len(a.shards)) || pos >= a.shards[shardIdx].leaves {
		return nil, fmt.Errorf("%w: %d", ErrLeafNotFound, leafIndex)
	}
	sh := a.shards[shardIdx]

	root, err := sh.tree.Root()
	if err != nil {
		return nil, fmt.Errorf("shard %d root: %w", shardIdx, err)
	}
	_, value, siblings, existence, err := sh.tree.GenProof(a.leafKey(pos))
	if err != nil {
		return nil, fmt.Errorf("gen proof for leaf %d: %w", leafIndex, err)
	}
	if !existence {
		return nil, fmt.Errorf("%w: %d", ErrLeafNotFound, leafIndex)
	}
	return &Proof{
		Root:       root,
		Siblings:   siblings,
		LeafIndex:  leafIndex,
		ShardIndex: uint32(shardIdx),
		Commitment: value,
	}, nil
}

// VerifyMembership checks a membership proof against the root it carries.
// The proof remains valid for any historical root recorded after the leaf
// was inserted into its shard only if the shard did not grow since; callers
// wanting staleness tolerance check the root against the checkpoint window.
func VerifyMembership(p *Proof, capacity uint64, keyLen int) (bool, error) {
	pos := p.LeafIndex % capacity
	key := arbo.BigIntToBytes(keyLen, new(big.Int).SetUint64(pos))
	return arbo.CheckProof(hashFunc, key, p.Commitment, p.Root, p.Siblings)
}

// Config returns the accumulator configuration.
func (a *Accumulator) Config() Config { return a.cfg }
