package accumulator

import (
	"bytes"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/zkpay/shieldpool/crypto/mimc"
	"github.com/zkpay/shieldpool/types"
)

func testConfig() Config {
	return Config{Levels: 8, RootWindow: 4, MaxShards: 4}
}

func testCommitment(i int64) types.HexBytes {
	v, err := mimc.Hash(big.NewInt(i))
	if err != nil {
		panic(err)
	}
	return mimc.Digest(v)
}

// applyOne inserts one commitment and records a checkpoint, committing the
// staged transaction, the way the ledger applies one accepted transaction.
func applyOne(c *qt.C, database db.Database, a *Accumulator, cm types.HexBytes) types.Checkpoint {
	wTx := database.WriteTx()
	staging := a.NewStaging(wTx)
	_, err := staging.Insert(cm)
	c.Assert(err, qt.IsNil)
	cp, err := staging.RecordCheckpoint()
	c.Assert(err, qt.IsNil)
	c.Assert(staging.Commit(), qt.IsNil)
	return cp
}

func TestGenesis(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)

	cp := a.LatestCheckpoint()
	c.Assert(cp.ID, qt.Equals, uint64(0))
	c.Assert(cp.LeafCount, qt.Equals, uint64(0))
	c.Assert(a.ContainsRoot(cp.Root), qt.IsTrue)
	c.Assert(a.TotalLeaves(), qt.Equals, uint64(0))
}

func TestInsertAssignsSequentialLeaves(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)

	wTx := database.WriteTx()
	staging := a.NewStaging(wTx)
	for i := int64(0); i < 5; i++ {
		idx, err := staging.Insert(testCommitment(i))
		c.Assert(err, qt.IsNil)
		c.Assert(idx, qt.Equals, uint64(i))
	}
	cp, err := staging.RecordCheckpoint()
	c.Assert(err, qt.IsNil)
	c.Assert(cp.LeafCount, qt.Equals, uint64(5))
	c.Assert(staging.Commit(), qt.IsNil)
	c.Assert(a.TotalLeaves(), qt.Equals, uint64(5))
}

func TestDiscardLeavesNoTrace(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)
	genesis := a.LatestCheckpoint()

	wTx := database.WriteTx()
	staging := a.NewStaging(wTx)
	_, err = staging.Insert(testCommitment(1))
	c.Assert(err, qt.IsNil)
	_, err = staging.RecordCheckpoint()
	c.Assert(err, qt.IsNil)
	staging.Discard()
	wTx.Discard()

	c.Assert(a.TotalLeaves(), qt.Equals, uint64(0))
	c.Assert(a.LatestCheckpoint(), qt.DeepEquals, genesis)
}

func TestRootWindowEviction(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig()) // window of 4
	c.Assert(err, qt.IsNil)
	genesisRoot := a.LatestCheckpoint().Root

	var roots []types.HexBytes
	for i := int64(0); i < 4; i++ {
		cp := applyOne(c, database, a, testCommitment(i))
		roots = append(roots, cp.Root)
	}
	// window full: genesis evicted, the four insert roots retained
	c.Assert(a.ContainsRoot(genesisRoot), qt.IsFalse)
	for _, root := range roots {
		c.Assert(a.ContainsRoot(root), qt.IsTrue)
	}

	cp := applyOne(c, database, a, testCommitment(99))
	c.Assert(a.ContainsRoot(roots[0]), qt.IsFalse)
	c.Assert(a.ContainsRoot(cp.Root), qt.IsTrue)
	c.Assert(a.RootHistory(), qt.HasLen, 4)
}

func TestLeafPositionsAreStable(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)

	first := testCommitment(1)
	applyOne(c, database, a, first)
	for i := int64(2); i < 10; i++ {
		applyOne(c, database, a, testCommitment(i))
	}

	// the first leaf still proves under the current root
	proof, err := a.MembershipProof(0)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Commitment, qt.DeepEquals, first)
	ok, err := VerifyMembership(proof, a.Config().Capacity(), a.keyLen())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	_, err = a.MembershipProof(42)
	c.Assert(err, qt.ErrorIs, ErrLeafNotFound)
}

func TestCapacityAndShardActivation(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	cfg := Config{Levels: 2, RootWindow: 16, MaxShards: 2} // 4 leaves per shard
	a, err := New(database, cfg)
	c.Assert(err, qt.IsNil)

	for i := int64(0); i < 4; i++ {
		applyOne(c, database, a, testCommitment(i))
	}

	// the full shard rejects; nothing is staged
	wTx := database.WriteTx()
	staging := a.NewStaging(wTx)
	c.Assert(staging.Free(), qt.Equals, uint64(0))
	_, err = staging.Insert(testCommitment(100))
	c.Assert(err, qt.ErrorIs, ErrCapacityExceeded)
	staging.Discard()
	wTx.Discard()

	// activating the next shard reopens capacity with global leaf indexes
	index, err := a.ActivateShard()
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint32(1))

	wTx = database.WriteTx()
	staging = a.NewStaging(wTx)
	idx, err := staging.Insert(testCommitment(100))
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint64(4)) // shard 1, position 0
	_, err = staging.RecordCheckpoint()
	c.Assert(err, qt.IsNil)
	c.Assert(staging.Commit(), qt.IsNil)

	// sealed and active shards keep independent roots
	sealed, err := a.RootAt(0)
	c.Assert(err, qt.IsNil)
	active, err := a.RootAt(1)
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.Not(qt.DeepEquals), sealed)
	current, err := a.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(current, qt.DeepEquals, active)
	_, err = a.RootAt(2)
	c.Assert(err, qt.IsNotNil)

	_, err = a.ActivateShard()
	c.Assert(err, qt.ErrorIs, ErrMaxShards)
}

func TestReopenRestoresState(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	a, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)
	for i := int64(0); i < 3; i++ {
		applyOne(c, database, a, testCommitment(i))
	}
	head := a.LatestCheckpoint()

	b, err := New(database, testConfig())
	c.Assert(err, qt.IsNil)
	c.Assert(b.TotalLeaves(), qt.Equals, uint64(3))
	c.Assert(b.LatestCheckpoint(), qt.DeepEquals, head)
	c.Assert(b.RootHistory(), qt.DeepEquals, a.RootHistory())
}

func TestSnapshotDeterministicAndRestorable(t *testing.T) {
	c := qt.New(t)

	build := func() (*Accumulator, db.Database) {
		database := metadb.NewTest(t)
		a, err := New(database, testConfig())
		c.Assert(err, qt.IsNil)
		for i := int64(0); i < 6; i++ {
			applyOne(c, database, a, testCommitment(i))
		}
		return a, database
	}

	a1, _ := build()
	a2, _ := build()

	var buf1, buf2 bytes.Buffer
	c.Assert(a1.SnapshotTo(&buf1), qt.IsNil)
	c.Assert(a2.SnapshotTo(&buf2), qt.IsNil)
	// identical histories serialize to identical bytes
	c.Assert(buf1.Bytes(), qt.DeepEquals, buf2.Bytes())

	restored, err := New(metadb.NewTest(t), testConfig())
	c.Assert(err, qt.IsNil)
	c.Assert(restored.RestoreFrom(&buf1), qt.IsNil)
	c.Assert(restored.TotalLeaves(), qt.Equals, a1.TotalLeaves())
	c.Assert(restored.LatestCheckpoint().Root, qt.DeepEquals, a1.LatestCheckpoint().Root)
}
