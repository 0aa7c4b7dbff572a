package ledger

import (
	"context"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/zkpay/shieldpool/crypto/mimc"
	"github.com/zkpay/shieldpool/types"
	"github.com/zkpay/shieldpool/zkverify"
)

func testParams() Params {
	return Params{RootWindow: 4, ShardCapacityLog: 8, MaxShards: 4}
}

func newTestLedger(t *testing.T, params Params) *Ledger {
	t.Helper()
	l, err := New(metadb.NewTest(t), params, zkverify.DevVerifier{})
	qt.Assert(t, err, qt.IsNil)
	return l
}

// dg derives a deterministic field-element digest from a seed, usable as a
// commitment or nullifier.
func dg(c *qt.C, seed int64) types.HexBytes {
	v, err := mimc.Hash(big.NewInt(seed))
	c.Assert(err, qt.IsNil)
	return mimc.Digest(v)
}

// ct returns a deterministic opaque ciphertext blob for the seed.
func ct(seed int64) types.HexBytes {
	out := make(types.HexBytes, 64)
	for i := range out {
		out[i] = byte(seed) + byte(i)
	}
	return out
}

func asset(id int64) types.BigInt {
	var a types.BigInt
	a.SetBytes(big.NewInt(id).Bytes())
	return a
}

// prove attaches a development proof over the statement the ledger itself
// derives for the transaction.
func prove(c *qt.C, l *Ledger, tx *types.Transaction) *types.Transaction {
	pub, err := l.statement(tx)
	c.Assert(err, qt.IsNil)
	proof := types.HexBytes(zkverify.DevProve(pub))
	switch tx.Kind {
	case types.TxKindMint:
		tx.Mint.Proof = proof
	case types.TxKindPrivateTransfer:
		tx.Transfer.Proof = proof
	case types.TxKindReclaim:
		tx.Reclaim.Proof = proof
	}
	return tx
}

func mkMint(c *qt.C, l *Ledger, assetID int64, value uint64, seed int64) *types.Transaction {
	return prove(c, l, &types.Transaction{
		Kind: types.TxKindMint,
		Mint: &types.Mint{
			AssetID:    asset(assetID),
			Value:      value,
			Commitment: dg(c, seed),
			Ciphertext: ct(seed),
		},
	})
}

func mkTransfer(c *qt.C, l *Ledger, root types.HexBytes, seed int64) *types.Transaction {
	return prove(c, l, &types.Transaction{
		Kind: types.TxKindPrivateTransfer,
		Transfer: &types.PrivateTransfer{
			RootRef:     root,
			Nullifiers:  [types.TransferInputs]types.HexBytes{dg(c, seed), dg(c, seed+1)},
			Commitments: [types.TransferOutputs]types.HexBytes{dg(c, seed+2), dg(c, seed+3)},
			Ciphertexts: [types.TransferOutputs]types.HexBytes{ct(seed), ct(seed + 1)},
		},
	})
}

func mkReclaim(c *qt.C, l *Ledger, root types.HexBytes, assetID int64, value uint64, seed int64) *types.Transaction {
	return prove(c, l, &types.Transaction{
		Kind: types.TxKindReclaim,
		Reclaim: &types.Reclaim{
			RootRef:    root,
			AssetID:    asset(assetID),
			Value:      value,
			Nullifiers: [types.TransferInputs]types.HexBytes{dg(c, seed), dg(c, seed+1)},
			Commitment: dg(c, seed+2),
			Ciphertext: ct(seed),
		},
	})
}

func TestMintAppliesAndUpdatesSupply(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	delta, err := l.ValidateTx(context.Background(), mkMint(c, l, 1, 100, 10))
	c.Assert(err, qt.IsNil)
	c.Assert(delta.Commitments, qt.HasLen, 1)
	c.Assert(delta.Commitments[0].LeafIndex, qt.Equals, uint64(0))
	c.Assert(delta.Checkpoint.ID, qt.Equals, uint64(1))
	c.Assert(delta.Nullifiers, qt.HasLen, 0)

	a := asset(1)
	s, err := l.Supply(&a)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, Supply{Issued: 100, Deposited: 100})

	c.Assert(l.Accumulator().TotalLeaves(), qt.Equals, uint64(1))
	head, err := l.Storage().HeadCheckpointID()
	c.Assert(err, qt.IsNil)
	c.Assert(head, qt.Equals, uint64(1))
	logged, err := l.Storage().Delta(1)
	c.Assert(err, qt.IsNil)
	c.Assert(logged.NewRoot.String(), qt.Equals, delta.NewRoot.String())
	c.Assert(logged.Commitments[0].Ciphertext.String(), qt.Equals, ct(10).String())
}

func TestReclaimSupplyArithmetic(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())
	ctx := context.Background()

	_, err := l.ValidateTx(ctx, mkMint(c, l, 1, 100, 10))
	c.Assert(err, qt.IsNil)
	root := l.Accumulator().LatestCheckpoint().Root

	// reclaim 40 of the 100 issued
	delta, err := l.ValidateTx(ctx, mkReclaim(c, l, root, 1, 40, 20))
	c.Assert(err, qt.IsNil)
	c.Assert(delta.Commitments, qt.HasLen, 1) // the change note
	c.Assert(delta.Nullifiers, qt.HasLen, 2)

	a := asset(1)
	s, err := l.Supply(&a)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, Supply{Issued: 60, Deposited: 100, Withdrawn: 40})

	// reclaiming 70 exceeds the remaining backing of 60
	root = l.Accumulator().LatestCheckpoint().Root
	_, err = l.ValidateTx(ctx, mkReclaim(c, l, root, 1, 70, 30))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, SupplyError)

	// the rejection changed nothing
	s, err = l.Supply(&a)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, Supply{Issued: 60, Deposited: 100, Withdrawn: 40})
}

func TestDoubleSpendAcrossBlocks(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())
	ctx := context.Background()

	root := l.Accumulator().LatestCheckpoint().Root
	_, err := l.ValidateTx(ctx, mkTransfer(c, l, root, 100))
	c.Assert(err, qt.IsNil)

	// a later transaction reusing one of the nullifiers is a double spend
	root = l.Accumulator().LatestCheckpoint().Root
	_, err = l.ValidateTx(ctx, mkTransfer(c, l, root, 101)) // shares dg(101)
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, DoubleSpend)
}

func TestIntraBatchDoubleSpend(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	root := l.Accumulator().LatestCheckpoint().Root
	a := mkTransfer(c, l, root, 100)
	b := mkTransfer(c, l, root, 101) // nullifier dg(101) collides with a

	res, err := l.ValidateBatch(context.Background(), []*types.Transaction{a, b})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Accepted, qt.Equals, 1)
	c.Assert(res.Results[0].Err, qt.IsNil)
	code, ok := CodeOf(res.Results[1].Err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, DoubleSpend)

	// only the first transaction's mutations are visible
	present, err := l.Registry().Contains(dg(c, 100))
	c.Assert(err, qt.IsNil)
	c.Assert(present, qt.IsTrue)
	present, err = l.Registry().Contains(dg(c, 102))
	c.Assert(err, qt.IsNil)
	c.Assert(present, qt.IsFalse)
	c.Assert(l.Accumulator().TotalLeaves(), qt.Equals, uint64(2))
}

func TestStaleRootRejected(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams()) // window of 4 roots
	ctx := context.Background()

	genesis := l.Accumulator().LatestCheckpoint().Root

	// each mint records a checkpoint; four of them evict the genesis root
	for i := int64(0); i < 4; i++ {
		_, err := l.ValidateTx(ctx, mkMint(c, l, 1, 10, 10+i))
		c.Assert(err, qt.IsNil)
	}

	_, err := l.ValidateTx(ctx, mkTransfer(c, l, genesis, 100))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, StaleRoot)

	// the freshest root still validates
	root := l.Accumulator().LatestCheckpoint().Root
	_, err = l.ValidateTx(ctx, mkTransfer(c, l, root, 200))
	c.Assert(err, qt.IsNil)
}

func TestIntraBatchRootVisibility(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())
	ctx := context.Background()

	// precompute the root the mint will produce by replaying it on an
	// identical scratch ledger
	scratch := newTestLedger(t, testParams())
	_, err := scratch.ValidateTx(ctx, mkMint(c, scratch, 1, 10, 10))
	c.Assert(err, qt.IsNil)
	futureRoot := scratch.Accumulator().LatestCheckpoint().Root
	c.Assert(l.Accumulator().ContainsRoot(futureRoot), qt.IsFalse)

	// a transfer referencing the root a mint earlier in the same block
	// creates must be accepted: staged checkpoints count toward the window
	mint := mkMint(c, l, 1, 10, 10)
	transfer := mkTransfer(c, l, futureRoot, 100)

	res, err := l.ValidateBatch(ctx, []*types.Transaction{mint, transfer})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Accepted, qt.Equals, 2)
	c.Assert(l.Accumulator().ContainsRoot(futureRoot), qt.IsTrue)
}

func TestInvalidProofRejected(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	tx := mkMint(c, l, 1, 100, 10)
	tx.Mint.Proof[0] ^= 1

	_, err := l.ValidateTx(context.Background(), tx)
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, InvalidProof)
	c.Assert(err, qt.ErrorIs, zkverify.ErrProofInvalid)
	c.Assert(l.Accumulator().TotalLeaves(), qt.Equals, uint64(0))
}

func TestProofBindsEngineComputedTags(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	// the proof covers the tag of the original ciphertext; swapping the
	// stored ciphertext afterwards must invalidate it
	root := l.Accumulator().LatestCheckpoint().Root
	tx := mkTransfer(c, l, root, 100)
	tx.Transfer.Ciphertexts[0] = ct(99)

	_, err := l.ValidateTx(context.Background(), tx)
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, InvalidProof)
}

func TestMalformedTransactionNotARejection(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	tx := mkMint(c, l, 1, 100, 10)
	tx.Mint.Commitment = tx.Mint.Commitment[:16] // wrong digest width

	_, err := l.ValidateTx(context.Background(), tx)
	c.Assert(err, qt.IsNotNil)
	_, ok := CodeOf(err)
	c.Assert(ok, qt.IsFalse)
}

func TestRejectionLeavesNoTrace(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())
	ctx := context.Background()

	_, err := l.ValidateTx(ctx, mkMint(c, l, 1, 100, 10))
	c.Assert(err, qt.IsNil)
	before := l.Accumulator().LatestCheckpoint()
	a := asset(1)
	supplyBefore, err := l.Supply(&a)
	c.Assert(err, qt.IsNil)

	// an over-reclaim is rejected after its nullifiers were inspected
	root := before.Root
	bad := mkReclaim(c, l, root, 1, 1000, 20)
	_, err = l.ValidateTx(ctx, bad)
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, SupplyError)

	after := l.Accumulator().LatestCheckpoint()
	c.Assert(after.ID, qt.Equals, before.ID)
	c.Assert(after.Root.String(), qt.Equals, before.Root.String())
	supplyAfter, err := l.Supply(&a)
	c.Assert(err, qt.IsNil)
	c.Assert(supplyAfter, qt.Equals, supplyBefore)
	present, err := l.Registry().Contains(dg(c, 20))
	c.Assert(err, qt.IsNil)
	c.Assert(present, qt.IsFalse)
	count, err := l.Registry().Count()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(0))
}

func TestCheckpointIDsDenseAndMonotone(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, testParams())

	var txs []*types.Transaction
	for i := int64(0); i < 3; i++ {
		txs = append(txs, mkMint(c, l, 1, 10, 10+i))
	}
	res, err := l.ValidateBatch(context.Background(), txs)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Accepted, qt.Equals, 3)
	for i, r := range res.Results {
		c.Assert(r.Delta.Checkpoint.ID, qt.Equals, uint64(i+1))
	}

	head, err := l.Storage().HeadCheckpointID()
	c.Assert(err, qt.IsNil)
	c.Assert(head, qt.Equals, uint64(3))
	deltas, err := l.Storage().DeltasAfter(0, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(deltas, qt.HasLen, 3)
	for i, d := range deltas {
		c.Assert(d.Checkpoint.ID, qt.Equals, uint64(i+1))
	}
}

func TestShardCapacityAndActivation(t *testing.T) {
	c := qt.New(t)
	l := newTestLedger(t, Params{RootWindow: 8, ShardCapacityLog: 2, MaxShards: 2})
	ctx := context.Background()

	// fill the 4-leaf shard
	for i := int64(0); i < 4; i++ {
		_, err := l.ValidateTx(ctx, mkMint(c, l, 1, 10, 10+i))
		c.Assert(err, qt.IsNil)
	}

	_, err := l.ValidateTx(ctx, mkMint(c, l, 1, 10, 50))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, CapacityExceeded)

	// shard rotation is an explicit operator action
	idx, err := l.ActivateShard()
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint32(1))

	delta, err := l.ValidateTx(ctx, mkMint(c, l, 1, 10, 50))
	c.Assert(err, qt.IsNil)
	c.Assert(delta.Commitments[0].LeafIndex, qt.Equals, uint64(4))
}

func TestLedgerReopenKeepsState(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)
	l, err := New(database, testParams(), zkverify.DevVerifier{})
	c.Assert(err, qt.IsNil)
	ctx := context.Background()

	_, err = l.ValidateTx(ctx, mkMint(c, l, 1, 100, 10))
	c.Assert(err, qt.IsNil)
	root := l.Accumulator().LatestCheckpoint().Root
	_, err = l.ValidateTx(ctx, mkTransfer(c, l, root, 100))
	c.Assert(err, qt.IsNil)
	head := l.Accumulator().LatestCheckpoint()

	reopened, err := New(database, testParams(), zkverify.DevVerifier{})
	c.Assert(err, qt.IsNil)
	c.Assert(reopened.Accumulator().LatestCheckpoint().ID, qt.Equals, head.ID)
	c.Assert(reopened.Accumulator().LatestCheckpoint().Root.String(), qt.Equals, head.Root.String())
	a := asset(1)
	s, err := reopened.Supply(&a)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Issued, qt.Equals, uint64(100))
	present, err := reopened.Registry().Contains(dg(c, 100))
	c.Assert(err, qt.IsNil)
	c.Assert(present, qt.IsTrue)

	// a replayed nullifier is still refused after the reopen
	root = reopened.Accumulator().LatestCheckpoint().Root
	_, err = reopened.ValidateTx(ctx, mkTransfer(c, l, root, 101))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, DoubleSpend)
}
