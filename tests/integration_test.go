package tests

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestMintReclaimLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test binds a network listener")
	}
	c := qt.New(t)

	port, _, err := SetupAPI(t)
	c.Assert(err, qt.IsNil)
	cli, err := NewTestClient(port)
	c.Assert(err, qt.IsNil)

	// the empty pool: genesis checkpoint, zero supply
	root, err := cli.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root.Checkpoint, qt.Equals, uint64(0))
	supply, err := cli.Supply(toBigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(supply.Issued, qt.Equals, uint64(0))

	// mint 500 of asset 1 and wait for the validation worker to apply it
	c.Assert(cli.SubmitTransaction(NewMint(1, 500, 10)), qt.IsNil)
	root, err = waitForCheckpoint(cli, 1, 5*time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(root.LeafCount, qt.Equals, uint64(1))

	supply, err = cli.Supply(toBigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(supply.Issued, qt.Equals, uint64(500))
	c.Assert(supply.Deposited, qt.Equals, uint64(500))

	// reclaim 200 against the current root
	reclaim, err := NewReclaim(root.Root, 1, 200, 20)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.SubmitTransaction(reclaim), qt.IsNil)
	root, err = waitForCheckpoint(cli, 2, 5*time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(root.LeafCount, qt.Equals, uint64(2)) // mint note + change note

	supply, err = cli.Supply(toBigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(supply.Issued, qt.Equals, uint64(300))
	c.Assert(supply.Withdrawn, qt.Equals, uint64(200))

	// replaying the same nullifiers is refused: the head stays put
	replay, err := NewReclaim(root.Root, 1, 50, 20)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.SubmitTransaction(replay), qt.IsNil)
	time.Sleep(300 * time.Millisecond)
	head, err := cli.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(head.Checkpoint, qt.Equals, uint64(2))

	// the retained window lists every checkpoint so far, oldest first
	roots, err := cli.Roots()
	c.Assert(err, qt.IsNil)
	c.Assert(roots, qt.HasLen, 3)
	c.Assert(roots[0].ID, qt.Equals, uint64(0))
	c.Assert(roots[2].ID, qt.Equals, uint64(2))

	// a light client replays the full history through the sync export
	batch, err := cli.SyncSince(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(batch.Deltas, qt.HasLen, 2)
	c.Assert(batch.Deltas[0].Checkpoint.ID, qt.Equals, uint64(1))
	c.Assert(batch.Deltas[1].Nullifiers, qt.HasLen, 2)
	c.Assert(batch.More, qt.IsFalse)

	// resuming from the head yields an empty page
	batch, err = cli.SyncSince(2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(batch.Deltas, qt.HasLen, 0)
}
