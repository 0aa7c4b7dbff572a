package nullifier

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/zkpay/shieldpool/types"
)

func vn(b byte) types.HexBytes {
	out := make(types.HexBytes, 32)
	out[31] = b
	return out
}

func TestInsertAndContains(t *testing.T) {
	c := qt.New(t)

	r := New(metadb.NewTest(t))

	ok, err := r.Contains(vn(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(r.InsertBatch([]types.HexBytes{vn(1), vn(2)}), qt.IsNil)

	ok, err = r.Contains(vn(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	ok, err = r.Contains(vn(2))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	count, err := r.Count()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(2))
}

func TestBatchIsAllOrNothing(t *testing.T) {
	c := qt.New(t)

	r := New(metadb.NewTest(t))
	c.Assert(r.InsertBatch([]types.HexBytes{vn(1)}), qt.IsNil)

	// vn(1) is taken, so vn(3) must not be inserted either
	err := r.InsertBatch([]types.HexBytes{vn(3), vn(1)})
	c.Assert(err, qt.ErrorIs, ErrAlreadyPresent)

	ok, err := r.Contains(vn(3))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	count, err := r.Count()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

func TestBatchRejectsInternalDuplicate(t *testing.T) {
	c := qt.New(t)

	r := New(metadb.NewTest(t))
	err := r.InsertBatch([]types.HexBytes{vn(7), vn(7)})
	c.Assert(err, qt.ErrorIs, ErrAlreadyPresent)

	count, err := r.Count()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(0))
}

func TestStagedWritesAreVisible(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	r := New(database)

	wTx := database.WriteTx()
	defer wTx.Discard()

	c.Assert(r.InsertBatchWithTx(wTx, []types.HexBytes{vn(1)}), qt.IsNil)

	// a later transaction of the same block sees the staged nullifier
	dup, err := r.AnyPresentWithTx(wTx, []types.HexBytes{vn(1)})
	c.Assert(err, qt.IsNil)
	c.Assert(dup, qt.DeepEquals, vn(1))

	// but the committed view does not, until commit
	ok, err := r.Contains(vn(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(wTx.Commit(), qt.IsNil)
	ok, err = r.Contains(vn(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}
