package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/zkpay/shieldpool/types"
)

var supplyPrefix = []byte("sb/")

// Supply is the public book entry of one asset: the amount currently backing
// shielded notes, plus lifetime deposit/withdraw totals for auditing.
type Supply struct {
	Issued    uint64 `json:"issued"`
	Deposited uint64 `json:"deposited"`
	Withdrawn uint64 `json:"withdrawn"`
}

// supplyBook persists per-asset supply entries. Keys are the asset id's
// big-endian bytes; entries are deterministic CBOR.
type supplyBook struct {
	db db.Database
}

func assetKey(asset *types.BigInt) []byte {
	return asset.MathBigInt().Bytes()
}

// Get returns the committed entry for asset; a zero entry if unseen.
func (b *supplyBook) Get(asset *types.BigInt) (Supply, error) {
	rd := prefixeddb.NewPrefixedReader(b.db, supplyPrefix)
	data, err := rd.Get(assetKey(asset))
	if errors.Is(err, db.ErrKeyNotFound) {
		return Supply{}, nil // asset was never minted
	}
	if err != nil {
		return Supply{}, fmt.Errorf("read supply entry: %w", err)
	}
	var s Supply
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Supply{}, fmt.Errorf("decode supply entry: %w", err)
	}
	return s, nil
}

// putWithTx stages the entry for asset into the block transaction.
func (b *supplyBook) putWithTx(wTx db.WriteTx, asset *types.BigInt, s Supply) error {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	data, err := em.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode supply entry: %w", err)
	}
	prefixed := prefixeddb.NewPrefixedWriteTx(wTx, supplyPrefix)
	return prefixed.Set(assetKey(asset), data)
}

// supplyStage is the in-memory per-block view of the supply book: committed
// entries plus the effect of this block's accepted transactions.
type supplyStage struct {
	book    *supplyBook
	entries map[string]Supply
	touched map[string]*types.BigInt
}

func newSupplyStage(book *supplyBook) *supplyStage {
	return &supplyStage{
		book:    book,
		entries: make(map[string]Supply),
		touched: make(map[string]*types.BigInt),
	}
}

func (st *supplyStage) get(asset *types.BigInt) (Supply, error) {
	k := string(assetKey(asset))
	if s, ok := st.entries[k]; ok {
		return s, nil
	}
	s, err := st.book.Get(asset)
	if err != nil {
		return Supply{}, err
	}
	st.entries[k] = s
	return s, nil
}

// mint credits the asset's issued supply. Overflow of the uint64 book is a
// supply rejection, not a fault.
func (st *supplyStage) mint(asset *types.BigInt, value uint64) error {
	s, err := st.get(asset)
	if err != nil {
		return err
	}
	if value > math.MaxUint64-s.Issued {
		return reject(SupplyError, "mint of %d overflows issued supply %d for asset %s",
			value, s.Issued, asset.String())
	}
	s.Issued += value
	s.Deposited += value
	st.set(asset, s)
	return nil
}

// reclaim debits the asset's issued supply. Reclaiming more than the issued
// backing is the insufficient-backing rejection.
func (st *supplyStage) reclaim(asset *types.BigInt, value uint64) error {
	s, err := st.get(asset)
	if err != nil {
		return err
	}
	if value > s.Issued {
		return reject(SupplyError, "insufficient backing: reclaim of %d exceeds issued supply %d for asset %s",
			value, s.Issued, asset.String())
	}
	s.Issued -= value
	s.Withdrawn += value
	st.set(asset, s)
	return nil
}

func (st *supplyStage) set(asset *types.BigInt, s Supply) {
	k := string(assetKey(asset))
	st.entries[k] = s
	st.touched[k] = asset
}

// flush writes every touched entry into the block transaction.
func (st *supplyStage) flush(wTx db.WriteTx) error {
	for k, asset := range st.touched {
		if err := st.book.putWithTx(wTx, asset, st.entries[k]); err != nil {
			return err
		}
	}
	return nil
}
