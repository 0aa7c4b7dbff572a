package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.vocdoni.io/dvote/db"

	"github.com/zkpay/shieldpool/accumulator"
	"github.com/zkpay/shieldpool/crypto/notecipher"
	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/nullifier"
	"github.com/zkpay/shieldpool/storage"
	"github.com/zkpay/shieldpool/types"
	"github.com/zkpay/shieldpool/zkverify"
)

// Params configures a ledger instance. The zero value is invalid; use
// DefaultParams as a base.
type Params struct {
	// RootWindow is the number of recent accumulator roots accepted as a
	// transaction's root reference.
	RootWindow int
	// ShardCapacityLog is log2 of the leaf capacity of one accumulator
	// shard (the tree depth).
	ShardCapacityLog int
	// MaxShards bounds the number of shards over the pool's lifetime.
	MaxShards int
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{
		RootWindow:       64,
		ShardCapacityLog: types.AccumulatorLevels,
		MaxShards:        256,
	}
}

func (p Params) accumulatorConfig() accumulator.Config {
	return accumulator.Config{
		Levels:     p.ShardCapacityLog,
		RootWindow: p.RootWindow,
		MaxShards:  p.MaxShards,
	}
}

// Ledger validates shielded transactions and applies accepted ones. All
// mutable state (accumulator, nullifier registry, supply book, checkpoint
// log) lives in one key-value database, and one block's worth of mutation is
// committed in a single write transaction.
type Ledger struct {
	db       db.Database
	acc      *accumulator.Accumulator
	registry *nullifier.Registry
	supply   *supplyBook
	store    *storage.Storage
	verifier zkverify.Verifier

	// applyMu serializes the stateful validation stages; proof checks run
	// outside of it.
	applyMu sync.Mutex
}

// New opens (or bootstraps) a ledger over the given database. The genesis
// checkpoint of an empty accumulator is recorded on first open.
func New(database db.Database, params Params, verifier zkverify.Verifier) (*Ledger, error) {
	cfg := params.accumulatorConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ledger params: %w", err)
	}
	acc, err := accumulator.New(database, cfg)
	if err != nil {
		return nil, fmt.Errorf("open accumulator: %w", err)
	}
	l := &Ledger{
		db:       database,
		acc:      acc,
		registry: nullifier.New(database),
		supply:   &supplyBook{db: database},
		store:    storage.New(database),
		verifier: verifier,
	}
	cp := acc.LatestCheckpoint()
	log.Infow("ledger open",
		"checkpoint", cp.ID,
		"root", cp.Root.String(),
		"leaves", acc.TotalLeaves())
	return l, nil
}

// Accumulator exposes the commitment accumulator for read paths.
func (l *Ledger) Accumulator() *accumulator.Accumulator { return l.acc }

// Registry exposes the nullifier registry for read paths.
func (l *Ledger) Registry() *nullifier.Registry { return l.registry }

// Storage exposes the artifact storage (checkpoint log, pending queue).
func (l *Ledger) Storage() *storage.Storage { return l.store }

// Supply returns the public supply book entry for the asset.
func (l *Ledger) Supply(asset *types.BigInt) (Supply, error) {
	return l.supply.Get(asset)
}

// ActivateShard seals the active accumulator shard and opens the next one.
// This is an explicit operator action, never taken implicitly.
func (l *Ledger) ActivateShard() (uint32, error) {
	return l.acc.ActivateShard()
}

// TxResult is the per-transaction outcome of a batch validation.
type TxResult struct {
	Delta *types.StateDelta
	Err   error
}

// BatchResult reports the outcome of one block-application cycle.
type BatchResult struct {
	Results  []TxResult
	Accepted int
}

// ValidateTx validates and, if accepted, applies a single transaction.
// Rejections leave the ledger untouched and carry a RejectCode.
func (l *Ledger) ValidateTx(ctx context.Context, tx *types.Transaction) (*types.StateDelta, error) {
	res, err := l.ValidateBatch(ctx, []*types.Transaction{tx})
	if err != nil {
		return nil, err
	}
	r := res.Results[0]
	return r.Delta, r.Err
}

// ValidateBatch validates txs as one block. Proofs are checked concurrently;
// the stateful stages run in submission order, with earlier accepted
// transactions visible to later ones (their nullifiers, their checkpoints).
// All accepted transactions commit in one write transaction; a returned
// error means the whole block had no effect.
func (l *Ledger) ValidateBatch(ctx context.Context, txs []*types.Transaction) (*BatchResult, error) {
	res := &BatchResult{Results: make([]TxResult, len(txs))}
	if len(txs) == 0 {
		return res, nil
	}

	// stage 1: structure and statement building, no state access
	statements := make([]*types.PublicInputs, len(txs))
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			res.Results[i].Err = fmt.Errorf("malformed transaction: %w", err)
			continue
		}
		pub, err := l.statement(tx)
		if err != nil {
			res.Results[i].Err = fmt.Errorf("malformed transaction: %w", err)
			continue
		}
		statements[i] = pub
	}

	// stage 2: concurrent proof verification for the structurally valid set
	items := make([]zkverify.BatchItem, 0, len(txs))
	itemIdx := make([]int, 0, len(txs))
	for i, tx := range txs {
		if statements[i] == nil {
			continue
		}
		items = append(items, zkverify.BatchItem{Pub: statements[i], Proof: tx.Proof()})
		itemIdx = append(itemIdx, i)
	}
	for j, err := range zkverify.VerifyBatch(ctx, l.verifier, items) {
		if err != nil {
			res.Results[itemIdx[j]].Err = &Error{Code: InvalidProof, Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// stages 3..5: root window, nullifiers, supply, then apply. Serialized
	// and staged into a single write transaction.
	l.applyMu.Lock()
	defer l.applyMu.Unlock()

	wTx := l.db.WriteTx()
	staging := l.acc.NewStaging(wTx)
	supply := newSupplyStage(l.supply)
	committed := false
	defer func() {
		if !committed {
			staging.Discard()
			wTx.Discard()
		}
	}()

	for i, tx := range txs {
		if res.Results[i].Err != nil {
			continue
		}
		delta, err := l.applyOne(wTx, staging, supply, tx)
		if err != nil {
			if _, rejected := CodeOf(err); !rejected {
				// internal fault: abort the whole block with no effect
				return nil, fmt.Errorf("apply transaction %d: %w", i, err)
			}
			res.Results[i].Err = err
			continue
		}
		res.Results[i].Delta = delta
		res.Accepted++
	}

	if res.Accepted == 0 {
		return res, nil
	}
	if err := supply.flush(wTx); err != nil {
		return nil, fmt.Errorf("stage supply book: %w", err)
	}
	if err := staging.Commit(); err != nil {
		return nil, fmt.Errorf("commit block: %w", err)
	}
	committed = true

	head := l.acc.LatestCheckpoint()
	log.Infow("block applied",
		"txs", len(txs),
		"accepted", res.Accepted,
		"checkpoint", head.ID,
		"root", head.Root.String())
	return res, nil
}

// applyOne runs the stateful checks for one proof-verified transaction and,
// if they all pass, stages its mutations. Checks precede every mutation, so
// a rejected transaction stages nothing.
func (l *Ledger) applyOne(wTx db.WriteTx, staging *accumulator.Staging,
	supply *supplyStage, tx *types.Transaction,
) (*types.StateDelta, error) {
	// root reference must be inside the retained window (or staged by an
	// earlier transaction of this block)
	if root := tx.RootRef(); root != nil {
		if !staging.ContainsRoot(root) {
			return nil, reject(StaleRoot, "root %s outside the retained window", root.String())
		}
	}

	// every declared nullifier must be fresh, counting this block's earlier
	// transactions
	vns := tx.Nullifiers()
	if len(vns) > 0 {
		if dup, err := l.registry.AnyPresentWithTx(wTx, vns); err != nil {
			return nil, fmt.Errorf("nullifier lookup: %w", err)
		} else if dup != nil {
			return nil, reject(DoubleSpend, "nullifier %s already spent", dup.String())
		}
	}

	commitments := tx.Commitments()
	if uint64(len(commitments)) > staging.Free() {
		return nil, reject(CapacityExceeded, "active shard cannot hold %d more commitments", len(commitments))
	}

	// public supply arithmetic (staged view; rejections roll back nothing)
	switch tx.Kind {
	case types.TxKindMint:
		if err := supply.mint(&tx.Mint.AssetID, tx.Mint.Value); err != nil {
			return nil, err
		}
	case types.TxKindReclaim:
		if err := supply.reclaim(&tx.Reclaim.AssetID, tx.Reclaim.Value); err != nil {
			return nil, err
		}
	}

	// all checks passed: stage the mutations
	delta := &types.StateDelta{Kind: tx.Kind}
	ciphertexts := txCiphertexts(tx)
	for j, cm := range commitments {
		leafIndex, err := staging.Insert(cm)
		if err != nil {
			return nil, fmt.Errorf("insert commitment: %w", err)
		}
		ic := types.InsertedCommitment{Commitment: cm, LeafIndex: leafIndex}
		if j < len(ciphertexts) {
			ic.Ciphertext = ciphertexts[j]
		}
		delta.Commitments = append(delta.Commitments, ic)
	}
	if len(vns) > 0 {
		if err := l.registry.InsertBatchWithTx(wTx, vns); err != nil {
			return nil, fmt.Errorf("register nullifiers: %w", err)
		}
		delta.Nullifiers = vns
	}
	cp, err := staging.RecordCheckpoint()
	if err != nil {
		return nil, fmt.Errorf("record checkpoint: %w", err)
	}
	delta.NewRoot = cp.Root
	delta.Checkpoint = cp
	if err := l.store.AppendDeltaWithTx(wTx, delta); err != nil {
		return nil, fmt.Errorf("append state delta: %w", err)
	}
	return delta, nil
}

// statement derives the public inputs the transaction's proof is verified
// against. Ciphertext tags are computed here, never taken from the
// submitter, which binds each stored ciphertext to its commitment.
func (l *Ledger) statement(tx *types.Transaction) (*types.PublicInputs, error) {
	switch tx.Kind {
	case types.TxKindMint:
		return &types.PublicInputs{
			Kind:        types.TxKindMint,
			Commitments: []types.HexBytes{tx.Mint.Commitment},
			AssetID:     &tx.Mint.AssetID,
			Value:       tx.Mint.Value,
		}, nil

	case types.TxKindPrivateTransfer:
		t := tx.Transfer
		pub := &types.PublicInputs{
			Kind:       types.TxKindPrivateTransfer,
			Root:       t.RootRef,
			Nullifiers: t.Nullifiers[:],
		}
		for i := range t.Commitments {
			tag, err := notecipher.Tag(t.Commitments[i], t.Ciphertexts[i])
			if err != nil {
				return nil, fmt.Errorf("ciphertext %d: %w", i, err)
			}
			pub.Commitments = append(pub.Commitments, t.Commitments[i])
			pub.Tags = append(pub.Tags, tag)
		}
		return pub, nil

	case types.TxKindReclaim:
		r := tx.Reclaim
		tag, err := notecipher.Tag(r.Commitment, r.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("ciphertext: %w", err)
		}
		return &types.PublicInputs{
			Kind:        types.TxKindReclaim,
			Root:        r.RootRef,
			AssetID:     &r.AssetID,
			Value:       r.Value,
			Nullifiers:  r.Nullifiers[:],
			Commitments: []types.HexBytes{r.Commitment},
			Tags:        []types.HexBytes{tag},
		}, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %d", tx.Kind)
}

func txCiphertexts(tx *types.Transaction) []types.HexBytes {
	switch tx.Kind {
	case types.TxKindMint:
		return []types.HexBytes{tx.Mint.Ciphertext}
	case types.TxKindPrivateTransfer:
		return tx.Transfer.Ciphertexts[:]
	case types.TxKindReclaim:
		return []types.HexBytes{tx.Reclaim.Ciphertext}
	}
	return nil
}
