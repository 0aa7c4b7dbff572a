// Package service wires the ledger, the background validation worker and
// the HTTP API into start/stoppable units for the daemon.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zkpay/shieldpool/ledger"
	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/storage"
	"github.com/zkpay/shieldpool/types"
)

// DefaultBatchSize is the maximum number of pending transactions pulled into
// one block-application cycle.
const DefaultBatchSize = 128

// LedgerService runs the background validation worker: it periodically
// drains the pending transaction queue, validates the batch as one block and
// applies the accepted transactions.
type LedgerService struct {
	ledger    *ledger.Ledger
	ctx       context.Context
	cancel    context.CancelFunc
	batchSize int
	interval  time.Duration
}

// NewLedger creates a validation worker over the given ledger. The interval
// defines how long pending transactions may wait before a batch is formed,
// full or not.
func NewLedger(l *ledger.Ledger, batchSize int, interval time.Duration) (*LedgerService, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		return nil, fmt.Errorf("batch interval must be positive")
	}
	return &LedgerService{
		ledger:    l,
		batchSize: batchSize,
		interval:  interval,
	}, nil
}

// Start begins the validation loop. It returns an error if the service is
// already running.
func (ls *LedgerService) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if ls.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ls.ctx, ls.cancel = context.WithCancel(ctx)

	ticker := time.NewTicker(ls.interval)
	go func() {
		defer ticker.Stop()
		log.Infow("ledger service started", "batchSize", ls.batchSize, "interval", ls.interval)
		for {
			select {
			case <-ls.ctx.Done():
				log.Infow("ledger service stopped")
				return
			case <-ticker.C:
				ls.processPending()
			}
		}
	}()
	return nil
}

// Stop gracefully shuts down the validation loop. It's safe to call Stop
// multiple times.
func (ls *LedgerService) Stop() {
	if ls.cancel != nil {
		ls.cancel()
	}
}

// processPending drains up to one batch from the queue and applies it.
// Transactions that fail with an internal (non-rejection) error are released
// back to the queue for a later retry; rejected ones are dropped.
func (ls *LedgerService) processPending() {
	store := ls.ledger.Storage()
	txs, keys, err := store.PullTransactions(ls.batchSize)
	if err != nil {
		if !errors.Is(err, storage.ErrNoMoreElements) {
			log.Warnw("failed to pull pending transactions", "error", err)
		}
		return
	}
	if len(txs) == 0 {
		return
	}

	res, err := ls.ledger.ValidateBatch(ls.ctx, txs)
	if err != nil {
		// the block had no effect; release everything for retry
		log.Warnw("batch validation aborted", "error", err, "txs", len(txs))
		for _, key := range keys {
			if rerr := store.ReleaseTransaction(key); rerr != nil {
				log.Warnw("failed to release transaction", "error", rerr)
			}
		}
		return
	}

	for i, r := range res.Results {
		switch {
		case r.Err == nil:
			logApplied(txs[i], r.Delta)
		default:
			if code, ok := ledger.CodeOf(r.Err); ok {
				if code == ledger.CapacityExceeded {
					// operator condition: the active shard is full
					log.Errorw(r.Err, "transaction rejected")
				} else {
					log.Infow("transaction rejected",
						"kind", txs[i].Kind.String(),
						"code", code.String(),
						"error", r.Err.Error())
				}
			} else {
				log.Warnw("transaction failed",
					"kind", txs[i].Kind.String(),
					"error", r.Err.Error())
			}
		}
		if err := store.MarkTransactionDone(keys[i]); err != nil {
			log.Warnw("failed to mark transaction done", "error", err)
		}
	}
}

func logApplied(tx *types.Transaction, delta *types.StateDelta) {
	log.Infow("transaction applied",
		"kind", tx.Kind.String(),
		"checkpoint", delta.Checkpoint.ID,
		"root", delta.NewRoot.String(),
		"commitments", len(delta.Commitments),
		"nullifiers", len(delta.Nullifiers))
}
