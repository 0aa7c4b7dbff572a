package zkverify

import (
	"context"
	"runtime"
	"sync"

	"github.com/zkpay/shieldpool/types"
)

// BatchItem is one proof to verify together with its statement.
type BatchItem struct {
	Pub   *types.PublicInputs
	Proof []byte
}

// VerifyBatch checks all items concurrently and returns one result per item,
// in input order. Workers are capped at GOMAXPROCS; a cancelled context
// marks every unprocessed item with the context error.
func VerifyBatch(ctx context.Context, v Verifier, items []BatchItem) []error {
	results := make([]error, len(items))
	if len(items) == 0 {
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(items) {
		workers = len(items)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					results[i] = err
					continue
				}
				results[i] = v.Verify(items[i].Pub, items[i].Proof)
			}
		}()
	}
	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}
