package tests

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"go.vocdoni.io/dvote/db/metadb"

	"github.com/zkpay/shieldpool/api"
	"github.com/zkpay/shieldpool/api/client"
	"github.com/zkpay/shieldpool/crypto/mimc"
	"github.com/zkpay/shieldpool/crypto/notecipher"
	"github.com/zkpay/shieldpool/ledger"
	"github.com/zkpay/shieldpool/service"
	"github.com/zkpay/shieldpool/types"
	"github.com/zkpay/shieldpool/util"
	"github.com/zkpay/shieldpool/zkverify"
)

// toBigInt converts an int64 to a *types.BigInt
func toBigInt(i int64) *types.BigInt {
	bi := new(types.BigInt)
	if err := bi.UnmarshalText([]byte(fmt.Sprintf("%d", i))); err != nil {
		panic(err)
	}
	return bi
}

// digest derives a deterministic field-element digest from a seed.
func digest(seed int64) types.HexBytes {
	v, err := mimc.Hash(big.NewInt(seed))
	if err != nil {
		panic(err)
	}
	return mimc.Digest(v)
}

// SetupAPI starts a dev-verifier ledger, its validation worker and the API
// server on a random port. It returns the port and the ledger.
func SetupAPI(t *testing.T) (int, *ledger.Ledger, error) {
	port := util.RandomInt(40000, 60000)

	l, err := ledger.New(metadb.NewTest(t),
		ledger.Params{RootWindow: 8, ShardCapacityLog: 8, MaxShards: 2},
		zkverify.DevVerifier{})
	if err != nil {
		return 0, nil, err
	}

	ls, err := service.NewLedger(l, 16, 25*time.Millisecond)
	if err != nil {
		return 0, nil, err
	}
	if err := ls.Start(context.Background()); err != nil {
		return 0, nil, err
	}
	t.Cleanup(ls.Stop)

	if _, err := api.New(&api.APIConfig{
		Host:   "127.0.0.1",
		Port:   port,
		Ledger: l,
	}); err != nil {
		return 0, nil, err
	}

	// Wait for the HTTP server to start
	time.Sleep(500 * time.Millisecond)
	return port, l, nil
}

// NewTestClient creates a new API client for testing.
func NewTestClient(port int) (*client.HTTPclient, error) {
	return client.New(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewMint builds a mint transaction with a development proof over its
// public statement.
func NewMint(assetID int64, value uint64, seed int64) *types.Transaction {
	mint := &types.Mint{
		AssetID:    *toBigInt(assetID),
		Value:      value,
		Commitment: digest(seed),
		Ciphertext: util.RandomBytes(notecipher.CiphertextSize),
	}
	mint.Proof = zkverify.DevProve(&types.PublicInputs{
		Kind:        types.TxKindMint,
		Commitments: []types.HexBytes{mint.Commitment},
		AssetID:     &mint.AssetID,
		Value:       mint.Value,
	})
	return &types.Transaction{Kind: types.TxKindMint, Mint: mint}
}

// NewReclaim builds a reclaim transaction with a development proof over the
// statement the ledger derives, including the engine-computed ciphertext tag.
func NewReclaim(root types.HexBytes, assetID int64, value uint64, seed int64) (*types.Transaction, error) {
	reclaim := &types.Reclaim{
		RootRef:    root,
		AssetID:    *toBigInt(assetID),
		Value:      value,
		Nullifiers: [types.TransferInputs]types.HexBytes{digest(seed), digest(seed + 1)},
		Commitment: digest(seed + 2),
		Ciphertext: util.RandomBytes(notecipher.CiphertextSize),
	}
	tag, err := notecipher.Tag(reclaim.Commitment, reclaim.Ciphertext)
	if err != nil {
		return nil, err
	}
	reclaim.Proof = zkverify.DevProve(&types.PublicInputs{
		Kind:        types.TxKindReclaim,
		Root:        reclaim.RootRef,
		AssetID:     &reclaim.AssetID,
		Value:       reclaim.Value,
		Nullifiers:  reclaim.Nullifiers[:],
		Commitments: []types.HexBytes{reclaim.Commitment},
		Tags:        []types.HexBytes{tag},
	})
	return &types.Transaction{Kind: types.TxKindReclaim, Reclaim: reclaim}, nil
}

// waitForCheckpoint polls the API until the accumulator head reaches the
// given checkpoint id or the deadline expires.
func waitForCheckpoint(cli *client.HTTPclient, id uint64, timeout time.Duration) (*api.RootResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		root, err := cli.Root()
		if err != nil {
			return nil, err
		}
		if root.Checkpoint >= id {
			return root, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("checkpoint %d not reached, head is %d", id, root.Checkpoint)
		}
		time.Sleep(25 * time.Millisecond)
	}
}
