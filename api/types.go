package api

import (
	"github.com/zkpay/shieldpool/types"
)

// RootResponse is the body of GET /root: the accumulator head and the
// checkpoint that recorded it.
type RootResponse struct {
	Root       types.HexBytes `json:"root"`
	Checkpoint uint64         `json:"checkpoint"`
	ShardIndex uint32         `json:"shardIndex"`
	LeafCount  uint64         `json:"leafCount"`
}

// RootsResponse is the body of GET /roots: the retained checkpoint window,
// oldest first. Proofs built against any of these roots are accepted.
type RootsResponse struct {
	Roots []types.Checkpoint `json:"roots"`
}

// SupplyResponse is the body of GET /supply/{assetId}.
type SupplyResponse struct {
	AssetID   *types.BigInt `json:"assetId"`
	Issued    uint64        `json:"issued"`
	Deposited uint64        `json:"deposited"`
	Withdrawn uint64        `json:"withdrawn"`
}

// SubmitResponse is the body of POST /transactions: the submission was
// queued (validation happens asynchronously in the ledger service).
type SubmitResponse struct {
	Queued bool `json:"queued"`
}
