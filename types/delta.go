package types

// InsertedCommitment is a commitment together with the leaf position the
// accumulator assigned to it. Leaf indexes are global across shards:
// shard*capacity + position inside the shard.
type InsertedCommitment struct {
	Commitment HexBytes `json:"commitment"`
	LeafIndex  uint64   `json:"leafIndex"`
	Ciphertext HexBytes `json:"ciphertext,omitempty"`
}

// Checkpoint is a snapshot of the accumulator head recorded after every
// applied transaction. IDs are dense and monotonically increasing; id 0 is
// the genesis checkpoint of the empty accumulator.
type Checkpoint struct {
	ID         uint64   `json:"id"`
	ShardIndex uint32   `json:"shardIndex"`
	Root       HexBytes `json:"root"`
	LeafCount  uint64   `json:"leafCount"`
}

// StateDelta is the atomic unit of ledger mutation produced by one accepted
// transaction: the commitments inserted, the nullifiers recorded and the
// resulting accumulator checkpoint. Light clients replay deltas in checkpoint
// order to reconstruct commitment and nullifier views.
type StateDelta struct {
	Kind        TxKind               `json:"kind"`
	Commitments []InsertedCommitment `json:"commitments"`
	Nullifiers  []HexBytes           `json:"nullifiers"`
	NewRoot     HexBytes             `json:"newRoot"`
	Checkpoint  Checkpoint           `json:"checkpoint"`
}
