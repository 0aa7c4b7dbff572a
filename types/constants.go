package types

const (
	// DigestSize is the byte length of commitments, nullifiers and roots.
	// All of them are BN254 scalar field elements in the arbo little-endian
	// representation.
	DigestSize = 32
	// AccumulatorLevels is the depth of each accumulator shard tree. It also
	// fixes the Merkle path length inside the transfer and reclaim circuits,
	// so changing it requires a new trusted setup.
	AccumulatorLevels = 16
	// TransferInputs is the number of notes consumed by a private transfer
	// or a reclaim.
	TransferInputs = 2
	// TransferOutputs is the number of notes created by a private transfer.
	TransferOutputs = 2
)
