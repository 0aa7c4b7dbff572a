// Package ledger implements the state-transition function of the shielded
// pool: it validates submitted transactions against the commitment
// accumulator, the nullifier registry and the per-asset supply book, and
// applies accepted ones atomically.
package ledger

import (
	"errors"
	"fmt"
)

// RejectCode classifies why the ledger refused a transaction. Rejections
// are expected outcomes of validation, not faults: the ledger state is
// untouched by a rejected transaction.
type RejectCode int

const (
	// StaleRoot: the referenced accumulator root is not in the retained
	// checkpoint window.
	StaleRoot RejectCode = iota + 1
	// InvalidProof: the zero-knowledge proof failed verification against
	// the public statement.
	InvalidProof
	// DoubleSpend: a declared nullifier is already registered, by an
	// earlier block or by an earlier transaction of the same block.
	DoubleSpend
	// SupplyError: the public supply arithmetic fails, either reclaiming
	// more than the asset's issued backing or overflowing it on mint.
	SupplyError
	// CapacityExceeded: the active accumulator shard cannot hold the
	// transaction's output commitments.
	CapacityExceeded
)

// String returns the canonical name of the code.
func (c RejectCode) String() string {
	switch c {
	case StaleRoot:
		return "stale_root"
	case InvalidProof:
		return "invalid_proof"
	case DoubleSpend:
		return "double_spend"
	case SupplyError:
		return "supply_error"
	case CapacityExceeded:
		return "capacity_exceeded"
	}
	return fmt.Sprintf("reject(%d)", int(c))
}

// Error is a typed transaction rejection. It wraps the underlying cause, so
// errors.Is works against sentinels like zkverify.ErrProofInvalid, and
// errors.As recovers the code.
type Error struct {
	Code RejectCode
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

func reject(code RejectCode, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the rejection code from err, if it is (or wraps) a ledger
// rejection.
func CodeOf(err error) (RejectCode, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Code, true
	}
	return 0, false
}
