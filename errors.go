package symkit

import "errors"

// Error taxonomy. Arithmetic and illegal-state errors always propagate to
// the caller; only ErrTimeout is recovered, and only at the simplifier's
// rational-function boundary.
var (
	// ErrArithmetic reports a zero denominator or an inexact division.
	ErrArithmetic = errors.New("symkit: arithmetic error")

	// ErrIllegalState reports an unsupported operand combination, such as
	// an arity mismatch between polynomials or the derivative of abs at
	// exactly zero.
	ErrIllegalState = errors.New("symkit: illegal state")

	// ErrTimeout reports that a canonicalization exceeded its deadline.
	ErrTimeout = errors.New("symkit: canonicalization timed out")
)
