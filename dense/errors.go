// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"errors"
	"fmt"
)

var (
	// ErrDimension matches every *DimensionError.
	ErrDimension = errors.New("dense: dimension mismatch")
	// ErrOutOfRange matches every *OutOfRangeError.
	ErrOutOfRange = errors.New("dense: index out of range")
	// ErrNotPositiveDefinite matches a *NumericalError raised by a non-positive pivot.
	ErrNotPositiveDefinite = errors.New("dense: matrix is not positive definite")
	// ErrSingular matches a *NumericalError raised by a zero diagonal in a triangular solve.
	ErrSingular = errors.New("dense: triangular matrix is singular")
)

// DimensionError reports a shape that does not match what an operation requires.
type DimensionError struct {
	Op   string // operation or term that was checked
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dense: %s: dimension mismatch: expected %d, got %d", e.Op, e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimension }

// OutOfRangeError reports an index outside [0, Len).
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("dense: index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// NumericalError reports a breakdown of a factorization or a triangular solve.
// Pivot is the zero-based index of the offending diagonal element and Value its
// computed value.
type NumericalError struct {
	Op    string
	Pivot int
	Value float64
	cause error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("dense: %s: pivot %d = %g: %v", e.Op, e.Pivot, e.Value, e.cause)
}

func (e *NumericalError) Unwrap() error { return e.cause }

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &OutOfRangeError{Index: i, Len: n}
	}
	return nil
}
