// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"slices"
	"strconv"
	"strings"
)

// Vector is a fixed-length sequence of float64 owned by its holder.
type Vector struct {
	data []float64
}

// NewVector returns a zero-filled vector of length n.
// A negative length yields an empty vector.
func NewVector(n int) *Vector {
	return &Vector{data: make([]float64, max(n, 0))}
}

// NewVectorFrom copies the first n elements of data into a new vector.
// The length of data must be exactly n.
func NewVectorFrom(data []float64, n int) (*Vector, error) {
	if n < 0 || len(data) != n {
		return nil, &DimensionError{Op: "vector", Want: n, Got: len(data)}
	}
	return &Vector{data: slices.Clone(data)}, nil
}

// Len returns the number of elements.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.data)
}

// At returns the i-th element.
func (v *Vector) At(i int) (float64, error) {
	if err := checkIndex(i, v.Len()); err != nil {
		return 0, err
	}
	return v.data[i], nil
}

// Set stores x at position i.
func (v *Vector) Set(i int, x float64) error {
	if err := checkIndex(i, v.Len()); err != nil {
		return err
	}
	v.data[i] = x
	return nil
}

// RawVector returns the backing slice. Writes through it are visible to v.
func (v *Vector) RawVector() []float64 {
	if v == nil {
		return nil
	}
	return v.data
}

// Clone returns a deep copy of v.
func (v *Vector) Clone() *Vector {
	return &Vector{data: slices.Clone(v.RawVector())}
}

// Dot returns xᵀy.
func Dot(x, y *Vector) (float64, error) {
	if x.Len() != y.Len() {
		return 0, &DimensionError{Op: "dot", Want: x.Len(), Got: y.Len()}
	}
	return Ddot(x.Len(), x.RawVector(), 1, y.RawVector(), 1), nil
}

// Norm returns the Euclidean norm of v.
func (v *Vector) Norm() float64 {
	if v.Len() == 0 {
		return 0
	}
	return Dnrm2(v.Len(), v.data, 1)
}

func (v *Vector) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v.RawVector() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}
