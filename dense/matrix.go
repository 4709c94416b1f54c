// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"slices"
	"strconv"
	"strings"
)

// Matrix is a dense rows × cols matrix stored row-major.
// Element (i, j) lives at data[i*cols+j].
type Matrix struct {
	rows, cols int
	data       []float64
}

// NewMatrix returns a zero-filled r × c matrix.
// Negative dimensions are treated as zero.
func NewMatrix(r, c int) *Matrix {
	r, c = max(r, 0), max(c, 0)
	return &Matrix{rows: r, cols: c, data: make([]float64, r*c)}
}

// NewMatrixFrom copies row-major data into a new r × c matrix.
// The length of data must be exactly r × c.
func NewMatrixFrom(data []float64, r, c int) (*Matrix, error) {
	if r < 0 || c < 0 {
		return nil, &DimensionError{Op: "matrix", Want: max(r, 0) * max(c, 0), Got: len(data)}
	}
	if len(data) != r*c {
		return nil, &DimensionError{Op: "matrix", Want: r * c, Got: len(data)}
	}
	return &Matrix{rows: r, cols: c, data: slices.Clone(data)}, nil
}

// NewMatrixFromRows builds a matrix from equal-length rows.
// An empty slice yields a 0 × 0 matrix.
func NewMatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	c := len(rows[0])
	m := NewMatrix(len(rows), c)
	for i, row := range rows {
		if len(row) != c {
			return nil, &DimensionError{Op: "matrix row " + strconv.Itoa(i), Want: c, Got: len(row)}
		}
		copy(m.data[i*c:], row)
	}
	return m, nil
}

// Identity returns the n × n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < m.rows; i++ {
		m.data[i*n+i] = one
	}
	return m
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) {
	if m == nil {
		return 0, 0
	}
	return m.rows, m.cols
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) (float64, error) {
	r, c := m.Dims()
	if err := checkIndex(i, r); err != nil {
		return 0, err
	}
	if err := checkIndex(j, c); err != nil {
		return 0, err
	}
	return m.data[i*c+j], nil
}

// Set stores x at element (i, j).
func (m *Matrix) Set(i, j int, x float64) error {
	r, c := m.Dims()
	if err := checkIndex(i, r); err != nil {
		return err
	}
	if err := checkIndex(j, c); err != nil {
		return err
	}
	m.data[i*c+j] = x
	return nil
}

// Row returns a copy of the i-th row.
func (m *Matrix) Row(i int) (*Vector, error) {
	r, c := m.Dims()
	if err := checkIndex(i, r); err != nil {
		return nil, err
	}
	return &Vector{data: slices.Clone(m.data[i*c : (i+1)*c])}, nil
}

// Col returns a copy of the j-th column.
func (m *Matrix) Col(j int) (*Vector, error) {
	r, c := m.Dims()
	if err := checkIndex(j, c); err != nil {
		return nil, err
	}
	v := NewVector(r)
	Dcopy(r, m.data[j:], c, v.data, 1)
	return v, nil
}

// RawMatrix returns the row-major backing slice. Writes through it are visible to m.
func (m *Matrix) RawMatrix() []float64 {
	if m == nil {
		return nil
	}
	return m.data
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	r, c := m.Dims()
	return &Matrix{rows: r, cols: c, data: slices.Clone(m.RawMatrix())}
}

// MulVec computes y = A x.
func (m *Matrix) MulVec(x *Vector) (*Vector, error) {
	r, c := m.Dims()
	if x.Len() != c {
		return nil, &DimensionError{Op: "mulvec", Want: c, Got: x.Len()}
	}
	y := NewVector(r)
	for i := 0; i < r; i++ {
		y.data[i] = Ddot(c, m.data[i*c:], 1, x.data, 1)
	}
	return y, nil
}

// MulTransVec computes y = Aᵀ x.
func (m *Matrix) MulTransVec(x *Vector) (*Vector, error) {
	r, c := m.Dims()
	if x.Len() != r {
		return nil, &DimensionError{Op: "multransvec", Want: r, Got: x.Len()}
	}
	y := NewVector(c)
	for i := 0; i < r; i++ {
		Daxpy(c, x.data[i], m.data[i*c:], 1, y.data, 1)
	}
	return y, nil
}

func (m *Matrix) String() string {
	r, c := m.Dims()
	var sb strings.Builder
	for i := 0; i < r; i++ {
		sb.WriteByte('[')
		for j := 0; j < c; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(m.data[i*c+j], 'g', 6, 64))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
