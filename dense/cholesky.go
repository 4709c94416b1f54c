// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import "math"

// Factorize overwrites the n × n row-major matrix a (leading dimension lda) with
// the lower triangular factor 𝐋 of 𝐀 = 𝐋𝐋ᵀ.
//
// Only the diagonal and the upper triangle of 𝐀 are referenced, so a
// non-symmetric input is interpreted as the symmetric matrix defined by its
// upper half. Row j of 𝐋 is computed from
//
//	𝐋ⱼₖ = (𝐀ₖⱼ - ∑ₜ₌₀ᵏ⁻¹ 𝐋ⱼₜ𝐋ₖₜ) / 𝐋ₖₖ   (k < j)
//	𝐋ⱼⱼ = (𝐀ⱼⱼ - ∑ₜ₌₀ʲ⁻¹ 𝐋ⱼₜ²)¹ᐟ²
//
// On success info is 0 and the strict upper triangle is cleared.
// Otherwise info = k+1 where k is the first pivot whose radicand s is not
// positive; rows 0..k-1 of 𝐋 and the off-diagonal part of row k are valid and
// the upper triangle of 𝐀 is left untouched.
func Factorize(a []float64, lda, n int) (info int, s float64) {
	if n <= 0 {
		return 0, 0
	}
	if lda < n || (n-1)*lda+n > len(a) {
		panic("bound check error")
	}
	for j := 0; j < n; j++ {
		lj := a[j*lda : j*lda+j+1]
		for k := 0; k < j; k++ {
			lk := a[k*lda : k*lda+k+1]
			lj[k] = (a[k*lda+j] - Ddot(k, lj, 1, lk, 1)) / lk[k]
		}
		s = lj[j] - Ddot(j, lj, 1, lj, 1)
		if s <= zero || math.IsNaN(s) {
			return j + 1, s
		}
		lj[j] = math.Sqrt(s)
	}
	for i := 0; i < n; i++ {
		Dzero(a[i*lda+i+1 : i*lda+n])
	}
	return 0, 0
}

// SolveLower solves 𝐋𝐲 = 𝐛 in place for lower triangular 𝐋.
// info is the 1-based index of the first zero diagonal element, or 0.
func SolveLower(l []float64, ldl, n int, b []float64) (info int) {
	if info = zeroDiagonal(l, ldl, n); info != 0 {
		return
	}
	for i := 0; i < n; i++ {
		b[i] = (b[i] - Ddot(i, l[i*ldl:], 1, b, 1)) / l[i*ldl+i]
	}
	return 0
}

// SolveLowerT solves 𝐋ᵀ𝐱 = 𝐛 in place for lower triangular 𝐋.
// info is the 1-based index of the first zero diagonal element, or 0.
func SolveLowerT(l []float64, ldl, n int, b []float64) (info int) {
	if info = zeroDiagonal(l, ldl, n); info != 0 {
		return
	}
	for i := n - 1; i >= 0; i-- {
		var sum float64
		if i+1 < n {
			sum = Ddot(n-1-i, l[(i+1)*ldl+i:], ldl, b[i+1:], 1)
		}
		b[i] = (b[i] - sum) / l[i*ldl+i]
	}
	return 0
}

func zeroDiagonal(t []float64, ldt, n int) int {
	if n <= 0 {
		return 0
	}
	if (n-1)*ldt+n > len(t) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		if t[i*ldt+i] == zero {
			return i + 1
		}
	}
	return 0
}

// Cholesky returns the lower triangular 𝐋 such that 𝐀 = 𝐋𝐋ᵀ.
// a is not modified.
func Cholesky(a *Matrix) (*Matrix, error) {
	r, c := a.Dims()
	if r != c {
		return nil, &DimensionError{Op: "cholesky", Want: r, Got: c}
	}
	l := a.Clone()
	if info, s := Factorize(l.data, c, c); info != 0 {
		return nil, &NumericalError{Op: "cholesky", Pivot: info - 1, Value: s, cause: ErrNotPositiveDefinite}
	}
	return l, nil
}

// ForwardSubst solves 𝐋𝐲 = 𝐛 for lower triangular 𝐋 in O(n²).
func ForwardSubst(l *Matrix, b *Vector) (*Vector, error) {
	return triangular(l, b, "forward substitution", SolveLower)
}

// BackSubst solves 𝐋ᵀ𝐱 = 𝐲 for lower triangular 𝐋 in O(n²).
func BackSubst(l *Matrix, y *Vector) (*Vector, error) {
	return triangular(l, y, "back substitution", SolveLowerT)
}

// CholeskySolve solves 𝐀𝐱 = 𝐛 given the Cholesky factor 𝐋 of 𝐀.
func CholeskySolve(l *Matrix, b *Vector) (*Vector, error) {
	y, err := ForwardSubst(l, b)
	if err != nil {
		return nil, err
	}
	return BackSubst(l, y)
}

func triangular(l *Matrix, b *Vector, op string, solve func([]float64, int, int, []float64) int) (*Vector, error) {
	r, c := l.Dims()
	if r != c {
		return nil, &DimensionError{Op: op, Want: r, Got: c}
	}
	if b.Len() != r {
		return nil, &DimensionError{Op: op, Want: r, Got: b.Len()}
	}
	x := b.Clone()
	if info := solve(l.data, c, c, x.data); info != 0 {
		return nil, &NumericalError{Op: op, Pivot: info - 1, Value: zero, cause: ErrSingular}
	}
	return x, nil
}
