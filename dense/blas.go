// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import "math"

const (
	zero = 0.0
	one  = 1.0
)

// Strided level-1 kernels. Vectors are addressed as dx[0], dx[incx], ..., dx[(n-1)·incx]
// so that rows and columns of a row-major Matrix can be passed without copying.
// Indexing past the end of a slice is a programmer error and panics.

// Daxpy computes dy += da · dx.
func Daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == zero {
		return
	}
	if incx == 1 && incy == 1 {
		dx, dy = dx[:n:n], dy[:n:n]
		m := n % 4
		for i := 0; i < m; i++ {
			dy[i] += da * dx[i]
		}
		for i := m; i < n; i += 4 {
			x := dx[i : i+4 : i+4]
			y := dy[i : i+4 : i+4]
			y[0] += da * x[0]
			y[1] += da * x[1]
			y[2] += da * x[2]
			y[3] += da * x[3]
		}
		return
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dy[iy] += da * dx[ix]
	}
}

// Ddot returns dxᵀdy.
func Ddot(n int, dx []float64, incx int, dy []float64, incy int) (dot float64) {
	if n <= 0 {
		return zero
	}
	if incx == 1 && incy == 1 {
		dx, dy = dx[:n:n], dy[:n:n]
		m := n % 5
		for i := 0; i < m; i++ {
			dot += dx[i] * dy[i]
		}
		for i := m; i < n; i += 5 {
			x := dx[i : i+5 : i+5]
			y := dy[i : i+5 : i+5]
			dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3] + x[4]*y[4]
		}
		return dot
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dot += dx[ix] * dy[iy]
	}
	return dot
}

// Dcopy copies dx into dy.
func Dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 1 && incy == 1 {
		copy(dy[:n], dx[:n])
		return
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dy[iy] = dx[ix]
	}
}

// Dscal computes dx *= da.
func Dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	l := uint(incx * (n - 1))
	if l >= uint(len(dx)) {
		panic("bound check error")
	}
	for i := uint(0); i <= l; i += uint(incx) {
		dx[i] *= da
	}
}

// Dnrm2 returns the Euclidean norm of dx, scaled to avoid overflow.
func Dnrm2(n int, dx []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	l := uint(incx * (n - 1))
	if l >= uint(len(dx)) {
		panic("bound check error")
	}
	if n == 1 {
		return math.Abs(dx[0])
	}
	scale, ssq := zero, one
	for i := uint(0); i <= l; i += uint(incx) {
		if absxi := math.Abs(dx[i]); absxi > 0 {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
	}
	return scale * math.Sqrt(ssq)
}

// Drot applies the plane rotation
//
//	⎡ x ⎤ ← ⎡ c  s⎤⎡ x ⎤
//	⎣ y ⎦   ⎣-s  c⎦⎣ y ⎦
//
// element-wise to the pair of vectors dx and dy.
func Drot(n int, dx []float64, incx int, dy []float64, incy int, c, s float64) {
	if n <= 0 {
		return
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		x, y := dx[ix], dy[iy]
		dx[ix] = c*x + s*y
		dy[iy] = c*y - s*x
	}
}

// Givens computes the rotation that annihilates b:
//
//	⎡ c  s⎤⎡ a ⎤ = ⎡ r ⎤
//	⎣-s  c⎦⎣ b ⎦   ⎣ 0 ⎦
//
// with r = (a²+b²)¹ᐟ² ≥ 0. When a = b = 0 the identity rotation is returned.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 3, Algorithm G1.
func Givens(a, b float64) (c, s, r float64) {
	if xa, xb := math.Abs(a), math.Abs(b); xa > xb {
		xr := b / a
		yr := math.Sqrt(1 + xr*xr)
		c = math.Copysign(1/yr, a)
		s = c * xr
		r = xa * yr
	} else if xb > 0 {
		xr := a / b
		yr := math.Sqrt(1 + xr*xr)
		s = math.Copysign(1/yr, b)
		c = s * xr
		r = xb * yr
	} else {
		c = 1
	}
	return
}

// Dzero fills dx with zero.
func Dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}
