// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quadprog

import (
	"math"

	"github.com/curioloop/quadprog/dense"
)

// addConstraint appends the candidate 𝐧⁺ with 𝐝 = 𝐉ᵀ𝐧⁺ to the factorization.
//
// Rotations in the planes (k-1, k) for k = n-1 ··· q+1 annihilate 𝐝₂ below its first entry:
//
//	𝐐ᵀ𝐝 = [𝐝₁ γ 0 ··· 0]ᵀ
//
// and are applied to the columns of 𝐉, so 𝐉 ← 𝐉𝐐 keeps 𝐝 = 𝐉ᵀ𝐧⁺.
// The new column of 𝐑 is [𝐝₁ γ]ᵀ. It reports false when |γ| is negligible
// relative to the largest diagonal of 𝐑, i.e. 𝐧⁺ depends on the active normals.
func (s *giSolver) addConstraint() bool {

	w := s.workspace
	n := s.optimizer.n
	d, j, r := w.d, w.j, w.r

	for k := n - 1; k > w.iq; k-- {
		if d[k] == zero {
			continue
		}
		c, sn, h := dense.Givens(d[k-1], d[k])
		d[k-1], d[k] = h, zero
		dense.Drot(n, j[k-1:], n, j[k:], n, c, sn)
	}

	q := w.iq
	w.iq++
	dense.Dcopy(w.iq, d, 1, r[q:], n)

	s.log.V(2).Info("add constraint", "constraint", w.act[q], "active", w.iq, "diag", d[q])

	if math.Abs(d[q]) <= eps*w.rNorm {
		return false
	}
	w.rNorm = max(w.rNorm, math.Abs(d[q]))
	return true
}

// deleteConstraint removes the active constraint at position l ≥ meq.
//
// Dropping column l of 𝐑 leaves an upper Hessenberg block in columns l ··· q-1.
// Rotations in the planes (k, k+1) for k = l ··· q-1 restore the triangular form
// and are mirrored on the columns of 𝐉. The candidate at position q moves down with
// the shift together with its multiplier.
func (s *giSolver) deleteConstraint(l int) {

	w := s.workspace
	n, p := s.optimizer.n, s.optimizer.p
	j, r := w.j, w.r

	s.log.V(2).Info("drop constraint", "constraint", w.act[l], "multiplier", w.u[l])
	w.inactive[w.act[l]-p] = true

	q := w.iq
	for k := l; k < q; k++ {
		w.act[k] = w.act[k+1]
		w.u[k] = w.u[k+1]
	}
	w.act[q], w.u[q] = 0, zero
	for k := l; k < q-1; k++ {
		dense.Dcopy(k+2, r[k+1:], n, r[k:], n)
	}
	for i := 0; i < q; i++ {
		r[i*n+q-1] = zero
	}
	w.iq--

	for k := l; k < w.iq; k++ {
		kk, sub := k*n+k, (k+1)*n+k
		if r[sub] == zero {
			continue
		}
		c, sn, h := dense.Givens(r[kk], r[sub])
		r[kk], r[sub] = h, zero
		dense.Drot(w.iq-k-1, r[kk+1:], 1, r[sub+1:], 1, c, sn)
		dense.Drot(n, j[k:], n, j[k+1:], n, c, sn)
	}
}
