// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quadprog

import (
	"math"
	"slices"

	"github.com/go-logr/logr"

	"github.com/curioloop/quadprog/dense"
)

// giSolver solve strictly convex QP with the dual active-set method of Goldfarb and Idnani
//
// minimize ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 subject to
//   - equality constrains: 𝐧ⱼᵀ𝐱 + 𝐛ⱼ = 0  (j = 1 ··· p)
//   - inequality constrains: 𝐧ⱼᵀ𝐱 + 𝐛ⱼ ≥ 0  (j = p+1 ··· p+m)
//
// where 𝐧ⱼ are the columns of 𝐂𝐄 and 𝐂𝐈.
//
// The method starts from the unconstrained minimizer 𝐱 = -𝐆⁻¹𝐠₀, which is optimal for
// the empty active set 𝐀 = ∅ and therefore dual feasible. Each major iteration picks a
// violated constraint and moves toward it while keeping every subproblem of the form
//
//	minimize ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 subject to 𝐧ⱼᵀ𝐱 + 𝐛ⱼ = 0 (j ∈ 𝐀)
//
// solved to optimality, so the objective increases monotonically and primal feasibility
// is reached only at the optimum.
//
// # Factorization
//
// Let 𝐆 = 𝐋𝐋ᵀ and let 𝐍 be the n×q matrix of active normals. Given the QR factorization
//
//	𝐋⁻¹𝐍 = 𝐐 ⎡𝐑⎤
//	         ⎣0⎦
//
// the solver keeps 𝐉 = 𝐋⁻ᵀ𝐐 = [𝐉₁ 𝐉₂] and the q×q upper triangular 𝐑 instead of 𝐆⁻¹.
// Then 𝐉₂𝐉₂ᵀ is the reduced inverse Hessian and 𝐑⁻¹𝐉₁ᵀ is the pseudo inverse of 𝐍.
// Initially 𝐉 = 𝐋⁻ᵀ and 𝐑 is empty.
//
// # Step direction
//
// For the candidate normal 𝐧⁺ let 𝐝 = 𝐉ᵀ𝐧⁺, then
//   - primal direction: 𝐳 = 𝐉₂𝐝₂
//   - negative dual direction: 𝐫 = 𝐑⁻¹𝐝₁
//
// # Step length
//
// The partial (dual) step is the largest t keeping active inequality multipliers non-negative
//
//	t₁ = 𝚖𝚒𝚗 { 𝐮ₖ/𝐫ₖ : 𝐫ₖ > 0 }
//
// and the full (primal) step makes the candidate active
//
//	t₂ = -𝒔(𝐱) / 𝐳ᵀ𝐧⁺
//
// With t = 𝚖𝚒𝚗(t₁,t₂) the iterate moves 𝐱 ← 𝐱 + t𝐳 and 𝐮 ← 𝐮 + t[-𝐫 1]ᵀ.
//   - no finite t: the constraints are inconsistent
//   - t₂ = ∞: only the dual step is taken and the blocking constraint is dropped
//   - t = t₂: the candidate joins the active set
//   - t = t₁: the blocking constraint is dropped and the step is retried
//
// Each change of the active set updates 𝐉 and 𝐑 with Givens rotations in O(n²).
//
// D. Goldfarb, A. Idnani, 'A numerically stable dual method for solving strictly convex quadratic programs'
// Mathematical Programming 27 (1983) 1-33.
type giSolver struct {
	optimizer *Optimizer
	workspace *Workspace
	log       logr.Logger
}

type stepMode int

const (
	stepAdded      stepMode = iota // candidate joined the active set
	stepDegenerate                 // candidate normal depends on the active normals
	stepInfeasible                 // neither primal nor dual step is finite
	stepExceed                     // iteration cap reached
)

func (s *giSolver) mainLoop() Status {

	o, w := s.optimizer, s.workspace
	n := o.n

	w.iq, w.iqOld, w.meq, w.iter = 0, 0, 0, 0
	w.rNorm = one
	dense.Dzero(w.x)
	dense.Dzero(w.r)
	dense.Dzero(w.u)
	for i := range w.inactive {
		w.inactive[i] = true
		w.excluded[i] = false
	}

	// 𝐆 = 𝐋𝐋ᵀ
	copy(w.l, o.g)
	w.c1 = zero
	for i := 0; i < n; i++ {
		w.c1 += o.g[i*n+i]
	}
	if info, rad := dense.Factorize(w.l, n, n); info != 0 {
		return s.breakdown(info-1, rad)
	}

	// 𝐉 = 𝐋⁻ᵀ column by column
	w.c2 = zero
	for k := 0; k < n; k++ {
		dense.Dzero(w.d)
		w.d[k] = one
		dense.SolveLowerT(w.l, n, n, w.d)
		dense.Dcopy(n, w.d, 1, w.j[k:], n)
		w.c2 += w.d[k]
	}

	w.tol = o.tol
	if w.tol == zero {
		w.tol = float64(max(1, o.p+o.m)) * eps * w.c1 * w.c2 * hun
	}

	// 𝐱 = -𝐆⁻¹𝐠₀
	copy(w.x, o.g0)
	dense.SolveLower(w.l, n, n, w.x)
	dense.SolveLowerT(w.l, n, n, w.x)
	dense.Dscal(n, -one, w.x, 1)

	if status := s.addEqualities(); status != Optimal {
		return status
	}
	return s.dualIterations()
}

// breakdown classifies a failed factorization at pivot k whose radicand is rad.
//
// Without constraints the elimination 𝐆 = 𝐋𝐃𝐋ᵀ (unit lower 𝐋) is carried on past
// negligible pivots together with 𝐠 = 𝐋⁻¹𝐠₀. The objective is unbounded below when
//   - some pivot is clearly negative, or a negligible pivot has a non-zero row: 𝐆 is indefinite
//   - some negligible pivot j has 𝐠ⱼ ≠ 0: the flat direction 𝐩 = 𝐋⁻ᵀ𝐞ⱼ has 𝐩ᵀ𝐠₀ = 𝐠ⱼ
//
// Otherwise 𝐆 is semidefinite with 𝐠₀ in its range and the minimizer is not unique.
func (s *giSolver) breakdown(k int, rad float64) Status {

	o, w := s.optimizer, s.workspace
	n := o.n

	s.log.V(1).Info("factorization breakdown", "pivot", k, "radicand", rad)

	if o.p+o.m > 0 || math.IsNaN(rad) {
		return NotPositiveDefinite
	}

	// symmetric 𝐆 from its upper triangle
	a, g := w.l, w.d
	scale := one
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a[i*n+j], a[j*n+i] = o.g[i*n+j], o.g[i*n+j]
		}
		scale = max(scale, math.Abs(o.g[i*n+i]))
	}
	copy(g, o.g0)

	tol := sqrtEps * scale
	slopeTol := sqrtEps * max(one, dense.Dnrm2(n, o.g0, 1))

	for j := 0; j < n; j++ {
		piv := a[j*n+j]
		if piv < -tol {
			return Unbounded
		}
		if piv <= tol {
			for i := j + 1; i < n; i++ {
				if math.Abs(a[j*n+i]) > tol {
					return Unbounded
				}
			}
			if math.Abs(g[j]) > slopeTol {
				return Unbounded
			}
			continue
		}
		for i := j + 1; i < n; i++ {
			f := a[i*n+j] / piv
			if f == zero {
				continue
			}
			dense.Daxpy(n-j-1, -f, a[j*n+j+1:], 1, a[i*n+j+1:], 1)
			g[i] -= f * g[j]
		}
	}
	return NotPositiveDefinite
}

// addEqualities moves the iterate onto every equality constraint with a full step.
func (s *giSolver) addEqualities() Status {

	o, w := s.optimizer, s.workspace
	n := o.n

	for i := 0; i < o.p; i++ {
		dense.Dcopy(n, o.ce[i:], o.p, w.np, 1)
		s.direction()

		res := dense.Ddot(n, w.np, 1, w.x, 1) + o.ce0[i]
		zn := dense.Ddot(n, w.z, 1, w.np, 1) // ‖𝐝₂‖²

		if zn <= dependR*dense.Ddot(n, w.d, 1, w.d, 1) {
			if math.Abs(res) <= w.tol {
				s.log.V(2).Info("skip redundant equality", "constraint", i, "residual", res)
				continue
			}
			s.log.V(1).Info("inconsistent equality", "constraint", i, "residual", res)
			return Infeasible
		}

		if w.iter >= o.maxIter {
			return ExceedMaxIter
		}
		w.iter++
		t2 := -res / zn
		dense.Daxpy(n, t2, w.z, 1, w.x, 1)
		dense.Daxpy(w.iq, -t2, w.rv, 1, w.u, 1)
		w.u[w.iq] = t2
		w.act[w.iq] = i

		if !s.addConstraint() {
			return Infeasible
		}
	}

	w.meq = w.iq
	return Optimal
}

// dualIterations resolves violated inequalities until the iterate is primal feasible.
func (s *giSolver) dualIterations() Status {

	o, w := s.optimizer, s.workspace
	n, m := o.n, o.m

	for {
		psi := zero
		for i := 0; i < m; i++ {
			w.s[i] = dense.Ddot(n, o.ci[i:], m, w.x, 1) + o.ci0[i]
			psi += min(zero, w.s[i])
			w.excluded[i] = false
		}

		if s.log.V(1).Enabled() {
			s.log.V(1).Info("major iteration", "iter", w.iter, "active", w.iq-w.meq, "violation", psi)
		}

		if math.Abs(psi) <= w.tol {
			return Optimal
		}

		s.save()

	selection:
		for {
			// the most violated constraint outside the active set
			ip, ss := -1, zero
			for i := 0; i < m; i++ {
				if w.inactive[i] && !w.excluded[i] && w.s[i] < ss {
					ip, ss = i, w.s[i]
				}
			}
			if ip < 0 {
				if slices.Contains(w.excluded, true) {
					return Degenerate
				}
				return Optimal
			}

			switch s.pursue(ip) {
			case stepAdded:
				break selection
			case stepDegenerate:
				s.log.V(2).Info("exclude degenerate constraint", "constraint", ip)
				s.restore()
				w.excluded[ip] = true
			case stepInfeasible:
				return Infeasible
			case stepExceed:
				return ExceedMaxIter
			}
		}
	}
}

// pursue steps toward inequality ip until it joins the active set.
func (s *giSolver) pursue(ip int) stepMode {

	o, w := s.optimizer, s.workspace
	n, m := o.n, o.m

	dense.Dcopy(n, o.ci[ip:], m, w.np, 1)
	w.u[w.iq] = zero
	w.act[w.iq] = o.p + ip

	for {
		if w.iter >= o.maxIter {
			return stepExceed
		}
		w.iter++

		s.direction()

		// partial step length
		t1, l := inf, -1
		for k := w.meq; k < w.iq; k++ {
			if w.rv[k] > zero {
				if r := w.u[k] / w.rv[k]; r < t1 {
					t1, l = r, k
				}
			}
		}

		// full step length
		t2 := inf
		if zn := dense.Ddot(n, w.z, 1, w.np, 1); zn > dependR*dense.Ddot(n, w.d, 1, w.d, 1) {
			t2 = -w.s[ip] / zn
		}

		t := min(t1, t2)
		if s.log.V(2).Enabled() {
			s.log.V(2).Info("step", "constraint", ip, "t1", t1, "t2", t2)
		}

		if t >= inf {
			return stepInfeasible
		}

		dense.Daxpy(w.iq, -t, w.rv, 1, w.u, 1)
		w.u[w.iq] += t

		if t2 >= inf {
			// step in dual space only
			s.deleteConstraint(l)
			continue
		}

		// step in primal and dual space
		dense.Daxpy(n, t, w.z, 1, w.x, 1)

		if t == t2 {
			if !s.addConstraint() {
				return stepDegenerate
			}
			w.inactive[ip] = false
			return stepAdded
		}

		s.deleteConstraint(l)
		w.s[ip] = dense.Ddot(n, o.ci[ip:], m, w.x, 1) + o.ci0[ip]
	}
}

// direction computes 𝐝 = 𝐉ᵀ𝐧⁺, 𝐳 = 𝐉₂𝐝₂ and 𝐫 = 𝐑⁻¹𝐝₁.
func (s *giSolver) direction() {

	w := s.workspace
	n, iq := s.optimizer.n, w.iq
	j, r := w.j, w.r

	for k := 0; k < n; k++ {
		w.d[k] = dense.Ddot(n, j[k:], n, w.np, 1)
	}

	for i := 0; i < n; i++ {
		w.z[i] = dense.Ddot(n-iq, j[i*n+iq:], 1, w.d[iq:], 1)
	}

	for i := iq - 1; i >= 0; i-- {
		sum := dense.Ddot(iq-i-1, r[i*n+i+1:], 1, w.rv[i+1:], 1)
		w.rv[i] = (w.d[i] - sum) / r[i*n+i]
	}
}

// save records the state at the start of a major iteration.
func (s *giSolver) save() {
	w := s.workspace
	copy(w.jOld, w.j)
	copy(w.rOld, w.r)
	copy(w.xOld, w.x)
	copy(w.uOld, w.u)
	copy(w.actOld, w.act)
	copy(w.sOld, w.s)
	w.iqOld = w.iq
}

// restore rolls back to the last saved state.
func (s *giSolver) restore() {
	w := s.workspace
	p := s.optimizer.p
	copy(w.j, w.jOld)
	copy(w.r, w.rOld)
	copy(w.x, w.xOld)
	copy(w.u, w.uOld)
	copy(w.act, w.actOld)
	copy(w.s, w.sOld)
	w.iq = w.iqOld
	for i := range w.inactive {
		w.inactive[i] = true
	}
	for k := w.meq; k < w.iq; k++ {
		w.inactive[w.act[k]-p] = false
	}
	w.rNorm = one
	for k := 0; k < w.iq; k++ {
		w.rNorm = max(w.rNorm, math.Abs(w.r[k*s.optimizer.n+k]))
	}
}
