// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quadprog

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/quadprog/dense"
)

const (
	zero    = 0.0
	one     = 1.0
	half    = 0.5
	hun     = 100.0
	eps     = float64(7)/3 - float64(4)/3 - 1.
	dependR = hun * eps // ‖J₂ᵀn‖² ≤ dependR·‖Jᵀn‖² marks a normal as linearly dependent
)

var (
	inf     = math.Inf(1)
	sqrtEps = math.Sqrt(eps)
)

// Status reports how a solve terminated.
type Status int

const (
	// Optimal the constrained minimizer was found.
	Optimal Status = iota
	// NotPositiveDefinite the Cholesky factorization of G broke down.
	NotPositiveDefinite
	// Infeasible no point satisfies all constraints.
	Infeasible
	// Unbounded the objective decreases without bound.
	Unbounded
	// ExceedMaxIter more than Termination.MaxIterations active-set changes.
	ExceedMaxIter
	// Degenerate a violated constraint could not join the active set
	// because its normal is numerically dependent on the active normals.
	Degenerate
)

var statusText = [...]string{
	Optimal:             "optimal",
	NotPositiveDefinite: "not positive definite",
	Infeasible:          "infeasible",
	Unbounded:           "unbounded",
	ExceedMaxIter:       "iteration limit exceeded",
	Degenerate:          "degenerate constraints",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusText) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusText[s]
}

var (
	// ErrBadArgument problem data or options are unacceptable.
	ErrBadArgument = errors.New("quadprog: bad argument")
	// ErrNumerical a numerical breakdown stopped the solver.
	ErrNumerical = errors.New("quadprog: numerical failure")
	// ErrNotConvex G is not (numerically) positive definite.
	ErrNotConvex = fmt.Errorf("%w: %w", ErrNumerical, dense.ErrNotPositiveDefinite)
	// ErrIterationLimit the active-set iteration cap was reached.
	ErrIterationLimit = fmt.Errorf("%w: iteration limit exceeded", ErrNumerical)
	// ErrDegenerate a violated constraint depends on the active ones.
	ErrDegenerate = fmt.Errorf("%w: degenerate constraints", ErrNumerical)
	// ErrInfeasible no feasible solution exists.
	ErrInfeasible = errors.New("quadprog: no feasible solution")
	// ErrUnbounded the objective is not bounded below on the feasible region.
	ErrUnbounded = errors.New("quadprog: objective unbounded below")
)

// Err maps the status to its error, nil for Optimal.
func (s Status) Err() error {
	switch s {
	case Optimal:
		return nil
	case NotPositiveDefinite:
		return ErrNotConvex
	case Infeasible:
		return ErrInfeasible
	case Unbounded:
		return ErrUnbounded
	case ExceedMaxIter:
		return ErrIterationLimit
	case Degenerate:
		return ErrDegenerate
	default:
		return fmt.Errorf("%w: %v", ErrNumerical, s)
	}
}

// giSpec holds the validated problem in flat row-major storage.
type giSpec struct {
	// the number of variables
	n int
	// the number of equality constraints
	p int
	// the number of inequality constraints
	m int
	g   []float64 // n×n (upper triangle referenced)
	g0  []float64 // n
	ce  []float64 // n×p
	ce0 []float64 // p
	ci  []float64 // n×m
	ci0 []float64 // m
	// the iteration cap on active-set changes.
	maxIter int
	// the feasibility tolerance, zero means derived from the problem scale.
	tol float64
}

type giCtx struct {
	// 𝐋 : the Cholesky factor of 𝐆.
	l []float64 // n×n
	// snapshot of 𝐉 taken at the start of each major iteration (shares storage with l).
	jOld []float64 // n×n
	// 𝐉 = 𝐋⁻ᵀ𝐐 where 𝐐 is the orthogonal factor of 𝐋⁻¹𝐍 for active normals 𝐍.
	j []float64 // n×n
	// 𝐑 : upper triangular factor such that 𝐉ᵀ𝐍 = [𝐑 : 0]ᵀ.
	r []float64 // n×n
	// snapshot of 𝐑 taken at the start of each major iteration.
	rOld []float64 // n×n
	x    []float64 // n
	xOld []float64 // n
	// 𝐝 = 𝐉ᵀ𝐧⁺
	d []float64 // n
	// 𝐳 = 𝐉₂𝐝₂ primal step direction
	z []float64 // n
	// 𝐫 = 𝐑⁻¹𝐝₁ negative dual step direction
	rv []float64 // n+1
	// 𝐧⁺ normal of the constraint being added
	np []float64 // n
	// multipliers of the active set, u[iq] belongs to the candidate constraint
	u    []float64 // n+1
	uOld []float64 // n+1
	// active set: unified indices k < p for equalities, p+i for inequality i
	act    []int // n+1
	actOld []int // n+1
	// slack 𝒔(𝐱) = CIᵀ𝐱 + ci0
	s    []float64 // m
	sOld []float64 // m
	// inactive[i] inequality i is not in the working set
	inactive []bool // m
	// excluded[i] inequality i led to a degenerate addition in this major iteration
	excluded []bool // m

	iq, iqOld int // size of the active set
	meq       int // number of equalities in the active set
	rNorm     float64
	c1, c2    float64 // traces of 𝐆 and 𝐉 used to scale tolerances
	tol       float64
	iter      int
}
