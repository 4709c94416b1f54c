// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quadprog

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-logr/logr"

	"github.com/curioloop/quadprog/dense"
)

// Termination specifies the stopping criteria for the active-set iteration.
type Termination struct {
	// The iteration stop when the number of primal and dual steps exceeds limit.
	// Zero selects 10×(n+p+m)+50.
	MaxIterations int
	// The iteration stop when the total violation ∑ 𝚖𝚒𝚗(0, 𝒔ᵢ(𝐱)) ≥ -𝚝𝚘𝚕.
	// Zero selects 𝚖𝚊𝚡(1,p+m) × ε × 𝚝𝚛(𝐆) × 𝚝𝚛(𝐋⁻ᵀ) × 100.
	Tolerance float64
}

// Problem specifies the convex quadratic program
//
//	minimize ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 subject to
//	  - 𝐂𝐄ᵀ𝐱 + 𝐜𝐞₀ = 0
//	  - 𝐂𝐈ᵀ𝐱 + 𝐜𝐢₀ ≥ 0
//
// Only the diagonal and upper triangle of 𝐆 are referenced.
type Problem struct {
	G   *dense.Matrix // n × n positive definite Hessian
	G0  *dense.Vector // n-vector linear term
	CE  *dense.Matrix // n × p equality normals (optional)
	CE0 *dense.Vector // p-vector equality constants
	CI  *dense.Matrix // n × m inequality normals (optional)
	CI0 *dense.Vector // m-vector inequality constants
	// Stop condition
	Stop Termination
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger traces the active-set iteration:
//   - V(1) one line per major iteration
//   - V(2) every constraint added to or dropped from the working set
func WithLogger(log logr.Logger) Option {
	return func(o *Optimizer) {
		o.log = log
	}
}

// New validates the problem and creates an optimizer holding a private copy of it.
func (p *Problem) New(opts ...Option) (optimizer *Optimizer, err error) {

	if p.G == nil {
		return nil, fmt.Errorf("%w: missing G", ErrBadArgument)
	}

	n, c := p.G.Dims()
	switch {
	case n <= 0:
		return nil, fmt.Errorf("%w: problem dimension must greater than 0", ErrBadArgument)
	case n != c:
		return nil, &dense.DimensionError{Op: "G", Want: n, Got: c}
	case p.G0.Len() != n:
		return nil, &dense.DimensionError{Op: "g0", Want: n, Got: p.G0.Len()}
	case p.Stop.MaxIterations < 0:
		return nil, fmt.Errorf("%w: max iteration must not less than 0", ErrBadArgument)
	case p.Stop.Tolerance < zero || math.IsNaN(p.Stop.Tolerance) || math.IsInf(p.Stop.Tolerance, 0):
		return nil, fmt.Errorf("%w: tolerance must be a finite value not less than 0", ErrBadArgument)
	}

	ce, ce0, err := constraints("CE", "ce0", n, p.CE, p.CE0)
	if err != nil {
		return nil, err
	}
	ci, ci0, err := constraints("CI", "ci0", n, p.CI, p.CI0)
	if err != nil {
		return nil, err
	}

	spec := giSpec{
		n: n, p: len(ce0), m: len(ci0),
		g:   slices.Clone(p.G.RawMatrix()),
		g0:  slices.Clone(p.G0.RawVector()),
		ce:  ce,
		ce0: ce0,
		ci:  ci,
		ci0: ci0,
		tol: p.Stop.Tolerance,
	}

	spec.maxIter = p.Stop.MaxIterations
	if spec.maxIter == 0 {
		spec.maxIter = 10*(spec.n+spec.p+spec.m) + 50
	}

	terms := []string{"G", "g0", "CE", "ce0", "CI", "ci0"}
	for i, data := range [][]float64{spec.g, spec.g0, spec.ce, spec.ce0, spec.ci, spec.ci0} {
		if !finite(data) {
			return nil, fmt.Errorf("%w: non-finite value in %s", ErrBadArgument, terms[i])
		}
	}

	optimizer = &Optimizer{giSpec: spec, log: logr.Discard()}
	for _, opt := range opts {
		opt(optimizer)
	}
	return
}

// constraints validates an n × k normal matrix against its k-vector of constants.
// A nil matrix declares no constraint of that kind.
func constraints(mt, vt string, n int, a *dense.Matrix, b *dense.Vector) ([]float64, []float64, error) {
	if a == nil {
		if b.Len() != 0 {
			return nil, nil, &dense.DimensionError{Op: vt, Want: 0, Got: b.Len()}
		}
		return nil, nil, nil
	}
	r, k := a.Dims()
	if r != n {
		return nil, nil, &dense.DimensionError{Op: mt, Want: n, Got: r}
	}
	if b.Len() != k {
		return nil, nil, &dense.DimensionError{Op: vt, Want: k, Got: b.Len()}
	}
	return slices.Clone(a.RawMatrix()), slices.Clone(b.RawVector()), nil
}

func finite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Optimizer implemented using the Goldfarb–Idnani dual active-set method.
type Optimizer struct {
	giSpec
	log logr.Logger
}

// Dims returns the number of variables, equality and inequality constraints.
func (o *Optimizer) Dims() (n, p, m int) {
	return o.n, o.p, o.m
}

// Workspace contains the state of one solve.
// Given n variables and m inequality constraints,
// total work space is approximately float64[4×n² + 8×n + 2×m].
type Workspace struct {
	n, p, m int
	giCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK bool    // Whether the optimal solution was found.
	F  float64 // Objective value ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱, +Inf when infeasible and -Inf when unbounded.
	// Final iterate. On failure it is the last iterate reached and is not a solution.
	X []float64
	// Lagrange multipliers of all constraints, equalities first.
	// They satisfy 𝐆𝐱 + 𝐠₀ = 𝐂𝐄𝛍 + 𝐂𝐈𝛌 with 𝛌 ≥ 0.
	Lambda []float64
	// Indices of the inequality constraints active at the solution, ascending.
	Active  []int
	Summary // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  Status // Final status after optimization.
	NumIter int    // Number of primal and dual steps taken.
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.p, w.m = o.n, o.p, o.m

	n, m, nn, n1 := o.n, o.m, o.n*o.n, o.n+1
	wrk := make([]float64, 4*nn+5*n+3*n1+2*m)

	iw := 0
	take := func(k int) []float64 {
		s := wrk[iw : iw+k : iw+k]
		iw += k
		return s
	}

	w.giCtx = giCtx{
		l:        take(nn),
		j:        take(nn),
		r:        take(nn),
		rOld:     take(nn),
		x:        take(n),
		xOld:     take(n),
		d:        take(n),
		z:        take(n),
		np:       take(n),
		rv:       take(n1),
		u:        take(n1),
		uOld:     take(n1),
		s:        take(m),
		sOld:     take(m),
		act:      make([]int, n1),
		actOld:   make([]int, n1),
		inactive: make([]bool, m),
		excluded: make([]bool, m),
	}
	w.jOld = w.l
	return w
}

// Solve runs the dual active-set method using workspace w.
// The returned error is nil exactly when Result.OK is true.
func (o *Optimizer) Solve(w *Workspace) (*Result, error) {

	if w.n != o.n || w.p != o.p || w.m != o.m {
		panic("workspace dimension not match spec")
	}

	solver := giSolver{
		optimizer: o,
		workspace: w,
		log:       o.log,
	}

	status := solver.mainLoop()
	res := &Result{
		OK:     status == Optimal,
		X:      slices.Clone(w.x),
		Lambda: make([]float64, o.p+o.m),
		Active: make([]int, 0, w.iq-w.meq),
		Summary: Summary{
			Status:  status,
			NumIter: w.iter,
		},
	}

	switch status {
	case Optimal:
		res.F = o.objective(w.x)
		for k := 0; k < w.iq; k++ {
			res.Lambda[w.act[k]] = w.u[k]
			if w.act[k] >= o.p {
				res.Active = append(res.Active, w.act[k]-o.p)
			}
		}
		slices.Sort(res.Active)
	case Infeasible:
		res.F = inf
	case Unbounded:
		res.F = -inf
	default:
		res.F = math.NaN()
	}

	return res, status.Err()
}

// objective evaluates ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 with 𝐆 symmetrized from its upper triangle.
func (o *Optimizer) objective(x []float64) float64 {
	n, f := o.n, zero
	for i := 0; i < n; i++ {
		row := o.g[i*n : (i+1)*n]
		f += half*row[i]*x[i]*x[i] + x[i]*dense.Ddot(n-i-1, row[i+1:], 1, x[i+1:], 1)
	}
	return f + dense.Ddot(n, o.g0, 1, x, 1)
}

// Solve minimizes ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 subject to 𝐂𝐄ᵀ𝐱 + 𝐜𝐞₀ = 0 and 𝐂𝐈ᵀ𝐱 + 𝐜𝐢₀ ≥ 0
// with default termination criteria. ce/ce0 and ci/ci0 may be nil.
func Solve(g *dense.Matrix, g0 *dense.Vector,
	ce *dense.Matrix, ce0 *dense.Vector,
	ci *dense.Matrix, ci0 *dense.Vector) (x []float64, f float64, err error) {

	p := Problem{G: g, G0: g0, CE: ce, CE0: ce0, CI: ci, CI0: ci0}
	o, err := p.New()
	if err != nil {
		return nil, math.NaN(), err
	}
	res, err := o.Solve(o.Init())
	if err != nil {
		return nil, res.F, err
	}
	return res.X, res.F, nil
}
