// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package batch solves many independent quadratic programs in parallel.
//
// Every problem gets its own optimizer and workspace, so no state is shared
// between goroutines. A solver failure is recorded in the problem's Outcome
// and never stops the other solves; only cancellation of the context does.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/curioloop/quadprog/quadprog"
)

type options struct {
	workers int
	log     logr.Logger
	solver  []quadprog.Option
}

// Option configures Solve.
type Option func(*options)

// WithWorkers limits the number of concurrent solves.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger reports one line per finished problem at V(1).
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithSolverOptions forwards options to every optimizer.
func WithSolverOptions(opts ...quadprog.Option) Option {
	return func(o *options) {
		o.solver = append(o.solver, opts...)
	}
}

// Outcome is the result of one problem.
type Outcome struct {
	Index    int              // Position in the input slice.
	Result   *quadprog.Result // Nil when the problem was rejected before solving.
	Err      error            // Validation or solver error.
	Duration time.Duration
}

// Solve runs every problem and returns the outcomes in input order.
// The error is non-nil only when ctx is done before all problems were solved;
// outcomes of problems never started then carry the context error.
func Solve(ctx context.Context, problems []*quadprog.Problem, opts ...Option) ([]Outcome, error) {

	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(problems))
	for i := range outcomes {
		outcomes[i].Index = i
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, p := range problems {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = solveOne(i, p, o)
			return nil
		})
	}

	err := g.Wait()
	for i := range outcomes {
		if outcomes[i].Result != nil || outcomes[i].Err != nil {
			continue
		}
		if err == nil {
			err = ctx.Err()
		}
		outcomes[i].Err = err
	}
	return outcomes, err
}

func solveOne(i int, p *quadprog.Problem, o options) (out Outcome) {
	out.Index = i
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
	}()

	if p == nil {
		out.Err = fmt.Errorf("%w: nil problem", quadprog.ErrBadArgument)
		return
	}

	opt, err := p.New(o.solver...)
	if err != nil {
		out.Err = err
		o.log.V(1).Info("problem rejected", "index", i, "error", err.Error())
		return
	}

	out.Result, out.Err = opt.Solve(opt.Init())
	o.log.V(1).Info("problem solved", "index", i,
		"status", out.Result.Status.String(), "iterations", out.Result.NumIter)
	return
}
