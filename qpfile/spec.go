// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpfile reads quadratic programs from YAML or JSON files and writes
// solver reports back. Files ending in .zst or .lz4 are compressed transparently.
package qpfile

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/quadprog/dense"
	"github.com/curioloop/quadprog/quadprog"
)

// ErrInvalidSpec reports a problem file that cannot describe a quadratic program.
var ErrInvalidSpec = errors.New("qpfile: invalid problem spec")

// Spec is the file representation of
//
//	minimize ½𝐱ᵀ𝐆𝐱 + 𝐠₀ᵀ𝐱 subject to 𝐂𝐄ᵀ𝐱 + 𝐜𝐞₀ = 0 and 𝐂𝐈ᵀ𝐱 + 𝐜𝐢₀ ≥ 0
//
// Matrices are lists of rows. CE and CI have one row per variable and one
// column per constraint, matching the solver layout.
type Spec struct {
	// Name identifies the problem in reports (optional)
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	G  [][]float64 `yaml:"G" json:"G"`
	G0 []float64   `yaml:"g0" json:"g0"`

	CE  [][]float64 `yaml:"CE,omitempty" json:"CE,omitempty"`
	CE0 []float64   `yaml:"ce0,omitempty" json:"ce0,omitempty"`
	CI  [][]float64 `yaml:"CI,omitempty" json:"CI,omitempty"`
	CI0 []float64   `yaml:"ci0,omitempty" json:"ci0,omitempty"`

	// Termination overrides, zero selects the solver defaults
	MaxIterations int     `yaml:"maxIterations,omitempty" json:"maxIterations,omitempty"`
	Tolerance     float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// Validate checks the shape of every term.
func (s *Spec) Validate() error {
	n := len(s.G)
	if n == 0 {
		return fmt.Errorf("%w: G must not be empty", ErrInvalidSpec)
	}
	for i, row := range s.G {
		if len(row) != n {
			return fmt.Errorf("%w: G row %d has %d columns, want %d", ErrInvalidSpec, i, len(row), n)
		}
	}
	if len(s.G0) != n {
		return fmt.Errorf("%w: g0 has %d entries, want %d", ErrInvalidSpec, len(s.G0), n)
	}
	if err := validateConstraints("CE", "ce0", n, s.CE, s.CE0); err != nil {
		return err
	}
	if err := validateConstraints("CI", "ci0", n, s.CI, s.CI0); err != nil {
		return err
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("%w: maxIterations must be >= 0, got %d", ErrInvalidSpec, s.MaxIterations)
	}
	if s.Tolerance < 0 || math.IsNaN(s.Tolerance) || math.IsInf(s.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance must be finite and >= 0, got %g", ErrInvalidSpec, s.Tolerance)
	}
	return nil
}

func validateConstraints(mt, vt string, n int, a [][]float64, b []float64) error {
	if len(a) == 0 {
		if len(b) != 0 {
			return fmt.Errorf("%w: %s has %d entries but %s is empty", ErrInvalidSpec, vt, len(b), mt)
		}
		return nil
	}
	if len(a) != n {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrInvalidSpec, mt, len(a), n)
	}
	for i, row := range a {
		if len(row) != len(b) {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d (len %s)", ErrInvalidSpec, mt, i, len(row), len(b), vt)
		}
	}
	return nil
}

// Problem validates s and converts it into a solver problem.
func (s *Spec) Problem() (*quadprog.Problem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	n := len(s.G)
	p := &quadprog.Problem{
		Stop: quadprog.Termination{
			MaxIterations: s.MaxIterations,
			Tolerance:     s.Tolerance,
		},
	}

	var err error
	if p.G, err = dense.NewMatrixFromRows(s.G); err != nil {
		return nil, err
	}
	if p.G0, err = dense.NewVectorFrom(s.G0, n); err != nil {
		return nil, err
	}
	if len(s.CE0) > 0 {
		if p.CE, err = dense.NewMatrixFromRows(s.CE); err != nil {
			return nil, err
		}
		if p.CE0, err = dense.NewVectorFrom(s.CE0, len(s.CE0)); err != nil {
			return nil, err
		}
	}
	if len(s.CI0) > 0 {
		if p.CI, err = dense.NewMatrixFromRows(s.CI); err != nil {
			return nil, err
		}
		if p.CI0, err = dense.NewVectorFrom(s.CI0, len(s.CI0)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Decode reads every document of a YAML stream. JSON documents are accepted
// since JSON is a subset of YAML. Unknown keys are rejected.
func Decode(r io.Reader) ([]Spec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var specs []Spec
	for i := 0; ; i++ {
		var s Spec
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			return specs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("qpfile: document %d: %w", i, err)
		}
		specs = append(specs, s)
	}
}
