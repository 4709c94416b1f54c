// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/curioloop/quadprog/quadprog"
)

// Format of an encoded report stream.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts yaml, yml and json.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("qpfile: unknown format %q", s)
	}
}

// Report is the outcome of one solve.
type Report struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Status string `yaml:"status" json:"status"`
	// Objective is omitted when not finite (infeasible, unbounded or failed solves).
	Objective  *float64  `yaml:"objective,omitempty" json:"objective,omitempty"`
	X          []float64 `yaml:"x,omitempty" json:"x,omitempty"`
	Lambda     []float64 `yaml:"lambda,omitempty" json:"lambda,omitempty"`
	Active     []int     `yaml:"active,omitempty" json:"active,omitempty"`
	Iterations int       `yaml:"iterations" json:"iterations"`
	Error      string    `yaml:"error,omitempty" json:"error,omitempty"`
}

// NewReport summarizes a solve. res may be nil when the problem was rejected.
// The iterate is only reported for optimal solves.
func NewReport(name string, res *quadprog.Result, err error) Report {
	r := Report{Name: name, Status: "rejected"}
	if err != nil {
		r.Error = err.Error()
	}
	if res == nil {
		return r
	}
	r.Status = res.Status.String()
	r.Iterations = res.NumIter
	if !math.IsNaN(res.F) && !math.IsInf(res.F, 0) {
		f := res.F
		r.Objective = &f
	}
	if res.OK {
		r.X = clone(res.X)
		r.Lambda = clone(res.Lambda)
		r.Active = clone(res.Active)
	}
	return r
}

// clone maps empty slices to nil so reports survive an omitempty round trip.
func clone[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode writes reports as a YAML document stream or a JSON array.
func Encode(w io.Writer, reports []Report, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for i := range reports {
			if err := enc.Encode(&reports[i]); err != nil {
				return err
			}
		}
		return enc.Close()
	case FormatJSON:
		if reports == nil {
			reports = []Report{}
		}
		enc := jsonAPI.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	default:
		return fmt.Errorf("qpfile: unknown format %q", format)
	}
}

// DecodeReports reads reports written by Encode.
func DecodeReports(r io.Reader, format Format) ([]Report, error) {
	var reports []Report
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		for {
			var rep Report
			if err := dec.Decode(&rep); errors.Is(err, io.EOF) {
				return reports, nil
			} else if err != nil {
				return nil, err
			}
			reports = append(reports, rep)
		}
	case FormatJSON:
		if err := jsonAPI.NewDecoder(r).Decode(&reports); err != nil {
			return nil, err
		}
		return reports, nil
	default:
		return nil, fmt.Errorf("qpfile: unknown format %q", format)
	}
}
