// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpfile_test

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/curioloop/quadprog/qpfile"
	"github.com/curioloop/quadprog/quadprog"
)

const problems = `
name: demo
G:
  - [4, -2]
  - [-2, 4]
g0: [6, 0]
CE:
  - [1]
  - [1]
ce0: [-3]
CI:
  - [1, 1, 0]
  - [0, 1, 1]
ci0: [0, -2, 0]
maxIterations: 20
---
{"name": "bound", "G": [[1, 0], [0, 1]], "g0": [0, 0], "CI": [[1, 0], [0, 1]], "ci0": [-1, -1]}
`

func solve(s qpfile.Spec) (*quadprog.Result, error) {
	p, err := s.Problem()
	Expect(err).NotTo(HaveOccurred())
	o, err := p.New()
	Expect(err).NotTo(HaveOccurred())
	return o.Solve(o.Init())
}

var _ = Describe("Decode", func() {

	It("should read a mixed YAML and JSON stream", func() {
		specs, err := qpfile.Decode(strings.NewReader(problems))
		Expect(err).NotTo(HaveOccurred())
		Expect(specs).To(HaveLen(2))
		Expect(specs[0].Name).To(Equal("demo"))
		Expect(specs[0].MaxIterations).To(Equal(20))
		Expect(specs[1].Name).To(Equal("bound"))
		Expect(specs[1].CE).To(BeEmpty())

		res, err := solve(specs[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(res.F).To(BeNumerically("~", 12, 1e-12))
		Expect(res.X).To(HaveLen(2))
		Expect(res.X[0]).To(BeNumerically("~", 1, 1e-12))
		Expect(res.X[1]).To(BeNumerically("~", 2, 1e-12))

		res, err = solve(specs[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(res.F).To(BeNumerically("~", 1, 1e-12))
		Expect(res.Active).To(Equal([]int{0, 1}))
	})

	It("should reject unknown keys", func() {
		_, err := qpfile.Decode(strings.NewReader("G: [[1]]\ng0: [0]\nh: [1]\n"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("document 0"))
	})

	It("should return nothing for an empty stream", func() {
		specs, err := qpfile.Decode(strings.NewReader(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(specs).To(BeEmpty())
	})
})

var _ = Describe("Spec", func() {

	valid := func() qpfile.Spec {
		return qpfile.Spec{
			G:   [][]float64{{1, 0}, {0, 1}},
			G0:  []float64{0, 0},
			CI:  [][]float64{{1}, {1}},
			CI0: []float64{-1},
		}
	}

	It("should accept a well formed problem", func() {
		s := valid()
		Expect(s.Validate()).To(Succeed())
		p, err := s.Problem()
		Expect(err).NotTo(HaveOccurred())
		Expect(p.CE).To(BeNil())
		r, c := p.CI.Dims()
		Expect([]int{r, c}).To(Equal([]int{2, 1}))
	})

	It("should treat constraint rows without columns as no constraints", func() {
		s := valid()
		s.CE, s.CE0 = [][]float64{{}, {}}, nil
		p, err := s.Problem()
		Expect(err).NotTo(HaveOccurred())
		Expect(p.CE).To(BeNil())
		Expect(p.CE0).To(BeNil())
	})

	It("should pass termination settings to the solver", func() {
		s := valid()
		s.MaxIterations, s.Tolerance = 7, 1e-9
		p, err := s.Problem()
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Stop).To(Equal(quadprog.Termination{MaxIterations: 7, Tolerance: 1e-9}))
	})

	DescribeTable("should reject malformed terms",
		func(mutate func(*qpfile.Spec), term string) {
			s := valid()
			mutate(&s)
			err := s.Validate()
			Expect(err).To(MatchError(qpfile.ErrInvalidSpec))
			Expect(err.Error()).To(ContainSubstring(term))
			_, err = s.Problem()
			Expect(errors.Is(err, qpfile.ErrInvalidSpec)).To(BeTrue())
		},
		Entry("empty G", func(s *qpfile.Spec) { s.G = nil }, "G"),
		Entry("ragged G", func(s *qpfile.Spec) { s.G[1] = []float64{0} }, "G row 1"),
		Entry("short g0", func(s *qpfile.Spec) { s.G0 = []float64{0} }, "g0"),
		Entry("CI rows", func(s *qpfile.Spec) { s.CI = [][]float64{{1}} }, "CI has 1 rows"),
		Entry("CI columns", func(s *qpfile.Spec) { s.CI0 = []float64{-1, 0} }, "CI row 0"),
		Entry("orphan ce0", func(s *qpfile.Spec) { s.CE0 = []float64{1} }, "ce0"),
		Entry("negative iterations", func(s *qpfile.Spec) { s.MaxIterations = -1 }, "maxIterations"),
		Entry("infinite tolerance", func(s *qpfile.Spec) { s.Tolerance = math.Inf(1) }, "tolerance"),
	)
})

var _ = Describe("Files", func() {

	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	DescribeTable("should round trip problems through compressed files",
		func(name string, compression qpfile.Compression, magic []byte) {
			path := filepath.Join(dir, name)
			Expect(qpfile.CompressionOf(path)).To(Equal(compression))

			want, err := qpfile.Decode(strings.NewReader(problems))
			Expect(err).NotTo(HaveOccurred())

			w, err := qpfile.Create(path)
			Expect(err).NotTo(HaveOccurred())
			enc := yaml.NewEncoder(w)
			for i := range want {
				Expect(enc.Encode(&want[i])).To(Succeed())
			}
			Expect(enc.Close()).To(Succeed())
			Expect(w.Close()).To(Succeed())

			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.HasPrefix(raw, magic)).To(BeTrue())

			got, err := qpfile.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("plain", "problems.yaml", qpfile.CompressionNone, []byte("name: demo")),
		Entry("zstd", "problems.yaml.zst", qpfile.CompressionZSTD, []byte{0x28, 0xb5, 0x2f, 0xfd}),
		Entry("lz4", "problems.yaml.lz4", qpfile.CompressionLZ4, []byte{0x04, 0x22, 0x4d, 0x18}),
	)

	It("should fail on missing files", func() {
		_, err := qpfile.Load(filepath.Join(dir, "missing.yaml"))
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("should fail on corrupted zstd input", func() {
		path := filepath.Join(dir, "bad.yaml.zst")
		Expect(os.WriteFile(path, []byte("not a zstd frame"), 0o644)).To(Succeed())
		_, err := qpfile.Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("should derive report formats from file names", func() {
		Expect(qpfile.FormatOf("out.json")).To(Equal(qpfile.FormatJSON))
		Expect(qpfile.FormatOf("out.JSON.zst")).To(Equal(qpfile.FormatJSON))
		Expect(qpfile.FormatOf("out.yaml.lz4")).To(Equal(qpfile.FormatYAML))
		Expect(qpfile.FormatOf("out")).To(Equal(qpfile.FormatYAML))
	})
})

var _ = Describe("Report", func() {

	var specs []qpfile.Spec

	BeforeEach(func() {
		var err error
		specs, err = qpfile.Decode(strings.NewReader(problems))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should summarize an optimal solve", func() {
		res, err := solve(specs[1])
		rep := qpfile.NewReport(specs[1].Name, res, err)
		Expect(rep.Status).To(Equal("optimal"))
		Expect(rep.Error).To(BeEmpty())
		Expect(rep.Objective).NotTo(BeNil())
		Expect(*rep.Objective).To(BeNumerically("~", 1, 1e-12))
		Expect(rep.Active).To(Equal([]int{0, 1}))
		Expect(rep.Lambda).To(HaveLen(2))
	})

	It("should omit the objective of an infeasible solve", func() {
		s := qpfile.Spec{
			Name: "contradiction",
			G:    [][]float64{{1}},
			G0:   []float64{0},
			CI:   [][]float64{{1, -1}},
			CI0:  []float64{-1, 0},
		}
		res, err := solve(s)
		rep := qpfile.NewReport(s.Name, res, err)
		Expect(rep.Status).To(Equal("infeasible"))
		Expect(rep.Objective).To(BeNil())
		Expect(rep.X).To(BeNil())
		Expect(rep.Error).To(ContainSubstring("no feasible solution"))
	})

	It("should mark rejected problems", func() {
		rep := qpfile.NewReport("broken", nil, qpfile.ErrInvalidSpec)
		Expect(rep.Status).To(Equal("rejected"))
		Expect(rep.Error).To(Equal(qpfile.ErrInvalidSpec.Error()))
	})

	DescribeTable("should round trip reports",
		func(format qpfile.Format) {
			var reports []qpfile.Report
			for _, s := range specs {
				res, err := solve(s)
				reports = append(reports, qpfile.NewReport(s.Name, res, err))
			}
			reports = append(reports, qpfile.NewReport("broken", nil, qpfile.ErrInvalidSpec))

			var buf bytes.Buffer
			Expect(qpfile.Encode(&buf, reports, format)).To(Succeed())
			got, err := qpfile.DecodeReports(&buf, format)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(reports))
		},
		Entry("yaml", qpfile.FormatYAML),
		Entry("json", qpfile.FormatJSON),
	)

	It("should encode an empty JSON report list as an array", func() {
		var buf bytes.Buffer
		Expect(qpfile.Encode(&buf, nil, qpfile.FormatJSON)).To(Succeed())
		Expect(strings.TrimSpace(buf.String())).To(Equal("[]"))
	})

	It("should reject unknown formats", func() {
		_, err := qpfile.ParseFormat("toml")
		Expect(err).To(HaveOccurred())
		Expect(qpfile.Encode(io.Discard, nil, qpfile.Format("toml"))).NotTo(Succeed())
		f, err := qpfile.ParseFormat("yml")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(qpfile.FormatYAML))
	})
})
