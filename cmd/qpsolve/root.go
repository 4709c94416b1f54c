// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/curioloop/quadprog/batch"
	"github.com/curioloop/quadprog/qpfile"
	"github.com/curioloop/quadprog/quadprog"
)

const envPrefix = "QPSOLVE"

const (
	keyMaxIter   = "max-iter"
	keyTolerance = "tolerance"
	keyWorkers   = "workers"
	keyOutput    = "output"
	keyFormat    = "format"
	keyLogLevel  = "log-level"
	keyConfig    = "config"
)

var errUnsolved = errors.New("some problems were not solved")

// settings is the resolved configuration of one run.
type settings struct {
	maxIter   int
	tolerance float64
	workers   int
	output    string
	format    qpfile.Format
	logLevel  zapcore.Level
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "qpsolve [flags] files...",
		Short: "Solve convex quadratic programs with the Goldfarb-Idnani dual method",
		Long: `Solve convex quadratic programs

  minimize ½xᵀGx + g0ᵀx subject to CEᵀx + ce0 = 0 and CIᵀx + ci0 ≥ 0

read from YAML or JSON files (optionally .zst or .lz4 compressed).
Every flag may also be set through a QPSOLVE_* environment variable
or a config file.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(v)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), s.logLevel)
			return run(cmd.Context(), log, s, args, cmd.OutOrStdout())
		},
	}

	bindFlags(cmd.Flags(), v)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Int(keyMaxIter, 0, "iteration limit for problems that set none (0 selects the solver default)")
	fs.Float64(keyTolerance, 0, "feasibility tolerance for problems that set none (0 derives it from the problem scale)")
	fs.Int(keyWorkers, 0, "number of problems solved concurrently (0 uses GOMAXPROCS)")
	fs.StringP(keyOutput, "o", "-", "report file, - for stdout")
	fs.String(keyFormat, "", "report format yaml or json (derived from --output when empty)")
	fs.String(keyLogLevel, "info", "log level: trace, debug, info, warn, error")
	fs.String(keyConfig, "", "config file (yaml, json or toml)")

	_ = v.BindPFlags(fs)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func readConfig(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func resolve(v *viper.Viper) (s settings, err error) {
	s.maxIter = v.GetInt(keyMaxIter)
	s.tolerance = v.GetFloat64(keyTolerance)
	s.workers = v.GetInt(keyWorkers)
	s.output = v.GetString(keyOutput)

	switch {
	case s.maxIter < 0:
		return s, fmt.Errorf("--%s must not be negative", keyMaxIter)
	case s.tolerance < 0:
		return s, fmt.Errorf("--%s must not be negative", keyTolerance)
	case s.workers < 0:
		return s, fmt.Errorf("--%s must not be negative", keyWorkers)
	}

	if f := v.GetString(keyFormat); f != "" {
		if s.format, err = qpfile.ParseFormat(f); err != nil {
			return s, err
		}
	} else {
		s.format = qpfile.FormatOf(s.output)
	}

	if s.logLevel, err = parseLevel(v.GetString(keyLogLevel)); err != nil {
		return s, err
	}
	return s, nil
}

// parseLevel extends the zap levels with trace, which enables V(2) of logr.
func parseLevel(s string) (zapcore.Level, error) {
	if strings.EqualFold(s, "trace") {
		return zapcore.Level(-2), nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return lvl, fmt.Errorf("--%s: %w", keyLogLevel, err)
	}
	return lvl, nil
}

func newLogger(w io.Writer, lvl zapcore.Level) logr.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zapr.NewLogger(zap.New(core))
}

// job is one document of one input file.
type job struct {
	name    string
	problem *quadprog.Problem
	err     error
}

func load(paths []string, s settings) ([]job, error) {
	var jobs []job
	for _, path := range paths {
		specs, err := qpfile.Load(path)
		if err != nil {
			return nil, err
		}
		for i := range specs {
			spec := &specs[i]
			name := spec.Name
			if name == "" {
				name = fmt.Sprintf("%s#%d", path, i)
			}
			if spec.MaxIterations == 0 {
				spec.MaxIterations = s.maxIter
			}
			if spec.Tolerance == 0 {
				spec.Tolerance = s.tolerance
			}
			p, err := spec.Problem()
			jobs = append(jobs, job{name: name, problem: p, err: err})
		}
	}
	return jobs, nil
}

func run(ctx context.Context, log logr.Logger, s settings, paths []string, stdout io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	jobs, err := load(paths, s)
	if err != nil {
		return err
	}

	var problems []*quadprog.Problem
	var index []int
	for i, j := range jobs {
		if j.err == nil {
			problems = append(problems, j.problem)
			index = append(index, i)
		}
	}

	log.Info("solving", "files", len(paths), "problems", len(jobs), "valid", len(problems))
	outcomes, err := batch.Solve(ctx, problems,
		batch.WithWorkers(s.workers),
		batch.WithLogger(log.WithName("batch")),
		batch.WithSolverOptions(quadprog.WithLogger(log.WithName("quadprog"))))
	if err != nil {
		return err
	}

	reports := make([]qpfile.Report, len(jobs))
	for i, j := range jobs {
		reports[i] = qpfile.NewReport(j.name, nil, j.err)
	}
	for k, out := range outcomes {
		j := jobs[index[k]]
		reports[index[k]] = qpfile.NewReport(j.name, out.Result, out.Err)
	}

	w := io.WriteCloser(nopCloser{stdout})
	if s.output != "" && s.output != "-" {
		if w, err = qpfile.Create(s.output); err != nil {
			return err
		}
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()
	if err = qpfile.Encode(w, reports, s.format); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Status != quadprog.Optimal.String() {
			failed++
			log.Info("problem not solved", "name", r.Name, "status", r.Status, "error", r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errUnsolved, failed, len(reports))
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
