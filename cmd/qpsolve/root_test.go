// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/curioloop/quadprog/qpfile"
)

const bound = `name: bound
G: [[1, 0], [0, 1]]
g0: [0, 0]
CI: [[1, 0], [0, 1]]
ci0: [-1, -1]
`

const contradiction = `name: contradiction
G: [[1]]
g0: [0]
CI: [[1, -1]]
ci0: [-1, 0]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSolveToStdout(t *testing.T) {
	path := writeFile(t, "bound.yaml", bound)

	stdout, _, err := execute(t, path)
	require.NoError(t, err)

	reports, err := qpfile.DecodeReports(strings.NewReader(stdout), qpfile.FormatYAML)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "bound", reports[0].Name)
	assert.Equal(t, "optimal", reports[0].Status)
	require.NotNil(t, reports[0].Objective)
	assert.InDelta(t, 1.0, *reports[0].Objective, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, reports[0].X, 1e-12)
}

func TestSolveToCompressedFile(t *testing.T) {
	in := writeFile(t, "bound.yaml", bound+"---\n"+bound)
	out := filepath.Join(t.TempDir(), "reports.json.zst")

	stdout, _, err := execute(t, "--workers", "2", "-o", out, in)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	r, err := qpfile.Open(out)
	require.NoError(t, err)
	defer r.Close()
	reports, err := qpfile.DecodeReports(r, qpfile.FormatJSON)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.Equal(t, "optimal", rep.Status)
	}
}

func TestUnsolvedProblems(t *testing.T) {
	good := writeFile(t, "bound.yaml", bound)
	bad := writeFile(t, "bad.yaml", contradiction+"---\nG: [[1, 0]]\ng0: [0]\n")

	stdout, _, err := execute(t, "--format", "json", good, bad)
	require.ErrorIs(t, err, errUnsolved)
	assert.Contains(t, err.Error(), "2 of 3")

	reports, err := qpfile.DecodeReports(strings.NewReader(stdout), qpfile.FormatJSON)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "optimal", reports[0].Status)
	assert.Equal(t, "infeasible", reports[1].Status)
	assert.Nil(t, reports[1].Objective)
	assert.Equal(t, "rejected", reports[2].Status)
	assert.Equal(t, bad+"#1", reports[2].Name)
	assert.Contains(t, reports[2].Error, "G row 0")
}

func TestIterationLimitFlag(t *testing.T) {
	path := writeFile(t, "bound.yaml", bound)

	stdout, _, err := execute(t, "--max-iter", "1", path)
	require.ErrorIs(t, err, errUnsolved)

	reports, err := qpfile.DecodeReports(strings.NewReader(stdout), qpfile.FormatYAML)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "iteration limit exceeded", reports[0].Status)
	assert.Equal(t, 1, reports[0].Iterations)
}

func TestEnvironmentAndConfig(t *testing.T) {
	path := writeFile(t, "bound.yaml", bound)

	t.Setenv("QPSOLVE_FORMAT", "json")
	stdout, _, err := execute(t, path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(stdout), "["))

	config := writeFile(t, "qpsolve.yaml", "format: yaml\nmax-iter: 1\n")
	t.Setenv("QPSOLVE_FORMAT", "")
	stdout, _, err = execute(t, "--config", config, path)
	require.ErrorIs(t, err, errUnsolved)
	assert.Contains(t, stdout, "status: iteration limit exceeded")
}

func TestTraceLogging(t *testing.T) {
	path := writeFile(t, "bound.yaml", bound)

	_, stderr, err := execute(t, "--log-level", "trace", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "add constraint")
	assert.Contains(t, stderr, "problem solved")

	_, stderr, err = execute(t, "--log-level", "error", path)
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestBadArguments(t *testing.T) {
	path := writeFile(t, "bound.yaml", bound)

	_, _, err := execute(t)
	assert.Error(t, err)

	_, _, err = execute(t, "--workers", "-1", path)
	assert.ErrorContains(t, err, "workers")

	_, _, err = execute(t, "--format", "toml", path)
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = execute(t, "--log-level", "loud", path)
	assert.ErrorContains(t, err, "log-level")

	_, _, err = execute(t, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), path)
	assert.ErrorContains(t, err, "read config")
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]zapcore.Level{
		"trace": -2,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"ERROR": zapcore.ErrorLevel,
	} {
		lvl, err := parseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, lvl, s)
	}
}
