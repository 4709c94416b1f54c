// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command qpsolve solves the quadratic programs stored in YAML or JSON files.
//
//	qpsolve [flags] problems.yaml [more.json.zst ...]
//
// Every document of every file is one problem. Reports are written to stdout
// or to --output, compressed when the output name ends in .zst or .lz4.
// The exit status is non-zero when any problem is not solved to optimality.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
