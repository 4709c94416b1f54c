// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression of a problem or report file, derived from its extension.
type Compression uint8

const (
	// CompressionNone plain text.
	CompressionNone Compression = iota
	// CompressionZSTD zstd frames (.zst).
	CompressionZSTD
	// CompressionLZ4 lz4 frames (.lz4).
	CompressionLZ4
)

// CompressionOf maps .zst and .lz4 to their codec and everything else to none.
func CompressionOf(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZSTD
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// FormatOf returns the report format implied by the extension of path
// once any compression suffix is removed.
func FormatOf(path string) Format {
	if CompressionOf(path) != CompressionNone {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewReader wraps r with the decompressor for c.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// Open opens path for reading and decompresses it according to its extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, CompressionOf(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &readCloser{Reader: r, closers: []io.Closer{r, f}}, nil
}

// Load decodes every problem stored in path.
func Load(path string) ([]Spec, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	specs, err := Decode(r)
	return specs, errors.Join(err, r.Close())
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	var errs []error
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewWriter wraps w with the compressor for c.
// Closing the result flushes the compressor but leaves w open.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionZSTD:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return &writeCloser{Writer: w}, nil
	}
}

// Create creates path for writing and compresses it according to its extension.
// Close must be called to flush the compressor.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, CompressionOf(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &writeCloser{Writer: w, closers: []io.Closer{w, f}}, nil
}
