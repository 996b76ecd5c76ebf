//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package output writes feature tables, diagnostic curves, genome tracks,
// matrices and run reports.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// GenericWriter is a writer that must be closed.
type GenericWriter interface {
	Write(buf []byte) (n int, err error)
	Close() error
}

// SplitFormat splits "format+compression" (e.g. "csv+lz4").
func SplitFormat(format string) (base, zip string) {
	if i := strings.Index(format, "+"); i >= 0 {
		return format[:i], format[i+1:]
	}
	return format, ""
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type stackWriter struct {
	GenericWriter
	closers []io.Closer
}

// Close closes the compressor, then the file.
func (s *stackWriter) Close() error {
	err := s.GenericWriter.Close()
	for _, c := range s.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Compress wraps w with the compression zip: "" (none), "lz4", "lz4hc",
// "zst" or "gz". Closing the returned writer does not close w.
func Compress(w io.Writer, zip string) (GenericWriter, error) {
	switch zip {
	case "":
		return nopCloser{w}, nil
	case "lz4":
		return lz4.NewWriter(w), nil
	case "lz4hc":
		lzWriter := lz4.NewWriter(w)
		lzWriter.Header = lz4.Header{CompressionLevel: 9}
		return lzWriter, nil
	case "zst":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	case "gz":
		return gzip.NewWriter(w), nil
	}
	return nil, errs.Configuration("unknown compression %q", zip)
}

// Create opens path for writing with compression zip. Path "-" is the
// standard output.
func Create(path string, zip string, appendOutput bool) (GenericWriter, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdout
	} else {
		// Append or Create flag
		var fg int
		if appendOutput {
			fg = os.O_APPEND | os.O_CREATE | os.O_WRONLY
		} else {
			fg = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		var err error
		if f, err = os.OpenFile(path, fg, 0666); err != nil {
			return nil, err
		}
	}
	w, err := Compress(f, zip)
	if err != nil {
		if f != os.Stdout {
			f.Close()
		}
		return nil, err
	}
	s := &stackWriter{GenericWriter: w}
	if f != os.Stdout {
		s.closers = append(s.closers, f)
	}
	return s, nil
}

// WriteFile creates path and calls write on it.
func WriteFile(path string, format string, appendOutput bool, write func(w io.Writer, format string) error) error {
	base, zip := SplitFormat(format)
	w, err := Create(path, zip, appendOutput)
	if err != nil {
		return err
	}
	if err := write(w, base); err != nil {
		w.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return w.Close()
}
