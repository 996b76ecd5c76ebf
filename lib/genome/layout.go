//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package genome maps genomic coordinates onto a global bin index space.
package genome

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// ChromSize is one entry of a chromosome size table.
type ChromSize struct {
	Name   string
	Length int
}

// Chrom is a chromosome placed in the bin index space.
type Chrom struct {
	Name   string
	Length int
	Offset int
	NBins  int
}

// End returns the first bin after the chromosome.
func (c Chrom) End() int {
	return c.Offset + c.NBins
}

// Layout is an immutable ordered list of chromosomes with a bin size.
// It is safe for concurrent use.
type Layout struct {
	binSize int
	nBins   int
	chroms  []Chrom
	index   map[string]int
}

// NewLayout concatenates per-chromosome bin ranges in the order of sizes.
func NewLayout(sizes []ChromSize, binSize int) (*Layout, error) {
	if binSize <= 0 {
		return nil, errs.Configuration("bin size must be positive, got %d", binSize)
	}
	if len(sizes) == 0 {
		return nil, errs.Malformed("empty chromosome size table")
	}
	l := &Layout{binSize: binSize, index: make(map[string]int, len(sizes))}
	for _, s := range sizes {
		if s.Length <= 0 {
			return nil, errs.Malformed("chromosome %s has non-positive length %d", s.Name, s.Length)
		}
		if _, ok := l.index[s.Name]; ok {
			return nil, errs.Malformed("duplicated chromosome %s", s.Name)
		}
		nb := (s.Length + binSize - 1) / binSize
		l.index[s.Name] = len(l.chroms)
		l.chroms = append(l.chroms, Chrom{Name: s.Name, Length: s.Length, Offset: l.nBins, NBins: nb})
		l.nBins += nb
	}
	return l, nil
}

// BinSize returns the bin size in base pairs.
func (l *Layout) BinSize() int { return l.binSize }

// NBins returns the total number of bins.
func (l *Layout) NBins() int { return l.nBins }

// NChrom returns the number of chromosomes.
func (l *Layout) NChrom() int { return len(l.chroms) }

// Chrom returns the i-th chromosome.
func (l *Layout) Chrom(i int) Chrom { return l.chroms[i] }

// Chroms returns a copy of the chromosome list.
func (l *Layout) Chroms() []Chrom {
	c := make([]Chrom, len(l.chroms))
	copy(c, l.chroms)
	return c
}

// Sizes returns the chromosome size table of the layout.
func (l *Layout) Sizes() []ChromSize {
	s := make([]ChromSize, len(l.chroms))
	for i, c := range l.chroms {
		s[i] = ChromSize{Name: c.Name, Length: c.Length}
	}
	return s
}

// Index returns the position of chromosome name in the layout.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Bin resolves a position to its global bin index.
func (l *Layout) Bin(name string, pos int) (int, bool) {
	i, ok := l.index[name]
	if !ok {
		return 0, false
	}
	c := l.chroms[i]
	if pos < 0 || pos >= c.Length {
		return 0, false
	}
	return c.Offset + pos/l.binSize, true
}

// ChromOfBin returns the index of the chromosome containing bin.
func (l *Layout) ChromOfBin(bin int) int {
	return sort.Search(len(l.chroms), func(i int) bool { return l.chroms[i].End() > bin })
}

// Select returns a new layout restricted to names, keeping the layout order.
func (l *Layout) Select(names []string) (*Layout, error) {
	if len(names) == 0 {
		return l, nil
	}
	selected := set.New(set.NonThreadSafe)
	for _, n := range names {
		if _, ok := l.index[n]; !ok {
			return nil, errs.Malformed("selected chromosome %s not in chromosome sizes", n)
		}
		selected.Add(n)
	}
	var sizes []ChromSize
	for _, c := range l.chroms {
		if selected.Has(c.Name) {
			sizes = append(sizes, ChromSize{Name: c.Name, Length: c.Length})
		}
	}
	return NewLayout(sizes, l.binSize)
}

// ParseSizes parses a two column tabulated table with name and length of chromosomes.
func ParseSizes(r io.Reader) (sizes []ChromSize, err error) {
	tscanner := bufio.NewScanner(r)
	var iline int
	for tscanner.Scan() {
		iline++
		line := strings.TrimSpace(tscanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errs.Malformed("chromosome sizes line %d: expected 2 columns, got %d", iline, len(fields))
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errs.Malformed("chromosome sizes line %d: %v", iline, err)
		}
		sizes = append(sizes, ChromSize{Name: fields[0], Length: length})
	}
	if err = tscanner.Err(); err != nil {
		return nil, err
	}
	return sizes, nil
}

// OpenSizes reads a chromosome size file.
func OpenSizes(path string) ([]ChromSize, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSizes(f)
}
