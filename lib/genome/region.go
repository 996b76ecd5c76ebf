//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// Integer-specific intervals

type IntInterval struct {
	Start, End int
	UID        uintptr
	Name       string
}

func (i IntInterval) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return i.End > b.Start && i.Start < b.End
}

func (i IntInterval) ID() uintptr {
	return i.UID
}

func (i IntInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.Start, End: i.End}
}

func (i IntInterval) String() string {
	return fmt.Sprintf("[%d,%d)#%d-%s", i.Start, i.End, i.UID, i.Name)
}

// Region is a half-open genomic interval.
type Region struct {
	Chrom      string
	Start, End int
	Name       string
}

// Blacklist holds one interval tree per chromosome. It is read-only after
// NewBlacklist and safe for concurrent queries.
type Blacklist struct {
	trees map[string]*interval.IntTree
	n     int
}

// NewBlacklist builds the region trees.
func NewBlacklist(regions []Region) (*Blacklist, error) {
	b := &Blacklist{trees: make(map[string]*interval.IntTree)}
	for i, r := range regions {
		if r.End <= r.Start {
			return nil, errs.Malformed("region %s:%d-%d is empty", r.Chrom, r.Start, r.End)
		}
		tree, ok := b.trees[r.Chrom]
		if !ok {
			tree = &interval.IntTree{}
			b.trees[r.Chrom] = tree
		}
		iv := IntInterval{Start: r.Start, End: r.End, UID: uintptr(i), Name: r.Name}
		if err := tree.Insert(iv, true); err != nil {
			return nil, err
		}
		b.n++
	}
	for _, tree := range b.trees {
		tree.AdjustRanges()
	}
	return b, nil
}

// Len returns the number of regions.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Contains reports whether pos on chrom falls in a region. A nil Blacklist
// contains nothing.
func (b *Blacklist) Contains(chrom string, pos int) bool {
	if b == nil {
		return false
	}
	tree, ok := b.trees[chrom]
	if !ok {
		return false
	}
	return len(tree.Get(IntInterval{Start: pos, End: pos + 1})) > 0
}

// ParseBED parses the first three columns of a BED stream.
func ParseBED(r io.Reader) (regions []Region, err error) {
	tscanner := bufio.NewScanner(r)
	var iline int
	for tscanner.Scan() {
		iline++
		line := tscanner.Text()
		if len(strings.TrimSpace(line)) == 0 || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errs.Malformed("BED line %d: expected at least 3 columns", iline)
		}
		reg := Region{Chrom: fields[0]}
		if reg.Start, err = strconv.Atoi(fields[1]); err != nil {
			return nil, errs.Malformed("BED line %d: %v", iline, err)
		}
		if reg.End, err = strconv.Atoi(fields[2]); err != nil {
			return nil, errs.Malformed("BED line %d: %v", iline, err)
		}
		if len(fields) > 3 {
			reg.Name = fields[3]
		}
		regions = append(regions, reg)
	}
	if err = tscanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// OpenBlacklist reads a BED file and builds a Blacklist.
func OpenBlacklist(path string) (*Blacklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	regions, err := ParseBED(f)
	if err != nil {
		return nil, err
	}
	return NewBlacklist(regions)
}
