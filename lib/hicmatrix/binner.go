//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package hicmatrix

import (
	"sort"
	"strings"

	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
)

// BinOptions selects and resolves contacts before binning.
type BinOptions struct {
	SelectedChromosomes []string
	TransInteractions   bool
	MapQFilter          bool
	MinMapQ             int
	Normalizer          genome.NameNormalizer
	Blacklist           *genome.Blacklist
	// Strict turns unresolved chromosome names into errors.
	Strict bool
}

// BinStats counts contacts kept and dropped by the binner.
type BinStats struct {
	Total        int            `json:"total"`
	Kept         int            `json:"kept"`
	Trans        int            `json:"dropped_trans"`
	LowMapQ      int            `json:"dropped_mapping_quality"`
	Blacklisted  int            `json:"dropped_blacklist"`
	Unselected   int            `json:"dropped_unselected"`
	OutOfRange   int            `json:"dropped_out_of_range"`
	Unknown      int            `json:"dropped_unknown_chromosome"`
	UnknownNames map[string]int `json:"unknown_chromosomes,omitempty"`
}

// Dropped returns the number of contacts not added to the matrix.
func (s BinStats) Dropped() int {
	return s.Total - s.Kept
}

// Merge adds the counters of o to s.
func (s BinStats) Merge(o BinStats) BinStats {
	s.Total += o.Total
	s.Kept += o.Kept
	s.Trans += o.Trans
	s.LowMapQ += o.LowMapQ
	s.Blacklisted += o.Blacklisted
	s.Unselected += o.Unselected
	s.OutOfRange += o.OutOfRange
	s.Unknown += o.Unknown
	if len(o.UnknownNames) > 0 {
		names := make(map[string]int, len(s.UnknownNames)+len(o.UnknownNames))
		for k, v := range s.UnknownNames {
			names[k] = v
		}
		for k, v := range o.UnknownNames {
			names[k] += v
		}
		s.UnknownNames = names
	}
	return s
}

// Filtered is the outcome of contact selection: the contacts passing all
// filters except the trans filter (with normalized chromosome names), and
// the bin pairs to accumulate.
type Filtered struct {
	Layout   *genome.Layout
	Contacts []contact.Record
	Changes  *ContactChange
	Stats    BinStats
}

// Filter resolves contacts on layout. The returned layout is restricted to
// the selected chromosomes.
func Filter(records []contact.Record, layout *genome.Layout, opts BinOptions) (*Filtered, error) {
	selected, err := layout.Select(opts.SelectedChromosomes)
	if err != nil {
		return nil, err
	}
	f := &Filtered{Layout: selected, Changes: NewContactChange(len(records)), Stats: BinStats{Total: len(records)}}
	unknown := set.New(set.NonThreadSafe)
	for _, r := range records {
		r.Chrom1 = opts.Normalizer.Normalize(r.Chrom1)
		r.Chrom2 = opts.Normalizer.Normalize(r.Chrom2)
		_, ok1 := layout.Index(r.Chrom1)
		_, ok2 := layout.Index(r.Chrom2)
		if !ok1 || !ok2 {
			if f.Stats.UnknownNames == nil {
				f.Stats.UnknownNames = make(map[string]int)
			}
			for _, name := range []string{r.Chrom1, r.Chrom2} {
				if _, ok := layout.Index(name); !ok {
					f.Stats.UnknownNames[name]++
					unknown.Add(name)
				}
			}
			f.Stats.Unknown++
			continue
		}
		_, ok1 = selected.Index(r.Chrom1)
		_, ok2 = selected.Index(r.Chrom2)
		if !ok1 || !ok2 {
			f.Stats.Unselected++
			continue
		}
		b1, ok1 := selected.Bin(r.Chrom1, r.Pos1)
		b2, ok2 := selected.Bin(r.Chrom2, r.Pos2)
		if !ok1 || !ok2 {
			f.Stats.OutOfRange++
			continue
		}
		if opts.MapQFilter && r.HasMapQ && r.MapQ < opts.MinMapQ {
			f.Stats.LowMapQ++
			continue
		}
		if opts.Blacklist.Contains(r.Chrom1, r.Pos1) || opts.Blacklist.Contains(r.Chrom2, r.Pos2) {
			f.Stats.Blacklisted++
			continue
		}
		f.Contacts = append(f.Contacts, r)
		if !opts.TransInteractions && !r.IsCis() {
			f.Stats.Trans++
			continue
		}
		f.Changes.Write(b1, b2, 1.)
		f.Stats.Kept++
	}
	if opts.Strict && unknown.Size() > 0 {
		names := make([]string, 0, unknown.Size())
		for _, n := range unknown.List() {
			names = append(names, n.(string))
		}
		sort.Strings(names)
		return nil, errs.Malformed("chromosome(s) not in layout: %s", strings.Join(names, ", "))
	}
	if f.Stats.Kept == 0 {
		return nil, errs.Malformed("no contact left after binning (total %d, unknown chromosome %d, unselected %d, out of range %d, mapping quality %d, blacklist %d, trans %d)",
			f.Stats.Total, f.Stats.Unknown, f.Stats.Unselected, f.Stats.OutOfRange, f.Stats.LowMapQ, f.Stats.Blacklisted, f.Stats.Trans)
	}
	return f, nil
}

// Build folds the buffered changes into a symmetric matrix. A contact within
// a single bin adds to the diagonal once.
func (f *Filtered) Build() *Matrix {
	m := newMatrix(f.Layout)
	c := f.Changes
	for k := 0; k <= c.LastIdx; k++ {
		i, j, w := c.Bins1[k], c.Bins2[k], c.Weights[k]
		m.data[i*m.n+j] += w
		if i != j {
			m.data[j*m.n+i] += w
		}
	}
	return m
}

// Bin converts a contact list into a binned contact matrix.
func Bin(records []contact.Record, layout *genome.Layout, opts BinOptions) (*Matrix, BinStats, error) {
	f, err := Filter(records, layout, opts)
	if err != nil {
		return nil, BinStats{}, err
	}
	return f.Build(), f.Stats, nil
}
