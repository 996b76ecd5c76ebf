//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package contact reads single-cell contact lists.
package contact

import (
	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// Record is one observed spatial contact between two loci.
type Record struct {
	CellID  string
	Chrom1  string
	Pos1    int
	Chrom2  string
	Pos2    int
	MapQ    int
	HasMapQ bool
}

// IsCis reports whether both ends are on the same chromosome.
func (r Record) IsCis() bool {
	return r.Chrom1 == r.Chrom2
}

// Span returns the genomic distance between both ends of a cis contact.
func (r Record) Span() int {
	if r.Pos2 > r.Pos1 {
		return r.Pos2 - r.Pos1
	}
	return r.Pos1 - r.Pos2
}

// Cell is the contact list of one cell.
type Cell struct {
	ID       string
	Contacts []Record
}

// Validate checks the structure of a contact list.
func Validate(records []Record) error {
	if len(records) == 0 {
		return errs.Malformed("empty contact list")
	}
	for i, r := range records {
		if r.Chrom1 == "" || r.Chrom2 == "" {
			return errs.Malformed("contact %d: missing chromosome", i)
		}
		if r.Pos1 < 0 || r.Pos2 < 0 {
			return errs.Malformed("contact %d: negative position", i)
		}
	}
	return nil
}

// GroupByCell splits records by cell id, in order of first appearance.
// If keep is not nil, only cells it contains are returned.
func GroupByCell(records []Record, keep set.Interface) []Cell {
	var cells []Cell
	index := make(map[string]int)
	for _, r := range records {
		if keep != nil && !keep.Has(r.CellID) {
			continue
		}
		i, ok := index[r.CellID]
		if !ok {
			i = len(cells)
			index[r.CellID] = i
			cells = append(cells, Cell{ID: r.CellID})
		}
		cells[i].Contacts = append(cells[i].Contacts, r)
	}
	return cells
}

// CellSet builds a set of cell ids.
func CellSet(ids []string) set.Interface {
	s := set.New(set.ThreadSafe)
	for _, id := range ids {
		s.Add(id)
	}
	return s
}
