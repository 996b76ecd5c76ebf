//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package hicmatrix builds genome-wide binned contact matrices.
package hicmatrix

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
)

// Matrix is a dense, square, symmetric and non-negative contact matrix
// indexed by the bins of a layout. A Matrix is never modified after
// construction; transformations return a new Matrix.
type Matrix struct {
	layout *genome.Layout
	n      int
	data   []float64
}

func newMatrix(layout *genome.Layout) *Matrix {
	n := layout.NBins()
	return &Matrix{layout: layout, n: n, data: make([]float64, n*n)}
}

// FromDense builds a Matrix from rows. Rows must be square, symmetric,
// finite and non-negative, and match the layout size.
func FromDense(layout *genome.Layout, rows [][]float64) (*Matrix, error) {
	m := newMatrix(layout)
	if len(rows) != m.n {
		return nil, errs.Malformed("matrix has %d rows, layout has %d bins", len(rows), m.n)
	}
	for i, row := range rows {
		if len(row) != m.n {
			return nil, errs.Malformed("matrix row %d has %d columns, expected %d", i, len(row), m.n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, errs.Malformed("matrix entry (%d,%d) is %v", i, j, v)
			}
			if v != rows[j][i] {
				return nil, errs.Malformed("matrix is not symmetric at (%d,%d)", i, j)
			}
			m.data[i*m.n+j] = v
		}
	}
	return m, nil
}

// Layout returns the layout indexing the matrix.
func (m *Matrix) Layout() *genome.Layout { return m.layout }

// N returns the number of bins.
func (m *Matrix) N() int { return m.n }

// At returns the entry (i,j).
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.n+j] }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	r := make([]float64, m.n)
	copy(r, m.data[i*m.n:(i+1)*m.n])
	return r
}

// Dense returns a copy of the matrix as rows.
func (m *Matrix) Dense() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return rows
}

// Total returns the sum of the upper triangle, diagonal included, i.e. the
// number of contacts of a binned matrix.
func (m *Matrix) Total() (total float64) {
	for i := 0; i < m.n; i++ {
		for j := i; j < m.n; j++ {
			total += m.data[i*m.n+j]
		}
	}
	return
}

// CisBlock returns a copy of the intra-chromosomal block of chromosome c.
func (m *Matrix) CisBlock(c int) *mat.SymDense {
	chrom := m.layout.Chrom(c)
	b := mat.NewSymDense(chrom.NBins, nil)
	for i := 0; i < chrom.NBins; i++ {
		for j := i; j < chrom.NBins; j++ {
			b.SetSym(i, j, m.data[(chrom.Offset+i)*m.n+chrom.Offset+j])
		}
	}
	return b
}

// MapCis returns a new matrix in which each cis block is replaced by the
// output of f. Trans blocks are copied unchanged. f must return a block of
// the same size.
func (m *Matrix) MapCis(f func(c int, block *mat.SymDense) (*mat.SymDense, error)) (*Matrix, error) {
	out := &Matrix{layout: m.layout, n: m.n, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	for c := 0; c < m.layout.NChrom(); c++ {
		chrom := m.layout.Chrom(c)
		nb, err := f(c, m.CisBlock(c))
		if err != nil {
			return nil, err
		}
		if nb.SymmetricDim() != chrom.NBins {
			return nil, errs.Malformed("chromosome %s: block size %d, expected %d", chrom.Name, nb.SymmetricDim(), chrom.NBins)
		}
		for i := 0; i < chrom.NBins; i++ {
			for j := i; j < chrom.NBins; j++ {
				v := nb.At(i, j)
				out.data[(chrom.Offset+i)*m.n+chrom.Offset+j] = v
				out.data[(chrom.Offset+j)*m.n+chrom.Offset+i] = v
			}
		}
	}
	return out, nil
}

// IsSymmetric reports whether M[i,j] == M[j,i] for all i, j.
func (m *Matrix) IsSymmetric() bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.data[i*m.n+j] != m.data[j*m.n+i] {
				return false
			}
		}
	}
	return true
}
