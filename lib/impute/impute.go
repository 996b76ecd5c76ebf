//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package impute densifies sparse single-cell contact matrices.
//
// Each intra-chromosomal block is smoothed with a box filter, propagated by
// a random walk with restart, and sparsified by a percentile threshold.
// Trans blocks are left unchanged.
package impute

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

const (
	DefaultRestartProb = 0.5
	DefaultMaxIter     = 30
	DefaultTol         = 1e-6
)

// Params configures Impute.
type Params struct {
	// Window is the half width of the box filter (w).
	Window int
	// RestartProb is the random walk restart probability.
	RestartProb float64
	// Percentile is the quantile (p) below which imputed entries are zeroed.
	Percentile float64
	MaxIter    int
	Tol        float64
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.Window < 0 {
		return errs.Configuration("imputation window must be >= 0, got %d", p.Window)
	}
	if p.RestartProb <= 0 || p.RestartProb > 1 {
		return errs.Configuration("restart probability must be in (0,1], got %v", p.RestartProb)
	}
	if p.Percentile < 0 || p.Percentile >= 1 {
		return errs.Configuration("percentile must be in [0,1), got %v", p.Percentile)
	}
	if p.MaxIter <= 0 {
		return errs.Configuration("max iterations must be positive, got %d", p.MaxIter)
	}
	return nil
}

// Impute returns a new matrix with imputed cis blocks.
func Impute(m *hicmatrix.Matrix, p Params) (*hicmatrix.Matrix, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return m.MapCis(func(_ int, block *mat.SymDense) (*mat.SymDense, error) {
		return Block(block, p), nil
	})
}

// Block imputes one symmetric block. Entries whose whole smoothing
// neighborhood is zero stay zero.
func Block(b *mat.SymDense, p Params) *mat.SymDense {
	n := b.SymmetricDim()
	smooth, empty := boxFilter(b, p.Window)

	q := randomWalk(smooth, p)

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if empty[i*n+j] {
				continue
			}
			out.SetSym(i, j, (q.At(i, j)+q.At(j, i))/2)
		}
	}

	if p.Percentile > 0 {
		values := make([]float64, 0, n*(n+1)/2)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				values = append(values, out.At(i, j))
			}
		}
		sort.Float64s(values)
		threshold := stat.Quantile(p.Percentile, stat.Empirical, values, nil)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if out.At(i, j) < threshold {
					out.SetSym(i, j, 0)
				}
			}
		}
	}
	return out
}

// boxFilter returns the (2w+1)^2 neighborhood mean of each entry, with
// zero padding, and the mask of entries whose neighborhood sums to zero.
func boxFilter(b *mat.SymDense, w int) (*mat.Dense, []bool) {
	n := b.SymmetricDim()
	// Summed-area tables of values and of non-zero entries
	sat := make([]float64, (n+1)*(n+1))
	nz := make([]int, (n+1)*(n+1))
	for i := 0; i < n; i++ {
		var rowSum float64
		var rowNZ int
		for j := 0; j < n; j++ {
			v := b.At(i, j)
			rowSum += v
			if v > 0 {
				rowNZ++
			}
			sat[(i+1)*(n+1)+j+1] = sat[i*(n+1)+j+1] + rowSum
			nz[(i+1)*(n+1)+j+1] = nz[i*(n+1)+j+1] + rowNZ
		}
	}
	area := float64((2*w + 1) * (2*w + 1))
	out := mat.NewDense(n, n, nil)
	empty := make([]bool, n*n)
	for i := 0; i < n; i++ {
		r0, r1 := max(i-w, 0), min(i+w+1, n)
		for j := 0; j < n; j++ {
			c0, c1 := max(j-w, 0), min(j+w+1, n)
			if nz[r1*(n+1)+c1]-nz[r0*(n+1)+c1]-nz[r1*(n+1)+c0]+nz[r0*(n+1)+c0] == 0 {
				empty[i*n+j] = true
				continue
			}
			s := sat[r1*(n+1)+c1] - sat[r0*(n+1)+c1] - sat[r1*(n+1)+c0] + sat[r0*(n+1)+c0]
			out.Set(i, j, math.Max(s, 0)/area)
		}
	}
	return out, empty
}

// randomWalk iterates Q <- (1-r) Q P + r I on the row-normalized matrix P.
func randomWalk(a *mat.Dense, p Params) *mat.Dense {
	n, _ := a.Dims()
	pm := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += a.At(i, j)
		}
		if rowSum == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			pm.Set(i, j, a.At(i, j)/rowSum)
		}
	}

	restart := mat.NewDiagDense(n, nil)
	for i := 0; i < n; i++ {
		restart.SetDiag(i, p.RestartProb)
	}
	q := mat.NewDense(n, n, nil)
	q.Copy(restart)
	next := mat.NewDense(n, n, nil)
	for iter := 0; iter < p.MaxIter; iter++ {
		next.Mul(q, pm)
		next.Scale(1-p.RestartProb, next)
		next.Add(next, restart)
		var delta float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				delta = math.Max(delta, math.Abs(next.At(i, j)-q.At(i, j)))
			}
		}
		q, next = next, q
		if delta < p.Tol {
			break
		}
	}
	return q
}
