//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package extract

import (
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

// Label is a compartment call.
type Label int8

const (
	LabelNone Label = 0
	LabelA    Label = 1
	LabelB    Label = -1
)

func (l Label) String() string {
	switch l {
	case LabelA:
		return "A"
	case LabelB:
		return "B"
	}
	return "."
}

// CompartmentParams configures CallCompartments.
type CompartmentParams struct {
	// SkipDegenerate leaves chromosomes with fewer than 2 informative bins
	// unlabelled instead of failing the call.
	SkipDegenerate bool
}

// CompartmentResult holds per-bin labels and the AA/BB/AB contact fractions.
type CompartmentResult struct {
	Labels  []Label
	AA      float64
	BB      float64
	AB      float64
	Called  []string
	Skipped []string
}

// Fractions returns the fraction table in the order AA, BB, AB.
func (c *CompartmentResult) Fractions() [3]float64 {
	return [3]float64{c.AA, c.BB, c.AB}
}

// CallCompartments labels bins from the leading eigenvector of the
// per-chromosome Pearson correlation of the observed/expected signal
// matrix, and tabulates the raw cis contacts by label pair.
//
// Eigenvector signs are arbitrary. The side with the larger mean raw cis
// coverage is labelled A; on an exact tie, the side holding the first
// informative bin with a non-zero component is A. A chromosome with fewer
// than 2 informative (non-constant) bins fails the call, unless
// p.SkipDegenerate is set, in which case it is listed in Skipped.
func CallCompartments(raw, signal *hicmatrix.Matrix, p CompartmentParams) (*CompartmentResult, error) {
	layout := raw.Layout()
	res := &CompartmentResult{Labels: make([]Label, raw.N())}
	for c := 0; c < layout.NChrom(); c++ {
		chrom := layout.Chrom(c)
		labels, ok, err := chromCompartments(raw.CisBlock(c), signal.CisBlock(c))
		if err != nil {
			return nil, err
		}
		if !ok {
			res.Skipped = append(res.Skipped, chrom.Name)
			continue
		}
		copy(res.Labels[chrom.Offset:chrom.End()], labels)
		res.Called = append(res.Called, chrom.Name)
	}
	if len(res.Skipped) > 0 && !p.SkipDegenerate {
		return nil, errs.InsufficientData("chromosome(s) %s with fewer than 2 informative bins for compartment calling", strings.Join(res.Skipped, ", "))
	}
	if len(res.Called) == 0 {
		return nil, errs.InsufficientData("no chromosome with at least 2 informative bins for compartment calling")
	}

	var aa, bb, ab float64
	for c := 0; c < layout.NChrom(); c++ {
		chrom := layout.Chrom(c)
		for i := chrom.Offset; i < chrom.End(); i++ {
			li := res.Labels[i]
			if li == LabelNone {
				continue
			}
			for j := i; j < chrom.End(); j++ {
				lj := res.Labels[j]
				if lj == LabelNone {
					continue
				}
				w := raw.At(i, j)
				switch {
				case li == LabelA && lj == LabelA:
					aa += w
				case li == LabelB && lj == LabelB:
					bb += w
				default:
					ab += w
				}
			}
		}
	}
	total := aa + bb + ab
	if total == 0 {
		return nil, errs.InsufficientData("no cis contact between labelled bins")
	}
	res.AA, res.BB, res.AB = aa/total, bb/total, ab/total
	return res, nil
}

// observedExpected divides each diagonal of b by its mean.
func observedExpected(b *mat.SymDense) *mat.SymDense {
	n := b.SymmetricDim()
	oe := mat.NewSymDense(n, nil)
	for d := 0; d < n; d++ {
		var sum float64
		for i := 0; i+d < n; i++ {
			sum += b.At(i, i+d)
		}
		if sum == 0 {
			continue
		}
		mean := sum / float64(n-d)
		for i := 0; i+d < n; i++ {
			oe.SetSym(i, i+d, b.At(i, i+d)/mean)
		}
	}
	return oe
}

func chromCompartments(raw, signal *mat.SymDense) ([]Label, bool, error) {
	n := signal.SymmetricDim()
	if n < 2 {
		return nil, false, nil
	}
	oe := observedExpected(signal)

	// Informative bins have a non-constant O/E row
	var informative []int
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, oe)
		if stat.Variance(row, nil) > 0 {
			informative = append(informative, i)
		}
	}
	k := len(informative)
	if k < 2 {
		return nil, false, nil
	}

	// Columns of x are the informative O/E rows
	x := mat.NewDense(n, k, nil)
	for ci, i := range informative {
		for j := 0; j < n; j++ {
			x.Set(j, ci, oe.At(i, j))
		}
	}
	corr := mat.NewSymDense(k, nil)
	stat.CorrelationMatrix(corr, x, nil)

	var es mat.EigenSym
	if ok := es.Factorize(corr, true); !ok {
		return nil, false, errs.InsufficientData("eigendecomposition of correlation matrix failed")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)
	lead := 0
	for i, v := range values {
		if v > values[lead] {
			lead = i
		}
	}
	pc := make([]float64, k)
	mat.Col(pc, lead, &vectors)

	// Orientation
	var sumPos, sumNeg float64
	var nPos, nNeg int
	for ci, i := range informative {
		var coverage float64
		for j := 0; j < n; j++ {
			coverage += raw.At(i, j)
		}
		if pc[ci] > 0 {
			sumPos += coverage
			nPos++
		} else if pc[ci] < 0 {
			sumNeg += coverage
			nNeg++
		}
	}
	sign := 1.
	switch {
	case nPos == 0 && nNeg == 0:
		return nil, false, nil
	case nPos == 0:
		sign = -1
	case nNeg == 0:
	case sumPos/float64(nPos) < sumNeg/float64(nNeg):
		sign = -1
	case sumPos/float64(nPos) == sumNeg/float64(nNeg):
		for _, v := range pc {
			if v != 0 {
				if v < 0 {
					sign = -1
				}
				break
			}
		}
	}

	labels := make([]Label, n)
	for ci, i := range informative {
		v := sign * pc[ci]
		if v > 0 {
			labels[i] = LabelA
		} else if v < 0 {
			labels[i] = LabelB
		}
	}
	return labels, true, nil
}
