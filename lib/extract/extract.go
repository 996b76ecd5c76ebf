//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package extract computes chromatin structure features from binned contact
// matrices and contact lists: compartments, insulation, TADs, distance
// ratios (MCM), contact scaling P(s) and primary contact metrics.
//
// All extractors are pure functions of immutable inputs and may run
// concurrently on the same matrix.
package extract

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds distribution statistics of a vector.
type Summary struct {
	Mean   float64
	Median float64
	Std    float64
	P10    float64
	P90    float64
	N      int
}

// finite returns the sorted finite values of x.
func finite(x []float64) []float64 {
	f := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			f = append(f, v)
		}
	}
	sort.Float64s(f)
	return f
}

// quantile interpolates linearly between the closest ranks of sorted,
// placing q at rank q x (n-1).
func quantile(sorted []float64, q float64) float64 {
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// summarize computes statistics over the finite values of x. Std is the
// population standard deviation.
func summarize(x []float64) Summary {
	f := finite(x)
	s := Summary{N: len(f)}
	if len(f) == 0 {
		return s
	}
	s.Mean, s.Std = stat.PopMeanStdDev(f, nil)
	s.Median = quantile(f, 0.5)
	s.P10 = quantile(f, 0.1)
	s.P90 = quantile(f, 0.9)
	return s
}
