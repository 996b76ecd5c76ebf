//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package extract

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

// PofSParams sets the fitted distance range in bins. MaxDistance <= 0 means
// up to the longest chromosome.
type PofSParams struct {
	MinDistance int
	MaxDistance int
}

// Validate checks the distance range.
func (p PofSParams) Validate() error {
	if p.MinDistance < 0 {
		return errs.Configuration("minimum distance must be >= 0, got %d", p.MinDistance)
	}
	if p.MaxDistance > 0 && p.MaxDistance < p.MinDistance {
		return errs.Configuration("maximum distance %d < minimum distance %d", p.MaxDistance, p.MinDistance)
	}
	return nil
}

// ScalingFit is the log-log fit of the contact probability P(s) against the
// distance s in bins.
type ScalingFit struct {
	Slope     float64
	Intercept float64
	RValue    float64
	PValue    float64
	StdErr    float64
	// Diagnostics
	Distances []int
	PofS      []float64
}

// ContactScaling computes P(s) as the mean of all cis pairs (i, i+s) pooled
// over chromosomes, and fits log10 P(s) = Intercept + Slope x log10 s.
// Distances without pairs or with P(s) = 0 are left out.
func ContactScaling(m *hicmatrix.Matrix, p PofSParams) (*ScalingFit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	layout := m.Layout()
	longest := 0
	for _, c := range layout.Chroms() {
		longest = max(longest, c.NBins)
	}
	dMin := max(p.MinDistance, 1)
	dMax := longest - 1
	if p.MaxDistance > 0 {
		dMax = min(dMax, p.MaxDistance)
	}

	fit := &ScalingFit{}
	var x, y []float64
	for d := dMin; d <= dMax; d++ {
		var sum float64
		var n int
		for _, c := range layout.Chroms() {
			for i := c.Offset; i+d < c.End(); i++ {
				sum += m.At(i, i+d)
				n++
			}
		}
		if n == 0 || sum == 0 {
			continue
		}
		ps := sum / float64(n)
		fit.Distances = append(fit.Distances, d)
		fit.PofS = append(fit.PofS, ps)
		x = append(x, math.Log10(float64(d)))
		y = append(y, math.Log10(ps))
	}
	if len(x) < 2 {
		return nil, errs.InsufficientPoints("%d distance(s) with contacts in [%d,%d], need 2", len(x), dMin, dMax)
	}

	fit.Intercept, fit.Slope = stat.LinearRegression(x, y, nil, false)

	_, vx := stat.MeanVariance(x, nil)
	_, vy := stat.MeanVariance(y, nil)
	if vy > 0 {
		fit.RValue = stat.Correlation(x, y, nil)
	}
	df := float64(len(x) - 2)
	r := fit.RValue
	if df == 0 || math.Abs(r) >= 1 {
		return fit, nil
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	student := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	fit.PValue = 2 * student.Survival(math.Abs(t))
	fit.StdErr = math.Sqrt((1 - r*r) * vy / vx / df)
	return fit, nil
}
