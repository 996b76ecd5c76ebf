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

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

// InsulationResult holds the per-bin insulation scores and their summary.
type InsulationResult struct {
	Scores []float64
	Summary
}

// InsulationScores computes the diamond insulation score of every bin.
// For chromosome-local bin k, the diamond sums M[a,b] for a in [k-scale, k)
// and b in (k, k+scale]; the score is the diamond divided by the mean
// diamond of the chromosome. Bins closer than scale to a chromosome end are
// NaN. A chromosome without any contact in its diamonds scores 1.
func InsulationScores(m *hicmatrix.Matrix, scale int) ([]float64, error) {
	if scale < 1 {
		return nil, errs.Configuration("insulation scale must be >= 1, got %d", scale)
	}
	layout := m.Layout()
	scores := make([]float64, m.N())
	for i := range scores {
		scores[i] = math.NaN()
	}
	for c := 0; c < layout.NChrom(); c++ {
		chrom := layout.Chrom(c)
		n := chrom.NBins
		if n-scale <= scale {
			continue
		}
		var sum float64
		for k := scale; k < n-scale; k++ {
			var d float64
			for a := k - scale; a < k; a++ {
				for b := k + 1; b <= k+scale; b++ {
					d += m.At(chrom.Offset+a, chrom.Offset+b)
				}
			}
			scores[chrom.Offset+k] = d
			sum += d
		}
		mean := sum / float64(n-2*scale)
		for k := scale; k < n-scale; k++ {
			if mean > 0 {
				scores[chrom.Offset+k] /= mean
			} else {
				scores[chrom.Offset+k] = 1
			}
		}
	}
	return scores, nil
}

// Insulation computes insulation scores and their summary statistics.
func Insulation(m *hicmatrix.Matrix, scale int) (*InsulationResult, error) {
	scores, err := InsulationScores(m, scale)
	if err != nil {
		return nil, err
	}
	s := summarize(scores)
	if s.N == 0 {
		return nil, errs.InsufficientData("no chromosome longer than 2 x scale (%d bins)", scale)
	}
	return &InsulationResult{Scores: scores, Summary: s}, nil
}
