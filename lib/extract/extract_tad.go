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

const DefaultTADMinSize = 2

// TADParams configures CallTADs.
type TADParams struct {
	BoundaryThreshold float64
	MinSize           int
}

// TAD is a domain [Start,End) in global bin coordinates.
type TAD struct {
	Chrom   string
	Start   int
	End     int
	Size    int
	Density float64
}

// TADResult holds the called domains and their statistics. Without any
// domain all statistics are zero.
type TADResult struct {
	TADs        []TAD
	NTADsMean   float64
	MeanSize    float64
	DensityMean float64
	NChrom      int
}

// Boundaries returns the bins whose finite insulation score is at or below
// threshold and not above any finite neighbor of the same chromosome.
func Boundaries(scores []float64, start, end int, threshold float64) []int {
	var bounds []int
	for k := start; k < end; k++ {
		s := scores[k]
		if math.IsNaN(s) || s > threshold {
			continue
		}
		if k > start && !math.IsNaN(scores[k-1]) && scores[k-1] < s {
			continue
		}
		if k < end-1 && !math.IsNaN(scores[k+1]) && scores[k+1] < s {
			continue
		}
		bounds = append(bounds, k)
	}
	return bounds
}

// CallTADs segments each chromosome between consecutive insulation
// boundaries. Segments shorter than MinSize are discarded. Density is the
// contact weight within the segment (upper triangle, diagonal included)
// divided by size^2.
func CallTADs(m *hicmatrix.Matrix, scores []float64, p TADParams) (*TADResult, error) {
	if p.MinSize < 1 {
		return nil, errs.Configuration("TAD minimum size must be >= 1, got %d", p.MinSize)
	}
	if len(scores) != m.N() {
		return nil, errs.Malformed("insulation vector has %d bins, matrix has %d", len(scores), m.N())
	}
	layout := m.Layout()
	res := &TADResult{}
	for c := 0; c < layout.NChrom(); c++ {
		chrom := layout.Chrom(c)
		defined := false
		for k := chrom.Offset; k < chrom.End(); k++ {
			if !math.IsNaN(scores[k]) {
				defined = true
				break
			}
		}
		if !defined {
			continue
		}
		res.NChrom++
		bounds := Boundaries(scores, chrom.Offset, chrom.End(), p.BoundaryThreshold)
		for i := 0; i+1 < len(bounds); i++ {
			start, end := bounds[i], bounds[i+1]
			size := end - start
			if size < p.MinSize {
				continue
			}
			var w float64
			for a := start; a < end; a++ {
				for b := a; b < end; b++ {
					w += m.At(a, b)
				}
			}
			res.TADs = append(res.TADs, TAD{Chrom: chrom.Name, Start: start, End: end, Size: size, Density: w / float64(size*size)})
		}
	}
	if res.NChrom == 0 {
		return nil, errs.InsufficientData("no chromosome with a defined insulation score")
	}
	if len(res.TADs) > 0 {
		var size, density float64
		for _, t := range res.TADs {
			size += float64(t.Size)
			density += t.Density
		}
		res.NTADsMean = float64(len(res.TADs)) / float64(res.NChrom)
		res.MeanSize = size / float64(len(res.TADs))
		res.DensityMean = density / float64(len(res.TADs))
	}
	return res, nil
}
