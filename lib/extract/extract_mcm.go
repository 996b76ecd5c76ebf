//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package extract

import (
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

const megabase = 1_000_000.

// MCMParams holds the band limits in megabases.
type MCMParams struct {
	NearThreshold float64
	MidThreshold  float64
}

// Validate checks threshold order.
func (p MCMParams) Validate() error {
	if p.NearThreshold < 0 {
		return errs.Configuration("near threshold must be >= 0, got %v", p.NearThreshold)
	}
	if p.NearThreshold > p.MidThreshold {
		return errs.Configuration("near threshold %v > mid threshold %v", p.NearThreshold, p.MidThreshold)
	}
	return nil
}

// MCMResult holds the share of cis off-diagonal contact weight per band.
type MCMResult struct {
	Near float64
	Mid  float64
	Far  float64
}

// DistanceRatios splits cis off-diagonal contacts into near
// (distance < near), mid ([near, mid)) and far (>= mid) bands, with
// distance = |i-j| x bin size.
func DistanceRatios(m *hicmatrix.Matrix, p MCMParams) (*MCMResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	layout := m.Layout()
	binSize := float64(layout.BinSize())
	near, mid := p.NearThreshold*megabase, p.MidThreshold*megabase
	var wNear, wMid, wFar float64
	for c := 0; c < layout.NChrom(); c++ {
		chrom := layout.Chrom(c)
		for i := chrom.Offset; i < chrom.End(); i++ {
			for j := i + 1; j < chrom.End(); j++ {
				w := m.At(i, j)
				if w == 0 {
					continue
				}
				d := float64(j-i) * binSize
				switch {
				case d < near:
					wNear += w
				case d < mid:
					wMid += w
				default:
					wFar += w
				}
			}
		}
	}
	total := wNear + wMid + wFar
	if total == 0 {
		return nil, errs.InsufficientData("no off-diagonal cis contact")
	}
	return &MCMResult{Near: wNear / total, Mid: wMid / total, Far: wFar / total}, nil
}
