//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package output

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/extract"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
)

// binCoords returns the chromosome and genomic interval of a global bin.
func binCoords(layout *genome.Layout, bin int) (string, int, int) {
	c := layout.Chrom(layout.ChromOfBin(bin))
	start := (bin - c.Offset) * layout.BinSize()
	end := min(start+layout.BinSize(), c.Length)
	return c.Name, start, end
}

// WriteInsulation writes per-bin insulation scores as a bedGraph. Undefined
// scores are skipped.
func WriteInsulation(w io.Writer, layout *genome.Layout, scores []float64, trackName string) error {
	if len(scores) != layout.NBins() {
		return errs.Malformed("insulation vector has %d bins, layout has %d", len(scores), layout.NBins())
	}
	bw := bufio.NewWriter(w)
	if trackName != "" {
		fmt.Fprintf(bw, "track type=bedGraph name=\"%s\"\n", trackName)
	}
	for bin, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		name, start, end := binCoords(layout, bin)
		fmt.Fprintf(bw, "%s\t%d\t%d\t%f\n", name, start, end, s)
	}
	return bw.Flush()
}

// WriteTADs writes domains as BED with their density as score column.
func WriteTADs(w io.Writer, layout *genome.Layout, tads []extract.TAD) error {
	bw := bufio.NewWriter(w)
	for i, t := range tads {
		_, start, _ := binCoords(layout, t.Start)
		_, _, end := binCoords(layout, t.End-1)
		fmt.Fprintf(bw, "%s\t%d\t%d\ttad_%d\t%f\n", t.Chrom, start, end, i+1, t.Density)
	}
	return bw.Flush()
}

// WriteCompartments writes labelled bins as BED, merging runs of equal
// labels.
func WriteCompartments(w io.Writer, layout *genome.Layout, labels []extract.Label) error {
	if len(labels) != layout.NBins() {
		return errs.Malformed("compartment vector has %d bins, layout has %d", len(labels), layout.NBins())
	}
	bw := bufio.NewWriter(w)
	for _, c := range layout.Chroms() {
		runStart := c.Offset
		for bin := c.Offset; bin <= c.End(); bin++ {
			if bin < c.End() && labels[bin] == labels[runStart] {
				continue
			}
			if l := labels[runStart]; l != extract.LabelNone {
				_, start, _ := binCoords(layout, runStart)
				_, _, end := binCoords(layout, bin-1)
				fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", c.Name, start, end, l)
			}
			runStart = bin
		}
	}
	return bw.Flush()
}

// WritePofS writes the P(s) curve of a cell: cell id, distance in bins,
// distance in bp and P(s).
func WritePofS(w io.Writer, cellID string, binSize int, fit *extract.ScalingFit) error {
	bw := bufio.NewWriter(w)
	for i, d := range fit.Distances {
		fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", cellID, d, d*binSize, formatValue(fit.PofS[i]))
	}
	return bw.Flush()
}
