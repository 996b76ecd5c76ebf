//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package pipeline computes the feature row of single cells.
//
// A cell is validated, binned, optionally imputed once, then every extractor
// runs concurrently on the shared immutable matrices. A failing extractor
// leaves its slots missing unless the pipeline is strict.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/extract"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
	"git.sr.ht/~vejnar/ContactAbacus/lib/impute"
)

// Diagnostics holds the intermediate results of one cell.
type Diagnostics struct {
	Stats        hicmatrix.BinStats
	Matrix       *hicmatrix.Matrix
	Imputed      *hicmatrix.Matrix
	Compartments *extract.CompartmentResult
	Insulation   *extract.InsulationResult
	TADs         *extract.TADResult
	Scaling      *extract.ScalingFit
	Primary      *extract.Primary
}

// Result is the output of Extract.
type Result struct {
	Row *FeatureRow
	Diagnostics
}

// Pipeline extracts features on a fixed layout with fixed parameters. It is
// safe for concurrent use.
type Pipeline struct {
	layout     *genome.Layout
	params     config.Params
	binOptions hicmatrix.BinOptions
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAliases sets the chromosome alias map.
func WithAliases(aliases map[string]string) Option {
	return func(p *Pipeline) {
		p.binOptions.Normalizer.Aliases = aliases
	}
}

// WithBlacklist sets the excluded regions.
func WithBlacklist(b *genome.Blacklist) Option {
	return func(p *Pipeline) {
		p.binOptions.Blacklist = b
	}
}

// New validates params and layout and returns a pipeline.
func New(layout *genome.Layout, params config.Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if layout.BinSize() != params.BinSize {
		return nil, errs.Configuration("layout bin size %d differs from bin_size %d", layout.BinSize(), params.BinSize)
	}
	if _, err := layout.Select(params.SelectedChromosomes); err != nil {
		return nil, err
	}
	p := &Pipeline{layout: layout, params: params, binOptions: params.BinOptions(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Params returns the parameters.
func (p *Pipeline) Params() config.Params { return p.params }

// Extract computes the feature row of one cell. Malformed input fails
// before any extractor runs.
func (p *Pipeline) Extract(ctx context.Context, cellID string, records []contact.Record) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := contact.Validate(records); err != nil {
		return nil, fmt.Errorf("cell %s: %w", cellID, err)
	}
	filtered, err := hicmatrix.Filter(records, p.layout, p.binOptions)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", cellID, err)
	}
	res := &Result{Row: NewFeatureRow(cellID)}
	res.Stats = filtered.Stats
	res.Matrix = filtered.Build()
	p.logger.Debug("Binned",
		zap.String("cell", cellID),
		zap.Int("contacts", filtered.Stats.Total),
		zap.Int("kept", filtered.Stats.Kept),
		zap.Int("dropped", filtered.Stats.Dropped()),
		zap.Int("bins", res.Matrix.N()))
	if filtered.Stats.Unknown > 0 {
		p.logger.Warn("Unknown chromosome(s)", zap.String("cell", cellID), zap.Any("names", filtered.Stats.UnknownNames))
	}

	signal := res.Matrix
	if p.params.Imputation {
		if signal, err = impute.Impute(res.Matrix, p.params.ImputeParams()); err != nil {
			return nil, err
		}
		res.Imputed = signal
	}

	// Extractors write to distinct fields of res
	failed := make([]error, len(Groups))
	g, gctx := errgroup.WithContext(ctx)
	run := func(i int, group string, f func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := f(); err != nil {
				failed[i] = err
				if p.params.Strict {
					return fmt.Errorf("cell %s: %s: %w", cellID, group, err)
				}
			}
			return nil
		})
	}
	run(0, GroupCompartments, func() (err error) {
		res.Compartments, err = extract.CallCompartments(res.Matrix, signal, p.params.Compartment())
		return
	})
	run(1, GroupInsulation, func() (err error) {
		res.Insulation, err = extract.Insulation(res.Matrix, p.params.Scale)
		return
	})
	var mcm *extract.MCMResult
	run(2, GroupMCM, func() (err error) {
		mcm, err = extract.DistanceRatios(res.Matrix, p.params.MCM())
		return
	})
	run(3, GroupPofS, func() (err error) {
		res.Scaling, err = extract.ContactScaling(res.Matrix, p.params.PofS())
		return
	})
	run(4, GroupPrimary, func() (err error) {
		res.Primary, err = extract.PrimaryMetrics(filtered.Contacts)
		return
	})
	run(5, GroupTAD, func() error {
		// Boundaries from the signal, densities in raw contacts
		scores, err := extract.InsulationScores(signal, p.params.Scale)
		if err != nil {
			return err
		}
		res.TADs, err = extract.CallTADs(res.Matrix, scores, p.params.TAD())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := res.Row
	for i, group := range Groups {
		if failed[i] != nil {
			row.Fail(group, failed[i])
			p.logger.Warn("Feature failed", zap.String("cell", cellID), zap.String("group", group), zap.Error(failed[i]))
		}
	}
	if c := res.Compartments; c != nil {
		row.Set(ContactTypeAA, c.AA)
		row.Set(ContactTypeBB, c.BB)
		row.Set(ContactTypeAB, c.AB)
		if len(c.Skipped) > 0 {
			row.Errors[GroupCompartments] = "skipped chromosome(s): " + strings.Join(c.Skipped, ", ")
			p.logger.Debug("Compartments skipped", zap.String("cell", cellID), zap.Strings("chromosomes", c.Skipped))
		}
	}
	if ins := res.Insulation; ins != nil {
		row.Set(MeanIns, ins.Mean)
		row.Set(MedianIns, ins.Median)
		row.Set(StdIns, ins.Std)
		row.Set(P10Ins, ins.P10)
		row.Set(P90Ins, ins.P90)
	}
	if mcm != nil {
		row.Set(MCMNearRatio, mcm.Near)
		row.Set(MCMMidRatio, mcm.Mid)
		row.Set(MCMFarRatio, mcm.Far)
	}
	if s := res.Scaling; s != nil {
		row.Set(PofSSlope, s.Slope)
		row.Set(PofSIntercept, s.Intercept)
		row.Set(PofSRValue, s.RValue)
		row.Set(PofSPValue, s.PValue)
		row.Set(PofSStdErr, s.StdErr)
	}
	if pm := res.Primary; pm != nil {
		row.Set(FTrans, pm.FTrans)
		if pm.HasSpan {
			row.Set(MeanContactLength, pm.MeanContactLength)
			row.Set(StdContactLength, pm.StdContactLength)
		} else {
			row.Errors[GroupPrimary] = "no cis contact"
		}
	}
	if t := res.TADs; t != nil {
		row.Set(TADNTADsMean, t.NTADsMean)
		row.Set(TADMeanBinSize, t.MeanSize)
		row.Set(TADDensityMean, t.DensityMean)
	}
	return res, nil
}
