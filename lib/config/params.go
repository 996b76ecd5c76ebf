//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package config holds the feature extraction parameters.
package config

import (
	"time"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/extract"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
	"git.sr.ht/~vejnar/ContactAbacus/lib/impute"
)

// Params is the parameter set of one extraction run. It is passed by value
// and never mutated once validated.
type Params struct {
	// Binning
	BinSize             int      `mapstructure:"bin_size"`
	SelectedChromosomes []string `mapstructure:"selected_chromosomes"`
	TransInteractions   bool     `mapstructure:"trans_interactions"`
	MapQFilter          bool     `mapstructure:"mapping_quality_involved"`
	MinMapQ             int      `mapstructure:"min_mapping_quality"`
	Substring           int      `mapstructure:"substring"`
	Strict              bool     `mapstructure:"strict"`

	// Imputation
	Imputation    bool    `mapstructure:"imputation_involved"`
	Window        int     `mapstructure:"w"`
	Percentile    float64 `mapstructure:"p"`
	RestartProb   float64 `mapstructure:"restart_probability"`
	ImputeMaxIter int     `mapstructure:"imputation_max_iter"`
	ImputeTol     float64 `mapstructure:"imputation_tolerance"`

	// Features
	SkipDegenerate bool    `mapstructure:"skip_degenerate_chromosomes"`
	Scale          int     `mapstructure:"scale"`
	NearThreshold  float64 `mapstructure:"near_threshold"`
	MidThreshold   float64 `mapstructure:"mid_threshold"`
	MinDistance    int     `mapstructure:"min_distance"`
	MaxDistance    int     `mapstructure:"max_distance"`
	TADThreshold   float64 `mapstructure:"tad_boundary_threshold"`
	TADMinSize     int     `mapstructure:"tad_min_size"`

	// Batch
	NumWorker   int           `mapstructure:"num_worker"`
	CellTimeout time.Duration `mapstructure:"cell_timeout"`
}

const (
	DefaultBinSize       = 1_000_000
	DefaultMinMapQ       = 30
	DefaultWindow        = 4
	DefaultPercentile    = 0.85
	DefaultScale         = 15
	DefaultNearThreshold = 2.
	DefaultMidThreshold  = 5.
	DefaultMinDistance   = 1
	DefaultTADThreshold  = 0.3
	DefaultNumWorker     = 1
)

// Default returns the default parameter set.
func Default() Params {
	return Params{
		BinSize:           DefaultBinSize,
		TransInteractions: true,
		MinMapQ:           DefaultMinMapQ,
		Imputation:        true,
		Window:            DefaultWindow,
		Percentile:        DefaultPercentile,
		RestartProb:       impute.DefaultRestartProb,
		ImputeMaxIter:     impute.DefaultMaxIter,
		ImputeTol:         impute.DefaultTol,
		Scale:             DefaultScale,
		NearThreshold:     DefaultNearThreshold,
		MidThreshold:      DefaultMidThreshold,
		MinDistance:       DefaultMinDistance,
		TADThreshold:      DefaultTADThreshold,
		TADMinSize:        extract.DefaultTADMinSize,
		NumWorker:         DefaultNumWorker,
	}
}

// Validate checks every parameter range.
func (p Params) Validate() error {
	if p.BinSize <= 0 {
		return errs.Configuration("bin_size must be positive, got %d", p.BinSize)
	}
	if p.Substring < 0 {
		return errs.Configuration("substring must be >= 0, got %d", p.Substring)
	}
	if p.MapQFilter && p.MinMapQ < 0 {
		return errs.Configuration("min_mapping_quality must be >= 0, got %d", p.MinMapQ)
	}
	if err := p.ImputeParams().Validate(); err != nil {
		return err
	}
	if p.Scale < 1 {
		return errs.Configuration("scale must be >= 1, got %d", p.Scale)
	}
	if err := p.MCM().Validate(); err != nil {
		return err
	}
	if err := p.PofS().Validate(); err != nil {
		return err
	}
	if p.TADMinSize < 1 {
		return errs.Configuration("tad_min_size must be >= 1, got %d", p.TADMinSize)
	}
	if p.NumWorker < 1 {
		return errs.Configuration("num_worker must be >= 1, got %d", p.NumWorker)
	}
	if p.CellTimeout < 0 {
		return errs.Configuration("cell_timeout must be >= 0, got %s", p.CellTimeout)
	}
	return nil
}

// ImputeParams returns the imputation parameters.
func (p Params) ImputeParams() impute.Params {
	return impute.Params{Window: p.Window, RestartProb: p.RestartProb, Percentile: p.Percentile, MaxIter: p.ImputeMaxIter, Tol: p.ImputeTol}
}

func (p Params) Compartment() extract.CompartmentParams {
	return extract.CompartmentParams{SkipDegenerate: p.SkipDegenerate}
}

func (p Params) MCM() extract.MCMParams {
	return extract.MCMParams{NearThreshold: p.NearThreshold, MidThreshold: p.MidThreshold}
}

func (p Params) PofS() extract.PofSParams {
	return extract.PofSParams{MinDistance: p.MinDistance, MaxDistance: p.MaxDistance}
}

func (p Params) TAD() extract.TADParams {
	return extract.TADParams{BoundaryThreshold: p.TADThreshold, MinSize: p.TADMinSize}
}

// BinOptions returns the binner options. Chromosome aliases and blacklist
// come from files and are set by the caller.
func (p Params) BinOptions() hicmatrix.BinOptions {
	return hicmatrix.BinOptions{
		SelectedChromosomes: p.SelectedChromosomes,
		Normalizer:          genome.NameNormalizer{Substring: p.Substring},
		TransInteractions:   p.TransInteractions,
		MapQFilter:          p.MapQFilter,
		MinMapQ:             p.MinMapQ,
		Strict:              p.Strict,
	}
}
