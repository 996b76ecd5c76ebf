//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

func TestDefaultValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, 1_000_000, p.BinSize)
	assert.True(t, p.TransInteractions)
	assert.False(t, p.MapQFilter)
	assert.True(t, p.Imputation)
	assert.Equal(t, 4, p.Window)
	assert.Equal(t, 0.85, p.Percentile)
	assert.Equal(t, 15, p.Scale)
	assert.Equal(t, 0, p.MaxDistance)
	assert.Equal(t, 0.3, p.TAD().BoundaryThreshold)
	assert.Equal(t, 2, p.TAD().MinSize)
	// Plain names such as chr1 are kept whole
	assert.Equal(t, 0, p.Substring)
	assert.Equal(t, "chr1", p.BinOptions().Normalizer.Normalize("chr1"))
	assert.False(t, p.Compartment().SkipDegenerate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"bin size", func(p *Params) { p.BinSize = 0 }},
		{"substring", func(p *Params) { p.Substring = -1 }},
		{"window", func(p *Params) { p.Window = -1 }},
		{"percentile", func(p *Params) { p.Percentile = 1 }},
		{"restart", func(p *Params) { p.RestartProb = 0 }},
		{"scale", func(p *Params) { p.Scale = 0 }},
		{"thresholds", func(p *Params) { p.NearThreshold, p.MidThreshold = 5, 2 }},
		{"distances", func(p *Params) { p.MinDistance, p.MaxDistance = 10, 5 }},
		{"tad size", func(p *Params) { p.TADMinSize = 0 }},
		{"workers", func(p *Params) { p.NumWorker = 0 }},
		{"timeout", func(p *Params) { p.CellTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfiguration), err.Error())
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	p, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default().BinSize, p.BinSize)
	assert.Equal(t, Default().Percentile, p.Percentile)
	assert.True(t, p.TransInteractions)
	assert.Empty(t, p.SelectedChromosomes)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`bin_size: 500000
scale: 10
trans_interactions: false
selected_chromosomes: [chr1, chr2]
cell_timeout: 30s
substring: 2
skip_degenerate_chromosomes: true
`), 0o644))
	t.Setenv("CONTACTABACUS_SCALE", "12")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("near_threshold", 0, "")
	flags.Float64("mid_threshold", 0, "")
	require.NoError(t, flags.Parse([]string{"--mid_threshold", "8"}))

	p, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 500_000, p.BinSize)
	assert.Equal(t, 12, p.Scale)
	assert.False(t, p.TransInteractions)
	assert.Equal(t, []string{"chr1", "chr2"}, p.SelectedChromosomes)
	assert.Equal(t, 30*time.Second, p.CellTimeout)
	assert.Equal(t, 2, p.Substring)
	assert.Equal(t, "chr1", p.BinOptions().Normalizer.Normalize("chr1_a"))
	assert.True(t, p.SkipDegenerate)
	assert.Equal(t, 8., p.MidThreshold)
	// Unchanged flags do not override defaults
	assert.Equal(t, 2., p.NearThreshold)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("near_threshold: 6\n"), 0o644))
	_, err := Load(path, nil)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
