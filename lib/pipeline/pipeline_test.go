//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/extract"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
)

func testLayout(t *testing.T) *genome.Layout {
	t.Helper()
	l, err := genome.NewLayout([]genome.ChromSize{{Name: "chr1", Length: 10_000_000}}, 1_000_000)
	require.NoError(t, err)
	return l
}

// evenContacts spreads 100 cis contacts along a 10 Mb chromosome.
func evenContacts(cellID string) []contact.Record {
	var records []contact.Record
	for k := 0; k < 100; k++ {
		p1 := k * 100_000
		p2 := min(p1+(k%7)*300_000, 9_999_999)
		records = append(records, contact.Record{CellID: cellID, Chrom1: "chr1", Pos1: p1, Chrom2: "chr1", Pos2: p2})
	}
	return records
}

func newPipeline(t *testing.T, modify func(p *config.Params)) *Pipeline {
	t.Helper()
	params := config.Default()
	if modify != nil {
		modify(&params)
	}
	p, err := New(testLayout(t), params, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

func TestSchema(t *testing.T) {
	names := Names()
	require.Len(t, names, 22)
	assert.Equal(t, "contact_type_AA", names[0])
	assert.Equal(t, "pofs_std_err", names[PofSStdErr])
	assert.Equal(t, "tad_density_mean", names[21])
	assert.Equal(t, "f_trans", FTrans.String())
	n := 0
	for _, g := range Groups {
		n += len(GroupFeatures(g))
	}
	assert.Equal(t, NFeature, n)
}

func TestFeatureRow(t *testing.T) {
	r := NewFeatureRow("c1")
	assert.Equal(t, NFeature, r.NMissing())
	r.Set(FTrans, 0)
	r.Set(ContactTypeAA, 0.5)
	v, ok := r.Get(FTrans)
	assert.True(t, ok)
	assert.Equal(t, 0., v)

	vec := r.Vector()
	assert.Equal(t, 0., vec[FTrans])
	assert.Equal(t, 0.5, vec[ContactTypeAA])
	assert.True(t, math.IsNaN(vec[MeanIns]))

	rec := r.Record()
	require.Len(t, rec, NFeature)
	assert.Equal(t, Field{Name: "f_trans", Value: 0}, rec[FTrans])
	assert.True(t, rec[MeanIns].Missing)

	r.Fail(GroupCompartments, errs.InsufficientData("test"))
	_, ok = r.Get(ContactTypeAA)
	assert.False(t, ok)
	assert.Contains(t, r.Errors[GroupCompartments], "test")
}

func TestExtractEndToEnd(t *testing.T) {
	p := newPipeline(t, nil)
	res, err := p.Extract(context.Background(), "cell1", evenContacts("cell1"))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Matrix.N())
	assert.True(t, res.Matrix.IsSymmetric())
	assert.NotNil(t, res.Imputed)
	assert.Equal(t, 100, res.Stats.Kept)

	row := res.Row
	ftrans, ok := row.Get(FTrans)
	assert.True(t, ok)
	assert.Equal(t, 0., ftrans)

	require.NotContains(t, row.Errors, GroupCompartments)
	aa, _ := row.Get(ContactTypeAA)
	bb, _ := row.Get(ContactTypeBB)
	ab, _ := row.Get(ContactTypeAB)
	assert.InDelta(t, 1., aa+bb+ab, 1e-6)

	near, ok := row.Get(MCMNearRatio)
	assert.True(t, ok)
	mid, _ := row.Get(MCMMidRatio)
	far, _ := row.Get(MCMFarRatio)
	assert.InDelta(t, 1., near+mid+far, 1e-9)

	_, ok = row.Get(PofSSlope)
	assert.True(t, ok)
	_, ok = row.Get(MeanContactLength)
	assert.True(t, ok)

	// 10 bins are too few for the default insulation scale
	_, ok = row.Get(MeanIns)
	assert.False(t, ok)
	assert.Contains(t, row.Errors, GroupInsulation)
	assert.Contains(t, row.Errors, GroupTAD)
}

func TestExtractSmallScale(t *testing.T) {
	p := newPipeline(t, func(p *config.Params) { p.Scale = 2 })
	res, err := p.Extract(context.Background(), "cell1", evenContacts("cell1"))
	require.NoError(t, err)
	assert.Empty(t, res.Row.Errors)
	assert.Equal(t, 0, res.Row.NMissing())
	for k, s := range res.Insulation.Scores {
		assert.Equal(t, k < 2 || k >= 8, math.IsNaN(s), "bin %d", k)
	}
	assert.NotNil(t, res.TADs)
}

func TestExtractIdempotent(t *testing.T) {
	p := newPipeline(t, func(p *config.Params) { p.Scale = 2 })
	records := evenContacts("cell1")
	a, err := p.Extract(context.Background(), "cell1", records)
	require.NoError(t, err)
	b, err := p.Extract(context.Background(), "cell1", records)
	require.NoError(t, err)
	assert.Equal(t, a.Row.Values, b.Row.Values)
	assert.Equal(t, a.Row.Missing, b.Row.Missing)
}

func TestExtractMalformed(t *testing.T) {
	p := newPipeline(t, nil)
	_, err := p.Extract(context.Background(), "empty", nil)
	assert.True(t, errors.Is(err, errs.ErrMalformedInput))

	_, err = p.Extract(context.Background(), "unknown", []contact.Record{{Chrom1: "chrX", Pos1: 1, Chrom2: "chrX", Pos2: 5}})
	assert.True(t, errors.Is(err, errs.ErrMalformedInput))

	strict := newPipeline(t, func(p *config.Params) { p.Strict = true })
	records := append(evenContacts("c"), contact.Record{Chrom1: "chrUn", Pos1: 1, Chrom2: "chr1", Pos2: 5})
	_, err = strict.Extract(context.Background(), "c", records)
	assert.True(t, errors.Is(err, errs.ErrMalformedInput))
}

func TestExtractStrict(t *testing.T) {
	p := newPipeline(t, func(p *config.Params) { p.Strict = true })
	_, err := p.Extract(context.Background(), "cell1", evenContacts("cell1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInsufficientData))
}

func TestExtractTransOnlyCis(t *testing.T) {
	l, err := genome.NewLayout([]genome.ChromSize{{Name: "chr1", Length: 10_000_000}, {Name: "chr2", Length: 10_000_000}}, 1_000_000)
	require.NoError(t, err)
	params := config.Default()
	params.TransInteractions = false
	p, err := New(l, params)
	require.NoError(t, err)
	records := append(evenContacts("c"), contact.Record{Chrom1: "chr1", Pos1: 1, Chrom2: "chr2", Pos2: 5})
	res, err := p.Extract(context.Background(), "c", records)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Trans)
	assert.Equal(t, 0., res.Matrix.At(0, 10))
	ftrans, ok := res.Row.Get(FTrans)
	assert.True(t, ok)
	assert.InDelta(t, 1./101, ftrans, 1e-12)
}

func TestNew(t *testing.T) {
	params := config.Default()
	params.NearThreshold = 10
	_, err := New(testLayout(t), params)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	params = config.Default()
	params.BinSize = 500_000
	_, err = New(testLayout(t), params)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	params = config.Default()
	params.SelectedChromosomes = []string{"chr9"}
	_, err = New(testLayout(t), params)
	assert.True(t, errors.Is(err, errs.ErrMalformedInput))
}

func TestBatch(t *testing.T) {
	p := newPipeline(t, func(p *config.Params) { p.Scale = 2 })
	cells := []contact.Cell{
		{ID: "a", Contacts: evenContacts("a")},
		{ID: "bad", Contacts: []contact.Record{{CellID: "bad", Chrom1: "chrZ", Pos1: 1, Chrom2: "chrZ", Pos2: 2}}},
		{ID: "b", Contacts: evenContacts("b")},
		{ID: "empty"},
	}
	results, err := p.Batch(context.Background(), cells, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, cells[i].ID, r.CellID)
	}
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, errs.ErrMalformedInput))
	assert.NoError(t, results[2].Err)
	assert.True(t, errors.Is(results[3].Err, errs.ErrMalformedInput))
	assert.Equal(t, results[0].Result.Row.Values, results[2].Result.Row.Values)

	s := Summarize(results)
	assert.Equal(t, 4, s.NCell)
	assert.Equal(t, 2, s.NFailed)
	assert.Equal(t, 0, s.NTimedOut)
	assert.Contains(t, s.Failed, "bad")
	assert.Equal(t, 200, s.Stats.Kept)
	assert.Empty(t, s.NMissing)
}

func TestBatchTimeout(t *testing.T) {
	p := newPipeline(t, nil)
	cells := []contact.Cell{{ID: "a", Contacts: evenContacts("a")}, {ID: "b", Contacts: evenContacts("b")}}
	results, err := p.Batch(context.Background(), cells, 1, time.Nanosecond)
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.DeadlineExceeded))
	}
	s := Summarize(results)
	assert.Equal(t, 2, s.NFailed)
	assert.Equal(t, 2, s.NTimedOut)
}

func TestBatchCancel(t *testing.T) {
	p := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Batch(ctx, []contact.Cell{{ID: "a", Contacts: evenContacts("a")}}, 2, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// domainContacts places 5 contacts on every bin pair within three 7 Mb
// domains of a 21 Mb chromosome.
func domainContacts(cellID string) []contact.Record {
	var records []contact.Record
	for i := 0; i < 21; i++ {
		for j := i; j < 21 && j/7 == i/7; j++ {
			for k := 0; k < 5; k++ {
				records = append(records, contact.Record{CellID: cellID, Chrom1: "chr1", Pos1: i * 1_000_000, Chrom2: "chr1", Pos2: j * 1_000_000})
			}
		}
	}
	return records
}

func TestExtractTADDensityRaw(t *testing.T) {
	l, err := genome.NewLayout([]genome.ChromSize{{Name: "chr1", Length: 21_000_000}}, 1_000_000)
	require.NoError(t, err)
	var tads [2]*extract.TADResult
	var densities [2]float64
	for k, imputation := range []bool{false, true} {
		params := config.Default()
		params.Scale = 2
		params.Window = 0
		params.Percentile = 0
		params.Imputation = imputation
		p, err := New(l, params, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		res, err := p.Extract(context.Background(), "c", domainContacts("c"))
		require.NoError(t, err)
		require.NotNil(t, res.TADs, "imputation %v", imputation)
		tads[k] = res.TADs
		var ok bool
		densities[k], ok = res.Row.Get(TADDensityMean)
		require.True(t, ok)
	}
	require.Len(t, tads[0].TADs, 1)
	assert.Equal(t, 7, tads[0].TADs[0].Start)
	assert.Equal(t, 13, tads[0].TADs[0].End)
	assert.Equal(t, tads[0].TADs, tads[1].TADs)
	// Contacts per bin squared
	assert.InDelta(t, 105./36, densities[0], 1e-12)
	assert.InDelta(t, densities[0], densities[1], 1e-12)
}

func TestExtractDegenerateChromosome(t *testing.T) {
	l, err := genome.NewLayout([]genome.ChromSize{{Name: "chr1", Length: 10_000_000}, {Name: "chrM", Length: 16_569}}, 1_000_000)
	require.NoError(t, err)
	params := config.Default()
	p, err := New(l, params, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	res, err := p.Extract(context.Background(), "c", evenContacts("c"))
	require.NoError(t, err)
	_, ok := res.Row.Get(ContactTypeAA)
	assert.False(t, ok)
	assert.Contains(t, res.Row.Errors[GroupCompartments], "chrM")

	params.SkipDegenerate = true
	p, err = New(l, params, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	res, err = p.Extract(context.Background(), "c", evenContacts("c"))
	require.NoError(t, err)
	aa, ok := res.Row.Get(ContactTypeAA)
	assert.True(t, ok)
	bb, _ := res.Row.Get(ContactTypeBB)
	ab, _ := res.Row.Get(ContactTypeAB)
	assert.InDelta(t, 1., aa+bb+ab, 1e-6)
	assert.Equal(t, []string{"chrM"}, res.Compartments.Skipped)
	assert.Equal(t, "skipped chromosome(s): chrM", res.Row.Errors[GroupCompartments])
}
