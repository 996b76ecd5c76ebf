//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"math"
)

// Feature is a slot of the feature schema.
type Feature int

const (
	ContactTypeAA Feature = iota
	ContactTypeBB
	ContactTypeAB
	MeanIns
	MedianIns
	StdIns
	P10Ins
	P90Ins
	MCMNearRatio
	MCMMidRatio
	MCMFarRatio
	PofSSlope
	PofSIntercept
	PofSRValue
	PofSPValue
	PofSStdErr
	FTrans
	MeanContactLength
	StdContactLength
	TADNTADsMean
	TADMeanBinSize
	TADDensityMean
	NFeature int = iota
)

var featureNames = [NFeature]string{
	"contact_type_AA",
	"contact_type_BB",
	"contact_type_AB",
	"mean_ins",
	"median_ins",
	"std_ins",
	"p10_ins",
	"p90_ins",
	"mcm_near_ratio",
	"mcm_mid_ratio",
	"mcm_far_ratio",
	"pofs_slope",
	"pofs_intercept",
	"pofs_r_value",
	"pofs_p_value",
	"pofs_std_err",
	"f_trans",
	"mean_contact_length",
	"std_contact_length",
	"tad_n_tads_mean",
	"tad_mean_bin_size",
	"tad_density_mean",
}

func (f Feature) String() string {
	return featureNames[f]
}

// Names returns the feature names in schema order.
func Names() []string {
	return append([]string(nil), featureNames[:]...)
}

// Extractor groups
const (
	GroupCompartments = "compartments"
	GroupInsulation   = "insulation"
	GroupMCM          = "mcm"
	GroupPofS         = "pofs"
	GroupPrimary      = "primary"
	GroupTAD          = "tad"
)

// Groups lists the extractor groups in schema order.
var Groups = []string{GroupCompartments, GroupInsulation, GroupMCM, GroupPofS, GroupPrimary, GroupTAD}

var groupFeatures = map[string][]Feature{
	GroupCompartments: {ContactTypeAA, ContactTypeBB, ContactTypeAB},
	GroupInsulation:   {MeanIns, MedianIns, StdIns, P10Ins, P90Ins},
	GroupMCM:          {MCMNearRatio, MCMMidRatio, MCMFarRatio},
	GroupPofS:         {PofSSlope, PofSIntercept, PofSRValue, PofSPValue, PofSStdErr},
	GroupPrimary:      {FTrans, MeanContactLength, StdContactLength},
	GroupTAD:          {TADNTADsMean, TADMeanBinSize, TADDensityMean},
}

// GroupFeatures returns the slots filled by an extractor group.
func GroupFeatures(group string) []Feature {
	return append([]Feature(nil), groupFeatures[group]...)
}

// Field is a labelled feature value.
type Field struct {
	Name    string
	Value   float64
	Missing bool
}

// FeatureRow holds the features of one cell. A missing slot has no value;
// it is never a computed zero.
type FeatureRow struct {
	CellID  string
	Values  [NFeature]float64
	Missing [NFeature]bool
	// Errors maps a failed extractor group to its error message.
	Errors map[string]string
}

// NewFeatureRow returns a row with every slot missing.
func NewFeatureRow(cellID string) *FeatureRow {
	r := &FeatureRow{CellID: cellID, Errors: make(map[string]string)}
	for i := range r.Missing {
		r.Missing[i] = true
	}
	return r
}

// Set fills slot f.
func (r *FeatureRow) Set(f Feature, v float64) {
	r.Values[f] = v
	r.Missing[f] = false
}

// Get returns the value of slot f and whether it is set.
func (r *FeatureRow) Get(f Feature) (float64, bool) {
	return r.Values[f], !r.Missing[f]
}

// Fail marks the slots of group missing with err.
func (r *FeatureRow) Fail(group string, err error) {
	for _, f := range groupFeatures[group] {
		r.Values[f] = 0
		r.Missing[f] = true
	}
	r.Errors[group] = err.Error()
}

// NMissing returns the number of missing slots.
func (r *FeatureRow) NMissing() (n int) {
	for _, m := range r.Missing {
		if m {
			n++
		}
	}
	return
}

// Vector returns the values in schema order with NaN for missing slots.
func (r *FeatureRow) Vector() []float64 {
	v := make([]float64, NFeature)
	for i := range v {
		if r.Missing[i] {
			v[i] = math.NaN()
		} else {
			v[i] = r.Values[i]
		}
	}
	return v
}

// Record returns the labelled values in schema order.
func (r *FeatureRow) Record() []Field {
	fields := make([]Field, NFeature)
	for i := range fields {
		fields[i] = Field{Name: featureNames[i], Value: r.Values[i], Missing: r.Missing[i]}
	}
	return fields
}
