//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package extract

import (
	"gonum.org/v1/gonum/stat"

	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// Primary holds contact-list metrics. Without cis contact, the span
// statistics are undefined and HasSpan is false.
type Primary struct {
	FTrans            float64
	MeanContactLength float64
	StdContactLength  float64
	NContacts         int
	NCis              int
	HasSpan           bool
}

// PrimaryMetrics computes the trans fraction and the cis span statistics.
// The span standard deviation is the sample one, 0 with a single cis
// contact.
func PrimaryMetrics(records []contact.Record) (*Primary, error) {
	if len(records) == 0 {
		return nil, errs.InsufficientData("no contact")
	}
	p := &Primary{NContacts: len(records)}
	spans := make([]float64, 0, len(records))
	for _, r := range records {
		if r.IsCis() {
			spans = append(spans, float64(r.Span()))
		}
	}
	p.NCis = len(spans)
	p.FTrans = float64(p.NContacts-p.NCis) / float64(p.NContacts)
	switch p.NCis {
	case 0:
	case 1:
		p.MeanContactLength = spans[0]
		p.HasSpan = true
	default:
		p.MeanContactLength, p.StdContactLength = stat.MeanStdDev(spans, nil)
		p.HasSpan = true
	}
	return p, nil
}
