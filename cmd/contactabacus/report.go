//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
	"git.sr.ht/~vejnar/ContactAbacus/lib/pipeline"
)

// Report summarizes a run.
type Report struct {
	Version      string                 `json:"version"`
	PathContacts []string               `json:"path_contacts"`
	NContact     int                    `json:"n_contact"`
	Params       map[string]interface{} `json:"params"`
	Summary      pipeline.BatchSummary  `json:"summary"`
	Duration     float64                `json:"duration_second"`
}

// newReport builds a report. Params are keyed like the parameter file.
func newReport(params config.Params, pathContacts []string, nContact int, summary pipeline.BatchSummary, duration time.Duration) *Report {
	p := make(map[string]interface{})
	if err := mapstructure.Decode(params, &p); err != nil {
		p = nil
	}
	if d, ok := p["cell_timeout"].(time.Duration); ok {
		p["cell_timeout"] = d.String()
	}
	return &Report{
		Version:      version,
		PathContacts: pathContacts,
		NContact:     nContact,
		Params:       p,
		Summary:      summary,
		Duration:     duration.Seconds(),
	}
}
