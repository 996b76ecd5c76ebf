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
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/pipeline"
)

// Feature table formats
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
)

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFeatures writes one row per cell. In csv and tsv, missing values are
// empty cells; in json (one object per line) they are null and the failed
// extractors are listed under "errors".
func WriteFeatures(w io.Writer, format string, rows []*pipeline.FeatureRow, header bool) error {
	switch format {
	case FormatCSV, FormatTSV:
		cw := csv.NewWriter(w)
		if format == FormatTSV {
			cw.Comma = '\t'
		}
		if header {
			if err := cw.Write(append([]string{"cell_id"}, pipeline.Names()...)); err != nil {
				return err
			}
		}
		record := make([]string, pipeline.NFeature+1)
		for _, row := range rows {
			record[0] = row.CellID
			for i, f := range row.Record() {
				if f.Missing {
					record[i+1] = ""
				} else {
					record[i+1] = formatValue(f.Value)
				}
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		bw := bufio.NewWriter(w)
		for _, row := range rows {
			if err := writeJSONRow(bw, row); err != nil {
				return err
			}
		}
		return bw.Flush()
	}
	return errs.Configuration("unknown feature table format %q", format)
}

// writeJSONRow writes the fields in schema order.
func writeJSONRow(w *bufio.Writer, row *pipeline.FeatureRow) error {
	id, err := json.Marshal(row.CellID)
	if err != nil {
		return err
	}
	w.WriteString(`{"cell_id":`)
	w.Write(id)
	for _, f := range row.Record() {
		w.WriteString(`,"` + f.Name + `":`)
		if f.Missing {
			w.WriteString("null")
		} else {
			w.WriteString(formatValue(f.Value))
		}
	}
	if len(row.Errors) > 0 {
		groups := make([]string, 0, len(row.Errors))
		for g := range row.Errors {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		w.WriteString(`,"errors":{`)
		for i, g := range groups {
			msg, err := json.Marshal(row.Errors[g])
			if err != nil {
				return err
			}
			if i > 0 {
				w.WriteString(",")
			}
			w.WriteString(`"` + g + `":`)
			w.Write(msg)
		}
		w.WriteString("}")
	}
	_, err = w.WriteString("}\n")
	return err
}
