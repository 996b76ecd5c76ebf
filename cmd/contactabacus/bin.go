//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
	"git.sr.ht/~vejnar/ContactAbacus/lib/impute"
	"git.sr.ht/~vejnar/ContactAbacus/lib/output"
	"git.sr.ht/~vejnar/ContactAbacus/lib/pipeline"
)

type binOptions struct {
	in           inputOptions
	pathMatrix   string
	formatMatrix string
	imputed      bool
	pooled       bool
}

func newBinCommand(g *globalOptions) *cobra.Command {
	o := &binOptions{}
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Write the contact matrix of each cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBin(cmd, g, o)
		},
	}
	fs := cmd.Flags()
	o.in.addFlags(fs)
	addParamFlags(fs)
	fs.StringVar(&o.pathMatrix, "path_matrix", "matrix_", "Matrix path prefix, followed by cell id and extension")
	fs.StringVar(&o.formatMatrix, "format_matrix", output.FormatMatrixBinary, "Matrix format (binary or csv, compressed with +lz4, +lz4hc, +zst or +gz)")
	fs.BoolVar(&o.imputed, "imputed", false, "Write the imputed matrix")
	fs.BoolVar(&o.pooled, "pooled", false, "Pool all cells in one matrix")
	return cmd
}

// matrixPath returns the output path of a cell matrix.
func matrixPath(prefix, cellID, format string) string {
	base, zip := output.SplitFormat(format)
	ext := ".mat"
	if base == output.FormatMatrixCSV {
		ext = ".csv"
	}
	if zip != "" {
		ext += "." + zip
	}
	return prefix + cellID + ext
}

// binCell bins and optionally imputes the contacts of one cell.
func binCell(records []contact.Record, in *input, params config.Params, imputed bool) (*hicmatrix.Matrix, hicmatrix.BinStats, error) {
	opts := params.BinOptions()
	opts.Normalizer.Aliases = in.aliases
	opts.Blacklist = in.blacklist
	m, stats, err := hicmatrix.Bin(records, in.layout, opts)
	if err != nil {
		return nil, stats, err
	}
	if imputed {
		m, err = impute.Impute(m, params.ImputeParams())
	}
	return m, stats, err
}

func runBin(cmd *cobra.Command, g *globalOptions, o *binOptions) error {
	params, err := loadParams(cmd, g)
	if err != nil {
		return err
	}
	if base, _ := output.SplitFormat(o.formatMatrix); base != output.FormatMatrixBinary && base != output.FormatMatrixCSV {
		return errs.Configuration("unknown matrix format %q", o.formatMatrix)
	}
	logger := g.logger
	in, err := o.in.load(params, logger)
	if err != nil {
		return err
	}
	cells := in.cells
	if o.pooled {
		pooled := contact.Cell{ID: "pooled"}
		for _, c := range cells {
			pooled.Contacts = append(pooled.Contacts, c.Contacts...)
		}
		cells = []contact.Cell{pooled}
	}

	timeStart := time.Now()
	var results []pipeline.CellResult
	for _, c := range cells {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		m, stats, err := binCell(c.Contacts, in, params, o.imputed)
		if err != nil {
			return fmt.Errorf("cell %s: %w", c.ID, err)
		}
		path := matrixPath(o.pathMatrix, c.ID, o.formatMatrix)
		err = output.WriteFile(path, o.formatMatrix, false, func(w io.Writer, base string) error {
			return output.WriteMatrix(w, m, base)
		})
		if err != nil {
			return err
		}
		logger.Debug("Wrote matrix", zap.String("cell", c.ID), zap.String("path", path), zap.Int("kept", stats.Kept))
		results = append(results, pipeline.CellResult{CellID: c.ID, Result: &pipeline.Result{Row: pipeline.NewFeatureRow(c.ID), Diagnostics: pipeline.Diagnostics{Stats: stats, Matrix: m}}})
	}
	logger.Info("Wrote matrices", g.elapsed(), zap.Int("cells", len(results)))

	if g.pathReport != "" {
		summary := pipeline.Summarize(results)
		// Only binning counters are meaningful here
		summary.NMissing = nil
		report := newReport(params, o.in.pathContacts, in.nContact, summary, time.Since(timeStart))
		if err := output.WriteReport(g.pathReport, report); err != nil {
			return err
		}
	}
	return nil
}
