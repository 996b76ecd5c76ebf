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

	"git.sr.ht/~vejnar/ContactAbacus/lib/output"
	"git.sr.ht/~vejnar/ContactAbacus/lib/pipeline"
)

type extractOptions struct {
	in                   inputOptions
	pathFeatures         string
	formatFeatures       string
	noHeader             bool
	appendOutput         bool
	pathPofS             string
	pathInsulation       string
	pathTADs             string
	pathCompartments     string
	continueOnCellErrors bool
}

func newExtractCommand(g *globalOptions) *cobra.Command {
	o := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the feature row of each cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, g, o)
		},
	}
	fs := cmd.Flags()
	o.in.addFlags(fs)
	addParamFlags(fs)
	fs.StringVar(&o.pathFeatures, "path_features", "-", "Write features to path (stdout with -)")
	fs.StringVar(&o.formatFeatures, "format_features", output.FormatCSV, "Feature format (csv, tsv or json, compressed with +lz4, +lz4hc, +zst or +gz)")
	fs.BoolVar(&o.noHeader, "no_header", false, "Don't write the csv/tsv header")
	fs.BoolVar(&o.appendOutput, "append", false, "Append to output files")
	fs.StringVar(&o.pathPofS, "path_pofs", "", "Write P(s) curves to path")
	fs.StringVar(&o.pathInsulation, "path_insulation", "", "Write insulation scores (bedGraph) to path")
	fs.StringVar(&o.pathTADs, "path_tads", "", "Write TADs (BED) to path")
	fs.StringVar(&o.pathCompartments, "path_compartments", "", "Write compartments (BED) to path")
	fs.BoolVar(&o.continueOnCellErrors, "continue_on_cell_errors", true, "Exit successfully when some cells failed")
	return cmd
}

// rowsOf returns one row per cell in input order. Failed cells get an
// all-missing row with the error under "cell".
func rowsOf(results []pipeline.CellResult) []*pipeline.FeatureRow {
	rows := make([]*pipeline.FeatureRow, len(results))
	for i, r := range results {
		if r.Err != nil {
			rows[i] = pipeline.NewFeatureRow(r.CellID)
			rows[i].Errors["cell"] = r.Err.Error()
		} else {
			rows[i] = r.Result.Row
		}
	}
	return rows
}

// writeTracks writes one track per successful cell to path.
func writeTracks(path string, appendOutput bool, results []pipeline.CellResult, write func(w io.Writer, r *pipeline.Result, cellID string) error) error {
	if path == "" {
		return nil
	}
	return output.WriteFile(path, "", appendOutput, func(w io.Writer, _ string) error {
		for _, cr := range results {
			if cr.Err != nil {
				continue
			}
			if err := write(w, cr.Result, cr.CellID); err != nil {
				return fmt.Errorf("cell %s: %w", cr.CellID, err)
			}
		}
		return nil
	})
}

func runExtract(cmd *cobra.Command, g *globalOptions, o *extractOptions) error {
	params, err := loadParams(cmd, g)
	if err != nil {
		return err
	}
	logger := g.logger
	in, err := o.in.load(params, logger)
	if err != nil {
		return err
	}
	logger.Info("Loaded input", g.elapsed(), zap.Int("contacts", in.nContact), zap.Int("cells", len(in.cells)), zap.Int("bins", in.layout.NBins()))

	p, err := pipeline.New(in.layout, params, in.pipelineOptions(logger)...)
	if err != nil {
		return err
	}
	timeBatch := time.Now()
	results, err := p.Batch(cmd.Context(), in.cells, params.NumWorker, params.CellTimeout)
	if err != nil {
		return err
	}
	summary := pipeline.Summarize(results)
	logger.Info("Extracted features", g.elapsed(), zap.Int("cells", summary.NCell), zap.Int("failed", summary.NFailed))
	for id, e := range summary.Failed {
		logger.Warn("Cell failed", zap.String("cell", id), zap.String("error", e))
	}

	// Features
	err = output.WriteFile(o.pathFeatures, o.formatFeatures, o.appendOutput, func(w io.Writer, base string) error {
		return output.WriteFeatures(w, base, rowsOf(results), !o.noHeader)
	})
	if err != nil {
		return err
	}
	// Per-cell tracks
	err = writeTracks(o.pathPofS, o.appendOutput, results, func(w io.Writer, r *pipeline.Result, cellID string) error {
		if r.Scaling == nil {
			return nil
		}
		return output.WritePofS(w, cellID, params.BinSize, r.Scaling)
	})
	if err != nil {
		return err
	}
	err = writeTracks(o.pathInsulation, o.appendOutput, results, func(w io.Writer, r *pipeline.Result, cellID string) error {
		if r.Insulation == nil {
			return nil
		}
		return output.WriteInsulation(w, r.Matrix.Layout(), r.Insulation.Scores, cellID)
	})
	if err != nil {
		return err
	}
	err = writeTracks(o.pathTADs, o.appendOutput, results, func(w io.Writer, r *pipeline.Result, cellID string) error {
		if r.TADs == nil {
			return nil
		}
		fmt.Fprintf(w, "track name=\"%s\"\n", cellID)
		return output.WriteTADs(w, r.Matrix.Layout(), r.TADs.TADs)
	})
	if err != nil {
		return err
	}
	err = writeTracks(o.pathCompartments, o.appendOutput, results, func(w io.Writer, r *pipeline.Result, cellID string) error {
		if r.Compartments == nil {
			return nil
		}
		fmt.Fprintf(w, "track name=\"%s\"\n", cellID)
		return output.WriteCompartments(w, r.Matrix.Layout(), r.Compartments.Labels)
	})
	if err != nil {
		return err
	}

	// Report
	if g.pathReport != "" {
		report := newReport(params, o.in.pathContacts, in.nContact, summary, time.Since(timeBatch))
		if err := output.WriteReport(g.pathReport, report); err != nil {
			return err
		}
	}
	logger.Info("Done", g.elapsed())

	if summary.NFailed > 0 && !o.continueOnCellErrors {
		return fmt.Errorf("%d cell(s) failed", summary.NFailed)
	}
	return nil
}
