//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
)

var version = "DEV"

// globalOptions are the flags shared by all commands.
type globalOptions struct {
	pathConfig   string
	pathReport   string
	verbose      bool
	verboseLevel int
	timeStart    time.Time
	logger       *zap.Logger
}

// elapsed is a log field with the time since start in minutes.
func (o *globalOptions) elapsed() zap.Field {
	return zap.String("elapsed", fmt.Sprintf("%.1fmin", time.Since(o.timeStart).Minutes()))
}

// newLogger logs warnings at verbose level 0, information at 1 and debug
// messages above.
func newLogger(verbose bool, verboseLevel int) (*zap.Logger, error) {
	if verbose && verboseLevel == 0 {
		verboseLevel = 1
	}
	level := zapcore.WarnLevel
	switch {
	case verboseLevel >= 2:
		level = zapcore.DebugLevel
	case verboseLevel == 1:
		level = zapcore.InfoLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zapCfg.Build()
}

// addParamFlags registers the extraction parameters, named after their
// parameter file keys.
func addParamFlags(fs *pflag.FlagSet) {
	d := config.Default()
	// Binning
	fs.Int("bin_size", d.BinSize, "Bin size (bp)")
	fs.StringSlice("selected_chromosomes", nil, "Chromosome(s) to keep (comma separated, default all)")
	fs.Bool("trans_interactions", d.TransInteractions, "Add inter-chromosomal contacts to the matrix")
	fs.Bool("mapping_quality_involved", d.MapQFilter, "Filter contacts on mapping quality")
	fs.Int("min_mapping_quality", d.MinMapQ, "Minimum contact mapping quality")
	fs.Int("substring", d.Substring, "Number of trailing characters to remove from contact chromosome names")
	fs.Bool("strict", d.Strict, "Fail a cell on unknown chromosome or on any failed feature")
	// Imputation
	fs.Bool("imputation_involved", d.Imputation, "Impute matrices before compartment and TAD calling")
	fs.Int("w", d.Window, "Imputation box filter half width (bins)")
	fs.Float64("p", d.Percentile, "Imputation percentile threshold")
	fs.Float64("restart_probability", d.RestartProb, "Imputation random walk restart probability")
	fs.Int("imputation_max_iter", d.ImputeMaxIter, "Imputation random walk maximum iterations")
	fs.Float64("imputation_tolerance", d.ImputeTol, "Imputation random walk convergence tolerance")
	// Features
	fs.Bool("skip_degenerate_chromosomes", d.SkipDegenerate, "Leave chromosomes without compartment signal unlabelled instead of failing compartments")
	fs.Int("scale", d.Scale, "Insulation window (bins)")
	fs.Float64("near_threshold", d.NearThreshold, "Near contact distance threshold (Mb)")
	fs.Float64("mid_threshold", d.MidThreshold, "Mid contact distance threshold (Mb)")
	fs.Int("min_distance", d.MinDistance, "P(s) minimum distance (bins)")
	fs.Int("max_distance", d.MaxDistance, "P(s) maximum distance (bins, 0 for matrix edge)")
	fs.Float64("tad_boundary_threshold", d.TADThreshold, "Maximum insulation score of a TAD boundary")
	fs.Int("tad_min_size", d.TADMinSize, "Minimum TAD size (bins)")
	// Batch
	fs.Int("num_worker", d.NumWorker, "Number of worker(s)")
	fs.Duration("cell_timeout", d.CellTimeout, "Maximum time per cell (0 for none)")
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "contactabacus",
		Short:         "Extract chromatin structure features from single-cell contact data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.timeStart = time.Now()
			var err error
			opts.logger, err = newLogger(opts.verbose, opts.verboseLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				opts.logger.Sync()
			}
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.pathConfig, "config", "", "Path to parameter file (YAML)")
	pf.StringVar(&opts.pathReport, "path_report", "", "Write report to path (stdout with -)")
	pf.BoolVar(&opts.verbose, "verbose", false, "Verbose")
	pf.IntVar(&opts.verboseLevel, "verbose_level", 0, "Verbose level")

	cmd.AddCommand(newExtractCommand(opts), newBinCommand(opts), newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and quit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadParams merges the parameter file, environment and flags of cmd.
func loadParams(cmd *cobra.Command, opts *globalOptions) (config.Params, error) {
	params, err := config.Load(opts.pathConfig, cmd.Flags())
	if err != nil {
		return params, err
	}
	// Max CPU
	runtime.GOMAXPROCS(max(runtime.GOMAXPROCS(0), params.NumWorker*2))
	return params, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
