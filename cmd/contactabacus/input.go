//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/ContactAbacus/lib/config"
	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
	"git.sr.ht/~vejnar/ContactAbacus/lib/pipeline"
)

// inputOptions locate contacts and genome annotations.
type inputOptions struct {
	pathContacts  []string
	formatInput   string
	cellID        string
	pathSizes     string
	pathAliases   string
	pathBlacklist string
	cells         []string
	pathCells     string
}

func (o *inputOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.pathContacts, "path_contacts", nil, "Path to contact file(s) (comma separated)")
	fs.StringVar(&o.formatInput, "format_contacts", "", "Contact format (table, pairs, sam or bam; default from extension)")
	fs.StringVar(&o.cellID, "cell_id", "", "Cell id of contacts without cell column or CB tag")
	fs.StringVar(&o.pathSizes, "path_sizes", "", "Path to chromosome sizes")
	fs.StringVar(&o.pathAliases, "path_aliases", "", "Path to chromosome name aliases")
	fs.StringVar(&o.pathBlacklist, "path_blacklist", "", "Path to excluded regions (BED)")
	fs.StringSliceVar(&o.cells, "cells", nil, "Cell id(s) to process (comma separated, default all)")
	fs.StringVar(&o.pathCells, "path_cells", "", "Path to cell ids to process (one per line)")
}

// input is the loaded input of a run.
type input struct {
	layout    *genome.Layout
	aliases   map[string]string
	blacklist *genome.Blacklist
	nContact  int
	cells     []contact.Cell
}

// pipelineOptions returns the pipeline options carrying the annotations.
func (in *input) pipelineOptions(logger *zap.Logger) []pipeline.Option {
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if in.aliases != nil {
		opts = append(opts, pipeline.WithAliases(in.aliases))
	}
	if in.blacklist != nil {
		opts = append(opts, pipeline.WithBlacklist(in.blacklist))
	}
	return opts
}

// readCellIDs reads one cell id per line, skipping empty and comment lines.
func readCellIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

// load reads annotations and contacts, grouped by cell.
func (o *inputOptions) load(params config.Params, logger *zap.Logger) (*input, error) {
	if len(o.pathContacts) == 0 {
		return nil, errs.Configuration("missing --path_contacts")
	}
	if o.pathSizes == "" {
		return nil, errs.Configuration("missing --path_sizes")
	}
	sizes, err := genome.OpenSizes(o.pathSizes)
	if err != nil {
		return nil, err
	}
	in := &input{}
	if in.layout, err = genome.NewLayout(sizes, params.BinSize); err != nil {
		return nil, err
	}
	if o.pathAliases != "" {
		if in.aliases, err = genome.OpenAliases(o.pathAliases); err != nil {
			return nil, err
		}
	}
	if o.pathBlacklist != "" {
		if in.blacklist, err = genome.OpenBlacklist(o.pathBlacklist); err != nil {
			return nil, err
		}
		logger.Info("Loaded blacklist", zap.Int("regions", in.blacklist.Len()))
	}

	ids := o.cells
	if o.pathCells != "" {
		fromFile, err := readCellIDs(o.pathCells)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	var keep set.Interface
	if len(ids) > 0 {
		keep = contact.CellSet(ids)
	}

	var records []contact.Record
	for _, path := range o.pathContacts {
		rs, err := contact.Read(path, contact.ReadOptions{Format: o.formatInput, CellID: o.cellID, Workers: params.NumWorker})
		if err != nil {
			return nil, err
		}
		logger.Info("Read contacts", zap.String("path", path), zap.Int("contacts", len(rs)))
		records = append(records, rs...)
	}
	in.nContact = len(records)
	in.cells = contact.GroupByCell(records, keep)
	if keep != nil && len(in.cells) < keep.Size() {
		logger.Warn("Selected cell(s) without contact", zap.Int("selected", keep.Size()), zap.Int("found", len(in.cells)))
	}
	return in, nil
}
