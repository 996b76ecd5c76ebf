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
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~vejnar/ContactAbacus/lib/contact"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

// CellResult is the outcome of one cell in a batch. Err is set when the
// cell failed or timed out.
type CellResult struct {
	CellID   string
	Result   *Result
	Err      error
	Duration time.Duration
}

// BatchSummary counts the cells of a batch.
type BatchSummary struct {
	NCell     int                `json:"n_cell"`
	NFailed   int                `json:"n_failed"`
	NTimedOut int                `json:"n_timed_out"`
	Failed    map[string]string  `json:"failed,omitempty"`
	Stats     hicmatrix.BinStats `json:"binning"`
	NMissing  map[string]int     `json:"n_missing_feature,omitempty"`
}

// Summarize tallies results. Timed-out cells count as failed and as timed
// out.
func Summarize(results []CellResult) BatchSummary {
	s := BatchSummary{NCell: len(results)}
	for _, r := range results {
		if r.Err != nil {
			if s.Failed == nil {
				s.Failed = make(map[string]string)
			}
			s.NFailed++
			if errors.Is(r.Err, context.DeadlineExceeded) {
				s.NTimedOut++
			}
			s.Failed[r.CellID] = r.Err.Error()
			continue
		}
		s.Stats = s.Stats.Merge(r.Result.Stats)
		for i, missing := range r.Result.Row.Missing {
			if missing {
				if s.NMissing == nil {
					s.NMissing = make(map[string]int)
				}
				s.NMissing[featureNames[i]]++
			}
		}
	}
	return s
}

// Batch runs cells on nWorker goroutines, each cell under its own timeout
// (none if timeout is 0). Failed cells are recorded and do not stop the
// batch; results are in cells order. Only the cancellation of ctx returns
// an error.
func (p *Pipeline) Batch(ctx context.Context, cells []contact.Cell, nWorker int, timeout time.Duration) ([]CellResult, error) {
	nWorker = max(1, nWorker)
	results := make([]CellResult, len(cells))

	g, gctx := errgroup.WithContext(ctx)

	chCell := make(chan int, nWorker*10)
	g.Go(func() error {
		defer close(chCell)
		for i := range cells {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chCell <- i:
			}
		}
		return nil
	})

	for w := 0; w < nWorker; w++ {
		g.Go(func() error {
			for i := range chCell {
				cell := cells[i]
				timeStart := time.Now()
				res, err := p.extractTimeout(gctx, cell, timeout)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = CellResult{CellID: cell.ID, Result: res, Err: err, Duration: time.Since(timeStart)}
				if err != nil {
					p.logger.Warn("Cell failed", zap.String("cell", cell.ID), zap.Error(err))
				} else {
					p.logger.Debug("Cell done", zap.String("cell", cell.ID), zap.Duration("duration", results[i].Duration))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractTimeout runs Extract and gives up on it after timeout. The
// abandoned computation finishes in the background.
func (p *Pipeline) extractTimeout(ctx context.Context, cell contact.Cell, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return p.Extract(ctx, cell.ID, cell.Contacts)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := p.Extract(cctx, cell.ID, cell.Contacts)
		ch <- outcome{res, err}
	}()
	select {
	case o := <-ch:
		return o.res, o.err
	case <-cctx.Done():
		return nil, cctx.Err()
	}
}
