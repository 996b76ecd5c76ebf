//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package contact

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

const (
	FormatAuto  = ""
	FormatTable = "table"
	FormatPairs = "pairs"
	FormatSAM   = "sam"
	FormatBAM   = "bam"
)

// Table column names.
const (
	ColCellID  = "cell_id"
	ColChrom1  = "chromosome_1"
	ColPos1    = "position_1"
	ColChrom2  = "chromosome_2"
	ColPos2    = "position_2"
	ColMapQual = "mapping_quality"
)

var requiredColumns = []string{ColCellID, ColChrom1, ColPos1, ColChrom2, ColPos2}

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ReadOptions configures Read.
type ReadOptions struct {
	// Format is one of FormatTable, FormatPairs, FormatSAM, FormatBAM or
	// FormatAuto (guessed from the file extension).
	Format string
	// CellID is used for formats without a cell column (pairs) and for
	// SAM/BAM records without a CB tag.
	CellID string
	// Workers is the number of BAM decompression workers.
	Workers int
}

// GuessFormat returns the input format from a file name.
func GuessFormat(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".gz", ".bgz", ".zst", ".lz4"} {
		name = strings.TrimSuffix(name, ext)
	}
	switch filepath.Ext(name) {
	case ".pairs":
		return FormatPairs
	case ".sam":
		return FormatSAM
	case ".bam":
		return FormatBAM
	}
	return FormatTable
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var err error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if e := m.closers[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// isBGZF checks the gzip FEXTRA field for the BGZF "BC" subfield.
func isBGZF(header []byte) bool {
	return len(header) >= 14 && header[3]&0x04 != 0 && header[12] == 'B' && header[13] == 'C'
}

// Decompress wraps r with a decoder chosen from its magic bytes: bgzf,
// gzip, zstd, lz4 or none.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, _ := br.Peek(14)
	switch {
	case bytes.HasPrefix(header, magicGzip) && isBGZF(header):
		bg, err := bgzf.NewReader(br, 1)
		if err != nil {
			return nil, err
		}
		return &multiCloser{Reader: bg, closers: []io.Closer{bg}}, nil
	case bytes.HasPrefix(header, magicGzip):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &multiCloser{Reader: gz, closers: []io.Closer{gz}}, nil
	case bytes.HasPrefix(header, magicZstd):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		rc := zr.IOReadCloser()
		return &multiCloser{Reader: rc, closers: []io.Closer{rc}}, nil
	case bytes.HasPrefix(header, magicLZ4):
		return &multiCloser{Reader: lz4.NewReader(br), closers: []io.Closer{nopCloser{}}}, nil
	}
	return &multiCloser{Reader: br, closers: []io.Closer{nopCloser{}}}, nil
}

// Read loads all contacts from path.
func Read(path string, opts ReadOptions) ([]Record, error) {
	format := opts.Format
	if format == FormatAuto {
		format = GuessFormat(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case FormatBAM:
		return ReadBAM(f, opts.CellID, opts.Workers)
	case FormatTable, FormatPairs, FormatSAM:
		r, err := Decompress(f)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		switch format {
		case FormatPairs:
			return ReadPairs(r, opts.CellID)
		case FormatSAM:
			return ReadSAM(r, opts.CellID)
		default:
			return ReadTable(r)
		}
	}
	return nil, errs.Configuration("unknown input format %q", format)
}

// ReadTable parses a CSV or TSV contact table with a header line. The
// separator is taken from the header.
func ReadTable(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errs.Malformed("empty contact table")
	}
	cr := csv.NewReader(br)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	headerLine := first
	if nl := bytes.IndexByte(first, '\n'); nl >= 0 {
		headerLine = first[:nl]
	}
	if bytes.IndexByte(headerLine, '\t') >= 0 {
		cr.Comma = '\t'
	}

	header, err := cr.Read()
	if err != nil {
		return nil, errs.Malformed("contact table header: %v", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errs.Malformed("contact table missing column(s): %s", strings.Join(missing, ", "))
	}
	iMapQ, hasMapQ := cols[ColMapQual]

	var records []Record
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errs.Malformed("contact table line %d: %v", line+1, err)
		}
		line++
		if len(fields) < len(header) {
			return nil, errs.Malformed("contact table line %d: expected %d fields, got %d", line, len(header), len(fields))
		}
		rec := Record{CellID: fields[cols[ColCellID]], Chrom1: fields[cols[ColChrom1]], Chrom2: fields[cols[ColChrom2]]}
		if rec.Pos1, err = parsePos(fields[cols[ColPos1]]); err != nil {
			return nil, errs.Malformed("contact table line %d: %v", line, err)
		}
		if rec.Pos2, err = parsePos(fields[cols[ColPos2]]); err != nil {
			return nil, errs.Malformed("contact table line %d: %v", line, err)
		}
		if hasMapQ && fields[iMapQ] != "" {
			q, err := strconv.ParseFloat(fields[iMapQ], 64)
			if err != nil {
				return nil, errs.Malformed("contact table line %d: %v", line, err)
			}
			rec.MapQ, rec.HasMapQ = int(q), true
		}
		records = append(records, rec)
	}
	return records, nil
}

// parsePos accepts integers and integral floats ("1000000.0").
func parsePos(s string) (int, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// ReadPairs parses a 4DN pairs stream. Positions are converted from 1-based
// to 0-based. Columns come from the "#columns:" header line, defaulting to
// readID chrom1 pos1 chrom2 pos2. If mapq1 and mapq2 columns are present,
// the lowest is kept.
func ReadPairs(r io.Reader, cellID string) ([]Record, error) {
	cols := map[string]int{"chrom1": 1, "pos1": 2, "chrom2": 3, "pos2": 4}
	tscanner := bufio.NewScanner(r)
	tscanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var records []Record
	var iline int
	for tscanner.Scan() {
		iline++
		line := tscanner.Text()
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#columns:") {
				cols = make(map[string]int)
				for i, c := range strings.Fields(strings.TrimPrefix(line, "#columns:")) {
					cols[c] = i
				}
				for _, c := range []string{"chrom1", "pos1", "chrom2", "pos2"} {
					if _, ok := cols[c]; !ok {
						return nil, errs.Malformed("pairs header missing column %s", c)
					}
				}
			}
			continue
		}
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < len(cols) {
			return nil, errs.Malformed("pairs line %d: expected %d fields, got %d", iline, len(cols), len(fields))
		}
		rec := Record{CellID: cellID, Chrom1: fields[cols["chrom1"]], Chrom2: fields[cols["chrom2"]]}
		var err error
		if rec.Pos1, err = strconv.Atoi(fields[cols["pos1"]]); err != nil {
			return nil, errs.Malformed("pairs line %d: %v", iline, err)
		}
		if rec.Pos2, err = strconv.Atoi(fields[cols["pos2"]]); err != nil {
			return nil, errs.Malformed("pairs line %d: %v", iline, err)
		}
		rec.Pos1--
		rec.Pos2--
		i1, ok1 := cols["mapq1"]
		i2, ok2 := cols["mapq2"]
		if ok1 && ok2 {
			q1, err1 := strconv.Atoi(fields[i1])
			q2, err2 := strconv.Atoi(fields[i2])
			if err1 == nil && err2 == nil {
				rec.MapQ, rec.HasMapQ = min(q1, q2), true
			}
		}
		records = append(records, rec)
	}
	if err := tscanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
