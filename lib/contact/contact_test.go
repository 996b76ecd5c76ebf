//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package contact

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

const tableCSV = `cell_id,chromosome_1,position_1,chromosome_2,position_2,mapping_quality
c1,chr1,100,chr1,5000,60
c1,chr1,200,chr2,300.0,10
c2,chr2,7,chr2,9,
`

var tableRecords = []Record{
	{CellID: "c1", Chrom1: "chr1", Pos1: 100, Chrom2: "chr1", Pos2: 5000, MapQ: 60, HasMapQ: true},
	{CellID: "c1", Chrom1: "chr1", Pos1: 200, Chrom2: "chr2", Pos2: 300, MapQ: 10, HasMapQ: true},
	{CellID: "c2", Chrom1: "chr2", Pos1: 7, Chrom2: "chr2", Pos2: 9},
}

func TestReadTable(t *testing.T) {
	records, err := ReadTable(strings.NewReader(tableCSV))
	require.NoError(t, err)
	assert.Equal(t, tableRecords, records)

	tsv := strings.ReplaceAll(tableCSV, ",", "\t")
	records, err = ReadTable(strings.NewReader(tsv))
	require.NoError(t, err)
	assert.Equal(t, tableRecords, records)
}

func TestReadTableMalformed(t *testing.T) {
	cases := map[string]string{
		"missing column": "cell_id,chromosome_1,position_1,chromosome_2\nc1,chr1,1,chr1\n",
		"bad position":   "cell_id,chromosome_1,position_1,chromosome_2,position_2\nc1,chr1,x,chr1,2\n",
		"short line":     "cell_id,chromosome_1,position_1,chromosome_2,position_2\nc1,chr1,1\n",
		"empty":          "",
	}
	for name, in := range cases {
		_, err := ReadTable(strings.NewReader(in))
		assert.True(t, errors.Is(err, errs.ErrMalformedInput), "%s: %v", name, err)
	}
}

const pairsText = `## pairs format v1.0
#chromsize: chr1 10000000
#columns: readID chrom1 pos1 chrom2 pos2 strand1 strand2 mapq1 mapq2
r1	chr1	101	chr1	2001	+	-	60	30
r2	chr1	11	chr2	21	+	+	5	40
`

func TestReadPairs(t *testing.T) {
	records, err := ReadPairs(strings.NewReader(pairsText), "cellP")
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{CellID: "cellP", Chrom1: "chr1", Pos1: 100, Chrom2: "chr1", Pos2: 2000, MapQ: 30, HasMapQ: true},
		{CellID: "cellP", Chrom1: "chr1", Pos1: 10, Chrom2: "chr2", Pos2: 20, MapQ: 5, HasMapQ: true},
	}, records)

	// Default columns
	records, err = ReadPairs(strings.NewReader("r1\tchr1\t1\tchr1\t5\n"), "c")
	require.NoError(t, err)
	assert.Equal(t, []Record{{CellID: "c", Chrom1: "chr1", Pos1: 0, Chrom2: "chr1", Pos2: 4}}, records)

	_, err = ReadPairs(strings.NewReader("#columns: readID chrom1 pos1\n"), "c")
	assert.True(t, errors.Is(err, errs.ErrMalformedInput))
}

const samText = "@HD\tVN:1.6\tSO:unsorted\n" +
	"@SQ\tSN:chr1\tLN:10000000\n" +
	"@SQ\tSN:chr2\tLN:5000000\n" +
	"r1\t65\tchr1\t101\t60\t10M\tchr2\t2001\t0\tAAAAAAAAAA\t*\tCB:Z:cellA\tMQ:i:20\n" +
	"r1\t129\tchr2\t2001\t20\t10M\tchr1\t101\t0\tAAAAAAAAAA\t*\n" +
	"r2\t73\tchr1\t501\t60\t10M\t=\t501\t0\tAAAAAAAAAA\t*\n" +
	"r3\t97\tchr1\t1001\t40\t10M\t=\t3001\t0\tAAAAAAAAAA\t*\n"

func TestReadSAM(t *testing.T) {
	records, err := ReadSAM(strings.NewReader(samText), "default")
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{CellID: "cellA", Chrom1: "chr1", Pos1: 100, Chrom2: "chr2", Pos2: 2000, MapQ: 20, HasMapQ: true},
		{CellID: "default", Chrom1: "chr1", Pos1: 1000, Chrom2: "chr1", Pos2: 3000, MapQ: 40, HasMapQ: true},
	}, records)
}

func writeCompressed(t *testing.T, path string, kind string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch kind {
	case "gz":
		w = gzip.NewWriter(&buf)
	case "bgz":
		w = bgzf.NewWriter(&buf, 1)
	case "zst":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case "lz4":
		w = lz4.NewWriter(&buf)
	}
	if w == nil {
		buf.Write(data)
	} else {
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0666))
}

func TestReadCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"", "gz", "bgz", "zst", "lz4"} {
		path := filepath.Join(dir, "contacts.csv")
		if kind != "" {
			path += "." + kind
		}
		writeCompressed(t, path, kind, []byte(tableCSV))
		records, err := Read(path, ReadOptions{})
		require.NoError(t, err, kind)
		assert.Equal(t, tableRecords, records, kind)
	}

	path := filepath.Join(dir, "cell.pairs.gz")
	writeCompressed(t, path, "bgz", []byte(pairsText))
	records, err := Read(path, ReadOptions{CellID: "cellP"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	path = filepath.Join(dir, "cell.sam")
	writeCompressed(t, path, "", []byte(samText))
	records, err = Read(path, ReadOptions{CellID: "x"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = Read(path, ReadOptions{Format: "cool"})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestGuessFormat(t *testing.T) {
	assert.Equal(t, FormatPairs, GuessFormat("/data/cell1.pairs.gz"))
	assert.Equal(t, FormatPairs, GuessFormat("cell1.PAIRS"))
	assert.Equal(t, FormatBAM, GuessFormat("cell1.bam"))
	assert.Equal(t, FormatSAM, GuessFormat("cell1.sam.zst"))
	assert.Equal(t, FormatTable, GuessFormat("cells.tsv.lz4"))
}

func TestValidateAndGroup(t *testing.T) {
	assert.True(t, errors.Is(Validate(nil), errs.ErrMalformedInput))
	assert.True(t, errors.Is(Validate([]Record{{Chrom1: "chr1", Pos1: 1}}), errs.ErrMalformedInput))
	assert.True(t, errors.Is(Validate([]Record{{Chrom1: "chr1", Pos1: -1, Chrom2: "chr1"}}), errs.ErrMalformedInput))
	require.NoError(t, Validate(tableRecords))

	cells := GroupByCell(tableRecords, nil)
	require.Len(t, cells, 2)
	assert.Equal(t, "c1", cells[0].ID)
	assert.Len(t, cells[0].Contacts, 2)
	assert.Equal(t, "c2", cells[1].ID)

	cells = GroupByCell(tableRecords, CellSet([]string{"c2"}))
	require.Len(t, cells, 1)
	assert.Equal(t, "c2", cells[0].ID)

	assert.True(t, tableRecords[0].IsCis())
	assert.False(t, tableRecords[1].IsCis())
	assert.Equal(t, 4900, tableRecords[0].Span())
}
