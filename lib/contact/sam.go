//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package contact

import (
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

var (
	tagCellBarcode = []byte{'C', 'B'}
	tagMateMapQ    = []byte{'M', 'Q'}
)

// ReadSAM extracts contacts from Hi-C read pairs in a SAM stream.
func ReadSAM(r io.Reader, cellID string) ([]Record, error) {
	rr, err := sam.NewReader(r)
	if err != nil {
		return nil, err
	}
	return readRecords(rr, cellID)
}

// ReadBAM extracts contacts from Hi-C read pairs in a BAM stream.
func ReadBAM(r io.Reader, cellID string, nWorker int) ([]Record, error) {
	rr, err := bam.NewReader(r, max(nWorker, 1))
	if err != nil {
		return nil, err
	}
	defer rr.Close()
	return readRecords(rr, cellID)
}

func readRecords(rr sam.RecordReader, cellID string) ([]Record, error) {
	var records []Record
	for {
		aread, err := rr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if rec, ok := PairContact(aread, cellID); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// PairContact converts the first mate of a mapped read pair to a contact.
// Secondary, supplementary, duplicate and QC-failed alignments are skipped,
// as are pairs with an unmapped mate. The cell id comes from the CB tag if
// present. Mapping quality is the lowest of the read and of its mate (MQ tag).
func PairContact(aread *sam.Record, cellID string) (Record, bool) {
	f := aread.Flags
	if f&sam.Paired == 0 || f&sam.Read1 == 0 {
		return Record{}, false
	}
	if f&(sam.Unmapped|sam.MateUnmapped|sam.Secondary|sam.Supplementary|sam.Duplicate|sam.QCFail) != 0 {
		return Record{}, false
	}
	if aread.Ref == nil || aread.MateRef == nil {
		return Record{}, false
	}
	rec := Record{
		CellID:  cellID,
		Chrom1:  aread.Ref.Name(),
		Pos1:    aread.Pos,
		Chrom2:  aread.MateRef.Name(),
		Pos2:    aread.MatePos,
		MapQ:    int(aread.MapQ),
		HasMapQ: aread.MapQ != 255,
	}
	if tag, found := aread.Tag(tagCellBarcode); found {
		if v, ok := tag.Value().(string); ok {
			rec.CellID = v
		}
	}
	if tag, found := aread.Tag(tagMateMapQ); found {
		var mq int
		switch v := tag.Value().(type) {
		case uint8:
			mq = int(v)
		case uint16:
			mq = int(v)
		case int8:
			mq = int(v)
		case int16:
			mq = int(v)
		case int32:
			mq = int(v)
		case uint32:
			mq = int(v)
		}
		rec.MapQ = min(rec.MapQ, mq)
	}
	return rec, true
}
