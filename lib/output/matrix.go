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
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"io"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
	"git.sr.ht/~vejnar/ContactAbacus/lib/hicmatrix"
)

const matrixVersion uint8 = 1

// Matrix formats
const (
	FormatMatrixCSV    = "csv"
	FormatMatrixBinary = "binary"
)

// layoutChecksum is the adler32 checksum of the chromosome lengths.
func layoutChecksum(layout *genome.Layout) (uint32, error) {
	buf := new(bytes.Buffer)
	for _, c := range layout.Chroms() {
		if err := binary.Write(buf, binary.LittleEndian, uint32(c.Length)); err != nil {
			return 0, err
		}
	}
	return adler32.Checksum(buf.Bytes()), nil
}

// WriteMatrix writes m as csv (one row per bin, prefixed by chromosome and
// start) or binary. The binary format is: version (uint8), number of bins
// (uint32), layout checksum (uint32), then the upper triangle (diagonal
// included) row by row as float32, all little endian.
func WriteMatrix(w io.Writer, m *hicmatrix.Matrix, format string) error {
	layout := m.Layout()
	switch format {
	case FormatMatrixCSV:
		bw := bufio.NewWriter(w)
		for i := 0; i < m.N(); i++ {
			name, start, _ := binCoords(layout, i)
			bw.WriteString(name)
			bw.WriteByte(',')
			bw.WriteString(formatValue(float64(start)))
			for j := 0; j < m.N(); j++ {
				bw.WriteByte(',')
				bw.WriteString(formatValue(m.At(i, j)))
			}
			bw.WriteByte('\n')
		}
		return bw.Flush()
	case FormatMatrixBinary:
		checksum, err := layoutChecksum(layout)
		if err != nil {
			return err
		}
		bw := bufio.NewWriter(w)
		for _, v := range []interface{}{matrixVersion, uint32(m.N()), checksum} {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		row := make([]float32, 0, m.N())
		for i := 0; i < m.N(); i++ {
			row = row[:0]
			for j := i; j < m.N(); j++ {
				row = append(row, float32(m.At(i, j)))
			}
			if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
				return err
			}
		}
		return bw.Flush()
	}
	return errs.Configuration("unknown matrix format %q", format)
}

// ReadMatrix reads a binary matrix written on layout.
func ReadMatrix(r io.Reader, layout *genome.Layout) (*hicmatrix.Matrix, error) {
	br := bufio.NewReader(r)
	var version uint8
	var n, checksum uint32
	for _, v := range []interface{}{&version, &n, &checksum} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, errs.Malformed("matrix header: %s", err)
		}
	}
	if version != matrixVersion {
		return nil, errs.Malformed("matrix version %d, expected %d", version, matrixVersion)
	}
	if int(n) != layout.NBins() {
		return nil, errs.Malformed("matrix has %d bins, layout has %d", n, layout.NBins())
	}
	expected, err := layoutChecksum(layout)
	if err != nil {
		return nil, err
	}
	if checksum != expected {
		return nil, errs.Malformed("matrix was written on another layout (checksum %d, expected %d)", checksum, expected)
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	row := make([]float32, n)
	for i := 0; i < int(n); i++ {
		upper := row[:int(n)-i]
		if err := binary.Read(br, binary.LittleEndian, upper); err != nil {
			return nil, errs.Malformed("matrix row %d: %s", i, err)
		}
		for k, v := range upper {
			rows[i][i+k] = float64(v)
			rows[i+k][i] = float64(v)
		}
	}
	return hicmatrix.FromDense(layout, rows)
}
