//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
	"git.sr.ht/~vejnar/ContactAbacus/lib/genome"
	"git.sr.ht/~vejnar/ContactAbacus/lib/output"
)

// writeInputs writes a two cell contact table on a 10 Mb chromosome and its
// sizes.
func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("cell_id\tchromosome_1\tposition_1\tchromosome_2\tposition_2\n")
	for _, cell := range []string{"c1", "c2"} {
		for k := 0; k < 100; k++ {
			p1 := k * 100_000
			p2 := min(p1+(k%7)*300_000, 9_999_999)
			fmt.Fprintf(&b, "%s\tchr1\t%d\tchr1\t%d\n", cell, p1, p2)
		}
	}
	pathContacts := filepath.Join(dir, "contacts.tsv")
	require.NoError(t, os.WriteFile(pathContacts, []byte(b.String()), 0666))
	pathSizes := filepath.Join(dir, "sizes.tsv")
	require.NoError(t, os.WriteFile(pathSizes, []byte("chr1\t10000000\n"), 0666))
	return pathContacts, pathSizes
}

func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute("version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestNewLogger(t *testing.T) {
	for _, c := range []struct {
		verbose bool
		level   int
		lowest  zapcore.Level
	}{
		{false, 0, zapcore.WarnLevel},
		{true, 0, zapcore.InfoLevel},
		{false, 1, zapcore.InfoLevel},
		{true, 3, zapcore.DebugLevel},
	} {
		logger, err := newLogger(c.verbose, c.level)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(c.lowest))
		assert.False(t, logger.Core().Enabled(c.lowest-1))
	}
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	pathContacts, pathSizes := writeInputs(t, dir)
	pathFeatures := filepath.Join(dir, "features.csv")
	pathReport := filepath.Join(dir, "report.json")
	pathPofS := filepath.Join(dir, "pofs.tsv")

	_, err := execute("extract",
		"--path_contacts", pathContacts,
		"--path_sizes", pathSizes,
		"--path_features", pathFeatures,
		"--path_pofs", pathPofS,
		"--path_report", pathReport,
		"--num_worker", "2",
		"--scale", "2")
	require.NoError(t, err)

	b, err := os.ReadFile(pathFeatures)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "cell_id,contact_type_AA,"))
	assert.True(t, strings.HasPrefix(lines[1], "c1,"))
	assert.True(t, strings.HasPrefix(lines[2], "c2,"))
	// Same contacts, same features
	assert.Equal(t, strings.TrimPrefix(lines[1], "c1"), strings.TrimPrefix(lines[2], "c2"))

	b, err = os.ReadFile(pathPofS)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "c1\t"))

	b, err = os.ReadFile(pathReport)
	require.NoError(t, err)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &report))
	assert.Equal(t, float64(200), report["n_contact"])
	summary := report["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["n_cell"])
	assert.Equal(t, float64(0), summary["n_failed"])
	assert.Equal(t, float64(0), summary["n_timed_out"])
	params := report["params"].(map[string]interface{})
	assert.Equal(t, float64(2), params["scale"])
}

func TestExtractCommandCells(t *testing.T) {
	dir := t.TempDir()
	pathContacts, pathSizes := writeInputs(t, dir)
	pathFeatures := filepath.Join(dir, "features.tsv")

	_, err := execute("extract",
		"--path_contacts", pathContacts,
		"--path_sizes", pathSizes,
		"--path_features", pathFeatures,
		"--format_features", "tsv",
		"--no_header",
		"--cells", "c2")
	require.NoError(t, err)
	b, err := os.ReadFile(pathFeatures)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "c2\t"))
}

func TestExtractCommandErrors(t *testing.T) {
	dir := t.TempDir()
	pathContacts, pathSizes := writeInputs(t, dir)

	_, err := execute("extract", "--path_sizes", pathSizes)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = execute("extract", "--path_contacts", pathContacts, "--path_sizes", pathSizes, "--scale", "0")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = execute("extract", "--path_contacts", pathContacts, "--path_sizes", pathSizes, "--format_features", "csv+rar",
		"--path_features", filepath.Join(dir, "f"))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestBinCommand(t *testing.T) {
	dir := t.TempDir()
	pathContacts, pathSizes := writeInputs(t, dir)
	prefix := filepath.Join(dir, "m_")

	_, err := execute("bin",
		"--path_contacts", pathContacts,
		"--path_sizes", pathSizes,
		"--path_matrix", prefix)
	require.NoError(t, err)

	layout, err := genome.NewLayout([]genome.ChromSize{{Name: "chr1", Length: 10_000_000}}, 1_000_000)
	require.NoError(t, err)
	for _, cell := range []string{"c1", "c2"} {
		f, err := os.Open(prefix + cell + ".mat")
		require.NoError(t, err)
		m, err := output.ReadMatrix(f, layout)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 10, m.N())
		assert.True(t, m.IsSymmetric())
		assert.Greater(t, m.Total(), 0.)
	}

	_, err = execute("bin",
		"--path_contacts", pathContacts,
		"--path_sizes", pathSizes,
		"--path_matrix", prefix,
		"--format_matrix", "csv+gz",
		"--pooled")
	require.NoError(t, err)
	_, err = os.Stat(prefix + "pooled.csv.gz")
	assert.NoError(t, err)
}

func TestMatrixPath(t *testing.T) {
	assert.Equal(t, "out/m_c1.mat", matrixPath("out/m_", "c1", "binary"))
	assert.Equal(t, "out/m_c1.csv.zst", matrixPath("out/m_", "c1", "csv+zst"))
}
