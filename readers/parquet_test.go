//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of sragetl.
//
// sragetl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// sragetl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with sragetl. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
	"github.com/aaronlmathis/sragetl/writers"
)

func writeParquet(t *testing.T, filename string, records ...core.Record) {
	t.Helper()
	w, err := writers.NewParquetWriter(filename, writers.WithParquetColumns([]model.Column{
		{Name: "DT_NOTIFIC", Kind: model.KindDate},
		{Name: "SG_UF", Kind: model.KindText},
		{Name: "NU_IDADE_N", Kind: model.KindInteger},
		{Name: "FLAG", Kind: model.KindBool},
	}), writers.WithBatchSize(2))
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(context.Background(), r))
	}
	require.NoError(t, w.Close())
}

func TestParquetReader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "INFLUD21.parquet")
	writeParquet(t, filename,
		core.Record{"DT_NOTIFIC": "05/01/2021", "SG_UF": "SP", "NU_IDADE_N": "36", "FLAG": "true"},
		core.Record{"DT_NOTIFIC": "", "SG_UF": "", "NU_IDADE_N": "", "FLAG": "false"},
		core.Record{"SG_UF": "RJ"},
	)

	r, err := NewParquetReader(filename, WithParquetBatchSize(2))
	require.NoError(t, err)
	records := readAll(t, r)
	require.Len(t, records, 3)

	assert.Equal(t, core.Record{"DT_NOTIFIC": "05/01/2021", "SG_UF": "SP", "NU_IDADE_N": "36", "FLAG": "true"}, records[0])
	assert.Equal(t, core.Record{"SG_UF": "", "FLAG": "false"}, records[1], "null cells are absent, empty text stays empty")
	assert.Equal(t, core.Record{"SG_UF": "RJ"}, records[2])

	stats := r.Stats()
	assert.Equal(t, int64(3), stats.RecordsRead)
	assert.Equal(t, int64(2), stats.NullValueCounts["DT_NOTIFIC"])

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Read(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestParquetReader_Projection(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "srag.parquet")
	writeParquet(t, filename, core.Record{"SG_UF": "MG", "NU_IDADE_N": "70"})

	r, err := NewParquetReader(filename, WithParquetProjection("SG_UF"))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []core.Record{{"SG_UF": "MG"}}, readAll(t, r))

	_, err = NewParquetReader(filename, WithParquetProjection("MISSING"))
	var pe *ParquetReaderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "column_projection", pe.Op)
}

func TestParquetReader_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewParquetReader(filepath.Join(dir, "missing.parquet"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.parquet")
	require.NoError(t, os.WriteFile(bad, []byte("not parquet"), 0o600))
	_, err = NewParquetReader(bad)
	var pe *ParquetReaderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "create_reader", pe.Op)
}

func TestFileOpener_Parquet(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "srag.PARQUET")
	writeParquet(t, filename, core.Record{"SG_UF": "BA"})

	src, err := FileOpener(filename, ';')(context.Background())
	require.NoError(t, err)
	defer src.Close()
	_, ok := src.(*ParquetReader)
	assert.True(t, ok)

	_, err = NewFormatReader("s3/objects/srag.parquet", io.NopCloser(nil), ';')
	assert.Error(t, err)
}
