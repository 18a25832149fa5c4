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

package writers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sragetl/core"
)

// Mock writer for CSV testing
type mockWriteCloser struct {
	bytes.Buffer
	closed    bool
	failWrite bool
	failClose bool
	mu        sync.Mutex
}

func (m *mockWriteCloser) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Buffer.Write(p)
}

func (m *mockWriteCloser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.failClose {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (m *mockWriteCloser) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Buffer.String()
}

func (m *mockWriteCloser) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func readCSV(t *testing.T, r io.Reader, comma rune) [][]string {
	t.Helper()
	reader := csv.NewReader(r)
	reader.Comma = comma
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_BasicFunctionality(t *testing.T) {
	mock := &mockWriteCloser{}
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)

	err = writer.Write(context.Background(), core.Record{"sg_uf": "SP", "evolucao": "cura", "idade": "36"})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rows := readCSV(t, strings.NewReader(mock.String()), ',')
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"evolucao", "idade", "sg_uf"}, rows[0], "sorted keys without explicit headers")
	assert.Equal(t, []string{"cura", "36", "SP"}, rows[1])
	assert.True(t, mock.IsClosed())
}

func TestCSVWriter_WithHeaders(t *testing.T) {
	mock := &mockWriteCloser{}
	headers := []string{"dt_notific", "evolucao", "is_cure"}
	writer, err := NewCSVWriter(mock, WithHeaders(headers), WithComma(';'))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"is_cure": "true", "evolucao": "cura", "dt_notific": "01/01/2021"}))
	require.NoError(t, writer.Write(ctx, core.Record{"evolucao": "óbito por outras causas"}))
	require.NoError(t, writer.Close())

	rows := readCSV(t, strings.NewReader(mock.String()), ';')
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"01/01/2021", "cura", "true"}, rows[1])
	assert.Equal(t, []string{"", "óbito por outras causas", ""}, rows[2])
}

func TestCSVWriter_NoHeaders(t *testing.T) {
	mock := &mockWriteCloser{}
	writer, err := NewCSVWriter(mock, WithWriteHeader(false), WithHeaders([]string{"name", "value"}))
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"name": "test", "value": "data"}))
	require.NoError(t, writer.Close())

	assert.Equal(t, "test,data", strings.TrimSpace(mock.String()))
}

func TestCSVWriter_BatchedWrites(t *testing.T) {
	mock := &mockWriteCloser{}
	writer, err := NewCSVWriter(mock, WithCSVBatchSize(3), WithHeaders([]string{"id"}))
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, writer.Write(ctx, core.Record{"id": id}))
	}
	assert.Equal(t, int64(1), writer.Stats().FlushCount)

	require.NoError(t, writer.Close())
	rows := readCSV(t, strings.NewReader(mock.String()), ',')
	assert.Len(t, rows, 6)

	stats := writer.Stats()
	assert.Equal(t, int64(5), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.FlushCount)
}

func TestCSVWriter_EmptyValueTracking(t *testing.T) {
	mock := &mockWriteCloser{}
	writer, err := NewCSVWriter(mock, WithHeaders([]string{"a", "b"}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"a": "", "b": "x"}))
	require.NoError(t, writer.Write(ctx, core.Record{"a": "", "b": ""}))
	require.NoError(t, writer.Close())

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.EmptyValueCounts["a"])
	assert.Equal(t, int64(1), stats.EmptyValueCounts["b"])
}

func TestCSVWriter_Gzip(t *testing.T) {
	mock := &mockWriteCloser{}
	writer, err := NewCSVWriter(mock, WithGzip(gzip.BestSpeed), WithHeaders([]string{"sg_uf"}))
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"sg_uf": "RJ"}))
	require.NoError(t, writer.Close())

	gz, err := gzip.NewReader(bytes.NewReader(mock.Bytes()))
	require.NoError(t, err)
	rows := readCSV(t, gz, ',')
	assert.Equal(t, [][]string{{"sg_uf"}, {"RJ"}}, rows)
}

func TestCSVWriter_ErrorHandling(t *testing.T) {
	t.Run("header_write_error", func(t *testing.T) {
		mock := &mockWriteCloser{failWrite: true}
		writer, err := NewCSVWriter(mock, WithCSVBatchSize(1))
		require.NoError(t, err)

		err = writer.Write(context.Background(), core.Record{"test": "value"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "csv writer")

		mock.failWrite = false
		err = writer.Write(context.Background(), core.Record{"test": "value"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error state")
	})

	t.Run("close_error", func(t *testing.T) {
		mock := &mockWriteCloser{failClose: true}
		writer, err := NewCSVWriter(mock)
		require.NoError(t, err)

		require.NoError(t, writer.Write(context.Background(), core.Record{"test": "value"}))
		assert.Error(t, writer.Close())
	})
}
