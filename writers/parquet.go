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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// Package writers provides core.DataSink implementations for the formats
// sragetl can produce.
//
// This file implements a batching Parquet writer. Column types come from
// the schema's serialized columns: text, int64, boolean and date32.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "flush_batch", "open_file")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Columns      []model.Column       // Typed columns (optional, otherwise all text)
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64
	Metadata     map[string]string // File metadata
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithParquetColumns fixes the column order and types.
func WithParquetColumns(cols []model.Column) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Columns = append([]model.Column(nil), cols...)
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets key/value metadata stored in the file schema.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	return result
}

// ParquetWriter implements core.DataSink for Parquet files.
type ParquetWriter struct {
	file         *os.File
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	columns      []model.Column
	recordBuffer []core.Record
	builders     []array.Builder
	allocator    memory.Allocator
	opts         *ParquetWriterOptions
	stats        WriterStats
	closed       bool
	errorState   bool
	mu           sync.Mutex
}

// NewParquetWriter creates a new Parquet writer for a file. Parent
// directories are created as needed.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &ParquetWriterError{
				Op:  "create_directory",
				Err: fmt.Errorf("failed to create directory %s: %w", dir, err),
			}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{
			Op:  "open_file",
			Err: fmt.Errorf("failed to create parquet file %s: %w", filename, err),
		}
	}

	p := &ParquetWriter{
		file:         file,
		columns:      opts.Columns,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		opts:         opts,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}
	if len(p.columns) > 0 {
		if err := p.initializeSchema(); err != nil {
			file.Close()
			return nil, err
		}
	}
	return p, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	if p.schema == nil {
		p.columns = textColumns(record)
		if err := p.initializeSchema(); err != nil {
			p.errorState = true
			return err
		}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushBatch()
}

// Close implements the core.DataSink interface. A writer that never saw a
// record and has no columns produces an empty file.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.flushBatch(); err != nil {
		return &ParquetWriterError{
			Op:  "flush_remaining",
			Err: fmt.Errorf("failed to flush remaining records: %w", err),
		}
	}

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	if p.writer != nil {
		// pqarrow closes the underlying file.
		if err := p.writer.Close(); err != nil {
			return &ParquetWriterError{
				Op:  "close_writer",
				Err: fmt.Errorf("failed to close parquet writer: %w", err),
			}
		}
		p.writer = nil
		return nil
	}
	return p.file.Close()
}

// textColumns is used when no columns were configured: the sorted keys of
// the first record, all text.
func textColumns(record core.Record) []model.Column {
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	sort.Strings(names)
	cols := make([]model.Column, len(names))
	for i, name := range names {
		cols[i] = model.Column{Name: name, Kind: model.KindText}
	}
	return cols
}

func arrowType(kind model.Kind) arrow.DataType {
	switch kind {
	case model.KindInteger:
		return arrow.PrimitiveTypes.Int64
	case model.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case model.KindDate:
		return arrow.FixedWidthTypes.Date32
	}
	return arrow.BinaryTypes.String
}

// initializeSchema builds the Arrow schema, the file writer and one
// builder per column.
func (p *ParquetWriter) initializeSchema() error {
	fields := make([]arrow.Field, len(p.columns))
	for i, col := range p.columns {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col.Kind), Nullable: true}
	}

	var metadata *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		keys := make([]string, 0, len(p.opts.Metadata))
		for k := range p.opts.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = p.opts.Metadata[k]
		}
		md := arrow.NewMetadata(keys, values)
		metadata = &md
	}
	p.schema = arrow.NewSchema(fields, metadata)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(p.schema, p.file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}
	p.writer = writer

	p.builders = make([]array.Builder, len(fields))
	for i, field := range fields {
		p.builders[i] = array.NewBuilder(p.allocator, field.Type)
	}
	return nil
}

// flushBatch writes the current buffer as one Arrow record (must hold mutex).
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 || p.writer == nil {
		return nil
	}
	start := time.Now()

	for _, record := range p.recordBuffer {
		for i, col := range p.columns {
			raw, ok := record[col.Name]
			if !ok || (raw == "" && col.Kind != model.KindText) {
				p.stats.NullValueCounts[col.Name]++
				p.builders[i].AppendNull()
				continue
			}
			if err := appendValue(p.builders[i], col, raw); err != nil {
				p.discardBatch()
				return &ParquetWriterError{Op: "convert", Err: err}
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, b := range p.builders {
		arrays[i] = b.NewArray()
	}
	rec := array.NewRecord(p.schema, arrays, int64(len(p.recordBuffer)))
	for _, a := range arrays {
		a.Release()
	}
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write arrow record: %w", err),
		}
	}

	p.recordBuffer = p.recordBuffer[:0]
	p.stats.BatchesWritten++
	p.stats.LastFlushTime = time.Now()
	p.stats.FlushDuration += time.Since(start)
	return nil
}

// discardBatch drops the buffered records and whatever the builders hold.
func (p *ParquetWriter) discardBatch() {
	for _, b := range p.builders {
		b.NewArray().Release()
	}
	p.recordBuffer = p.recordBuffer[:0]
}

func appendValue(builder array.Builder, col model.Column, raw string) error {
	v, err := col.Parse(raw)
	if err != nil {
		return fmt.Errorf("column %s: %w", col.Name, err)
	}
	switch b := builder.(type) {
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.Date32Builder:
		b.Append(arrow.Date32(v.(time.Time).Unix() / 86400))
	default:
		return fmt.Errorf("column %s: unsupported builder %T", col.Name, builder)
	}
	return nil
}
