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
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// ParquetReaderError provides structured error information for Parquet reader operations.
type ParquetReaderError struct {
	Op  string
	Err error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReader reads raw rows from a local Parquet export. Every value is
// rendered as the string the delimited export would carry: dates as
// dd/mm/yyyy, numbers in decimal. Null cells are left out of the record.
type ParquetReader struct {
	fileHandle      *os.File
	recordReader    pqarrow.RecordReader
	currentBatch    arrow.Record
	currentBatchIdx int
	stats           ParquetReaderStats
	opts            *ParquetReaderOptions
}

// ParquetReaderStats holds statistics about the reader.
type ParquetReaderStats struct {
	RecordsRead     int64
	BatchesRead     int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader.
type ParquetReaderOptions struct {
	BatchSize int64
	Columns   []string
}

// ParquetReaderOption represents a configuration function.
type ParquetReaderOption func(*ParquetReaderOptions)

// WithParquetBatchSize sets the rows decoded per batch.
func WithParquetBatchSize(size int64) ParquetReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.BatchSize = size
	}
}

// WithParquetProjection limits the columns read.
func WithParquetProjection(columns ...string) ParquetReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.Columns = append([]string(nil), columns...)
	}
}

// NewParquetReader opens a Parquet file and prepares an Arrow RecordReader.
func NewParquetReader(filename string, options ...ParquetReaderOption) (*ParquetReader, error) {
	opts := (&ParquetReaderOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}

	arrowReader, err := pqarrow.NewFileReader(parquetReader,
		pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, memory.NewGoAllocator())
	if err != nil {
		f.Close()
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		f.Close()
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	for _, name := range opts.Columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			f.Close()
			return nil, &ParquetReaderError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
		}
		colIndices = append(colIndices, idx[0])
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		f.Close()
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}

	return &ParquetReader{
		fileHandle:   f,
		recordReader: recordReader,
		stats:        ParquetReaderStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Read implements the DataSource interface.
func (p *ParquetReader) Read(ctx context.Context) (core.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &ParquetReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.recordReader == nil {
		return nil, io.EOF
	}
	if p.currentBatch == nil || p.currentBatchIdx >= int(p.currentBatch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ParquetReaderError{Op: "load_batch", Err: err}
		}
	}

	result, err := p.extractRecord(p.currentBatch, p.currentBatchIdx)
	if err != nil {
		return nil, &ParquetReaderError{Op: "read", Err: fmt.Errorf("row %d: %w", p.stats.RecordsRead+1, err)}
	}
	p.currentBatchIdx++
	p.stats.RecordsRead++
	return result, nil
}

// Close releases resources and closes the underlying file.
func (p *ParquetReader) Close() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.fileHandle != nil {
		err := p.fileHandle.Close()
		p.fileHandle = nil
		return err
	}
	return nil
}

// Stats returns statistics about the reader.
func (p *ParquetReader) Stats() ParquetReaderStats {
	return p.stats
}

func (opts *ParquetReaderOptions) withDefaults() *ParquetReaderOptions {
	result := &ParquetReaderOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	return result
}

func (p *ParquetReader) loadNextBatch() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}

	// The reader owns the batch it returns; Retain keeps it past the next Next call.
	if !p.recordReader.Next() {
		if err := p.recordReader.Err(); err != nil && err != io.EOF {
			return err
		}
		return io.EOF
	}
	rec := p.recordReader.Record()
	if rec == nil || rec.NumRows() == 0 {
		return io.EOF
	}
	rec.Retain()

	p.currentBatch = rec
	p.currentBatchIdx = 0
	p.stats.BatchesRead++
	return nil
}

func (p *ParquetReader) extractRecord(batch arrow.Record, pos int) (core.Record, error) {
	res := make(core.Record, batch.NumCols())
	sch := batch.Schema()
	for i := 0; i < int(batch.NumCols()); i++ {
		name := sch.Field(i).Name
		col := batch.Column(i)
		if col.IsNull(pos) {
			p.stats.NullValueCounts[name]++
			continue
		}
		v, err := formatValue(col, pos)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		res[name] = v
	}
	return res, nil
}

// formatValue renders one non-null cell as export text.
func formatValue(col arrow.Array, i int) (string, error) {
	switch arr := col.(type) {
	case *array.String:
		return arr.Value(i), nil
	case *array.LargeString:
		return arr.Value(i), nil
	case *array.Binary:
		return string(arr.Value(i)), nil
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(i)), nil
	case *array.Int8:
		return strconv.FormatInt(int64(arr.Value(i)), 10), nil
	case *array.Int16:
		return strconv.FormatInt(int64(arr.Value(i)), 10), nil
	case *array.Int32:
		return strconv.FormatInt(int64(arr.Value(i)), 10), nil
	case *array.Int64:
		return strconv.FormatInt(arr.Value(i), 10), nil
	case *array.Uint8:
		return strconv.FormatUint(uint64(arr.Value(i)), 10), nil
	case *array.Uint16:
		return strconv.FormatUint(uint64(arr.Value(i)), 10), nil
	case *array.Uint32:
		return strconv.FormatUint(uint64(arr.Value(i)), 10), nil
	case *array.Uint64:
		return strconv.FormatUint(arr.Value(i), 10), nil
	case *array.Float32:
		return strconv.FormatFloat(float64(arr.Value(i)), 'f', -1, 32), nil
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(i), 'f', -1, 64), nil
	case *array.Date32:
		return arr.Value(i).ToTime().Format(model.DateLayout), nil
	case *array.Date64:
		return arr.Value(i).ToTime().Format(model.DateLayout), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit).Format(model.DateLayout), nil
	}
	return "", fmt.Errorf("unsupported type %s", col.DataType())
}
