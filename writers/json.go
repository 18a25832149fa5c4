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
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaronlmathis/sragetl/core"
)

// JSONWriterError wraps JSON-specific write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterStats holds JSON write statistics.
type JSONWriterStats struct {
	RecordsWritten int64
	BytesWritten   int64
	FlushCount     int64
	LastFlushTime  time.Time
}

// JSONWriterOptions configures JSON lines output.
type JSONWriterOptions struct {
	BatchSize    int
	FlushOnWrite bool
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

func WithJSONBatchSize(size int) WriterOptionJSON {
	return func(o *JSONWriterOptions) { o.BatchSize = size }
}

func WithFlushOnWrite(flush bool) WriterOptionJSON {
	return func(o *JSONWriterOptions) { o.FlushOnWrite = flush }
}

// JSONWriter implements DataSink for line-delimited JSON. Object keys are
// written in sorted order.
type JSONWriter struct {
	buf        *bufio.Writer
	closer     io.Closer
	options    JSONWriterOptions
	pending    int
	stats      JSONWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output.
func NewJSONWriter(w io.WriteCloser, opts ...WriterOptionJSON) *JSONWriter {
	options := JSONWriterOptions{BatchSize: 1000}
	for _, opt := range opts {
		opt(&options)
	}
	return &JSONWriter{
		buf:     bufio.NewWriter(w),
		closer:  w,
		options: options,
	}
}

// Write implements the DataSink interface.
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.errorState {
		return &JSONWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}
	data = append(data, '\n')
	n, err := j.buf.Write(data)
	j.stats.BytesWritten += int64(n)
	if err != nil {
		j.errorState = true
		return &JSONWriterError{Op: "write_line", Err: err}
	}
	j.stats.RecordsWritten++
	j.pending++

	if j.options.FlushOnWrite || (j.options.BatchSize > 0 && j.pending >= j.options.BatchSize) {
		if err := j.flushUnsafe(); err != nil {
			j.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the DataSink interface.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushUnsafe()
}

func (j *JSONWriter) flushUnsafe() error {
	if err := j.buf.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	j.pending = 0
	j.stats.FlushCount++
	j.stats.LastFlushTime = time.Now()
	return nil
}

// Close implements the DataSink interface.
func (j *JSONWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// Stats returns write statistics.
func (j *JSONWriter) Stats() JSONWriterStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}
