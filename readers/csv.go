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
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/aaronlmathis/sragetl/core"
)

// Package readers provides core.DataSource implementations for the inputs
// sragetl reads: delimited text, JSON lines, S3 objects and CKAN datasets.
//
// Readers never interpret values. Every cell is delivered as the string
// found in the input; a cell the row does not have is absent.

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead     int64
	ShortRows       int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	EmptyValueCount map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma      rune
	Comment    rune
	LazyQuotes bool
	HasHeaders bool
	Headers    []string
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.HasHeaders = hasHeaders }
}

// WithCSVHeaders supplies the column names for input without a header row.
func WithCSVHeaders(headers []string) ReaderOptionCSV {
	return func(o *CSVReaderOptions) {
		o.Headers = append([]string(nil), headers...)
		o.HasHeaders = false
	}
}

func WithCSVLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

// CSVReader implements DataSource for delimited files. Values are never
// trimmed or converted.
type CSVReader struct {
	reader  *csv.Reader
	headers []string
	closers []io.Closer
	stats   CSVReaderStats
	opts    CSVReaderOptions
}

// NewCSVReader creates a CSVReader. The input is decompressed when it
// starts with the gzip magic bytes. The default delimiter is ';'.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		Comma:      ';',
		HasHeaders: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	src, closers, err := maybeGzip(r)
	if err != nil {
		r.Close()
		return nil, &CSVReaderError{Op: "gzip", Err: err}
	}

	csvReader := csv.NewReader(src)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.FieldsPerRecord = -1
	csvReader.ReuseRecord = true

	reader := &CSVReader{
		reader:  csvReader,
		headers: opts.Headers,
		closers: closers,
		opts:    opts,
		stats:   CSVReaderStats{EmptyValueCount: make(map[string]int64)},
	}

	if opts.HasHeaders {
		headers, err := csvReader.Read()
		if err != nil {
			reader.Close()
			return nil, &CSVReaderError{Op: "read_headers", Err: err}
		}
		reader.headers = make([]string, len(headers))
		for i, h := range headers {
			reader.headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
	}

	return reader, nil
}

// maybeGzip peeks at the first two bytes and wraps the stream in a gzip
// reader when they are the gzip magic. The returned closers are closed
// innermost first.
func maybeGzip(r io.ReadCloser) (io.Reader, []io.Closer, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return gz, []io.Closer{gz, r}, nil
	}
	return br, []io.Closer{r}, nil
}

// Headers returns the column names in input order.
func (c *CSVReader) Headers() []string {
	return append([]string(nil), c.headers...)
}

// Read implements the DataSource interface. A row shorter than the header
// yields absent keys; extra cells are named col_N.
func (c *CSVReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	row, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &CSVReaderError{Op: "read_record", Err: err}
	}

	res := make(core.Record, len(row))
	for i, val := range row {
		key := "col_" + strconv.Itoa(i)
		if i < len(c.headers) {
			key = c.headers[i]
		}
		if val == "" {
			c.stats.EmptyValueCount[key]++
		}
		res[key] = val
	}
	if len(row) < len(c.headers) {
		c.stats.ShortRows++
	}

	c.stats.RecordsRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return res, nil
}

// Close implements the DataSource interface.
func (c *CSVReader) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}
