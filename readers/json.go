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
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/aaronlmathis/sragetl/core"
)

// JSONReaderError wraps structured error information for the JSON reader.
type JSONReaderError struct {
	Op   string
	Line int64
	Err  error
}

func (e *JSONReaderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("json reader %s (line %d): %v", e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("json reader %s: %v", e.Op, e.Err)
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// JSONReader implements DataSource for JSON lines files. Each line is an
// object; string members are taken as is, numbers and booleans in their
// JSON spelling, null members are absent.
type JSONReader struct {
	scanner *bufio.Scanner
	closers []io.Closer
	line    int64
}

// NewJSONReader creates a new JSON reader for line-delimited JSON, which
// may be gzip-compressed.
func NewJSONReader(r io.ReadCloser) (*JSONReader, error) {
	src, closers, err := maybeGzip(r)
	if err != nil {
		r.Close()
		return nil, &JSONReaderError{Op: "gzip", Err: err}
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &JSONReader{
		scanner: scanner,
		closers: closers,
	}, nil
}

// Read implements the DataSource interface. Blank lines are skipped.
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, &JSONReaderError{Op: "read", Err: err}
		}
		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return nil, &JSONReaderError{Op: "scan", Line: j.line, Err: err}
			}
			return nil, io.EOF
		}
		j.line++

		line := bytes.TrimSpace(j.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return j.decode(line)
	}
}

func (j *JSONReader) decode(line []byte) (core.Record, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &JSONReaderError{Op: "decode", Line: j.line, Err: err}
	}

	record := make(core.Record, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			record[k] = val
		case json.Number:
			record[k] = val.String()
		case bool:
			record[k] = strconv.FormatBool(val)
		default:
			return nil, &JSONReaderError{Op: "decode", Line: j.line, Err: fmt.Errorf("member %q is not a scalar", k)}
		}
	}
	return record, nil
}

// Close implements the DataSource interface
func (j *JSONReader) Close() error {
	var first error
	for _, cl := range j.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.closers = nil
	return first
}
