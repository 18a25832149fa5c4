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

	"github.com/goccy/go-json"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// DiagnosticsWriter implements core.DiagnosticsSink as two JSON lines
// streams: one line per date repair and one line per rejected row. Either
// stream may be nil to discard it.
type DiagnosticsWriter struct {
	repairs    *bufio.Writer
	rejects    *bufio.Writer
	closers    []io.Closer
	stats      DiagnosticsStats
	mu         sync.Mutex
	errorState bool
}

// DiagnosticsStats counts the lines written.
type DiagnosticsStats struct {
	Repairs int64
	Rejects int64
}

// repairLine is one line of the repairs audit.
type repairLine struct {
	Row int64 `json:"row"`
	model.Repair
}

// NewDiagnosticsWriter creates a writer over the given streams.
func NewDiagnosticsWriter(repairs, rejects io.WriteCloser) *DiagnosticsWriter {
	d := &DiagnosticsWriter{}
	if repairs != nil {
		d.repairs = bufio.NewWriter(repairs)
		d.closers = append(d.closers, repairs)
	}
	if rejects != nil {
		d.rejects = bufio.NewWriter(rejects)
		d.closers = append(d.closers, rejects)
	}
	return d
}

// WriteRepairs implements core.DiagnosticsSink.
func (d *DiagnosticsWriter) WriteRepairs(ctx context.Context, row int64, repairs []model.Repair) error {
	if d.repairs == nil || len(repairs) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range repairs {
		if err := d.writeLine(d.repairs, repairLine{Row: row, Repair: r}); err != nil {
			return err
		}
		d.stats.Repairs++
	}
	return nil
}

// WriteReject implements core.DiagnosticsSink.
func (d *DiagnosticsWriter) WriteReject(ctx context.Context, reject core.Reject) error {
	if d.rejects == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeLine(d.rejects, reject); err != nil {
		return err
	}
	d.stats.Rejects++
	return nil
}

func (d *DiagnosticsWriter) writeLine(w *bufio.Writer, v any) error {
	if d.errorState {
		return &JSONWriterError{Op: "diagnostics", Err: fmt.Errorf("writer is in error state")}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		d.errorState = true
		return &JSONWriterError{Op: "write_line", Err: err}
	}
	return nil
}

// Stats returns the number of lines written to each stream.
func (d *DiagnosticsWriter) Stats() DiagnosticsStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close flushes and closes both streams.
func (d *DiagnosticsWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	for _, w := range []*bufio.Writer{d.repairs, d.rejects} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil && first == nil {
			first = &JSONWriterError{Op: "flush", Err: err}
		}
	}
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}
