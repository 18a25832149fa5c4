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

package sragetl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// The root package re-exports the pipeline contracts from core so a
// program can build a pipeline with a single import.

type (
	Record           = core.Record
	DataSource       = core.DataSource
	DataSink         = core.DataSink
	Transformer      = core.Transformer
	TransformFunc    = core.TransformFunc
	DiagnosticsSink  = core.DiagnosticsSink
	ErrorHandler     = core.ErrorHandler
	ErrorHandlerFunc = core.ErrorHandlerFunc
	ErrorStrategy    = core.ErrorStrategy
)

const (
	FailFast      = core.FailFast
	SkipErrors    = core.SkipErrors
	CollectErrors = core.CollectErrors
)

// RecordError reports a rejected row: its position in the input, a
// fingerprint of its raw content and the field that failed.
type RecordError struct {
	Row         int64
	Fingerprint string
	Field       string
	Err         error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d (%s) field %s: %v", e.Row, e.Fingerprint, e.Field, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Fingerprint, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Fingerprint identifies a raw row independent of key order: xxh3 over
// the sorted key=value pairs, as 16 hex digits.
func Fingerprint(record Record) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxh3.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("=")
		h.WriteString(record[k])
		h.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// isFatal tells errors that must stop the run from errors that only
// reject the current row.
func isFatal(err error) bool {
	var ce *model.ConfigurationError
	return errors.As(err, &ce) ||
		errors.Is(err, model.ErrInvalidState) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// RunSummary describes a finished run.
type RunSummary struct {
	Read     int64
	Written  int64
	Rejected int64
	Repairs  int64
	// RepairsByMethod counts repairs per heuristic path.
	RepairsByMethod map[model.RepairMethod]int64
	// RepairsApplied is the run counter shared with the date repair
	// heuristic. It includes repairs on rows whose result never reached
	// the writer because the run stopped early.
	RepairsApplied int64
	// Errors holds every rejection under CollectErrors.
	Errors   []*RecordError
	Duration time.Duration
}
