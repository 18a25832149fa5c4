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

package core

import (
	"context"

	"github.com/aaronlmathis/sragetl/model"
)

// DataSource streams raw records.
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink consumes serialized records. Write is only ever called from a
// single goroutine; records arrive in no particular order.
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// Transformer turns one raw record into one output record and reports the
// date repairs it made. Implementations must be safe for concurrent use.
type Transformer interface {
	Transform(ctx context.Context, record Record) (Record, []model.Repair, error)
}

// DiagnosticsSink receives the repairs made on each record. Like DataSink
// it is written from a single goroutine.
type DiagnosticsSink interface {
	WriteRepairs(ctx context.Context, row int64, repairs []model.Repair) error
	WriteReject(ctx context.Context, reject Reject) error
	Close() error
}

// Reject describes a record that failed transformation.
type Reject struct {
	Row         int64  `json:"row"`
	Fingerprint string `json:"fingerprint"`
	Field       string `json:"field,omitempty"`
	Error       string `json:"error"`
	Record      Record `json:"record,omitempty"`
}
