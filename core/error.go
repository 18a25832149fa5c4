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

import "context"

// ErrorHandler decides what happens to a rejected record.
type ErrorHandler interface {
	// HandleError processes a per-record error.
	// Returning a non-nil error stops the pipeline; returning nil continues.
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorStrategy defines how rejected records affect the run.
type ErrorStrategy int

const (
	// FailFast stops processing on the first rejected record.
	FailFast ErrorStrategy = iota
	// SkipErrors rejects the record and continues.
	SkipErrors
	// CollectErrors continues and keeps every record error for the summary.
	CollectErrors
)

// ParseErrorStrategy accepts "fail_fast", "skip" or "collect".
func ParseErrorStrategy(s string) (ErrorStrategy, bool) {
	switch s {
	case "fail_fast":
		return FailFast, true
	case "", "skip":
		return SkipErrors, true
	case "collect":
		return CollectErrors, true
	}
	return SkipErrors, false
}

func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail_fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	}
	return "unknown"
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}
