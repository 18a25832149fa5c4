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

// Package core defines the types shared by sources, sinks and the pipeline.
//
// Records travel through the pipeline as raw string maps: sources produce
// them, the transformer turns one raw row into one serialized row and
// sinks consume the result.

// Record is a single row keyed by column name. An empty string is a
// present value; a missing key is an absent one.
type Record = model.RawRecord

// TransformFunc is a function adapter for the Transformer interface.
type TransformFunc func(ctx context.Context, record Record) (Record, []model.Repair, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, []model.Repair, error) {
	return f(ctx, record)
}
