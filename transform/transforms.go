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

package transform

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// Package transform provides the transformers used by sragetl pipelines.
//
// Engine runs the record lifecycle for one row; the other functions are
// small row-level steps that can be chained in front of it.

// Engine transforms one raw row through repair, populate, finalize and
// serialize. It holds no per-row state and is safe for concurrent use.
type Engine struct {
	def    *model.Definition
	repair *model.DateRepair
	mode   model.SerializeMode
}

// NewEngine returns an Engine for def. repair may be nil to disable the
// date heuristic.
func NewEngine(def *model.Definition, repair *model.DateRepair, mode model.SerializeMode) *Engine {
	return &Engine{def: def, repair: repair, mode: mode}
}

// Transform implements core.Transformer. The repairs are returned even
// when the row is rejected.
func (e *Engine) Transform(ctx context.Context, record core.Record) (core.Record, []model.Repair, error) {
	rec := e.def.NewRecord(e.repair)
	repairs, err := rec.Populate(record)
	if err != nil {
		return nil, repairs, err
	}
	if err := rec.Finalize(); err != nil {
		return nil, repairs, err
	}
	out, err := rec.Serialize(e.mode)
	if err != nil {
		return nil, repairs, err
	}
	return out, repairs, nil
}

// Schema returns the schema of the records produced.
func (e *Engine) Schema() *model.Schema { return e.def.Schema() }

// Chain runs transformers in sequence, feeding each output to the next
// and collecting their repairs.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, []model.Repair, error) {
		var all []model.Repair
		current := record
		for _, t := range transformers {
			out, repairs, err := t.Transform(ctx, current)
			all = append(all, repairs...)
			if err != nil {
				return nil, all, err
			}
			current = out
		}
		return current, all, nil
	})
}

const nbsp = " "

// Normalize rewrites values to Unicode NFC, replaces non-breaking spaces
// and trims surrounding whitespace. With no keys every value is touched.
// Keys stay as they are, so absent values stay absent.
func Normalize(keys ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, []model.Repair, error) {
		result := record.Clone()
		if len(keys) == 0 {
			for k, v := range result {
				result[k] = normalizeValue(v)
			}
			return result, nil, nil
		}
		for _, k := range keys {
			if v, ok := result[k]; ok {
				result[k] = normalizeValue(v)
			}
		}
		return result, nil, nil
	})
}

func normalizeValue(v string) string {
	if strings.Contains(v, nbsp) {
		v = strings.ReplaceAll(v, nbsp, " ")
	}
	return strings.TrimSpace(norm.NFC.String(v))
}

// UpperKeys upper-cases every key, for inputs whose header uses lowercase
// column names.
func UpperKeys() core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, []model.Repair, error) {
		result := make(core.Record, len(record))
		for k, v := range record {
			result[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		return result, nil, nil
	})
}
