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
	"strings"

	"github.com/aaronlmathis/sragetl/core"
)

// Opener opens a source on demand.
type Opener func(ctx context.Context) (core.DataSource, error)

// NewFormatReader picks a reader from the object name: .jsonl and .json
// (optionally .gz) are JSON lines, anything else is delimited text.
// Parquet needs random access and is only read from local files.
func NewFormatReader(name string, r io.ReadCloser, comma rune) (core.DataSource, error) {
	lower := strings.TrimSuffix(strings.ToLower(name), ".gz")
	switch {
	case isParquet(name):
		r.Close()
		return nil, fmt.Errorf("%s: parquet input must be a local file", name)
	case strings.HasSuffix(lower, ".jsonl"), strings.HasSuffix(lower, ".json"):
		return NewJSONReader(r)
	default:
		return NewCSVReader(r, WithCSVComma(comma))
	}
}

// FileOpener returns an Opener for a local file.
func FileOpener(path string, comma rune) Opener {
	return func(ctx context.Context) (core.DataSource, error) {
		if isParquet(path) {
			pr, err := NewParquetReader(path)
			if err != nil {
				return nil, err
			}
			return pr, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return NewFormatReader(path, f, comma)
	}
}

func isParquet(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".parquet")
}

// MultiReader reads its sources one after the other, opening each only
// when the previous one is exhausted.
type MultiReader struct {
	openers []Opener
	current core.DataSource
	next    int
}

// NewMultiReader creates a MultiReader over the given openers.
func NewMultiReader(openers ...Opener) *MultiReader {
	return &MultiReader{openers: openers}
}

// Read implements the DataSource interface.
func (m *MultiReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if m.current == nil {
			if m.next >= len(m.openers) {
				return nil, io.EOF
			}
			src, err := m.openers[m.next](ctx)
			m.next++
			if err != nil {
				return nil, err
			}
			m.current = src
		}

		rec, err := m.current.Read(ctx)
		if err == io.EOF {
			closeErr := m.current.Close()
			m.current = nil
			if closeErr != nil {
				return nil, closeErr
			}
			continue
		}
		return rec, err
	}
}

// Close implements the DataSource interface.
func (m *MultiReader) Close() error {
	m.next = len(m.openers)
	if m.current != nil {
		err := m.current.Close()
		m.current = nil
		return err
	}
	return nil
}
