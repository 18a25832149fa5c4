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

package model

import (
	"errors"
	"fmt"
)

// Hook runs after a field is decoded. It receives the decoded value, the
// field, the raw record (read-only) and the record being populated, and
// returns the value to store. A hook may set computed fields on rec but
// only sees fields declared before its own.
type Hook func(v Value, f *Field, raw RawRecord, rec *Record) (Value, error)

// Hooks is a registration table from field name to Hook.
type Hooks struct {
	table map[string]Hook
	errs  []error
}

func NewHooks() *Hooks {
	return &Hooks{table: make(map[string]Hook)}
}

// Register adds a hook for the named field. Registration problems are
// reported when the table is resolved against a schema.
func (h *Hooks) Register(field string, hook Hook) *Hooks {
	if hook == nil {
		h.errs = append(h.errs, &ConfigurationError{Field: field, Err: errors.New("nil hook")})
		return h
	}
	if _, dup := h.table[field]; dup {
		h.errs = append(h.errs, &ConfigurationError{Field: field, Err: errors.New("hook registered twice")})
		return h
	}
	h.table[field] = hook
	return h
}

// resolve lays the table out in schema order. Slots without a hook are nil.
func (h *Hooks) resolve(s *Schema) ([]Hook, error) {
	out := make([]Hook, s.Len())
	if h == nil {
		return out, nil
	}
	if len(h.errs) > 0 {
		return nil, errors.Join(h.errs...)
	}
	for name, hook := range h.table {
		i, ok := s.index(name)
		if !ok {
			return nil, &ConfigurationError{Field: name, Err: fmt.Errorf("hook for field not in schema %s", s.Name())}
		}
		if s.fields[i].computed {
			return nil, &ConfigurationError{Field: name, Err: errors.New("hook on computed field")}
		}
		out[i] = hook
	}
	return out, nil
}
