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
	"strconv"
	"time"
)

// Schema is an immutable, ordered set of fields describing one record
// type. Declaration order is significant: fields are populated in it and
// hooks may only observe fields declared before their own.
type Schema struct {
	name   string
	fields []*Field
	byName map[string]int
}

// NewSchema validates the declarations and builds a Schema. Field names
// and external keys must be unique and every non-computed field needs a key.
func NewSchema(name string, fields ...*Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: make([]*Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	keys := make(map[string]string, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("schema %s: nil field at position %d", name, i)}
		}
		if f.Name == "" {
			return nil, &ConfigurationError{Err: fmt.Errorf("schema %s: unnamed field at position %d", name, i)}
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, &ConfigurationError{Field: f.Name, Err: errors.New("duplicate field name")}
		}
		if !f.computed {
			if f.Key == "" {
				return nil, &ConfigurationError{Field: f.Name, Err: errors.New("missing external key")}
			}
			if other, dup := keys[f.Key]; dup {
				return nil, &ConfigurationError{Field: f.Name, Err: fmt.Errorf("key %s already used by %s", f.Key, other)}
			}
			keys[f.Key] = f.Name
		}
		if err := f.check(f.Default); err != nil && !f.Default.IsNull() {
			return nil, &ConfigurationError{Field: f.Name, Err: fmt.Errorf("default: %w", err)}
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the declared fields in order.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

func (s *Schema) index(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// DateKeys returns the external keys of date-typed input fields in
// declaration order.
func (s *Schema) DateKeys() []string {
	var keys []string
	for _, f := range s.fields {
		if !f.computed && f.Kind == KindDate && !f.IsChoice() {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// OutputKeys returns the serialized keys in declaration order.
func (s *Schema) OutputKeys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.OutputKey()
	}
	return keys
}

// SerializeMode selects how choice fields are written.
type SerializeMode int

const (
	// SerializeSemantic writes the semantic value of choice fields.
	SerializeSemantic SerializeMode = iota
	// SerializeCodes writes the first declared raw code of choice fields.
	SerializeCodes
)

// ParseSerializeMode accepts "semantic" or "codes".
func ParseSerializeMode(s string) (SerializeMode, error) {
	switch s {
	case "", "semantic":
		return SerializeSemantic, nil
	case "codes":
		return SerializeCodes, nil
	}
	return SerializeSemantic, fmt.Errorf("unknown serialize mode %q", s)
}

// Column describes one serialized output column for typed sinks.
type Column struct {
	Name string
	Kind Kind
}

// Columns lists the serialized columns in declaration order. In codes
// mode choice columns are text.
func (s *Schema) Columns(mode SerializeMode) []Column {
	cols := make([]Column, len(s.fields))
	for i, f := range s.fields {
		kind := f.Kind
		if mode == SerializeCodes && f.IsChoice() {
			kind = KindText
		}
		cols[i] = Column{Name: f.OutputKey(), Kind: kind}
	}
	return cols
}

// Parse converts a serialized string back into a Go value for typed
// sinks: string, int64, bool or time.Time. The empty string is nil for
// every kind but text.
func (c Column) Parse(s string) (any, error) {
	if s == "" {
		if c.Kind == KindText {
			return "", nil
		}
		return nil, nil
	}
	switch c.Kind {
	case KindInteger:
		return strconv.ParseInt(s, 10, 64)
	case KindBool:
		return strconv.ParseBool(s)
	case KindDate:
		return time.Parse(DateLayout, s)
	}
	return s, nil
}
