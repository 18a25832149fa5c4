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
	"strings"
)

// Choice maps one raw code to its semantic value.
type Choice struct {
	Code  string
	Value Value
}

// Field describes one column of a record type: where it is read from,
// what kind of value it holds and how raw strings are converted.
type Field struct {
	Name     string
	Key      string
	Kind     Kind
	Nullable bool
	Default  Value
	Help     string

	computed      bool
	emptyAsAbsent bool
	choices       []Choice
	lookup        map[string]Value
}

// FieldOption customizes a Field at declaration time.
type FieldOption func(*Field)

func Nullable() FieldOption {
	return func(f *Field) { f.Nullable = true }
}

func Default(v Value) FieldOption {
	return func(f *Field) { f.Default = v }
}

func Help(text string) FieldOption {
	return func(f *Field) { f.Help = text }
}

// Computed marks a field that has no external key. Its value is set by
// hooks or by the finalize step, never read from input.
func Computed() FieldOption {
	return func(f *Field) {
		f.computed = true
		f.Key = ""
	}
}

// EmptyAsAbsent makes a choice field treat the raw empty string like a
// missing key instead of looking it up as a code.
func EmptyAsAbsent() FieldOption {
	return func(f *Field) { f.emptyAsAbsent = true }
}

func newField(name, key string, kind Kind, opts []FieldOption) *Field {
	f := &Field{Name: name, Key: key, Kind: kind, Default: Null(kind)}
	for _, opt := range opts {
		opt(f)
	}
	f.Default = f.Default.withKind(kind)
	return f
}

func TextField(name, key string, opts ...FieldOption) *Field {
	return newField(name, key, KindText, opts)
}

func IntegerField(name, key string, opts ...FieldOption) *Field {
	return newField(name, key, KindInteger, opts)
}

func BoolField(name, key string, opts ...FieldOption) *Field {
	return newField(name, key, KindBool, opts)
}

// DateField declares a dd/mm/yyyy date column.
func DateField(name, key string, opts ...FieldOption) *Field {
	return newField(name, key, KindDate, opts)
}

// ChoiceField declares a field whose raw codes form a closed set. The
// declaration order of choices is kept: Encode picks the first code that
// maps to a value.
func ChoiceField(name, key string, kind Kind, choices []Choice, opts ...FieldOption) (*Field, error) {
	f := newField(name, key, kind, opts)
	if len(choices) == 0 {
		return nil, &ConfigurationError{Field: name, Err: errors.New("choice field declares no codes")}
	}
	f.choices = make([]Choice, 0, len(choices))
	f.lookup = make(map[string]Value, len(choices))
	for _, c := range choices {
		if _, dup := f.lookup[c.Code]; dup {
			return nil, &ConfigurationError{Field: name, Err: fmt.Errorf("duplicate code %q", c.Code)}
		}
		v := c.Value.withKind(kind)
		if err := f.check(v); err != nil {
			return nil, &ConfigurationError{Field: name, Err: fmt.Errorf("code %q: %w", c.Code, err)}
		}
		f.lookup[c.Code] = v
		f.choices = append(f.choices, Choice{Code: c.Code, Value: v})
	}
	if !f.Default.IsNull() && !f.declares(f.Default) {
		return nil, &ConfigurationError{Field: name, Err: fmt.Errorf("default %q is not a declared value", f.Default)}
	}
	return f, nil
}

// IsChoice reports whether the field maps a closed set of codes.
func (f *Field) IsChoice() bool { return f.lookup != nil }

// IsComputed reports whether the field is set by hooks or finalize only.
func (f *Field) IsComputed() bool { return f.computed }

// Choices returns the declared codes in declaration order.
func (f *Field) Choices() []Choice {
	out := make([]Choice, len(f.choices))
	copy(out, f.choices)
	return out
}

// OutputKey is the key under which the field is serialized: the lowercase
// external key, or the field name for computed fields.
func (f *Field) OutputKey() string {
	if f.computed || f.Key == "" {
		return f.Name
	}
	return strings.ToLower(f.Key)
}

// Missing resolves the value of a field whose key is absent from input.
func (f *Field) Missing() (Value, error) {
	if f.Default.IsNull() && !f.Nullable {
		return Value{}, &ValidationError{Field: f.Name, Key: f.Key, Err: ErrNullValue}
	}
	return f.Default, nil
}

// Decode converts a raw string into the field's internal value.
func (f *Field) Decode(raw string) (Value, error) {
	if f.IsChoice() {
		if raw == "" && f.emptyAsAbsent {
			return f.Missing()
		}
		v, ok := f.lookup[raw]
		if !ok {
			return Value{}, &UnknownCodeError{Field: f.Name, Key: f.Key, Code: raw}
		}
		return v, nil
	}

	if raw == "" {
		return f.Missing()
	}
	switch f.Kind {
	case KindText:
		return Text(raw), nil
	case KindInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Value{}, f.decodeError(raw, err)
		}
		return Int(i), nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Value{}, f.decodeError(raw, err)
		}
		return Bool(b), nil
	case KindDate:
		t, err := parseDate(strings.TrimSpace(raw))
		if err != nil {
			return Value{}, f.decodeError(raw, err)
		}
		return Date(t), nil
	}
	return Value{}, f.decodeError(raw, fmt.Errorf("unsupported kind %s", f.Kind))
}

// Encode converts an internal value back to its raw form. Null encodes
// as the empty string, except for choice fields, which return the first
// code declared for the value.
func (f *Field) Encode(v Value) (string, error) {
	if err := f.check(v); err != nil {
		return "", &ValidationError{Field: f.Name, Key: f.Key, Err: err}
	}
	if !f.IsChoice() {
		return v.String(), nil
	}
	for _, c := range f.choices {
		if c.Value.Equal(v) {
			return c.Code, nil
		}
	}
	return "", &ValidationError{Field: f.Name, Key: f.Key, Err: fmt.Errorf("%q is not a declared value", v)}
}

// check validates a value against the field's kind and nullability.
func (f *Field) check(v Value) error {
	if v.IsNull() {
		if !f.Nullable {
			return ErrNullValue
		}
		return nil
	}
	if v.Kind() != f.Kind {
		return fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, v.Kind(), f.Kind)
	}
	// Raw "" decodes to the default, so Text("") cannot round trip.
	if f.Kind == KindText && !f.computed && f.choices == nil {
		if s, _ := v.AsText(); s == "" {
			return ErrEmptyText
		}
	}
	return nil
}

func (f *Field) declares(v Value) bool {
	for _, c := range f.choices {
		if c.Value.Equal(v) {
			return true
		}
	}
	return false
}

func (f *Field) decodeError(raw string, err error) error {
	return &DecodeError{Field: f.Name, Key: f.Key, Raw: raw, Err: err}
}
