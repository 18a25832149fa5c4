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

var (
	// ErrNullValue is wrapped by a ValidationError when a non-nullable
	// field resolves to null.
	ErrNullValue = errors.New("null value for non-nullable field")
	// ErrKindMismatch is wrapped when a value does not carry the field's kind.
	ErrKindMismatch = errors.New("value kind does not match field kind")
	// ErrEmptyText is wrapped when a text field read from input is given
	// the empty string, which decodes as absent rather than as text.
	ErrEmptyText = errors.New("empty text for an input text field")
	// ErrInvalidState is wrapped by StateError on lifecycle misuse.
	ErrInvalidState = errors.New("invalid record state")
)

// ConfigurationError reports an inconsistent schema declaration. It is
// raised while building a schema and is always fatal for the run.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: field %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a value that violates a field's nullability or
// kind constraints.
type ValidationError struct {
	Field string
	Key   string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %s (%s): %v", e.Field, e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UnknownCodeError reports a raw code that is not declared by a choice field.
type UnknownCodeError struct {
	Field string
	Key   string
	Code  string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown code %q for field %s (%s)", e.Code, e.Field, e.Key)
}

// DecodeError reports a raw value that could not be parsed.
type DecodeError struct {
	Field string
	Key   string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: field %s (%s) value %q: %v", e.Field, e.Key, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StateError reports a lifecycle operation called from the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("record %s: %v: %s", e.Op, ErrInvalidState, e.State)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// IsRecordError reports whether err rejects a single record rather than
// the whole run.
func IsRecordError(err error) bool {
	var (
		ve *ValidationError
		ue *UnknownCodeError
		de *DecodeError
	)
	return errors.As(err, &ve) || errors.As(err, &ue) || errors.As(err, &de)
}

// FailingField returns the name of the field that caused err, if any.
func FailingField(err error) string {
	var (
		ve *ValidationError
		ue *UnknownCodeError
		de *DecodeError
		ce *ConfigurationError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Field
	case errors.As(err, &ue):
		return ue.Field
	case errors.As(err, &de):
		return de.Field
	case errors.As(err, &ce):
		return ce.Field
	}
	return ""
}
