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

// Package model turns loosely typed, string-keyed rows into validated
// typed records.
//
// A Definition binds a Schema, its hook table and a finalize step. Each
// input row gets its own Record, which moves through
// Raw -> Populated -> Finalized -> Serialized and is then discarded.

// RawRecord maps external keys to raw strings. A present empty string is
// distinct from an absent key.
type RawRecord map[string]string

// Clone returns a shallow copy of r.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// State is a Record lifecycle state.
type State int

const (
	StateRaw State = iota
	StatePopulated
	StateFinalized
	StateSerialized
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StatePopulated:
		return "populated"
	case StateFinalized:
		return "finalized"
	case StateSerialized:
		return "serialized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FinalizeFunc computes derived attributes on a populated record.
type FinalizeFunc func(rec *Record) error

// Definition is a record type: schema, resolved hooks and finalize step.
// It is immutable and shared by all workers.
type Definition struct {
	schema   *Schema
	hooks    []Hook
	finalize FinalizeFunc
}

// NewDefinition resolves hooks against schema. A nil hooks table or
// finalize func is allowed.
func NewDefinition(schema *Schema, hooks *Hooks, finalize FinalizeFunc) (*Definition, error) {
	if schema == nil {
		return nil, &ConfigurationError{Err: errors.New("nil schema")}
	}
	resolved, err := hooks.resolve(schema)
	if err != nil {
		return nil, err
	}
	return &Definition{schema: schema, hooks: resolved, finalize: finalize}, nil
}

func (d *Definition) Schema() *Schema { return d.schema }

// NewRecord starts a record in the Raw state. repair may be nil to skip
// the date heuristic.
func (d *Definition) NewRecord(repair *DateRepair) *Record {
	return &Record{def: d, repair: repair}
}

// Record is one row moving through the lifecycle. A Record is not safe
// for concurrent use and must not be shared between rows.
type Record struct {
	def    *Definition
	repair *DateRepair
	state  State
	values []Value

	// visible is the number of leading fields a hook may read while the
	// record is being populated; -1 once population is complete.
	visible int
}

func (r *Record) State() State { return r.state }

func (r *Record) Schema() *Schema { return r.def.schema }

// Get returns the named field's value. During population only fields
// declared before the current one (and computed fields already set) are
// visible; others read as null. Unknown names read as null text.
func (r *Record) Get(name string) Value {
	i, ok := r.def.schema.index(name)
	if !ok || r.values == nil {
		return Null(KindText)
	}
	f := r.def.schema.fields[i]
	if r.visible >= 0 && i >= r.visible && !f.computed {
		return Null(f.Kind)
	}
	return r.values[i]
}

// Set stores a value on a computed field. It is allowed while hooks run
// and during finalize.
func (r *Record) Set(name string, v Value) error {
	if r.values == nil || r.state > StatePopulated {
		return &StateError{Op: "set " + name, State: r.state}
	}
	i, ok := r.def.schema.index(name)
	if !ok {
		return &ConfigurationError{Field: name, Err: errors.New("unknown field")}
	}
	f := r.def.schema.fields[i]
	if !f.computed {
		return &ConfigurationError{Field: name, Err: errors.New("only computed fields can be set")}
	}
	v = v.withKind(f.Kind)
	if err := f.check(v); err != nil {
		return &ValidationError{Field: f.Name, Err: err}
	}
	r.values[i] = v
	return nil
}

// Values returns the typed record keyed by field name.
func (r *Record) Values() (map[string]Value, error) {
	if r.state == StateRaw {
		return nil, &StateError{Op: "values", State: r.state}
	}
	out := make(map[string]Value, len(r.values))
	for i, f := range r.def.schema.fields {
		out[f.Name] = r.values[i]
	}
	return out, nil
}

// Populate repairs dates, then decodes every input field in declaration
// order and runs its hook. On failure the record stays Raw with no values.
// The repairs made are returned even when population fails.
func (r *Record) Populate(raw RawRecord) ([]Repair, error) {
	if r.state != StateRaw {
		return nil, &StateError{Op: "populate", State: r.state}
	}
	s := r.def.schema

	var repairs []Repair
	if r.repair != nil {
		raw, repairs = r.repair.Apply(s.DateKeys(), raw)
	}

	work := &Record{def: r.def, values: make([]Value, s.Len())}
	for i, f := range s.fields {
		work.values[i] = f.Default
	}
	for i, f := range s.fields {
		if f.computed {
			continue
		}
		work.visible = i

		var (
			v   Value
			err error
		)
		if text, ok := raw[f.Key]; ok {
			v, err = f.Decode(text)
		} else {
			v, err = f.Missing()
		}
		if err != nil {
			return repairs, err
		}
		if hook := r.def.hooks[i]; hook != nil {
			if v, err = hook(v, f, raw, work); err != nil {
				return repairs, fmt.Errorf("hook %s: %w", f.Name, err)
			}
			v = v.withKind(f.Kind)
			if err := f.check(v); err != nil {
				return repairs, &ValidationError{Field: f.Name, Key: f.Key, Err: err}
			}
			if f.IsChoice() && !f.declares(v) {
				return repairs, &ValidationError{Field: f.Name, Key: f.Key, Err: fmt.Errorf("hook returned undeclared value %q", v)}
			}
		}
		work.values[i] = v
	}

	r.values = work.values
	r.visible = -1
	r.state = StatePopulated
	return repairs, nil
}

// Finalize computes derived attributes. It runs once, from Populated only;
// a failing finalize leaves the record Populated and unchanged.
func (r *Record) Finalize() error {
	if r.state != StatePopulated {
		return &StateError{Op: "finalize", State: r.state}
	}
	if r.def.finalize != nil {
		saved := make([]Value, len(r.values))
		copy(saved, r.values)
		if err := r.def.finalize(r); err != nil {
			r.values = saved
			return err
		}
	}
	r.state = StateFinalized
	return nil
}

// Serialize renders every field under its output key. It may be called
// repeatedly and always returns a fresh map with the same content.
func (r *Record) Serialize(mode SerializeMode) (RawRecord, error) {
	if r.state != StateFinalized && r.state != StateSerialized {
		return nil, &StateError{Op: "serialize", State: r.state}
	}
	out := make(RawRecord, len(r.values))
	for i, f := range r.def.schema.fields {
		v := r.values[i]
		if mode == SerializeCodes && f.IsChoice() {
			code, err := f.Encode(v)
			if err != nil {
				return nil, err
			}
			out[f.OutputKey()] = code
			continue
		}
		out[f.OutputKey()] = v.String()
	}
	r.state = StateSerialized
	return out, nil
}
