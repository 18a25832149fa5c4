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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDefinition declares a small record type:
// admitted date, outcome choice with a companion label, outcome date and a
// derived day count.
func testDefinition(t *testing.T, hooks *Hooks) *Definition {
	t.Helper()
	outcome, err := ChoiceField("outcome", "OUTCOME", KindText, []Choice{
		{Code: "1", Value: Text("cure")},
		{Code: "2", Value: Text("death")},
		{Code: "9", Value: Text("ignored")},
		{Code: "", Value: Text("ignored")},
	})
	require.NoError(t, err)

	schema, err := NewSchema("test",
		DateField("admitted", "DT_ADMITTED", Nullable()),
		outcome,
		TextField("outcome_label", "", Computed(), Nullable()),
		DateField("closed", "DT_CLOSED", Nullable()),
		IntegerField("stay", "", Computed(), Nullable()),
		BoolField("is_cure", "", Computed(), Default(Bool(false))),
	)
	require.NoError(t, err)

	def, err := NewDefinition(schema, hooks, func(rec *Record) error {
		if days, ok := DaysBetween(rec.Get("admitted"), rec.Get("closed")); ok {
			if err := rec.Set("stay", Int(days)); err != nil {
				return err
			}
		}
		return rec.Set("is_cure", Bool(rec.Get("outcome").Equal(Text("cure"))))
	})
	require.NoError(t, err)
	return def
}

func TestRecordLifecycle(t *testing.T) {
	def := testDefinition(t, nil)
	rec := def.NewRecord(nil)
	assert.Equal(t, StateRaw, rec.State())

	repairs, err := rec.Populate(RawRecord{"DT_ADMITTED": "01/01/2021", "OUTCOME": "1", "DT_CLOSED": "10/01/2021"})
	require.NoError(t, err)
	assert.Empty(t, repairs)
	assert.Equal(t, StatePopulated, rec.State())

	require.NoError(t, rec.Finalize())
	assert.Equal(t, StateFinalized, rec.State())

	out, err := rec.Serialize(SerializeSemantic)
	require.NoError(t, err)
	assert.Equal(t, RawRecord{
		"dt_admitted":   "01/01/2021",
		"outcome":       "cure",
		"outcome_label": "",
		"dt_closed":     "10/01/2021",
		"stay":          "9",
		"is_cure":       "true",
	}, out)
	assert.Equal(t, StateSerialized, rec.State())

	again, err := rec.Serialize(SerializeSemantic)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	codes, err := rec.Serialize(SerializeCodes)
	require.NoError(t, err)
	assert.Equal(t, "1", codes["outcome"])
}

func TestRecordStateMisuse(t *testing.T) {
	def := testDefinition(t, nil)
	rec := def.NewRecord(nil)

	assert.ErrorIs(t, rec.Finalize(), ErrInvalidState)
	_, err := rec.Serialize(SerializeSemantic)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = rec.Values()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = rec.Populate(RawRecord{"OUTCOME": "2"})
	require.NoError(t, err)
	_, err = rec.Populate(RawRecord{"OUTCOME": "2"})
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, rec.Finalize())
	assert.ErrorIs(t, rec.Finalize(), ErrInvalidState)
	assert.ErrorIs(t, rec.Set("stay", Int(1)), ErrInvalidState)
}

func TestRecordPopulateIsAtomic(t *testing.T) {
	def := testDefinition(t, nil)
	rec := def.NewRecord(nil)

	_, err := rec.Populate(RawRecord{"DT_ADMITTED": "01/01/2021", "OUTCOME": "7"})
	var ue *UnknownCodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "outcome", ue.Field)

	assert.Equal(t, StateRaw, rec.State())
	assert.True(t, rec.Get("admitted").IsNull(), "no partial value may be visible")
	_, err = rec.Values()
	assert.Error(t, err)

	_, err = rec.Populate(RawRecord{"DT_ADMITTED": "01/01/2021", "OUTCOME": "1"})
	require.NoError(t, err, "a rejected record can be populated again")
}

func TestRecordMissingKeyUsesDefault(t *testing.T) {
	def := testDefinition(t, nil)
	rec := def.NewRecord(nil)

	_, err := rec.Populate(RawRecord{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve, "outcome has no default and is not nullable")
	assert.Equal(t, "outcome", ve.Field)

	_, err = rec.Populate(RawRecord{"OUTCOME": ""})
	require.NoError(t, err)
	assert.True(t, rec.Get("admitted").IsNull())
	assert.Equal(t, "ignored", rec.Get("outcome").String())
}

func TestRecordHooks(t *testing.T) {
	var sawClosed Value
	hooks := NewHooks().Register("outcome", func(v Value, f *Field, raw RawRecord, rec *Record) (Value, error) {
		sawClosed = rec.Get("closed")
		labels := map[string]string{"1": "alta", "2": "óbito"}
		if err := rec.Set("outcome_label", Text(labels[raw[f.Key]])); err != nil {
			return Value{}, err
		}
		assert.Equal(t, "01/01/2021", rec.Get("admitted").String(), "earlier fields are visible")
		return v, nil
	})
	def := testDefinition(t, hooks)
	rec := def.NewRecord(nil)

	_, err := rec.Populate(RawRecord{"DT_ADMITTED": "01/01/2021", "OUTCOME": "2", "DT_CLOSED": "03/01/2021"})
	require.NoError(t, err)
	assert.True(t, sawClosed.IsNull(), "later fields are not visible to hooks")
	assert.Equal(t, "óbito", rec.Get("outcome_label").String())
	assert.Equal(t, "03/01/2021", rec.Get("closed").String())
}

func TestRecordHookErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("hook failure rejects record", func(t *testing.T) {
		def := testDefinition(t, NewHooks().Register("admitted", func(Value, *Field, RawRecord, *Record) (Value, error) {
			return Value{}, boom
		}))
		rec := def.NewRecord(nil)
		_, err := rec.Populate(RawRecord{"OUTCOME": "1"})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StateRaw, rec.State())
	})

	t.Run("hook may not return undeclared choice value", func(t *testing.T) {
		def := testDefinition(t, NewHooks().Register("outcome", func(Value, *Field, RawRecord, *Record) (Value, error) {
			return Text("unheard of"), nil
		}))
		_, err := def.NewRecord(nil).Populate(RawRecord{"OUTCOME": "1"})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("hook may not set input fields", func(t *testing.T) {
		def := testDefinition(t, NewHooks().Register("outcome", func(v Value, _ *Field, _ RawRecord, rec *Record) (Value, error) {
			return v, rec.Set("admitted", DateOf(2020, 1, 1))
		}))
		_, err := def.NewRecord(nil).Populate(RawRecord{"OUTCOME": "1"})
		var ce *ConfigurationError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestDefinitionRejectsBadHooks(t *testing.T) {
	identity := func(v Value, _ *Field, _ RawRecord, _ *Record) (Value, error) { return v, nil }
	schema := testDefinition(t, nil).Schema()

	tests := []struct {
		name  string
		hooks *Hooks
	}{
		{"unknown field", NewHooks().Register("nope", identity)},
		{"computed field", NewHooks().Register("stay", identity)},
		{"nil hook", NewHooks().Register("outcome", nil)},
		{"registered twice", NewHooks().Register("outcome", identity).Register("outcome", identity)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition(schema, tt.hooks, nil)
			var ce *ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestRecordPopulateRunsDateRepair(t *testing.T) {
	def := testDefinition(t, nil)
	d, _, counter := newTestRepair(t, 2019)

	rec := def.NewRecord(d)
	raw := RawRecord{"DT_ADMITTED": "01/01/21", "OUTCOME": "1", "DT_CLOSED": "10/01/2021"}
	repairs, err := rec.Populate(raw)
	require.NoError(t, err)
	require.Len(t, repairs, 1)
	assert.Equal(t, "DT_ADMITTED", repairs[0].Key)
	assert.Equal(t, "01/01/2021", rec.Get("admitted").String())
	assert.Equal(t, "01/01/21", raw["DT_ADMITTED"])
	assert.Equal(t, int64(1), counter.Load())

	require.NoError(t, rec.Finalize())
	assert.Equal(t, "9", rec.Get("stay").String())
}

func TestRecordFinalizeFailureLeavesRecordUnchanged(t *testing.T) {
	outcome, err := ChoiceField("outcome", "OUTCOME", KindText, []Choice{{Code: "1", Value: Text("cure")}})
	require.NoError(t, err)
	schema, err := NewSchema("f", outcome, IntegerField("n", "", Computed(), Nullable()))
	require.NoError(t, err)
	boom := errors.New("boom")
	def, err := NewDefinition(schema, nil, func(rec *Record) error {
		if err := rec.Set("n", Int(1)); err != nil {
			return err
		}
		return boom
	})
	require.NoError(t, err)

	rec := def.NewRecord(nil)
	_, err = rec.Populate(RawRecord{"OUTCOME": "1"})
	require.NoError(t, err)
	assert.ErrorIs(t, rec.Finalize(), boom)
	assert.Equal(t, StatePopulated, rec.State())
	assert.True(t, rec.Get("n").IsNull())
}

func TestRecordValues(t *testing.T) {
	def := testDefinition(t, nil)
	rec := def.NewRecord(nil)
	_, err := rec.Populate(RawRecord{"OUTCOME": "9", "DT_CLOSED": "02/03/2021"})
	require.NoError(t, err)

	values, err := rec.Values()
	require.NoError(t, err)
	assert.Len(t, values, def.Schema().Len())
	d, ok := values["closed"].AsDate()
	require.True(t, ok)
	assert.Equal(t, 2021, d.Year())
	assert.Equal(t, 3, int(d.Month()))
}
