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

func yesNoChoices() []Choice {
	return []Choice{
		{Code: "1", Value: Bool(true)},
		{Code: "2", Value: Bool(false)},
		{Code: "9", Value: Null(KindBool)},
		{Code: "", Value: Null(KindBool)},
	}
}

func TestFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		field *Field
		value Value
	}{
		{"text", TextField("t", "T"), Text("São Paulo")},
		{"integer", IntegerField("i", "I"), Int(-42)},
		{"integer zero", IntegerField("i", "I"), Int(0)},
		{"bool true", BoolField("b", "B"), Bool(true)},
		{"bool false", BoolField("b", "B"), Bool(false)},
		{"date", DateField("d", "D"), DateOf(2020, 7, 5)},
		{"leap day", DateField("d", "D"), DateOf(2020, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.field.Encode(tt.value)
			require.NoError(t, err)
			got, err := tt.field.Decode(raw)
			require.NoError(t, err)
			assert.True(t, tt.value.Equal(got), "got %v want %v", got, tt.value)
		})
	}
}

func TestFieldDecodeEmptyAndMissing(t *testing.T) {
	t.Run("non-nullable empty fails validation", func(t *testing.T) {
		f := IntegerField("sem_not", "SEM_NOT")
		_, err := f.Decode("")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "sem_not", ve.Field)
		assert.True(t, errors.Is(err, ErrNullValue))
	})

	t.Run("non-nullable missing fails validation", func(t *testing.T) {
		_, err := DateField("dt", "DT").Missing()
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("nullable empty yields default", func(t *testing.T) {
		f := TextField("obs", "OBS", Nullable(), Default(Text("n/a")))
		v, err := f.Decode("")
		require.NoError(t, err)
		assert.Equal(t, "n/a", v.String())
	})

	t.Run("nullable missing yields null", func(t *testing.T) {
		v, err := DateField("dt", "DT", Nullable()).Missing()
		require.NoError(t, err)
		assert.True(t, v.IsNull())
		assert.Equal(t, KindDate, v.Kind())
	})
}

func TestFieldDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		field *Field
		raw   string
	}{
		{"integer", IntegerField("i", "I"), "20-1"},
		{"bool", BoolField("b", "B"), "maybe"},
		{"date with short year", DateField("d", "D"), "05/07/20"},
		{"date without separators", DateField("d", "D"), "05072020"},
		{"impossible date", DateField("d", "D"), "31/02/2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.field.Decode(tt.raw)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.raw, de.Raw)
			assert.True(t, IsRecordError(err))
		})
	}
}

func TestChoiceFieldDecodeEveryCode(t *testing.T) {
	f, err := ChoiceField("febre", "FEBRE", KindBool, yesNoChoices(), Nullable())
	require.NoError(t, err)

	for _, c := range f.Choices() {
		v, err := f.Decode(c.Code)
		require.NoError(t, err, "code %q", c.Code)
		assert.Equal(t, KindBool, v.Kind())
		assert.True(t, c.Value.Equal(v))
	}
}

func TestChoiceFieldUnknownCode(t *testing.T) {
	f, err := ChoiceField("cs_sexo", "CS_SEXO", KindText, []Choice{
		{Code: "M", Value: Text("masculino")},
		{Code: "F", Value: Text("feminino")},
		{Code: "I", Value: Text("ignorado")},
	})
	require.NoError(t, err)

	for _, code := range []string{"X", "", "m"} {
		_, err := f.Decode(code)
		var ue *UnknownCodeError
		require.ErrorAs(t, err, &ue, "code %q", code)
		assert.Equal(t, code, ue.Code)
		assert.Equal(t, "CS_SEXO", ue.Key)
	}
}

func TestChoiceFieldEmptyAsAbsent(t *testing.T) {
	f, err := ChoiceField("tp_idade", "TP_IDADE", KindText, []Choice{
		{Code: "1", Value: Text("dia")},
		{Code: "3", Value: Text("ano")},
	}, Nullable(), EmptyAsAbsent())
	require.NoError(t, err)

	v, err := f.Decode("")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	strict, err := ChoiceField("tp_idade", "TP_IDADE", KindText, []Choice{
		{Code: "1", Value: Text("dia")},
	}, EmptyAsAbsent())
	require.NoError(t, err)
	_, err = strict.Decode("")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestChoiceFieldConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		choices []Choice
		opts    []FieldOption
	}{
		{
			name:    "value of wrong kind",
			kind:    KindBool,
			choices: []Choice{{Code: "1", Value: Text("sim")}},
		},
		{
			name:    "null on non-nullable",
			kind:    KindBool,
			choices: []Choice{{Code: "1", Value: Bool(true)}, {Code: "9", Value: Null(KindBool)}},
		},
		{
			name:    "duplicate code",
			kind:    KindText,
			choices: []Choice{{Code: "1", Value: Text("a")}, {Code: "1", Value: Text("b")}},
		},
		{
			name: "no codes",
			kind: KindText,
		},
		{
			name:    "undeclared default",
			kind:    KindText,
			choices: []Choice{{Code: "1", Value: Text("a")}},
			opts:    []FieldOption{Default(Text("z"))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChoiceField("f", "F", tt.kind, tt.choices, tt.opts...)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "f", ce.Field)
			assert.False(t, IsRecordError(err))
		})
	}

	t.Run("null allowed when nullable", func(t *testing.T) {
		_, err := ChoiceField("f", "F", KindBool, yesNoChoices(), Nullable())
		assert.NoError(t, err)
	})
}

func TestChoiceFieldEncodePicksFirstCode(t *testing.T) {
	f, err := ChoiceField("evolucao", "EVOLUCAO", KindText, []Choice{
		{Code: "1", Value: Text("cura")},
		{Code: "9", Value: Text("ignorado")},
		{Code: "", Value: Text("ignorado")},
	})
	require.NoError(t, err)

	code, err := f.Encode(Text("ignorado"))
	require.NoError(t, err)
	assert.Equal(t, "9", code)

	v, err := f.Decode("")
	require.NoError(t, err)
	code, err = f.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, "9", code, "round trip through a shared value is lossy")

	_, err = f.Encode(Text("óbito"))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFieldRejectsEmptyInputText(t *testing.T) {
	f := TextField("nm_pacient", "NM_PACIENT", Nullable())
	_, err := f.Encode(Text(""))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, ErrEmptyText)

	v, err := f.Decode("")
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "raw empty text decodes as absent")

	computed := TextField("classi_fin_type", "", Computed(), Default(Text("")))
	raw, err := computed.Encode(Text(""))
	require.NoError(t, err)
	assert.Equal(t, "", raw)

	choice, err := ChoiceField("pcr_result", "PCR_RESUL", KindText, []Choice{{Code: "", Value: Text("")}})
	require.NoError(t, err)
	raw, err = choice.Encode(Text(""))
	require.NoError(t, err)
	assert.Equal(t, "", raw)
}

func TestFieldDecodeUnpaddedDate(t *testing.T) {
	f := DateField("dt_notific", "DT_NOTIFIC")
	for _, raw := range []string{"5/7/2020", "05/7/2020", "5/07/2020"} {
		v, err := f.Decode(raw)
		require.NoError(t, err, raw)
		assert.True(t, DateOf(2020, 7, 5).Equal(v), raw)

		enc, err := f.Encode(v)
		require.NoError(t, err)
		assert.Equal(t, "05/07/2020", enc, "encoding is always zero padded")
	}

	_, err := f.Decode("5/7/20")
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestFieldEncodeChecksKind(t *testing.T) {
	_, err := IntegerField("i", "I").Encode(Text("1"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, ErrKindMismatch)
}
