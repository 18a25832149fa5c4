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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	schema, err := NewSchema("s",
		DateField("dt_notific", "DT_NOTIFIC", Nullable()),
		TextField("sg_uf", "SG_UF", Nullable()),
		DateField("dt_nasc", "DT_NASC", Nullable()),
		TextField("faixa_etaria", "", Computed(), Nullable()),
	)
	require.NoError(t, err)

	assert.Equal(t, 4, schema.Len())
	assert.Equal(t, []string{"DT_NOTIFIC", "DT_NASC"}, schema.DateKeys())
	assert.Equal(t, []string{"dt_notific", "sg_uf", "dt_nasc", "faixa_etaria"}, schema.OutputKeys())

	f, ok := schema.Field("sg_uf")
	require.True(t, ok)
	assert.Equal(t, "SG_UF", f.Key)
	_, ok = schema.Field("missing")
	assert.False(t, ok)
}

func TestNewSchemaConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []*Field
	}{
		{"duplicate name", []*Field{TextField("a", "A"), TextField("a", "B")}},
		{"duplicate key", []*Field{TextField("a", "A"), TextField("b", "A")}},
		{"missing key", []*Field{TextField("a", "")}},
		{"nil field", []*Field{nil}},
		{"unnamed field", []*Field{TextField("", "A")}},
		{"default of wrong kind", []*Field{IntegerField("a", "A", Default(Text("x")))}},
		{"empty text default on input field", []*Field{TextField("a", "A", Default(Text("")))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema("s", tt.fields...)
			var ce *ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestSchemaColumns(t *testing.T) {
	febre, err := ChoiceField("febre", "FEBRE", KindBool, yesNoChoices(), Nullable())
	require.NoError(t, err)
	schema, err := NewSchema("s", febre, IntegerField("idade", "", Computed(), Nullable()))
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "febre", Kind: KindBool}, {Name: "idade", Kind: KindInteger}}, schema.Columns(SerializeSemantic))
	assert.Equal(t, KindText, schema.Columns(SerializeCodes)[0].Kind)
}

func TestColumnParse(t *testing.T) {
	tests := []struct {
		col  Column
		in   string
		want any
	}{
		{Column{Kind: KindText}, "", ""},
		{Column{Kind: KindText}, "x", "x"},
		{Column{Kind: KindInteger}, "", nil},
		{Column{Kind: KindInteger}, "12", int64(12)},
		{Column{Kind: KindBool}, "true", true},
		{Column{Kind: KindDate}, "05/07/2020", time.Date(2020, 7, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := tt.col.Parse(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Column{Kind: KindInteger}.Parse("x")
	assert.Error(t, err)
}

func TestParseSerializeMode(t *testing.T) {
	m, err := ParseSerializeMode("codes")
	require.NoError(t, err)
	assert.Equal(t, SerializeCodes, m)
	m, err = ParseSerializeMode("")
	require.NoError(t, err)
	assert.Equal(t, SerializeSemantic, m)
	_, err = ParseSerializeMode("raw")
	assert.Error(t, err)
}

func TestValueEqualAndDays(t *testing.T) {
	assert.True(t, Null(KindText).Equal(Null(KindBool)))
	assert.False(t, Null(KindText).Equal(Text("")))
	assert.False(t, Int(1).Equal(Bool(true)))
	assert.True(t, Date(time.Date(2021, 1, 1, 15, 4, 0, 0, time.UTC)).Equal(DateOf(2021, 1, 1)))

	days, ok := DaysBetween(DateOf(2021, 1, 1), DateOf(2021, 1, 10))
	require.True(t, ok)
	assert.Equal(t, int64(9), days)

	days, ok = DaysBetween(DateOf(2021, 1, 10), DateOf(2021, 1, 1))
	require.True(t, ok)
	assert.Equal(t, int64(-9), days)

	_, ok = DaysBetween(Null(KindDate), DateOf(2021, 1, 1))
	assert.False(t, ok)

	assert.Equal(t, "", Null(KindInteger).String())
	assert.Equal(t, "false", Bool(false).String())
}
