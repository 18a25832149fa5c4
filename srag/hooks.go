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

package srag

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aaronlmathis/sragetl/model"
)

var (
	ventilationTypes = map[string]string{
		"1": "invasivo",
		"2": "não invasivo",
	}
	gestationTypes = map[string]string{
		"1": "primeiro trimestre",
		"2": "segundo trimestre",
		"3": "terceiro trimestre",
		"4": "idade gestacional ignorada",
		"5": "não",
		"6": "não aplicável",
		"9": Ignored,
		"0": "",
	}
	classificationTypes = map[string]string{
		"1": "influenza",
		"2": "outro vírus respiratório",
		"3": "outro agente etiológico, qual:",
		"4": "não especificado",
		"5": "COVID-19",
		"":  "",
	}
)

// otherAgentCode is the CLASSI_FIN code whose type is read from CLASSI_OUT.
const otherAgentCode = "3"

// NewHooks returns the hooks that fill companion attributes from coded
// fields.
func NewHooks() *model.Hooks {
	return model.NewHooks().
		Register("suport_ven", onVentilationSupport).
		Register("cs_gestant", onGestation).
		Register("classi_fin", onFinalClassification)
}

func onVentilationSupport(v model.Value, f *model.Field, raw model.RawRecord, rec *model.Record) (model.Value, error) {
	kind := model.Null(model.KindText)
	if t, ok := ventilationTypes[raw[f.Key]]; ok {
		kind = model.Text(t)
	}
	return v, rec.Set("suport_ven_type", kind)
}

func onGestation(v model.Value, f *model.Field, raw model.RawRecord, rec *model.Record) (model.Value, error) {
	return v, rec.Set("cs_gestant_type", model.Text(gestationTypes[raw[f.Key]]))
}

func onFinalClassification(v model.Value, f *model.Field, raw model.RawRecord, rec *model.Record) (model.Value, error) {
	code := raw[f.Key]
	kind := classificationTypes[code]
	if code == otherAgentCode {
		// cases.Caser is stateful; build one per call.
		kind = cases.Lower(language.BrazilianPortuguese).String(raw["CLASSI_OUT"])
	}
	return v, rec.Set("classi_fin_type", model.Text(kind))
}
