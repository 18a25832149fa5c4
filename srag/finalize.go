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
	"fmt"
	"math"

	"github.com/aaronlmathis/sragetl/model"
)

// daysPerYear avoids calendar-year subtraction: partial birth dates are
// common in the data.
const daysPerYear = 365.25

// ageBrackets are the inclusive bounds of the age groups used across the
// Brazilian health datasets. The last group is open-ended.
var ageBrackets = [][2]int64{
	{0, 4}, {5, 9}, {10, 14}, {15, 19}, {20, 24}, {25, 29}, {30, 34}, {35, 39},
	{40, 44}, {45, 49}, {50, 54}, {55, 59}, {60, 64}, {65, 69}, {70, 74}, {75, 79},
	{80, 84}, {85, 89},
}

const openBracketStart = 90

// AgeBracket returns the age group label for age, such as "05 a 09" or
// "90+". Negative ages have no group.
func AgeBracket(age int64) (string, bool) {
	if age < 0 {
		return "", false
	}
	if age >= openBracketStart {
		return fmt.Sprintf("%02d+", openBracketStart), true
	}
	for _, b := range ageBrackets {
		if age >= b[0] && age <= b[1] {
			return fmt.Sprintf("%02d a %02d", b[0], b[1]), true
		}
	}
	return "", false
}

// ageOf resolves the patient age in years. Ages stated in days or months
// collapse to zero; otherwise the notification and birth dates win over
// the stated age when both are present.
func ageOf(rec *model.Record) model.Value {
	if unit, _ := rec.Get("tp_idade").AsText(); unit == "dia" || unit == "mês" {
		return model.Int(0)
	}
	if days, ok := model.DaysBetween(rec.Get("dt_nasc"), rec.Get("dt_notific")); ok {
		return model.Int(int64(math.Floor(float64(days) / daysPerYear)))
	}
	return rec.Get("nu_idade_n")
}

// Finalize computes the derived attributes of a populated record: age,
// age group, outcome flags and the admission to outcome day count. At
// most one of the three day counters is set.
func Finalize(rec *model.Record) error {
	age := ageOf(rec)
	bracket := model.Null(model.KindText)
	if years, ok := age.AsInt(); ok {
		if label, ok := AgeBracket(years); ok {
			bracket = model.Text(label)
		}
	}

	outcome, _ := rec.Get("evolucao").AsText()
	isDeath := outcome == Death || outcome == DeathOtherCauses
	isCure := outcome == Cure

	for name, v := range map[string]model.Value{
		Age:      age,
		AgeRange: bracket,
		IsDeath:  model.Bool(isDeath),
		IsCure:   model.Bool(isCure),
	} {
		if err := rec.Set(name, v); err != nil {
			return err
		}
	}

	days, ok := model.DaysBetween(rec.Get("dt_interna"), rec.Get("dt_evoluca"))
	if !ok {
		return nil
	}
	var counter string
	switch outcome {
	case Cure:
		counter = DaysToDischarge
	case Death:
		counter = DaysToDeath
	case DeathOtherCauses:
		counter = DaysToDeathOther
	default:
		return nil
	}
	return rec.Set(counter, model.Int(days))
}

// NewDefinition builds the hospitalization record type.
func NewDefinition() (*model.Definition, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}
	return model.NewDefinition(schema, NewHooks(), Finalize)
}
