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
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the internal type carried by a Value.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindBool
	KindDate
)

// DateLayout is the day/month/year layout used by the notification datasets.
const DateLayout = "02/01/2006"

// unpaddedDateLayout accepts single-digit days and months, as in 5/7/2020.
const unpaddedDateLayout = "2/1/2006"

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	if u, uerr := time.Parse(unpaddedDateLayout, s); uerr == nil {
		return u, nil
	}
	return time.Time{}, err
}

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged field value.
// The zero Value is the empty text value. Values are compared with Equal;
// there is no implicit arithmetic.
type Value struct {
	kind Kind
	null bool
	s    string
	i    int64
	b    bool
	d    time.Time
}

// Null returns the null value of kind k.
func Null(k Kind) Value { return Value{kind: k, null: true} }

func Text(s string) Value { return Value{kind: KindText, s: s} }

func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date truncates t to a calendar day in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, d: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf builds a date value from its calendar parts.
func DateOf(year int, month time.Month, day int) Value {
	return Value{kind: KindDate, d: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.null }

// AsText returns the string payload; ok is false for null or non-text values.
func (v Value) AsText() (string, bool) {
	if v.null || v.kind != KindText {
		return "", false
	}
	return v.s, true
}

func (v Value) AsInt() (int64, bool) {
	if v.null || v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsBool() (bool, bool) {
	if v.null || v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsDate() (time.Time, bool) {
	if v.null || v.kind != KindDate {
		return time.Time{}, false
	}
	return v.d, true
}

// Equal reports whether v and o hold the same payload. Two nulls are equal.
func (v Value) Equal(o Value) bool {
	if v.null || o.null {
		return v.null && o.null
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.s == o.s
	case KindInteger:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.d.Equal(o.d)
	}
	return false
}

// DaysBetween returns to minus from in whole days. ok is false when
// either value is null or not a date.
func DaysBetween(from, to Value) (days int64, ok bool) {
	a, okA := from.AsDate()
	b, okB := to.AsDate()
	if !okA || !okB {
		return 0, false
	}
	return (b.Unix() - a.Unix()) / 86400, true
}

// String renders the value the way it is written to output streams.
// Null renders as the empty string.
func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindText:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.d.Format(DateLayout)
	}
	return ""
}

// withKind retags a null value so it matches the owning field.
func (v Value) withKind(k Kind) Value {
	if v.null {
		v.kind = k
	}
	return v
}
