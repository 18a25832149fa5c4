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
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// RepairMethod names the rule that produced a date repair.
type RepairMethod string

const (
	// RepairSibling adopts a well-formed date sharing the day/month prefix.
	RepairSibling RepairMethod = "sibling"
	// RepairUniqueYear uses the only four-digit year seen in the record.
	RepairUniqueYear RepairMethod = "unique_year"
	// RepairFallback uses the configured fallback year.
	RepairFallback RepairMethod = "fallback"
)

// Repair records one rewritten date value.
type Repair struct {
	Key      string       `json:"key"`
	Original string       `json:"original"`
	Repaired string       `json:"repaired"`
	Method   RepairMethod `json:"method"`
}

// RepairCounter counts repairs across a run. It is safe for concurrent use.
type RepairCounter struct {
	n atomic.Int64
}

func NewRepairCounter() *RepairCounter { return &RepairCounter{} }

func (c *RepairCounter) Add(n int) {
	if c != nil {
		c.n.Add(int64(n))
	}
}

func (c *RepairCounter) Load() int64 {
	if c == nil {
		return 0
	}
	return c.n.Load()
}

// DateRepair fixes date values whose year was truncated to two or three
// characters, using the other dates of the same record.
type DateRepair struct {
	fallbackYear int
	logger       *slog.Logger
	counter      *RepairCounter
}

// RepairOption customizes a DateRepair.
type RepairOption func(*DateRepair)

func WithRepairLogger(l *slog.Logger) RepairOption {
	return func(d *DateRepair) { d.logger = l }
}

func WithRepairCounter(c *RepairCounter) RepairOption {
	return func(d *DateRepair) { d.counter = c }
}

// NewDateRepair builds the heuristic. fallbackYear is used when the
// record offers no single candidate year and must be a four-digit year.
func NewDateRepair(fallbackYear int, opts ...RepairOption) (*DateRepair, error) {
	if fallbackYear < 1000 || fallbackYear > 9999 {
		return nil, &ConfigurationError{Err: fmt.Errorf("fallback year %d is not a four-digit year", fallbackYear)}
	}
	d := &DateRepair{fallbackYear: fallbackYear}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

func (d *DateRepair) FallbackYear() int { return d.fallbackYear }

// Counter returns the run counter, or nil when none is attached.
func (d *DateRepair) Counter() *RepairCounter { return d.counter }

type dateParts struct {
	key    string
	value  string
	prefix string // day/month part including the trailing slash
	year   string
}

// splitDate accepts only <day>/<month>/<year> with digit-only parts. Any
// other shape is left for the decoder to reject.
func splitDate(key, value string) (dateParts, bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return dateParts{}, false
	}
	for _, part := range parts {
		if !isDigits(part) {
			return dateParts{}, false
		}
	}
	i := strings.LastIndex(value, "/")
	return dateParts{key: key, value: value, prefix: value[:i+1], year: value[i+1:]}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isYear(s string) bool {
	return len(s) == 4 && isDigits(s)
}

// Apply runs the heuristic over keys (date keys in declaration order) and
// returns a repaired copy of raw plus every repair made. raw is not modified.
func (d *DateRepair) Apply(keys []string, raw RawRecord) (RawRecord, []Repair) {
	var wellFormed, suspect []dateParts
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		p, ok := splitDate(key, value)
		if !ok {
			continue
		}
		switch {
		case isYear(p.year):
			wellFormed = append(wellFormed, p)
		case len(p.year) == 2 || len(p.year) == 3:
			suspect = append(suspect, p)
		}
	}
	if len(suspect) == 0 {
		return raw, nil
	}

	out := raw.Clone()
	repairs := make([]Repair, 0, len(suspect))
	for _, s := range suspect {
		r := Repair{Key: s.key, Original: s.value}
		if sibling, ok := siblingMatch(s, wellFormed); ok {
			r.Repaired, r.Method = sibling, RepairSibling
		} else if years := candidateYears(s, wellFormed); len(years) == 1 {
			r.Repaired, r.Method = s.prefix+years[0], RepairUniqueYear
		} else {
			r.Repaired, r.Method = s.prefix+strconv.Itoa(d.fallbackYear), RepairFallback
			d.logger.Warn("date repair fell back to configured year",
				"key", s.key,
				"original", s.value,
				"repaired", r.Repaired,
				"candidate_years", years,
			)
		}
		out[s.key] = r.Repaired
		repairs = append(repairs, r)
	}
	d.counter.Add(len(repairs))
	return out, repairs
}

func siblingMatch(s dateParts, wellFormed []dateParts) (string, bool) {
	for _, w := range wellFormed {
		if w.key != s.key && w.prefix == s.prefix {
			return w.value, true
		}
	}
	return "", false
}

func candidateYears(s dateParts, wellFormed []dateParts) []string {
	seen := make(map[string]struct{})
	for _, w := range wellFormed {
		if w.key != s.key {
			seen[w.year] = struct{}{}
		}
	}
	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}
