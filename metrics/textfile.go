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

package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	sragetl "github.com/aaronlmathis/sragetl"
	"github.com/aaronlmathis/sragetl/model"
)

// Package metrics exposes the outcome of a run in the Prometheus text
// format, written as a textfile for the node exporter collector.

// Metric names.
const (
	RecordsTotal     = "sragetl_records_total"
	DateRepairsTotal = "sragetl_date_repairs_total"
	RepairsApplied   = "sragetl_date_repairs_applied_total"
	RunDuration      = "sragetl_run_duration_seconds"
	LastRunTimestamp = "sragetl_last_run_timestamp_seconds"
)

// Families converts a run summary into metric families sorted by name.
func Families(summary sragetl.RunSummary, finished time.Time) []*dto.MetricFamily {
	records := family(RecordsTotal, "Rows processed by status.", dto.MetricType_COUNTER)
	for _, s := range []struct {
		status string
		value  int64
	}{
		{"read", summary.Read},
		{"written", summary.Written},
		{"rejected", summary.Rejected},
	} {
		records.Metric = append(records.Metric, counter(float64(s.value), "status", s.status))
	}

	repairs := family(DateRepairsTotal, "Truncated dates completed by the repair heuristic.", dto.MetricType_COUNTER)
	methods := make([]string, 0, len(summary.RepairsByMethod))
	for m := range summary.RepairsByMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	if len(methods) == 0 {
		repairs.Metric = append(repairs.Metric, counter(float64(summary.Repairs)))
	}
	for _, m := range methods {
		n := summary.RepairsByMethod[model.RepairMethod(m)]
		repairs.Metric = append(repairs.Metric, counter(float64(n), "method", m))
	}

	applied := family(RepairsApplied, "Repairs counted by the heuristic, including rows never written.", dto.MetricType_COUNTER)
	applied.Metric = append(applied.Metric, counter(float64(summary.RepairsApplied)))

	duration := family(RunDuration, "Wall time of the last run.", dto.MetricType_GAUGE)
	duration.Metric = append(duration.Metric, gauge(summary.Duration.Seconds()))

	last := family(LastRunTimestamp, "Unix time the last run finished.", dto.MetricType_GAUGE)
	last.Metric = append(last.Metric, gauge(float64(finished.UnixNano())/1e9))

	out := []*dto.MetricFamily{records, repairs, applied, duration, last}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WriteText writes families in the text exposition format.
func WriteText(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile writes the summary to path. The file is written next to
// path and renamed into place so a collector never reads a partial file.
func WriteTextfile(path string, summary sragetl.RunSummary, finished time.Time) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteText(tmp, Families(summary, finished)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func family(name, help string, t dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{Name: &name, Help: &help, Type: &t}
}

func labels(pairs ...string) []*dto.LabelPair {
	var out []*dto.LabelPair
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		out = append(out, &dto.LabelPair{Name: &name, Value: &value})
	}
	return out
}

func counter(v float64, labelPairs ...string) *dto.Metric {
	return &dto.Metric{Label: labels(labelPairs...), Counter: &dto.Counter{Value: &v}}
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: &v}}
}
