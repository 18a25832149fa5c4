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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sragetl "github.com/aaronlmathis/sragetl"
	"github.com/aaronlmathis/sragetl/model"
)

func testSummary() sragetl.RunSummary {
	return sragetl.RunSummary{
		Read:           10,
		Written:        8,
		Rejected:       2,
		Repairs:        5,
		RepairsApplied: 6,
		RepairsByMethod: map[model.RepairMethod]int64{
			model.RepairSibling:  3,
			model.RepairFallback: 2,
		},
		Duration: 1500 * time.Millisecond,
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Families(testSummary(), time.Unix(1700000000, 0))))
	text := buf.String()

	assert.Contains(t, text, "# TYPE sragetl_records_total counter")
	assert.Contains(t, text, `sragetl_records_total{status="rejected"} 2`)
	assert.Contains(t, text, `sragetl_records_total{status="written"} 8`)
	assert.Contains(t, text, `sragetl_date_repairs_total{method="sibling"} 3`)
	assert.Contains(t, text, `sragetl_date_repairs_total{method="fallback"} 2`)
	assert.Contains(t, text, "sragetl_date_repairs_applied_total 6")
	assert.Contains(t, text, "sragetl_run_duration_seconds 1.5")
	assert.Contains(t, text, "sragetl_last_run_timestamp_seconds 1.7e+09")

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	require.NoError(t, err)
	require.Contains(t, mfs, RecordsTotal)
	assert.Len(t, mfs[RecordsTotal].GetMetric(), 3)
	assert.Len(t, mfs[DateRepairsTotal].GetMetric(), 2)
}

func TestFamilies_NoRepairs(t *testing.T) {
	families := Families(sragetl.RunSummary{Read: 1, Written: 1}, time.Now())
	require.Len(t, families, 5)

	var repairs bool
	for _, mf := range families {
		if mf.GetName() == DateRepairsTotal {
			repairs = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(0), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, repairs, "repairs counter is always exported")
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "sragetl.prom")
	require.NoError(t, WriteTextfile(path, testSummary(), time.Now()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sragetl_records_total{status="read"} 10`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}
