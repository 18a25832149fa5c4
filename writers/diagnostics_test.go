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

package writers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

func TestDiagnosticsWriter(t *testing.T) {
	repairs := &mockWriteCloser{}
	rejects := &mockWriteCloser{}
	d := NewDiagnosticsWriter(repairs, rejects)
	ctx := context.Background()

	require.NoError(t, d.WriteRepairs(ctx, 7, []model.Repair{
		{Key: "DT_INTERNA", Original: "01/02/21", Repaired: "01/02/2021", Method: model.RepairSibling},
		{Key: "DT_EVOLUCA", Original: "03/02/202", Repaired: "03/02/2020", Method: model.RepairFallback},
	}))
	require.NoError(t, d.WriteRepairs(ctx, 8, nil))
	require.NoError(t, d.WriteReject(ctx, core.Reject{
		Row:         9,
		Fingerprint: "00000000deadbeef",
		Field:       "evolucao",
		Error:       "unknown code",
		Record:      core.Record{"EVOLUCAO": "7"},
	}))
	require.NoError(t, d.Close())

	assert.True(t, repairs.IsClosed())
	assert.True(t, rejects.IsClosed())

	lines := strings.Split(strings.TrimSpace(repairs.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"row":7,"key":"DT_INTERNA","original":"01/02/21","repaired":"01/02/2021","method":"sibling"}`, lines[0])
	assert.Contains(t, lines[1], `"method":"fallback"`)

	assert.Equal(t,
		`{"row":9,"fingerprint":"00000000deadbeef","field":"evolucao","error":"unknown code","record":{"EVOLUCAO":"7"}}`+"\n",
		rejects.String())

	stats := d.Stats()
	assert.Equal(t, int64(2), stats.Repairs)
	assert.Equal(t, int64(1), stats.Rejects)
}

func TestDiagnosticsWriter_NilStreams(t *testing.T) {
	d := NewDiagnosticsWriter(nil, nil)
	require.NoError(t, d.WriteRepairs(context.Background(), 1, []model.Repair{{Key: "K"}}))
	require.NoError(t, d.WriteReject(context.Background(), core.Reject{Row: 1}))
	require.NoError(t, d.Close())
	assert.Equal(t, DiagnosticsStats{}, d.Stats())
}
