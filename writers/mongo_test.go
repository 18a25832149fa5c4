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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/aaronlmathis/sragetl/core"
)

func TestToDocument_Typed(t *testing.T) {
	nulls := make(map[string]int64)
	doc, err := toDocument(core.Record{
		"dt_notific": "05/01/2021",
		"evolucao":   "cura",
		"idade":      "",
	}, testColumns(), nulls)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "dt_notific", Value: time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)},
		{Key: "evolucao", Value: "cura"},
		{Key: "idade", Value: nil},
		{Key: "is_cure", Value: nil},
	}, doc)
	assert.Equal(t, int64(1), nulls["idade"])
	assert.Equal(t, int64(1), nulls["is_cure"])
}

func TestToDocument_Untyped(t *testing.T) {
	doc, err := toDocument(core.Record{"b": "", "a": "1"}, nil, map[string]int64{})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "a", Value: "1"}, {Key: "b", Value: ""}}, doc)
}

func TestToDocument_BadValue(t *testing.T) {
	_, err := toDocument(core.Record{"is_cure": "maybe"}, testColumns(), map[string]int64{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is_cure")
}

func TestNewMongoWriter_Validation(t *testing.T) {
	_, err := NewMongoWriter(context.Background(), WithMongoWriterCollection("srag"))
	var mErr *MongoWriterError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "validate", mErr.Op)
	assert.Contains(t, err.Error(), "database name is required")

	_, err = NewMongoWriter(context.Background(), WithMongoWriterDB("saude"))
	assert.Contains(t, err.Error(), "collection name is required")

	_, err = NewMongoWriter(context.Background(),
		WithMongoWriterDB("saude"), WithMongoWriterCollection("srag"), WithMongoWriterBatchSize(0))
	assert.Contains(t, err.Error(), "batch size")
}

func TestBuildMongoClientOptions(t *testing.T) {
	opts := buildMongoClientOptions(&MongoWriterOptions{
		URI:      "mongodb://db:27017",
		Database: "saude",
		Username: "etl",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "saude", opts.Auth.AuthSource)
	assert.Equal(t, 5*time.Second, *opts.ConnectTimeout)
}
