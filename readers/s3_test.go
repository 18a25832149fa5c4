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

package readers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	order   []string
	gets    []string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for i, key := range f.order {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(f.objects[key]))),
			LastModified: aws.Time(time.Date(2021, 1, 1+i, 0, 0, 0, 0, time.UTC)),
			ETag:         aws.String(`"etag"`),
		})
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Reader_ReadsMatchingObjects(t *testing.T) {
	fake := &fakeS3{
		objects: map[string][]byte{
			"srag/2021.csv.gz":  gzipBytes(t, "SG_UF;EVOLUCAO\nSP;1\n"),
			"srag/2020.csv":     []byte("SG_UF;EVOLUCAO\nRJ;2\nMG;\n"),
			"srag/old/2019.csv": []byte("SG_UF\nAC\n"),
			"srag/extra.jsonl":  []byte("{\"SG_UF\":\"BA\"}\n"),
			"srag/":             nil,
		},
		order: []string{"srag/2021.csv.gz", "srag/extra.jsonl", "srag/2020.csv", "srag/old/2019.csv", "srag/"},
	}

	reader, err := NewS3ReaderWithClient(fake,
		WithS3Bucket("datasus"),
		WithS3Prefix("srag/"),
		WithS3Recursive(false),
	)
	require.NoError(t, err)
	defer reader.Close()

	var ufs []string
	for _, rec := range readAll(t, reader) {
		ufs = append(ufs, rec["SG_UF"])
	}
	assert.Equal(t, []string{"RJ", "MG", "SP", "BA"}, ufs, "objects are read in key order")

	stats := reader.Stats()
	assert.Equal(t, int64(3), stats.ObjectsListed)
	assert.Equal(t, int64(4), stats.RecordsRead)
	assert.Equal(t, []string{"srag/2020.csv", "srag/2021.csv.gz", "srag/extra.jsonl"}, stats.ProcessedFiles)
	assert.NotContains(t, fake.gets, "srag/old/2019.csv")
}

func TestS3Reader_SuffixFilter(t *testing.T) {
	fake := &fakeS3{
		objects: map[string][]byte{
			"a.csv":   []byte("K\n1\n"),
			"b.jsonl": []byte("{\"K\":\"2\"}\n"),
		},
		order: []string{"a.csv", "b.jsonl"},
	}
	reader, err := NewS3ReaderWithClient(fake, WithS3Bucket("b"), WithS3Suffix(".jsonl"))
	require.NoError(t, err)

	recs := readAll(t, reader)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0]["K"])
}

func TestS3Reader_Validation(t *testing.T) {
	_, err := NewS3ReaderWithClient(&fakeS3{})
	var s3Err *S3ReaderError
	require.ErrorAs(t, err, &s3Err)
	assert.Equal(t, "validate_options", s3Err.Op)
}

func TestS3Reader_GetObjectError(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, order: []string{"missing.csv"}}
	reader, err := NewS3ReaderWithClient(fake, WithS3Bucket("b"))
	require.NoError(t, err)

	_, err = reader.Read(context.Background())
	var s3Err *S3ReaderError
	require.ErrorAs(t, err, &s3Err)
	assert.Equal(t, "get_object", s3Err.Op)
	assert.Equal(t, "missing.csv", s3Err.Key)
}

func TestSortObjects(t *testing.T) {
	objs := []S3Object{
		{Key: "b", Size: 1, LastModified: time.Unix(30, 0)},
		{Key: "a", Size: 3, LastModified: time.Unix(20, 0)},
		{Key: "c", Size: 2, LastModified: time.Unix(10, 0)},
	}
	keys := func() string {
		s := ""
		for _, o := range objs {
			s += o.Key
		}
		return s
	}

	sortObjects(objs, SortByName)
	assert.Equal(t, "abc", keys())
	sortObjects(objs, SortBySize)
	assert.Equal(t, "bca", keys())
	sortObjects(objs, SortByLastModified)
	assert.Equal(t, "cab", keys())
}
