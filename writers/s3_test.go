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
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sragetl/core"
)

type fakeUploader struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(input.Bucket)
	f.key = aws.ToString(input.Key)
	f.contentType = aws.ToString(input.ContentType)
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3manager.UploadOutput{}, nil
}

func TestS3WriteCloser_UploadsOnClose(t *testing.T) {
	up := &fakeUploader{}
	wc, err := NewS3WriteCloser(up, "bucket", "out/srag.csv", "text/csv")
	require.NoError(t, err)

	writer, err := NewCSVWriter(wc, WithHeaders([]string{"sg_uf"}))
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), core.Record{"sg_uf": "SP"}))
	assert.Nil(t, up.body, "nothing is uploaded before close")

	require.NoError(t, writer.Close())
	assert.Equal(t, "bucket", up.bucket)
	assert.Equal(t, "out/srag.csv", up.key)
	assert.Equal(t, "text/csv", up.contentType)
	assert.Equal(t, "sg_uf\nSP\n", string(up.body))

	_, err = os.Stat(wc.file.Name())
	assert.True(t, os.IsNotExist(err), "staging file is removed")
	require.NoError(t, wc.Close(), "second close is a no-op")
}

func TestS3WriteCloser_UploadError(t *testing.T) {
	up := &fakeUploader{err: errors.New("denied")}
	wc, err := NewS3WriteCloser(up, "bucket", "k", "")
	require.NoError(t, err)

	err = wc.Close()
	var s3Err *S3WriterError
	require.ErrorAs(t, err, &s3Err)
	assert.Equal(t, "upload", s3Err.Op)
	assert.Contains(t, err.Error(), "s3://bucket/k")
}

func TestS3FileSink(t *testing.T) {
	up := &fakeUploader{}
	filename := filepath.Join(t.TempDir(), "srag.parquet")
	pw, err := NewParquetWriter(filename, WithParquetColumns(testColumns()))
	require.NoError(t, err)

	sink := NewS3FileSink(pw, filename, up, "bucket", "srag.parquet")
	require.NoError(t, sink.Write(context.Background(), core.Record{"evolucao": "cura"}))
	require.NoError(t, sink.Close())

	assert.Equal(t, "srag.parquet", up.key)
	require.Greater(t, len(up.body), 4)
	assert.Equal(t, "PAR1", string(up.body[:4]))
	_, err = os.Stat(filename)
	assert.True(t, os.IsNotExist(err))
}
