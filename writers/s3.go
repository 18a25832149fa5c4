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
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/sragetl/core"
)

// Output bound for S3 is staged in a local file and uploaded when the sink
// closes, so nothing partial is ever visible in the bucket.

// S3WriterError wraps upload errors.
type S3WriterError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *S3WriterError) Error() string {
	return fmt.Sprintf("s3 writer %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *S3WriterError) Unwrap() error {
	return e.Err
}

// Uploader is the part of the s3 manager used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// NewS3Uploader wraps an S3 client in a multipart uploader.
func NewS3Uploader(client *s3.Client, partSize int64) *s3manager.Uploader {
	return s3manager.NewUploader(client, func(u *s3manager.Uploader) {
		if partSize > 0 {
			u.PartSize = partSize
		}
	})
}

func uploadFile(ctx context.Context, u Uploader, filename, bucket, key, contentType string) error {
	f, err := os.Open(filename)
	if err != nil {
		return &S3WriterError{Op: "open_staged", Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := u.Upload(ctx, input); err != nil {
		return &S3WriterError{Op: "upload", Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

// S3WriteCloser is an io.WriteCloser staging bytes in a temporary file;
// Close uploads it.
type S3WriteCloser struct {
	file        *os.File
	uploader    Uploader
	bucket      string
	key         string
	contentType string
	closed      bool
}

// NewS3WriteCloser creates the staging file.
func NewS3WriteCloser(u Uploader, bucket, key, contentType string) (*S3WriteCloser, error) {
	f, err := os.CreateTemp("", "sragetl-s3-*")
	if err != nil {
		return nil, &S3WriterError{Op: "stage", Bucket: bucket, Key: key, Err: err}
	}
	return &S3WriteCloser{file: f, uploader: u, bucket: bucket, key: key, contentType: contentType}, nil
}

func (s *S3WriteCloser) Write(p []byte) (int, error) { return s.file.Write(p) }

// Close uploads the staged bytes and removes the staging file.
func (s *S3WriteCloser) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer os.Remove(s.file.Name())

	if err := s.file.Close(); err != nil {
		return &S3WriterError{Op: "close_staged", Bucket: s.bucket, Key: s.key, Err: err}
	}
	return uploadFile(context.Background(), s.uploader, s.file.Name(), s.bucket, s.key, s.contentType)
}

// S3FileSink wraps a sink that writes a local file, for formats that need
// a seekable file such as Parquet. Close closes the inner sink and uploads
// the file.
type S3FileSink struct {
	core.DataSink
	uploader Uploader
	filename string
	bucket   string
	key      string
}

// NewS3FileSink uploads filename to bucket/key once inner is closed.
func NewS3FileSink(inner core.DataSink, filename string, u Uploader, bucket, key string) *S3FileSink {
	return &S3FileSink{DataSink: inner, uploader: u, filename: filename, bucket: bucket, key: key}
}

// Close implements the core.DataSink interface.
func (s *S3FileSink) Close() error {
	defer os.Remove(s.filename)
	if err := s.DataSink.Close(); err != nil {
		return err
	}
	return uploadFile(context.Background(), s.uploader, s.filename, s.bucket, s.key, "")
}
