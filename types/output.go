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

package types

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"github.com/aaronlmathis/sragetl/config"
	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
	"github.com/aaronlmathis/sragetl/readers"
	"github.com/aaronlmathis/sragetl/writers"
)

// Package types maps an output configuration onto a DataSink. Every sink
// receives the schema columns so that files keep the schema field order
// and typed stores get typed columns.

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatCSV OutputFormat = iota
	FormatJSON
	FormatParquet
	FormatPostgres
	FormatMongo
)

// ParseOutputFormat accepts csv, json, parquet, postgres or mongo.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "csv", "":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	case "postgres":
		return FormatPostgres, nil
	case "mongo":
		return FormatMongo, nil
	}
	return FormatCSV, fmt.Errorf("unsupported output format %q", s)
}

func (f OutputFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	case FormatPostgres:
		return "postgres"
	case FormatMongo:
		return "mongo"
	}
	return "unknown"
}

// OutputLocation creates a DataSink for a given format.
type OutputLocation interface {
	NewSink(ctx context.Context, format OutputFormat, columns []model.Column) (core.DataSink, error)
}

func columnNames(columns []model.Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func csvOptions(columns []model.Column, gzipped bool) []writers.WriterOptionCSV {
	opts := []writers.WriterOptionCSV{writers.WithHeaders(columnNames(columns))}
	if gzipped {
		opts = append(opts, writers.WithGzip(gzip.DefaultCompression))
	}
	return opts
}

// FileLocation writes output to a local filesystem path.
type FileLocation struct {
	Path string
	Gzip bool
}

// NewSink instantiates a writer for the file location.
func (f FileLocation) NewSink(ctx context.Context, format OutputFormat, columns []model.Column) (core.DataSink, error) {
	switch format {
	case FormatCSV, FormatJSON:
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return nil, err
		}
		file, err := os.Create(f.Path)
		if err != nil {
			return nil, err
		}
		if format == FormatJSON {
			return writers.NewJSONWriter(file), nil
		}
		w, err := writers.NewCSVWriter(file, csvOptions(columns, f.Gzip)...)
		if err != nil {
			file.Close()
			return nil, err
		}
		return w, nil
	case FormatParquet:
		return writers.NewParquetWriter(f.Path, writers.WithParquetColumns(columns))
	default:
		return nil, fmt.Errorf("unsupported format %s for FileLocation", format)
	}
}

// S3Location writes objects to an S3 bucket.
type S3Location struct {
	Bucket   string
	Key      string
	Gzip     bool
	Uploader writers.Uploader

	// Used to build an uploader when Uploader is nil.
	Region   string
	Profile  string
	PartSize int64
}

// NewSink creates a writer uploading to S3 when it is closed.
func (s S3Location) NewSink(ctx context.Context, format OutputFormat, columns []model.Column) (core.DataSink, error) {
	if s.Uploader == nil {
		cfg, err := readers.LoadAWSConfig(ctx, s.Region, s.Profile, aws.Credentials{})
		if err != nil {
			return nil, &writers.S3WriterError{Op: "load_config", Bucket: s.Bucket, Key: s.Key, Err: err}
		}
		s.Uploader = writers.NewS3Uploader(s3.NewFromConfig(cfg), s.PartSize)
	}

	switch format {
	case FormatCSV:
		contentType := "text/csv"
		if s.Gzip {
			contentType = "application/gzip"
		}
		wc, err := writers.NewS3WriteCloser(s.Uploader, s.Bucket, s.Key, contentType)
		if err != nil {
			return nil, err
		}
		w, err := writers.NewCSVWriter(wc, csvOptions(columns, s.Gzip)...)
		if err != nil {
			wc.Close()
			return nil, err
		}
		return w, nil
	case FormatJSON:
		wc, err := writers.NewS3WriteCloser(s.Uploader, s.Bucket, s.Key, "application/x-ndjson")
		if err != nil {
			return nil, err
		}
		return writers.NewJSONWriter(wc), nil
	case FormatParquet:
		tmp, err := os.CreateTemp("", "sragetl-*.parquet")
		if err != nil {
			return nil, err
		}
		filename := tmp.Name()
		tmp.Close()
		pw, err := writers.NewParquetWriter(filename, writers.WithParquetColumns(columns))
		if err != nil {
			os.Remove(filename)
			return nil, err
		}
		return writers.NewS3FileSink(pw, filename, s.Uploader, s.Bucket, s.Key), nil
	default:
		return nil, fmt.Errorf("unsupported format %s for S3Location", format)
	}
}

// PostgresLocation directs output to a PostgreSQL table.
type PostgresLocation struct {
	DSN         string
	Table       string
	CreateTable bool
	Truncate    bool
	BatchSize   int
}

// NewSink instantiates a PostgreSQL writer.
func (p PostgresLocation) NewSink(ctx context.Context, format OutputFormat, columns []model.Column) (core.DataSink, error) {
	if format != FormatPostgres {
		return nil, fmt.Errorf("unsupported format %s for PostgresLocation", format)
	}
	return writers.NewPostgresWriter(
		writers.WithPostgresDSN(p.DSN),
		writers.WithTableName(p.Table),
		writers.WithColumns(columns),
		writers.WithPostgresBatchSize(p.BatchSize),
		writers.WithCreateTable(p.CreateTable),
		writers.WithTruncateTable(p.Truncate),
	)
}

// MongoLocation directs output to a MongoDB collection.
type MongoLocation struct {
	URI        string
	Database   string
	Collection string
	BatchSize  int
}

// NewSink connects a MongoDB writer.
func (m MongoLocation) NewSink(ctx context.Context, format OutputFormat, columns []model.Column) (core.DataSink, error) {
	if format != FormatMongo {
		return nil, fmt.Errorf("unsupported format %s for MongoLocation", format)
	}
	return writers.NewMongoWriter(ctx,
		writers.WithMongoWriterURI(m.URI),
		writers.WithMongoWriterDB(m.Database),
		writers.WithMongoWriterCollection(m.Collection),
		writers.WithMongoColumns(columns),
		writers.WithMongoWriterBatchSize(m.BatchSize),
	)
}

// Location picks the output location described by cfg. An S3 key takes
// precedence over a local path.
func Location(cfg config.OutputConfig) (OutputLocation, OutputFormat, error) {
	format, err := ParseOutputFormat(cfg.Format)
	if err != nil {
		return nil, format, err
	}
	switch {
	case format == FormatPostgres:
		pg := cfg.Postgres
		return PostgresLocation{DSN: pg.DSN, Table: pg.Table, CreateTable: pg.CreateTable, Truncate: pg.Truncate, BatchSize: pg.BatchSize}, format, nil
	case format == FormatMongo:
		mg := cfg.Mongo
		return MongoLocation{URI: mg.URI, Database: mg.Database, Collection: mg.Collection, BatchSize: mg.BatchSize}, format, nil
	case cfg.S3.Key != "":
		return S3Location{
			Bucket:   cfg.S3.Bucket,
			Key:      cfg.S3.Key,
			Gzip:     cfg.Gzip,
			Region:   cfg.S3.Region,
			Profile:  cfg.S3.Profile,
			PartSize: cfg.S3.PartSize,
		}, format, nil
	default:
		return FileLocation{Path: cfg.Path, Gzip: cfg.Gzip}, format, nil
	}
}

// NewSink builds the sink described by cfg for the given columns.
func NewSink(ctx context.Context, cfg config.OutputConfig, columns []model.Column) (core.DataSink, error) {
	loc, format, err := Location(cfg)
	if err != nil {
		return nil, err
	}
	return loc.NewSink(ctx, format, columns)
}
