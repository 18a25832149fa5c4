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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	sragetl "github.com/aaronlmathis/sragetl"
	"github.com/aaronlmathis/sragetl/config"
	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
	"github.com/aaronlmathis/sragetl/readers"
	"github.com/aaronlmathis/sragetl/srag"
	"github.com/aaronlmathis/sragetl/transform"
	"github.com/aaronlmathis/sragetl/types"
	"github.com/aaronlmathis/sragetl/writers"
)

// run wires the configured source, engine, sink and diagnostics into a
// pipeline and executes it.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sragetl.RunSummary, error) {
	def, err := srag.NewDefinition()
	if err != nil {
		return sragetl.RunSummary{}, err
	}
	counter := model.NewRepairCounter()
	repair, err := model.NewDateRepair(cfg.Engine.FallbackYear,
		model.WithRepairLogger(logger),
		model.WithRepairCounter(counter),
	)
	if err != nil {
		return sragetl.RunSummary{}, err
	}
	mode := cfg.Output.Mode()
	engine := transform.NewEngine(def, repair, mode)

	source, err := buildSource(ctx, cfg.Input, logger)
	if err != nil {
		return sragetl.RunSummary{}, err
	}

	sink, err := types.NewSink(ctx, cfg.Output, engine.Schema().Columns(mode))
	if err != nil {
		source.Close()
		return sragetl.RunSummary{}, fmt.Errorf("output: %w", err)
	}

	builder := sragetl.NewPipeline().
		From(source).
		Transform(transform.Normalize()).
		Transform(engine).
		To(sink).
		WithWorkers(cfg.Engine.Workers).
		WithMaxInFlight(cfg.Engine.MaxInFlight).
		WithErrorStrategy(cfg.Engine.Strategy()).
		WithProgressEvery(cfg.Engine.ProgressEvery).
		WithRepairCounter(repair.Counter()).
		WithLogger(logger)

	diag, err := buildDiagnostics(cfg.Diagnostics)
	if err != nil {
		source.Close()
		sink.Close()
		return sragetl.RunSummary{}, err
	}
	if diag != nil {
		builder = builder.WithDiagnostics(diag)
	}

	p, err := builder.Build()
	if err != nil {
		source.Close()
		sink.Close()
		return sragetl.RunSummary{}, err
	}
	return p.Execute(ctx)
}

// buildSource chains CKAN downloads, local paths and S3 objects, in that
// order, into one source.
func buildSource(ctx context.Context, in config.InputConfig, logger *slog.Logger) (core.DataSource, error) {
	comma := in.Comma()
	var openers []readers.Opener

	if in.CKAN.Enabled {
		client := readers.NewCKANClient(
			readers.WithCKANURL(in.CKAN.URL),
			readers.WithCKANLogger(logger),
		)
		files, err := client.FetchDatasets(ctx, in.CKAN.Datasets, in.CKAN.DownloadDir, in.CKAN.SkipExisting)
		if err != nil {
			return nil, fmt.Errorf("ckan: %w", err)
		}
		for _, f := range files {
			openers = append(openers, readers.FileOpener(f, comma))
		}
	}

	for _, path := range in.Paths {
		openers = append(openers, readers.FileOpener(path, comma))
	}

	if s3in := in.S3; s3in.Bucket != "" {
		openers = append(openers, func(ctx context.Context) (core.DataSource, error) {
			return readers.NewS3Reader(ctx,
				readers.WithS3Bucket(s3in.Bucket),
				readers.WithS3Prefix(s3in.Prefix),
				readers.WithS3Suffix(s3in.Suffix),
				readers.WithS3Region(s3in.Region),
				readers.WithS3Profile(s3in.Profile),
				readers.WithS3Endpoint(s3in.Endpoint),
				readers.WithS3PathStyle(s3in.PathStyle),
				readers.WithS3Recursive(s3in.Recursive),
				readers.WithS3Comma(comma),
			)
		})
	}

	return readers.NewMultiReader(openers...), nil
}

// buildDiagnostics opens the repair and reject audit files. It returns nil
// when neither is configured.
func buildDiagnostics(cfg config.DiagnosticsConfig) (*writers.DiagnosticsWriter, error) {
	if cfg.RepairsPath == "" && cfg.RejectsPath == "" {
		return nil, nil
	}
	repairs, err := createFile(cfg.RepairsPath)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	rejects, err := createFile(cfg.RejectsPath)
	if err != nil {
		if repairs != nil {
			repairs.Close()
		}
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	return writers.NewDiagnosticsWriter(repairs, rejects), nil
}

// createFile returns a nil WriteCloser for an empty path.
func createFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
