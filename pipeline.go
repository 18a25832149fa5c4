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

package sragetl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
	"github.com/aaronlmathis/sragetl/transform"
)

// Package sragetl runs SRAG hospitalization records from a source through
// a chain of transformers into a sink.
//
// Rows are transformed concurrently by a worker pool and written by a
// single writer. At most MaxInFlight rows are between the reader and the
// writer at any time, which bounds memory independent of input size.
// Output order is not guaranteed to match input order.
//
// A row that fails validation or decoding is rejected on its own; the run
// continues. Source, sink and configuration errors stop the run.
//
//   p, err := sragetl.NewPipeline().
//       From(reader).
//       Transform(transform.Normalize()).
//       Transform(engine).
//       To(writer).
//       WithWorkers(8).
//       Build()
//   if err != nil { ... }
//   summary, err := p.Execute(ctx)

// DefaultProgressEvery is how many rows pass between progress log lines.
const DefaultProgressEvery = 100000

// PipelineBuilder provides a fluent API for constructing pipelines.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder with SkipErrors, one worker
// per CPU and four in-flight rows per worker.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers:  make([]Transformer, 0),
			strategy:      SkipErrors,
			progressEvery: DefaultProgressEvery,
			logger:        slog.Default(),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a Transformer. Transformers run in the order added and
// their repairs are collected together.
func (pb *PipelineBuilder) Transform(transformer Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithWorkers sets the number of concurrent transform workers.
func (pb *PipelineBuilder) WithWorkers(n int) *PipelineBuilder {
	pb.pipeline.workers = n
	return pb
}

// WithMaxInFlight bounds the rows read but not yet written.
func (pb *PipelineBuilder) WithMaxInFlight(n int) *PipelineBuilder {
	pb.pipeline.maxInFlight = n
	return pb
}

// WithErrorStrategy sets the error handling strategy for rejected rows.
func (pb *PipelineBuilder) WithErrorStrategy(strategy ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a handler called for every rejected row under
// SkipErrors and CollectErrors. A non-nil return aborts the run.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithDiagnostics sets where repairs and rejected rows are reported.
func (pb *PipelineBuilder) WithDiagnostics(diag DiagnosticsSink) *PipelineBuilder {
	pb.pipeline.diagnostics = diag
	return pb
}

// WithRepairCounter attaches the counter the date repair heuristic
// increments, so progress lines and the summary can report it.
func (pb *PipelineBuilder) WithRepairCounter(counter *model.RepairCounter) *PipelineBuilder {
	pb.pipeline.repairCounter = counter
	return pb
}

// WithLogger sets the logger.
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// WithProgressEvery sets the progress log interval in rows; zero disables
// progress logging.
func (pb *PipelineBuilder) WithProgressEvery(n int64) *PipelineBuilder {
	pb.pipeline.progressEvery = n
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if p.sink == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}
	if p.workers == 0 {
		p.workers = runtime.NumCPU()
	}
	if p.workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", p.workers)
	}
	if p.maxInFlight == 0 {
		p.maxInFlight = 4 * p.workers
	}
	if p.maxInFlight < 1 {
		return nil, fmt.Errorf("max in flight must be at least 1, got %d", p.maxInFlight)
	}
	return p, nil
}

// Pipeline streams records from a DataSource to a DataSink.
type Pipeline struct {
	transformers  []Transformer
	source        DataSource
	sink          DataSink
	diagnostics   DiagnosticsSink
	strategy      ErrorStrategy
	errorHandler  ErrorHandler
	repairCounter *model.RepairCounter
	logger        *slog.Logger
	workers       int
	maxInFlight   int
	progressEvery int64
}

type job struct {
	row    int64
	record Record
}

type result struct {
	job
	out     Record
	repairs []model.Repair
	err     error
}

// Execute runs the pipeline until the source is exhausted, a fatal error
// occurs or ctx is cancelled. The source, sink and diagnostics are closed
// on return. The summary is valid even when an error is returned.
func (p *Pipeline) Execute(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{RepairsByMethod: make(map[model.RepairMethod]int64)}

	chain := transform.Chain(p.transformers...)
	jobs := make(chan job)
	results := make(chan result)
	slots := make(chan struct{}, p.maxInFlight)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		var row int64
		for {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			record, err := p.source.Read(gctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read row %d: %w", row+1, err)
			}
			row++
			select {
			case jobs <- job{row: row, record: record}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				out, repairs, err := chain.Transform(gctx, j.record)
				select {
				case results <- result{job: j, out: out, repairs: repairs, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		for r := range results {
			if err := p.handleResult(gctx, r, &summary); err != nil {
				return err
			}
			<-slots
			if p.progressEvery > 0 && summary.Read%p.progressEvery == 0 {
				p.logger.InfoContext(gctx, "progress",
					slog.Int64("read", summary.Read),
					slog.Int64("written", summary.Written),
					slog.Int64("rejected", summary.Rejected),
					slog.Int64("repairs", summary.Repairs),
					slog.Int64("repairs_applied", p.repairCounter.Load()))
			}
		}
		return nil
	})

	runErr := g.Wait()
	for range results {
		// results is closed once every worker has returned
	}

	closeErr := p.close()
	summary.RepairsApplied = p.repairCounter.Load()
	summary.Duration = time.Since(start)

	if runErr != nil {
		return summary, errors.Join(runErr, closeErr)
	}
	return summary, closeErr
}

func (p *Pipeline) handleResult(ctx context.Context, r result, summary *RunSummary) error {
	summary.Read++
	if len(r.repairs) > 0 {
		summary.Repairs += int64(len(r.repairs))
		for _, rep := range r.repairs {
			summary.RepairsByMethod[rep.Method]++
		}
		if p.diagnostics != nil {
			if err := p.diagnostics.WriteRepairs(ctx, r.row, r.repairs); err != nil {
				return fmt.Errorf("diagnostics: %w", err)
			}
		}
	}

	if r.err != nil {
		if isFatal(r.err) {
			return fmt.Errorf("row %d: %w", r.row, r.err)
		}
		return p.reject(ctx, r, summary)
	}

	if err := p.sink.Write(ctx, r.out); err != nil {
		return fmt.Errorf("write row %d: %w", r.row, err)
	}
	summary.Written++
	return nil
}

func (p *Pipeline) reject(ctx context.Context, r result, summary *RunSummary) error {
	recErr := &RecordError{
		Row:         r.row,
		Fingerprint: Fingerprint(r.record),
		Field:       model.FailingField(r.err),
		Err:         r.err,
	}
	summary.Rejected++
	p.logger.WarnContext(ctx, "record rejected",
		slog.Int64("row", recErr.Row),
		slog.String("fingerprint", recErr.Fingerprint),
		slog.String("field", recErr.Field),
		slog.String("error", r.err.Error()))

	if p.diagnostics != nil {
		err := p.diagnostics.WriteReject(ctx, core.Reject{
			Row:         recErr.Row,
			Fingerprint: recErr.Fingerprint,
			Field:       recErr.Field,
			Error:       r.err.Error(),
			Record:      r.record,
		})
		if err != nil {
			return fmt.Errorf("diagnostics: %w", err)
		}
	}

	switch p.strategy {
	case FailFast:
		return recErr
	case CollectErrors:
		summary.Errors = append(summary.Errors, recErr)
	}
	if p.errorHandler != nil {
		if err := p.errorHandler.HandleError(ctx, r.record, recErr); err != nil {
			return fmt.Errorf("error handler: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) close() error {
	var errs []error
	if err := p.sink.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush sink: %w", err))
	}
	if err := p.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	if err := p.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if p.diagnostics != nil {
		if err := p.diagnostics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close diagnostics: %w", err))
		}
	}
	return errors.Join(errs...)
}
