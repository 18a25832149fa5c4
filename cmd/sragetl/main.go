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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/aaronlmathis/sragetl/config"
	"github.com/aaronlmathis/sragetl/metrics"
)

func main() {
	configPath := flag.String("config", "sragetl.yaml", "path to config file")
	fallbackYear := flag.Int("fallback-year", 0, "year used to complete truncated dates (overrides engine.fallback_year)")
	workers := flag.Int("workers", 0, "number of transform workers (overrides engine.workers)")
	skip := flag.Bool("skip", false, "skip CKAN downloads whose file already exists")
	flag.Parse()

	cfg, err := config.Load(*configPath, flagOverrides(*fallbackYear, *workers, *skip))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("sragetl starting",
		"config", *configPath,
		"format", cfg.Output.Format,
		"fallback_year", cfg.Engine.FallbackYear,
		"workers", cfg.Engine.Workers,
		"max_in_flight", cfg.Engine.MaxInFlight,
		"error_strategy", cfg.Engine.ErrorStrategy,
	)

	summary, runErr := run(ctx, cfg, logger)

	if cfg.Diagnostics.MetricsPath != "" {
		if err := metrics.WriteTextfile(cfg.Diagnostics.MetricsPath, summary, time.Now()); err != nil {
			logger.Error("failed to write metrics", "err", err)
		}
	}

	logger.Info("sragetl finished",
		"read", summary.Read,
		"written", summary.Written,
		"rejected", summary.Rejected,
		"repairs", summary.Repairs,
		"repairs_applied", summary.RepairsApplied,
		"duration", summary.Duration.String(),
	)
	if runErr != nil {
		logger.Error("run failed", "err", runErr)
		os.Exit(1)
	}
}

func flagOverrides(fallbackYear, workers int, skip bool) config.Override {
	return func(c *config.Config) {
		if fallbackYear != 0 {
			c.Engine.FallbackYear = fallbackYear
		}
		if workers != 0 {
			c.Engine.Workers = workers
		}
		if skip {
			c.Input.CKAN.SkipExisting = true
		}
	}
}
