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

package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
	"github.com/aaronlmathis/sragetl/readers"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDelimiter     = ";"
	DefaultFormat        = "csv"
	DefaultSerializeMode = "semantic"
	DefaultErrorStrategy = "skip"
	DefaultProgressEvery = 100000
	DefaultBatchSize     = 1000
	DefaultDownloadDir   = "data"
	DefaultLogLevel      = "info"
)

// Config is the top-level configuration of a run.
type Config struct {
	Input       InputConfig       `yaml:"input"`
	Output      OutputConfig      `yaml:"output"`
	Engine      EngineConfig      `yaml:"engine"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Log         LogConfig         `yaml:"log"`
}

// InputConfig selects where raw rows come from. Sources are read in the
// order CKAN downloads, local paths, S3 objects.
type InputConfig struct {
	// Paths are local .csv, .csv.gz or .jsonl files.
	Paths []string `yaml:"paths"`

	S3   S3InputConfig `yaml:"s3"`
	CKAN CKANConfig    `yaml:"ckan"`

	// Delimiter is the CSV field separator. The SRAG exports use ";".
	Delimiter string `yaml:"delimiter"`
}

// S3InputConfig lists objects under a bucket prefix.
type S3InputConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Suffix    string `yaml:"suffix"`
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Recursive bool   `yaml:"recursive"`
}

// CKANConfig downloads datasets from the open data portal before the run.
type CKANConfig struct {
	Enabled      bool     `yaml:"enabled"`
	URL          string   `yaml:"url"`
	Datasets     []string `yaml:"datasets"`
	DownloadDir  string   `yaml:"download_dir"`
	SkipExisting bool     `yaml:"skip_existing"`
}

// OutputConfig selects the sink.
type OutputConfig struct {
	// Format is one of: csv | json | parquet | postgres | mongo.
	Format string `yaml:"format"`

	// Path is the local file for csv, json and parquet output. When S3 is
	// set the file is uploaded and Path may be empty.
	Path string `yaml:"path"`
	Gzip bool   `yaml:"gzip"`

	S3       S3OutputConfig `yaml:"s3"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`

	// SerializeMode is semantic (labels) or codes (raw codes).
	SerializeMode string `yaml:"serialize_mode"`
}

// S3OutputConfig uploads the output file to a bucket.
type S3OutputConfig struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	PartSize int64  `yaml:"part_size"`
}

// PostgresConfig configures the PostgreSQL sink.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	CreateTable bool   `yaml:"create_table"`
	Truncate    bool   `yaml:"truncate"`
	BatchSize   int    `yaml:"batch_size"`
}

// MongoConfig configures the MongoDB sink.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	BatchSize  int    `yaml:"batch_size"`
}

// EngineConfig configures the transformation engine.
type EngineConfig struct {
	// FallbackYear completes truncated dates that no sibling date explains.
	FallbackYear  int    `yaml:"fallback_year"`
	Workers       int    `yaml:"workers"`
	MaxInFlight   int    `yaml:"max_in_flight"`
	ErrorStrategy string `yaml:"error_strategy"`
	ProgressEvery int64  `yaml:"progress_every"`
}

// DiagnosticsConfig names the audit outputs. Empty paths disable them.
type DiagnosticsConfig struct {
	RepairsPath string `yaml:"repairs_path"`
	RejectsPath string `yaml:"rejects_path"`
	MetricsPath string `yaml:"metrics_path"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// Override changes a loaded Config before it is validated. Command line
// flags are applied this way.
type Override func(*Config)

// Load reads and parses the YAML config file at path. An empty path
// yields the defaults. Missing optional fields are filled with defaults.
func Load(path string, overrides ...Override) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	return Parse(data, overrides...)
}

// Parse parses a YAML document the same way Load does.
func Parse(data []byte, overrides ...Override) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	derive(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Input: InputConfig{
			Delimiter: DefaultDelimiter,
			CKAN: CKANConfig{
				URL:         readers.DefaultCKANURL,
				DownloadDir: DefaultDownloadDir,
			},
		},
		Output: OutputConfig{
			Format:        DefaultFormat,
			SerializeMode: DefaultSerializeMode,
			Postgres:      PostgresConfig{BatchSize: DefaultBatchSize},
			Mongo:         MongoConfig{BatchSize: DefaultBatchSize},
		},
		Engine: EngineConfig{
			ErrorStrategy: DefaultErrorStrategy,
			ProgressEvery: DefaultProgressEvery,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// derive fills the defaults that depend on other values.
func derive(cfg *Config) {
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	if cfg.Engine.MaxInFlight == 0 {
		cfg.Engine.MaxInFlight = 4 * cfg.Engine.Workers
	}
	if cfg.Input.CKAN.Enabled && len(cfg.Input.CKAN.Datasets) == 0 {
		cfg.Input.CKAN.Datasets = append([]string(nil), readers.DefaultSRAGDatasets...)
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	in := cfg.Input
	if len(in.Paths) == 0 && in.S3.Bucket == "" && !in.CKAN.Enabled {
		return fmt.Errorf("input: one of paths, s3.bucket or ckan.enabled is required")
	}
	if utf8.RuneCountInString(in.Delimiter) != 1 {
		return fmt.Errorf("input.delimiter must be a single character, got %q", in.Delimiter)
	}
	if in.CKAN.Enabled && in.CKAN.URL == "" {
		return fmt.Errorf("input.ckan.url is required")
	}

	out := cfg.Output
	switch out.Format {
	case "csv", "json", "parquet":
		if out.Path == "" && out.S3.Key == "" {
			return fmt.Errorf("output.path or output.s3.key is required for format %q", out.Format)
		}
		if out.S3.Key != "" && out.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required with output.s3.key")
		}
		if out.Gzip && out.Format != "csv" {
			return fmt.Errorf("output.gzip is only supported for csv")
		}
	case "postgres":
		if out.Postgres.DSN == "" || out.Postgres.Table == "" {
			return fmt.Errorf("output.postgres.dsn and output.postgres.table are required")
		}
		if out.Postgres.BatchSize <= 0 {
			return fmt.Errorf("output.postgres.batch_size must be positive")
		}
	case "mongo":
		if out.Mongo.URI == "" || out.Mongo.Database == "" || out.Mongo.Collection == "" {
			return fmt.Errorf("output.mongo.uri, database and collection are required")
		}
		if out.Mongo.BatchSize <= 0 {
			return fmt.Errorf("output.mongo.batch_size must be positive")
		}
	default:
		return fmt.Errorf("output.format: unknown format %q", out.Format)
	}
	if _, err := model.ParseSerializeMode(out.SerializeMode); err != nil {
		return fmt.Errorf("output.serialize_mode: %w", err)
	}

	eng := cfg.Engine
	if eng.FallbackYear == 0 {
		return fmt.Errorf("engine.fallback_year is required")
	}
	if eng.FallbackYear < 1900 || eng.FallbackYear > 2100 {
		return fmt.Errorf("engine.fallback_year must be between 1900 and 2100, got %d", eng.FallbackYear)
	}
	if eng.Workers < 1 {
		return fmt.Errorf("engine.workers must be positive")
	}
	if eng.MaxInFlight < 1 {
		return fmt.Errorf("engine.max_in_flight must be positive")
	}
	if eng.ProgressEvery < 0 {
		return fmt.Errorf("engine.progress_every must not be negative")
	}
	if _, ok := core.ParseErrorStrategy(eng.ErrorStrategy); !ok {
		return fmt.Errorf("engine.error_strategy: unknown strategy %q", eng.ErrorStrategy)
	}

	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Comma returns the input delimiter as a rune.
func (c InputConfig) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Strategy returns the parsed error strategy.
func (c EngineConfig) Strategy() core.ErrorStrategy {
	s, _ := core.ParseErrorStrategy(c.ErrorStrategy)
	return s
}

// Mode returns the parsed serialize mode.
func (c OutputConfig) Mode() model.SerializeMode {
	m, _ := model.ParseSerializeMode(c.SerializeMode)
	return m
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}
