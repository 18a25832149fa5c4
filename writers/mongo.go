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
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/sragetl/core"
	"github.com/aaronlmathis/sragetl/model"
)

// This file implements a MongoDB writer. Records become documents with
// typed fields; batches go out through InsertMany.

// MongoWriterError provides structured error information for MongoDB writer operations.
type MongoWriterError struct {
	Op         string // Operation that failed (e.g., "connect", "insert", "convert")
	Collection string
	Err        error
}

func (e *MongoWriterError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo writer %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo writer %s: %v", e.Op, e.Err)
}

func (e *MongoWriterError) Unwrap() error {
	return e.Err
}

// MongoWriterStats holds MongoDB write statistics.
type MongoWriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	WriteDuration   time.Duration
	LastWriteTime   time.Time
	NullValueCounts map[string]int64
}

// MongoWriterOptions configures the MongoDB writer.
type MongoWriterOptions struct {
	URI          string
	Database     string
	Collection   string
	Columns      []model.Column // Typed columns; without them every value is a string
	BatchSize    int
	Ordered      bool
	Timeout      time.Duration
	MaxPoolSize  uint64
	Username     string
	Password     string
	AuthDatabase string
	TLS          bool
	TLSInsecure  bool
}

// WriterOptionMongo is a functional option.
type WriterOptionMongo func(*MongoWriterOptions)

func WithMongoWriterURI(uri string) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.URI = uri }
}

func WithMongoWriterDB(database string) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.Database = database }
}

func WithMongoWriterCollection(collection string) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.Collection = collection }
}

func WithMongoColumns(cols []model.Column) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.Columns = append([]model.Column(nil), cols...) }
}

func WithMongoWriterBatchSize(size int) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.BatchSize = size }
}

// WithMongoOrdered stops a batch at the first failed insert.
func WithMongoOrdered(ordered bool) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.Ordered = ordered }
}

func WithMongoWriterTimeout(timeout time.Duration) WriterOptionMongo {
	return func(o *MongoWriterOptions) { o.Timeout = timeout }
}

func WithMongoWriterAuth(username, password, authDB string) WriterOptionMongo {
	return func(o *MongoWriterOptions) {
		o.Username = username
		o.Password = password
		o.AuthDatabase = authDB
	}
}

func WithMongoWriterTLS(enabled, insecure bool) WriterOptionMongo {
	return func(o *MongoWriterOptions) {
		o.TLS = enabled
		o.TLSInsecure = insecure
	}
}

// MongoWriter implements core.DataSink for a MongoDB collection.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       *MongoWriterOptions
	docBuf     []interface{}
	stats      MongoWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewMongoWriter validates the options, connects and pings the server.
func NewMongoWriter(ctx context.Context, opts ...WriterOptionMongo) (*MongoWriter, error) {
	cfg := &MongoWriterOptions{
		URI:         "mongodb://localhost:27017",
		BatchSize:   1000,
		Timeout:     30 * time.Second,
		MaxPoolSize: 10,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validateMongoOptions(cfg); err != nil {
		return nil, &MongoWriterError{Op: "validate", Err: err}
	}

	client, err := mongo.Connect(ctx, buildMongoClientOptions(cfg))
	if err != nil {
		return nil, &MongoWriterError{Op: "connect", Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &MongoWriterError{Op: "ping", Err: err}
	}

	return &MongoWriter{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		opts:       cfg,
		docBuf:     make([]interface{}, 0, cfg.BatchSize),
		stats:      MongoWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

func validateMongoOptions(o *MongoWriterOptions) error {
	if o.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Collection == "" {
		return fmt.Errorf("collection name is required")
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	return nil
}

func buildMongoClientOptions(o *MongoWriterOptions) *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(o.URI).SetRetryWrites(true)
	if o.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.Timeout > 0 {
		clientOpts.SetConnectTimeout(o.Timeout)
	}
	if o.Username != "" && o.Password != "" {
		auth := options.Credential{
			Username:   o.Username,
			Password:   o.Password,
			AuthSource: o.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = o.Database
		}
		clientOpts.SetAuth(auth)
	}
	if o.TLS {
		clientOpts.SetTLSConfig(&tls.Config{InsecureSkipVerify: o.TLSInsecure})
	}
	return clientOpts
}

// Write implements the core.DataSink interface.
func (m *MongoWriter) Write(ctx context.Context, record core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.errorState {
		return &MongoWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	doc, err := toDocument(record, m.opts.Columns, m.stats.NullValueCounts)
	if err != nil {
		m.errorState = true
		return &MongoWriterError{Op: "convert", Collection: m.opts.Collection, Err: err}
	}
	m.docBuf = append(m.docBuf, doc)
	m.stats.RecordsWritten++

	if len(m.docBuf) >= m.opts.BatchSize {
		if err := m.flushBufferUnsafe(ctx); err != nil {
			m.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (m *MongoWriter) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	return m.flushBufferUnsafe(ctx)
}

// Close implements the core.DataSink interface.
func (m *MongoWriter) Close() error {
	var errs []string
	if err := m.Flush(); err != nil {
		errs = append(errs, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("client disconnect: %v", err))
	}

	if len(errs) > 0 {
		return &MongoWriterError{Op: "close", Err: fmt.Errorf("%s", strings.Join(errs, "; "))}
	}
	return nil
}

// Stats returns MongoDB writer statistics.
func (m *MongoWriter) Stats() MongoWriterStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	statsCopy := m.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(m.stats.NullValueCounts))
	for k, v := range m.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// flushBufferUnsafe inserts the buffered documents (must hold mutex).
func (m *MongoWriter) flushBufferUnsafe(ctx context.Context) error {
	if len(m.docBuf) == 0 {
		return nil
	}
	start := time.Now()

	_, err := m.collection.InsertMany(ctx, m.docBuf, options.InsertMany().SetOrdered(m.opts.Ordered))
	if err != nil {
		return &MongoWriterError{Op: "insert", Collection: m.opts.Collection, Err: err}
	}

	m.stats.BatchesWritten++
	m.stats.LastWriteTime = time.Now()
	m.stats.WriteDuration += time.Since(start)
	m.docBuf = m.docBuf[:0]
	return nil
}

// toDocument builds an ordered document. With columns the document
// follows column order and typed values; otherwise keys are sorted and
// values stay strings.
func toDocument(record core.Record, columns []model.Column, nulls map[string]int64) (bson.D, error) {
	if len(columns) == 0 {
		columns = textColumns(record)
	}
	doc := make(bson.D, 0, len(columns))
	for _, col := range columns {
		raw, ok := record[col.Name]
		if !ok {
			nulls[col.Name]++
			doc = append(doc, bson.E{Key: col.Name, Value: nil})
			continue
		}
		v, err := col.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if v == nil {
			nulls[col.Name]++
		}
		doc = append(doc, bson.E{Key: col.Name, Value: v})
	}
	return doc, nil
}
