//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Sparkify.
//
// Sparkify is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Sparkify is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Sparkify. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/parquet/compress"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/logger"
	"github.com/aaronlmathis/sparkify/storage"
)

const (
	// SuccessMarker is written last, once every data file of a table is stored.
	SuccessMarker = "_SUCCESS"
	// ManifestFile lists the data files of a table, one JSON object per line.
	ManifestFile = "_manifest.json"
)

// PartitionedWriterError wraps errors raised while laying out a table.
type PartitionedWriterError struct {
	Op  string // Operation that failed (e.g., "partition", "encode", "upload")
	Err error  // Underlying error
}

func (e *PartitionedWriterError) Error() string {
	return fmt.Sprintf("partitioned writer %s: %v", e.Op, e.Err)
}

func (e *PartitionedWriterError) Unwrap() error {
	return e.Err
}

// PartitionedWriterStats summarises a committed table.
type PartitionedWriterStats struct {
	RecordsWritten int64
	Partitions     int
	FilesWritten   int
	BytesWritten   int64
	UploadDuration time.Duration
}

// PartitionedWriterOptions configures the table layout.
type PartitionedWriterOptions struct {
	PartitionBy    []string       // Partition columns, outermost first
	Overwrite      bool           // Delete the table directory before writing
	RunID          string         // Embedded in file names
	Concurrency    int            // Parallel uploads
	Logger         *logger.Logger // Receives the per-table summary
	ParquetOptions []WriterOption // Passed to every ParquetWriter
}

// PartitionedOption represents a configuration function for PartitionedWriterOptions.
type PartitionedOption func(*PartitionedWriterOptions)

// WithPartitionBy sets the partition columns.
func WithPartitionBy(columns ...string) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.PartitionBy = append([]string(nil), columns...)
	}
}

// WithOverwrite enables replacing the table contents.
func WithOverwrite(overwrite bool) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.Overwrite = overwrite
	}
}

// WithRunID sets the identifier embedded in data file names.
func WithRunID(runID string) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.RunID = runID
	}
}

// WithUploadConcurrency bounds the number of parallel file uploads.
func WithUploadConcurrency(n int) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.Concurrency = n
	}
}

// WithPartitionLogger sets the logger for the commit summary.
func WithPartitionLogger(l *logger.Logger) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.Logger = l
	}
}

// WithParquetOptions forwards options to the per-partition Parquet writers.
func WithParquetOptions(options ...WriterOption) PartitionedOption {
	return func(opts *PartitionedWriterOptions) {
		opts.ParquetOptions = append(opts.ParquetOptions, options...)
	}
}

type partition struct {
	values  []storage.PartitionValue
	records []core.Record
}

// PartitionedWriter implements core.DataSink for a Hive-style partitioned
// Parquet table. Records are grouped in memory by their partition values and
// the table is materialised on Close:
//
//	<dir>/<k1>=<v1>/<k2>=<v2>/part-00000-<run>.snappy.parquet
//	<dir>/_manifest.json
//	<dir>/_SUCCESS
//
// Partition columns are encoded in the path only, not in the data files.
type PartitionedWriter struct {
	ctx        context.Context
	store      storage.Store
	dir        string
	schema     core.Schema
	dataSchema core.Schema
	parts      map[string]*partition
	stats      PartitionedWriterStats
	opts       PartitionedWriterOptions
	closed     bool
	mu         sync.Mutex
}

// NewPartitionedWriter creates a writer for the table stored under dir.
// ctx bounds the uploads performed by Close.
func NewPartitionedWriter(ctx context.Context, store storage.Store, dir string, schema core.Schema, options ...PartitionedOption) (*PartitionedWriter, error) {
	opts := PartitionedWriterOptions{Concurrency: 4, RunID: "00000000"}
	for _, option := range options {
		option(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	if storage.DirPrefix(dir) == "" {
		return nil, &PartitionedWriterError{Op: "validate", Err: fmt.Errorf("table directory is required")}
	}
	for _, col := range opts.PartitionBy {
		if _, ok := schema.Lookup(col); !ok {
			return nil, &PartitionedWriterError{Op: "validate", Err: fmt.Errorf("partition column %q not in schema", col)}
		}
	}
	dataSchema := schema.Without(opts.PartitionBy...)
	if len(dataSchema) == 0 {
		return nil, &PartitionedWriterError{Op: "validate", Err: fmt.Errorf("no data columns left after partitioning")}
	}

	return &PartitionedWriter{
		ctx:        ctx,
		store:      store,
		dir:        storage.DirPrefix(dir),
		schema:     schema,
		dataSchema: dataSchema,
		parts:      make(map[string]*partition),
		opts:       opts,
	}, nil
}

// Write implements core.DataSink.
func (w *PartitionedWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &PartitionedWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}

	values := make([]storage.PartitionValue, len(w.opts.PartitionBy))
	for i, col := range w.opts.PartitionBy {
		values[i] = storage.PartitionValue{Column: col, Value: storage.FormatPartitionValue(record[col])}
	}
	key := storage.PartitionDir(values)

	p, ok := w.parts[key]
	if !ok {
		p = &partition{values: values}
		w.parts[key] = p
	}
	p.records = append(p.records, record)
	w.stats.RecordsWritten++
	return nil
}

// Flush implements core.DataSink. Data is only materialised on Close.
func (w *PartitionedWriter) Flush() error {
	return nil
}

// Stats returns the summary of the committed table.
func (w *PartitionedWriter) Stats() PartitionedWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close implements core.DataSink: it replaces the table (in overwrite mode),
// uploads every partition file, then the manifest and the success marker.
func (w *PartitionedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	start := time.Now()

	if w.opts.Overwrite {
		if err := w.store.DeletePrefix(w.ctx, w.dir); err != nil {
			return &PartitionedWriterError{Op: "overwrite", Err: err}
		}
	}

	keys := make([]string, 0, len(w.parts))
	for k := range w.parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]core.Record, len(keys))
	var bytesWritten int64
	var bytesMu sync.Mutex

	g, gctx := errgroup.WithContext(w.ctx)
	g.SetLimit(w.opts.Concurrency)
	for i, k := range keys {
		i, k := i, k
		p := w.parts[k]
		g.Go(func() error {
			name := fmt.Sprintf("part-%05d-%s%s", i, w.opts.RunID, w.fileSuffix())
			key := storage.JoinKey(w.dir, k, name)

			body, err := w.encode(p.records)
			if err != nil {
				return &PartitionedWriterError{Op: "encode", Err: fmt.Errorf("%s: %w", key, err)}
			}
			size := int64(body.Len())
			if err := w.store.Put(gctx, key, body); err != nil {
				return &PartitionedWriterError{Op: "upload", Err: err}
			}

			entry := core.Record{
				"file": strings.TrimPrefix(key, w.dir),
				"rows": int64(len(p.records)),
				"size": size,
			}
			for _, pv := range p.values {
				entry[pv.Column] = pv.Value
			}
			entries[i] = entry

			bytesMu.Lock()
			bytesWritten += size
			bytesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := w.writeManifest(entries); err != nil {
		return err
	}
	if err := w.store.Put(w.ctx, storage.JoinKey(w.dir, SuccessMarker), bytes.NewReader(nil)); err != nil {
		return &PartitionedWriterError{Op: "mark_success", Err: err}
	}

	w.stats.Partitions = len(keys)
	w.stats.FilesWritten = len(keys)
	w.stats.BytesWritten = bytesWritten
	w.stats.UploadDuration = time.Since(start)

	w.opts.Logger.Info("table written",
		"table", w.store.URI(w.dir),
		"rows", w.stats.RecordsWritten,
		"files", w.stats.FilesWritten,
		"bytes", w.stats.BytesWritten,
		"duration", w.stats.UploadDuration,
	)
	return nil
}

// Abort discards buffered records without touching the table.
func (w *PartitionedWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.parts = nil
	return nil
}

func (w *PartitionedWriter) encode(records []core.Record) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	pw, err := NewParquetWriter(buf, w.dataSchema, w.opts.ParquetOptions...)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := pw.Write(w.ctx, r); err != nil {
			pw.Close()
			return nil, err
		}
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (w *PartitionedWriter) writeManifest(entries []core.Record) error {
	buf := &bytes.Buffer{}
	jw := NewJSONWriter(buf)
	for _, e := range entries {
		if err := jw.Write(w.ctx, e); err != nil {
			return &PartitionedWriterError{Op: "manifest", Err: err}
		}
	}
	if err := jw.Close(); err != nil {
		return &PartitionedWriterError{Op: "manifest", Err: err}
	}
	if err := w.store.Put(w.ctx, storage.JoinKey(w.dir, ManifestFile), buf); err != nil {
		return &PartitionedWriterError{Op: "manifest", Err: err}
	}
	return nil
}

// fileSuffix names the codec the way Spark does, e.g. ".snappy.parquet".
func (w *PartitionedWriter) fileSuffix() string {
	opts := &ParquetWriterOptions{}
	for _, o := range w.opts.ParquetOptions {
		o(opts)
	}
	switch opts.withDefaults().Compression {
	case compress.Codecs.Snappy:
		return ".snappy.parquet"
	case compress.Codecs.Gzip:
		return ".gz.parquet"
	case compress.Codecs.Zstd:
		return ".zstd.parquet"
	default:
		return ".parquet"
	}
}
