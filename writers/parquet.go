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
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/sparkify/core"
)

// Package writers provides the core.DataSink implementations the job persists
// its tables with.
//
// This file implements a batching Parquet writer with an explicit schema.
// Records are buffered, converted to Arrow record batches and written through
// pqarrow to any io.Writer.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "create_writer", "append_value", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriter implements core.DataSink for Parquet output.
type ParquetWriter struct {
	writer       *pqarrow.FileWriter
	schema       core.Schema
	arrowSchema  *arrow.Schema
	recordBuffer []core.Record
	builders     []array.Builder
	allocator    memory.Allocator
	closed       bool
	errorState   bool
	stats        WriterStats
	opts         *ParquetWriterOptions
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // Key/value metadata stored in the Arrow schema
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets user metadata for the Parquet file.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 64 * 1024
	}
	if opts.Compression == 0 {
		opts.Compression = compress.Codecs.Snappy
	}
	return opts
}

// ArrowType maps a column type to the Arrow type it is stored as.
func ArrowType(t core.ColumnType) (arrow.DataType, error) {
	switch t {
	case core.TypeString:
		return arrow.BinaryTypes.String, nil
	case core.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case core.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case core.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case core.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case core.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", t)
	}
}

// ArrowSchema converts a table schema to a nullable Arrow schema.
func ArrowSchema(schema core.Schema, metadata map[string]string) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(schema))
	for i, col := range schema {
		dt, err := ArrowType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
	}

	var md *arrow.Metadata
	if len(metadata) > 0 {
		m := arrow.MetadataFrom(metadata)
		md = &m
	}
	return arrow.NewSchema(fields, md), nil
}

// NewParquetWriter creates a Parquet writer emitting to w.
// If w is an io.Closer it is closed together with the writer.
func NewParquetWriter(w io.Writer, schema core.Schema, options ...WriterOption) (*ParquetWriter, error) {
	if len(schema) == 0 {
		return nil, &ParquetWriterError{Op: "schema", Err: fmt.Errorf("empty schema")}
	}

	opts := &ParquetWriterOptions{}
	for _, option := range options {
		option(opts)
	}
	opts = opts.withDefaults()

	arrowSchema, err := ArrowSchema(schema, opts.Metadata)
	if err != nil {
		return nil, &ParquetWriterError{Op: "schema", Err: err}
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(arrowSchema, w, props, arrowProps)
	if err != nil {
		return nil, &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}

	allocator := memory.NewGoAllocator()
	builders := make([]array.Builder, len(schema))
	for i, field := range arrowSchema.Fields() {
		builders[i] = array.NewBuilder(allocator, field.Type)
	}

	return &ParquetWriter{
		writer:       writer,
		schema:       schema,
		arrowSchema:  arrowSchema,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		builders:     builders,
		allocator:    allocator,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	if p.errorState {
		return &ParquetWriterError{Op: "flush", Err: fmt.Errorf("writer is in error state")}
	}
	if err := p.flushBatch(); err != nil {
		p.errorState = true
		return err
	}
	return nil
}

// Close implements the core.DataSink interface. It flushes buffered rows and
// writes the file footer.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var flushErr error
	if !p.errorState {
		flushErr = p.flushBatch()
	}

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	if err := p.writer.Close(); err != nil && flushErr == nil {
		return &ParquetWriterError{
			Op:  "close_writer",
			Err: fmt.Errorf("failed to close parquet writer: %w", err),
		}
	}
	return flushErr
}

func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	startTime := time.Now()

	record, err := p.createArrowRecord(p.recordBuffer)
	if err != nil {
		return err
	}
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(startTime)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

func (p *ParquetWriter) createArrowRecord(records []core.Record) (arrow.Record, error) {
	for _, record := range records {
		for i, col := range p.schema {
			value := record[col.Name]
			if value == nil {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[col.Name]++
				continue
			}
			if err := appendValue(p.builders[i], value); err != nil {
				// Drain partially filled builders so the next batch starts clean.
				for _, b := range p.builders {
					b.NewArray().Release()
				}
				return nil, &ParquetWriterError{
					Op:  "append_value",
					Err: fmt.Errorf("field %s: %w", col.Name, err),
				}
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
		defer arrays[i].Release()
	}
	return array.NewRecord(p.arrowSchema, arrays, int64(len(records))), nil
}

// appendValue appends a non-nil value. Values are expected to be conformed to
// the schema already, so a mismatched Go type is an error rather than a null.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		b.Append(v)
	case *array.Int32Builder:
		switch v := value.(type) {
		case int32:
			b.Append(v)
		case int:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("int value %d out of range for int32", v)
			}
			b.Append(int32(v))
		default:
			return fmt.Errorf("expected int32, got %T", value)
		}
	case *array.Int64Builder:
		switch v := value.(type) {
		case int64:
			b.Append(v)
		case int32:
			b.Append(int64(v))
		case int:
			b.Append(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		default:
			return fmt.Errorf("expected float64, got %T", value)
		}
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	default:
		return fmt.Errorf("unsupported builder %T", builder)
	}
	return nil
}
