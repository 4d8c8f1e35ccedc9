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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/sparkify/core"
)

// This file implements the PostgreSQL sink used to mirror finished tables into
// a warehouse. Each load replaces the table contents: the table is created
// from the schema if needed, truncated, and filled with batched multi-row
// inserts inside a single transaction.

// postgresMaxParams is the bind parameter limit of the PostgreSQL protocol.
const postgresMaxParams = 65535

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	RecordsWritten  int64            // Total records written
	BatchesWritten  int64            // Number of INSERT statements executed
	WriteDuration   time.Duration    // Total time spent writing
	ConnectionTime  time.Duration    // Time spent establishing connection
	NullValueCounts map[string]int64 // Count of null values per column
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN           string        // PostgreSQL connection string
	DB            *sql.DB       // Existing pool, takes precedence over DSN
	TableName     string        // Target table name
	Schema        core.Schema   // Column names and types
	BatchSize     int           // Rows per INSERT statement
	CreateTable   bool          // Create table if not exists
	TruncateTable bool          // Truncate table before writing
	QueryTimeout  time.Duration // Timeout for connect and DDL
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresDB reuses an existing connection pool. The writer does not
// close a pool it did not open.
func WithPostgresDB(db *sql.DB) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DB = db
	}
}

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithTableSchema sets the columns to write and their types.
func WithTableSchema(schema core.Schema) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Schema = append(core.Schema(nil), schema...)
	}
}

// WithPostgresBatchSize sets the number of rows per INSERT.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.DataSink for PostgreSQL output.
type PostgresWriter struct {
	db          *sql.DB
	ownsDB      bool
	tx          *sql.Tx
	options     PostgresWriterOptions
	recordBuf   []core.Record
	stats       PostgresWriterStats
	initialized bool
	errorState  bool
	mu          sync.Mutex
}

// NewPostgresWriter creates a new PostgreSQL writer with the given options.
func NewPostgresWriter(opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := &PostgresWriterOptions{}
	for _, opt := range opts {
		opt(options)
	}
	options = options.withDefaults()

	if err := validateOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	writer := &PostgresWriter{
		options:   *options,
		recordBuf: make([]core.Record, 0, options.BatchSize),
		stats:     PostgresWriterStats{NullValueCounts: make(map[string]int64)},
	}

	if options.DB != nil {
		writer.db = options.DB
		return writer, nil
	}
	if err := writer.connect(); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	return writer, nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(w.stats.NullValueCounts))
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	if !w.initialized {
		if err := w.initializeUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "initialize", Err: err}
		}
	}

	for _, col := range w.options.Schema {
		if record[col.Name] == nil {
			w.stats.NullValueCounts[col.Name]++
		}
	}

	w.recordBuf = append(w.recordBuf, record)
	w.stats.RecordsWritten++

	if len(w.recordBuf) >= w.options.BatchSize {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil
	}
	if err := w.flushBufferUnsafe(context.Background()); err != nil {
		w.errorState = true
		return &PostgresWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the core.DataSink interface. Buffered rows are flushed
// and the load transaction is committed, or rolled back after any failure.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.initialized && !w.errorState {
		// An empty table still needs its truncate committed.
		if ferr := w.flushBufferUnsafe(context.Background()); ferr != nil {
			err = &PostgresWriterError{Op: "flush", Err: ferr}
		}
	}

	if w.tx != nil {
		if err != nil || w.errorState {
			w.tx.Rollback()
		} else if cerr := w.tx.Commit(); cerr != nil {
			err = &PostgresWriterError{Op: "commit", Err: cerr}
		}
		w.tx = nil
	}

	if w.ownsDB && w.db != nil {
		if cerr := w.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
		w.db = nil
	}
	return err
}

// Abort rolls back the load transaction and releases the connection.
func (w *PostgresWriter) Abort() error {
	w.mu.Lock()
	w.errorState = true
	w.mu.Unlock()
	return w.Close()
}

// Begin creates and truncates the table ahead of the first Write. A mirror
// of an empty table calls it so the truncate is still committed on Close.
func (w *PostgresWriter) Begin(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}
	if err := w.initializeUnsafe(ctx); err != nil {
		w.errorState = true
		return &PostgresWriterError{Op: "initialize", Err: err}
	}
	return nil
}

func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if len(opts.Schema) > 0 && opts.BatchSize*len(opts.Schema) > postgresMaxParams {
		opts.BatchSize = postgresMaxParams / len(opts.Schema)
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	return opts
}

func validateOptions(opts *PostgresWriterOptions) error {
	if opts.DSN == "" && opts.DB == nil {
		return fmt.Errorf("dsn is required")
	}
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if len(opts.Schema) == 0 {
		return fmt.Errorf("schema is required")
	}
	return nil
}

func (w *PostgresWriter) connect() error {
	start := time.Now()

	db, err := sql.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.ownsDB = true
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

func (w *PostgresWriter) initializeUnsafe(ctx context.Context) error {
	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, CreateTableSQL(w.options.TableName, w.options.Schema)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	w.tx = tx

	if w.options.TruncateTable {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+pq.QuoteIdentifier(w.options.TableName)); err != nil {
			return fmt.Errorf("failed to truncate table: %w", err)
		}
	}

	w.initialized = true
	return nil
}

func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) error {
	if len(w.recordBuf) == 0 {
		return nil
	}
	start := time.Now()

	query, args := InsertSQL(w.options.TableName, w.options.Schema, w.recordBuf)
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	w.stats.BatchesWritten++
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]
	return nil
}

// SQLType maps a column type to its PostgreSQL column type.
func SQLType(t core.ColumnType) string {
	switch t {
	case core.TypeInt32:
		return "INTEGER"
	case core.TypeInt64:
		return "BIGINT"
	case core.TypeFloat64:
		return "DOUBLE PRECISION"
	case core.TypeBool:
		return "BOOLEAN"
	case core.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for schema.
func CreateTableSQL(table string, schema core.Schema) string {
	columns := make([]string, len(schema))
	for i, col := range schema {
		columns[i] = pq.QuoteIdentifier(col.Name) + " " + SQLType(col.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(table), strings.Join(columns, ", "))
}

// InsertSQL renders one multi-row INSERT for records and returns its arguments
// in column-major order per row.
func InsertSQL(table string, schema core.Schema, records []core.Record) (string, []interface{}) {
	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = pq.QuoteIdentifier(col.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(table), strings.Join(names, ", "))

	args := make([]interface{}, 0, len(records)*len(schema))
	for r, record := range records {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c, col := range schema {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, record[col.Name])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}
