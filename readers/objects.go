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

package readers

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/storage"
)

// ObjectReaderError provides structured error information for object reader operations
type ObjectReaderError struct {
	Op  string // Operation that failed (e.g., "list_objects", "open_object", "read_record")
	Err error  // Underlying error
}

func (e *ObjectReaderError) Error() string {
	return fmt.Sprintf("object reader %s: %v", e.Op, e.Err)
}

func (e *ObjectReaderError) Unwrap() error {
	return e.Err
}

// ObjectReaderStats holds statistics about the object reader's progress
type ObjectReaderStats struct {
	ObjectsListed  int64         // Objects matching the glob
	ObjectsRead    int64         // Objects opened so far
	RecordsRead    int64         // Records read across all objects
	ReadDuration   time.Duration // Total time spent inside Read
	CurrentObject  string        // Object currently being decoded
	ProcessedFiles []string      // Objects fully consumed
}

// ObjectDecoder turns an opened object into a record stream.
type ObjectDecoder func(body io.ReadCloser, key string) (core.DataSource, error)

// DecodeJSON is the default ObjectDecoder.
func DecodeJSON(body io.ReadCloser, key string) (core.DataSource, error) {
	return NewJSONReader(body, key), nil
}

// ObjectReaderOptions configures the object reader behavior
type ObjectReaderOptions struct {
	Prefix  string        // Key prefix the glob is relative to
	Pattern string        // path.Match glob, "*" never crosses "/"
	Decoder ObjectDecoder // Per-object record decoder
}

// ReaderOptionObjects represents a configuration function for ObjectReader
type ReaderOptionObjects func(*ObjectReaderOptions)

// WithObjectPrefix scopes listing to keys under prefix.
func WithObjectPrefix(prefix string) ReaderOptionObjects {
	return func(opts *ObjectReaderOptions) {
		opts.Prefix = prefix
	}
}

// WithObjectPattern sets the glob matched against keys relative to the prefix.
func WithObjectPattern(pattern string) ReaderOptionObjects {
	return func(opts *ObjectReaderOptions) {
		opts.Pattern = pattern
	}
}

// WithObjectDecoder overrides how each object is decoded.
func WithObjectDecoder(decoder ObjectDecoder) ReaderOptionObjects {
	return func(opts *ObjectReaderOptions) {
		opts.Decoder = decoder
	}
}

// ObjectReader implements core.DataSource over every object in a store
// matching a glob. Objects are consumed in key order and any open or decode
// failure is returned to the caller; nothing is skipped.
type ObjectReader struct {
	store         storage.Store
	objects       []storage.Object
	currentIndex  int
	currentReader core.DataSource
	stats         ObjectReaderStats
	opts          ObjectReaderOptions
	mu            sync.RWMutex
}

// NewObjectReader lists the matching objects and returns a reader over them.
func NewObjectReader(ctx context.Context, store storage.Store, options ...ReaderOptionObjects) (*ObjectReader, error) {
	opts := ObjectReaderOptions{
		Pattern: "*",
		Decoder: DecodeJSON,
	}
	for _, option := range options {
		option(&opts)
	}

	if _, err := path.Match(opts.Pattern, ""); err != nil {
		return nil, &ObjectReaderError{Op: "validate_options", Err: fmt.Errorf("bad pattern %q: %w", opts.Pattern, err)}
	}

	reader := &ObjectReader{
		store: store,
		opts:  opts,
		stats: ObjectReaderStats{ProcessedFiles: make([]string, 0)},
	}

	if err := reader.listObjects(ctx); err != nil {
		return nil, &ObjectReaderError{Op: "list_objects", Err: err}
	}
	return reader, nil
}

// Read implements the core.DataSource interface
func (o *ObjectReader) Read(ctx context.Context) (core.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	defer func() {
		o.stats.ReadDuration += time.Since(start)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ObjectReaderError{Op: "read", Err: err}
		}

		if o.currentReader == nil {
			if o.currentIndex >= len(o.objects) {
				return nil, io.EOF
			}
			if err := o.openNextObject(ctx); err != nil {
				return nil, &ObjectReaderError{Op: "open_object", Err: err}
			}
		}

		record, err := o.currentReader.Read(ctx)
		if err == io.EOF {
			if err := o.closeCurrentReader(); err != nil {
				return nil, &ObjectReaderError{Op: "close_object", Err: err}
			}
			continue
		}
		if err != nil {
			return nil, &ObjectReaderError{Op: "read_record", Err: err}
		}

		o.stats.RecordsRead++
		return record, nil
	}
}

// Close implements the core.DataSource interface
func (o *ObjectReader) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.currentReader == nil {
		return nil
	}
	err := o.currentReader.Close()
	o.currentReader = nil
	return err
}

// Stats returns reader statistics
func (o *ObjectReader) Stats() ObjectReaderStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := o.stats
	stats.ProcessedFiles = append([]string(nil), o.stats.ProcessedFiles...)
	return stats
}

// Objects returns the objects that will be or have been processed
func (o *ObjectReader) Objects() []storage.Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]storage.Object(nil), o.objects...)
}

func (o *ObjectReader) listObjects(ctx context.Context) error {
	listed, err := o.store.List(ctx, o.opts.Prefix)
	if err != nil {
		return err
	}

	objects := make([]storage.Object, 0, len(listed))
	for _, obj := range listed {
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, o.opts.Prefix), "/")
		ok, err := path.Match(o.opts.Pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			objects = append(objects, obj)
		}
	}

	o.objects = objects
	o.stats.ObjectsListed = int64(len(objects))
	return nil
}

func (o *ObjectReader) openNextObject(ctx context.Context) error {
	obj := o.objects[o.currentIndex]
	o.stats.CurrentObject = obj.Key

	body, err := o.store.Open(ctx, obj.Key)
	if err != nil {
		return err
	}

	reader, err := o.opts.Decoder(body, o.store.URI(obj.Key))
	if err != nil {
		body.Close()
		return fmt.Errorf("decode %s: %w", o.store.URI(obj.Key), err)
	}

	o.currentReader = reader
	o.stats.ObjectsRead++
	return nil
}

func (o *ObjectReader) closeCurrentReader() error {
	err := o.currentReader.Close()
	o.stats.ProcessedFiles = append(o.stats.ProcessedFiles, o.objects[o.currentIndex].Key)
	o.currentReader = nil
	o.currentIndex++
	return err
}
