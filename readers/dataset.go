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

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/storage"
)

// DatasetReader implements core.DataSource over a partitioned Parquet
// directory. Values encoded in key=value path segments are restored as
// columns and, when a schema is given, every row is conformed to it.
type DatasetReader struct {
	store   storage.Store
	dir     string
	schema  core.Schema
	files   []storage.Object
	index   int
	current *ParquetReader
	parts   core.Record
	options []ReaderOption
	rows    int64
}

// NewDatasetReader lists the data files under dir. Keys whose base name
// starts with "_" or "." (markers, manifests, temporaries) are skipped.
func NewDatasetReader(ctx context.Context, store storage.Store, dir string, schema core.Schema, options ...ReaderOption) (*DatasetReader, error) {
	prefix := storage.DirPrefix(dir)
	listed, err := store.List(ctx, prefix)
	if err != nil {
		return nil, &ParquetReaderError{Op: "list_dataset", Err: err}
	}

	files := make([]storage.Object, 0, len(listed))
	for _, obj := range listed {
		base := path.Base(obj.Key)
		if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
			continue
		}
		if !strings.HasSuffix(base, ".parquet") {
			continue
		}
		files = append(files, obj)
	}

	return &DatasetReader{
		store:   store,
		dir:     prefix,
		schema:  schema,
		files:   files,
		options: options,
	}, nil
}

// Files returns the data files the reader will consume.
func (d *DatasetReader) Files() []storage.Object {
	return append([]storage.Object(nil), d.files...)
}

// Read implements core.DataSource.
func (d *DatasetReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if d.current == nil {
			if d.index >= len(d.files) {
				return nil, io.EOF
			}
			if err := d.openNext(ctx); err != nil {
				return nil, err
			}
		}

		record, err := d.current.Read(ctx)
		if err == io.EOF {
			closeErr := d.current.Close()
			d.current = nil
			d.index++
			if closeErr != nil {
				return nil, &ParquetReaderError{Op: "close_file", Err: closeErr}
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		for k, v := range d.parts {
			record[k] = v
		}
		if d.schema != nil {
			record, err = d.schema.Conform(record)
			if err != nil {
				return nil, &ParquetReaderError{Op: "conform", Err: fmt.Errorf("%s: %w", d.store.URI(d.files[d.index].Key), err)}
			}
		}
		d.rows++
		return record, nil
	}
}

// RowsRead returns the number of rows returned so far.
func (d *DatasetReader) RowsRead() int64 {
	return d.rows
}

// Close implements core.DataSource.
func (d *DatasetReader) Close() error {
	if d.current == nil {
		return nil
	}
	err := d.current.Close()
	d.current = nil
	return err
}

func (d *DatasetReader) openNext(ctx context.Context) error {
	obj := d.files[d.index]

	rel := strings.TrimPrefix(obj.Key, d.dir)
	values, err := storage.ParsePartitionDir(path.Dir(rel))
	if err != nil {
		return &ParquetReaderError{Op: "parse_partition", Err: fmt.Errorf("%s: %w", d.store.URI(obj.Key), err)}
	}

	parts := make(core.Record, len(values))
	for _, pv := range values {
		if pv.Value == storage.DefaultPartition {
			parts[pv.Column] = nil
			continue
		}
		parts[pv.Column] = pv.Value
	}

	reader, err := OpenParquetObject(ctx, d.store, obj.Key, d.options...)
	if err != nil {
		return err
	}
	d.current = reader
	d.parts = parts
	return nil
}
