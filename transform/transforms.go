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

package transform

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aaronlmathis/sparkify/core"
)

// Package transform provides the per-record transformations used to shape
// input rows into table rows: projection, renaming, derived fields, id
// sequencing and schema conformance.

// Select creates a transformer that projects each record onto fields.
// Missing fields are kept as nil so every output row carries the same columns.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		return record.Project(fields...), nil
	})
}

// Rename creates a transformer that renames fields according to the provided mapping.
// Keys are original field names, values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// AddField creates a transformer that adds a field computed from the record.
// An error from fn fails the record.
func AddField(field string, fn func(core.Record) (interface{}, error)) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		value, err := fn(record)
		if err != nil {
			return nil, fmt.Errorf("compute field %s: %w", field, err)
		}
		result := record.Clone()
		result[field] = value
		return result, nil
	})
}

// Sequence creates a transformer that stamps field with an int64 id that
// increases by one per record, starting at start. Ids are unique for the
// transformer's lifetime, and increasing in emission order when records pass
// through it sequentially.
func Sequence(field string, start int64) core.Transformer {
	next := start - 1
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		result[field] = atomic.AddInt64(&next, 1)
		return result, nil
	})
}

// Conform creates a transformer that projects each record onto schema and
// coerces values to the declared column types.
func Conform(schema core.Schema) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		return schema.Conform(record)
	})
}

// Chain composes transformers left to right.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		var err error
		for _, t := range transformers {
			if record, err = t.Transform(ctx, record); err != nil {
				return nil, err
			}
		}
		return record, nil
	})
}
