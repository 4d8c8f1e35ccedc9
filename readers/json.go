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
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/sparkify/core"
)

// JSONReaderError provides structured error information for JSON decoding
type JSONReaderError struct {
	Source string // Object the value was read from
	Record int64  // 1-based index of the value that failed
	Err    error  // Underlying decode error
}

func (e *JSONReaderError) Error() string {
	return fmt.Sprintf("json reader %s record %d: %v", e.Source, e.Record, e.Err)
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// JSONReader implements DataSource for a stream of JSON objects.
// It accepts both a single document and newline-delimited objects, since the
// decoder consumes successive values regardless of the whitespace between them.
// Numbers are kept as json.Number so integer columns never pass through float64.
type JSONReader struct {
	decoder *json.Decoder
	closer  io.Closer
	source  string
	count   int64
}

// NewJSONReader creates a new JSON reader. source names the stream in errors.
func NewJSONReader(r io.ReadCloser, source string) *JSONReader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &JSONReader{
		decoder: dec,
		closer:  r,
		source:  source,
	}
}

// Read implements the DataSource interface
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record core.Record
	if err := j.decoder.Decode(&record); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &JSONReaderError{Source: j.source, Record: j.count + 1, Err: err}
	}
	j.count++

	if record == nil {
		// A bare `null` value decodes to a nil map.
		return nil, &JSONReaderError{Source: j.source, Record: j.count, Err: fmt.Errorf("expected JSON object, got null")}
	}
	return record, nil
}

// Count returns the number of records decoded so far.
func (j *JSONReader) Count() int64 {
	return j.count
}

// Close implements the DataSource interface
func (j *JSONReader) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
