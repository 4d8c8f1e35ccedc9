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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/sparkify/core"
)

// JSONWriter implements DataSink for JSON lines output
type JSONWriter struct {
	writer  *bufio.Writer
	encoder *json.Encoder
	closer  io.Closer
	count   int64
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output.
// If w is an io.Closer it is closed by Close.
func NewJSONWriter(w io.Writer) *JSONWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	jw := &JSONWriter{writer: bw, encoder: enc}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// Write implements the DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	// Encode terminates each value with a newline.
	if err := j.encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write JSON record: %w", err)
	}
	j.count++
	return nil
}

// Count returns the number of records written.
func (j *JSONWriter) Count() int64 {
	return j.count
}

// Flush implements the DataSink interface
func (j *JSONWriter) Flush() error {
	return j.writer.Flush()
}

// Close implements the DataSink interface
func (j *JSONWriter) Close() error {
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
