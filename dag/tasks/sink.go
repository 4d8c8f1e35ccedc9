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

// sink.go - SinkTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// SinkOpener creates the sink a SinkTask writes to. A fresh sink is opened
// for every attempt.
type SinkOpener func(ctx context.Context) (core.DataSink, error)

// SinkTask writes every input record to a DataSink and closes it. Sinks that
// do their work on Close (partitioned Parquet, transactional Postgres) fail
// the task when Close fails.
type SinkTask struct {
	baseTask
	open SinkOpener
}

// NewSinkTask creates a new SinkTask
func NewSinkTask(id string, open SinkOpener, dependencies []string, options ...TaskOption) *SinkTask {
	task := &SinkTask{
		baseTask: newBaseTask(id, TaskTypeSink, dependencies),
		open:     open,
	}
	applyOptions(task, options)
	return task
}

func (st *SinkTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	sink, err := st.open(ctx)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("sink open failed: %w", err)
	}

	written, err := st.writeAll(ctx, sink, input.Records)
	if err != nil {
		if a, ok := sink.(aborter); ok {
			a.Abort()
		} else {
			sink.Close()
		}
		return TaskOutput{}, err
	}
	if err := sink.Close(); err != nil {
		return TaskOutput{}, fmt.Errorf("sink close failed: %w", err)
	}

	// Sinks don't produce output records
	return TaskOutput{
		Metadata: st.result(start, len(input.Records), written),
	}, nil
}

// aborter is implemented by sinks that can discard a partial load instead of
// committing it on Close.
type aborter interface {
	Abort() error
}

func (st *SinkTask) writeAll(ctx context.Context, sink core.DataSink, records []core.Record) (int, error) {
	written := 0
	for i, record := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return written, err
			}
		}
		if err := sink.Write(ctx, record); err != nil {
			return written, fmt.Errorf("sink write failed: %w", err)
		}
		written++
	}

	if err := sink.Flush(); err != nil {
		return written, fmt.Errorf("sink flush failed: %w", err)
	}
	return written, nil
}
