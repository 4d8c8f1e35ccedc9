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

// source.go - SourceTask implementation
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// SourceOpener opens a data source when its task runs. Opening lazily lets a
// source depend on the output of an earlier task in the same DAG.
type SourceOpener func(ctx context.Context) (core.DataSource, error)

// SourceTask drains a DataSource into the DAG.
type SourceTask struct {
	baseTask
	open SourceOpener
}

// NewSourceTask creates a SourceTask. Dependencies only order the task; their
// records are not passed to the source.
func NewSourceTask(id string, open SourceOpener, dependencies []string, options ...TaskOption) *SourceTask {
	task := &SourceTask{
		baseTask: newBaseTask(id, TaskTypeSource, dependencies),
		open:     open,
	}
	applyOptions(task, options)
	return task
}

func (st *SourceTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	source, err := st.open(ctx)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("source open failed: %w", err)
	}

	records, err := drain(ctx, source)
	if cerr := source.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("source close failed: %w", cerr)
	}
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  records,
		Metadata: st.result(start, 0, len(records)),
	}, nil
}

func drain(ctx context.Context, source core.DataSource) ([]core.Record, error) {
	var records []core.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := source.Read(ctx)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("source read failed: %w", err)
		}
		records = append(records, record)
	}
}
