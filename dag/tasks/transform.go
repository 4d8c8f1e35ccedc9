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

// transform.go - TransformTask and related implementations
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/core"
)

// TransformTask wraps a Transformer in the DAG framework
type TransformTask struct {
	baseTask
	transformer core.Transformer
}

// NewTransformTask creates a new TransformTask
func NewTransformTask(id string, transformer core.Transformer, dependencies []string, options ...TaskOption) *TransformTask {
	task := &TransformTask{
		baseTask:    newBaseTask(id, TaskTypeTransform, dependencies),
		transformer: transformer,
	}
	applyOptions(task, options)
	return task
}

func (tt *TransformTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	records, err := transformAll(ctx, tt.transformer, input.Records)
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  records,
		Metadata: tt.result(start, len(input.Records), len(records)),
	}, nil
}

// transformAll applies t to every record in order. Records are processed
// sequentially so order-dependent transformers (sequences) see emission order.
func transformAll(ctx context.Context, t core.Transformer, records []core.Record) ([]core.Record, error) {
	out := make([]core.Record, 0, len(records))
	for i, record := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		transformed, err := t.Transform(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("transform failed: %w", err)
		}
		out = append(out, transformed)
	}
	return out, nil
}

// FilterTask wraps a Filter in the DAG framework
type FilterTask struct {
	baseTask
	filter core.Filter
}

// NewFilterTask creates a new FilterTask
func NewFilterTask(id string, filter core.Filter, dependencies []string, options ...TaskOption) *FilterTask {
	task := &FilterTask{
		baseTask: newBaseTask(id, TaskTypeFilter, dependencies),
		filter:   filter,
	}
	applyOptions(task, options)
	return task
}

func (ft *FilterTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	var filtered []core.Record

	for i, record := range input.Records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return TaskOutput{}, err
			}
		}

		include, err := ft.filter.ShouldInclude(ctx, record)
		if err != nil {
			return TaskOutput{}, fmt.Errorf("filter failed: %w", err)
		}
		if include {
			filtered = append(filtered, record)
		}
	}

	return TaskOutput{
		Records:  filtered,
		Metadata: ft.result(start, len(input.Records), len(filtered)),
	}, nil
}

// AggregateTask feeds every input record to an Aggregator and emits its
// result set. Optional transformers run on each record before aggregation
// (prepare) and on each result after it (finish).
type AggregateTask struct {
	baseTask
	aggregator aggregate.Aggregator
	prepare    core.Transformer
	finish     core.Transformer
}

// NewAggregateTask creates a new AggregateTask
func NewAggregateTask(id string, aggregator aggregate.Aggregator, dependencies []string, options ...TaskOption) *AggregateTask {
	task := &AggregateTask{
		baseTask:   newBaseTask(id, TaskTypeAggregate, dependencies),
		aggregator: aggregator,
	}
	applyOptions(task, options)
	return task
}

// WithPrepare sets the transformer applied to input records.
func (at *AggregateTask) WithPrepare(t core.Transformer) *AggregateTask {
	at.prepare = t
	return at
}

// WithFinish sets the transformer applied to aggregated records.
func (at *AggregateTask) WithFinish(t core.Transformer) *AggregateTask {
	at.finish = t
	return at
}

func (at *AggregateTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	// Reset aggregator for clean state, retries included
	at.aggregator.Reset()

	records := input.Records
	if at.prepare != nil {
		var err error
		if records, err = transformAll(ctx, at.prepare, records); err != nil {
			return TaskOutput{}, err
		}
	}

	for i, record := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return TaskOutput{}, err
			}
		}
		if err := at.aggregator.Add(ctx, record); err != nil {
			return TaskOutput{}, fmt.Errorf("aggregation failed: %w", err)
		}
	}

	results, err := at.aggregator.Results()
	if err != nil {
		return TaskOutput{}, fmt.Errorf("aggregation result failed: %w", err)
	}

	if at.finish != nil {
		if results, err = transformAll(ctx, at.finish, results); err != nil {
			return TaskOutput{}, err
		}
	}

	return TaskOutput{
		Records:  results,
		Metadata: at.result(start, len(input.Records), len(results)),
	}, nil
}
