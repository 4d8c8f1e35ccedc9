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

// dag_builder.go - Fluent API for DAG construction
package dag

import (
	"errors"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/dag/tasks"
)

// DAGBuilder provides a fluent API for constructing DAGs
type DAGBuilder struct {
	dag  *DAG
	errs []error
}

// NewDAG creates a new DAG builder
func NewDAG(id, name string) *DAGBuilder {
	return &DAGBuilder{
		dag: &DAG{
			id:           id,
			name:         name,
			tasks:        make(map[string]tasks.Task),
			dependencies: make(map[string][]string),
			metadata: DAGMetadata{
				MaxParallelism: 4,
				DefaultTimeout: 30 * time.Minute,
			},
		},
	}
}

// AddTask adds a prebuilt task to the DAG. Its dependencies become edges.
func (db *DAGBuilder) AddTask(task tasks.Task) *DAGBuilder {
	id := task.ID()
	if _, exists := db.dag.tasks[id]; exists {
		db.errs = append(db.errs, fmt.Errorf("duplicate task id %s", id))
		return db
	}
	db.dag.tasks[id] = task
	db.dag.order = append(db.dag.order, id)
	if deps := task.Dependencies(); len(deps) > 0 {
		db.dag.dependencies[id] = deps
	}
	return db
}

// AddSourceTask adds a data source task to the DAG
func (db *DAGBuilder) AddSourceTask(id string, open tasks.SourceOpener, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewSourceTask(id, open, dependencies, opts...))
}

// AddTransformTask adds a transformation task to the DAG
func (db *DAGBuilder) AddTransformTask(id string, transformer core.Transformer, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewTransformTask(id, transformer, dependencies, opts...))
}

// AddFilterTask adds a filter task to the DAG
func (db *DAGBuilder) AddFilterTask(id string, filter core.Filter, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewFilterTask(id, filter, dependencies, opts...))
}

// AddAggregateTask adds an aggregation task to the DAG
func (db *DAGBuilder) AddAggregateTask(id string, aggregator aggregate.Aggregator, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewAggregateTask(id, aggregator, dependencies, opts...))
}

// AddJoinTask adds a join operation task to the DAG
func (db *DAGBuilder) AddJoinTask(id string, config tasks.JoinConfig, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewJoinTask(id, config, dependencies, opts...))
}

// AddCheckTask adds a validation gate to the DAG
func (db *DAGBuilder) AddCheckTask(id string, validator tasks.Validator, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewCheckTask(id, validator, dependencies, opts...))
}

// AddSinkTask adds a data sink task to the DAG
func (db *DAGBuilder) AddSinkTask(id string, open tasks.SinkOpener, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewSinkTask(id, open, dependencies, opts...))
}

// WithDescription sets the DAG description
func (db *DAGBuilder) WithDescription(description string) *DAGBuilder {
	db.dag.metadata.Description = description
	return db
}

// WithMaxParallelism sets the maximum number of concurrent tasks
func (db *DAGBuilder) WithMaxParallelism(max int) *DAGBuilder {
	db.dag.metadata.MaxParallelism = max
	return db
}

// WithDefaultTimeout sets the timeout for tasks that do not set their own
func (db *DAGBuilder) WithDefaultTimeout(timeout time.Duration) *DAGBuilder {
	db.dag.metadata.DefaultTimeout = timeout
	return db
}

// validateDAG checks for duplicate or missing dependencies and cycles
func (db *DAGBuilder) validateDAG() error {
	if len(db.errs) > 0 {
		return errors.Join(db.errs...)
	}

	for _, taskID := range db.dag.order {
		seen := make(map[string]bool)
		for _, dep := range db.dag.dependencies[taskID] {
			if _, exists := db.dag.tasks[dep]; !exists {
				return fmt.Errorf("task %s depends on non-existent task %s", taskID, dep)
			}
			if seen[dep] {
				return fmt.Errorf("task %s lists dependency %s twice", taskID, dep)
			}
			seen[dep] = true
		}
	}

	if _, err := db.dag.topologicalSort(); err != nil {
		return err
	}
	return nil
}

// Build validates and returns the constructed DAG
func (db *DAGBuilder) Build() (*DAG, error) {
	if err := db.validateDAG(); err != nil {
		return nil, err
	}
	return db.dag, nil
}
