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

// dag_executor.go - DAG execution engine with topological sort
package dag

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/dag/tasks"
	"github.com/aaronlmathis/sparkify/logger"
)

// DAGExecutor executes DAGs level by level with bounded parallelism
type DAGExecutor struct {
	maxWorkers   int
	retryBackoff tasks.BackoffStrategy
	log          *logger.Logger
}

// DAGExecutorOption configures a DAGExecutor
type DAGExecutorOption func(*DAGExecutor)

// WithMaxWorkers sets the maximum number of concurrent tasks
func WithMaxWorkers(workers int) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if workers > 0 {
			de.maxWorkers = workers
		}
	}
}

// WithBackoffStrategy sets the backoff used by tasks that retry without a
// strategy of their own
func WithBackoffStrategy(strategy tasks.BackoffStrategy) DAGExecutorOption {
	return func(de *DAGExecutor) {
		de.retryBackoff = strategy
	}
}

// WithLogger sets the executor's logger
func WithLogger(l *logger.Logger) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if l != nil {
			de.log = l
		}
	}
}

// NewDAGExecutor creates a new DAG executor with options
func NewDAGExecutor(opts ...DAGExecutorOption) *DAGExecutor {
	de := &DAGExecutor{
		maxWorkers: runtime.NumCPU(),
		retryBackoff: &tasks.ExponentialBackoff{
			BaseDelay: time.Second,
			MaxDelay:  time.Minute,
		},
		log: logger.NewNop(),
	}

	for _, opt := range opts {
		opt(de)
	}

	return de
}

// DAGResult contains the results of DAG execution
type DAGResult struct {
	Success     bool
	StartTime   time.Time
	EndTime     time.Time
	TaskResults map[string]tasks.TaskResultMetadata
	Outputs     map[string][]core.Record // Records of tasks nothing depends on
	Error       error
}

// executionContext holds state during DAG execution
type executionContext struct {
	dag         *DAG
	taskOutputs map[string]tasks.TaskOutput
	taskResults map[string]tasks.TaskResultMetadata
	mu          sync.RWMutex
}

// Execute runs the DAG. Tasks of one level run concurrently, bounded by the
// smaller of the executor's worker count and the DAG's MaxParallelism. The
// first failing task cancels its level and no further level starts. The
// returned result is non-nil whenever the DAG could be sorted.
func (de *DAGExecutor) Execute(ctx context.Context, dag *DAG) (*DAGResult, error) {
	sortedTasks, err := dag.topologicalSort()
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	execCtx := &executionContext{
		dag:         dag,
		taskOutputs: make(map[string]tasks.TaskOutput),
		taskResults: make(map[string]tasks.TaskResultMetadata),
	}

	start := time.Now()
	levels := de.groupTasksByLevel(dag, sortedTasks)
	de.log.Info("dag started", "dag", dag.id, "tasks", len(sortedTasks), "levels", len(levels))

	result := &DAGResult{StartTime: start, TaskResults: execCtx.taskResults}
	for levelIdx, level := range levels {
		if err := ctx.Err(); err != nil {
			return de.fail(result, err)
		}

		if err := de.executeLevel(ctx, execCtx, level); err != nil {
			return de.fail(result, fmt.Errorf("dag %s: %w", dag.id, err))
		}
		execCtx.release(level)

		de.log.Debug("level completed", "dag", dag.id, "level", levelIdx, "tasks", level)
	}

	result.Success = true
	result.EndTime = time.Now()
	result.Outputs = make(map[string][]core.Record)
	for id, out := range execCtx.taskOutputs {
		if len(dag.GetDownstreamTasks(id)) == 0 && out.Records != nil {
			result.Outputs[id] = out.Records
		}
	}
	de.log.Info("dag completed", "dag", dag.id, "duration", result.EndTime.Sub(start))
	return result, nil
}

func (de *DAGExecutor) fail(result *DAGResult, err error) (*DAGResult, error) {
	result.EndTime = time.Now()
	result.Error = err
	return result, err
}

// groupTasksByLevel groups tasks by their dependency depth. Each level keeps
// the topological order of its tasks.
func (de *DAGExecutor) groupTasksByLevel(dag *DAG, sortedTasks []string) [][]string {
	taskLevel := make(map[string]int, len(sortedTasks))
	var levels [][]string

	for _, taskID := range sortedTasks {
		level := 0
		for _, dep := range dag.dependencies[taskID] {
			if taskLevel[dep]+1 > level {
				level = taskLevel[dep] + 1
			}
		}
		taskLevel[taskID] = level

		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], taskID)
	}

	return levels
}

// executeLevel executes all tasks in a level concurrently
func (de *DAGExecutor) executeLevel(ctx context.Context, execCtx *executionContext, taskIDs []string) error {
	limit := de.maxWorkers
	if p := execCtx.dag.metadata.MaxParallelism; p > 0 && p < limit {
		limit = p
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, taskID := range taskIDs {
		taskID := taskID
		g.Go(func() error {
			if err := de.executeTaskWithRetry(gctx, execCtx, taskID); err != nil {
				return fmt.Errorf("task %s failed: %w", taskID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// executeTaskWithRetry executes a single task with retry logic
func (de *DAGExecutor) executeTaskWithRetry(ctx context.Context, execCtx *executionContext, taskID string) error {
	task := execCtx.dag.tasks[taskID]
	metadata := task.Metadata()

	maxRetries := 0
	if metadata.RetryConfig != nil {
		maxRetries = metadata.RetryConfig.MaxRetries
	}
	timeout := metadata.Timeout
	if timeout == 0 {
		timeout = execCtx.dag.metadata.DefaultTimeout
	}

	input := de.prepareTaskInput(execCtx, task)

	var lastErr error
	attempt := 0
	for ; attempt <= maxRetries; attempt++ {
		output, err := de.runOnce(ctx, task, input, timeout)
		if err == nil {
			output.Metadata.AttemptCount = attempt + 1

			execCtx.mu.Lock()
			execCtx.taskOutputs[taskID] = output
			execCtx.taskResults[taskID] = output.Metadata
			execCtx.mu.Unlock()

			de.log.Info("task completed",
				"task", taskID,
				"type", metadata.TaskType,
				"records_in", output.Metadata.RecordsIn,
				"records_out", output.Metadata.RecordsOut,
				"duration", output.Metadata.Duration(),
			)
			return nil
		}

		lastErr = err
		if attempt == maxRetries || ctx.Err() != nil || !metadata.RetryConfig.ShouldRetry(err) {
			break
		}

		delay := de.retryBackoff.Delay(attempt)
		if metadata.RetryConfig.Strategy != nil || metadata.RetryConfig.Backoff > 0 {
			delay = metadata.RetryConfig.GetDelay(attempt)
		}
		de.log.Warn("task attempt failed, retrying", "task", taskID, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxRetries
		}
	}

	execCtx.mu.Lock()
	execCtx.taskResults[taskID] = tasks.TaskResultMetadata{
		Success:      false,
		Error:        lastErr,
		AttemptCount: attempt + 1,
	}
	execCtx.mu.Unlock()

	de.log.Error("task failed", "task", taskID, "error", lastErr)
	return lastErr
}

func (de *DAGExecutor) runOnce(ctx context.Context, task tasks.Task, input tasks.TaskInput, timeout time.Duration) (tasks.TaskOutput, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return task.Execute(ctx, input)
}

// prepareTaskInput gathers the outputs of a task's dependencies, in
// dependency order
func (de *DAGExecutor) prepareTaskInput(execCtx *executionContext, task tasks.Task) tasks.TaskInput {
	execCtx.mu.RLock()
	defer execCtx.mu.RUnlock()

	dependencies := task.Dependencies()
	sourceMap := make(map[string][]core.Record, len(dependencies))

	var allRecords []core.Record
	if len(dependencies) == 1 {
		allRecords = execCtx.taskOutputs[dependencies[0]].Records
	}
	for _, depID := range dependencies {
		output := execCtx.taskOutputs[depID]
		if len(dependencies) > 1 {
			allRecords = append(allRecords, output.Records...)
		}
		sourceMap[depID] = output.Records
	}

	return tasks.TaskInput{
		Records:   allRecords,
		SourceMap: sourceMap,
	}
}

// release drops the outputs no remaining task will read, so large
// intermediate tables can be collected once consumed.
func (ec *executionContext) release(completed []string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	for _, id := range completed {
		for _, dep := range ec.dag.dependencies[id] {
			if ec.consumed(dep) {
				delete(ec.taskOutputs, dep)
			}
		}
	}
}

func (ec *executionContext) consumed(taskID string) bool {
	for _, downstream := range ec.dag.GetDownstreamTasks(taskID) {
		if _, done := ec.taskResults[downstream]; !done {
			return false
		}
	}
	return true
}
