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

// base.go - Task interface and base types
package tasks

import (
	"context"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeSource    TaskType = "source"
	TaskTypeTransform TaskType = "transform"
	TaskTypeFilter    TaskType = "filter"
	TaskTypeAggregate TaskType = "aggregate"
	TaskTypeJoin      TaskType = "join"
	TaskTypeCheck     TaskType = "check"
	TaskTypeSink      TaskType = "sink"
)

// BackoffStrategy computes the delay before a retry attempt.
type BackoffStrategy interface {
	Delay(attempt int) time.Duration
}

// RetryConfig defines retry behavior for tasks
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration    // Simple backoff duration
	Strategy   BackoffStrategy  // Overrides Backoff when set
	RetryIf    func(error) bool // Limits retries to matching errors when set
}

// ShouldRetry reports whether err is worth another attempt.
func (rc *RetryConfig) ShouldRetry(err error) bool {
	return rc.RetryIf == nil || rc.RetryIf(err)
}

// GetDelay returns the delay for a given attempt
func (rc *RetryConfig) GetDelay(attempt int) time.Duration {
	if rc.Strategy != nil {
		return rc.Strategy.Delay(attempt)
	}
	return rc.Backoff
}

// ExponentialBackoff doubles the delay on every attempt up to MaxDelay.
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (eb *ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := eb.BaseDelay * time.Duration(1<<uint(attempt))
	if eb.MaxDelay > 0 && delay > eb.MaxDelay {
		delay = eb.MaxDelay
	}
	return delay
}

// TaskMetadata holds static metadata about a task
type TaskMetadata struct {
	Name        string
	Description string
	TaskType    TaskType
	RetryConfig *RetryConfig
	Timeout     time.Duration
	Tags        []string
}

// TaskInput represents input data for task execution
type TaskInput struct {
	Records   []core.Record            // Concatenated output of all dependencies, in dependency order
	SourceMap map[string][]core.Record // Output of each dependency keyed by task ID
}

// TaskOutput represents output data from task execution
type TaskOutput struct {
	Records  []core.Record
	Metadata TaskResultMetadata
}

// TaskResultMetadata holds execution result metadata
type TaskResultMetadata struct {
	StartTime    time.Time
	EndTime      time.Time
	RecordsIn    int64
	RecordsOut   int64
	Success      bool
	Error        error
	AttemptCount int
}

// Duration returns how long the task ran.
func (m TaskResultMetadata) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

// Task defines the interface that all tasks must implement
type Task interface {
	ID() string
	Dependencies() []string
	Execute(ctx context.Context, input TaskInput) (TaskOutput, error)
	Metadata() TaskMetadata
	SetRetryConfig(config *RetryConfig)
	SetTimeout(timeout time.Duration)
	SetDescription(description string)
	SetTags(tags ...string)
}

// TaskOption is a functional option for configuring tasks
type TaskOption func(Task)

// WithRetries sets a fixed-backoff retry configuration for a task
func WithRetries(maxRetries int, backoff time.Duration) TaskOption {
	return func(t Task) {
		t.SetRetryConfig(&RetryConfig{
			MaxRetries: maxRetries,
			Backoff:    backoff,
		})
	}
}

// WithRetryConfig sets the retry configuration for a task
func WithRetryConfig(config *RetryConfig) TaskOption {
	return func(t Task) {
		t.SetRetryConfig(config)
	}
}

// WithTimeout sets the timeout for a task
func WithTimeout(timeout time.Duration) TaskOption {
	return func(t Task) {
		t.SetTimeout(timeout)
	}
}

// WithDescription sets the description for a task
func WithDescription(description string) TaskOption {
	return func(t Task) {
		t.SetDescription(description)
	}
}

// WithTags adds tags to a task
func WithTags(tags ...string) TaskOption {
	return func(t Task) {
		t.SetTags(tags...)
	}
}

// baseTask carries the identity and metadata shared by every task type.
type baseTask struct {
	id           string
	dependencies []string
	metadata     TaskMetadata
}

func newBaseTask(id string, taskType TaskType, dependencies []string) baseTask {
	return baseTask{
		id:           id,
		dependencies: append([]string(nil), dependencies...),
		metadata: TaskMetadata{
			Name:     id,
			TaskType: taskType,
		},
	}
}

func (b *baseTask) ID() string             { return b.id }
func (b *baseTask) Dependencies() []string { return b.dependencies }
func (b *baseTask) Metadata() TaskMetadata { return b.metadata }

func (b *baseTask) SetRetryConfig(config *RetryConfig) { b.metadata.RetryConfig = config }
func (b *baseTask) SetTimeout(timeout time.Duration)   { b.metadata.Timeout = timeout }
func (b *baseTask) SetDescription(description string)  { b.metadata.Description = description }

func (b *baseTask) SetTags(tags ...string) {
	b.metadata.Tags = append(b.metadata.Tags, tags...)
}

func (b *baseTask) result(start time.Time, in, out int) TaskResultMetadata {
	return TaskResultMetadata{
		StartTime:  start,
		EndTime:    time.Now(),
		RecordsIn:  int64(in),
		RecordsOut: int64(out),
		Success:    true,
	}
}

func applyOptions(t Task, options []TaskOption) {
	for _, opt := range options {
		opt(t)
	}
}
