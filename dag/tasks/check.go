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

// check.go - CheckTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// Validator checks a complete table.
type Validator interface {
	Validate(ctx context.Context, records []core.Record) error
}

// ValidatorFunc is a function adapter for the Validator interface.
type ValidatorFunc func(ctx context.Context, records []core.Record) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, records []core.Record) error {
	return f(ctx, records)
}

// CheckTask gates a table on a Validator. Records pass through unchanged
// when the check succeeds; a failed check fails the task.
type CheckTask struct {
	baseTask
	validator Validator
}

// NewCheckTask creates a new CheckTask
func NewCheckTask(id string, validator Validator, dependencies []string, options ...TaskOption) *CheckTask {
	task := &CheckTask{
		baseTask:  newBaseTask(id, TaskTypeCheck, dependencies),
		validator: validator,
	}
	applyOptions(task, options)
	return task
}

func (ct *CheckTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	if err := ct.validator.Validate(ctx, input.Records); err != nil {
		return TaskOutput{}, fmt.Errorf("check failed: %w", err)
	}

	return TaskOutput{
		Records:  input.Records,
		Metadata: ct.result(start, len(input.Records), len(input.Records)),
	}, nil
}
