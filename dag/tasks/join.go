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

// join.go - JoinTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// JoinType selects which unmatched rows a join keeps.
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
)

// JoinConfig defines join operation parameters
type JoinConfig struct {
	JoinType  JoinType // Defaults to InnerJoin
	LeftKeys  []string // Join keys for left dataset
	RightKeys []string // Join keys for right dataset

	// RightFields maps right-side field names to output names. When nil every
	// right field is copied and names already taken by the left side get a
	// "right_" prefix.
	RightFields map[string]string
}

// JoinTask performs an equi-join of its first dependency (left) against its
// second (right) using a hash index over the right side. Output order follows
// the left input, with multiple matches in right input order.
type JoinTask struct {
	baseTask
	config    JoinConfig
	transform core.Transformer
}

// NewJoinTask creates a new JoinTask
func NewJoinTask(id string, config JoinConfig, dependencies []string, options ...TaskOption) *JoinTask {
	if config.JoinType == "" {
		config.JoinType = InnerJoin
	}
	task := &JoinTask{
		baseTask: newBaseTask(id, TaskTypeJoin, dependencies),
		config:   config,
	}
	applyOptions(task, options)
	return task
}

// WithTransform sets a transformer applied to every joined record.
func (jt *JoinTask) WithTransform(t core.Transformer) *JoinTask {
	jt.transform = t
	return jt
}

func (jt *JoinTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	if len(jt.dependencies) != 2 {
		return TaskOutput{}, fmt.Errorf("join task requires exactly 2 dependencies, got %d", len(jt.dependencies))
	}
	if len(jt.config.LeftKeys) == 0 || len(jt.config.LeftKeys) != len(jt.config.RightKeys) {
		return TaskOutput{}, fmt.Errorf("join task %s: left and right keys must be non-empty and of equal length", jt.id)
	}

	left := input.SourceMap[jt.dependencies[0]]
	right := input.SourceMap[jt.dependencies[1]]

	joined, err := jt.performJoin(ctx, left, right)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("join operation failed: %w", err)
	}

	if jt.transform != nil {
		if joined, err = transformAll(ctx, jt.transform, joined); err != nil {
			return TaskOutput{}, err
		}
	}

	return TaskOutput{
		Records:  joined,
		Metadata: jt.result(start, len(left)+len(right), len(joined)),
	}, nil
}

// performJoin implements the join using a hash index over the right side.
// Rows with a nil key field never match.
func (jt *JoinTask) performJoin(ctx context.Context, left, right []core.Record) ([]core.Record, error) {
	index := make(map[string][]core.Record, len(right))
	for _, record := range right {
		if hasNilKey(record, jt.config.RightKeys) {
			continue
		}
		key := record.Key(jt.config.RightKeys...)
		index[key] = append(index[key], record)
	}

	var result []core.Record
	for i, record := range left {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var matches []core.Record
		if !hasNilKey(record, jt.config.LeftKeys) {
			matches = index[record.Key(jt.config.LeftKeys...)]
		}

		if len(matches) == 0 {
			if jt.config.JoinType == LeftJoin {
				result = append(result, jt.mergeRecords(record, nil))
			}
			continue
		}
		for _, match := range matches {
			result = append(result, jt.mergeRecords(record, match))
		}
	}
	return result, nil
}

func hasNilKey(record core.Record, keys []string) bool {
	for _, k := range keys {
		if record[k] == nil {
			return true
		}
	}
	return false
}

// mergeRecords combines a left record with a right record, or with nil
// right-side fields for unmatched left rows.
func (jt *JoinTask) mergeRecords(left, right core.Record) core.Record {
	result := left.Clone()

	if jt.config.RightFields != nil {
		for from, to := range jt.config.RightFields {
			if right == nil {
				result[to] = nil
				continue
			}
			result[to] = right[from]
		}
		return result
	}

	for key, value := range right {
		name := key
		if _, exists := left[key]; exists {
			name = "right_" + key
		}
		result[name] = value
	}
	return result
}
