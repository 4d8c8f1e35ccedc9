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

package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/sparkify/dag/tasks"
)

// GetTasks returns all tasks in the DAG
func (d *DAG) GetTasks() map[string]tasks.Task {
	return d.tasks
}

// GetTask returns the task with the given ID.
func (d *DAG) GetTask(taskID string) (tasks.Task, bool) {
	t, ok := d.tasks[taskID]
	return t, ok
}

// GetDependencies returns the dependencies for a specific task
func (d *DAG) GetDependencies(taskID string) []string {
	if deps, exists := d.dependencies[taskID]; exists {
		return deps
	}
	return []string{}
}

// GetTaskCount returns the total number of tasks
func (d *DAG) GetTaskCount() int {
	return len(d.tasks)
}

// HasTask checks if a task exists in the DAG
func (d *DAG) HasTask(taskID string) bool {
	_, exists := d.tasks[taskID]
	return exists
}

// GetDownstreamTasks returns all tasks that depend on this task, sorted.
func (d *DAG) GetDownstreamTasks(taskID string) []string {
	var downstream []string
	for id, deps := range d.dependencies {
		for _, dep := range deps {
			if dep == taskID {
				downstream = append(downstream, id)
				break
			}
		}
	}
	sort.Strings(downstream)
	return downstream
}

// GetMetadata returns the DAG's metadata
func (d *DAG) GetMetadata() DAGMetadata {
	return d.metadata
}

// GetID returns the DAG's unique identifier
func (d *DAG) GetID() string {
	return d.id
}

// GetName returns the DAG's name
func (d *DAG) GetName() string {
	return d.name
}

// GetExecutionOrder returns tasks in topological execution order
func (d *DAG) GetExecutionOrder() ([]string, error) {
	return d.topologicalSort()
}

// Describe renders the DAG structure, one task per line in execution order.
func (d *DAG) Describe() string {
	order, err := d.topologicalSort()
	if err != nil {
		order = append([]string(nil), d.order...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DAG: %s (%s)", d.name, d.id)
	if d.metadata.Description != "" {
		fmt.Fprintf(&b, " - %s", d.metadata.Description)
	}
	b.WriteByte('\n')
	for _, id := range order {
		fmt.Fprintf(&b, "  %s [%s]", id, d.tasks[id].Metadata().TaskType)
		if deps := d.GetDependencies(id); len(deps) > 0 {
			fmt.Fprintf(&b, " <- %s", strings.Join(deps, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// topologicalSort orders tasks with Kahn's algorithm. Among tasks that are
// ready at the same time, insertion order wins, so the result is stable.
func (d *DAG) topologicalSort() ([]string, error) {
	position := make(map[string]int, len(d.order))
	for i, id := range d.order {
		position[id] = i
	}

	inDegree := make(map[string]int, len(d.tasks))
	for _, id := range d.order {
		inDegree[id] = len(d.dependencies[id])
	}

	var ready []string
	for _, id := range d.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]string, 0, len(d.tasks))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		for _, dependent := range d.GetDownstreamTasks(current) {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Slice(ready, func(i, j int) bool {
					return position[ready[i]] < position[ready[j]]
				})
			}
		}
	}

	if len(result) != len(d.tasks) {
		var stuck []string
		for _, id := range d.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: involving %s", ErrCycle, strings.Join(stuck, ", "))
	}

	return result, nil
}
