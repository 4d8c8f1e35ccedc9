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

package aggregate

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/sparkify/core"
)

// measure folds the records of one group into a single value.
type measure interface {
	add(record core.Record) error
	value() interface{}
}

// GroupBy implements grouping and aggregation operations. Groups are emitted
// in order of first appearance, each carrying its key fields and one output
// field per measure.
type GroupBy struct {
	groupFields []string
	outputs     []string
	factories   []func() measure
	order       []string
	groups      map[string]*group
}

type group struct {
	key      core.Record
	measures []measure
}

// NewGroupBy creates a new GroupBy aggregator
func NewGroupBy(groupFields ...string) *GroupBy {
	return &GroupBy{
		groupFields: append([]string(nil), groupFields...),
		groups:      make(map[string]*group),
	}
}

func (g *GroupBy) with(outputField string, factory func() measure) *GroupBy {
	g.outputs = append(g.outputs, outputField)
	g.factories = append(g.factories, factory)
	return g
}

// Count adds a count of the group's records as outputField.
func (g *GroupBy) Count(outputField string) *GroupBy {
	return g.with(outputField, func() measure { return &countMeasure{} })
}

// Min adds the smallest non-nil value of field as outputField.
func (g *GroupBy) Min(field, outputField string) *GroupBy {
	return g.with(outputField, func() measure { return &extremeMeasure{field: field, sign: -1} })
}

// Max adds the greatest non-nil value of field as outputField.
func (g *GroupBy) Max(field, outputField string) *GroupBy {
	return g.with(outputField, func() measure { return &extremeMeasure{field: field, sign: 1} })
}

// Add implements Aggregator.
func (g *GroupBy) Add(ctx context.Context, record core.Record) error {
	key := record.Key(g.groupFields...)
	grp, ok := g.groups[key]
	if !ok {
		grp = &group{key: record.Project(g.groupFields...)}
		for _, f := range g.factories {
			grp.measures = append(grp.measures, f())
		}
		g.groups[key] = grp
		g.order = append(g.order, key)
	}

	for i, m := range grp.measures {
		if err := m.add(record); err != nil {
			return fmt.Errorf("aggregate %s: %w", g.outputs[i], err)
		}
	}
	return nil
}

// Results implements Aggregator.
func (g *GroupBy) Results() ([]core.Record, error) {
	results := make([]core.Record, 0, len(g.order))
	for _, key := range g.order {
		grp := g.groups[key]
		result := grp.key.Clone()
		for i, m := range grp.measures {
			result[g.outputs[i]] = m.value()
		}
		results = append(results, result)
	}
	return results, nil
}

// Reset implements Aggregator.
func (g *GroupBy) Reset() {
	g.order = nil
	g.groups = make(map[string]*group)
}

type countMeasure struct {
	count int64
}

func (c *countMeasure) add(core.Record) error { c.count++; return nil }
func (c *countMeasure) value() interface{}    { return c.count }

// extremeMeasure keeps the minimum (sign -1) or maximum (sign 1).
type extremeMeasure struct {
	field string
	sign  int
	best  interface{}
}

func (m *extremeMeasure) add(record core.Record) error {
	v := record[m.field]
	if v == nil {
		return nil
	}
	if m.best == nil {
		m.best = v
		return nil
	}
	c, err := compareValues(v, m.best)
	if err != nil {
		return err
	}
	if c*m.sign > 0 {
		m.best = v
	}
	return nil
}

func (m *extremeMeasure) value() interface{} { return m.best }
