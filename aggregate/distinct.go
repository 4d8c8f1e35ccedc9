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
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// Policy picks the surviving row when two records share a key.
type Policy interface {
	// Replace reports whether candidate should replace current.
	Replace(current, candidate core.Record) (bool, error)
}

type keepFirst struct{}

func (keepFirst) Replace(current, candidate core.Record) (bool, error) {
	return false, nil
}

// KeepFirst keeps the first record seen for each key.
func KeepFirst() Policy {
	return keepFirst{}
}

type keepLastBy struct {
	field string
}

func (k keepLastBy) Replace(current, candidate core.Record) (bool, error) {
	c, err := compareValues(candidate[k.field], current[k.field])
	if err != nil {
		return false, fmt.Errorf("compare %s: %w", k.field, err)
	}
	// Ties go to the later record.
	return c >= 0, nil
}

// KeepLastBy keeps the record with the greatest value of field. Records with
// equal values resolve to the one seen last; nil orders before any value.
func KeepLastBy(field string) Policy {
	return keepLastBy{field: field}
}

// Distinct removes records sharing the same key fields, keeping one record
// per key as chosen by the policy. Results are in order of each key's first
// appearance, so the output is deterministic for a deterministic input.
type Distinct struct {
	keys   []string
	policy Policy
	order  []string
	rows   map[string]core.Record
	seen   int64
}

// NewDistinct creates a Distinct over the key fields.
func NewDistinct(policy Policy, keys ...string) *Distinct {
	if policy == nil {
		policy = KeepFirst()
	}
	return &Distinct{
		keys:   append([]string(nil), keys...),
		policy: policy,
		rows:   make(map[string]core.Record),
	}
}

// Add implements Aggregator.
func (d *Distinct) Add(ctx context.Context, record core.Record) error {
	d.seen++
	key := record.Key(d.keys...)

	current, ok := d.rows[key]
	if !ok {
		d.order = append(d.order, key)
		d.rows[key] = record
		return nil
	}

	replace, err := d.policy.Replace(current, record)
	if err != nil {
		return err
	}
	if replace {
		d.rows[key] = record
	}
	return nil
}

// Results implements Aggregator.
func (d *Distinct) Results() ([]core.Record, error) {
	out := make([]core.Record, len(d.order))
	for i, key := range d.order {
		out[i] = d.rows[key]
	}
	return out, nil
}

// Duplicates returns how many input records were dropped.
func (d *Distinct) Duplicates() int64 {
	return d.seen - int64(len(d.order))
}

// Reset implements Aggregator.
func (d *Distinct) Reset() {
	d.order = nil
	d.rows = make(map[string]core.Record)
	d.seen = 0
}

// compareValues orders two values of the same kind. Numbers of any width
// compare numerically.
func compareValues(a, b interface{}) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return ta.Compare(tb), nil
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		}
		return 0, nil
	}

	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
