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

package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the logical type of a column, independent of the storage format.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeBool
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column describes a single named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered list of columns.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the column with the given name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Without returns the schema minus the named columns, preserving order.
func (s Schema) Without(names ...string) Schema {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make(Schema, 0, len(s))
	for _, c := range s {
		if !drop[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Conform projects a record onto the schema and coerces every value to its
// column type. Missing fields become nil.
func (s Schema) Conform(record Record) (Record, error) {
	out := make(Record, len(s))
	for _, c := range s {
		v, err := Coerce(c, record[c.Name])
		if err != nil {
			return nil, err
		}
		out[c.Name] = v
	}
	return out, nil
}

// Coerce converts value to the Go representation of the column's type:
// string, int32, int64, float64, bool or time.Time (UTC). Nil stays nil and
// empty strings become nil for non-string columns.
func Coerce(col Column, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	fail := func(err error) (interface{}, error) {
		return nil, &CoercionError{Column: col.Name, Type: col.Type, Value: value, Err: err}
	}

	switch col.Type {
	case TypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case int32:
			return strconv.FormatInt(int64(v), 10), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case bool:
			return strconv.FormatBool(v), nil
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano), nil
		}
	case TypeInt64:
		n, ok, err := toInt64(value)
		if err != nil {
			return fail(err)
		}
		if ok {
			return n, nil
		}
		if s, isStr := value.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, nil
		}
	case TypeInt32:
		n, ok, err := toInt64(value)
		if err != nil {
			return fail(err)
		}
		if ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return fail(fmt.Errorf("value out of int32 range"))
			}
			return int32(n), nil
		}
		if s, isStr := value.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, nil
		}
	case TypeFloat64:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return fail(err)
			}
			return f, nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fail(err)
			}
			return f, nil
		}
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, nil
			}
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fail(err)
			}
			return b, nil
		}
	case TypeTimestamp:
		if t, ok := value.(time.Time); ok {
			return t.UTC(), nil
		}
	}
	return fail(nil)
}

// toInt64 reports ok=false when value is not a numeric kind it understands.
func toInt64(value interface{}) (int64, bool, error) {
	switch v := value.(type) {
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("non-integral value %v", v)
		}
		return int64(v), true, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false, err
		}
		if f != math.Trunc(f) {
			return 0, false, fmt.Errorf("non-integral value %v", f)
		}
		return int64(f), true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	}
	return 0, false, nil
}
