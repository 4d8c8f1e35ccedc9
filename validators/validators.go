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

// validators.go - table quality checks run before a table is persisted
package validators

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// ValidationError reports the first rule a table violated.
type ValidationError struct {
	Table string // Table being validated
	Rule  string // Rule that failed (e.g., "min_records", "unique_key", "required")
	Row   int    // Offending row index, -1 for table-level rules
	Err   error  // Details
}

func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("validate %s %s: %v", e.Table, e.Rule, e.Err)
	}
	return fmt.Sprintf("validate %s %s row %d: %v", e.Table, e.Rule, e.Row, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TableValidator checks a materialised table before it is written.
// Zero-valued rules are skipped.
type TableValidator struct {
	Table          string      // Name used in errors
	MinRecords     int         // Minimum number of records required
	RequiredFields []string    // Fields that must be non-nil in every record
	UniqueKey      []string    // Fields whose combined value must be unique
	Schema         core.Schema // If set, every value must carry its column's Go type
}

// Validate returns a *ValidationError for the first violated rule.
func (v *TableValidator) Validate(ctx context.Context, records []core.Record) error {
	if len(records) < v.MinRecords {
		return &ValidationError{
			Table: v.Table, Rule: "min_records", Row: -1,
			Err: fmt.Errorf("insufficient records: got %d, need at least %d", len(records), v.MinRecords),
		}
	}

	var seen map[string]int
	if len(v.UniqueKey) > 0 {
		seen = make(map[string]int, len(records))
	}

	for i, record := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		for _, field := range v.RequiredFields {
			if record[field] == nil {
				return &ValidationError{Table: v.Table, Rule: "required", Row: i, Err: fmt.Errorf("field %s is null", field)}
			}
		}

		for _, col := range v.Schema {
			if err := checkType(col, record[col.Name]); err != nil {
				return &ValidationError{Table: v.Table, Rule: "type", Row: i, Err: err}
			}
		}

		if seen != nil {
			key := record.Key(v.UniqueKey...)
			if first, dup := seen[key]; dup {
				return &ValidationError{
					Table: v.Table, Rule: "unique_key", Row: i,
					Err: fmt.Errorf("key %v duplicates row %d", record.Project(v.UniqueKey...), first),
				}
			}
			seen[key] = i
		}
	}
	return nil
}

func checkType(col core.Column, value interface{}) error {
	if value == nil {
		return nil
	}
	ok := false
	switch col.Type {
	case core.TypeString:
		_, ok = value.(string)
	case core.TypeInt32:
		_, ok = value.(int32)
	case core.TypeInt64:
		_, ok = value.(int64)
	case core.TypeFloat64:
		_, ok = value.(float64)
	case core.TypeBool:
		_, ok = value.(bool)
	case core.TypeTimestamp:
		_, ok = value.(time.Time)
	}
	if !ok {
		return fmt.Errorf("field %s: expected %s, got %T", col.Name, col.Type, value)
	}
	return nil
}
