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

package etl

import (
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/core"
)

// StartTime converts an event's epoch-millisecond ts to a UTC timestamp
// truncated to whole seconds.
func StartTime(ts interface{}) (time.Time, error) {
	ms, ok := ts.(int64)
	if !ok {
		return time.Time{}, fmt.Errorf("ts: expected int64 epoch milliseconds, got %T", ts)
	}
	return time.Unix(ms/1000, 0).UTC(), nil
}

// TimeRow derives the calendar breakdown of a start time. Weekday runs from
// 1 (Sunday) to 7 (Saturday) and week is the ISO-8601 week number.
func TimeRow(start time.Time) core.Record {
	t := start.UTC()
	_, week := t.ISOWeek()
	return core.Record{
		"start_time": t,
		"hour":       int32(t.Hour()),
		"day":        int32(t.Day()),
		"week":       int32(week),
		"month":      int32(t.Month()),
		"year":       int32(t.Year()),
		"weekday":    int32(t.Weekday()) + 1,
	}
}
