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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/core"
)

func TestStartTime(t *testing.T) {
	got, err := StartTime(int64(1541122676796))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 11, 2, 1, 37, 56, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	_, err = StartTime("1541122676796")
	assert.Error(t, err)
	_, err = StartTime(nil)
	assert.Error(t, err)
}

func TestTimeRow(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  core.Record
	}{
		{
			name:  "first of november",
			start: time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC),
			want: core.Record{
				"start_time": time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC),
				"hour":       int32(0), "day": int32(1), "week": int32(44),
				"month": int32(11), "year": int32(2018), "weekday": int32(5),
			},
		},
		{
			name:  "sunday",
			start: time.Date(2018, 11, 4, 23, 59, 59, 0, time.UTC),
			want: core.Record{
				"start_time": time.Date(2018, 11, 4, 23, 59, 59, 0, time.UTC),
				"hour":       int32(23), "day": int32(4), "week": int32(44),
				"month": int32(11), "year": int32(2018), "weekday": int32(1),
			},
		},
		{
			name:  "iso week belongs to next year",
			start: time.Date(2018, 12, 31, 12, 0, 0, 0, time.UTC),
			want: core.Record{
				"start_time": time.Date(2018, 12, 31, 12, 0, 0, 0, time.UTC),
				"hour":       int32(12), "day": int32(31), "week": int32(1),
				"month": int32(12), "year": int32(2018), "weekday": int32(2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeRow(tt.start))
		})
	}
}

func TestTimeRowNormalizesZone(t *testing.T) {
	local := time.Date(2018, 11, 1, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))
	row := TimeRow(local)
	assert.Equal(t, int32(1), row["hour"])
	assert.Equal(t, int32(2), row["day"])
}
