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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	ts := time.Date(2018, 11, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))

	tests := []struct {
		name  string
		col   Column
		value interface{}
		want  interface{}
	}{
		{"nil stays nil", Column{"a", TypeInt64}, nil, nil},
		{"json number to int64", Column{"a", TypeInt64}, json.Number("1541122676796"), int64(1541122676796)},
		{"integral float to int32", Column{"a", TypeInt32}, float64(2018), int32(2018)},
		{"numeric string to int64", Column{"a", TypeInt64}, "42", int64(42)},
		{"empty string to nil int", Column{"a", TypeInt32}, "", nil},
		{"json number to float", Column{"a", TypeFloat64}, json.Number("218.93179"), 218.93179},
		{"int to string", Column{"a", TypeString}, 10, "10"},
		{"json number to string", Column{"a", TypeString}, json.Number("39"), "39"},
		{"bool from string", Column{"a", TypeBool}, "true", true},
		{"timestamp to UTC", Column{"a", TypeTimestamp}, ts, ts.UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.col, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceErrors(t *testing.T) {
	_, err := Coerce(Column{"year", TypeInt32}, float64(1.5))
	var ce *CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "year", ce.Column)

	_, err = Coerce(Column{"year", TypeInt32}, int64(1)<<40)
	assert.Error(t, err)

	_, err = Coerce(Column{"ts", TypeTimestamp}, "2018-11-01")
	assert.Error(t, err)
}

func TestSchemaConform(t *testing.T) {
	s := Schema{{"song_id", TypeString}, {"year", TypeInt32}, {"duration", TypeFloat64}}

	got, err := s.Conform(Record{"song_id": "S1", "year": json.Number("0"), "extra": "dropped"})
	require.NoError(t, err)
	assert.Equal(t, Record{"song_id": "S1", "year": int32(0), "duration": nil}, got)

	assert.Equal(t, []string{"song_id", "duration"}, s.Without("year").Names())

	col, ok := s.Lookup("duration")
	assert.True(t, ok)
	assert.Equal(t, TypeFloat64, col.Type)
}

func TestRecordKey(t *testing.T) {
	utc := time.Date(2018, 11, 2, 1, 37, 56, 0, time.UTC)
	other := utc.In(time.FixedZone("x", -5*3600))

	assert.Equal(t, Record{"t": utc}.Key("t"), Record{"t": other}.Key("t"))
	assert.NotEqual(t, Record{"a": "1"}.Key("a"), Record{"a": int64(1)}.Key("a"))
	assert.NotEqual(t, Record{"a": "x", "b": "y"}.Key("a", "b"), Record{"a": "xy", "b": ""}.Key("a", "b"))
	assert.NotEqual(t, Record{"a": nil}.Key("a"), Record{"a": ""}.Key("a"))
}

func TestRecordCloneAndProject(t *testing.T) {
	r := Record{"a": 1, "b": 2}
	c := r.Clone()
	c["a"] = 9
	assert.Equal(t, 1, r["a"])

	assert.Equal(t, Record{"b": 2, "z": nil}, r.Project("b", "z"))
}
