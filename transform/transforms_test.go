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

package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/core"
)

func TestRenameAndSelect(t *testing.T) {
	ctx := context.Background()
	in := core.Record{"artist_name": "Band", "artist_id": "A1", "song_id": "S1"}

	out, err := Chain(
		Rename(map[string]string{"artist_name": "name"}),
		Select("artist_id", "name", "location"),
	).Transform(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, core.Record{"artist_id": "A1", "name": "Band", "location": nil}, out)
	assert.Equal(t, "Band", in["artist_name"])
}

func TestAddFieldDoesNotMutateInput(t *testing.T) {
	in := core.Record{"ts": int64(1000)}
	out, err := AddField("seconds", func(r core.Record) (interface{}, error) {
		return r["ts"].(int64) / 1000, nil
	}).Transform(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, int64(1), out["seconds"])
	assert.NotContains(t, in, "seconds")
}

func TestAddFieldError(t *testing.T) {
	boom := errors.New("boom")
	_, err := AddField("x", func(core.Record) (interface{}, error) { return nil, boom }).
		Transform(context.Background(), core.Record{})
	assert.ErrorIs(t, err, boom)
}

func TestSequence(t *testing.T) {
	seq := Sequence("id", 0)
	for want := int64(0); want < 3; want++ {
		out, err := seq.Transform(context.Background(), core.Record{})
		require.NoError(t, err)
		assert.Equal(t, want, out["id"])
	}
}

func TestConform(t *testing.T) {
	schema := core.Schema{{Name: "user_id", Type: core.TypeString}, {Name: "ts", Type: core.TypeInt64}}
	out, err := Conform(schema).Transform(context.Background(), core.Record{"user_id": "10", "ts": float64(5), "x": 1})
	require.NoError(t, err)
	assert.Equal(t, core.Record{"user_id": "10", "ts": int64(5)}, out)

	_, err = Conform(schema).Transform(context.Background(), core.Record{"ts": "abc"})
	assert.Error(t, err)
}
