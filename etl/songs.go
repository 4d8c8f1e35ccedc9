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
	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/dag/tasks"
	"github.com/aaronlmathis/sparkify/schema"
	"github.com/aaronlmathis/sparkify/transform"
)

// artistColumns maps song_data fields to artists columns.
var artistColumns = map[string]string{
	"artist_name":      "name",
	"artist_location":  "location",
	"artist_latitude":  "latitude",
	"artist_longitude": "longitude",
}

// songsTask projects song records onto the songs table, keeping the first
// row seen for each song_id.
func songsTask(dependency string) *tasks.AggregateTask {
	return tasks.NewAggregateTask(schema.Songs.Name,
		aggregate.NewDistinct(aggregate.KeepFirst(), schema.Songs.Key...),
		[]string{dependency},
		tasks.WithDescription("songs dimension, one row per song_id"),
	).WithPrepare(transform.Conform(schema.Songs.Schema))
}

// artistsTask projects song records onto the artists table, keeping the
// first row seen for each artist_id.
func artistsTask(dependency string) *tasks.AggregateTask {
	return tasks.NewAggregateTask(schema.Artists.Name,
		aggregate.NewDistinct(aggregate.KeepFirst(), schema.Artists.Key...),
		[]string{dependency},
		tasks.WithDescription("artists dimension, one row per artist_id"),
	).WithPrepare(transform.Chain(
		transform.Rename(artistColumns),
		transform.Conform(schema.Artists.Schema),
	))
}
