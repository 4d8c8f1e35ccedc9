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
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/dag/tasks"
	"github.com/aaronlmathis/sparkify/filter"
	"github.com/aaronlmathis/sparkify/schema"
	"github.com/aaronlmathis/sparkify/transform"
)

// nextSong keeps only song play events.
func nextSong() core.Filter {
	return filter.Equals("page", "NextSong")
}

// events types a raw log record and stamps its start_time.
func events() core.Transformer {
	return transform.Chain(
		transform.Conform(schema.LogData.Schema),
		transform.AddField("start_time", func(r core.Record) (interface{}, error) {
			return StartTime(r["ts"])
		}),
	)
}

// usersTask keeps the most recent row for each userId, so a user's level is
// the one of their latest event.
func usersTask(dependency string) *tasks.AggregateTask {
	return tasks.NewAggregateTask(schema.Users.Name,
		aggregate.NewDistinct(aggregate.KeepLastBy("ts"), schema.Users.Key...),
		[]string{dependency},
		tasks.WithDescription("users dimension, latest row per userId"),
	).WithFinish(transform.Conform(schema.Users.Schema))
}

// timeTask breaks every distinct start_time into calendar fields.
func timeTask(dependency string) *tasks.AggregateTask {
	return tasks.NewAggregateTask(schema.Time.Name,
		aggregate.NewDistinct(aggregate.KeepFirst(), schema.Time.Key...),
		[]string{dependency},
		tasks.WithDescription("time dimension, one row per start_time"),
	).WithPrepare(core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		start, ok := r["start_time"].(time.Time)
		if !ok {
			return nil, fmt.Errorf("time row: start_time is %T, not a timestamp", r["start_time"])
		}
		return TimeRow(start), nil
	}))
}

// songMatchesTask joins play events to songs on the exact song title.
func songMatchesTask(id, events, songs string) *tasks.JoinTask {
	return tasks.NewJoinTask(id, tasks.JoinConfig{
		JoinType:  tasks.InnerJoin,
		LeftKeys:  []string{"song"},
		RightKeys: []string{"title"},
		RightFields: map[string]string{
			"song_id":   "song_id",
			"artist_id": "artist_id",
		},
	}, []string{events, songs},
		tasks.WithDescription("match events to songs by title"),
	)
}

// songplaysTask attaches the time table's year and month to each keyed play
// and projects the songplays columns.
func songplaysTask(keyed, timeTable string) *tasks.JoinTask {
	return tasks.NewJoinTask(schema.Songplays.Name, tasks.JoinConfig{
		JoinType:  tasks.InnerJoin,
		LeftKeys:  []string{"start_time"},
		RightKeys: []string{"start_time"},
		RightFields: map[string]string{
			"year":  "year",
			"month": "month",
		},
	}, []string{keyed, timeTable},
		tasks.WithDescription("songplays fact, partitioned by year and month"),
	).WithTransform(transform.Conform(schema.Songplays.Schema))
}

// levelSummary counts songplays per subscription level with the first and
// last play time of each.
func levelSummary() *aggregate.GroupBy {
	return aggregate.NewGroupBy("level").
		Count("plays").
		Min("start_time", "first_play").
		Max("start_time", "last_play")
}
