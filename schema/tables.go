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

// Package schema declares the datasets the job reads and the star-schema
// tables it writes.
package schema

import (
	"github.com/aaronlmathis/sparkify/core"
)

// Input describes a raw JSON dataset under the input root.
type Input struct {
	Name    string
	Prefix  string      // Key prefix relative to the input root
	Pattern string      // Glob matched against keys relative to Prefix; "*" never crosses "/"
	Schema  core.Schema // Typed view of the fields the job uses
}

// Table describes an output table.
type Table struct {
	Name        string
	Dir         string // Directory relative to the output root
	Schema      core.Schema
	PartitionBy []string
	Key         []string // Unique key, empty when the table has none
}

// DataSchema returns the columns stored in the table's data files.
func (t Table) DataSchema() core.Schema {
	return t.Schema.Without(t.PartitionBy...)
}

var (
	SongData = Input{
		Name:    "song_data",
		Prefix:  "song_data/",
		Pattern: "*/*/*/*.json",
		Schema: core.Schema{
			{Name: "song_id", Type: core.TypeString},
			{Name: "title", Type: core.TypeString},
			{Name: "artist_id", Type: core.TypeString},
			{Name: "artist_name", Type: core.TypeString},
			{Name: "artist_location", Type: core.TypeString},
			{Name: "artist_latitude", Type: core.TypeFloat64},
			{Name: "artist_longitude", Type: core.TypeFloat64},
			{Name: "year", Type: core.TypeInt64},
			{Name: "duration", Type: core.TypeFloat64},
			{Name: "num_songs", Type: core.TypeInt64},
		},
	}

	LogData = Input{
		Name:    "log_data",
		Prefix:  "log_data/",
		Pattern: "*/*/*.json",
		Schema: core.Schema{
			{Name: "artist", Type: core.TypeString},
			{Name: "auth", Type: core.TypeString},
			{Name: "firstName", Type: core.TypeString},
			{Name: "gender", Type: core.TypeString},
			{Name: "itemInSession", Type: core.TypeInt64},
			{Name: "lastName", Type: core.TypeString},
			{Name: "length", Type: core.TypeFloat64},
			{Name: "level", Type: core.TypeString},
			{Name: "location", Type: core.TypeString},
			{Name: "method", Type: core.TypeString},
			{Name: "page", Type: core.TypeString},
			{Name: "registration", Type: core.TypeFloat64},
			{Name: "sessionId", Type: core.TypeInt64},
			{Name: "song", Type: core.TypeString},
			{Name: "status", Type: core.TypeInt64},
			{Name: "ts", Type: core.TypeInt64},
			{Name: "userAgent", Type: core.TypeString},
			{Name: "userId", Type: core.TypeString},
		},
	}
)

var (
	Songs = Table{
		Name: "songs",
		Dir:  "songs",
		Schema: core.Schema{
			{Name: "song_id", Type: core.TypeString},
			{Name: "title", Type: core.TypeString},
			{Name: "artist_id", Type: core.TypeString},
			{Name: "year", Type: core.TypeInt64},
			{Name: "duration", Type: core.TypeFloat64},
		},
		PartitionBy: []string{"year", "artist_id"},
		Key:         []string{"song_id"},
	}

	Artists = Table{
		Name: "artists",
		Dir:  "artists",
		Schema: core.Schema{
			{Name: "artist_id", Type: core.TypeString},
			{Name: "name", Type: core.TypeString},
			{Name: "location", Type: core.TypeString},
			{Name: "latitude", Type: core.TypeFloat64},
			{Name: "longitude", Type: core.TypeFloat64},
		},
		Key: []string{"artist_id"},
	}

	Users = Table{
		Name: "users",
		Dir:  "users",
		Schema: core.Schema{
			{Name: "userId", Type: core.TypeString},
			{Name: "firstName", Type: core.TypeString},
			{Name: "lastName", Type: core.TypeString},
			{Name: "gender", Type: core.TypeString},
			{Name: "level", Type: core.TypeString},
		},
		Key: []string{"userId"},
	}

	Time = Table{
		Name: "time",
		Dir:  "time_table",
		Schema: core.Schema{
			{Name: "start_time", Type: core.TypeTimestamp},
			{Name: "hour", Type: core.TypeInt32},
			{Name: "day", Type: core.TypeInt32},
			{Name: "week", Type: core.TypeInt32},
			{Name: "month", Type: core.TypeInt32},
			{Name: "year", Type: core.TypeInt32},
			{Name: "weekday", Type: core.TypeInt32},
		},
		PartitionBy: []string{"year", "month"},
		Key:         []string{"start_time"},
	}

	Songplays = Table{
		Name: "songplays",
		Dir:  "songplays",
		Schema: core.Schema{
			{Name: "songplay_id", Type: core.TypeInt64},
			{Name: "start_time", Type: core.TypeTimestamp},
			{Name: "userId", Type: core.TypeString},
			{Name: "level", Type: core.TypeString},
			{Name: "song_id", Type: core.TypeString},
			{Name: "artist_id", Type: core.TypeString},
			{Name: "sessionId", Type: core.TypeInt64},
			{Name: "location", Type: core.TypeString},
			{Name: "userAgent", Type: core.TypeString},
			{Name: "year", Type: core.TypeInt32},
			{Name: "month", Type: core.TypeInt32},
		},
		PartitionBy: []string{"year", "month"},
		Key:         []string{"songplay_id"},
	}
)

// Tables lists every output table in write order.
var Tables = []Table{Songs, Artists, Users, Time, Songplays}

// Lookup returns the output table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
