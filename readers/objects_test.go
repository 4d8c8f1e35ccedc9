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

package readers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/storage"
)

func seedStore(t *testing.T, objects map[string]string) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	for key, body := range objects {
		require.NoError(t, store.Put(context.Background(), key, strings.NewReader(body)))
	}
	return store
}

func TestObjectReader_GlobAndOrder(t *testing.T) {
	store := seedStore(t, map[string]string{
		"song_data/A/B/C/TRABCEI.json": `{"song_id":"S2"}`,
		"song_data/A/A/B/TRAABJL.json": `{"song_id":"S1"}`,
		"song_data/A/A/notes.txt":      `ignored`,
		"song_data/A/A/B/deep/x.json":  `{"song_id":"too deep"}`,
		"log_data/2018/11/events.json": `{"page":"NextSong"}`,
	})

	r, err := NewObjectReader(context.Background(), store,
		WithObjectPrefix("song_data/"),
		WithObjectPattern("*/*/*/*.json"),
	)
	require.NoError(t, err)
	require.Len(t, r.Objects(), 2)

	records, err := drain(t, r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.Len(t, records, 2)
	assert.Equal(t, "S1", records[0]["song_id"])
	assert.Equal(t, "S2", records[1]["song_id"])

	stats := r.Stats()
	assert.Equal(t, int64(2), stats.ObjectsListed)
	assert.Equal(t, int64(2), stats.ObjectsRead)
	assert.Equal(t, int64(2), stats.RecordsRead)
	assert.Len(t, stats.ProcessedFiles, 2)
}

func TestObjectReader_NoMatches(t *testing.T) {
	store := seedStore(t, nil)
	r, err := NewObjectReader(context.Background(), store, WithObjectPrefix("log_data/"), WithObjectPattern("*/*/*.json"))
	require.NoError(t, err)

	records, err := drain(t, r)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestObjectReader_MalformedObjectFails(t *testing.T) {
	store := seedStore(t, map[string]string{
		"log_data/2018/11/a.json": `{"page":"NextSong"}`,
		"log_data/2018/11/b.json": `{"page":`,
	})
	r, err := NewObjectReader(context.Background(), store, WithObjectPrefix("log_data/"), WithObjectPattern("*/*/*.json"))
	require.NoError(t, err)

	records, err := drain(t, r)
	assert.Len(t, records, 1)

	var jerr *JSONReaderError
	require.True(t, errors.As(err, &jerr))
	assert.True(t, strings.HasSuffix(jerr.Source, "log_data/2018/11/b.json"))
	r.Close()
}

func TestObjectReader_BadPattern(t *testing.T) {
	_, err := NewObjectReader(context.Background(), seedStore(t, nil), WithObjectPattern("["))
	assert.Error(t, err)
}
