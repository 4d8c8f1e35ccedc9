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

package writers

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/readers"
	"github.com/aaronlmathis/sparkify/storage"
)

var songSchema = core.Schema{
	{Name: "song_id", Type: core.TypeString},
	{Name: "title", Type: core.TypeString},
	{Name: "artist_id", Type: core.TypeString},
	{Name: "year", Type: core.TypeInt32},
	{Name: "duration", Type: core.TypeFloat64},
}

func keys(t *testing.T, store storage.Store, prefix string) []string {
	t.Helper()
	objects, err := store.List(context.Background(), prefix)
	require.NoError(t, err)
	out := make([]string, len(objects))
	for i, o := range objects {
		out[i] = o.Key
	}
	return out
}

func writeSongs(t *testing.T, store storage.Store, runID string, records ...core.Record) *PartitionedWriter {
	t.Helper()
	ctx := context.Background()
	w, err := NewPartitionedWriter(ctx, store, "songs", songSchema,
		WithPartitionBy("year", "artist_id"),
		WithOverwrite(true),
		WithRunID(runID),
		WithUploadConcurrency(2),
	)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(ctx, r))
	}
	return w
}

func TestPartitionedWriter_Layout(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	w := writeSongs(t, store, "run1",
		core.Record{"song_id": "S1", "title": "Test Song", "artist_id": "A1", "year": int32(2018), "duration": 200.5},
		core.Record{"song_id": "S2", "title": "Old", "artist_id": "A/2", "year": int32(0), "duration": 100.0},
		core.Record{"song_id": "S3", "title": "Other", "artist_id": "A1", "year": int32(2018), "duration": nil},
	)
	require.NoError(t, w.Close())

	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/_manifest.json",
		"songs/year=0/artist_id=A%2F2/part-00000-run1.snappy.parquet",
		"songs/year=2018/artist_id=A1/part-00001-run1.snappy.parquet",
	}, keys(t, store, "songs/"))

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Equal(t, 2, stats.Partitions)
	assert.Equal(t, 2, stats.FilesWritten)
	assert.Greater(t, stats.BytesWritten, int64(0))

	r, err := readers.NewDatasetReader(context.Background(), store, "songs", songSchema)
	require.NoError(t, err)
	require.Len(t, r.Files(), 2)

	var got []core.Record
	for {
		rec, err := r.Read(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.NoError(t, r.Close())

	assert.ElementsMatch(t, []core.Record{
		{"song_id": "S1", "title": "Test Song", "artist_id": "A1", "year": int32(2018), "duration": 200.5},
		{"song_id": "S2", "title": "Old", "artist_id": "A/2", "year": int32(0), "duration": 100.0},
		{"song_id": "S3", "title": "Other", "artist_id": "A1", "year": int32(2018), "duration": nil},
	}, got)
}

func TestPartitionedWriter_NullPartition(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	w := writeSongs(t, store, "run1", core.Record{"song_id": "S1", "artist_id": nil, "year": int32(1999)})
	require.NoError(t, w.Close())
	assert.Contains(t, keys(t, store, "songs/"),
		"songs/year=1999/artist_id="+storage.DefaultPartition+"/part-00000-run1.snappy.parquet")
}

func TestPartitionedWriter_OverwriteReplacesTable(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	first := writeSongs(t, store, "run1", core.Record{"song_id": "S1", "artist_id": "A1", "year": int32(2018)})
	require.NoError(t, first.Close())
	second := writeSongs(t, store, "run2", core.Record{"song_id": "S9", "artist_id": "A9", "year": int32(2001)})
	require.NoError(t, second.Close())

	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/_manifest.json",
		"songs/year=2001/artist_id=A9/part-00000-run2.snappy.parquet",
	}, keys(t, store, "songs/"))
}

func TestPartitionedWriter_AbortKeepsPreviousTable(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	first := writeSongs(t, store, "run1", core.Record{"song_id": "S1", "artist_id": "A1", "year": int32(2018)})
	require.NoError(t, first.Close())
	before := keys(t, store, "songs/")

	second := writeSongs(t, store, "run2", core.Record{"song_id": "S9", "artist_id": "A9", "year": int32(2001)})
	require.NoError(t, second.Abort())
	require.NoError(t, second.Close())

	assert.Equal(t, before, keys(t, store, "songs/"))
	assert.Error(t, second.Write(context.Background(), core.Record{}))
}

func TestNewPartitionedWriter_Validation(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = NewPartitionedWriter(ctx, store, "", songSchema)
	assert.Error(t, err)

	_, err = NewPartitionedWriter(ctx, store, "songs", songSchema, WithPartitionBy("genre"))
	assert.Error(t, err)

	_, err = NewPartitionedWriter(ctx, store, "one", core.Schema{{Name: "year", Type: core.TypeInt32}}, WithPartitionBy("year"))
	assert.Error(t, err)
}
