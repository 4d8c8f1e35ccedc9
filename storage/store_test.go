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

package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Location
		wantErr bool
	}{
		{
			name: "s3a bucket root",
			uri:  "s3a://udacity-dend/",
			want: Location{Scheme: "s3a", Bucket: "udacity-dend"},
		},
		{
			name: "s3 with prefix",
			uri:  "s3://sparkifyds/output",
			want: Location{Scheme: "s3", Bucket: "sparkifyds", Prefix: "output/"},
		},
		{
			name: "s3n nested prefix keeps slash",
			uri:  "s3n://bucket/a/b/",
			want: Location{Scheme: "s3n", Bucket: "bucket", Prefix: "a/b/"},
		},
		{
			name: "file uri",
			uri:  "file:///tmp/lake",
			want: Location{Scheme: "file", Path: "/tmp/lake"},
		},
		{
			name: "bare path",
			uri:  "data/out/",
			want: Location{Scheme: "file", Path: "data/out"},
		},
		{name: "missing bucket", uri: "s3://", wantErr: true},
		{name: "unsupported scheme", uri: "gs://bucket/x", wantErr: true},
		{name: "empty", uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocation(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinKeyAndDirPrefix(t *testing.T) {
	assert.Equal(t, "songs/year=2000/part-0.parquet", JoinKey("songs/", "", "/year=2000/", "part-0.parquet"))
	assert.Equal(t, "", JoinKey("", "/"))
	assert.Equal(t, "songs/", DirPrefix("/songs"))
	assert.Equal(t, "", DirPrefix(""))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "songs/year=2000/b.parquet", strings.NewReader("bbb")))
	require.NoError(t, store.Put(ctx, "songs/year=1999/a.parquet", strings.NewReader("a")))
	require.NoError(t, store.Put(ctx, "songs_extra/x", strings.NewReader("x")))
	require.NoError(t, store.Put(ctx, "artists/part-0.parquet", strings.NewReader("art")))

	objects, err := store.List(ctx, "songs/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "songs/year=1999/a.parquet", objects[0].Key)
	assert.Equal(t, "songs/year=2000/b.parquet", objects[1].Key)
	assert.Equal(t, int64(3), objects[1].Size)

	// Without the trailing slash, siblings sharing the prefix match too.
	objects, err = store.List(ctx, "songs")
	require.NoError(t, err)
	assert.Len(t, objects, 3)

	rc, err := store.Open(ctx, "artists/part-0.parquet")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "art", string(body))

	ok, err := store.Exists(ctx, "songs/")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeletePrefix(ctx, "songs/"))
	ok, err = store.Exists(ctx, "songs/")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "songs_extra/")
	require.NoError(t, err)
	assert.True(t, ok, "sibling directory must survive")
}

func TestLocalStoreMissingPrefix(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	objects, err := store.List(ctx, "nothing/here/")
	require.NoError(t, err)
	assert.Empty(t, objects)

	ok, err := store.Exists(ctx, "nothing/")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, "nothing/file.json")
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "open", serr.Op)

	assert.NoError(t, store.DeletePrefix(ctx, "nothing/"))
}

func TestLocalStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "users/_SUCCESS", strings.NewReader("first")))
	require.NoError(t, store.Put(ctx, "users/_SUCCESS", strings.NewReader("")))

	objects, err := store.List(ctx, "users/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, int64(0), objects[0].Size)
	assert.True(t, strings.HasPrefix(store.URI("users/_SUCCESS"), "file://"))
}

func TestNewSelectsStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(context.Background(), dir, S3Options{})
	require.NoError(t, err)
	_, isLocal := store.(*LocalStore)
	assert.True(t, isLocal)

	_, err = New(context.Background(), "ftp://host/x", S3Options{})
	assert.Error(t, err)
}
