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

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/transform"
)

func joinInput(left, right []core.Record) TaskInput {
	return TaskInput{SourceMap: map[string][]core.Record{"left": left, "right": right}}
}

func TestJoinTask_InnerJoinOnTitle(t *testing.T) {
	events := []core.Record{
		{"song": "Test Song", "userId": "10"},
		{"song": "Unknown", "userId": "11"},
		{"song": "Shared", "userId": "12"},
		{"song": nil, "userId": "13"},
	}
	songs := []core.Record{
		{"title": "Test Song", "song_id": "S1", "artist_id": "A1", "year": int64(2000)},
		{"title": "Shared", "song_id": "S2", "artist_id": "A2"},
		{"title": "Shared", "song_id": "S3", "artist_id": "A3"},
	}

	task := NewJoinTask("matches", JoinConfig{
		LeftKeys:    []string{"song"},
		RightKeys:   []string{"title"},
		RightFields: map[string]string{"song_id": "song_id", "artist_id": "artist_id"},
	}, []string{"left", "right"})

	out, err := task.Execute(context.Background(), joinInput(events, songs))
	require.NoError(t, err)
	require.Len(t, out.Records, 3)

	assert.Equal(t, core.Record{"song": "Test Song", "userId": "10", "song_id": "S1", "artist_id": "A1"}, out.Records[0])
	assert.Equal(t, "S2", out.Records[1]["song_id"])
	assert.Equal(t, "S3", out.Records[2]["song_id"])
	assert.NotContains(t, out.Records[0], "year")

	assert.Equal(t, int64(7), out.Metadata.RecordsIn)
	assert.Equal(t, int64(3), out.Metadata.RecordsOut)

	// inputs are shared with sibling tasks and must not change
	assert.NotContains(t, events[0], "song_id")
}

func TestJoinTask_LeftJoinAndConflicts(t *testing.T) {
	left := []core.Record{{"k": 1, "v": "l1"}, {"k": 2, "v": "l2"}}
	right := []core.Record{{"k": 1, "v": "r1"}}

	task := NewJoinTask("j", JoinConfig{
		JoinType:  LeftJoin,
		LeftKeys:  []string{"k"},
		RightKeys: []string{"k"},
	}, []string{"left", "right"})

	out, err := task.Execute(context.Background(), joinInput(left, right))
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, core.Record{"k": 1, "v": "l1", "right_k": 1, "right_v": "r1"}, out.Records[0])
	assert.Equal(t, core.Record{"k": 2, "v": "l2"}, out.Records[1])
}

func TestJoinTask_TimestampKeysAndTransform(t *testing.T) {
	ts := time.Date(2018, 11, 2, 1, 37, 56, 0, time.UTC)
	left := []core.Record{{"start_time": ts, "songplay_id": int64(1)}}
	right := []core.Record{{"start_time": ts.In(time.FixedZone("X", 3600)), "year": int32(2018), "month": int32(11)}}

	task := NewJoinTask("songplays", JoinConfig{
		LeftKeys:    []string{"start_time"},
		RightKeys:   []string{"start_time"},
		RightFields: map[string]string{"year": "year", "month": "month"},
	}, []string{"left", "right"}).WithTransform(transform.Select("songplay_id", "year", "month"))

	out, err := task.Execute(context.Background(), joinInput(left, right))
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, core.Record{"songplay_id": int64(1), "year": int32(2018), "month": int32(11)}, out.Records[0])
}

func TestJoinTask_Misconfigured(t *testing.T) {
	task := NewJoinTask("j", JoinConfig{LeftKeys: []string{"a"}}, []string{"left", "right"})
	_, err := task.Execute(context.Background(), joinInput(nil, nil))
	require.Error(t, err)

	task = NewJoinTask("j", JoinConfig{LeftKeys: []string{"a"}, RightKeys: []string{"a"}}, []string{"left"})
	_, err = task.Execute(context.Background(), joinInput(nil, nil))
	require.Error(t, err)
}

func TestAggregateTask_PrepareAndFinish(t *testing.T) {
	input := TaskInput{Records: []core.Record{
		{"userId": "10", "level": "free", "ts": int64(1), "extra": "x"},
		{"userId": "10", "level": "paid", "ts": int64(5), "extra": "y"},
		{"userId": "11", "level": "free", "ts": int64(2), "extra": "z"},
	}}

	task := NewAggregateTask("users", aggregate.NewDistinct(aggregate.KeepLastBy("ts"), "userId"), nil).
		WithPrepare(transform.Select("userId", "level", "ts")).
		WithFinish(transform.Select("userId", "level"))

	out, err := task.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{"userId": "10", "level": "paid"},
		{"userId": "11", "level": "free"},
	}, out.Records)

	// a second run starts from a clean aggregator
	out, err = task.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, out.Records, 2)
}

func TestCheckTask(t *testing.T) {
	records := []core.Record{{"a": 1}}
	pass := NewCheckTask("ok", ValidatorFunc(func(ctx context.Context, rs []core.Record) error { return nil }), []string{"x"})
	out, err := pass.Execute(context.Background(), TaskInput{Records: records})
	require.NoError(t, err)
	assert.Equal(t, records, out.Records)

	bad := errors.New("bad")
	fail := NewCheckTask("bad", ValidatorFunc(func(ctx context.Context, rs []core.Record) error { return bad }), []string{"x"})
	_, err = fail.Execute(context.Background(), TaskInput{Records: records})
	assert.True(t, errors.Is(err, bad))
}

type abortSink struct {
	writes  int
	failAt  int
	aborted bool
	closed  bool
}

func (s *abortSink) Write(ctx context.Context, r core.Record) error {
	s.writes++
	if s.writes == s.failAt {
		return errors.New("write failed")
	}
	return nil
}
func (s *abortSink) Flush() error { return nil }
func (s *abortSink) Close() error { s.closed = true; return nil }
func (s *abortSink) Abort() error { s.aborted = true; return nil }

func TestSinkTask_AbortsOnWriteError(t *testing.T) {
	sink := &abortSink{failAt: 2}
	task := NewSinkTask("write", func(ctx context.Context) (core.DataSink, error) { return sink, nil }, []string{"x"})

	_, err := task.Execute(context.Background(), TaskInput{Records: []core.Record{{"a": 1}, {"a": 2}, {"a": 3}}})
	require.Error(t, err)
	assert.True(t, sink.aborted)
	assert.False(t, sink.closed)
}

func TestSinkTask_ClosesOnSuccess(t *testing.T) {
	sink := &abortSink{}
	task := NewSinkTask("write", func(ctx context.Context) (core.DataSink, error) { return sink, nil }, []string{"x"},
		WithDescription("write table"), WithTags("sink"), WithTimeout(time.Minute))

	out, err := task.Execute(context.Background(), TaskInput{Records: []core.Record{{"a": 1}}})
	require.NoError(t, err)
	assert.True(t, sink.closed)
	assert.Empty(t, out.Records)
	assert.Equal(t, int64(1), out.Metadata.RecordsOut)

	md := task.Metadata()
	assert.Equal(t, TaskTypeSink, md.TaskType)
	assert.Equal(t, "write table", md.Description)
	assert.Equal(t, []string{"sink"}, md.Tags)
	assert.Equal(t, time.Minute, md.Timeout)
}

func TestExponentialBackoff(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 5*time.Second, b.Delay(3))
}
