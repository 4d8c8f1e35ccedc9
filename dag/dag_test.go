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

package dag

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/sparkify/aggregate"
	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/dag/tasks"
	"github.com/aaronlmathis/sparkify/filter"
	"github.com/aaronlmathis/sparkify/transform"
)

type sliceSource struct {
	records []core.Record
	pos     int
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Close() error { return nil }

func openSlice(records ...core.Record) tasks.SourceOpener {
	return func(ctx context.Context) (core.DataSource, error) {
		return &sliceSource{records: records}, nil
	}
}

type memSink struct {
	mu      sync.Mutex
	records []core.Record
	closed  bool
}

func (m *memSink) Write(ctx context.Context, record core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memSink) Flush() error { return nil }

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func (m *memSink) opener() tasks.SinkOpener {
	return func(ctx context.Context) (core.DataSink, error) {
		return m, nil
	}
}

func noop(id string, deps ...string) tasks.Task {
	return tasks.NewTransformTask(id, transform.Chain(), deps)
}

func TestTopologicalSort_StableOrder(t *testing.T) {
	d, err := NewDAG("t", "topo").
		AddTask(noop("b")).
		AddTask(noop("a")).
		AddTask(noop("c", "a", "b")).
		AddTask(noop("d", "b")).
		Build()
	require.NoError(t, err)

	order, err := d.GetExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d"}, order)

	for i := 0; i < 10; i++ {
		again, err := d.GetExecutionOrder()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestBuild_RejectsCycle(t *testing.T) {
	_, err := NewDAG("t", "cycle").
		AddTask(noop("a", "c")).
		AddTask(noop("b", "a")).
		AddTask(noop("c", "b")).
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
}

func TestBuild_RejectsBadDependencies(t *testing.T) {
	_, err := NewDAG("t", "missing").AddTask(noop("a", "ghost")).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent task ghost")

	_, err = NewDAG("t", "dup").AddTask(noop("a")).AddTask(noop("a")).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id a")

	_, err = NewDAG("t", "twice").AddTask(noop("a")).AddTask(noop("b", "a", "a")).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestGroupTasksByLevel(t *testing.T) {
	d, err := NewDAG("t", "levels").
		AddTask(noop("src")).
		AddTask(noop("x", "src")).
		AddTask(noop("y", "src")).
		AddTask(noop("z", "x", "y")).
		AddTask(noop("other")).
		Build()
	require.NoError(t, err)

	order, err := d.topologicalSort()
	require.NoError(t, err)
	levels := NewDAGExecutor().groupTasksByLevel(d, order)
	assert.Equal(t, [][]string{{"src", "other"}, {"x", "y"}, {"z"}}, levels)
}

func TestExecute_Pipeline(t *testing.T) {
	sink := &memSink{}
	records := []core.Record{
		{"id": "1", "page": "NextSong", "ts": int64(1)},
		{"id": "2", "page": "Home", "ts": int64(2)},
		{"id": "1", "page": "NextSong", "ts": int64(3)},
		{"id": "3", "page": "NextSong", "ts": int64(4)},
	}

	d, err := NewDAG("t", "pipeline").
		AddSourceTask("read", openSlice(records...), nil).
		AddFilterTask("next_song", filter.Equals("page", "NextSong"), []string{"read"}).
		AddAggregateTask("distinct", aggregate.NewDistinct(aggregate.KeepLastBy("ts"), "id"), []string{"next_song"}).
		AddSinkTask("write", sink.opener(), []string{"distinct"}).
		Build()
	require.NoError(t, err)

	result, err := NewDAGExecutor(WithMaxWorkers(2)).Execute(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, sink.records, 2)
	assert.Equal(t, int64(3), sink.records[0]["ts"])
	assert.Equal(t, "3", sink.records[1]["id"])
	assert.True(t, sink.closed)

	assert.Equal(t, int64(4), result.TaskResults["read"].RecordsOut)
	assert.Equal(t, int64(3), result.TaskResults["next_song"].RecordsOut)
	assert.Equal(t, int64(2), result.TaskResults["write"].RecordsOut)
	for id, r := range result.TaskResults {
		assert.True(t, r.Success, id)
	}
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var downstreamRan atomic.Bool

	failing := tasks.NewCheckTask("check", tasks.ValidatorFunc(func(ctx context.Context, records []core.Record) error {
		return boom
	}), []string{"read"})
	after := tasks.NewTransformTask("after", core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		downstreamRan.Store(true)
		return r, nil
	}), []string{"check"})

	d, err := NewDAG("t", "failing").
		AddSourceTask("read", openSlice(core.Record{"a": 1}), nil).
		AddTask(failing).
		AddTask(after).
		Build()
	require.NoError(t, err)

	result, err := NewDAGExecutor().Execute(context.Background(), d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.False(t, result.TaskResults["check"].Success)
	assert.False(t, downstreamRan.Load())
	_, ran := result.TaskResults["after"]
	assert.False(t, ran)
}

func TestExecute_RetriesSourceOpen(t *testing.T) {
	var attempts atomic.Int32
	open := func(ctx context.Context) (core.DataSource, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return &sliceSource{records: []core.Record{{"a": 1}}}, nil
	}

	d, err := NewDAG("t", "retry").
		AddSourceTask("read", open, nil, tasks.WithRetries(2, time.Millisecond)).
		Build()
	require.NoError(t, err)

	result, err := NewDAGExecutor().Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 3, result.TaskResults["read"].AttemptCount)
}

func TestExecute_DependencyOnlyOrdersSource(t *testing.T) {
	sink := &memSink{}
	var sawWrite bool
	readback := func(ctx context.Context) (core.DataSource, error) {
		sawWrite = sink.closed
		return &sliceSource{records: sink.records}, nil
	}
	out := &memSink{}

	d, err := NewDAG("t", "readback").
		AddSourceTask("read", openSlice(core.Record{"k": "v"}), nil).
		AddSinkTask("write", sink.opener(), []string{"read"}).
		AddSourceTask("readback", readback, []string{"write"}).
		AddSinkTask("copy", out.opener(), []string{"readback"}).
		Build()
	require.NoError(t, err)

	_, err = NewDAGExecutor().Execute(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, sawWrite)
	assert.Equal(t, []core.Record{{"k": "v"}}, out.records)
}

func TestExecute_Cancelled(t *testing.T) {
	d, err := NewDAG("t", "cancel").AddSourceTask("read", openSlice(core.Record{"a": 1}), nil).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDAGExecutor().Execute(ctx, d)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDescribe(t *testing.T) {
	d, err := NewDAG("etl", "Sparkify").
		WithDescription("songs").
		AddTask(noop("a")).
		AddTask(noop("b", "a")).
		Build()
	require.NoError(t, err)

	out := d.Describe()
	assert.Contains(t, out, "DAG: Sparkify (etl) - songs")
	assert.Contains(t, out, "b [transform] <- a")
}
