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

// Package etl builds and runs the Sparkify job: song and log JSON in,
// star-schema Parquet tables out.
package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aaronlmathis/sparkify/core"
	"github.com/aaronlmathis/sparkify/dag"
	"github.com/aaronlmathis/sparkify/dag/tasks"
	"github.com/aaronlmathis/sparkify/logger"
	"github.com/aaronlmathis/sparkify/readers"
	"github.com/aaronlmathis/sparkify/schema"
	"github.com/aaronlmathis/sparkify/storage"
	"github.com/aaronlmathis/sparkify/transform"
	"github.com/aaronlmathis/sparkify/validators"
	"github.com/aaronlmathis/sparkify/writers"
)

// ErrMissingDependency is returned when the log pipeline runs before the
// songs table it joins against has been written.
var ErrMissingDependency = errors.New("missing dependency")

// Stage selects a pipeline of the job.
type Stage int

const (
	// SongStage builds songs and artists from song_data.
	SongStage Stage = iota
	// LogStage builds users, time and songplays from log_data. It reads the
	// songs table back from the output store.
	LogStage
)

// Task IDs of the job DAG that are not table names.
const (
	taskSongData      = "song_data"
	taskLogData       = "log_data"
	taskNextSong      = "next_song"
	taskEvents        = "events"
	taskSongsReadback = "songs_readback"
	taskSongMatches   = "song_matches"
	taskSongplaysKey  = "songplays_keyed"
	taskLevelSummary  = "songplays_by_level"
)

// Job holds everything one run needs.
type Job struct {
	input   storage.Store
	output  storage.Store
	log     *logger.Logger
	runID   string
	workers int
	uploads int
	retries int
	dsn     string
	db      *sql.DB
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the job logger.
func WithLogger(l *logger.Logger) Option {
	return func(j *Job) {
		if l != nil {
			j.log = l
		}
	}
}

// WithRunID overrides the generated run identifier used in file names.
func WithRunID(id string) Option {
	return func(j *Job) {
		if id != "" {
			j.runID = id
		}
	}
}

// WithWorkers bounds how many tasks run at once.
func WithWorkers(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.workers = n
		}
	}
}

// WithUploadConcurrency bounds concurrent partition uploads per table.
func WithUploadConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.uploads = n
		}
	}
}

// WithRetries retries storage-bound tasks up to n extra times.
func WithRetries(n int) Option {
	return func(j *Job) {
		if n >= 0 {
			j.retries = n
		}
	}
}

// WithPostgresDSN mirrors every validated table into PostgreSQL.
func WithPostgresDSN(dsn string) Option {
	return func(j *Job) {
		j.dsn = dsn
	}
}

// WithPostgresDB mirrors into an already open database instead of a DSN.
func WithPostgresDB(db *sql.DB) Option {
	return func(j *Job) {
		j.db = db
	}
}

// NewJob creates a job reading from input and writing to output.
func NewJob(input, output storage.Store, options ...Option) *Job {
	j := &Job{
		input:   input,
		output:  output,
		log:     logger.NewNop(),
		runID:   uuid.NewString(),
		workers: 4,
		uploads: 4,
		retries: 2,
	}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// RunID returns the identifier stamped into the run's file names.
func (j *Job) RunID() string {
	return j.runID
}

// Run executes the given stages, both when none are named. Tables of one run
// are fully replaced.
func (j *Job) Run(ctx context.Context, stages ...Stage) (*dag.DAGResult, error) {
	if len(stages) == 0 {
		stages = []Stage{SongStage, LogStage}
	}

	if j.db == nil && j.dsn != "" {
		db, err := sql.Open("postgres", j.dsn)
		if err != nil {
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("connect warehouse: %w", err)
		}
		j.db = db
		defer func() { j.db = nil }()
	}

	d, err := j.BuildDAG(stages...)
	if err != nil {
		return nil, err
	}

	j.log.Info("run started",
		"run_id", j.runID,
		"input", j.input.URI(""),
		"output", j.output.URI(""),
		"tasks", d.GetTaskCount(),
		"warehouse", j.db != nil,
	)
	j.log.Debug("job graph\n" + d.Describe())

	executor := dag.NewDAGExecutor(
		dag.WithMaxWorkers(j.workers),
		dag.WithLogger(j.log),
	)
	result, err := executor.Execute(ctx, d)
	if err != nil {
		return result, err
	}

	for _, t := range schema.Tables {
		if r, ok := result.TaskResults[writeID(t)]; ok {
			j.log.Info("table summary", "table", t.Name, "rows", r.RecordsOut, "location", j.output.URI(storage.DirPrefix(t.Dir)))
		}
	}
	for _, row := range result.Outputs[taskLevelSummary] {
		j.log.Info("songplays by level", "level", row["level"], "plays", row["plays"], "first_play", row["first_play"], "last_play", row["last_play"])
	}
	j.log.Info("run completed", "run_id", j.runID, "duration", result.EndTime.Sub(result.StartTime))
	return result, nil
}

// BuildDAG assembles the task graph for the given stages.
func (j *Job) BuildDAG(stages ...Stage) (*dag.DAG, error) {
	var songs, logs bool
	for _, s := range stages {
		switch s {
		case SongStage:
			songs = true
		case LogStage:
			logs = true
		default:
			return nil, fmt.Errorf("unknown stage %d", s)
		}
	}

	b := dag.NewDAG("sparkify", "Sparkify data lake ETL").
		WithDescription("song_data and log_data JSON to star-schema Parquet").
		WithMaxParallelism(j.workers).
		WithDefaultTimeout(2 * time.Hour)

	if songs {
		b.AddSourceTask(taskSongData, j.openInput(schema.SongData), nil, j.retryable(), tasks.WithTags("input"))
		b.AddTask(songsTask(taskSongData))
		b.AddTask(artistsTask(taskSongData))
		j.addTableOutput(b, schema.Songs)
		j.addTableOutput(b, schema.Artists)
	}

	if logs {
		b.AddSourceTask(taskLogData, j.openInput(schema.LogData), nil, j.retryable(), tasks.WithTags("input"))
		b.AddFilterTask(taskNextSong, nextSong(), []string{taskLogData})
		b.AddTransformTask(taskEvents, events(), []string{taskNextSong})
		b.AddTask(usersTask(taskEvents))
		b.AddTask(timeTask(taskEvents))
		j.addTableOutput(b, schema.Users)
		j.addTableOutput(b, schema.Time)

		// Reading songs back from the sink orders this stage after the song
		// stage when both run, and checks the table exists when run alone.
		var after []string
		if songs {
			after = []string{writeID(schema.Songs)}
		}
		b.AddSourceTask(taskSongsReadback, j.openSongsTable, after, j.retryable(), tasks.WithTags("readback"))
		b.AddTask(songMatchesTask(taskSongMatches, taskEvents, taskSongsReadback))
		b.AddTransformTask(taskSongplaysKey, transform.Sequence("songplay_id", 0), []string{taskSongMatches},
			tasks.WithDescription("assign songplay_id in emission order"))
		b.AddTask(songplaysTask(taskSongplaysKey, schema.Time.Name))
		j.addTableOutput(b, schema.Songplays)
		b.AddAggregateTask(taskLevelSummary, levelSummary(), []string{checkID(schema.Songplays)},
			tasks.WithDescription("play counts per subscription level"))
	}

	return b.Build()
}

func checkID(t schema.Table) string  { return "check_" + t.Name }
func writeID(t schema.Table) string  { return "write_" + t.Name }
func mirrorID(t schema.Table) string { return "mirror_" + t.Name }

// addTableOutput adds the check, write and optional mirror tasks that follow
// the task producing table t.
func (j *Job) addTableOutput(b *dag.DAGBuilder, t schema.Table) {
	b.AddCheckTask(checkID(t), validatorFor(t), []string{t.Name})
	b.AddSinkTask(writeID(t), j.openTableWriter(t), []string{checkID(t)},
		j.retryable(), tasks.WithTags("output", t.Name))
	if j.db != nil {
		b.AddSinkTask(mirrorID(t), j.openMirror(t), []string{checkID(t)},
			tasks.WithTags("warehouse", t.Name))
	}
}

func (j *Job) retryable() tasks.TaskOption {
	return tasks.WithRetryConfig(&tasks.RetryConfig{
		MaxRetries: j.retries,
		Strategy:   &tasks.ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		RetryIf:    transient,
	})
}

// transient reports whether a failed storage task may succeed on retry.
// Missing tables and malformed input fail the same way every time.
func transient(err error) bool {
	var jsonErr *readers.JSONReaderError
	switch {
	case errors.Is(err, ErrMissingDependency),
		errors.Is(err, context.Canceled),
		errors.As(err, &jsonErr):
		return false
	}
	return true
}

func validatorFor(t schema.Table) *validators.TableValidator {
	return &validators.TableValidator{
		Table:          t.Name,
		RequiredFields: t.Key,
		UniqueKey:      t.Key,
		Schema:         t.Schema,
	}
}

func (j *Job) openInput(in schema.Input) tasks.SourceOpener {
	return func(ctx context.Context) (core.DataSource, error) {
		r, err := readers.NewObjectReader(ctx, j.input,
			readers.WithObjectPrefix(in.Prefix),
			readers.WithObjectPattern(in.Pattern),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
		j.log.Info("input listed", "dataset", in.Name, "objects", len(r.Objects()), "location", j.input.URI(in.Prefix))
		return r, nil
	}
}

// openSongsTable reads the songs table from the output store. A table with
// no data files is a missing dependency.
func (j *Job) openSongsTable(ctx context.Context) (core.DataSource, error) {
	r, err := readers.NewDatasetReader(ctx, j.output, schema.Songs.Dir, schema.Songs.Schema)
	if err != nil {
		return nil, err
	}
	if len(r.Files()) == 0 {
		return nil, fmt.Errorf("%w: songs table %s has no data files", ErrMissingDependency, j.output.URI(storage.DirPrefix(schema.Songs.Dir)))
	}
	return r, nil
}

func (j *Job) openTableWriter(t schema.Table) tasks.SinkOpener {
	return func(ctx context.Context) (core.DataSink, error) {
		return writers.NewPartitionedWriter(ctx, j.output, t.Dir, t.Schema,
			writers.WithPartitionBy(t.PartitionBy...),
			writers.WithOverwrite(true),
			writers.WithRunID(j.runID),
			writers.WithUploadConcurrency(j.uploads),
			writers.WithPartitionLogger(j.log.With("table", t.Name)),
		)
	}
}

func (j *Job) openMirror(t schema.Table) tasks.SinkOpener {
	return func(ctx context.Context) (core.DataSink, error) {
		w, err := writers.NewPostgresWriter(
			writers.WithPostgresDB(j.db),
			writers.WithTableName(t.Name),
			writers.WithTableSchema(t.Schema),
			writers.WithCreateTable(true),
			writers.WithTruncateTable(true),
		)
		if err != nil {
			return nil, err
		}
		if err := w.Begin(ctx); err != nil {
			w.Close()
			return nil, err
		}
		return w, nil
	}
}
