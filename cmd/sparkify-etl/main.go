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

// Command sparkify-etl builds the Sparkify star schema from the song and log
// datasets named in dl.cfg.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aaronlmathis/sparkify/config"
	"github.com/aaronlmathis/sparkify/etl"
	"github.com/aaronlmathis/sparkify/logger"
	"github.com/aaronlmathis/sparkify/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		bootstrap, lerr := logger.New("development")
		if lerr != nil {
			os.Exit(1)
		}
		bootstrap.Fatal("load config", "file", config.DefaultFile, "error", err)
	}

	log, err := logger.New(cfg.Job.LogMode)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	input, err := storage.New(ctx, cfg.S3.InputData, cfg.S3Options())
	if err != nil {
		log.Fatal("open input", "location", cfg.S3.InputData, "error", err)
	}
	output, err := storage.New(ctx, cfg.S3.OutputData, cfg.S3Options())
	if err != nil {
		log.Fatal("open output", "location", cfg.S3.OutputData, "error", err)
	}

	job := etl.NewJob(input, output,
		etl.WithLogger(log),
		etl.WithWorkers(cfg.Job.Workers),
		etl.WithPostgresDSN(cfg.Postgres.DSN),
	)
	if _, err := job.Run(ctx); err != nil {
		log.Fatal("run failed", "run_id", job.RunID(), "error", err)
	}
}
