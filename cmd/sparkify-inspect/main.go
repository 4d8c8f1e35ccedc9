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

// Command sparkify-inspect prints the files, Parquet schema and first rows
// of the tables written by sparkify-etl.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aaronlmathis/sparkify/config"
	"github.com/aaronlmathis/sparkify/readers"
	"github.com/aaronlmathis/sparkify/schema"
	"github.com/aaronlmathis/sparkify/storage"
)

func main() {
	cfgPath := flag.String("config", config.DefaultFile, "path to the INI configuration")
	limit := flag.Int("n", 10, "rows to print per table")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.S3.OutputData, cfg.S3Options())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open output: %v\n", err)
		os.Exit(1)
	}

	tables, err := selectTables(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	for _, t := range tables {
		if err := inspect(ctx, os.Stdout, store, t, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "inspect %s: %v\n", t.Name, err)
			os.Exit(1)
		}
	}
}

func selectTables(names []string) ([]schema.Table, error) {
	if len(names) == 0 {
		return schema.Tables, nil
	}
	var out []schema.Table
	for _, name := range names {
		t, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func inspect(ctx context.Context, w io.Writer, store storage.Store, t schema.Table, limit int) error {
	r, err := readers.NewDatasetReader(ctx, store, t.Dir, t.Schema)
	if err != nil {
		return err
	}
	defer r.Close()

	files := r.Files()
	fmt.Fprintf(w, "== %s (%s): %d files\n", t.Name, store.URI(storage.DirPrefix(t.Dir)), len(files))

	var total int64
	for i, f := range files {
		pr, err := readers.OpenParquetObject(ctx, store, f.Key)
		if err != nil {
			return err
		}
		total += pr.NumRows()
		fmt.Fprintf(w, "  %s: %d rows, %d bytes\n", f.Key, pr.NumRows(), f.Size)
		if i == 0 {
			for _, field := range pr.Schema().Fields() {
				fmt.Fprintf(w, "    %s %s\n", field.Name, field.Type)
			}
		}
		pr.Close()
	}
	fmt.Fprintf(w, "  total rows: %d\n", total)

	for i := 0; i < limit; i++ {
		record, err := r.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %v\n", record.Project(t.Schema.Names()...))
	}
	return nil
}
