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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
[AWS]
AWS_ACCESS_KEY_ID=AKIAEXAMPLE
AWS_SECRET_ACCESS_KEY=secret
AWS_REGION=eu-west-1

[S3]
INPUT_DATA=s3a://udacity-dend/
OUTPUT_DATA=s3://my-lake/sparkify/
ENDPOINT_URL=http://localhost:9000
FORCE_PATH_STYLE=true

[POSTGRES]
DSN=postgres://etl@localhost/sparkify?sslmode=disable

[JOB]
WORKERS=8
LOG_MODE=production
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.AccessKeyID)
	assert.Equal(t, "secret", cfg.AWS.SecretAccessKey)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "s3a://udacity-dend/", cfg.S3.InputData)
	assert.Equal(t, "s3://my-lake/sparkify/", cfg.S3.OutputData)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, "postgres://etl@localhost/sparkify?sslmode=disable", cfg.Postgres.DSN)
	assert.Equal(t, 8, cfg.Job.Workers)
	assert.Equal(t, "production", cfg.Job.LogMode)

	opts := cfg.S3Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", opts.EndpointURL)
	assert.True(t, opts.ForcePathStyle)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[AWS]
AWS_ACCESS_KEY_ID=AKIAEXAMPLE
AWS_SECRET_ACCESS_KEY=secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "s3a://udacity-dend/", cfg.S3.InputData)
	assert.Equal(t, "s3a://sparkifyds/", cfg.S3.OutputData)
	assert.Equal(t, 4, cfg.Job.Workers)
	assert.Equal(t, "development", cfg.Job.LogMode)
	assert.Empty(t, cfg.Postgres.DSN)
}

func TestLoad_LocalPathsNeedNoCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[S3]
INPUT_DATA=`+filepath.Join(dir, "in")+`
OUTPUT_DATA=file://`+filepath.Join(dir, "out")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AWS.AccessKeyID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
[AWS]
AWS_ACCESS_KEY_ID=AKIAEXAMPLE
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
}

func TestValidate_Workers(t *testing.T) {
	cfg := &Config{
		S3:  S3Config{InputData: "/tmp/in", OutputData: "/tmp/out"},
		Job: JobConfig{Workers: 0},
	}
	assert.Error(t, cfg.Validate())

	cfg.Job.Workers = 2
	assert.NoError(t, cfg.Validate())
}
