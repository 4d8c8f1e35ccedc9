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

// Package config loads the job configuration from an INI file (dl.cfg).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/aaronlmathis/sparkify/storage"
)

// DefaultFile is the configuration file read from the working directory.
const DefaultFile = "dl.cfg"

// ErrMissingConfig is returned when the file or a required key is missing.
var ErrMissingConfig = errors.New("missing configuration")

// Config mirrors the sections of dl.cfg.
type Config struct {
	AWS      AWSConfig      `mapstructure:"aws"`
	S3       S3Config       `mapstructure:"s3"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Job      JobConfig      `mapstructure:"job"`
}

// AWSConfig holds the [AWS] section.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"aws_access_key_id"`
	SecretAccessKey string `mapstructure:"aws_secret_access_key"`
	SessionToken    string `mapstructure:"aws_session_token"`
	Region          string `mapstructure:"aws_region"`
}

// S3Config holds the [S3] section.
type S3Config struct {
	InputData      string `mapstructure:"input_data"`
	OutputData     string `mapstructure:"output_data"`
	EndpointURL    string `mapstructure:"endpoint_url"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// PostgresConfig holds the [POSTGRES] section. An empty DSN disables the
// warehouse mirror.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// JobConfig holds the [JOB] section.
type JobConfig struct {
	Workers int    `mapstructure:"workers"`
	LogMode string `mapstructure:"log_mode"`
}

// Load reads the INI file at path. The file must exist; keys absent from it
// take their defaults. AWS credentials are required when either location is
// on S3.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrMissingConfig, path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	v.SetDefault("aws.aws_region", "us-west-2")
	v.SetDefault("s3.input_data", "s3a://udacity-dend/")
	v.SetDefault("s3.output_data", "s3a://sparkifyds/")
	v.SetDefault("job.workers", 4)
	v.SetDefault("job.log_mode", "development")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.S3.InputData) == "" {
		return fmt.Errorf("%w: S3.INPUT_DATA", ErrMissingConfig)
	}
	if strings.TrimSpace(c.S3.OutputData) == "" {
		return fmt.Errorf("%w: S3.OUTPUT_DATA", ErrMissingConfig)
	}

	for _, uri := range []string{c.S3.InputData, c.S3.OutputData} {
		loc, err := storage.ParseLocation(uri)
		if err != nil {
			return fmt.Errorf("invalid location %q: %w", uri, err)
		}
		if !loc.IsS3() {
			continue
		}
		if c.AWS.AccessKeyID == "" {
			return fmt.Errorf("%w: AWS.AWS_ACCESS_KEY_ID", ErrMissingConfig)
		}
		if c.AWS.SecretAccessKey == "" {
			return fmt.Errorf("%w: AWS.AWS_SECRET_ACCESS_KEY", ErrMissingConfig)
		}
	}

	if c.Job.Workers <= 0 {
		return fmt.Errorf("invalid JOB.WORKERS %d: must be positive", c.Job.Workers)
	}
	return nil
}

// S3Options returns the storage options built from the [AWS] and [S3]
// sections.
func (c *Config) S3Options() storage.S3Options {
	return storage.S3Options{
		Region:          c.AWS.Region,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		SessionToken:    c.AWS.SessionToken,
		EndpointURL:     c.S3.EndpointURL,
		ForcePathStyle:  c.S3.ForcePathStyle,
	}
}
