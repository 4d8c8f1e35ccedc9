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

// Package storage abstracts the object stores the job reads its inputs from
// and writes its tables to. Keys are always slash separated and relative to
// the root the store was opened on.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Object describes a single stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the minimal object-store surface the job needs.
type Store interface {
	// List returns every object whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Open returns a reader over the object body.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put stores body under key, replacing any existing object.
	Put(ctx context.Context, key string, body io.Reader) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Exists reports whether at least one object lives under prefix.
	Exists(ctx context.Context, prefix string) (bool, error)
	// URI returns a human readable location for key, used in logs and errors.
	URI(key string) string
}

// StoreError provides structured error information for store operations
type StoreError struct {
	Op  string // Operation that failed (e.g., "list", "open", "put")
	Key string // Key or prefix involved
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Location is a parsed storage URI.
type Location struct {
	Scheme string // "s3", "s3a", "s3n" or "file"
	Bucket string // S3 bucket, empty for local paths
	Prefix string // S3 key prefix, empty or ending in "/"
	Path   string // Local filesystem root
}

// IsS3 reports whether the location points at an S3 bucket.
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
	}
	return l.Path
}

// ParseLocation parses s3://, s3a://, s3n://, file:// URIs and bare
// filesystem paths.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Path: filepath.Clean(uri)}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", uri, err)
	}

	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "s3", "s3a", "s3n":
		if u.Host == "" {
			return Location{}, fmt.Errorf("location %q has no bucket", uri)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return Location{Scheme: scheme, Bucket: u.Host, Prefix: prefix}, nil
	case "file":
		p := u.Path
		if u.Host != "" {
			p = filepath.Join(u.Host, p)
		}
		if p == "" {
			return Location{}, fmt.Errorf("location %q has no path", uri)
		}
		return Location{Scheme: "file", Path: filepath.Clean(p)}, nil
	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

// New opens the store behind uri. S3 locations are configured from opts;
// local locations ignore them.
func New(ctx context.Context, uri string, opts S3Options) (Store, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, &StoreError{Op: "parse_location", Key: uri, Err: err}
	}
	if loc.IsS3() {
		return NewS3Store(ctx, loc, opts)
	}
	return NewLocalStore(loc.Path)
}

// JoinKey joins key segments with "/" and skips empty ones.
func JoinKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// DirPrefix returns dir with exactly one trailing slash, so listing it never
// matches a sibling that merely shares the name as a prefix.
func DirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}
