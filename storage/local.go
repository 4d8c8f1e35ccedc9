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
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements Store on top of a filesystem directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir. The directory is created if
// it does not exist yet.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &StoreError{Op: "resolve_root", Key: dir, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &StoreError{Op: "create_root", Key: dir, Err: err}
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute directory backing the store.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// List implements Store.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	// Walk only the deepest directory the prefix names.
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	start := s.path(dir)

	var objects []Object
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == start {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, &StoreError{Op: "list", Key: prefix, Err: err}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Open implements Store.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, &StoreError{Op: "open", Key: key, Err: err}
	}
	return f, nil
}

// Put implements Store. The object is written to a temporary file first and
// renamed into place, so readers never observe a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// DeletePrefix implements Store.
func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.HasSuffix(prefix, "/") && strings.Trim(prefix, "/") != "" {
		if err := os.RemoveAll(s.path(prefix)); err != nil {
			return &StoreError{Op: "delete_prefix", Key: prefix, Err: err}
		}
		return nil
	}

	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := os.Remove(s.path(obj.Key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &StoreError{Op: "delete_prefix", Key: obj.Key, Err: err}
		}
	}
	return nil
}

// Exists implements Store.
func (s *LocalStore) Exists(ctx context.Context, prefix string) (bool, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return false, err
	}
	return len(objects) > 0, nil
}

// URI implements Store.
func (s *LocalStore) URI(key string) string {
	return "file://" + filepath.ToSlash(s.path(key))
}
