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
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options carries the explicit connection settings for an S3Store.
// Credentials are never read from process-wide state: when AccessKeyID is
// set a static provider is installed on the client.
type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	EndpointURL     string // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle  bool   // Use path-style addressing
	PartSize        int64  // Multipart upload part size, 0 uses the SDK default
	Concurrency     int    // Multipart upload concurrency, 0 uses the SDK default
}

// S3Store implements Store on an S3 bucket, optionally scoped under a key prefix.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	scheme   string
	bucket   string
	base     string
}

// maxDeleteBatch is the DeleteObjects per-request limit.
const maxDeleteBatch = 1000

// NewS3Store creates a store for the bucket and prefix in loc.
func NewS3Store(ctx context.Context, loc Location, opts S3Options) (*S3Store, error) {
	if !loc.IsS3() {
		return nil, &StoreError{Op: "validate_location", Key: loc.String(), Err: fmt.Errorf("not an S3 location")}
	}

	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, &StoreError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
		if opts.Concurrency > 0 {
			u.Concurrency = opts.Concurrency
		}
	})

	return &S3Store{
		client:   client,
		uploader: uploader,
		scheme:   loc.Scheme,
		bucket:   loc.Bucket,
		base:     loc.Prefix,
	}, nil
}

func loadAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
				opts.AccessKeyID,
				opts.SecretAccessKey,
				opts.SessionToken,
			)),
		))
	}

	return config.LoadDefaultConfig(ctx, configOpts...)
}

func (s *S3Store) fullKey(key string) string {
	return s.base + strings.TrimPrefix(key, "/")
}

func (s *S3Store) relKey(full string) string {
	return strings.TrimPrefix(full, s.base)
}

// List implements Store.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StoreError{Op: "list", Key: s.URI(prefix), Err: err}
		}
		for _, obj := range page.Contents {
			o := Object{Key: s.relKey(aws.ToString(obj.Key)), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}

	// ListObjectsV2 already returns keys in UTF-8 binary order.
	return objects, nil
}

// Open implements Store.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Key: s.URI(key), Err: err}
	}
	return out.Body, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   body,
	})
	if err != nil {
		return &StoreError{Op: "put", Key: s.URI(key), Err: err}
	}
	return nil
}

// DeletePrefix implements Store.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(objects); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(objects) {
			end = len(objects)
		}

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, obj := range objects[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(s.fullKey(obj.Key))})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return &StoreError{Op: "delete_prefix", Key: s.URI(prefix), Err: err}
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return &StoreError{
				Op:  "delete_prefix",
				Key: s.URI(s.relKey(aws.ToString(first.Key))),
				Err: fmt.Errorf("%s: %s", aws.ToString(first.Code), aws.ToString(first.Message)),
			}
		}
	}
	return nil
}

// Exists implements Store.
func (s *S3Store) Exists(ctx context.Context, prefix string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.fullKey(prefix)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, &StoreError{Op: "exists", Key: s.URI(prefix), Err: err}
	}
	return len(out.Contents) > 0, nil
}

// URI implements Store.
func (s *S3Store) URI(key string) string {
	return s.scheme + "://" + s.bucket + "/" + s.fullKey(key)
}
