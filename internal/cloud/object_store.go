// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file defines ObjectStore, a narrow interface over the blob operations
// the pipeline needs, plus GCSObjectStore which implements it on top of the
// real Google Cloud Storage client. Commands depend on the interface so tests
// can substitute an in-memory store.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrObjectNotExist is returned by ObjectStore implementations when the
// requested object is absent from the bucket.
var ErrObjectNotExist = errors.New("storage: object doesn't exist")

// ObjectStore abstracts the blob operations used by the processing pipeline:
// existence checks during path resolution, downloads to local temp files,
// uploads of thumbnails and transient frames, and deletion of those
// transient frames afterwards.
type ObjectStore interface {
	// Exists reports whether the named object is present in the bucket.
	Exists(ctx context.Context, bucket string, name string) (bool, error)

	// DownloadTo streams the named object into the local file at dest.
	// Returns ErrObjectNotExist when the object is absent.
	DownloadTo(ctx context.Context, bucket string, name string, dest string) error

	// Upload writes data to the named object with the given content type.
	Upload(ctx context.Context, bucket string, name string, contentType string, data []byte) error

	// Delete removes the named object. Deleting an absent object returns
	// ErrObjectNotExist.
	Delete(ctx context.Context, bucket string, name string) error

	// List returns the object names under the given prefix.
	List(ctx context.Context, bucket string, prefix string) ([]string, error)
}

// GCSObjectStore implements ObjectStore against Google Cloud Storage.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore wraps a storage client in the ObjectStore interface.
func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{client: client}
}

func (s *GCSObjectStore) Exists(ctx context.Context, bucket string, name string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat gs://%s/%s: %w", bucket, name, err)
	}
	return true, nil
}

func (s *GCSObjectStore) DownloadTo(ctx context.Context, bucket string, name string, dest string) error {
	reader, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotExist
		}
		return fmt.Errorf("failed to open gs://%s/%s: %w", bucket, name, err)
	}
	defer func() { _ = reader.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("failed to copy gs://%s/%s to %s: %w", bucket, name, dest, err)
	}
	return nil
}

func (s *GCSObjectStore) Upload(ctx context.Context, bucket string, name string, contentType string, data []byte) error {
	writer := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *GCSObjectStore) Delete(ctx context.Context, bucket string, name string) error {
	err := s.client.Bucket(bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotExist
	}
	return err
}

func (s *GCSObjectStore) List(ctx context.Context, bucket string, prefix string) ([]string, error) {
	var names []string
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s*: %w", bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
