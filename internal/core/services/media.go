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

// Package services contains the business logic for interacting with data
// sources. This file defines the MediaService, which selects videos for
// batch processing and generates secure, time-limited URLs for accessing
// derived artifacts stored in Google Cloud Storage (GCS).
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// MediaService encapsulates the clients and configuration needed for
// media-related operations outside the processing chain itself: batch
// selection and artifact access.
type MediaService struct {
	Store         *FirestoreVideoStore              // The video record store.
	ObjectStore   cloud.ObjectStore                 // The blob store holding videos and artifacts.
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage (URL signing).
	IAMClient     *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail   string                            // The service account email used to sign URLs.
	VideoBucket   string                            // The bucket holding source videos.
	VideoPrefix   string                            // The object prefix videos are uploaded under.
}

// VideosWithoutThumbnails returns the records that still need a thumbnail
// run.
func (s *MediaService) VideosWithoutThumbnails(ctx context.Context) ([]*model.VideoRecord, error) {
	return s.Store.WithoutThumbnails(ctx)
}

// VideosNeedingContent walks the video bucket, makes sure every uploaded
// video has a record (identifiers derive from the object basename), and
// returns the records whose title or description is still missing or a
// placeholder. With force set, every discovered record is returned.
func (s *MediaService) VideosNeedingContent(ctx context.Context, force bool) ([]*model.VideoRecord, error) {
	names, err := s.ObjectStore.List(ctx, s.VideoBucket, s.VideoPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list video objects: %w", err)
	}

	var selected []*model.VideoRecord
	for _, name := range names {
		if !model.IsVideoPath(name) {
			continue
		}
		id := model.VideoIDFromPath(name)
		record, err := s.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			record = &model.VideoRecord{ID: id, StoragePath: name}
			if err := s.Store.Ensure(ctx, record); err != nil {
				return nil, err
			}
		}
		if record.StoragePath == "" {
			record.StoragePath = name
		}
		if force || needsContent(record) {
			selected = append(selected, record)
		}
	}
	return selected, nil
}

// needsContent reports whether a record's generated fields are absent or
// carry the placeholder values a failed model call leaves behind.
func needsContent(record *model.VideoRecord) bool {
	title := strings.TrimSpace(record.Title)
	description := strings.TrimSpace(record.Description)
	if title == "" || description == "" {
		return true
	}
	if strings.EqualFold(title, "Untitled Video") {
		return true
	}
	if strings.EqualFold(description, "No description available") {
		return true
	}
	return false
}

// GenerateSignedURL creates a time-limited, secure URL to access a private
// GCS object referenced by gs:// URI. The URL is signed through the IAM
// Credentials API using the configured signer service account, so no local
// key material is needed.
//
// Inputs:
//   - ctx: The context for the request.
//   - gcsURI: The URI of the GCS object (e.g., "gs://bucket/thumbnails/v1.jpg").
//   - expires: The duration for which the URL will be valid.
//
// Outputs:
//   - string: The generated signed URL.
//   - error: An error if parsing the URI or signing the URL fails.
func (s *MediaService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", fmt.Errorf("invalid GCS URI format: %s", gcsURI)
	}
	path := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", gcsURI)
	}
	bucketName := parts[0]
	objectName := parts[1]

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: s.SignerEmail,

		// Sign through the IAM Credentials API. This is the recommended
		// approach when running on GCP infrastructure, as it avoids local
		// service account keys.
		SignBytes: func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", bucketName, objectName, err)
	}
	return u, nil
}
