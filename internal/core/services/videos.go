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
// sources. This file defines the Firestore-backed video record store: typed
// reads, partial-field merge updates, and the selection queries batch
// operations run on.
package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreVideoStore persists video records in a Firestore collection. It
// implements the pipeline's RecordStore interface; every write is a partial
// merge, never a document replacement, so fields owned by other writers
// survive.
type FirestoreVideoStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreVideoStore is the constructor for the FirestoreVideoStore.
func NewFirestoreVideoStore(client *firestore.Client, collection string) *FirestoreVideoStore {
	return &FirestoreVideoStore{client: client, collection: collection}
}

// Get reads one record by identifier. A missing document returns a nil record
// and no error, so callers can distinguish absence from infrastructure
// failure.
func (s *FirestoreVideoStore) Get(ctx context.Context, id string) (*model.VideoRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read video record %q: %w", id, err)
	}
	record := &model.VideoRecord{}
	if err := snap.DataTo(record); err != nil {
		return nil, fmt.Errorf("failed to decode video record %q: %w", id, err)
	}
	record.ID = snap.Ref.ID
	return record, nil
}

// Ensure creates the record if it does not exist yet, merging location fields
// into any existing document. Used when bucket listing discovers a video that
// was uploaded without a record.
func (s *FirestoreVideoStore) Ensure(ctx context.Context, record *model.VideoRecord) error {
	_, err := s.client.Collection(s.collection).Doc(record.ID).Set(ctx, map[string]interface{}{
		"id":          record.ID,
		"storagePath": record.StoragePath,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to ensure video record %q: %w", record.ID, err)
	}
	return nil
}

// MarkCompleted writes the terminal success update for a thumbnail run in a
// single merge.
func (s *FirestoreVideoStore) MarkCompleted(ctx context.Context, id string, dims *model.Dimensions, thumbnailURL string, storagePath string) error {
	fields := map[string]interface{}{
		"processingStatus": model.StatusCompleted,
		"processingError":  firestore.Delete,
		"thumbnailUrl":     thumbnailURL,
		"storagePath":      storagePath,
		"updatedAt":        firestore.ServerTimestamp,
	}
	if dims != nil {
		fields["width"] = dims.Width
		fields["height"] = dims.Height
		fields["fps"] = dims.FPS
	}
	_, err := s.client.Collection(s.collection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to complete video record %q: %w", id, err)
	}
	return nil
}

// MarkFailed records the failure status and message, best-effort mirrored
// from the invocation's ProcessingResult.
func (s *FirestoreVideoStore) MarkFailed(ctx context.Context, id string, message string) error {
	_, err := s.client.Collection(s.collection).Doc(id).Set(ctx, map[string]interface{}{
		"processingStatus": model.StatusFailed,
		"processingError":  message,
		"updatedAt":        firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to mark video record %q failed: %w", id, err)
	}
	return nil
}

// SetContent persists the generated title, description, and hashtags. Like
// every other writer this is a merge Set, so a record that only exists in
// storage gains its document here instead of failing with NotFound.
func (s *FirestoreVideoStore) SetContent(ctx context.Context, id string, title string, description string, hashtags []string) error {
	_, err := s.client.Collection(s.collection).Doc(id).Set(ctx, map[string]interface{}{
		"title":       title,
		"description": description,
		"hashtags":    hashtags,
		"hasContent":  true,
		"updatedAt":   firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to write content for video record %q: %w", id, err)
	}
	return nil
}

// WithoutThumbnails selects the records that have never had a thumbnail
// published.
func (s *FirestoreVideoStore) WithoutThumbnails(ctx context.Context) ([]*model.VideoRecord, error) {
	iter := s.client.Collection(s.collection).Where("thumbnailUrl", "==", nil).Documents(ctx)
	return collectRecords(iter)
}

// All returns every record in the collection.
func (s *FirestoreVideoStore) All(ctx context.Context) ([]*model.VideoRecord, error) {
	return collectRecords(s.client.Collection(s.collection).Documents(ctx))
}

func collectRecords(iter *firestore.DocumentIterator) ([]*model.VideoRecord, error) {
	defer iter.Stop()
	var records []*model.VideoRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate video records: %w", err)
		}
		record := &model.VideoRecord{}
		if err := snap.DataTo(record); err != nil {
			return nil, fmt.Errorf("failed to decode video record %q: %w", snap.Ref.ID, err)
		}
		record.ID = snap.Ref.ID
		records = append(records, record)
	}
	return records, nil
}
