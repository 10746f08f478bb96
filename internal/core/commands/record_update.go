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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// commands that write pipeline results back to the record store: the
// completion update after a successful thumbnail run and the content update
// after enrichment.
//
// The store is consumed through the narrow RecordStore interface so tests can
// substitute an in-memory implementation; the Firestore-backed version lives
// in the services package.
package commands

import (
	"context"
	"fmt"

	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// RecordStore is the subset of record-store operations the pipeline commands
// need. Updates are partial-field merges, last-writer-wins: concurrent runs
// for one identifier may race, which is an accepted limitation.
type RecordStore interface {
	// MarkCompleted writes dimensions, thumbnail reference, the storage path
	// that actually worked, and status completed in a single merge update.
	MarkCompleted(ctx context.Context, id string, dims *model.Dimensions, thumbnailURL string, storagePath string) error

	// MarkFailed writes status failed plus the error message.
	MarkFailed(ctx context.Context, id string, message string) error

	// SetContent writes the generated title, description, and hashtags and
	// flips the hasContent flag.
	SetContent(ctx context.Context, id string, title string, description string, hashtags []string) error
}

// RecordUpdate writes the terminal completion update for a thumbnail run.
type RecordUpdate struct {
	cor.BaseCommand
	store RecordStore
}

// NewRecordUpdate is the constructor for the RecordUpdate command.
func NewRecordUpdate(name string, store RecordStore) *RecordUpdate {
	return &RecordUpdate{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

// Execute performs the single atomic merge update that completes the run.
func (c *RecordUpdate) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*VideoJob)

	err := c.store.MarkCompleted(context.GetContext(), job.Record.ID, job.Dimensions, job.ThumbnailURL, job.ResolvedPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to update record for video %q: %w", job.Record.ID, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), job)
}

// ContentUpdate persists generated title, description, and hashtags.
type ContentUpdate struct {
	cor.BaseCommand
	store RecordStore
}

// NewContentUpdate is the constructor for the ContentUpdate command.
func NewContentUpdate(name string, store RecordStore) *ContentUpdate {
	return &ContentUpdate{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *ContentUpdate) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*VideoJob)

	err := c.store.SetContent(context.GetContext(), job.Record.ID, job.Content.Title, job.Content.Description, job.Hashtags)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to write content for video %q: %w", job.Record.ID, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), job)
}
