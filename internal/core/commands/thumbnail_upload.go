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
// command that publishes the derived thumbnail to its durable location under
// the thumbnails prefix.
package commands

import (
	"fmt"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
)

// ThumbnailUpload writes the encoded thumbnail to thumbnails/<id>.jpg and
// records the resulting gs:// URI on the job.
type ThumbnailUpload struct {
	cor.BaseCommand
	store           cloud.ObjectStore
	bucket          string
	thumbnailPrefix string // e.g. "thumbnails/"
}

// NewThumbnailUpload is the constructor for the ThumbnailUpload command.
func NewThumbnailUpload(name string, store cloud.ObjectStore, bucket string, thumbnailPrefix string) *ThumbnailUpload {
	return &ThumbnailUpload{
		BaseCommand:     *cor.NewBaseCommand(name),
		store:           store,
		bucket:          bucket,
		thumbnailPrefix: thumbnailPrefix,
	}
}

// Execute uploads the thumbnail. An upload failure is a publish error: the
// local work succeeded but the invocation still reports failure.
func (c *ThumbnailUpload) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*VideoJob)

	objectName := fmt.Sprintf("%s%s.jpg", c.thumbnailPrefix, job.Record.ID)
	err := c.store.Upload(context.GetContext(), c.bucket, objectName, job.Thumbnail.MIMEType, job.Thumbnail.Bytes)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to upload thumbnail for video %q: %w", job.Record.ID, err))
		return
	}

	job.ThumbnailURL = fmt.Sprintf("gs://%s/%s", c.bucket, objectName)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), job)
}
