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
// command that stages the analysis frame as a transient bucket object so the
// generative model can reference it by gs:// URI.
//
// Logic Flow:
//  1. Receives a `*VideoJob` carrying the encoded analysis frame.
//  2. Uploads the frame under the temp prefix with a unique name.
//  3. Registers a finalizer on the chain context that deletes the object when
//     the invocation closes, success or failure. The artifact exists only to
//     be referenced by the model call and must never outlive the invocation.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/google/uuid"
)

// FramePublish uploads the analysis frame as a transient object and records
// its cleanup.
type FramePublish struct {
	cor.BaseCommand
	store      cloud.ObjectStore
	bucket     string
	tempPrefix string // e.g. "temp/"
}

// NewFramePublish is the constructor for the FramePublish command.
func NewFramePublish(name string, store cloud.ObjectStore, bucket string, tempPrefix string) *FramePublish {
	return &FramePublish{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
		bucket:      bucket,
		tempPrefix:  tempPrefix,
	}
}

// Execute uploads the frame and registers its deletion finalizer.
func (c *FramePublish) Execute(chCtx cor.Context) {
	job := chCtx.Get(c.GetInputParam()).(*VideoJob)

	// Unique per invocation so concurrent runs for one id cannot delete each
	// other's staging frame.
	objectName := fmt.Sprintf("%s%s_frame_%s.jpg", c.tempPrefix, job.Record.ID, uuid.NewString())

	err := c.store.Upload(chCtx.GetContext(), c.bucket, objectName, job.Analysis.MIMEType, job.Analysis.Bytes)
	if err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), fmt.Errorf("failed to stage analysis frame for video %q: %w", job.Record.ID, err))
		return
	}

	store, bucket := c.store, c.bucket
	chCtx.AddFinalizer("delete-"+objectName, func(ctx context.Context) error {
		err := store.Delete(ctx, bucket, objectName)
		if errors.Is(err, cloud.ErrObjectNotExist) {
			return nil
		}
		return err
	})

	job.FrameURI = fmt.Sprintf("gs://%s/%s", c.bucket, objectName)
	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(c.GetOutputParam(), job)
}
