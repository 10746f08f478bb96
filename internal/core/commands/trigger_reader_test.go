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

// Package commands_test contains unit tests for the pipeline commands. This
// file covers the trigger reader that turns GCS object-finalize notifications
// into video records, and the filtering that keeps the pipeline's own output
// from re-triggering it.
package commands_test

import (
	"context"
	"testing"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	test "github.com/clipworks/video-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// newTriggerContext seeds a chain context with a raw notification payload.
func newTriggerContext(message string) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	ctx.Add(cor.CtxIn, message)
	return ctx
}

// TestTriggerReaderBuildsRecord verifies that a video upload notification
// becomes a record whose identifier is derived from the object basename.
func TestTriggerReaderBuildsRecord(t *testing.T) {
	reader := commands.NewVideoTriggerReader("video-trigger-reader")
	ctx := newTriggerContext(test.GetTestVideoUploadMessageText())

	reader.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	record := ctx.Get(cor.CtxOut).(*model.VideoRecord)
	assert.Equal(t, "test-trailer-001", record.ID)
	assert.Equal(t, "videos/test-trailer-001.mp4", record.StoragePath)
}

// TestTriggerReaderSkipsDerivedArtifacts verifies that events for objects the
// pipeline itself writes stop the chain without error, so the message is
// acknowledged and dropped.
func TestTriggerReaderSkipsDerivedArtifacts(t *testing.T) {
	reader := commands.NewVideoTriggerReader("video-trigger-reader")
	ctx := newTriggerContext(test.GetTestThumbnailMessageText())

	reader.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

// TestTriggerReaderSkipsNonVideoObjects verifies extension filtering for
// objects outside the derived-artifact prefixes.
func TestTriggerReaderSkipsNonVideoObjects(t *testing.T) {
	reader := commands.NewVideoTriggerReader("video-trigger-reader")
	ctx := newTriggerContext(`{"name": "videos/readme.txt", "bucket": "clipworks-media"}`)

	reader.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

// TestTriggerReaderRejectsMalformedPayload verifies that unparseable message
// data is a hard error.
func TestTriggerReaderRejectsMalformedPayload(t *testing.T) {
	reader := commands.NewVideoTriggerReader("video-trigger-reader")
	ctx := newTriggerContext("{not json")

	reader.Execute(ctx)

	assert.True(t, ctx.HasErrors())
}
