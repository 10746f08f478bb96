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
// file covers path resolution: the ordered candidate lists produced for
// records whose location fields are missing, stale, or inconsistently
// extensioned.
package commands_test

import (
	"context"
	"testing"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// TestResolveCandidatesFromStoragePath verifies that a recorded path comes
// first, followed by its extension-stripped variant and the conventional
// fallback locations, with duplicates removed.
func TestResolveCandidatesFromStoragePath(t *testing.T) {
	record := &model.VideoRecord{ID: "x", StoragePath: "videos/x.mp4"}

	candidates := commands.ResolveCandidates(record)

	assert.Equal(t, []string{
		"videos/x.mp4",
		"videos/x",
		"raw/x.mp4",
		"raw/x",
		"x.mp4",
		"x",
	}, candidates)
}

// TestResolveCandidatesFromGsURL verifies that a gs:// URL is kept verbatim
// for the direct-fetch strategy and also reduced to its object key.
func TestResolveCandidatesFromGsURL(t *testing.T) {
	record := &model.VideoRecord{ID: "v", StorageUrl: "gs://clipworks-media/videos/v.mp4"}

	candidates := commands.ResolveCandidates(record)

	assert.Equal(t, "gs://clipworks-media/videos/v.mp4", candidates[0])
	assert.Equal(t, "videos/v.mp4", candidates[1])
	// The fallback list follows, without repeating the derived key.
	assert.Contains(t, candidates, "raw/v.mp4")
	assert.Contains(t, candidates, "v")
	countDerived := 0
	for _, c := range candidates {
		if c == "videos/v.mp4" {
			countDerived++
		}
	}
	assert.Equal(t, 1, countDerived)
}

// TestResolveCandidatesFromHTTPSURL verifies that the HTTPS API form is
// reduced to a URL-decoded object key.
func TestResolveCandidatesFromHTTPSURL(t *testing.T) {
	record := &model.VideoRecord{
		ID:         "v1",
		StorageUrl: "https://storage.googleapis.com/storage/v1/b/clipworks-media/o/videos%2Fv1.mp4?alt=media",
	}

	candidates := commands.ResolveCandidates(record)

	assert.Equal(t, record.StorageUrl, candidates[0])
	assert.Equal(t, "videos/v1.mp4", candidates[1])
}

// TestResolveCandidatesIdentifierOnly verifies the fallback list for a record
// with no usable location fields. Resolution never fails.
func TestResolveCandidatesIdentifierOnly(t *testing.T) {
	record := &model.VideoRecord{ID: "v9"}

	candidates := commands.ResolveCandidates(record)

	assert.Equal(t, []string{
		"videos/v9.mp4",
		"videos/v9",
		"raw/v9.mp4",
		"raw/v9",
		"v9.mp4",
		"v9",
	}, candidates)
}

// TestPathResolverRejectsEmptyIdentifier verifies that a record with no
// identifier is a hard error, not a silent empty candidate list.
func TestPathResolverRejectsEmptyIdentifier(t *testing.T) {
	resolver := commands.NewPathResolver("resolve-video-path")

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	ctx.Add(cor.CtxIn, &model.VideoRecord{})

	resolver.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

// TestPathResolverProducesJob verifies the happy path: the record is wrapped
// in a job carrying its candidate list.
func TestPathResolverProducesJob(t *testing.T) {
	resolver := commands.NewPathResolver("resolve-video-path")

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	ctx.Add(cor.CtxIn, &model.VideoRecord{ID: "v1", StoragePath: "videos/v1.mp4"})

	resolver.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	job := ctx.Get(cor.CtxOut).(*commands.VideoJob)
	assert.Equal(t, "v1", job.Record.ID)
	assert.Equal(t, "videos/v1.mp4", job.Candidates[0])
}
