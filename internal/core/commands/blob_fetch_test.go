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
// file covers the fetch step: strategy routing, candidate fallthrough,
// payload sniffing, and the not-found condition when every candidate is
// exhausted.
package commands_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// fakeMP4Payload returns the smallest byte sequence the payload sniffer
// accepts as an MP4 container: an ftyp box with the isom brand.
func fakeMP4Payload() []byte {
	payload := make([]byte, 32)
	copy(payload[0:4], []byte{0x00, 0x00, 0x00, 0x10})
	copy(payload[4:8], "ftyp")
	copy(payload[8:12], "isom")
	return payload
}

// fakeObjectStore is an in-memory cloud.ObjectStore keyed by bucket/name.
type fakeObjectStore struct {
	objects map[string][]byte
	uploads map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (s *fakeObjectStore) key(bucket, name string) string { return bucket + "/" + name }

func (s *fakeObjectStore) Exists(_ context.Context, bucket string, name string) (bool, error) {
	_, ok := s.objects[s.key(bucket, name)]
	return ok, nil
}

func (s *fakeObjectStore) DownloadTo(_ context.Context, bucket string, name string, dest string) error {
	data, ok := s.objects[s.key(bucket, name)]
	if !ok {
		return cloud.ErrObjectNotExist
	}
	return os.WriteFile(dest, data, 0o644)
}

func (s *fakeObjectStore) Upload(_ context.Context, bucket string, name string, _ string, data []byte) error {
	s.uploads[s.key(bucket, name)] = data
	s.objects[s.key(bucket, name)] = data
	return nil
}

func (s *fakeObjectStore) Delete(_ context.Context, bucket string, name string) error {
	if _, ok := s.objects[s.key(bucket, name)]; !ok {
		return cloud.ErrObjectNotExist
	}
	delete(s.objects, s.key(bucket, name))
	s.deleted = append(s.deleted, s.key(bucket, name))
	return nil
}

func (s *fakeObjectStore) List(_ context.Context, bucket string, prefix string) ([]string, error) {
	out := make([]string, 0)
	for k := range s.objects {
		rel, err := filepath.Rel(bucket, k)
		if err != nil {
			continue
		}
		if len(prefix) == 0 || (len(rel) >= len(prefix) && rel[:len(prefix)] == prefix) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// newFetchContext seeds a chain context with a job carrying the given
// candidates.
func newFetchContext(id string, candidates []string) (cor.Context, *commands.VideoJob) {
	job := &commands.VideoJob{
		Record:     &model.VideoRecord{ID: id},
		Candidates: candidates,
	}
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	ctx.Add(cor.CtxIn, job)
	return ctx, job
}

// TestBlobFetchFromObjectStore verifies the bare-key strategy: a candidate is
// looked up in the media bucket and downloaded to a tracked temp file.
func TestBlobFetchFromObjectStore(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["media/videos/v1.mp4"] = fakeMP4Payload()

	fetch := commands.NewBlobFetch("fetch-video-blob", store, nil, "media", "fetch-test-")
	ctx, job := newFetchContext("v1", []string{"videos/v1.mp4"})

	fetch.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, "videos/v1.mp4", job.ResolvedPath)
	assert.FileExists(t, job.LocalFile)
	// The download is tracked for deletion when the invocation closes.
	assert.Contains(t, ctx.GetTempFiles(), job.LocalFile)

	ctx.Close()
	_, err := os.Stat(job.LocalFile)
	assert.True(t, os.IsNotExist(err))
}

// TestBlobFetchFallsThroughToLaterCandidate verifies that a missing first
// candidate does not fail the fetch when a later one yields a video.
func TestBlobFetchFallsThroughToLaterCandidate(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["media/raw/v1.mp4"] = fakeMP4Payload()

	fetch := commands.NewBlobFetch("fetch-video-blob", store, nil, "media", "fetch-test-")
	ctx, job := newFetchContext("v1", []string{"videos/v1.mp4", "videos/v1", "raw/v1.mp4"})
	defer ctx.Close()

	fetch.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, "raw/v1.mp4", job.ResolvedPath)
}

// TestBlobFetchFromDirectURL verifies the HTTP strategy against a local test
// server.
func TestBlobFetchFromDirectURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/v1.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(fakeMP4Payload())
	}))
	defer server.Close()

	fetch := commands.NewBlobFetch("fetch-video-blob", newFakeObjectStore(), server.Client(), "media", "fetch-test-")
	ctx, job := newFetchContext("v1", []string{server.URL + "/videos/v1.mp4"})
	defer ctx.Close()

	fetch.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, server.URL+"/videos/v1.mp4", job.ResolvedPath)
	assert.FileExists(t, job.LocalFile)
}

// TestBlobFetchRejectsNonVideoPayload verifies that a candidate serving bytes
// that are not a video container is treated like a missing candidate.
func TestBlobFetchRejectsNonVideoPayload(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["media/videos/v1.mp4"] = []byte("this is not a video")

	fetch := commands.NewBlobFetch("fetch-video-blob", store, nil, "media", "fetch-test-")
	ctx, _ := newFetchContext("v1", []string{"videos/v1.mp4"})
	defer ctx.Close()

	fetch.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	// The rejected download must not linger as a tracked temp file.
	assert.Empty(t, ctx.GetTempFiles())
}

// TestBlobFetchExhaustionIsNotFound verifies the not-found condition: every
// candidate failed, the error names the video and lists what was tried.
func TestBlobFetchExhaustionIsNotFound(t *testing.T) {
	fetch := commands.NewBlobFetch("fetch-video-blob", newFakeObjectStore(), nil, "media", "fetch-test-")
	ctx, _ := newFetchContext("v2", []string{"videos/v2.mp4", "videos/v2", "v2"})
	defer ctx.Close()

	fetch.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	err := ctx.GetErrors()["fetch-video-blob"]
	assert.Contains(t, err.Error(), `Video not found for "v2"`)
	assert.Contains(t, err.Error(), "videos/v2.mp4")
	assert.Contains(t, err.Error(), "videos/v2")
	assert.Empty(t, ctx.GetTempFiles())
}
