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
// blob-fetch step: it walks the resolved candidate list in order and
// materializes the first candidate that yields a video as a local temp file.
//
// Logic Flow:
//  1. Receives a `*VideoJob` with a populated candidate list.
//  2. For each candidate, picks a fetch strategy by shape: gs:// URI,
//     HTTP(S) URL, or bare object key in the configured media bucket.
//  3. A failed candidate (absent object, non-2xx status, transport error,
//     non-video payload) deletes its own temp file and moves on to the next.
//  4. The first success records the winning candidate and the temp file path
//     on the job; running out of candidates is the pipeline's NotFound
//     condition and the error message enumerates everything that was tried.
package commands

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/h2non/filetype"
)

// sniffLen is how many leading bytes are read to verify a downloaded payload
// is actually video content.
const sniffLen = 262

// BlobFetch downloads a video to a local temporary file by probing candidate
// locations in resolver order.
type BlobFetch struct {
	cor.BaseCommand
	store          cloud.ObjectStore
	httpClient     *http.Client
	bucket         string // bucket probed for bare-key candidates
	tempFilePrefix string
}

// NewBlobFetch is the constructor for the BlobFetch command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and telemetry.
//   - store: The object store used for gs:// and bare-key candidates.
//   - httpClient: The client used for direct-URL candidates.
//   - bucket: The media bucket bare object keys are probed against.
//   - tempFilePrefix: A string prefix for the temporary file's name.
func NewBlobFetch(name string, store cloud.ObjectStore, httpClient *http.Client, bucket string, tempFilePrefix string) *BlobFetch {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BlobFetch{
		BaseCommand:    *cor.NewBaseCommand(name),
		store:          store,
		httpClient:     httpClient,
		bucket:         bucket,
		tempFilePrefix: tempFilePrefix,
	}
}

// Execute tries each candidate in order and stops at the first success.
func (c *BlobFetch) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*VideoJob)

	for _, candidate := range job.Candidates {
		localFile, err := c.fetchCandidate(context, candidate)
		if err != nil {
			log.Printf("candidate %q did not yield a video: %v", candidate, err)
			continue
		}
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		job.ResolvedPath = candidate
		job.LocalFile = localFile
		// Track for deletion when the invocation's context closes.
		context.AddTempFile(localFile)
		context.Add(c.GetOutputParam(), job)
		return
	}

	c.GetErrorCounter().Add(context.GetContext(), 1)
	context.AddError(c.GetName(), fmt.Errorf(
		"Video not found for %q: no candidate location yielded a downloadable file (tried: %s)",
		job.Record.ID, strings.Join(job.Candidates, ", ")))
}

// fetchCandidate downloads one candidate into a fresh temp file. On any
// failure the temp file is removed before the error is returned, so a failed
// probe never leaks local state.
func (c *BlobFetch) fetchCandidate(context cor.Context, candidate string) (string, error) {
	tempFile, err := os.CreateTemp("", c.tempFilePrefix)
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	name := tempFile.Name()
	_ = tempFile.Close()

	if err := c.downloadTo(context, candidate, name); err != nil {
		_ = os.Remove(name)
		return "", err
	}

	if err := verifyVideoPayload(name); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// downloadTo routes the candidate to the right fetch strategy.
func (c *BlobFetch) downloadTo(context cor.Context, candidate string, dest string) error {
	ctx := context.GetContext()
	switch {
	case strings.HasPrefix(candidate, "gs://"):
		rest := strings.TrimPrefix(candidate, "gs://")
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return fmt.Errorf("malformed gs URI: %s", candidate)
		}
		return c.storeDownload(context, rest[:idx], rest[idx+1:], dest)
	case strings.HasPrefix(candidate, "http://"), strings.HasPrefix(candidate, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, candidate)
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer func() { _ = out.Close() }()
		_, err = io.Copy(out, resp.Body)
		return err
	default:
		return c.storeDownload(context, c.bucket, candidate, dest)
	}
}

// storeDownload performs an existence check before streaming, so an absent
// key fails fast without opening a reader.
func (c *BlobFetch) storeDownload(context cor.Context, bucket string, key string, dest string) error {
	ctx := context.GetContext()
	exists, err := c.store.Exists(ctx, bucket, key)
	if err != nil {
		return err
	}
	if !exists {
		return cloud.ErrObjectNotExist
	}
	return c.store.DownloadTo(ctx, bucket, key, dest)
}

// verifyVideoPayload sniffs the downloaded bytes and rejects payloads that
// are not a recognized video container. A truncated or non-video candidate is
// treated like a missing one.
func verifyVideoPayload(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return err
	}
	if !filetype.IsVideo(head[:n]) {
		kind, _ := filetype.Match(head[:n])
		return fmt.Errorf("payload is %q, not a recognized video container", kind.MIME.Value)
	}
	return nil
}
