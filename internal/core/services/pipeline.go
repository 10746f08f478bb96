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
// sources. This file defines the PipelineService: the invocation boundary of
// the processing chains. It owns the per-invocation timeout, guarantees
// cleanup on every exit path, converts chain errors into a structured
// ProcessingResult, best-effort mirrors failures into the record store, and
// fans batches out over a bounded worker pool.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// PipelineService executes processing workflows for individual records and
// for batches. No error escapes its methods as a panic or bare failure; the
// caller always receives a ProcessingResult.
type PipelineService struct {
	Workflow    cor.Command          // the chain to run per record
	RecordStore commands.RecordStore // failure mirror target
	Timeout     time.Duration        // per-invocation bound; zero means no timeout
	Workers     int                  // batch pool size; values below 1 collapse to 1
}

// NewPipelineService is the constructor for the PipelineService.
func NewPipelineService(workflow cor.Command, recordStore commands.RecordStore, timeout time.Duration, workers int) *PipelineService {
	if workers < 1 {
		workers = 1
	}
	return &PipelineService{
		Workflow:    workflow,
		RecordStore: recordStore,
		Timeout:     timeout,
		Workers:     workers,
	}
}

// Process runs the workflow once for a record and converts the outcome into a
// ProcessingResult. The invocation is wrapped in the configured timeout;
// cleanup of temp files and staged artifacts runs on every exit path,
// including timeouts.
func (s *PipelineService) Process(ctx context.Context, record *model.VideoRecord) *model.ProcessingResult {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, record)
	defer chainCtx.Close()

	s.Workflow.Execute(chainCtx)

	if chainCtx.HasErrors() {
		return s.failureResult(record.ID, chainCtx.GetErrors())
	}

	result := &model.ProcessingResult{Success: true, VideoID: record.ID}
	if job, ok := chainCtx.Get(cor.CtxOut).(*commands.VideoJob); ok && job != nil {
		result.Dimensions = job.Dimensions
		result.VideoPath = job.ResolvedPath
		if job.ThumbnailURL != "" {
			result.ThumbnailPath = thumbnailPathFromURL(job.ThumbnailURL)
		}
		if job.Content != nil {
			result.Title = job.Content.Title
			result.Description = job.Content.Description
		}
		result.Hashtags = job.Hashtags
	}
	return result
}

// ProcessBatch runs the workflow for every record on a bounded worker pool.
// One record's failure never aborts the batch; every record contributes a
// ProcessingResult to the aggregate.
func (s *PipelineService) ProcessBatch(ctx context.Context, records []*model.VideoRecord) *model.BatchResult {
	jobs := make(chan *model.VideoRecord, len(records))
	results := make(chan *model.ProcessingResult, len(records))

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				results <- s.Process(ctx, record)
			}
		}()
	}

	for _, record := range records {
		jobs <- record
	}
	close(jobs)
	wg.Wait()
	close(results)

	batch := &model.BatchResult{Results: make([]*model.ProcessingResult, 0, len(records))}
	for result := range results {
		batch.Total++
		if result.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, result)
	}
	return batch
}

// failureResult flattens the chain's error map into one message, mirrors the
// failure into the record store, and returns the failed result. The mirror is
// best-effort: a store that is itself down must not mask the original error.
func (s *PipelineService) failureResult(videoID string, errs map[string]error) *model.ProcessingResult {
	parts := make([]string, 0, len(errs))
	for name, err := range errs {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	message := strings.Join(parts, "; ")

	// The invocation's own context may already be cancelled or out of time.
	mirrorCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.RecordStore.MarkFailed(mirrorCtx, videoID, message); err != nil {
		slog.Warn("failed to mirror failure to record store", "videoId", videoID, "error", err)
	}

	return &model.ProcessingResult{Success: false, VideoID: videoID, Error: message}
}

// thumbnailPathFromURL reduces a gs:// thumbnail URI to its bucket-relative
// object path for the result payload.
func thumbnailPathFromURL(gsURL string) string {
	rest := strings.TrimPrefix(gsURL, "gs://")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return rest
}
