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

// Package workflow defines the high-level business logic orchestrations.
// This file implements the event-triggered ingest workflow, attached to the
// Pub/Sub listener for GCS object-finalize notifications: a freshly uploaded
// video gets a thumbnail and generated content in one pass.
package workflow

import (
	"fmt"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/clipworks/video-pipeline/internal/core/services"
)

// IngestWorkflow chains the trigger parser with the thumbnail and enrichment
// pipeline services. Routing the event path through the services keeps the
// two entry points symmetric: the per-invocation timeout, the cleanup
// guarantee, and the failure mirror into the record store all apply to a
// Pub/Sub-triggered run exactly as they do to an HTTP-triggered one.
type IngestWorkflow struct {
	cor.BaseCommand
	thumbnails *services.PipelineService
	enrichment *services.PipelineService
	chain      cor.Chain
}

// Execute runs the ingest workflow by invoking the underlying chain.
func (w *IngestWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *IngestWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Parse the GCS notification into a VideoRecord. Non-video and
	// derived-artifact events stop here without error, acking the message.
	out.AddCommand(commands.NewVideoTriggerReader("video-trigger-reader"))

	// Step 2: Run the new video through the thumbnail service, then the
	// enrichment service.
	out.AddCommand(newServiceDispatch("ingest-dispatch", w.thumbnails, w.enrichment))

	w.chain = out
}

// NewIngestWorkflow is the constructor for the IngestWorkflow.
func NewIngestWorkflow(thumbnails *services.PipelineService, enrichment *services.PipelineService) *IngestWorkflow {
	pipeline := &IngestWorkflow{
		BaseCommand: *cor.NewBaseCommand("ingest-pipeline"),
		thumbnails:  thumbnails,
		enrichment:  enrichment,
	}
	pipeline.initializeChain()
	return pipeline
}

// serviceDispatch hands the parsed record to each pipeline service in order.
// Every Process call brings its own timeout, cleanup, and failure mirror. A
// failed result stops the sequence and errors the chain, so the message is
// left unacked and redelivered per the subscription's retry policy.
type serviceDispatch struct {
	cor.BaseCommand
	pipelines []*services.PipelineService
}

func newServiceDispatch(name string, pipelines ...*services.PipelineService) *serviceDispatch {
	return &serviceDispatch{
		BaseCommand: *cor.NewBaseCommand(name),
		pipelines:   pipelines,
	}
}

func (c *serviceDispatch) Execute(context cor.Context) {
	record := context.Get(c.GetInputParam()).(*model.VideoRecord)

	for _, pipeline := range c.pipelines {
		result := pipeline.Process(context.GetContext(), record)
		if !result.Success {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("processing video %q failed: %s", record.ID, result.Error))
			return
		}
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), record)
}
