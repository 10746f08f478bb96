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
// This file implements the enrichment workflow: sample a representative frame
// from the middle of the video (or a caller-supplied timestamp), stage it for
// the model, and generate a title, description, and hashtags.
package workflow

import (
	"net/http"
	"text/template"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// EnrichmentWorkflow orchestrates one content-generation run for a single
// VideoRecord.
type EnrichmentWorkflow struct {
	cor.BaseCommand
	config          *cloud.Config
	objectStore     cloud.ObjectStore
	recordStore     commands.RecordStore
	decoder         commands.FrameDecoder
	genaiModel      *cloud.QuotaAwareGenerativeAIModel
	instant         model.Instant
	contentTemplate *template.Template
	hashtagTemplate *template.Template
	chain           cor.Chain
}

// Execute runs the enrichment workflow by invoking the underlying chain.
func (w *EnrichmentWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this workflow.
func (w *EnrichmentWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Steps 1-2 mirror the thumbnail workflow: locate and fetch the binary.
	out.AddCommand(commands.NewPathResolver("resolve-video-path"))
	out.AddCommand(commands.NewBlobFetch("fetch-video-blob",
		w.objectStore, http.DefaultClient, w.config.Storage.VideoBucket, commands.TempFilePrefix))

	// Step 3: Decode the sampled frame. The analysis profile is what the
	// model sees; the thumbnail profile is produced but unused here.
	out.AddCommand(commands.NewFrameExtract("extract-analysis-frame",
		w.decoder,
		w.instant,
		commands.EncodingProfile{MaxDimension: w.config.Pipeline.ThumbnailMaxDim, Quality: w.config.Pipeline.ThumbnailQuality},
		commands.EncodingProfile{MaxDimension: w.config.Pipeline.AnalysisMaxDim, Quality: w.config.Pipeline.AnalysisQuality}))

	// Step 4: Stage the analysis frame under the temp prefix so the model can
	// reference it by URI. The command registers a finalizer that removes the
	// staged object when the invocation closes.
	out.AddCommand(commands.NewFramePublish("stage-analysis-frame",
		w.objectStore, w.config.Storage.VideoBucket, w.config.Storage.TempPrefix))

	// Step 5: Generate title and description from the staged frame. Model
	// failures degrade to placeholder content; they never fail the chain.
	out.AddCommand(commands.NewContentGenerator("generate-content",
		w.genaiModel, w.contentTemplate,
		w.config.Pipeline.TitleMaxLength, w.config.Pipeline.DescriptionMaxLen))

	// Step 6: Generate hashtags from the title and description.
	out.AddCommand(commands.NewHashtagGenerator("generate-hashtags",
		w.genaiModel, w.hashtagTemplate, w.config.Pipeline.MaxHashtags))

	// Step 7: Persist the generated content to the record.
	out.AddCommand(commands.NewContentUpdate("write-video-content", w.recordStore))

	w.chain = out
}

// NewEnrichmentWorkflow is the constructor for the EnrichmentWorkflow. It
// compiles the prompt templates and initializes the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - objectStore: The blob store holding videos and derived artifacts.
//   - recordStore: The record store for content updates.
//   - decoder: The single-frame decoder (ffmpeg in production).
//   - genaiModel: The rate-limited generative model to prompt.
//   - instant: Which frame to sample (middle by default; callers may pass an
//     explicit timestamp).
func NewEnrichmentWorkflow(
	config *cloud.Config,
	objectStore cloud.ObjectStore,
	recordStore commands.RecordStore,
	decoder commands.FrameDecoder,
	genaiModel *cloud.QuotaAwareGenerativeAIModel,
	instant model.Instant) *EnrichmentWorkflow {

	contentTemplate, err := template.New("content-template").Parse(config.PromptTemplates.ContentPrompt)
	if err != nil {
		panic(err) // Panic on failure, as the app cannot run without valid templates.
	}
	hashtagTemplate, err := template.New("hashtag-template").Parse(config.PromptTemplates.HashtagPrompt)
	if err != nil {
		panic(err)
	}

	pipeline := &EnrichmentWorkflow{
		BaseCommand:     *cor.NewBaseCommand("enrichment-pipeline"),
		config:          config,
		objectStore:     objectStore,
		recordStore:     recordStore,
		decoder:         decoder,
		genaiModel:      genaiModel,
		instant:         instant,
		contentTemplate: contentTemplate,
		hashtagTemplate: hashtagTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}
