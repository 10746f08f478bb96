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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the thumbnail workflow: resolve where the video lives, fetch it, decode its
// first frame, publish the thumbnail, and complete the record.
package workflow

import (
	"net/http"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// ThumbnailWorkflow orchestrates one thumbnail run for a single VideoRecord.
// It is structured as a Chain of Responsibility (cor.Chain): each step's
// output is the next step's input, and the first recorded error stops the
// chain.
type ThumbnailWorkflow struct {
	cor.BaseCommand
	config      *cloud.Config
	objectStore cloud.ObjectStore
	recordStore commands.RecordStore
	decoder     commands.FrameDecoder
	chain       cor.Chain
}

// Execute runs the thumbnail workflow by invoking the underlying chain.
func (w *ThumbnailWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this workflow.
func (w *ThumbnailWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Turn the record's loose location fields into an ordered list of
	// candidate storage locations.
	out.AddCommand(commands.NewPathResolver("resolve-video-path"))

	// Step 2: Probe the candidates in order and download the first one that
	// yields a video to a local temp file. Exhausting the candidates is the
	// pipeline's not-found condition.
	out.AddCommand(commands.NewBlobFetch("fetch-video-blob",
		w.objectStore, http.DefaultClient, w.config.Storage.VideoBucket, commands.TempFilePrefix))

	// Step 3: Decode the first frame, normalize its color order, and encode
	// it under the thumbnail and analysis profiles.
	out.AddCommand(commands.NewFrameExtract("extract-thumbnail-frame",
		w.decoder,
		model.FirstFrame(),
		commands.EncodingProfile{MaxDimension: w.config.Pipeline.ThumbnailMaxDim, Quality: w.config.Pipeline.ThumbnailQuality},
		commands.EncodingProfile{MaxDimension: w.config.Pipeline.AnalysisMaxDim, Quality: w.config.Pipeline.AnalysisQuality}))

	// Step 4: Publish the thumbnail to its durable location.
	out.AddCommand(commands.NewThumbnailUpload("upload-thumbnail",
		w.objectStore, w.config.Storage.VideoBucket, w.config.Storage.ThumbnailPrefix))

	// Step 5: Complete the record in a single merge update: dimensions,
	// thumbnail reference, resolved storage path, status.
	out.AddCommand(commands.NewRecordUpdate("complete-video-record", w.recordStore))

	w.chain = out
}

// NewThumbnailWorkflow is the constructor for the ThumbnailWorkflow.
//
// Inputs:
//   - config: The application's overall configuration.
//   - objectStore: The blob store holding videos and derived artifacts.
//   - recordStore: The record store for completion updates.
//   - decoder: The single-frame decoder (ffmpeg in production).
func NewThumbnailWorkflow(
	config *cloud.Config,
	objectStore cloud.ObjectStore,
	recordStore commands.RecordStore,
	decoder commands.FrameDecoder) *ThumbnailWorkflow {

	pipeline := &ThumbnailWorkflow{
		BaseCommand: *cor.NewBaseCommand("thumbnail-pipeline"),
		config:      config,
		objectStore: objectStore,
		recordStore: recordStore,
		decoder:     decoder,
	}
	pipeline.initializeChain()
	return pipeline
}
