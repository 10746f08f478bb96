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

// Package main contains the logic for setting up and starting the Pub/Sub message listeners.
// These listeners are responsible for initiating backend processing workflows in response to events,
// such as new video uploads to Google Cloud Storage.
//
// Functions:
//   - SetupListeners: Initializes and starts the listener for the video upload
//     topic, attaching the full ingest workflow (thumbnail + enrichment).
package main

import (
	"context"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/services"
	"github.com/clipworks/video-pipeline/internal/core/workflow"
)

// VideoUploadTopic is the logical name of the topic subscription carrying GCS
// object-finalize notifications for the video bucket. It must exist in the
// topic_subscriptions section of the configuration.
const VideoUploadTopic = "VideoUploads"

// SetupListeners configures and starts the background Pub/Sub listeners.
// It creates the ingest workflow and attaches it to the video upload topic
// listener. The ingest workflow dispatches through the same pipeline
// services as the HTTP handlers, so event-triggered runs get the identical
// timeout, cleanup, and failure-mirroring behavior.
//
// Inputs:
//   - cloudClients: A struct containing all the initialized Google Cloud service clients.
//   - thumbnails: The thumbnail pipeline service shared with the HTTP handlers.
//   - enrichment: The content enrichment pipeline service shared with the HTTP handlers.
//   - ctx: The application's root context, used to manage the lifecycle of the listeners.
//
// Outputs:
//   - This function does not return any value. It starts the listeners as background goroutines.
func SetupListeners(
	cloudClients *cloud.ServiceClients,
	thumbnails *services.PipelineService,
	enrichment *services.PipelineService,
	ctx context.Context) {

	// Create the full ingest workflow for newly uploaded videos: parse the
	// GCS notification, then run the record through the thumbnail and
	// enrichment services.
	ingest := workflow.NewIngestWorkflow(thumbnails, enrichment)

	// Assign the ingest workflow as the command to be executed by the listener
	// for the video upload topic.
	cloudClients.PubSubListeners[VideoUploadTopic].SetCommand(ingest)
	// Start the listener in a background goroutine. It will now begin receiving and processing messages from its subscription.
	cloudClients.PubSubListeners[VideoUploadTopic].Listen(ctx)
}
