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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies, such as configuration, Google Cloud service clients,
// and the application-level services for thumbnail generation and content enrichment.
//
// It ensures that the application is configured correctly based on the environment,
// initializes all necessary clients (Storage, Firestore, Pub/Sub, GenAI, IAM),
// wires the processing workflows, and starts the Pub/Sub listeners.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all service clients,
//     configures application services (MediaService, PipelineService), and starts
//     the Pub/Sub listeners.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/clipworks/video-pipeline/internal/core/services"
	"github.com/clipworks/video-pipeline/internal/core/workflow"
)

// ContentAgentModel is the logical name of the generative model used for
// title, description, and hashtag generation. It must exist in the
// agent_models section of the configuration.
const ContentAgentModel = "content-flash"

// StateManager holds all the shared dependencies for the application, acting as a
// centralized container for service clients and configurations. This avoids the
// need for global variables and makes dependency management cleaner.
type StateManager struct {
	config            *cloud.Config
	cloud             *cloud.ServiceClients
	objectStore       cloud.ObjectStore
	videoStore        *services.FirestoreVideoStore
	decoder           commands.FrameDecoder
	mediaService      *services.MediaService
	thumbnailService  *services.PipelineService
	enrichmentService *services.PipelineService
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the necessary environment variables that the configuration loader
// uses to find the correct TOML files.
//
// This function sets the prefix for the configuration directory and specifies
// the runtime environment (e.g., "local", "test", "prod"), allowing for
// environment-specific overrides of the base configuration.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	// Set the directory where configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the current runtime environment to "local". The config loader will
	// look for a ".env.local.toml" file to override base settings.
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// It ensures that the configuration is loaded from the file system only once.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded application configuration struct.
func GetConfig() *cloud.Config {
	// If the config has not been loaded yet...
	if state.config == nil {
		// Set up the environment variables required for config loading.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the .toml files into the struct.
		cloud.LoadConfig(&config)
		// Store the loaded config in the state manager.
		state.config = config
	}
	// Return the cached config.
	return state.config
}

// newEnrichmentService builds an enrichment pipeline service that samples the
// given frame instant. The HTTP handler uses this to honor per-request
// timestamps; the default service and the Pub/Sub listener sample the middle
// frame.
func (s *StateManager) newEnrichmentService(instant model.Instant) *services.PipelineService {
	enrichment := workflow.NewEnrichmentWorkflow(
		s.config,
		s.objectStore,
		s.videoStore,
		s.decoder,
		s.cloud.AgentModels[ContentAgentModel],
		instant)
	return services.NewPipelineService(
		enrichment,
		s.videoStore,
		time.Duration(s.config.Pipeline.TimeoutInSeconds)*time.Second,
		s.config.Application.ThreadPoolSize)
}

// InitState initializes the entire application state.
// It orchestrates the creation of all necessary services and clients based on the
// application configuration and wires them together.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
//
// This function performs the following steps:
//  1. Loads the application configuration.
//  2. Initializes all Google Cloud service clients (Storage, Firestore, Pub/Sub, GenAI, IAM).
//  3. Instantiates the record store, object store, and frame decoder.
//  4. Wires the thumbnail and enrichment workflows into pipeline services.
//  5. Sets up and starts the Pub/Sub listeners for processing GCS events.
func InitState(ctx context.Context) {
	// Get the application configuration.
	config := GetConfig()

	// Initialize all the base Google Cloud service clients.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}

	// Store the initialized clients in the global state.
	state.cloud = cloudClients

	// The object store wraps GCS behind the interface the pipeline commands
	// depend on.
	state.objectStore = cloud.NewGCSObjectStore(cloudClients.StorageClient)

	// The Firestore-backed record store holds one document per video.
	state.videoStore = services.NewFirestoreVideoStore(
		cloudClients.FirestoreClient, config.Firestore.VideoCollection)

	// The frame decoder shells out to ffmpeg/ffprobe for probing and
	// single-frame extraction.
	state.decoder = commands.NewFFmpegDecoder(
		config.Pipeline.FfmpegPath, config.Pipeline.FfprobePath)

	// Initialize the MediaService with its dependencies. It backs the record
	// selection queries and signed URL generation for the HTTP API.
	state.mediaService = &services.MediaService{
		Store:         state.videoStore,
		ObjectStore:   state.objectStore,
		StorageClient: cloudClients.StorageClient,
		IAMClient:     cloudClients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		VideoBucket:   config.Storage.VideoBucket,
		VideoPrefix:   config.Storage.VideoPrefix,
	}

	timeout := time.Duration(config.Pipeline.TimeoutInSeconds) * time.Second

	// Build the thumbnail pipeline: resolve, fetch, extract, upload, update.
	thumbnail := workflow.NewThumbnailWorkflow(
		config, state.objectStore, state.videoStore, state.decoder)
	state.thumbnailService = services.NewPipelineService(
		thumbnail, state.videoStore, timeout, config.Application.ThreadPoolSize)

	// Build the default enrichment pipeline, sampling the middle frame.
	state.enrichmentService = state.newEnrichmentService(model.MiddleFrame())

	// Configure and start the Pub/Sub listeners that react to GCS bucket events.
	// They dispatch through the same pipeline services as the HTTP handlers.
	SetupListeners(cloudClients, state.thumbnailService, state.enrichmentService, ctx)
}
