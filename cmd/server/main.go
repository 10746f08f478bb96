// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the video pipeline backend server.
//
// This application sets up and runs a web server using the Gin framework. It provides a REST API
// for generating video thumbnails and AI content enrichment. The server is instrumented with
// OpenTelemetry for logging, tracing, and metrics, providing observability into the
// application's performance.
//
// The main function initializes the application's configuration, sets up logging and telemetry,
// and initializes the application state, including clients for Google Cloud services. It defines
// API routes for running the thumbnail and enrichment pipelines and for generating signed
// thumbnail URLs.
//
// The server also sets up and manages a background listener for the video upload Pub/Sub topic,
// which triggers the full ingest workflow (thumbnail + enrichment) when new video files are
// uploaded to Google Cloud Storage.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server, configures routes,
//     initializes services, and handles graceful shutdown.
//   - PipelineRouter: Sets up the API routes for the thumbnail and enrichment pipelines.
//   - VideoRouter: Sets up the API routes for reading video records and signed thumbnail URLs.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/clipworks/video-pipeline/internal/telemetry"
)

// ThumbnailRequest is the body of POST /api/v1/thumbnails. An empty body runs
// the pipeline for every video record still missing a thumbnail.
type ThumbnailRequest struct {
	VideoPath string `json:"videoPath"`
}

// EnrichRequest is the body of POST /api/v1/enrich. Either videoPath names a
// single video, or action "process_all" selects every video needing content
// (all videos when force is set). Timestamp, when present, overrides the
// middle-frame default for analysis frame sampling.
type EnrichRequest struct {
	VideoPath string   `json:"videoPath"`
	Action    string   `json:"action"`
	Force     bool     `json:"force"`
	Timestamp *float64 `json:"timestamp"`
}

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, cloud services,
// the web server, API routes, and background listeners. It also handles graceful
// shutdown of the server upon receiving an interrupt signal.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Create a new context that can be cancelled. This is the root context for the application.
	ctx, cancel := context.WithCancel(context.Background())
	// Defer the cancel function to be called when main exits, ensuring all child contexts are cancelled.
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	// Initialize the application's state, including all necessary service clients.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Add OpenTelemetry middleware to the Gin router to trace incoming requests.
	// This will automatically create spans for each request.
	r.Use(otelgin.Middleware("video-pipeline-server"))

	// Configure Cross-Origin Resource Sharing (CORS) middleware.
	// Using cors.Default() provides a permissive configuration suitable for development,
	// allowing requests from any origin.
	r.Use(cors.Default())

	// Liveness endpoint for load balancers and uptime checks.
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		// Register the pipeline, video record, and statistics routes within
		// the API group.
		PipelineRouter(apiV1)
		VideoRouter(apiV1)
		Dashboard(apiV1)
	}

	// Configure the HTTP server with the address and handler.
	srv := &http.Server{
		Addr:         ":8080",
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	// Set up a channel to listen for OS interrupt signals (e.g., Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// Block until a signal is received on the quit channel.
	<-quit
	slog.Info("Shutdown Server ...")

	// Create a context with a timeout for the graceful shutdown.
	// This gives active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// recordForPath builds the loosely-specified record a pipeline invocation
// starts from. The ID is derived from the object basename; the path itself is
// carried as the first resolution candidate.
func recordForPath(videoPath string) *model.VideoRecord {
	return &model.VideoRecord{
		ID:          model.VideoIDFromPath(videoPath),
		StoragePath: videoPath,
	}
}

// PipelineRouter sets up the API routes that run the processing pipelines.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the pipeline routes will be added. This allows
//     nesting routes under a common path prefix (e.g., "/api/v1").
//
// Outputs:
//   - This function does not return any values. It modifies the provided *gin.RouterGroup
//     by adding new route handlers.
//
// This function defines the following endpoints:
//   - POST /thumbnails: Runs the thumbnail pipeline for one video, or for every
//     video record still missing a thumbnail when no videoPath is given.
//   - POST /enrich: Runs the content enrichment pipeline for one video, or for
//     every video needing content when action is "process_all".
//
// Both endpoints always respond with structured JSON. A single run returns a
// ProcessingResult; a batch run returns a BatchResult with per-item results.
// A batch never aborts because one item failed.
func PipelineRouter(r *gin.RouterGroup) {
	// Handler for POST /thumbnails
	r.POST("/thumbnails", func(c *gin.Context) {
		var req ThumbnailRequest
		// An empty body is valid and selects the batch path.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		// Single video: run the pipeline once and return its result.
		if len(req.VideoPath) > 0 {
			result := state.thumbnailService.Process(c.Request.Context(), recordForPath(req.VideoPath))
			c.JSON(http.StatusOK, result)
			return
		}

		// Batch: every record still missing a thumbnail.
		records, err := state.mediaService.VideosWithoutThumbnails(c.Request.Context())
		if err != nil {
			slog.Error("failed to list videos without thumbnails", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
			return
		}
		out := state.thumbnailService.ProcessBatch(c.Request.Context(), records)
		c.JSON(http.StatusOK, out)
	})

	// Handler for POST /enrich
	r.POST("/enrich", func(c *gin.Context) {
		var req EnrichRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The default service samples the middle frame. An explicit timestamp
		// gets a pipeline of its own.
		service := state.enrichmentService
		if req.Timestamp != nil {
			service = state.newEnrichmentService(model.AtTimestamp(*req.Timestamp))
		}

		// Single video: run the pipeline once and return its result.
		if len(req.VideoPath) > 0 {
			result := service.Process(c.Request.Context(), recordForPath(req.VideoPath))
			c.JSON(http.StatusOK, result)
			return
		}

		// Batch: every video needing content, or all of them when forced.
		if req.Action != "process_all" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "videoPath or action \"process_all\" required"})
			return
		}
		records, err := state.mediaService.VideosNeedingContent(c.Request.Context(), req.Force)
		if err != nil {
			slog.Error("failed to list videos needing content", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
			return
		}
		out := service.ProcessBatch(c.Request.Context(), records)
		c.JSON(http.StatusOK, out)
	})
}

// VideoRouter sets up the API routes for reading video records.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the video routes will be added.
//
// Outputs:
//   - This function does not return any values. It registers the routes on the
//     provided router group.
//
// This function defines the following endpoints:
//   - GET /videos/:id: Retrieves the full video record by its ID.
//   - GET /videos/:id/thumbnail: Generates a time-limited, signed URL for the
//     video's thumbnail.
func VideoRouter(r *gin.RouterGroup) {
	// Group all video-record routes under the "/videos" path.
	videos := r.Group("/videos")
	{
		// Handler for GET /videos/:id
		videos.GET("/:id", func(c *gin.Context) {
			// Get the video ID from the URL path.
			id := c.Param("id")
			// Fetch the record by its ID.
			record, err := state.videoStore.Get(c.Request.Context(), id)
			if err != nil {
				slog.Error("failed to get video record", "id", id, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get video"})
				return
			}
			if record == nil {
				// If not found, return a 404 status.
				c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
				return
			}
			// Return the record as JSON.
			c.JSON(http.StatusOK, record)
		})

		// Handler for GET /videos/:id/thumbnail
		// This endpoint provides a secure, time-limited URL for clients to fetch
		// the published thumbnail.
		videos.GET("/:id/thumbnail", func(c *gin.Context) {
			id := c.Param("id")
			// Fetch the record to get the thumbnail's GCS URL.
			record, err := state.videoStore.Get(c.Request.Context(), id)
			if err != nil {
				slog.Error("failed to get video record", "id", id, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get video"})
				return
			}
			if record == nil || len(record.ThumbnailUrl) == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "Thumbnail not found"})
				return
			}

			// Generate a signed URL valid for 15 minutes for the thumbnail object.
			signedURL, err := state.mediaService.GenerateSignedURL(c.Request.Context(), record.ThumbnailUrl, 15*time.Minute)
			if err != nil {
				slog.Error("failed to generate signed URL", "id", id, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate thumbnail URL"})
				return
			}
			// Return the signed URL in the JSON response.
			c.JSON(http.StatusOK, gin.H{"url": signedURL})
		})
	}
}
