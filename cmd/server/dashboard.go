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

// Package main contains the API route definitions for the server. This file
// defines the statistics endpoint used by dashboards and smoke checks.
//
// Functions:
//   - Dashboard: Sets up a route group for statistics-related endpoints.
package main

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipworks/video-pipeline/internal/core/model"
)

// Dashboard configures the API routes for processing statistics.
// It creates a new route group "/stats" nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//
// Outputs:
//   - This function does not return any value. It modifies the provided *gin.RouterGroup
//     by adding a new route handler.
func Dashboard(r *gin.RouterGroup) {
	// Create a new router group for any statistics-related endpoints, prefixed with "/stats".
	stats := r.Group("/stats")
	{
		// Handler for GET /stats
		// Tallies the video records by processing status and content state.
		stats.GET("", func(c *gin.Context) {
			records, err := state.videoStore.All(c.Request.Context())
			if err != nil {
				slog.Error("failed to list video records for stats", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
				return
			}

			var completed, failed, pending, withThumbnails, withContent int
			for _, record := range records {
				switch record.ProcessingStatus {
				case model.StatusCompleted:
					completed++
				case model.StatusFailed:
					failed++
				default:
					pending++
				}
				if len(record.ThumbnailUrl) > 0 {
					withThumbnails++
				}
				if record.HasContent {
					withContent++
				}
			}

			c.JSON(http.StatusOK, gin.H{
				"total":          len(records),
				"completed":      completed,
				"failed":         failed,
				"pending":        pending,
				"withThumbnails": withThumbnails,
				"withContent":    withContent,
			})
		})
	}
}
