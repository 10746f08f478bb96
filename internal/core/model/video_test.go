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

// Package model_test contains unit tests for the data models and the path
// helpers used to derive record identifiers from storage object names.
package model_test

import (
	"testing"

	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// TestVideoIDFromPath verifies that identifiers are derived from the object
// basename with the extension stripped, regardless of directory depth.
func TestVideoIDFromPath(t *testing.T) {
	assert.Equal(t, "v1", model.VideoIDFromPath("videos/v1.mp4"))
	assert.Equal(t, "v1", model.VideoIDFromPath("v1.mp4"))
	assert.Equal(t, "trailer-001", model.VideoIDFromPath("raw/2024/trailer-001.webm"))
	// An extensionless name is already an identifier.
	assert.Equal(t, "v1", model.VideoIDFromPath("videos/v1"))
}

// TestIsVideoPath verifies extension matching, including case insensitivity.
func TestIsVideoPath(t *testing.T) {
	assert.True(t, model.IsVideoPath("videos/v1.mp4"))
	assert.True(t, model.IsVideoPath("videos/V1.MOV"))
	assert.False(t, model.IsVideoPath("thumbnails/v1.jpg"))
	assert.False(t, model.IsVideoPath("videos/notes.txt"))
	assert.False(t, model.IsVideoPath("videos/v1"))
}

// TestFrameInstants verifies the three frame-selection constructors.
func TestFrameInstants(t *testing.T) {
	assert.False(t, model.FirstFrame().Middle)
	assert.Equal(t, 0.0, model.FirstFrame().Timestamp)
	assert.True(t, model.MiddleFrame().Middle)
	assert.Equal(t, 2.5, model.AtTimestamp(2.5).Timestamp)
}
