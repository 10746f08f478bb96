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

// Package cloud_test contains unit tests for the cloud configuration
// structures, verifying that the TOML layout the loader expects maps onto the
// config structs.
package cloud_test

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/zeebo/assert"
)

// testConfigTOML mirrors the layout of configs/.env.toml.
const testConfigTOML = `
[application]
name = "video-pipeline"
google_project_id = "clipworks-test"
location = "us-central1"
thread_pool_size = 3
signer_service_account_email = "signer@clipworks-test.iam.gserviceaccount.com"

[storage]
video_bucket = "clipworks-media"
video_prefix = "videos/"
thumbnail_prefix = "thumbnails/"
temp_prefix = "temp/"

[firestore]
video_collection = "videos"

[pipeline]
ffmpeg_path = "ffmpeg"
ffprobe_path = "ffprobe"
thumbnail_max_dim = 1000
thumbnail_quality = 85
analysis_max_dim = 384
analysis_quality = 60
timeout_in_seconds = 300
max_hashtags = 5
title_max_length = 50
description_max_length = 150

[prompt_templates]
content = "describe {{.EXAMPLE_JSON}}"
hashtags = "tags for {{.TITLE}}"

[topic_subscriptions]
[topic_subscriptions.VideoUploads]
name = "video-uploads-sub"
dead_letter_topic = "video-uploads-dead-letter"
timeout_in_seconds = 60

[agent_models]
[agent_models.content-flash]
model = "gemini-2.0-flash"
system_instructions = "be concise"
temperature = 0.6
top_p = 0.95
top_k = 40.0
max_tokens = 1024
output_format = "application/json"
rate_limit = 60
`

// TestConfigDecodesFromTOML verifies that every section of the configuration
// file lands on the right struct field.
func TestConfigDecodesFromTOML(t *testing.T) {
	config := cloud.NewConfig()
	_, err := toml.Decode(testConfigTOML, config)
	assert.NoError(t, err)

	assert.Equal(t, "video-pipeline", config.Application.Name)
	assert.Equal(t, "clipworks-test", config.Application.GoogleProjectId)
	assert.Equal(t, 3, config.Application.ThreadPoolSize)

	assert.Equal(t, "clipworks-media", config.Storage.VideoBucket)
	assert.Equal(t, "thumbnails/", config.Storage.ThumbnailPrefix)
	assert.Equal(t, "videos", config.Firestore.VideoCollection)

	assert.Equal(t, 1000, config.Pipeline.ThumbnailMaxDim)
	assert.Equal(t, 85, config.Pipeline.ThumbnailQuality)
	assert.Equal(t, 384, config.Pipeline.AnalysisMaxDim)
	assert.Equal(t, 300, config.Pipeline.TimeoutInSeconds)
	assert.Equal(t, 50, config.Pipeline.TitleMaxLength)
	assert.Equal(t, 150, config.Pipeline.DescriptionMaxLen)

	sub, ok := config.TopicSubscriptions["VideoUploads"]
	assert.True(t, ok)
	assert.Equal(t, "video-uploads-sub", sub.Name)

	agent, ok := config.AgentModels["content-flash"]
	assert.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", agent.Model)
	assert.Equal(t, 60, agent.RateLimit)
}
