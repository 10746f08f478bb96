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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for Google Cloud services, AI models, Pub/Sub topics, the frame-extraction
// pipeline, and prompt templates.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - PromptTemplates: Holds the text templates for prompts sent to GenAI models.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Configuration for Google Cloud Storage buckets and prefixes.
//   - Firestore: Configuration for the Firestore video record store.
//   - Pipeline: Tunables for the frame extraction and encoding pipeline.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// These settings are configured to be non-restrictive, allowing all content categories
// (Dangerous Content, Harassment, Hate Speech, Sexually Explicit) to pass through without
// being blocked. This is a common setup for internal or controlled environments where
// the input data is trusted.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// PromptTemplates holds the templates for different types of prompts.
type PromptTemplates struct {
	ContentPrompt string `toml:"content"`  // The template for generating a title and description from a frame.
	HashtagPrompt string `toml:"hashtags"` // The template for generating hashtags from a title and description.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets and object prefixes.
type Storage struct {
	VideoBucket     string `toml:"video_bucket"`     // The name of the bucket holding source videos.
	VideoPrefix     string `toml:"video_prefix"`     // The object prefix under which videos are uploaded.
	ThumbnailPrefix string `toml:"thumbnail_prefix"` // The object prefix for published thumbnails.
	TempPrefix      string `toml:"temp_prefix"`      // The object prefix for transient frame artifacts.
}

// Firestore represents the configuration for the video record store.
type Firestore struct {
	VideoCollection string `toml:"video_collection"` // The name of the Firestore collection holding video records.
}

// Pipeline holds tunables for frame extraction, scaling, and encoding.
type Pipeline struct {
	FfmpegPath        string `toml:"ffmpeg_path"`            // The path to the ffmpeg binary.
	FfprobePath       string `toml:"ffprobe_path"`           // The path to the ffprobe binary.
	ThumbnailMaxDim   int    `toml:"thumbnail_max_dim"`      // The bounding dimension for published thumbnails.
	ThumbnailQuality  int    `toml:"thumbnail_quality"`      // The JPEG quality for published thumbnails.
	AnalysisMaxDim    int    `toml:"analysis_max_dim"`       // The bounding dimension for frames sent to the LLM.
	AnalysisQuality   int    `toml:"analysis_quality"`       // The JPEG quality for frames sent to the LLM.
	TimeoutInSeconds  int    `toml:"timeout_in_seconds"`     // The per-video processing timeout.
	MaxHashtags       int    `toml:"max_hashtags"`           // The maximum number of hashtags to keep per video.
	TitleMaxLength    int    `toml:"title_max_length"`       // The maximum length of a generated title.
	DescriptionMaxLen int    `toml:"description_max_length"` // The maximum length of a generated description.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // The size of the worker pool for parallel processing tasks.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`             // Storage configuration.
	Firestore          Firestore                    `toml:"firestore"`           // Firestore record store configuration.
	Pipeline           Pipeline                     `toml:"pipeline"`            // Frame extraction pipeline configuration.
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`    // Prompt templates configuration.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // A map of Pub/Sub topic subscriptions, keyed by a logical name (e.g., "VideoUploads").
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // A map of Vertex AI LLM models, keyed by a logical name (e.g., "content-flash").
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// It's important to initialize the maps within the struct to avoid nil pointer panics
// when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}
