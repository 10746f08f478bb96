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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that generates hashtags from the video's title and description.
//
// The model is asked for a short space-separated tag list; the response is
// normalized (leading #, no interior whitespace, de-duplicated) and capped.
// Any model failure degrades to an empty list rather than failing the
// invocation.
package commands

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// HashtagGenerator asks the model for hashtags describing the video.
type HashtagGenerator struct {
	cor.BaseCommand
	generativeAIModel        *cloud.QuotaAwareGenerativeAIModel
	template                 *template.Template
	maxTags                  int
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// NewHashtagGenerator is the constructor for the HashtagGenerator command.
func NewHashtagGenerator(
	name string,
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel,
	template *template.Template,
	maxTags int) *HashtagGenerator {

	out := &HashtagGenerator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		template:          template,
		maxTags:           maxTags,
	}

	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.retry", out.GetName()))

	return out
}

// GenerateParams injects the video's generated title and description plus an
// example of the expected output format into the prompt template.
func (t *HashtagGenerator) GenerateParams(context cor.Context) map[string]interface{} {
	job := context.Get(t.GetInputParam()).(*VideoJob)
	params := make(map[string]interface{})
	params["TITLE"] = job.Content.Title
	params["DESCRIPTION"] = job.Content.Description
	params["EXAMPLE_TAGS"] = strings.Join(model.GetExampleHashtags(), " ")
	return params
}

// Execute prompts the model and attaches the normalized tag list to the job.
func (t *HashtagGenerator) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*VideoJob)

	var buffer bytes.Buffer
	err := t.template.Execute(&buffer, t.GenerateParams(context))
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute prompt template: %w", err))
		return
	}

	// Text-only request: the prompt already carries the title and description.
	contents := cloud.NewTextPart(buffer.String())
	contents[0].Role = "user"

	out, err := cloud.GenerateMultiModalResponse(context.GetContext(),
		t.geminiInputTokenCounter, t.geminiOutputTokenCounter, t.geminiRetryCounter,
		0, t.generativeAIModel, contents)
	if err != nil {
		// Hashtags are decorative; a failed call yields an empty list.
		t.GetErrorCounter().Add(context.GetContext(), 1)
		log.Printf("hashtag generation failed for video %q, using empty list: %v", job.Record.ID, err)
		job.Hashtags = []string{}
		context.Add(t.GetOutputParam(), job)
		return
	}

	job.Hashtags = NormalizeHashtags(out, t.maxTags)
	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}

// NormalizeHashtags splits a raw model response into clean hashtags: one
// leading #, no punctuation noise, first-seen order, capped at max.
func NormalizeHashtags(raw string, max int) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == ','
	})

	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, max)
	for _, field := range fields {
		tag := strings.TrimSpace(field)
		tag = strings.Trim(tag, ".;:!\"'")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		tag = "#" + strings.ToLower(tag)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if max > 0 && len(tags) == max {
			break
		}
	}
	return tags
}
