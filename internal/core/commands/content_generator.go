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
// command that asks a generative model for a title and description based on
// the staged analysis frame.
//
// Logic Flow:
//  1. Receives a `*VideoJob` whose analysis frame has been staged at a
//     gs:// URI.
//  2. Builds the prompt from a Go template, embedding an example of the
//     desired JSON shape (few-shot prompting).
//  3. Sends frame reference plus prompt to the model and parses the JSON
//     response into a ContentResult, truncating overlong fields.
//  4. A model or parse failure degrades to the placeholder content rather
//     than failing the invocation. The fallback is applied here, at the call
//     site, on an explicit error return.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"google.golang.org/genai"
)

// Placeholder content used when the model call fails or returns something
// unparsable. Batch selection treats records carrying these values as still
// needing content.
const (
	FallbackTitle       = "Untitled Video"
	FallbackDescription = "No description available"
)

// ContentGenerator asks the model for a title and description of the staged
// analysis frame.
type ContentGenerator struct {
	cor.BaseCommand
	generativeAIModel        *cloud.QuotaAwareGenerativeAIModel
	template                 *template.Template
	titleMaxLen              int
	descriptionMaxLen        int
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// NewContentGenerator is the constructor for the ContentGenerator command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generativeAIModel: The rate-limited wrapper for the generative model client.
//   - template: A parsed Go template for the prompt.
//   - titleMaxLen, descriptionMaxLen: rune limits applied to the model output.
func NewContentGenerator(
	name string,
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel,
	template *template.Template,
	titleMaxLen int,
	descriptionMaxLen int) *ContentGenerator {

	out := &ContentGenerator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		template:          template,
		titleMaxLen:       titleMaxLen,
		descriptionMaxLen: descriptionMaxLen,
	}

	// Initialize OpenTelemetry counters for monitoring Gemini API usage for this specific command.
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.retry", out.GetName()))

	return out
}

// GenerateParams creates the map of dynamic data to be injected into the prompt template.
func (t *ContentGenerator) GenerateParams(_ cor.Context) map[string]interface{} {
	params := make(map[string]interface{})

	// Provide a complete, well-formed JSON example in the prompt. This
	// technique (few-shot prompting) significantly improves the reliability
	// and structure of the model's output.
	exampleContent, _ := json.Marshal(model.GetExampleContent())
	params["EXAMPLE_JSON"] = string(exampleContent)
	return params
}

// Execute prompts the model and attaches the (possibly fallback) content to
// the job.
func (t *ContentGenerator) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*VideoJob)

	var buffer bytes.Buffer
	err := t.template.Execute(&buffer, t.GenerateParams(context))
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute prompt template: %w", err))
		return
	}

	// Build the multi-modal request: the text prompt plus the staged frame
	// referenced by its gs:// URI.
	fileData := cloud.NewFileData(job.FrameURI, job.Analysis.MIMEType)
	contents := cloud.NewTextPart(buffer.String())
	contents[0].Parts = append(contents[0].Parts, &genai.Part{FileData: &fileData})
	contents[0].Role = "user"

	out, err := cloud.GenerateMultiModalResponse(context.GetContext(),
		t.geminiInputTokenCounter, t.geminiOutputTokenCounter, t.geminiRetryCounter,
		0, t.generativeAIModel, contents)
	if err != nil {
		// Degrade to the placeholder; content generation must never sink an
		// otherwise healthy invocation.
		t.GetErrorCounter().Add(context.GetContext(), 1)
		log.Printf("content generation failed for video %q, using fallback: %v", job.Record.ID, err)
		job.Content = &model.ContentResult{Title: FallbackTitle, Description: FallbackDescription}
		context.Add(t.GetOutputParam(), job)
		return
	}

	content := &model.ContentResult{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), content); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		log.Printf("unparsable content response for video %q, using fallback: %v", job.Record.ID, err)
		job.Content = &model.ContentResult{Title: FallbackTitle, Description: FallbackDescription}
		context.Add(t.GetOutputParam(), job)
		return
	}

	content.Title = truncateRunes(strings.TrimSpace(content.Title), t.titleMaxLen)
	content.Description = truncateRunes(strings.TrimSpace(content.Description), t.descriptionMaxLen)
	if content.Title == "" {
		content.Title = FallbackTitle
	}
	if content.Description == "" {
		content.Description = FallbackDescription
	}

	job.Content = content
	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}

// truncateRunes limits a string to max runes, not bytes, so a multi-byte
// character is never cut in half.
func truncateRunes(in string, max int) string {
	if max <= 0 {
		return in
	}
	runes := []rune(in)
	if len(runes) <= max {
		return in
	}
	return string(runes[:max])
}
