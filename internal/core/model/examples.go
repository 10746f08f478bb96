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

// Package model defines the core data structures for the pipeline. This file
// provides hardcoded example instances used for few-shot prompting: embedding
// a concrete example of the desired JSON output in the prompt keeps the
// model's responses consistent and parsable.
package model

// GetExampleContent returns a sample ContentResult that is serialized into the
// content-generation prompt so the model mirrors its shape.
func GetExampleContent() *ContentResult {
	return &ContentResult{
		Title:       "Sunset Surf at Ocean Beach",
		Description: "Golden-hour waves roll in as a lone surfer carves across the break at Ocean Beach.",
	}
}

// GetExampleHashtags returns a sample hashtag list in the exact format the
// hashtag prompt asks for: space-separated, #-prefixed, three to five tags.
func GetExampleHashtags() []string {
	return []string{"#surfing", "#sunset", "#oceanbeach", "#goldenhour"}
}
