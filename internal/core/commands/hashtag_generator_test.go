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

// Package commands_test contains unit tests for the pipeline commands. This
// file covers hashtag normalization of raw model responses.
package commands_test

import (
	"testing"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/stretchr/testify/assert"
)

// TestNormalizeHashtags verifies the cleanup rules: one leading #, lowercase,
// punctuation stripped, first-seen de-duplication.
func TestNormalizeHashtags(t *testing.T) {
	raw := "#Fun, Travel  #beach!\n#fun surf."

	tags := commands.NormalizeHashtags(raw, 10)

	assert.Equal(t, []string{"#fun", "#travel", "#beach", "#surf"}, tags)
}

// TestNormalizeHashtagsCapsAtMax verifies the hard cap on the number of tags.
func TestNormalizeHashtagsCapsAtMax(t *testing.T) {
	raw := "#one #two #three #four #five #six #seven"

	tags := commands.NormalizeHashtags(raw, 5)

	assert.Equal(t, 5, len(tags))
	assert.Equal(t, "#one", tags[0])
	assert.Equal(t, "#five", tags[4])
}

// TestNormalizeHashtagsEmptyInput verifies that garbage in yields an empty
// list, never an error.
func TestNormalizeHashtagsEmptyInput(t *testing.T) {
	assert.Empty(t, commands.NormalizeHashtags("", 5))
	assert.Empty(t, commands.NormalizeHashtags("  \n\t ,,, ", 5))
}
