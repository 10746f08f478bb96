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
// initial command of the event-triggered workflow.
//
// Logic Flow:
// GCS publishes a notification message to a Pub/Sub topic when a new object
// is finalized in the video bucket. This command parses that message and
// turns it into a VideoRecord for the pipeline.
//
//  1. The command receives the raw Pub/Sub message data as a JSON string.
//  2. It unmarshals the JSON into a `cloud.GCSPubSubNotification`.
//  3. Objects that are not video content — derived artifacts under the
//     thumbnails/temp/metadata prefixes, or files without a video extension —
//     stop the chain without error, so the message is acked and dropped.
//  4. For a video object, it builds a `model.VideoRecord` whose identifier is
//     derived from the object basename and whose storagePath is the object
//     name, and passes it to the resolver.
package commands

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// SkipPrefixes are the object-name prefixes for artifacts the pipeline itself
// writes. Events for these must never re-enter the pipeline.
var SkipPrefixes = []string{"thumbnails/", "temp/", "metadata/"}

// VideoTriggerReader parses a GCS object-finalize notification into a
// VideoRecord, filtering out non-video and derived objects.
type VideoTriggerReader struct {
	cor.BaseCommand
}

// NewVideoTriggerReader is the constructor for the VideoTriggerReader command.
func NewVideoTriggerReader(name string) *VideoTriggerReader {
	return &VideoTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute parses the notification. Filtered objects produce no output and no
// error: the chain simply stops and the message is acknowledged.
func (c *VideoTriggerReader) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var notification cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &notification); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}

	for _, prefix := range SkipPrefixes {
		if strings.HasPrefix(notification.Name, prefix) {
			log.Printf("skipping derived artifact %q", notification.Name)
			return
		}
	}
	if !model.IsVideoPath(notification.Name) {
		log.Printf("skipping non-video object %q", notification.Name)
		return
	}

	record := &model.VideoRecord{
		ID:          model.VideoIDFromPath(notification.Name),
		StoragePath: notification.Name,
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), record)
}
