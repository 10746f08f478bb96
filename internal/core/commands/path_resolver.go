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
// path-resolution step of the video pipeline: given a record whose location
// fields may be missing, stale, or inconsistently extensioned, it produces the
// ordered list of storage locations the fetcher should probe.
//
// Logic Flow:
//  1. Receives a `*model.VideoRecord` from the context.
//  2. Builds the candidate list from storagePath, storageUrl, and a set of
//     conventional fallback locations derived from the record identifier.
//  3. Wraps record and candidates in a `*VideoJob` and passes it down the chain.
//
// Resolution is deterministic and never fails: a record with no usable
// location fields still yields the fallback list.
package commands

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
)

// objectPathMarker is the segment of a GCS HTTPS URL that precedes the
// URL-encoded object name (e.g. .../o/videos%2Fv1.mp4?alt=media).
const objectPathMarker = "/o/"

// VideoJob is the unit of state piped through the processing chain. Each
// command reads the fields populated by its predecessors and fills in its own.
type VideoJob struct {
	Record       *model.VideoRecord
	Candidates   []string            // ordered storage locations to probe
	ResolvedPath string              // the candidate that actually yielded a file
	LocalFile    string              // temp file holding the downloaded video
	Dimensions   *model.Dimensions   // stream metadata from the extractor
	Thumbnail    *model.EncodedImage // bounded, encoded thumbnail frame
	Analysis     *model.EncodedImage // smaller frame used for model analysis
	FrameURI     string              // gs:// URI of the transient analysis frame
	Content      *model.ContentResult
	Hashtags     []string
	ThumbnailURL string // gs:// URI of the published thumbnail
}

// ResolveCandidates produces the ordered, de-duplicated list of storage
// locations to probe for a record's video binary. Order is significant: the
// fetcher stops at the first candidate that yields a file.
func ResolveCandidates(record *model.VideoRecord) []string {
	candidates := make([]string, 0, 10)

	// 1. The recorded storage path, plus an extension-stripped variant to
	// cover data written under inconsistent extension conventions.
	if record.StoragePath != "" {
		candidates = append(candidates, record.StoragePath)
		for _, ext := range model.VideoExtensions {
			if strings.HasSuffix(strings.ToLower(record.StoragePath), ext) {
				candidates = append(candidates, record.StoragePath[:len(record.StoragePath)-len(ext)])
				break
			}
		}
	}

	// 2. The recorded URL, both verbatim (for the direct-fetch strategy) and
	// reduced to the object key it points at.
	if record.StorageUrl != "" {
		candidates = append(candidates, record.StorageUrl)
		if derived := objectKeyFromURL(record.StorageUrl); derived != "" {
			candidates = append(candidates, derived)
		}
	}

	// 3. Conventional locations derived from the identifier.
	id := record.ID
	candidates = append(candidates,
		fmt.Sprintf("videos/%s.mp4", id),
		fmt.Sprintf("videos/%s", id),
		fmt.Sprintf("raw/%s.mp4", id),
		fmt.Sprintf("raw/%s", id),
		id+".mp4",
		id,
	)

	// 4. Drop empties and duplicates, preserving first-seen order.
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// objectKeyFromURL extracts the bucket-relative object key from a storage URL.
// Both the gs://bucket/key form and the HTTPS API form with an /o/ marker are
// understood; anything else yields "".
func objectKeyFromURL(storageURL string) string {
	if strings.HasPrefix(storageURL, "gs://") {
		rest := strings.TrimPrefix(storageURL, "gs://")
		if idx := strings.Index(rest, "/"); idx >= 0 {
			return rest[idx+1:]
		}
		return ""
	}
	if strings.HasPrefix(storageURL, "http://") || strings.HasPrefix(storageURL, "https://") {
		idx := strings.Index(storageURL, objectPathMarker)
		if idx < 0 {
			return ""
		}
		segment := storageURL[idx+len(objectPathMarker):]
		if q := strings.Index(segment, "?"); q >= 0 {
			segment = segment[:q]
		}
		decoded, err := url.QueryUnescape(segment)
		if err != nil {
			return segment
		}
		return decoded
	}
	return ""
}

// PathResolver is the command that turns a VideoRecord into a VideoJob with a
// populated candidate list.
type PathResolver struct {
	cor.BaseCommand
}

// NewPathResolver is the constructor for the PathResolver command.
func NewPathResolver(name string) *PathResolver {
	return &PathResolver{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute resolves the candidate locations for the record in the context.
func (c *PathResolver) Execute(context cor.Context) {
	record, ok := context.Get(c.GetInputParam()).(*model.VideoRecord)
	if !ok || record == nil || record.ID == "" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("input is not a video record with a non-empty identifier"))
		return
	}

	job := &VideoJob{
		Record:     record,
		Candidates: ResolveCandidates(record),
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), job)
}
