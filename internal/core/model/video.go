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

// Package model defines the core data structures for the video processing
// pipeline. The types in this file describe a single video record as stored
// in Firestore, the transient artifacts produced while processing it, and the
// terminal result returned to callers.
package model

import (
	"path"
	"strings"
)

// Processing status values written to the record store. The empty string means
// the record has never been touched by the pipeline.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VideoExtensions lists the file extensions the pipeline treats as video
// content, both when resolving storage paths and when filtering bucket events.
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}

// VideoRecord is the document stored under the videos collection. Location
// fields are loosely specified in existing data: either StoragePath or
// StorageUrl may be missing, stale, or carry an inconsistent extension, which
// is why path resolution probes multiple candidates.
type VideoRecord struct {
	ID               string `json:"id" firestore:"id"`
	StoragePath      string `json:"storagePath,omitempty" firestore:"storagePath,omitempty"`
	StorageUrl       string `json:"storageUrl,omitempty" firestore:"storageUrl,omitempty"`
	Title            string `json:"title,omitempty" firestore:"title,omitempty"`
	Description      string `json:"description,omitempty" firestore:"description,omitempty"`
	ThumbnailUrl     string `json:"thumbnailUrl,omitempty" firestore:"thumbnailUrl,omitempty"`
	HasContent       bool   `json:"hasContent" firestore:"hasContent"`
	ProcessingStatus string `json:"processingStatus,omitempty" firestore:"processingStatus,omitempty"`
	ProcessingError  string `json:"processingError,omitempty" firestore:"processingError,omitempty"`
}

// Dimensions holds the stream metadata extracted from a video container.
type Dimensions struct {
	Width  int `json:"width" firestore:"width"`
	Height int `json:"height" firestore:"height"`
	FPS    int `json:"fps" firestore:"fps"`
}

// EncodedImage is a compressed frame ready for upload or model analysis. The
// pixel data it was encoded from never leaves the extractor; only the encoded
// bytes travel through the rest of the pipeline.
type EncodedImage struct {
	Bytes    []byte
	MIMEType string
	Width    int
	Height   int
}

// ContentResult is the parsed response of the content-generation model call.
type ContentResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ProcessingResult is the terminal value of one pipeline invocation. It is
// returned to the caller and, on failure, mirrored into the record store's
// processingStatus and processingError fields.
type ProcessingResult struct {
	Success       bool        `json:"success"`
	VideoID       string      `json:"videoId"`
	Dimensions    *Dimensions `json:"dimensions,omitempty"`
	ThumbnailPath string      `json:"thumbnailPath,omitempty"`
	VideoPath     string      `json:"videoPath,omitempty"`
	Title         string      `json:"title,omitempty"`
	Description   string      `json:"description,omitempty"`
	Hashtags      []string    `json:"hashtags,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// BatchResult aggregates the outcomes of a batch run. A batch never aborts
// because one item failed; every item contributes a ProcessingResult.
type BatchResult struct {
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []*ProcessingResult `json:"results"`
}

// Instant selects which frame of a video to decode.
type Instant struct {
	Middle    bool
	Timestamp float64 // seconds, used when Middle is false and Timestamp > 0
}

// FirstFrame, MiddleFrame and AtTimestamp are the three frame-selection
// policies the extractor understands.
func FirstFrame() Instant             { return Instant{} }
func MiddleFrame() Instant            { return Instant{Middle: true} }
func AtTimestamp(sec float64) Instant { return Instant{Timestamp: sec} }

// VideoIDFromPath derives a record identifier from a storage object name by
// stripping any directory prefix and the file extension.
func VideoIDFromPath(storagePath string) string {
	base := path.Base(storagePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsVideoPath reports whether the object name carries a known video extension.
func IsVideoPath(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range VideoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
