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
// frame-extraction step: decode exactly one frame from the fetched video,
// normalize its channel order, downscale it under the configured bounds, and
// JPEG-encode it at the configured qualities.
//
// Logic Flow:
//  1. Probe the container for stream metadata (dimensions, fps, frame count).
//  2. Resolve the configured instant to a concrete frame index.
//  3. Decode that one frame as raw BGR pixels and swap to RGB exactly once.
//  4. Produce two encodings from the same frame: a thumbnail-quality image
//     and a smaller analysis image for the model call. The raw pixels never
//     leave this command.
//
// A decode failure is terminal for the invocation; retrying belongs to the
// external caller, not this layer.
package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"golang.org/x/image/draw"
)

// EncodingProfile pairs a bounding dimension with a JPEG quality level.
// Thumbnails use a large bound at high quality; analysis frames a small bound
// at lower quality, since the model only needs the gist of the scene.
type EncodingProfile struct {
	MaxDimension int
	Quality      int
}

// FrameExtract decodes one frame of the fetched video and encodes it under
// the thumbnail and analysis profiles.
type FrameExtract struct {
	cor.BaseCommand
	decoder   FrameDecoder
	instant   model.Instant
	thumbnail EncodingProfile
	analysis  EncodingProfile
}

// NewFrameExtract is the constructor for the FrameExtract command.
func NewFrameExtract(name string, decoder FrameDecoder, instant model.Instant, thumbnail EncodingProfile, analysis EncodingProfile) *FrameExtract {
	return &FrameExtract{
		BaseCommand: *cor.NewBaseCommand(name),
		decoder:     decoder,
		instant:     instant,
		thumbnail:   thumbnail,
		analysis:    analysis,
	}
}

// Execute probes, decodes, normalizes, scales, and encodes a single frame.
func (c *FrameExtract) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*VideoJob)
	ctx := context.GetContext()

	meta, err := c.decoder.Probe(ctx, job.LocalFile)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to probe video %q: %w", job.Record.ID, err))
		return
	}

	index := FrameIndexFor(c.instant, meta)
	raw, err := c.decoder.DecodeFrame(ctx, job.LocalFile, index, meta)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to decode frame %d of video %q: %w", index, job.Record.ID, err))
		return
	}

	// The decoder yields BGR; swap to RGB here, unconditionally, exactly
	// once. Everything downstream assumes RGB.
	frame := BGRToRGBA(raw, meta.Width, meta.Height)

	thumb, err := encodeFrame(frame, c.thumbnail)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to encode thumbnail for video %q: %w", job.Record.ID, err))
		return
	}
	analysis, err := encodeFrame(frame, c.analysis)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to encode analysis frame for video %q: %w", job.Record.ID, err))
		return
	}

	job.Dimensions = &model.Dimensions{
		Width:  meta.Width,
		Height: meta.Height,
		FPS:    int(math.Round(meta.FPS)),
	}
	job.Thumbnail = thumb
	job.Analysis = analysis

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(c.GetOutputParam(), job)
}

// FrameIndexFor resolves a frame-selection policy to a concrete index,
// clamped to the stream's valid range.
func FrameIndexFor(instant model.Instant, meta *FrameMeta) int {
	var index int
	switch {
	case instant.Middle:
		index = meta.TotalFrames / 2
	case instant.Timestamp > 0:
		index = int(math.Floor(instant.Timestamp * meta.FPS))
	default:
		index = 0
	}
	if index < 0 {
		index = 0
	}
	if index > meta.TotalFrames-1 {
		index = meta.TotalFrames - 1
	}
	return index
}

// ScaleDimensions computes the output size for a frame under a bounding
// dimension. Both dimensions shrink by the same factor, rounded to nearest,
// preserving aspect ratio. Frames already within the bound pass through
// unchanged; this never upscales.
func ScaleDimensions(width int, height int, bound int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	if bound <= 0 || longest <= bound {
		return width, height
	}
	factor := float64(bound) / float64(longest)
	return int(math.Round(float64(width) * factor)), int(math.Round(float64(height) * factor))
}

// BGRToRGBA converts a raw bgr24 buffer into an image.RGBA, swapping the
// blue and red channels.
func BGRToRGBA(raw []byte, width int, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := y * width * 3
		dst := y * img.Stride
		for x := 0; x < width; x++ {
			img.Pix[dst+0] = raw[src+2] // R
			img.Pix[dst+1] = raw[src+1] // G
			img.Pix[dst+2] = raw[src+0] // B
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// encodeFrame scales the frame under the profile's bound and JPEG-encodes it
// at the profile's quality.
func encodeFrame(frame *image.RGBA, profile EncodingProfile) (*model.EncodedImage, error) {
	bounds := frame.Bounds()
	outW, outH := ScaleDimensions(bounds.Dx(), bounds.Dy(), profile.MaxDimension)

	var out image.Image = frame
	if outW != bounds.Dx() || outH != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), frame, bounds, draw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: profile.Quality}); err != nil {
		return nil, err
	}
	return &model.EncodedImage{
		Bytes:    buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    outW,
		Height:   outH,
	}, nil
}
