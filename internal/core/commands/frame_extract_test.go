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
// file covers single-frame extraction: frame index selection, bounded
// downscaling, channel-order normalization, and the full extract command
// against a fake decoder.
package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// fakeDecoder implements commands.FrameDecoder with canned metadata and a
// solid-color BGR frame, recording the index it was asked to decode.
type fakeDecoder struct {
	meta         *commands.FrameMeta
	probeErr     error
	decodeErr    error
	decodedIndex int
}

func (d *fakeDecoder) Probe(_ context.Context, _ string) (*commands.FrameMeta, error) {
	if d.probeErr != nil {
		return nil, d.probeErr
	}
	return d.meta, nil
}

func (d *fakeDecoder) DecodeFrame(_ context.Context, _ string, index int, meta *commands.FrameMeta) ([]byte, error) {
	if d.decodeErr != nil {
		return nil, d.decodeErr
	}
	d.decodedIndex = index
	raw := make([]byte, meta.Width*meta.Height*3)
	for i := 0; i < len(raw); i += 3 {
		raw[i+0] = 0xff // B
		raw[i+1] = 0x00 // G
		raw[i+2] = 0x10 // R
	}
	return raw, nil
}

// TestFrameIndexFor verifies the three selection policies and the clamping of
// out-of-range indices.
func TestFrameIndexFor(t *testing.T) {
	meta := &commands.FrameMeta{Width: 640, Height: 480, FPS: 30, TotalFrames: 101}

	// First frame is the default policy.
	assert.Equal(t, 0, commands.FrameIndexFor(model.FirstFrame(), meta))
	// Middle of a 101-frame stream is frame 50.
	assert.Equal(t, 50, commands.FrameIndexFor(model.MiddleFrame(), meta))
	// A timestamp resolves to floor(T * fps).
	assert.Equal(t, 75, commands.FrameIndexFor(model.AtTimestamp(2.5), meta))
	// A timestamp past the end clamps to the last frame.
	assert.Equal(t, 100, commands.FrameIndexFor(model.AtTimestamp(60), meta))
}

// TestScaleDimensions verifies aspect-preserving downscaling under a bound,
// including the no-upscale rule.
func TestScaleDimensions(t *testing.T) {
	// 1200x800 bounded at 400 shrinks by a third; the short side rounds to
	// nearest.
	w, h := commands.ScaleDimensions(1200, 800, 400)
	assert.Equal(t, 400, w)
	assert.Equal(t, 267, h)

	// Portrait orientation bounds the height instead.
	w, h = commands.ScaleDimensions(800, 1200, 400)
	assert.Equal(t, 267, w)
	assert.Equal(t, 400, h)

	// A frame already within the bound passes through untouched; this never
	// upscales.
	w, h = commands.ScaleDimensions(320, 240, 1000)
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)

	// A non-positive bound disables scaling.
	w, h = commands.ScaleDimensions(1920, 1080, 0)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

// TestBGRToRGBA verifies the single channel swap the pipeline performs.
func TestBGRToRGBA(t *testing.T) {
	// One row, two pixels: pure blue then pure red, in BGR order.
	raw := []byte{
		0xff, 0x00, 0x00, // blue pixel
		0x00, 0x00, 0xff, // red pixel
	}

	img := commands.BGRToRGBA(raw, 2, 1)

	// First pixel must come out blue in RGBA.
	assert.Equal(t, uint8(0x00), img.Pix[0]) // R
	assert.Equal(t, uint8(0x00), img.Pix[1]) // G
	assert.Equal(t, uint8(0xff), img.Pix[2]) // B
	assert.Equal(t, uint8(0xff), img.Pix[3]) // A
	// Second pixel must come out red.
	assert.Equal(t, uint8(0xff), img.Pix[4]) // R
	assert.Equal(t, uint8(0x00), img.Pix[6]) // B
}

// TestFrameExtractProducesBothEncodings runs the full command against a fake
// decoder and verifies dimensions, the decoded index, and that both JPEG
// encodings come back under their bounds.
func TestFrameExtractProducesBothEncodings(t *testing.T) {
	decoder := &fakeDecoder{meta: &commands.FrameMeta{Width: 640, Height: 480, FPS: 29.97, TotalFrames: 10}}
	extract := commands.NewFrameExtract("extract-thumbnail-frame",
		decoder,
		model.FirstFrame(),
		commands.EncodingProfile{MaxDimension: 1000, Quality: 85},
		commands.EncodingProfile{MaxDimension: 384, Quality: 60})

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	job := &commands.VideoJob{Record: &model.VideoRecord{ID: "v1"}, LocalFile: "unused"}
	ctx.Add(cor.CtxIn, job)

	extract.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, 0, decoder.decodedIndex)
	// FPS rounds to the nearest integer for the record.
	assert.Equal(t, &model.Dimensions{Width: 640, Height: 480, FPS: 30}, job.Dimensions)

	// The thumbnail is within its (non-binding) bound and JPEG encoded.
	assert.Equal(t, 640, job.Thumbnail.Width)
	assert.Equal(t, 480, job.Thumbnail.Height)
	assert.Equal(t, "image/jpeg", job.Thumbnail.MIMEType)
	assert.True(t, bytes.HasPrefix(job.Thumbnail.Bytes, []byte{0xff, 0xd8}))

	// The analysis frame is downscaled under its bound.
	assert.Equal(t, 384, job.Analysis.Width)
	assert.Equal(t, 288, job.Analysis.Height)
	assert.True(t, bytes.HasPrefix(job.Analysis.Bytes, []byte{0xff, 0xd8}))
}

// TestFrameExtractDecodeFailureIsTerminal verifies that a decode error stops
// the invocation with an error rather than producing a partial result.
func TestFrameExtractDecodeFailureIsTerminal(t *testing.T) {
	decoder := &fakeDecoder{
		meta:      &commands.FrameMeta{Width: 640, Height: 480, FPS: 30, TotalFrames: 10},
		decodeErr: errors.New("corrupt container"),
	}
	extract := commands.NewFrameExtract("extract-thumbnail-frame",
		decoder,
		model.FirstFrame(),
		commands.EncodingProfile{MaxDimension: 1000, Quality: 85},
		commands.EncodingProfile{MaxDimension: 384, Quality: 60})

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.TODO())
	ctx.Add(cor.CtxIn, &commands.VideoJob{Record: &model.VideoRecord{ID: "v1"}, LocalFile: "unused"})

	extract.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}
