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
// Responsibility (COR) pattern's Command interface. This file wraps the
// FFmpeg tool suite behind the FrameDecoder interface: ffprobe reads stream
// metadata and ffmpeg decodes exactly one raw frame to stdout.
//
// Logic Flow:
//  1. `Probe` shells out to ffprobe with JSON output, reading the first video
//     stream's width, height, frame rate, and frame count. Containers that
//     don't record a frame count fall back to duration times fps.
//  2. `DecodeFrame` shells out to ffmpeg with a select filter pinned to one
//     frame index, emitting raw bgr24 pixels on stdout. The caller owns
//     channel-order correction and any scaling.
//
// Both calls run under the invocation's context, so a wedged subprocess is
// killed when the invocation times out.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Default executable names; overridable through configuration for containers
// that install the tools elsewhere.
const (
	DefaultFfmpegPath  = "ffmpeg"
	DefaultFfprobePath = "ffprobe"
	TempFilePrefix     = "video-pipeline-"
)

// FrameMeta is the stream metadata the extractor needs to pick and interpret
// a frame.
type FrameMeta struct {
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
}

// FrameDecoder abstracts single-frame decoding so the pipeline can be tested
// without ffmpeg installed.
type FrameDecoder interface {
	// Probe reads stream metadata from the container at path.
	Probe(ctx context.Context, path string) (*FrameMeta, error)

	// DecodeFrame decodes the frame at index into raw BGR bytes, row-major,
	// three bytes per pixel, meta.Width*meta.Height*3 long.
	DecodeFrame(ctx context.Context, path string, index int, meta *FrameMeta) ([]byte, error)
}

// FFmpegDecoder implements FrameDecoder by shelling out to ffprobe/ffmpeg.
type FFmpegDecoder struct {
	FfmpegPath  string
	FfprobePath string
}

// NewFFmpegDecoder builds a decoder, substituting the default executable
// names for empty paths.
func NewFFmpegDecoder(ffmpegPath string, ffprobePath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFfmpegPath
	}
	if ffprobePath == "" {
		ffprobePath = DefaultFfprobePath
	}
	return &FFmpegDecoder{FfmpegPath: ffmpegPath, FfprobePath: ffprobePath}
}

// ffprobeOutput mirrors the subset of ffprobe's JSON output the decoder reads.
type ffprobeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (*FrameMeta, error) {
	cmd := exec.CommandContext(ctx, d.FfprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}

	stream := probe.Streams[0]
	fps := parseRational(stream.RFrameRate)
	if fps <= 0 {
		return nil, fmt.Errorf("unusable frame rate %q in %s", stream.RFrameRate, path)
	}

	total, err := strconv.Atoi(stream.NbFrames)
	if err != nil || total <= 0 {
		// Some containers omit nb_frames; estimate from duration.
		duration, derr := strconv.ParseFloat(probe.Format.Duration, 64)
		if derr != nil || duration <= 0 {
			return nil, fmt.Errorf("cannot determine frame count of %s", path)
		}
		total = int(math.Floor(duration * fps))
		if total < 1 {
			total = 1
		}
	}

	return &FrameMeta{
		Width:       stream.Width,
		Height:      stream.Height,
		FPS:         fps,
		TotalFrames: total,
	}, nil
}

func (d *FFmpegDecoder) DecodeFrame(ctx context.Context, path string, index int, meta *FrameMeta) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.FfmpegPath,
		"-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-vframes", "1",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed to decode frame %d of %s: %w (%s)", index, path, err, strings.TrimSpace(stderr.String()))
	}

	want := meta.Width * meta.Height * 3
	if stdout.Len() != want {
		return nil, fmt.Errorf("decoded frame %d of %s is %d bytes, want %d", index, path, stdout.Len(), want)
	}
	return stdout.Bytes(), nil
}

// parseRational converts ffprobe's rational frame rate (e.g. "30/1",
// "30000/1001") to a float. Returns 0 for unparsable input.
func parseRational(in string) float64 {
	parts := strings.SplitN(in, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
