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

// Package workflow_test contains tests for the composed processing chains.
// The workflows run against in-memory fakes for the object store, the record
// store, and the frame decoder, so they exercise the chain wiring and piping
// without any cloud backend or ffmpeg install.
package workflow_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/clipworks/video-pipeline/internal/cloud"
	"github.com/clipworks/video-pipeline/internal/core/commands"
	"github.com/clipworks/video-pipeline/internal/core/cor"
	"github.com/clipworks/video-pipeline/internal/core/model"
	"github.com/clipworks/video-pipeline/internal/core/services"
	"github.com/clipworks/video-pipeline/internal/core/workflow"
	test "github.com/clipworks/video-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

// Constants and global tracers/loggers for telemetry.
const tName = "github.com/clipworks/video-pipeline/tests/workflow"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

// fakeMP4Payload returns the smallest byte sequence the payload sniffer
// accepts as an MP4 container.
func fakeMP4Payload() []byte {
	payload := make([]byte, 32)
	copy(payload[0:4], []byte{0x00, 0x00, 0x00, 0x10})
	copy(payload[4:8], "ftyp")
	copy(payload[8:12], "isom")
	return payload
}

// fakeObjectStore is an in-memory cloud.ObjectStore keyed by bucket/name.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) key(bucket, name string) string { return bucket + "/" + name }

func (s *fakeObjectStore) Exists(_ context.Context, bucket string, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[s.key(bucket, name)]
	return ok, nil
}

func (s *fakeObjectStore) DownloadTo(_ context.Context, bucket string, name string, dest string) error {
	s.mu.Lock()
	data, ok := s.objects[s.key(bucket, name)]
	s.mu.Unlock()
	if !ok {
		return cloud.ErrObjectNotExist
	}
	return os.WriteFile(dest, data, 0o644)
}

func (s *fakeObjectStore) Upload(_ context.Context, bucket string, name string, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[s.key(bucket, name)] = data
	return nil
}

func (s *fakeObjectStore) Delete(_ context.Context, bucket string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, s.key(bucket, name))
	return nil
}

func (s *fakeObjectStore) List(_ context.Context, _ string, _ string) ([]string, error) {
	return nil, nil
}

// fakeRecordStore records terminal updates.
type fakeRecordStore struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (s *fakeRecordStore) MarkCompleted(_ context.Context, id string, _ *model.Dimensions, _ string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeRecordStore) MarkFailed(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeRecordStore) SetContent(_ context.Context, _ string, _ string, _ string, _ []string) error {
	return nil
}

// fakeDecoder yields a solid black 640x480 stream.
type fakeDecoder struct{}

func (d *fakeDecoder) Probe(_ context.Context, _ string) (*commands.FrameMeta, error) {
	return &commands.FrameMeta{Width: 640, Height: 480, FPS: 30, TotalFrames: 10}, nil
}

func (d *fakeDecoder) DecodeFrame(_ context.Context, _ string, _ int, meta *commands.FrameMeta) ([]byte, error) {
	return make([]byte, meta.Width*meta.Height*3), nil
}

func newTestConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.Storage.VideoBucket = "clipworks-media"
	config.Storage.VideoPrefix = "videos/"
	config.Storage.ThumbnailPrefix = "thumbnails/"
	config.Storage.TempPrefix = "temp/"
	config.Pipeline.ThumbnailMaxDim = 1000
	config.Pipeline.ThumbnailQuality = 85
	config.Pipeline.AnalysisMaxDim = 384
	config.Pipeline.AnalysisQuality = 60
	return config
}

// newChainContext seeds a chain context with an input and a traced Go
// context.
func newChainContext(t *testing.T, seed interface{}) cor.Context {
	goCtx, span := tracer.Start(context.Background(), t.Name())
	t.Cleanup(func() { span.End() })

	ctx := cor.NewBaseContext()
	ctx.SetContext(goCtx)
	ctx.Add(cor.CtxIn, seed)
	return ctx
}

// TestThumbnailWorkflowCompletesRecord runs the thumbnail chain for a stored
// video and verifies the job state and the completion update.
func TestThumbnailWorkflowCompletesRecord(t *testing.T) {
	objectStore := newFakeObjectStore()
	objectStore.objects["clipworks-media/videos/v1.mp4"] = fakeMP4Payload()
	recordStore := &fakeRecordStore{}

	pipeline := workflow.NewThumbnailWorkflow(newTestConfig(), objectStore, recordStore, &fakeDecoder{})

	ctx := newChainContext(t, &model.VideoRecord{ID: "v1", StoragePath: "videos/v1.mp4"})
	defer ctx.Close()
	pipeline.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	job := ctx.Get(cor.CtxOut).(*commands.VideoJob)
	assert.Equal(t, "videos/v1.mp4", job.ResolvedPath)
	assert.Equal(t, "gs://clipworks-media/thumbnails/v1.jpg", job.ThumbnailURL)
	assert.Equal(t, []string{"v1"}, recordStore.completed)

	// The thumbnail was published next to the source videos.
	exists, err := objectStore.Exists(context.Background(), "clipworks-media", "thumbnails/v1.jpg")
	assert.NoError(t, err)
	assert.True(t, exists)

	logger.Info("thumbnail workflow completed", "videoId", job.Record.ID)
}

// passThroughCommand re-emits its input, standing in for a full enrichment
// chain. It records how often it ran and whether its invocation context
// carried a deadline.
type passThroughCommand struct {
	cor.BaseCommand
	mu          sync.Mutex
	invocations int
	hadDeadline bool
}

func newPassThroughCommand(name string) *passThroughCommand {
	return &passThroughCommand{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *passThroughCommand) Execute(ctx cor.Context) {
	c.mu.Lock()
	c.invocations++
	_, c.hadDeadline = ctx.GetContext().Deadline()
	c.mu.Unlock()
	ctx.Add(c.GetOutputParam(), ctx.Get(c.GetInputParam()))
}

// newIngestFixture wires an ingest workflow over real pipeline services: the
// thumbnail chain against the given stores, and a stand-in enrichment chain.
func newIngestFixture(objectStore *fakeObjectStore, recordStore *fakeRecordStore) (*workflow.IngestWorkflow, *passThroughCommand) {
	thumbnail := workflow.NewThumbnailWorkflow(newTestConfig(), objectStore, recordStore, &fakeDecoder{})
	thumbnails := services.NewPipelineService(thumbnail, recordStore, time.Minute, 1)

	enrichStub := newPassThroughCommand("content-stand-in")
	enrichment := services.NewPipelineService(enrichStub, recordStore, time.Minute, 1)

	return workflow.NewIngestWorkflow(thumbnails, enrichment), enrichStub
}

// TestIngestWorkflowSkipsDerivedArtifacts verifies that a notification for a
// published thumbnail stops the ingest workflow cleanly: no output, no error,
// no record updates, no pipeline runs.
func TestIngestWorkflowSkipsDerivedArtifacts(t *testing.T) {
	recordStore := &fakeRecordStore{}
	ingest, enrichStub := newIngestFixture(newFakeObjectStore(), recordStore)

	ctx := newChainContext(t, test.GetTestThumbnailMessageText())
	defer ctx.Close()
	ingest.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Empty(t, recordStore.completed)
	assert.Empty(t, recordStore.failed)
	assert.Equal(t, 0, enrichStub.invocations)
}

// TestIngestWorkflowProcessesUploadEvent verifies the event path end to end:
// a video upload notification flows through the trigger reader into the
// thumbnail and enrichment services, and each per-record invocation runs
// under a deadline.
func TestIngestWorkflowProcessesUploadEvent(t *testing.T) {
	objectStore := newFakeObjectStore()
	objectStore.objects["clipworks-media/videos/test-trailer-001.mp4"] = fakeMP4Payload()
	recordStore := &fakeRecordStore{}
	ingest, enrichStub := newIngestFixture(objectStore, recordStore)

	ctx := newChainContext(t, test.GetTestVideoUploadMessageText())
	defer ctx.Close()
	ingest.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, []string{"test-trailer-001"}, recordStore.completed)
	assert.Equal(t, 1, enrichStub.invocations)
	assert.True(t, enrichStub.hadDeadline)
}

// TestIngestWorkflowMirrorsEventFailures verifies that a failing
// event-triggered run behaves exactly like a failing HTTP-triggered one: the
// failure lands in the record store as a status update, downstream services
// never run, and the chain carries the error so the message is not acked.
func TestIngestWorkflowMirrorsEventFailures(t *testing.T) {
	recordStore := &fakeRecordStore{}
	// No stored video: every resolution candidate misses.
	ingest, enrichStub := newIngestFixture(newFakeObjectStore(), recordStore)

	ctx := newChainContext(t, test.GetTestVideoUploadMessageText())
	defer ctx.Close()
	ingest.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Equal(t, []string{"test-trailer-001"}, recordStore.failed)
	assert.Empty(t, recordStore.completed)
	assert.Equal(t, 0, enrichStub.invocations)
}
