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

// Package services contains the business logic behind the worker's surface.
// This file, `job_service.go`, defines the JobService, which admits every
// operation into the single job slot, runs its workflow and turns the chain
// outcome into a result or a classified error.
//
// Logic Flow:
//  1. A new job id is drawn and the slot is acquired. Operations that
//     preempt force the running job out first (last write wins); the others
//     fail with Busy.
//  2. The job runs under its own context, detached from the caller's
//     cancellation. Only a preemption or a reset cancels it, through the
//     cancel function bound in the registry.
//  3. After the chain, the context is closed so every intermediate artifact
//     is deleted, and the slot is released if this job still owns it.
//  4. A job whose context was cancelled reports Preempted whatever error the
//     interrupted engine produced. A failed job keeps no final artifact.
package services

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/jobs"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusCompleted is the status of every successful result.
const StatusCompleted = "completed"

// Recorder observes job outcomes. *telemetry.Metrics implements it.
type Recorder interface {
	JobStarted(kind string)
	JobFinished(kind string, err error)
}

// admission decides what happens when the slot is already held.
type admission int

const (
	preempt admission = iota
	rejectWhenBusy
)

type validator interface {
	Validate() error
}

// JobService runs the worker's operations.
type JobService struct {
	deps     *workflow.Dependencies
	registry *jobs.Registry
	recorder Recorder
}

// NewJobService creates the service. recorder may be nil.
func NewJobService(deps *workflow.Dependencies, registry *jobs.Registry, recorder Recorder) *JobService {
	return &JobService{deps: deps, registry: registry, recorder: recorder}
}

// Status returns a snapshot of the job slot.
func (s *JobService) Status() model.Job {
	return s.registry.Status()
}

// Reset force-preempts the running job and reports whether one was running.
func (s *JobService) Reset(ctx context.Context) bool {
	previous := s.registry.Status()
	killed := s.registry.ForcePreempt()
	slog.WarnContext(ctx, "job slot reset", "executed_kill", killed, "job_id", previous.ID, "type", previous.Kind)
	return killed
}

// RunPipeline runs the combined effects pipeline.
func (s *JobService) RunPipeline(ctx context.Context, req *model.PipelineRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindPipeline, req, func() *workflow.MediaWorkflow {
		return workflow.NewPipelineWorkflow(s.deps, req)
	})
}

// SmartCrop reframes a source to vertical.
func (s *JobService) SmartCrop(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindSmartCrop, req, func() *workflow.MediaWorkflow {
		return workflow.NewSmartCropWorkflow(s.deps, req)
	})
}

// RemoveSilence cuts the silence out of a source.
func (s *JobService) RemoveSilence(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindRemoveSilence, req, func() *workflow.MediaWorkflow {
		return workflow.NewRemoveSilenceWorkflow(s.deps, req)
	})
}

// MuteAudio drops the audio of a source.
func (s *JobService) MuteAudio(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindMuteAudio, req, func() *workflow.MediaWorkflow {
		return workflow.NewMuteAudioWorkflow(s.deps, req)
	})
}

// AddCaptions burns subtitles into a source.
func (s *JobService) AddCaptions(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindAddCaptions, req, func() *workflow.MediaWorkflow {
		return workflow.NewAddCaptionsWorkflow(s.deps, req)
	})
}

// AddMusic lays a music track under a source.
func (s *JobService) AddMusic(ctx context.Context, req *model.MusicRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindAddMusic, req, func() *workflow.MediaWorkflow {
		return workflow.NewAddMusicWorkflow(s.deps, req)
	})
}

// RenderClip renders one time-bounded clip. It never preempts.
func (s *JobService) RenderClip(ctx context.Context, req *model.ClipRequest) (*model.JobResult, error) {
	chain, jobID, err := s.run(ctx, model.KindRenderClip, rejectWhenBusy, req, func() *workflow.MediaWorkflow {
		return workflow.NewRenderClipWorkflow(s.deps, req)
	})
	if err != nil {
		return nil, err
	}
	result := mediaResult(chain, jobID)
	result.Duration = req.Interval().Duration()
	return result, nil
}

// RenderViralClip renders a clip with overlays.
func (s *JobService) RenderViralClip(ctx context.Context, req *model.ViralClipRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindRenderViralClip, req, func() *workflow.MediaWorkflow {
		return workflow.NewRenderViralClipWorkflow(s.deps, req)
	})
}

// RenderMontage concatenates an explicit segment list.
func (s *JobService) RenderMontage(ctx context.Context, req *model.MontageRequest) (*model.JobResult, error) {
	return s.media(ctx, model.KindRenderMontage, req, func() *workflow.MediaWorkflow {
		return workflow.NewRenderMontageWorkflow(s.deps, req)
	})
}

// AnalyzeClips scores the scenes of a source. It never preempts.
func (s *JobService) AnalyzeClips(ctx context.Context, req *model.SourceRequest) (*model.AnalysisResult, error) {
	chain, _, err := s.run(ctx, model.KindAnalysis, rejectWhenBusy, req, func() *workflow.MediaWorkflow {
		return workflow.NewClipAnalysisWorkflow(s.deps, req)
	})
	if err != nil {
		return nil, err
	}
	result, ok := chain.Get(model.KeyAnalysis).(*model.AnalysisResult)
	if !ok {
		return nil, model.AnalysisEngineFailure(nil, "analysis produced no result")
	}
	result.Status = StatusCompleted
	return result, nil
}

// Transcribe returns the transcript of a source. It never preempts.
func (s *JobService) Transcribe(ctx context.Context, req *model.SourceRequest) ([]model.TranscriptSegment, error) {
	chain, _, err := s.run(ctx, model.KindTranscribe, rejectWhenBusy, req, func() *workflow.MediaWorkflow {
		return workflow.NewTranscribeWorkflow(s.deps, req)
	})
	if err != nil {
		return nil, err
	}
	segments, _ := chain.Get(model.KeyTranscript).([]model.TranscriptSegment)
	return segments, nil
}

func (s *JobService) media(ctx context.Context, kind string, req validator, build func() *workflow.MediaWorkflow) (*model.JobResult, error) {
	chain, jobID, err := s.run(ctx, kind, preempt, req, build)
	if err != nil {
		return nil, err
	}
	return mediaResult(chain, jobID), nil
}

func mediaResult(chain cor.Context, jobID string) *model.JobResult {
	path, _ := chain.Get(model.KeyFinalPath).(string)
	url, _ := chain.Get(model.KeyOutputURL).(string)
	return &model.JobResult{Status: StatusCompleted, JobID: jobID, OutputPath: path, OutputURL: url}
}

// run admits a job, executes its workflow and returns the closed chain
// context. Values stay readable after Close; only the files are gone.
func (s *JobService) run(ctx context.Context, kind string, policy admission, req validator, build func() *workflow.MediaWorkflow) (cor.Context, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", model.InvalidRequest(err, "invalid %s request: %v", kind, err)
	}

	jobID := model.NewJobID()
	if err := s.acquire(ctx, jobID, kind, policy); err != nil {
		return nil, "", err
	}
	defer s.registry.Release(jobID)

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	s.registry.BindCancel(jobID, cancel)
	jobCtx = process.WithJobID(jobCtx, jobID)

	jobCtx, span := otel.Tracer("services").Start(jobCtx, kind)
	defer span.End()
	span.SetAttributes(attribute.String("job_id", jobID))

	chain := cor.NewBaseContext()
	chain.SetContext(jobCtx)
	chain.Add(model.KeyJobID, jobID)
	defer chain.Close()

	if s.recorder != nil {
		s.recorder.JobStarted(kind)
	}
	slog.InfoContext(jobCtx, "job started", "job_id", jobID, "type", kind)

	build().Execute(chain)

	var err error
	switch {
	case jobCtx.Err() != nil:
		err = model.Preempted(jobCtx.Err(), "job %s was preempted", jobID)
	case chain.Err() != nil:
		err = model.AsPipelineError(chain.Err())
	}

	if s.recorder != nil {
		s.recorder.JobFinished(kind, err)
	}
	if err != nil {
		commands.DiscardFinal(chain)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(jobCtx, "job failed", "job_id", jobID, "type", kind, "error", err)
		return chain, jobID, err
	}
	span.SetStatus(codes.Ok, StatusCompleted)
	slog.InfoContext(jobCtx, "job completed", "job_id", jobID, "type", kind)
	return chain, jobID, nil
}

func (s *JobService) acquire(ctx context.Context, jobID, kind string, policy admission) error {
	if s.registry.TryAcquire(jobID, kind) {
		return nil
	}
	current := s.registry.Status()
	if policy == rejectWhenBusy {
		return model.Busy("worker is busy with %s job %s", current.Kind, current.ID)
	}

	slog.WarnContext(ctx, "preempting running job", "job_id", current.ID, "type", current.Kind, "by", jobID)
	s.registry.ForcePreempt()
	if !s.registry.TryAcquire(jobID, kind) {
		// Another request won the slot between the preemption and the acquire.
		return model.Busy("worker was claimed by another request")
	}
	return nil
}
