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

// Package api contains the HTTP routes of the worker. This file maps every
// job operation onto a POST route.
//
// Logic Flow:
//  1. The JSON body is bound to the operation's request type. A body that
//     does not bind is an InvalidRequest.
//  2. The operation runs synchronously; the response is written when the job
//     completes, fails, or is preempted.
//  3. Errors are classified with model.StatusOf and written as
//     {"status":"error","kind":...,"message":...}.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
)

// Service is the job surface the routes call. *services.JobService
// implements it.
type Service interface {
	Status() model.Job
	Reset(ctx context.Context) bool
	RunPipeline(ctx context.Context, req *model.PipelineRequest) (*model.JobResult, error)
	SmartCrop(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error)
	RemoveSilence(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error)
	MuteAudio(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error)
	AddCaptions(ctx context.Context, req *model.SourceRequest) (*model.JobResult, error)
	AddMusic(ctx context.Context, req *model.MusicRequest) (*model.JobResult, error)
	RenderClip(ctx context.Context, req *model.ClipRequest) (*model.JobResult, error)
	RenderViralClip(ctx context.Context, req *model.ViralClipRequest) (*model.JobResult, error)
	RenderMontage(ctx context.Context, req *model.MontageRequest) (*model.JobResult, error)
	AnalyzeClips(ctx context.Context, req *model.SourceRequest) (*model.AnalysisResult, error)
	Transcribe(ctx context.Context, req *model.SourceRequest) ([]model.TranscriptSegment, error)
}

var _ Service = (*services.JobService)(nil)

// JobRouter registers the operation routes on r.
func JobRouter(r gin.IRouter, service Service) {
	r.POST("/process", handle(service.RunPipeline))
	r.POST("/smart-crop", handle(service.SmartCrop))
	r.POST("/remove-silence", handle(service.RemoveSilence))
	r.POST("/mute-audio", handle(service.MuteAudio))
	r.POST("/add-captions", handle(service.AddCaptions))
	r.POST("/add-music", handle(service.AddMusic))
	r.POST("/analyze-clips", handle(service.AnalyzeClips))
	r.POST("/render-clip", handle(service.RenderClip))
	r.POST("/render-viral-clip", handle(service.RenderViralClip))
	r.POST("/render-montage", handle(service.RenderMontage))
	r.POST("/transcribe", handle(func(ctx context.Context, req *model.SourceRequest) (gin.H, error) {
		segments, err := service.Transcribe(ctx, req)
		if err != nil {
			return nil, err
		}
		if segments == nil {
			segments = []model.TranscriptSegment{}
		}
		return gin.H{"status": services.StatusCompleted, "segments": segments}, nil
	}))
}

// handle binds the body to R and writes the operation's result as JSON.
func handle[R any, T any](run func(ctx context.Context, req *R) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req R
		if err := c.ShouldBindJSON(&req); err != nil {
			WriteError(c, model.InvalidRequest(err, "malformed request body: %v", err))
			return
		}
		out, err := run(c.Request.Context(), &req)
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// WriteError writes err with the status of its taxonomy entry.
func WriteError(c *gin.Context, err error) {
	pe := model.AsPipelineError(err)
	status := model.StatusOf(pe)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "kind", pe.Kind, "error", err)
	} else {
		slog.WarnContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "kind", pe.Kind, "error", err)
	}
	c.JSON(status, gin.H{
		"status":  "error",
		"kind":    pe.Kind,
		"message": pe.Message,
	})
}
