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
// command that turns a queued message into a pipeline job.
//
// Logic Flow:
// The Pub/Sub listener places the raw message body in the context input and
// acknowledges the message when this command records no error.
//
//  1. The body is parsed as a pipeline request. A body that does not parse or
//     validate can never succeed, so it is logged and dropped.
//  2. The request is handed to the job service exactly like an HTTP request,
//     which means it preempts whatever job is running.
//  3. A job that was itself preempted by a newer request is also dropped; the
//     newer request is the one the caller wants.
//  4. Every other failure is recorded so the message is redelivered.
package commands

import (
	goctx "context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// PipelineRunner runs a combined pipeline job to completion.
type PipelineRunner interface {
	RunPipeline(ctx goctx.Context, req *model.PipelineRequest) (*model.JobResult, error)
}

// JobTrigger runs one pipeline job per queued message. The message text
// under cor.CtxIn is decoded as a model.PipelineRequest and handed to the
// runner; the job result is stored as the command output.
type JobTrigger struct {
	cor.BaseCommand
	runner PipelineRunner // Admits the job into the worker's single slot.
}

// NewJobTrigger is the constructor for the JobTrigger command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - runner: The service that runs the decoded pipeline requests.
//
// Outputs:
//   - *JobTrigger: A pointer to the newly instantiated command.
func NewJobTrigger(name string, runner PipelineRunner) *JobTrigger {
	return &JobTrigger{BaseCommand: *cor.NewBaseCommand(name), runner: runner}
}

func (c *JobTrigger) Execute(context cor.Context) {
	ctx := context.GetContext()
	in, _ := context.Get(c.GetInputParam()).(string)

	var req model.PipelineRequest
	err := json.Unmarshal([]byte(in), &req)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		slog.ErrorContext(ctx, "dropping malformed job request", "error", err)
		c.GetErrorCounter().Add(ctx, 1)
		return
	}

	result, err := c.runner.RunPipeline(ctx, &req)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "queued job completed", "job_id", result.JobID, "output_path", result.OutputPath)
		c.Succeed(context, result)
	case errors.Is(err, model.ErrPreempted), errors.Is(err, model.ErrInvalidRequest):
		slog.WarnContext(ctx, "queued job dropped", "video_url", req.VideoURL, "error", err)
		c.GetErrorCounter().Add(ctx, 1)
	default:
		c.Fail(context, err)
	}
}
