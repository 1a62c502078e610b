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
// command that publishes the final artifact to Cloud Storage.
//
// Logic Flow:
//  1. The command only runs when an output bucket is configured and the chain
//     finalized an artifact.
//  2. The artifact is streamed to the output bucket under the upload prefix.
//  3. The public or signed URL is stored under model.KeyOutputURL.
//  4. The local artifact is the contract of every operation, so a failed
//     upload is logged and counted but never fails the job. A cancelled
//     upload does fail it, and the artifact is discarded with the job.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// ArtifactUpload copies the finalized artifact to the output bucket.
type ArtifactUpload struct {
	cor.BaseCommand
	uploader *cloud.Uploader // Writes to the output bucket and signs the URL.
}

// NewArtifactUpload creates the command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - uploader: The output bucket uploader. A nil or unconfigured uploader
//     makes the command a no-op.
//
// Outputs:
//   - *ArtifactUpload: A pointer to the newly instantiated command. It reads
//     model.KeyFinalPath and writes model.KeyOutputURL.
func NewArtifactUpload(name string, uploader *cloud.Uploader) *ArtifactUpload {
	return &ArtifactUpload{BaseCommand: *cor.NewBaseCommand(name), uploader: uploader}
}

func (c *ArtifactUpload) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		c.uploader.Enabled() &&
		context.Get(model.KeyFinalPath) != nil
}

func (c *ArtifactUpload) Execute(context cor.Context) {
	path := context.Get(model.KeyFinalPath).(string)
	url, err := c.uploader.Upload(context.GetContext(), path)
	if err != nil {
		if ctxErr := context.GetContext().Err(); ctxErr != nil {
			DiscardFinal(context)
			c.Fail(context, ctxErr)
			return
		}
		slog.ErrorContext(context.GetContext(), "upload failed, keeping the local artifact", "job_id", JobID(context), "path", path, "error", err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	context.Add(model.KeyOutputURL, url)
	c.Succeed(context, nil)
}
