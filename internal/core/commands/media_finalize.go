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
// command that ends every media-producing chain.
//
// Logic Flow:
//  1. The last rendered artifact is moved to its final name in the scratch
//     directory, "{job}_final.mp4" unless the workflow names another suffix.
//  2. The final file is removed from the intermediate list so that closing
//     the chain context deletes everything except the deliverable.
//  3. The final path is stored under model.KeyFinalPath for the upload and
//     for the job result.
//  4. A job that fails or is preempted after this point hands the artifact
//     back with DiscardFinal, so nothing outlives a job without a result.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// MediaFinalize promotes the chain input to the job's final artifact.
type MediaFinalize struct {
	cor.BaseCommand
	scratch Scratch
	suffix  string
}

func NewMediaFinalize(name string, scratch Scratch, suffix string) *MediaFinalize {
	if suffix == "" {
		suffix = SuffixFinal
	}
	return &MediaFinalize{BaseCommand: *cor.NewBaseCommand(name), scratch: scratch, suffix: suffix}
}

func (c *MediaFinalize) Execute(context cor.Context) {
	in := InputPath(context)
	final := c.scratch.Path(JobID(context), c.suffix)
	if in != final {
		if err := MoveFile(in, final); err != nil {
			c.Fail(context, model.ProcessFailure(err, "could not finalize %s", in))
			return
		}
	}
	context.KeepFile(final)
	context.Add(model.KeyFinalPath, final)
	slog.InfoContext(context.GetContext(), "artifact finalized", "job_id", JobID(context), "path", final)
	c.Succeed(context, final)
}

// DiscardFinal returns the finalized artifact to the temporary files of the
// context, so closing it deletes the file.
func DiscardFinal(context cor.Context) {
	final, ok := context.Get(model.KeyFinalPath).(string)
	if !ok {
		return
	}
	context.AddTempFile(final)
	context.Remove(model.KeyFinalPath)
}
