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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// workflow type shared by every operation.
//
// Logic Flow:
// Every operation is a cor.Chain whose first command downloads the source and
// whose media-producing operations end with the same two commands:
//
//  1. `MediaDownload` fetches the request's source to {job}_step0.mp4.
//  2. The operation's own commands transform the chain input, each writing a
//     new scratch artifact and handing it on through cor.CtxOut.
//  3. `MediaFinalize` moves the last artifact to {job}_final.mp4 and keeps it.
//  4. `ArtifactUpload` copies it to the output bucket when one is configured.
//
// Closing the context after the run deletes every artifact but the kept one,
// on success and failure alike.
package workflow

import (
	"strconv"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

// MediaWorkflow runs one operation over the source of a single request.
type MediaWorkflow struct {
	cor.BaseCommand
	kind    string
	source  string
	prepare func(context cor.Context)
	chain   cor.Chain // The underlying chain of commands to be executed.
}

// IsExecutable only needs a Go context; the workflow seeds its own input.
func (m *MediaWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && m.source != ""
}

// Execute seeds the context with the source and runs the chain.
//
// Inputs:
//   - context: The chain of responsibility context for this execution. It must
//     carry the job id under model.KeyJobID.
func (m *MediaWorkflow) Execute(context cor.Context) {
	context.Add(cor.CtxIn, m.source)
	if m.prepare != nil {
		m.prepare(context)
	}
	m.chain.Execute(context)
}

// Kind returns the job kind the workflow runs as.
func (m *MediaWorkflow) Kind() string {
	return m.kind
}

// newMediaWorkflow wraps a chain. The chain carries the workflow name so
// spans and counters are grouped by operation.
func newMediaWorkflow(kind, source string, chain cor.Chain) *MediaWorkflow {
	return &MediaWorkflow{
		BaseCommand: *cor.NewBaseCommand(kind + "-workflow"),
		kind:        kind,
		source:      source,
		chain:       chain,
	}
}

func newChain(kind string, deps *Dependencies) cor.Chain {
	return cor.NewBaseChain(kind+"-chain").
		AddCommand(commands.NewMediaDownload("media-download", deps.Transcoder, deps.Storage, deps.Scratch))
}

// finish appends the commands that turn the chain input into the job's result.
func finish(chain cor.Chain, deps *Dependencies) cor.Chain {
	return chain.
		AddCommand(commands.NewMediaFinalize("media-finalize", deps.Scratch, "")).
		AddCommand(commands.NewArtifactUpload("artifact-upload", deps.Uploader))
}

// encode returns h264 codec arguments with the given preset and quality
// followed by the audio codec; crf <= 0 leaves the encoder default.
func encode(preset string, crf int, audio string) []string {
	out := []string{"-c:v", "libx264"}
	if preset != "" {
		out = append(out, "-preset", preset)
	}
	if crf > 0 {
		out = append(out, "-crf", strconv.Itoa(crf))
	}
	return append(out, "-c:a", audio)
}
