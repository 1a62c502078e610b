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
// combining various commands into coherent pipelines. This file holds the
// collaborators every workflow is built from.
package workflow

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
)

// TranscriberGemini selects the generative model transcriber.
const TranscriberGemini = "gemini"

// Dependencies are the long-lived collaborators shared by every workflow.
// Workflows themselves are built per job because their chains depend on the
// request.
type Dependencies struct {
	Config      *cloud.Config
	Transcoder  *commands.Transcoder
	Scratch     commands.Scratch
	Storage     *storage.Client // May be nil.
	Uploader    *cloud.Uploader // May be nil or disabled.
	BigQuery    *bigquery.Client
	Transcriber analysis.Transcriber
	Scenes      analysis.SceneDetector
	FontFile    string // Empty falls back to the engine's named font.
}

// NewDependencies builds the workflow collaborators.
//
// Inputs:
//   - config: The application's overall configuration.
//   - clients: The initialized cloud clients; any of them may be nil.
//   - executor: Runs every external engine, normally a process.Runner.
//
// Returns:
//   - The dependencies, or an error if the transcriber cannot be built.
func NewDependencies(config *cloud.Config, clients *cloud.ServiceClients, executor process.Executor) (*Dependencies, error) {
	scratch := commands.Scratch{Dir: config.Application.ScratchDir}
	if err := os.MkdirAll(scratch.Dir, 0o755); err != nil {
		return nil, err
	}
	if clients == nil {
		clients = &cloud.ServiceClients{}
	}

	transcriber, err := newTranscriber(config, clients, executor)
	if err != nil {
		return nil, err
	}
	return &Dependencies{
		Config:     config,
		Transcoder: commands.NewTranscoder(executor, config.Engines),
		Scratch:    scratch,
		Storage:    clients.StorageClient,
		Uploader: cloud.NewUploader(clients.StorageClient, clients.IAMClient, config.Storage,
			config.Application.SignerServiceAccountEmail),
		BigQuery:    clients.BiqQueryClient,
		Transcriber: transcriber,
		Scenes: &analysis.SceneDetectCLI{
			Executor:  executor,
			Binary:    config.Engines.SceneDetect,
			Threshold: config.Analysis.SceneThreshold,
			WorkDir:   scratch.Dir,
		},
		FontFile: ResolveFontFile(config.Application.FontFiles),
	}, nil
}

func newTranscriber(config *cloud.Config, clients *cloud.ServiceClients, executor process.Executor) (analysis.Transcriber, error) {
	if strings.EqualFold(config.Analysis.Transcriber, TranscriberGemini) {
		if model, ok := clients.AgentModels[config.Analysis.TranscriberModel]; ok {
			return analysis.NewGeminiTranscriber(executor, config.Engines.FFmpeg, model, config.Application.ScratchDir)
		}
		slog.Warn("gemini transcriber requested without a configured model, using whisper",
			"model_key", config.Analysis.TranscriberModel)
	}
	return &analysis.WhisperCLI{
		Executor: executor,
		Binary:   config.Engines.Whisper,
		Model:    config.Engines.WhisperModel,
		WorkDir:  config.Application.ScratchDir,
	}, nil
}

// TranscriberReady reports whether speech can be transcribed: a generative
// transcriber is always ready, the whisper CLI only when its binary resolves.
func (d *Dependencies) TranscriberReady() bool {
	whisper, ok := d.Transcriber.(*analysis.WhisperCLI)
	if !ok {
		return d.Transcriber != nil
	}
	_, err := exec.LookPath(whisper.Binary)
	return err == nil
}

// ResolveFontFile returns the first candidate that exists, or "".
func ResolveFontFile(candidates []string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
