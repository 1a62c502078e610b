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
// operations whose result is data instead of a media artifact.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// NewClipAnalysisWorkflow scores the scenes of a source and, when a clip
// table is configured, streams the candidates to BigQuery. The result is
// left under model.KeyAnalysis.
func NewClipAnalysisWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	cfg := deps.Config
	coordinator := analysis.NewCoordinator(deps.Transcriber, deps.Scenes, analysis.Options{
		Downscale:   cfg.Analysis.Downscale,
		MinDuration: cfg.Analysis.MinSceneDuration,
		TopN:        cfg.Analysis.TopN,
	})

	chain := newChain(model.KindAnalysis, deps).
		AddCommand(commands.NewClipAnalyze("clip-analyze", coordinator)).
		AddCommand(commands.NewClipPersist("clip-persist", deps.BigQuery,
			cfg.BigQueryDataSource.DatasetName, cfg.BigQueryDataSource.ClipTable))
	return newMediaWorkflow(model.KindAnalysis, req.VideoURL, chain)
}

// NewTranscribeWorkflow transcribes a source. The segments are left under
// model.KeyTranscript.
func NewTranscribeWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	chain := newChain(model.KindTranscribe, deps).
		AddCommand(commands.NewTranscribe("transcribe", deps.Transcriber, false, commands.Always))
	return newMediaWorkflow(model.KindTranscribe, req.VideoURL, chain)
}
