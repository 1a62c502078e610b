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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// ClipAnalyze scores the scenes of the chain input and stores the result
// under model.KeyAnalysis. It produces no artifact.
type ClipAnalyze struct {
	cor.BaseCommand                       // Embeds the BaseCommand for naming and metrics.
	coordinator     *analysis.Coordinator // Runs scene detection and transcription together.
}

// NewClipAnalyze is the constructor for the ClipAnalyze command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - coordinator: The analysis coordinator the chain input is scored with.
//
// Outputs:
//   - *ClipAnalyze: A pointer to the newly instantiated command. It reads
//     cor.CtxIn and writes a *model.AnalysisResult under model.KeyAnalysis.
func NewClipAnalyze(name string, coordinator *analysis.Coordinator) *ClipAnalyze {
	return &ClipAnalyze{BaseCommand: *cor.NewBaseCommand(name), coordinator: coordinator}
}

func (c *ClipAnalyze) Execute(context cor.Context) {
	result, err := c.coordinator.Analyze(context.GetContext(), InputPath(context))
	if err != nil {
		c.Fail(context, err)
		return
	}
	result.JobID = JobID(context)
	slog.InfoContext(context.GetContext(), "analysis complete", "job_id", result.JobID,
		"scenes", len(result.Scenes), "suggestions", len(result.ClipSuggestions))
	context.Add(model.KeyAnalysis, result)
	c.Succeed(context, nil)
}
