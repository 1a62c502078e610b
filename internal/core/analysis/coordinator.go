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

// Package analysis runs the speech and scene engines against a source and
// fuses their output into scored candidate clips.
//
// Logic Flow:
//  1. `Analyze` starts transcription and scene detection in two goroutines,
//     each under its own span and its own cancellable context.
//  2. Both are joined; each result is inspected on its own.
//  3. A transcription failure is logged and the transcript is left empty.
//  4. A scene detection failure cancels the transcription and is returned as
//     an AnalysisEngineFailure, since candidates cannot exist without scenes.
//  5. The scenes are scored against the transcript by `Rank`.
package analysis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Options tune the coordinator.
type Options struct {
	Downscale   int     // Frame downscale factor handed to the scene detector.
	MinDuration float64 // Scenes shorter than this are discarded.
	TopN        int     // Size of the suggestion subset.
	Words       bool    // Request word timings from the transcriber.
}

// Coordinator fans analysis out to the engines.
type Coordinator struct {
	transcriber Transcriber
	scenes      SceneDetector
	opts        Options
}

// NewCoordinator creates a Coordinator. transcriber may be nil, in which
// case analysis is visual only.
func NewCoordinator(transcriber Transcriber, scenes SceneDetector, opts Options) *Coordinator {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Coordinator{transcriber: transcriber, scenes: scenes, opts: opts}
}

// Analyze scores the scenes of the media at path.
func (c *Coordinator) Analyze(ctx context.Context, path string) (*model.AnalysisResult, error) {
	tracer := otel.Tracer("analysis")
	ctx, span := tracer.Start(ctx, "analyze")
	defer span.End()

	transcribeCtx, cancelTranscribe := context.WithCancel(ctx)
	defer cancelTranscribe()

	var (
		wg          sync.WaitGroup
		transcript  []model.TranscriptSegment
		scenes      []model.Interval
		transErr    error
		scenesErr   error
		transcribed = c.transcriber != nil
	)

	if transcribed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tctx, tspan := tracer.Start(transcribeCtx, "transcribe")
			defer tspan.End()
			transcript, transErr = c.transcriber.Transcribe(tctx, path, c.opts.Words)
			if transErr != nil {
				tspan.SetStatus(codes.Error, transErr.Error())
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, sspan := tracer.Start(ctx, "detect-scenes")
		defer sspan.End()
		scenes, scenesErr = c.scenes.DetectScenes(sctx, path, c.opts.Downscale)
		if scenesErr != nil {
			sspan.SetStatus(codes.Error, scenesErr.Error())
			cancelTranscribe()
		}
	}()

	wg.Wait()

	if scenesErr != nil {
		span.SetStatus(codes.Error, "scene detection failed")
		if ctx.Err() != nil {
			return nil, model.Preempted(ctx.Err(), "analysis cancelled")
		}
		return nil, model.AnalysisEngineFailure(scenesErr, "scene detection failed")
	}

	result := &model.AnalysisResult{}
	if transErr != nil {
		slog.WarnContext(ctx, "transcription failed, continuing with visual boundaries only", "path", path, "error", transErr)
		result.TranscriptError = transErr.Error()
		transcript = nil
	}
	result.Transcript = transcript
	result.Scenes, result.ClipSuggestions = Rank(scenes, transcript, c.opts.MinDuration, c.opts.TopN)
	span.SetStatus(codes.Ok, "analyzed")
	return result, nil
}
