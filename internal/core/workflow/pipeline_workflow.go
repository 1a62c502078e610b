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
// combined effects pipeline.
//
// Logic Flow:
//  1. Download the source.
//  2. Structural edit, only when requested. An explicit montage takes
//     precedence over silence removal. The edit re-encodes with the fast
//     intermediate preset since quality is recovered by the final pass.
//  3. Transcribe with word timings and write the ASS captions, when requested.
//     Without a usable transcriber the captions are skipped.
//  4. Resolve the music track, when requested. A track that cannot be found
//     only loses the music.
//  5. One effects pass applies reframe, hook, captions and audio together. It
//     is always entered and degenerates to a copy when nothing was asked for.
//     A looping music input bounds the output with -shortest.
//  6. Finalize and upload.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// NewPipelineWorkflow builds the combined pipeline for one request.
//
// Inputs:
//   - deps: The shared workflow collaborators.
//   - req: The validated pipeline request.
//
// Returns:
//   - A workflow whose Execute runs the whole pipeline.
func NewPipelineWorkflow(deps *Dependencies, req *model.PipelineRequest) *MediaWorkflow {
	cfg := deps.Config.Pipeline

	chain := newChain(model.KindPipeline, deps).
		AddCommand(commands.NewMontagePlanner("montage-planner", func(cor.Context) []model.Interval {
			return req.MontageSegments
		})).
		AddCommand(commands.NewSilencePlanner("silence-planner", deps.Transcoder,
			cfg.SilenceNoise, cfg.SilenceDuration, 0,
			func(cor.Context) bool { return req.SilenceRemoval })).
		AddCommand(commands.NewStructuralCut("structural-cut", deps.Transcoder, deps.Scratch,
			commands.SuffixStructure, encode(cfg.IntermediatePreset, 0, "aac"))).
		AddCommand(commands.NewTranscribe("word-transcribe", deps.Transcriber, true,
			func(cor.Context) bool { return req.Captions }).Optional(deps.TranscriberReady)).
		AddCommand(commands.NewCaptionWriter("caption-writer", deps.Scratch, commands.CaptionsASS)).
		AddCommand(commands.NewMusicResolve("music-resolve", deps.Transcoder, deps.Scratch,
			deps.Config.Application.AssetsDir, pipelineMusic(req, cfg.PresetMusicFile))).
		AddCommand(commands.NewEffectsPass("effects-pass", deps.Transcoder, deps.Scratch, "",
			pipelineEffects(deps, req), pipelineCodec(encode(cfg.FinalPreset, cfg.FinalCRF, "aac"))))

	return newMediaWorkflow(model.KindPipeline, req.VideoURL, finish(chain, deps))
}

func pipelineMusic(req *model.PipelineRequest, preset string) func(cor.Context) (commands.MusicQuery, bool) {
	return func(cor.Context) (commands.MusicQuery, bool) {
		if !req.AddMusic {
			return commands.MusicQuery{}, false
		}
		track := req.MusicFile
		if track == "" {
			track = preset
		}
		return commands.MusicQuery{Track: track, Search: req.IsSearch, SafeSearch: req.IsSafeSearch()}, true
	}
}

// pipelineCodec ends the output with the video once a looping music track
// is an input; without it the engine never stops writing audio.
func pipelineCodec(codec []string) commands.CodecPlan {
	return func(context cor.Context) []string {
		if music, _ := context.Get(model.KeyMusic).(string); music != "" {
			return append([]string{"-shortest"}, codec...)
		}
		return codec
	}
}

func pipelineEffects(deps *Dependencies, req *model.PipelineRequest) commands.GraphPlan {
	return func(context cor.Context, source string) (*filtergraph.Graph, error) {
		captions, _ := context.Get(model.KeyCaptions).(string)
		music, _ := context.Get(model.KeyMusic).(string)
		return filtergraph.Build(source, filtergraph.Effects{
			Reframe:      req.Reframe(),
			FontFile:     deps.FontFile,
			Hook:         req.Hook(),
			CaptionsFile: captions,
			MusicFile:    music,
			MusicVolume:  req.MusicVolume(deps.Config.Pipeline.MusicVolume),
			Mute:         req.MuteAudio,
		})
	}
}
