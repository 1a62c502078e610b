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
// operations that apply a single effect to a source.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// StandaloneDurationFallback is the duration assumed by standalone silence
// removal when the source cannot be probed.
const StandaloneDurationFallback = 3600

// NewSmartCropWorkflow reframes a source to vertical. Zoom is encoded at the
// final quality, blur as a draft since it is usually previewed.
func NewSmartCropWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	cfg := deps.Config.Pipeline
	style := model.NormalizeReframeStyle(req.CropStyle)
	codec := encode(cfg.FinalPreset, cfg.FinalCRF, "copy")
	if style == model.ReframeBlur {
		codec = encode(cfg.IntermediatePreset, cfg.DraftCRF, "copy")
	}

	chain := newChain(model.KindSmartCrop, deps).
		AddCommand(commands.NewEffectsPass("smart-crop", deps.Transcoder, deps.Scratch, "",
			func(_ cor.Context, source string) (*filtergraph.Graph, error) {
				return filtergraph.Build(source, filtergraph.Effects{Reframe: style})
			}, commands.Codec(codec...)))
	return newMediaWorkflow(model.KindSmartCrop, req.VideoURL, finish(chain, deps))
}

// NewRemoveSilenceWorkflow cuts the silence out of a source. A source
// without silence is returned unchanged.
func NewRemoveSilenceWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	cfg := deps.Config.Pipeline
	chain := newChain(model.KindRemoveSilence, deps).
		AddCommand(commands.NewSilencePlanner("silence-planner", deps.Transcoder,
			cfg.StandaloneSilenceNoise, cfg.StandaloneSilenceDuration, StandaloneDurationFallback, commands.Always)).
		AddCommand(commands.NewStructuralCut("silence-cut", deps.Transcoder, deps.Scratch,
			commands.SuffixStructure, encode(cfg.FinalPreset, cfg.FinalCRF, "aac")))
	return newMediaWorkflow(model.KindRemoveSilence, req.VideoURL, finish(chain, deps))
}

// NewMuteAudioWorkflow drops the audio streams of a source.
func NewMuteAudioWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	chain := newChain(model.KindMuteAudio, deps).
		AddCommand(commands.NewEngineStep("mute-audio", deps.Transcoder, deps.Scratch, commands.SuffixEffects,
			func(_ cor.Context, in, out string) ([]string, error) {
				return []string{"-i", in, "-c:v", "copy", "-an", "-y", out}, nil
			}))
	return newMediaWorkflow(model.KindMuteAudio, req.VideoURL, finish(chain, deps))
}

// NewAddCaptionsWorkflow burns segment subtitles into a source. A transcript
// without usable lines yields a copy of the source.
func NewAddCaptionsWorkflow(deps *Dependencies, req *model.SourceRequest) *MediaWorkflow {
	chain := newChain(model.KindAddCaptions, deps).
		AddCommand(commands.NewTranscribe("transcribe", deps.Transcriber, false, commands.Always)).
		AddCommand(commands.NewCaptionWriter("caption-writer", deps.Scratch, commands.CaptionsSRT)).
		AddCommand(commands.NewEffectsPass("subtitle-burn", deps.Transcoder, deps.Scratch, "",
			func(context cor.Context, source string) (*filtergraph.Graph, error) {
				g := filtergraph.New(source)
				srt, _ := context.Get(model.KeyCaptions).(string)
				if srt == "" {
					return g, nil
				}
				video, err := filtergraph.AddSubtitles(g, g.Video(), srt)
				if err != nil {
					return nil, err
				}
				g.SetVideo(video)
				return g, g.Validate()
			}, commands.Codec(commands.CodecVideoOnly...)))
	return newMediaWorkflow(model.KindAddCaptions, req.VideoURL, finish(chain, deps))
}

// NewAddMusicWorkflow lays a music track under a source. The track is mixed
// with the source audio when there is any and becomes the audio otherwise.
func NewAddMusicWorkflow(deps *Dependencies, req *model.MusicRequest) *MediaWorkflow {
	cfg := deps.Config.Pipeline
	volume := req.MusicVolume(cfg.MusicVolume)

	chain := newChain(model.KindAddMusic, deps).
		AddCommand(commands.NewMusicResolve("music-resolve", deps.Transcoder, deps.Scratch,
			deps.Config.Application.AssetsDir, func(cor.Context) (commands.MusicQuery, bool) {
				return commands.MusicQuery{
					Track:      req.Track(cfg.PresetMusicFile),
					Search:     req.IsSearch,
					SafeSearch: req.IsSafeSearch(),
				}, true
			})).
		AddCommand(commands.NewEffectsPass("music-mix", deps.Transcoder, deps.Scratch, "",
			func(context cor.Context, source string) (*filtergraph.Graph, error) {
				music, _ := context.Get(model.KeyMusic).(string)
				if music == "" {
					return nil, model.InputUnavailable(nil, "music track %q is unavailable", req.Track(cfg.PresetMusicFile))
				}
				hasAudio, err := deps.Transcoder.HasAudio(context.GetContext(), source)
				if err != nil {
					return nil, err
				}
				return MusicGraph(source, music, volume, hasAudio)
			}, commands.Codec("-shortest", "-c:v", "copy", "-c:a", "aac")))
	return newMediaWorkflow(model.KindAddMusic, req.VideoURL, finish(chain, deps))
}

// MusicGraph mixes music under the source audio, or makes it the only audio
// track when the source has none. The video stream is left untouched.
func MusicGraph(source, music string, volume float64, sourceHasAudio bool) (*filtergraph.Graph, error) {
	g := filtergraph.New(source)
	input := filtergraph.AddMusicInput(g, music)

	var audio filtergraph.Label
	var err error
	if sourceHasAudio {
		audio, err = filtergraph.AddAudio(g, filtergraph.AudioMixed, input, volume)
	} else {
		audio, err = g.Chain(filtergraph.AudioOf(input), filtergraph.LabelAudioOut, filtergraph.Volume(volume))
	}
	if err != nil {
		return nil, err
	}
	g.SetAudio(audio)
	return g, g.Validate()
}
