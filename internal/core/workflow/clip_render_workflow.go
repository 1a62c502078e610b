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
// clip render operations.
//
// Logic Flow:
//   - A single clip is cut with an input seek and re-encoded in one
//     invocation, cropped to 9:16 or scaled to 1920 wide.
//   - A viral clip is first trimmed (stream copy, re-encode fallback), then
//     optionally auto-captioned, then its overlay sources are fetched in
//     parallel and composited in one pass. The source audio is copied.
//   - A montage concatenates an explicit segment list in caller order, with
//     every segment cropped or scaled to the target frame.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// NewRenderClipWorkflow renders one time-bounded clip.
func NewRenderClipWorkflow(deps *Dependencies, req *model.ClipRequest) *MediaWorkflow {
	iv := req.Interval()
	frame := filtergraph.Scale("1920", "-1")
	if req.Vertical() {
		frame = filtergraph.VerticalCrop()
	}

	chain := newChain(model.KindRenderClip, deps).
		AddCommand(commands.NewEngineStep("clip-render", deps.Transcoder, deps.Scratch, commands.SuffixEffects,
			func(_ cor.Context, in, out string) ([]string, error) {
				args := []string{
					"-ss", filtergraph.Num(iv.Start),
					"-to", filtergraph.Num(iv.End),
					"-i", in,
					"-vf", frame.String(),
				}
				args = append(args, commands.CodecH264AAC...)
				return append(args, "-y", out), nil
			}))
	return newMediaWorkflow(model.KindRenderClip, req.VideoURL, finish(chain, deps))
}

// NewRenderViralClipWorkflow renders a clip with its overlays.
func NewRenderViralClipWorkflow(deps *Dependencies, req *model.ViralClipRequest) *MediaWorkflow {
	chain := newChain(model.KindRenderViralClip, deps).
		AddCommand(commands.NewMontagePlanner("trim-planner", func(cor.Context) []model.Interval {
			return []model.Interval{req.Interval()}
		})).
		AddCommand(commands.NewStructuralCut("clip-trim", deps.Transcoder, deps.Scratch,
			commands.SuffixTrimmed, commands.CodecH264AAC)).
		AddCommand(commands.NewAutoCaption("auto-captions", deps.Transcriber,
			func(cor.Context) bool { return req.AutoCaptions })).
		AddCommand(commands.NewOverlayFetch("overlay-fetch", deps.Transcoder, deps.Storage, deps.Scratch,
			deps.Config.Application.ThreadPoolSize)).
		AddCommand(commands.NewEffectsPass("overlay-pass", deps.Transcoder, deps.Scratch, "",
			func(context cor.Context, source string) (*filtergraph.Graph, error) {
				layers, _ := context.Get(model.KeyLayers).([]filtergraph.Layer)
				g := filtergraph.New(source)
				video, err := filtergraph.AddOverlays(g, g.Video(), layers, deps.FontFile)
				if err != nil {
					return nil, err
				}
				g.SetVideo(video)
				return g, g.Validate()
			}, commands.Codec("-shortest", "-c:v", "libx264", "-c:a", "copy")))

	w := newMediaWorkflow(model.KindRenderViralClip, req.VideoURL, finish(chain, deps))
	w.prepare = func(context cor.Context) {
		if len(req.Overlays) > 0 {
			context.Add(model.KeyOverlays, append([]model.Overlay{}, req.Overlays...))
		}
	}
	return w
}

// NewRenderMontageWorkflow concatenates the requested segments.
func NewRenderMontageWorkflow(deps *Dependencies, req *model.MontageRequest) *MediaWorkflow {
	frame := []filtergraph.Filter{filtergraph.Scale("1920", "1080")}
	if req.Vertical() {
		frame = []filtergraph.Filter{filtergraph.VerticalCrop(), filtergraph.Scale("1080", "1920")}
	}

	chain := newChain(model.KindRenderMontage, deps).
		AddCommand(commands.NewMontagePlanner("montage-planner", func(cor.Context) []model.Interval {
			return req.Segments
		})).
		AddCommand(commands.NewStructuralCut("montage-cut", deps.Transcoder, deps.Scratch,
			commands.SuffixStructure, commands.CodecH264AAC, frame...))
	return newMediaWorkflow(model.KindRenderMontage, req.VideoURL, finish(chain, deps))
}
