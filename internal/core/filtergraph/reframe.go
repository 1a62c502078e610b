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

package filtergraph

import (
	"strconv"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Vertical output frame.
const (
	FrameWidth  = 1080
	FrameHeight = 1920

	// The blurred background is built at a tenth of the frame size; blurring
	// at full resolution is far too slow.
	blurDownscale = 10
)

var (
	frameW = strconv.Itoa(FrameWidth)
	frameH = strconv.Itoa(FrameHeight)
)

// LabelReframed is the output of either reframe style.
const LabelReframed Label = "v_cropped"

// ZoomFilters fill the vertical frame by scaling up and center-cropping.
func ZoomFilters() []Filter {
	return []Filter{
		Scale(frameW, frameH).With("force_original_aspect_ratio", "increase"),
		Crop(frameW, frameH),
	}
}

// AddReframe appends the stages for style and returns the new video label.
// ReframeNone returns in unchanged.
func AddReframe(g *Graph, in Label, style model.ReframeStyle) (Label, error) {
	switch style {
	case model.ReframeNone:
		return in, nil
	case model.ReframeZoom:
		return g.Chain(in, LabelReframed, ZoomFilters()...)
	default:
		return addBlurPad(g, in)
	}
}

// addBlurPad derives a blurred full-frame background and an aspect-fit
// foreground from one stream, then centers the foreground on the background.
func addBlurPad(g *Graph, in Label) (Label, error) {
	bgIn, fgIn := Label("v_bg_in"), Label("v_fg_in")
	if err := g.Add(Stage{Inputs: []Label{in}, Filters: []Filter{Split()}, Outputs: []Label{bgIn, fgIn}}); err != nil {
		return "", err
	}

	small := Scale(strconv.Itoa(FrameWidth/blurDownscale), strconv.Itoa(FrameHeight/blurDownscale))
	bg, err := g.Chain(bgIn, "bg",
		Scale(frameW, frameH).With("force_original_aspect_ratio", "increase"),
		Crop(frameW, frameH),
		small,
		BoxBlur(2, 1),
		Scale(frameW, frameH),
	)
	if err != nil {
		return "", err
	}

	fg, err := g.Chain(fgIn, "fg", Scale(frameW, frameH).With("force_original_aspect_ratio", "decrease"))
	if err != nil {
		return "", err
	}

	if err := g.Add(Stage{Inputs: []Label{bg, fg}, Filters: []Filter{Overlay("(W-w)/2", "(H-h)/2")}, Outputs: []Label{LabelReframed}}); err != nil {
		return "", err
	}
	return LabelReframed, nil
}

// VerticalCrop center-crops a 9:16 window at full source height.
func VerticalCrop() Filter {
	return CropAt("in_h*9/16", "in_h", "(in_w-out_w)/2", "0")
}
