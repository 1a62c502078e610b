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
	"fmt"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

const (
	LabelConcatVideo Label = "outv"
	LabelConcatAudio Label = "outa"
)

// BuildConcat cuts each segment out of source, in the order given, and
// joins them. perSegment filters (crop, scale) are applied to every video
// segment after its timestamps are reset.
func BuildConcat(source string, segments []model.Interval, perSegment ...Filter) (*Graph, error) {
	if len(segments) == 0 {
		return nil, model.EmptyTimeline("no segments to concatenate")
	}
	g := New(source)
	joined := make([]Label, 0, 2*len(segments))
	for i, seg := range segments {
		vf := append([]Filter{Trim(seg), SetPTS()}, perSegment...)
		v, err := g.Chain(VideoOf(0), Label(fmt.Sprintf("v%d", i)), vf...)
		if err != nil {
			return nil, err
		}
		a, err := g.Chain(AudioOf(0), Label(fmt.Sprintf("a%d", i)), ATrim(seg), ASetPTS())
		if err != nil {
			return nil, err
		}
		joined = append(joined, v, a)
	}
	if err := g.Add(Stage{
		Inputs:  joined,
		Filters: []Filter{Concat(len(segments), true, true)},
		Outputs: []Label{LabelConcatVideo, LabelConcatAudio},
	}); err != nil {
		return nil, err
	}
	g.SetVideo(LabelConcatVideo)
	g.SetAudio(LabelConcatAudio)
	return g, g.Validate()
}
