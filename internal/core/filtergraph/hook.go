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
	"strings"
)

// Intro hook timing: the first HookDarken seconds are dimmed while the hook
// text flashes HookFlashes times in HookColors order.
const (
	HookDarken    = 3.5
	HookFlashes   = 5
	hookFlashStep = 7 // tenths of a second
)

// HookColors cycle across the flashes.
var HookColors = []string{"magenta", "cyan", "yellow", "green", "red"}

const (
	LabelHook     Label = "v_hook"
	LabelCaptions Label = "v_captions"
	LabelSubtitle Label = "v_subtitles"
)

// SanitizeHook strips characters the hook's quoted text option cannot hold.
func SanitizeHook(text string) string {
	return strings.NewReplacer("'", "", `"`, "", ":", "").Replace(strings.TrimSpace(text))
}

// HookFilters dims the opening and flashes text in the center of the frame.
func HookFilters(text string) []Filter {
	safe := SanitizeHook(text)
	filters := []Filter{Eq(-0.3).EnableBetween(0, HookDarken)}
	for i := 0; i < HookFlashes; i++ {
		start := float64(i*hookFlashStep) / 10
		end := float64((i+1)*hookFlashStep) / 10
		f := DrawText(safe).
			With("fontcolor", HookColors[i%len(HookColors)]).
			With("fontsize", "(h/15)").
			With("x", "(w-text_w)/2").
			With("y", "(h-text_h)/2").
			With("borderw", "5").
			With("bordercolor", "black").
			With("shadowx", "3").
			With("shadowy", "3").
			With("font", "'Impact'").
			EnableBetween(start, end)
		filters = append(filters, f)
	}
	return filters
}

// AddHook appends the intro hook stage. Empty text returns in unchanged.
func AddHook(g *Graph, in Label, text string) (Label, error) {
	if SanitizeHook(text) == "" {
		return in, nil
	}
	return g.Chain(in, LabelHook, HookFilters(text)...)
}

// AddCaptions burns an ASS subtitle file. An empty path returns in unchanged.
func AddCaptions(g *Graph, in Label, assPath string) (Label, error) {
	if assPath == "" {
		return in, nil
	}
	return g.Chain(in, LabelCaptions, ASS(assPath))
}

// SubtitleStyle is the force_style used when burning plain SRT captions.
const SubtitleStyle = "FontName=Arial,FontSize=18,PrimaryColour=&H00FFFF00,OutlineColour=&H80000000,BorderStyle=1,Outline=1,Shadow=1,Alignment=2,MarginV=50"

// AddSubtitles burns an SRT file with SubtitleStyle.
func AddSubtitles(g *Graph, in Label, srtPath string) (Label, error) {
	return g.Chain(in, LabelSubtitle, Subtitles(srtPath, SubtitleStyle))
}
