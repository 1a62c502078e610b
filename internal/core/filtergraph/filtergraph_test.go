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

package filtergraph_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	fg "github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoEffectsIsNoop(t *testing.T) {
	g, err := fg.Build("in.mp4", fg.Effects{})
	require.NoError(t, err)
	assert.True(t, g.Empty())

	args, err := g.OutputArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"-map", "0:v", "-map", "0:a?"}, args)
}

func TestZoomReframe(t *testing.T) {
	g, err := fg.Build("in.mp4", fg.Effects{Reframe: model.ReframeZoom})
	require.NoError(t, err)
	assert.Equal(t, "[0:v]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920[v_cropped]", g.String())
	assert.Equal(t, fg.LabelReframed, g.Video())
}

func TestBlurReframe(t *testing.T) {
	g, err := fg.Build("in.mp4", fg.Effects{Reframe: model.ReframeBlur})
	require.NoError(t, err)
	want := strings.Join([]string{
		"[0:v]split[v_bg_in][v_fg_in]",
		"[v_bg_in]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,scale=108:192,boxblur=2:1,scale=1080:1920[bg]",
		"[v_fg_in]scale=1080:1920:force_original_aspect_ratio=decrease[fg]",
		"[bg][fg]overlay=(W-w)/2:(H-h)/2[v_cropped]",
	}, ";")
	assert.Equal(t, want, g.String())
}

func TestAudioPolicyTable(t *testing.T) {
	assert.Equal(t, fg.AudioMusicOnly, fg.ResolveAudioPolicy(true, true))
	assert.Equal(t, fg.AudioMixed, fg.ResolveAudioPolicy(true, false))
	assert.Equal(t, fg.AudioSilenced, fg.ResolveAudioPolicy(false, true))
	assert.Equal(t, fg.AudioPassthrough, fg.ResolveAudioPolicy(false, false))
}

func TestAudioGraphs(t *testing.T) {
	cases := []struct {
		name    string
		effects fg.Effects
		graph   string
		maps    []string
	}{
		{
			name:    "mute only",
			effects: fg.Effects{Mute: true},
			graph:   "[0:a]volume=0[a_out]",
			maps:    []string{"-map", "0:v", "-map", "[a_out]"},
		},
		{
			name:    "music mixed",
			effects: fg.Effects{MusicFile: "song.mp3", MusicVolume: 0.15},
			graph:   "[1:a]volume=0.15[bgm];[0:a][bgm]amix=inputs=2:duration=first:dropout_transition=2[a_out]",
			maps:    []string{"-map", "0:v", "-map", "[a_out]"},
		},
		{
			name:    "music only",
			effects: fg.Effects{MusicFile: "song.mp3", MusicVolume: 0.15, Mute: true},
			graph:   "[1:a]volume=1[a_out]",
			maps:    []string{"-map", "0:v", "-map", "[a_out]"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := fg.Build("in.mp4", tc.effects)
			require.NoError(t, err)
			assert.Equal(t, tc.graph, g.String())
			args, err := g.OutputArgs()
			require.NoError(t, err)
			assert.Equal(t, append([]string{"-filter_complex", tc.graph}, tc.maps...), args)
		})
	}

	g, err := fg.Build("in.mp4", fg.Effects{MusicFile: "song.mp3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-i", "in.mp4", "-stream_loop", "-1", "-i", "song.mp3"}, g.InputArgs())
}

func TestHookAndCaptionsOrder(t *testing.T) {
	g, err := fg.Build("in.mp4", fg.Effects{
		Reframe:      model.ReframeZoom,
		Hook:         "Don't: miss this",
		CaptionsFile: "/tmp/job.ass",
	})
	require.NoError(t, err)

	stages := g.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, []fg.Label{fg.LabelReframed}, stages[1].Inputs)
	assert.Equal(t, []fg.Label{fg.LabelHook}, stages[1].Outputs)
	assert.Equal(t, []fg.Label{fg.LabelHook}, stages[2].Inputs)
	assert.Equal(t, "[v_hook]ass='/tmp/job.ass'[v_captions]", stages[2].String())
	assert.Equal(t, fg.LabelCaptions, g.Video())

	hook := stages[1].String()
	assert.True(t, strings.HasPrefix(hook, "[v_cropped]eq=brightness=-0.3:enable='between(t,0,3.5)',drawtext=text='Dont miss this'"))
	assert.Equal(t, fg.HookFlashes, strings.Count(hook, "drawtext="))
	assert.Contains(t, hook, "fontcolor=magenta")
	assert.Contains(t, hook, "enable='between(t,2.8,3.5)'")
}

func TestEmptyHookIsSkipped(t *testing.T) {
	g, err := fg.Build("in.mp4", fg.Effects{Hook: " ':' "})
	require.NoError(t, err)
	assert.True(t, g.Empty())
}

func TestCaptionPathEscaping(t *testing.T) {
	assert.Equal(t, `C\:/tmp/a.ass`, fg.EscapePath(`C:\tmp\a.ass`))
}

func TestTextEscaping(t *testing.T) {
	assert.Equal(t, `a\:b\'c\,d\[e\]`, fg.EscapeText(`a:b'c,d[e]`))
}

func TestOverlayOrderAndLabels(t *testing.T) {
	layers := []fg.Layer{
		{Overlay: model.Overlay{Type: model.OverlayText, Text: "Hi, there", StartTime: model.Float(1)}},
		{Overlay: model.Overlay{Type: model.OverlayImage, Src: "http://x/logo.png", X: model.Float(10), Y: model.Float(20)}, Path: "logo.png"},
		{Overlay: model.Overlay{Type: model.OverlayVideo, Src: "http://x/pip.mp4", X: model.Float(50), Y: model.Float(50), StartTime: model.Float(2), Duration: model.Float(3)}, Path: "pip.mp4"},
		{Overlay: model.Overlay{Type: model.OverlayImage, Src: "http://x/missing.png"}},
	}
	g, err := fg.Build("clip.mp4", fg.Effects{Layers: layers, FontFile: "/fonts/DejaVuSans.ttf"})
	require.NoError(t, err)

	assert.Equal(t, []string{"-i", "clip.mp4", "-i", "pip.mp4", "-loop", "1", "-i", "logo.png"}, g.InputArgs())

	stages := g.Stages()
	require.Len(t, stages, 5)
	assert.Equal(t, "[1:v]scale=w=iw*0.3:h=-1[ov1]", stages[0].String())
	assert.Equal(t, "[0:v][ov1]overlay=x=W*0.5:y=H*0.5:eof_action=pass:enable='between(t,2,5)'[v1]", stages[1].String())
	assert.Equal(t, "[2:v]scale=w=iw*0.8:h=-1[img2]", stages[2].String())
	assert.Equal(t, "[v1][img2]overlay=x=W*0.1:y=H*0.2:shortest=1[v2]", stages[3].String())
	assert.Equal(t,
		`[v2]drawtext=text='Hi\, there':fontfile='/fonts/DejaVuSans.ttf':fontcolor=white:fontsize=h/20:x=(w*0.5)-(tw/2):y=(h*0.85)-(th/2):box=1:boxcolor=black@0.5:boxborderw=20:enable='between(t,1,6)'[txt0]`,
		stages[4].String())
	assert.Equal(t, fg.Label("txt0"), g.Video())
}

func TestGraphRejectsUndefinedLabels(t *testing.T) {
	g := fg.New("in.mp4")
	err := g.Add(fg.Stage{Inputs: []fg.Label{"nope"}, Filters: []fg.Filter{fg.Null()}, Outputs: []fg.Label{"out"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidGraph))

	err = g.Add(fg.Stage{Inputs: []fg.Label{fg.VideoOf(3)}, Filters: []fg.Filter{fg.Null()}, Outputs: []fg.Label{"out"}})
	assert.True(t, errors.Is(err, model.ErrInvalidGraph), "input 3 does not exist")

	_, err = g.Chain(fg.VideoOf(0), "a", fg.Null())
	require.NoError(t, err)
	_, err = g.Chain(fg.VideoOf(0), "a", fg.Null())
	assert.True(t, errors.Is(err, model.ErrInvalidGraph), "duplicate label")

	_, err = g.Chain("a", "b", fg.Null())
	require.NoError(t, err)
	_, err = g.Chain("a", "c", fg.Null())
	assert.True(t, errors.Is(err, model.ErrInvalidGraph), "label consumed twice")

	g.SetVideo("a")
	assert.True(t, errors.Is(g.Validate(), model.ErrInvalidGraph), "terminal label already consumed")
	g.SetVideo("missing")
	assert.True(t, errors.Is(g.Validate(), model.ErrInvalidGraph))
	g.SetVideo("b")
	assert.NoError(t, g.Validate())
}

func TestConcatGraph(t *testing.T) {
	g, err := fg.BuildConcat("in.mp4", []model.Interval{{Start: 0, End: 5}, {Start: 8, End: 20}})
	require.NoError(t, err)
	want := "[0:v]trim=start=0:end=5,setpts=PTS-STARTPTS[v0];" +
		"[0:a]atrim=start=0:end=5,asetpts=PTS-STARTPTS[a0];" +
		"[0:v]trim=start=8:end=20,setpts=PTS-STARTPTS[v1];" +
		"[0:a]atrim=start=8:end=20,asetpts=PTS-STARTPTS[a1];" +
		"[v0][a0][v1][a1]concat=n=2:v=1:a=1[outv][outa]"
	assert.Equal(t, want, g.String())

	args, err := g.OutputArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"-filter_complex", want, "-map", "[outv]", "-map", "[outa]"}, args)

	g, err = fg.BuildConcat("in.mp4", []model.Interval{{Start: 1, End: 2}}, fg.VerticalCrop(), fg.Scale("1080", "1920"))
	require.NoError(t, err)
	assert.Contains(t, g.String(), "setpts=PTS-STARTPTS,crop=in_h*9/16:in_h:x=(in_w-out_w)/2:y=0,scale=1080:1920[v0]")

	_, err = fg.BuildConcat("in.mp4", nil)
	assert.True(t, errors.Is(err, model.ErrEmptyTimeline))
}

// Every stage input is a raw stream or an earlier output, across every
// combination of effects.
func TestBuilderNeverReferencesUndefinedLabels(t *testing.T) {
	styles := []model.ReframeStyle{model.ReframeNone, model.ReframeZoom, model.ReframeBlur}
	layerSets := [][]fg.Layer{
		nil,
		{{Overlay: model.Overlay{Type: model.OverlayText, Text: "hello"}}},
		{
			{Overlay: model.Overlay{Type: model.OverlayVideo}, Path: "a.mp4"},
			{Overlay: model.Overlay{Type: model.OverlayImage}, Path: "b.png"},
			{Overlay: model.Overlay{Type: model.OverlayText, Text: "one"}},
			{Overlay: model.Overlay{Type: model.OverlayText, Text: "two"}},
		},
	}
	for _, style := range styles {
		for li, layers := range layerSets {
			for mask := 0; mask < 16; mask++ {
				e := fg.Effects{Reframe: style, Layers: layers, MusicVolume: 0.2}
				if mask&1 != 0 {
					e.Hook = "hook"
				}
				if mask&2 != 0 {
					e.CaptionsFile = "c.ass"
				}
				if mask&4 != 0 {
					e.MusicFile = "m.mp3"
				}
				e.Mute = mask&8 != 0

				name := fmt.Sprintf("%s/%d/%d", style, li, mask)
				g, err := fg.Build("in.mp4", e)
				require.NoError(t, err, name)
				assertWellFormed(t, g, name)
			}
		}
	}
}

func assertWellFormed(t *testing.T, g *fg.Graph, name string) {
	t.Helper()
	raw := map[fg.Label]bool{}
	for i := range g.Inputs() {
		raw[fg.VideoOf(i)] = true
		raw[fg.AudioOf(i)] = true
	}
	emitted := map[fg.Label]bool{}
	for _, s := range g.Stages() {
		for _, in := range s.Inputs {
			assert.True(t, raw[in] || emitted[in], "%s: %s undefined in %s", name, in, s)
		}
		for _, out := range s.Outputs {
			assert.False(t, emitted[out], "%s: %s emitted twice", name, out)
			emitted[out] = true
		}
	}
	assert.True(t, raw[g.Video()] || emitted[g.Video()], name)
	if g.Audio() != "" {
		assert.True(t, emitted[g.Audio()], name)
	}
}
