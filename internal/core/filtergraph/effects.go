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
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Effects is the set of optional effects applied in one transcoding pass.
type Effects struct {
	Reframe      model.ReframeStyle // ReframeNone to keep the source framing.
	Layers       []Layer            // Overlays with resolved sources.
	FontFile     string             // Font for text overlays; empty uses DefaultFontName.
	Hook         string             // Intro hook text; empty for none.
	CaptionsFile string             // ASS file to burn; empty for none.
	MusicFile    string             // Resolved music track; empty for none.
	MusicVolume  float64            // Music gain when mixed with the source audio.
	Mute         bool               // Zero the source audio.
}

// AudioPolicy resolves the audio treatment for these effects.
func (e Effects) AudioPolicy() AudioPolicy {
	return ResolveAudioPolicy(e.MusicFile != "", e.Mute)
}

// Build assembles every requested effect into one graph over source, in the
// fixed order reframe, overlays, hook, captions, audio. When nothing was
// requested the returned graph is Empty and the caller should stream-copy.
func Build(source string, e Effects) (*Graph, error) {
	g := New(source)
	video := VideoOf(0)
	var err error

	if video, err = AddReframe(g, video, e.Reframe); err != nil {
		return nil, err
	}
	if video, err = AddOverlays(g, video, e.Layers, e.FontFile); err != nil {
		return nil, err
	}
	if video, err = AddHook(g, video, e.Hook); err != nil {
		return nil, err
	}
	if video, err = AddCaptions(g, video, e.CaptionsFile); err != nil {
		return nil, err
	}

	policy := e.AudioPolicy()
	music := -1
	if policy == AudioMixed || policy == AudioMusicOnly {
		music = AddMusicInput(g, e.MusicFile)
	}
	audio, err := AddAudio(g, policy, music, e.MusicVolume)
	if err != nil {
		return nil, err
	}

	g.SetVideo(video)
	g.SetAudio(audio)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
