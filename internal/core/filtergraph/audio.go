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

// AudioPolicy is the resolved treatment of the output audio track.
type AudioPolicy int

const (
	// AudioPassthrough keeps the source audio unchanged.
	AudioPassthrough AudioPolicy = iota
	// AudioSilenced zeroes the source audio gain.
	AudioSilenced
	// AudioMixed mixes the source audio with volume-scaled music. The
	// primary input governs the output duration.
	AudioMixed
	// AudioMusicOnly replaces the source audio with music at full gain.
	AudioMusicOnly
)

func (p AudioPolicy) String() string {
	switch p {
	case AudioSilenced:
		return "silenced"
	case AudioMixed:
		return "mixed"
	case AudioMusicOnly:
		return "music_only"
	default:
		return "passthrough"
	}
}

// ResolveAudioPolicy maps the music and mute flags onto a policy.
func ResolveAudioPolicy(music, mute bool) AudioPolicy {
	switch {
	case music && mute:
		return AudioMusicOnly
	case music:
		return AudioMixed
	case mute:
		return AudioSilenced
	default:
		return AudioPassthrough
	}
}

// LabelAudioOut is the terminal audio label of an effects graph.
const LabelAudioOut Label = "a_out"

// AddMusicInput registers a looping music input and returns its index.
func AddMusicInput(g *Graph, path string) int {
	return g.AddInput(path, "-stream_loop", "-1")
}

// AddAudio appends the stages for policy. music is the music input index and
// is ignored by policies that do not use it. It returns "" for passthrough.
func AddAudio(g *Graph, policy AudioPolicy, music int, volume float64) (Label, error) {
	switch policy {
	case AudioMusicOnly:
		return g.Chain(AudioOf(music), LabelAudioOut, Volume(1.0))
	case AudioMixed:
		bgm, err := g.Chain(AudioOf(music), "bgm", Volume(volume))
		if err != nil {
			return "", err
		}
		if err := g.Add(Stage{
			Inputs:  []Label{AudioOf(0), bgm},
			Filters: []Filter{Amix(2, "first", 2)},
			Outputs: []Label{LabelAudioOut},
		}); err != nil {
			return "", err
		}
		return LabelAudioOut, nil
	case AudioSilenced:
		return g.Chain(AudioOf(0), LabelAudioOut, Volume(0))
	default:
		return "", nil
	}
}
