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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides hardcoded example instances used for "few-shot"
// prompting. When the generative transcription engine is asked to transcribe
// audio, the prompt embeds an example of the exact JSON it must return so the
// response can be unmarshalled straight into TranscriptSegment values.
package model

// GetExampleTranscript returns a short transcript in the shape the
// generative transcriber is expected to produce.
//
// Outputs:
//   - []TranscriptSegment: two segments, the second with word timings.
func GetExampleTranscript() []TranscriptSegment {
	return []TranscriptSegment{
		{
			Start: 0.0,
			End:   2.4,
			Text:  "Stop scrolling, this trick changed everything.",
		},
		{
			Start: 2.4,
			End:   4.1,
			Text:  "Here is how to do it.",
			Words: []Word{
				{Word: "Here", Start: 2.4, End: 2.6},
				{Word: "is", Start: 2.6, End: 2.7},
				{Word: "how", Start: 2.7, End: 3.0},
				{Word: "to", Start: 3.0, End: 3.1},
				{Word: "do", Start: 3.1, End: 3.4},
				{Word: "it.", Start: 3.4, End: 4.1},
			},
		},
	}
}
