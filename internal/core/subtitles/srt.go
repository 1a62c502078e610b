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

package subtitles

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

var annotationRe = regexp.MustCompile(`\[.*?\]|\(.*?\)`)

// Blacklist holds phrases speech engines commonly hallucinate over music or
// silence. A line containing any of them, case-insensitively, is dropped.
var Blacklist = []string{
	"Subtitle by", "Amara.org", "Thank you", "thumbs up", "subscribers",
	"lol", "fi", "music playing", "singing",
}

// CleanLine strips bracketed annotations and reports whether the line is
// worth showing.
func CleanLine(text string) (string, bool) {
	clean := strings.TrimSpace(annotationRe.ReplaceAllString(text, ""))
	if len([]rune(clean)) < 2 {
		return "", false
	}
	lower := strings.ToLower(clean)
	for _, phrase := range Blacklist {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return "", false
		}
	}
	return clean, true
}

// WriteSRT writes the cleaned segments in SRT format and returns the number
// of cues written.
func WriteSRT(w io.Writer, segments []model.TranscriptSegment) (int, error) {
	n := 0
	for _, seg := range segments {
		text, ok := CleanLine(seg.Text)
		if !ok {
			continue
		}
		n++
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", n, SRTTimestamp(seg.Start), SRTTimestamp(seg.End), text); err != nil {
			return n, err
		}
	}
	return n, nil
}

// SRTTimestamp formats seconds as HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	h, m, s, ms := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Hallucinations are whole-line outputs discarded when synthesizing caption
// overlays.
var Hallucinations = []string{"Thank you.", "Thanks.", "Bye.", "Music.", "Watching.", "MBC", "LBC", "You", "Silence"}

// NoSpeechCeiling is the no-speech probability above which a segment is
// treated as instrumental.
const NoSpeechCeiling = 0.85

// CaptionOverlays turns transcript segments into bottom-centered text
// overlays, yellow on a translucent box.
func CaptionOverlays(segments []model.TranscriptSegment) []model.Overlay {
	var out []model.Overlay
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		text = strings.TrimSpace(strings.NewReplacer("[Music]", "", "(Music)", "").Replace(text))
		if text == "" || isHallucination(text) || seg.NoSpeechProb > NoSpeechCeiling {
			continue
		}
		out = append(out, model.Overlay{
			Type:            model.OverlayText,
			Text:            text,
			X:               model.Float(50),
			Y:               model.Float(85),
			StartTime:       model.Float(seg.Start),
			Duration:        model.Float(seg.End - seg.Start),
			Color:           "yellow",
			BackgroundColor: "black@0.5",
		})
	}
	return out
}

func isHallucination(text string) bool {
	for _, h := range Hallucinations {
		if text == h {
			return true
		}
	}
	return false
}
