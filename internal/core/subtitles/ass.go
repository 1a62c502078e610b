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

// Package subtitles renders transcripts as subtitle files for burn-in: word
// level ASS for the vertical pipeline and plain SRT for standalone captions.
package subtitles

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

const assHeader = `[Script Info]
Title: Rainbow Captions
ScriptType: v4.00+
WrapStyle: 0
ScaledBorderAndShadow: yes
YCbCr Matrix: TV.601
PlayResX: 1080
PlayResY: 1920

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,80,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,1,0,0,0,100,100,0,0,1,3,0,2,10,10,250,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// WordPalette colors successive words, in ASS &HBBGGRR& order.
var WordPalette = []string{"&HB469FF&", "&HFFFF00&", "&H32CD32&", "&H00FFFF&", "&H00A5FF&"}

const resetColor = "&HFFFFFF&"

// WriteASS writes one dialogue event per word, each word colored from
// WordPalette. Segments without word timings are written as one event.
func WriteASS(w io.Writer, segments []model.TranscriptSegment) error {
	if _, err := io.WriteString(w, assHeader); err != nil {
		return err
	}
	n := 0
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			if err := writeEvent(w, seg.Start, seg.End, text); err != nil {
				return err
			}
			continue
		}
		for _, word := range seg.Words {
			text := strings.TrimSpace(word.Word)
			if text == "" {
				continue
			}
			colored := fmt.Sprintf(`{\c%s}%s{\c%s}`, WordPalette[n%len(WordPalette)], text, resetColor)
			if err := writeEvent(w, word.Start, word.End, colored); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

func writeEvent(w io.Writer, start, end float64, text string) error {
	_, err := fmt.Fprintf(w, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", ASSTimestamp(start), ASSTimestamp(end), text)
	return err
}

// ASSTimestamp formats seconds as HH:MM:SS.cc.
func ASSTimestamp(seconds float64) string {
	h, m, s, ms := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, ms/10)
}

func split(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	whole := math.Floor(seconds)
	ms = int((seconds - whole) * 1000)
	total := int(whole)
	return total / 3600, (total % 3600) / 60, total % 60, ms
}
