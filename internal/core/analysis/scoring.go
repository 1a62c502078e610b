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

package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Scoring constants.
const (
	BaseScore        = 60
	ScoreCeiling     = 99
	ExclamationBoost = 5
	MaxListedWords   = 3
	TextLimit        = 150
	DefaultTopN      = 15

	VisualReason = "Visual change detected"
)

// Keyword is one entry of the interest table.
type Keyword struct {
	Word  string
	Boost int
}

// Keywords is scanned in order; the order decides which matches are named
// in a reason.
var Keywords = []Keyword{
	{"money", 15}, {"rich", 10}, {"secret", 20}, {"hack", 15}, {"trick", 10},
	{"mistake", 15}, {"stop", 10}, {"wait", 10}, {"shocking", 15}, {"crazy", 10},
	{"millions", 15}, {"dollars", 10}, {"profit", 10}, {"loss", 10}, {"tutorial", 10},
	{"example", 5}, {"how to", 10}, {"why", 5}, {"essential", 10}, {"proven", 10},
	{"guaranteed", 15}, {"love", 10}, {"hate", 10}, {"fail", 15}, {"win", 10},
}

// Rank fuses scene boundaries with the transcript. Scenes shorter than
// minDuration are dropped, the rest are scored and sorted best first. The
// returned top slice holds at most topN clips.
func Rank(scenes []model.Interval, transcript []model.TranscriptSegment, minDuration float64, topN int) (all, top []model.CandidateClip) {
	all = make([]model.CandidateClip, 0, len(scenes))
	for i, scene := range scenes {
		if scene.Duration() < minDuration {
			continue
		}
		all = append(all, Score(i, scene, transcript))
	}

	sort.SliceStable(all, func(a, b int) bool { return all[a].ViralScore > all[b].ViralScore })

	if topN <= 0 {
		topN = DefaultTopN
	}
	top = all
	if len(top) > topN {
		top = top[:topN]
	}
	return all, top
}

// Score rates one scene. index is the scene's position in the detector's
// output and becomes its id.
func Score(index int, scene model.Interval, transcript []model.TranscriptSegment) model.CandidateClip {
	score := BaseScore
	reasons := []string{VisualReason}

	var parts []string
	for _, seg := range transcript {
		if seg.Interval().Overlaps(scene) {
			parts = append(parts, strings.TrimSpace(seg.Text))
		}
	}
	text := strings.ToLower(strings.Join(parts, " "))

	var (
		boost   int
		matched []string
	)
	for _, k := range Keywords {
		if strings.Contains(text, k.Word) {
			boost += k.Boost
			matched = append(matched, k.Word)
		}
	}
	if boost > 0 {
		score = min(score+boost, ScoreCeiling)
		listed := matched
		if len(listed) > MaxListedWords {
			listed = listed[:MaxListedWords]
		}
		reasons = append(reasons, "Keywords: "+strings.Join(listed, ", "))
	}
	if strings.Contains(text, "!") {
		score += ExclamationBoost
	}
	score = min(score, ScoreCeiling)

	display := text
	if r := []rune(display); len(r) > TextLimit {
		display = string(r[:TextLimit]) + "..."
	}
	if display == "" {
		display = fmt.Sprintf("Scene %d (No speech detected)", index+1)
	}

	return model.CandidateClip{
		ID:         fmt.Sprintf("scene_%d", index),
		Start:      scene.Start,
		End:        scene.End,
		Duration:   scene.Duration(),
		ViralScore: score,
		Reason:     strings.Join(reasons, " + "),
		Reasons:    reasons,
		Text:       display,
	}
}
