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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains the in-memory values that flow between
// the commands of a job: timeline intervals, transcript segments, candidate
// clips and overlay descriptors. None of them outlive the job that created
// them; the only value that may be persisted is the analysis record written
// to BigQuery.
package model

import (
	"fmt"
	"time"
)

// GapTolerance is the smallest gap, in seconds, treated as real timeline
// content rather than float noise.
const GapTolerance = 0.1

// Interval is a half-open [Start, End) range in seconds.
type Interval struct {
	Start float64 `json:"start"` // Inclusive start, in seconds.
	End   float64 `json:"end"`   // Exclusive end, in seconds.
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Valid reports whether End > Start and Start is non-negative.
func (i Interval) Valid() bool {
	return i.Start >= 0 && i.End > i.Start
}

// Overlaps reports whether the two half-open intervals share any time.
func (i Interval) Overlaps(o Interval) bool {
	return o.Start < i.End && o.End > i.Start
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", i.Start, i.End)
}

// Word is a single recognized word with its own timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one timestamped line of recognized speech.
type TranscriptSegment struct {
	Start        float64 `json:"start"`                    // Segment start, in seconds.
	End          float64 `json:"end"`                      // Segment end, in seconds.
	Text         string  `json:"text"`                     // Recognized text.
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"` // Confidence that the segment is not speech.
	Words        []Word  `json:"words,omitempty"`          // Word-level timings, when requested.
}

// Interval returns the segment's time range.
func (s TranscriptSegment) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// CandidateClip is a scored, time-bounded suggestion produced by analysis.
type CandidateClip struct {
	ID         string   `json:"id" bigquery:"id"`                  // Stable id, "scene_<index>".
	Start      float64  `json:"start" bigquery:"start"`            // Scene start, in seconds.
	End        float64  `json:"end" bigquery:"end"`                // Scene end, in seconds.
	Duration   float64  `json:"duration" bigquery:"duration"`      // End - Start.
	ViralScore int      `json:"viralScore" bigquery:"viral_score"` // Interest score, 0..ScoreCeiling.
	Reason     string   `json:"reason" bigquery:"reason"`          // Reasons joined for display.
	Reasons    []string `json:"reasons" bigquery:"reasons"`        // Contributing reasons, most significant first.
	Text       string   `json:"text" bigquery:"text"`              // Overlapping transcript text, truncated.
}

// AnalysisResult is the outcome of a clip analysis.
type AnalysisResult struct {
	Status          string              `json:"status"`
	JobID           string              `json:"job_id"`
	Scenes          []CandidateClip     `json:"scenes"`          // Every scored scene, best first.
	ClipSuggestions []CandidateClip     `json:"clipSuggestions"` // Top-N convenience subset.
	Transcript      []TranscriptSegment `json:"-"`
	TranscriptError string              `json:"transcript_error,omitempty"` // Set when transcription failed non-fatally.
}

// ClipRecord is the row persisted for each candidate clip.
type ClipRecord struct {
	JobID      string    `bigquery:"job_id"`
	SourceURL  string    `bigquery:"source_url"`
	CreateDate time.Time `bigquery:"create_date"`
	CandidateClip
}

// OverlayType selects how an overlay payload is rendered.
type OverlayType string

const (
	OverlayText  OverlayType = "text"
	OverlayImage OverlayType = "image"
	OverlayVideo OverlayType = "video"
)

// Overlay describes one text, image or video layer composited over the source.
type Overlay struct {
	ID              interface{} `json:"id,omitempty"`               // Caller's identifier, string or number.
	Type            OverlayType `json:"type"`
	Text            string      `json:"text,omitempty"`             // Text payload.
	Src             string      `json:"src,omitempty"`              // Image or video source URI.
	X               *float64    `json:"x,omitempty"`                // Horizontal placement, percent of frame width.
	Y               *float64    `json:"y,omitempty"`                // Vertical placement, percent of frame height.
	Width           *float64    `json:"width,omitempty"`            // Overlay width, percent of source width.
	StartTime       *float64    `json:"start_time,omitempty"`       // Start of the visibility window, in seconds.
	Duration        *float64    `json:"duration,omitempty"`         // Length of the visibility window, in seconds.
	Color           string      `json:"color,omitempty"`            // Text color.
	BackgroundColor string      `json:"bg,omitempty"`               // Text box color.
}

// Window returns the visibility window and whether one applies. A start
// without a duration is visible for defaultDuration seconds.
func (o Overlay) Window(defaultDuration float64) (Interval, bool) {
	if o.StartTime == nil {
		return Interval{}, false
	}
	d := defaultDuration
	if o.Duration != nil {
		d = *o.Duration
	}
	return Interval{Start: *o.StartTime, End: *o.StartTime + d}, true
}

// Float returns a pointer to v, for optional overlay fields.
func Float(v float64) *float64 {
	return &v
}
