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

package model

import (
	"errors"
	"strings"
)

// ReframeStyle selects how landscape sources are fitted to a vertical frame.
type ReframeStyle string

const (
	ReframeNone ReframeStyle = ""
	ReframeZoom ReframeStyle = "zoom"
	ReframeBlur ReframeStyle = "blur"
)

// NormalizeReframeStyle maps any free-form style onto zoom or blur.
func NormalizeReframeStyle(style string) ReframeStyle {
	if strings.Contains(strings.ToLower(style), "zoom") {
		return ReframeZoom
	}
	return ReframeBlur
}

// PipelineRequest is the configuration bag for the combined effects pipeline.
type PipelineRequest struct {
	VideoURL        string     `json:"video_url"`
	SmartCrop       bool       `json:"smart_crop"`
	CropStyle       string     `json:"crop_style"`
	SilenceRemoval  bool       `json:"silence_removal"`
	MontageSegments []Interval `json:"montage_segments,omitempty"`
	Captions        bool       `json:"captions"`
	AddMusic        bool       `json:"add_music"`
	MusicFile       string     `json:"music_file"`
	MuteAudio       bool       `json:"mute_audio"`
	AddHook         bool       `json:"add_hook"`
	HookText        string     `json:"hook_text"`
	Volume          *float64   `json:"volume,omitempty"`
	IsSearch        bool       `json:"is_search"`
	SafeSearch      *bool      `json:"safe_search,omitempty"`
}

// Validate rejects requests that cannot produce any output.
func (r *PipelineRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	return nil
}

// Reframe returns the requested reframe style, or ReframeNone.
func (r *PipelineRequest) Reframe() ReframeStyle {
	if !r.SmartCrop {
		return ReframeNone
	}
	if r.CropStyle == "" {
		return ReframeBlur
	}
	return NormalizeReframeStyle(r.CropStyle)
}

// Hook returns the intro hook text, or "" when no hook applies.
func (r *PipelineRequest) Hook() string {
	if !r.AddHook {
		return ""
	}
	return strings.TrimSpace(r.HookText)
}

// MusicVolume returns the requested music gain, falling back to def.
func (r *PipelineRequest) MusicVolume(def float64) float64 {
	if r.Volume == nil {
		return def
	}
	return *r.Volume
}

// IsSafeSearch defaults to true.
func (r *PipelineRequest) IsSafeSearch() bool {
	return r.SafeSearch == nil || *r.SafeSearch
}

// SourceRequest is the payload of the single-effect operations.
type SourceRequest struct {
	VideoURL  string `json:"video_url"`
	CropStyle string `json:"crop_style,omitempty"`
}

func (r *SourceRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	return nil
}

// MusicRequest adds a background track to a source.
type MusicRequest struct {
	VideoURL   string   `json:"video_url"`
	MusicFile  string   `json:"music_file"`
	Volume     *float64 `json:"volume,omitempty"`
	IsSearch   bool     `json:"is_search"`
	SafeSearch *bool    `json:"safe_search,omitempty"`
}

func (r *MusicRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	return nil
}

// Track returns the requested music, or def when none was named.
func (r *MusicRequest) Track(def string) string {
	if strings.TrimSpace(r.MusicFile) == "" {
		return def
	}
	return strings.TrimSpace(r.MusicFile)
}

// MusicVolume returns the requested gain, or def.
func (r *MusicRequest) MusicVolume(def float64) float64 {
	if r.Volume == nil {
		return def
	}
	return *r.Volume
}

// IsSafeSearch reports whether music searches are restricted, true unless
// the caller opted out.
func (r *MusicRequest) IsSafeSearch() bool {
	return r.SafeSearch == nil || *r.SafeSearch
}

// DefaultAspectRatio is the target aspect ratio when a render request
// names none.
const DefaultAspectRatio = "9:16"

// ClipRequest renders a single time-bounded clip.
type ClipRequest struct {
	VideoURL          string  `json:"video_url"`
	StartTime         float64 `json:"start_time"`
	EndTime           float64 `json:"end_time"`
	TargetAspectRatio string  `json:"target_aspect_ratio,omitempty"`
}

func (r *ClipRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	if !r.Interval().Valid() {
		return errors.New("end_time must be greater than start_time")
	}
	return nil
}

// Interval returns the requested clip range.
func (r *ClipRequest) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// Vertical reports whether the clip is cropped to 9:16.
func (r *ClipRequest) Vertical() bool {
	return r.TargetAspectRatio == "" || r.TargetAspectRatio == DefaultAspectRatio
}

// ViralClipRequest renders a clip with overlays and optional auto captions.
type ViralClipRequest struct {
	VideoURL     string    `json:"video_url"`
	StartTime    float64   `json:"start_time"`
	EndTime      float64   `json:"end_time"`
	Overlays     []Overlay `json:"overlays,omitempty"`
	AutoCaptions bool      `json:"auto_captions"`
}

func (r *ViralClipRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	if !r.Interval().Valid() {
		return errors.New("end_time must be greater than start_time")
	}
	for _, o := range r.Overlays {
		switch o.Type {
		case OverlayText, OverlayImage, OverlayVideo:
		default:
			return errors.New("unknown overlay type: " + string(o.Type))
		}
	}
	return nil
}

// Interval returns the requested clip range.
func (r *ViralClipRequest) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// MontageRequest concatenates an explicit segment list in caller order.
type MontageRequest struct {
	VideoURL          string     `json:"video_url"`
	Segments          []Interval `json:"segments"`
	TargetAspectRatio string     `json:"target_aspect_ratio,omitempty"`
}

func (r *MontageRequest) Validate() error {
	if strings.TrimSpace(r.VideoURL) == "" {
		return errors.New("video_url is required")
	}
	if len(r.Segments) == 0 {
		return errors.New("segments are required")
	}
	return nil
}

// Vertical reports whether each segment is cropped to 9:16.
func (r *MontageRequest) Vertical() bool {
	return r.TargetAspectRatio == "" || r.TargetAspectRatio == DefaultAspectRatio
}
