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
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of the worker's single job slot.
type JobStatus string

const (
	StatusIdle JobStatus = "idle"
	StatusBusy JobStatus = "busy"
)

// Kinds of work a job can perform.
const (
	KindPipeline        = "pipeline"
	KindSmartCrop       = "smart_crop"
	KindRemoveSilence   = "remove_silence"
	KindMuteAudio       = "mute_audio"
	KindAddCaptions     = "add_captions"
	KindAnalysis        = "analysis"
	KindRenderClip      = "render_clip"
	KindRenderViralClip = "render_viral_clip"
	KindRenderMontage   = "render_montage"
	KindAddMusic        = "add_music"
	KindTranscribe      = "transcribe"
)

// Job is the snapshot returned by status reads.
type Job struct {
	Status    JobStatus `json:"status"`
	ID        string    `json:"job_id"`
	Kind      string    `json:"type"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// IdleJob is the registry's resting state.
func IdleJob() Job {
	return Job{Status: StatusIdle}
}

// NewJobID returns a short, unique job id used to key scratch files.
func NewJobID() string {
	return uuid.New().String()[:8]
}

// JobResult is the handle returned by every media-producing operation.
type JobResult struct {
	Status     string  `json:"status"`               // Always "completed" on success.
	JobID      string  `json:"job_id"`               // Job that produced the artifact.
	OutputPath string  `json:"output_path"`          // Local artifact path.
	OutputURL  string  `json:"output_url,omitempty"` // Remote URL, when uploaded.
	Duration   float64 `json:"duration,omitempty"`   // Rendered duration, for clip renders.
}
