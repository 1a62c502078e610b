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

package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/subtitles"
)

// CaptionFormat selects the subtitle file written for burn-in.
type CaptionFormat int

const (
	// CaptionsASS writes one colored event per word.
	CaptionsASS CaptionFormat = iota
	// CaptionsSRT writes one cleaned cue per segment.
	CaptionsSRT
)

// Transcribe stores the transcript of the chain input under
// model.KeyTranscript.
//
// Inputs:
//   - cor.CtxIn: The media file to transcribe.
//
// Outputs:
//   - model.KeyTranscript: The []model.TranscriptSegment, with word timings
//     when the command was created with words set.
//
// A missing transcriber fails the job unless the command was made Optional,
// in which case the step is skipped with a warning and no transcript is
// stored.
type Transcribe struct {
	cor.BaseCommand
	transcriber analysis.Transcriber
	words       bool
	when        Predicate
	ready       func() bool
}

// NewTranscribe creates the command. words requests word timings.
func NewTranscribe(name string, transcriber analysis.Transcriber, words bool, when Predicate) *Transcribe {
	return &Transcribe{BaseCommand: *cor.NewBaseCommand(name), transcriber: transcriber, words: words, when: when}
}

// Optional skips the command instead of failing when ready reports that no
// speech engine is usable.
func (c *Transcribe) Optional(ready func() bool) *Transcribe {
	c.ready = ready
	return c
}

func (c *Transcribe) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && c.when(context)
}

func (c *Transcribe) Execute(context cor.Context) {
	if c.ready != nil && (c.transcriber == nil || !c.ready()) {
		slog.WarnContext(context.GetContext(), "no transcriber available, skipping captions", "job_id", JobID(context))
		return
	}
	if c.transcriber == nil {
		c.Fail(context, model.AnalysisEngineFailure(nil, "no transcriber is configured"))
		return
	}
	segments, err := c.transcriber.Transcribe(context.GetContext(), InputPath(context), c.words)
	if err != nil {
		c.Fail(context, wrapEngineError(err, "transcription failed"))
		return
	}
	context.Add(model.KeyTranscript, segments)
	c.Succeed(context, nil)
}

// CaptionWriter writes the stored transcript as a subtitle file and stores
// its path under model.KeyCaptions. A transcript without usable lines
// leaves no captions, so the effects pass skips burn-in.
type CaptionWriter struct {
	cor.BaseCommand
	scratch Scratch
	format  CaptionFormat
}

func NewCaptionWriter(name string, scratch Scratch, format CaptionFormat) *CaptionWriter {
	return &CaptionWriter{BaseCommand: *cor.NewBaseCommand(name), scratch: scratch, format: format}
}

func (c *CaptionWriter) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(model.KeyTranscript) != nil
}

func (c *CaptionWriter) Execute(context cor.Context) {
	segments := context.Get(model.KeyTranscript).([]model.TranscriptSegment)
	ext := ".ass"
	if c.format == CaptionsSRT {
		ext = ".srt"
	}
	path := c.scratch.Path(JobID(context), "captions"+ext)
	context.AddTempFile(path)

	f, err := os.Create(path)
	if err != nil {
		c.Fail(context, err)
		return
	}
	cues := len(segments)
	if c.format == CaptionsSRT {
		cues, err = subtitles.WriteSRT(f, segments)
	} else {
		err = subtitles.WriteASS(f, segments)
	}
	err = errors.Join(err, f.Close())
	if err != nil {
		c.Fail(context, err)
		return
	}

	if cues == 0 {
		slog.WarnContext(context.GetContext(), "transcript has no usable captions", "job_id", JobID(context))
		c.Succeed(context, nil)
		return
	}
	context.Add(model.KeyCaptions, path)
	c.Succeed(context, nil)
}

// wrapEngineError keeps taxonomy errors and classifies anything else as an
// analysis engine failure.
func wrapEngineError(err error, message string) error {
	var pe *model.PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return model.AnalysisEngineFailure(err, "%s", message)
}
