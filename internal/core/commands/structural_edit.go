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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// structural edit: the commands that decide which parts of the timeline
// survive and the command that cuts and joins them.
//
// Logic Flow:
//  1. A planner stores the keep-segments under model.KeySegments. The
//     montage planner keeps the caller's cut list in order; the silence
//     planner probes the duration, detects silence and inverts it.
//  2. When no planner produced segments, the cut is skipped and the input
//     carries forward unchanged.
//  3. A single segment without per-segment filters is trimmed with a stream
//     copy (re-encoding on failure); anything else is one concat graph.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/timeline"
)

// MontagePlanner keeps an explicit cut list.
type MontagePlanner struct {
	cor.BaseCommand
	segments func(context cor.Context) []model.Interval
}

// NewMontagePlanner creates a planner over the cut list returned by segments.
// The planner is skipped when the list is empty.
func NewMontagePlanner(name string, segments func(context cor.Context) []model.Interval) *MontagePlanner {
	return &MontagePlanner{BaseCommand: *cor.NewBaseCommand(name), segments: segments}
}

func (c *MontagePlanner) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && len(c.segments(context)) > 0
}

func (c *MontagePlanner) Execute(context cor.Context) {
	keep, err := timeline.DirectInclusions(c.segments(context))
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(model.KeySegments, keep)
	c.Succeed(context, nil)
}

// SilencePlanner removes detected silence from the timeline. It probes the
// duration of cor.CtxIn, stores the detected intervals under
// model.KeySilences and the inverted keep-segments under model.KeySegments.
// A source without silence leaves no segments, so the cut is skipped.
type SilencePlanner struct {
	cor.BaseCommand
	transcoder *Transcoder
	noise      string
	minSilence float64
	fallback   float64 // Duration assumed when the probe is unreadable; 0 makes it fatal.
	when       Predicate
}

// NewSilencePlanner creates a planner detecting silence below noise lasting
// at least minSilence seconds.
//
// Inputs:
//   - name: A string name for this command instance.
//   - transcoder: Runs the duration probe and the silencedetect pass.
//   - noise: The silencedetect threshold, e.g. "-30dB".
//   - minSilence: The shortest silence removed, in seconds.
//   - fallbackDuration: The duration assumed when the probe fails; 0 makes a
//     failed probe fatal.
//   - when: Runs the planner only when it holds.
func NewSilencePlanner(name string, transcoder *Transcoder, noise string, minSilence, fallbackDuration float64, when Predicate) *SilencePlanner {
	return &SilencePlanner{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		noise:       noise,
		minSilence:  minSilence,
		fallback:    fallbackDuration,
		when:        when,
	}
}

func (c *SilencePlanner) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) &&
		context.Get(model.KeySegments) == nil &&
		c.when(context)
}

func (c *SilencePlanner) Execute(context cor.Context) {
	ctx := context.GetContext()
	in := InputPath(context)

	duration, err := c.transcoder.Probe(ctx, in)
	if err != nil {
		if c.fallback <= 0 || ctx.Err() != nil {
			c.Fail(context, err)
			return
		}
		slog.WarnContext(ctx, "duration probe failed, assuming fallback", "path", in, "fallback", c.fallback, "error", err)
		duration = c.fallback
	}
	context.Add(model.KeyDuration, duration)

	silences, err := c.transcoder.DetectSilence(ctx, in, c.noise, c.minSilence, duration)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(model.KeySilences, silences)
	if len(silences) == 0 {
		slog.InfoContext(ctx, "no silence detected, keeping the full timeline", "job_id", JobID(context))
		c.Succeed(context, nil)
		return
	}

	keep, err := timeline.InvertExclusions(silences, duration)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(ctx, "silence removal planned", "job_id", JobID(context),
		"silences", len(silences), "segments", len(keep), "kept_seconds", timeline.Total(keep))
	context.Add(model.KeySegments, keep)
	c.Succeed(context, nil)
}

// StructuralCut renders the planned keep-segments into one file.
type StructuralCut struct {
	cor.BaseCommand
	transcoder *Transcoder
	scratch    Scratch
	suffix     string               // Output name, SuffixStructure by default.
	perSegment []filtergraph.Filter // Applied to every video segment before the concat.
	codec      []string
}

// NewStructuralCut creates the cut. perSegment filters are applied to every
// video segment; codec follows the stream maps of the concat graph.
func NewStructuralCut(name string, transcoder *Transcoder, scratch Scratch, suffix string, codec []string, perSegment ...filtergraph.Filter) *StructuralCut {
	if suffix == "" {
		suffix = SuffixStructure
	}
	return &StructuralCut{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		scratch:     scratch,
		suffix:      suffix,
		perSegment:  perSegment,
		codec:       codec,
	}
}

func (c *StructuralCut) IsExecutable(context cor.Context) bool {
	segments, _ := context.Get(model.KeySegments).([]model.Interval)
	return c.BaseCommand.IsExecutable(context) && len(segments) > 0
}

func (c *StructuralCut) Execute(context cor.Context) {
	ctx := context.GetContext()
	in := InputPath(context)
	segments := context.Get(model.KeySegments).([]model.Interval)
	out := c.scratch.Path(JobID(context), c.suffix)
	context.AddTempFile(out)

	if len(segments) == 1 && len(c.perSegment) == 0 {
		if err := c.transcoder.Trim(ctx, in, segments[0], out); err != nil {
			c.Fail(context, err)
			return
		}
		c.Succeed(context, out)
		return
	}

	g, err := filtergraph.BuildConcat(in, segments, c.perSegment...)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if err := c.transcoder.Render(ctx, g, out, c.codec...); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, out)
}
