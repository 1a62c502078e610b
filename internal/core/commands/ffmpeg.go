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
// Transcoder, the shared wrapper around the ffmpeg and ffprobe binaries that
// every media command uses.
//
// Logic Flow:
// The Transcoder never executes a binary itself. It builds argument vectors
// and hands them to a process.Executor, which owns supervision, output
// capture and cancellation. This keeps every command testable with a fake
// executor that only records the argument vectors.
//
//  1. `FFmpeg` prefixes the common flags and runs the engine.
//  2. `Probe` and `HasAudio` query ffprobe and parse its stdout.
//  3. `DetectSilence` runs the silencedetect filter and parses stderr.
//  4. `Render` serializes a filtergraph.Graph into inputs, filter_complex and
//     stream maps, then appends the codec arguments and the output path.
//  5. `Trim` cuts one interval with a stream copy and, if that fails (the
//     usual cause is keyframe misalignment), re-encodes it.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/timeline"
)

// UserAgent is sent when the engine reads a remote source.
const UserAgent = "Mozilla/5.0"

// DefaultFFmpegArgs precede every ffmpeg invocation.
var DefaultFFmpegArgs = []string{"-hide_banner", "-nostdin"}

// Codec argument sets shared by the operations.
var (
	CodecCopy      = []string{"-c", "copy"}
	CodecH264AAC   = []string{"-c:v", "libx264", "-c:a", "aac"}
	CodecVideoOnly = []string{"-c:v", "libx264", "-c:a", "copy"}
)

// Transcoder builds engine invocations and runs them through an Executor.
type Transcoder struct {
	executor process.Executor
	engines  cloud.Engines
}

// NewTranscoder creates a Transcoder for the configured binaries.
func NewTranscoder(executor process.Executor, engines cloud.Engines) *Transcoder {
	return &Transcoder{executor: executor, engines: engines}
}

// Executor returns the executor engines are run with.
func (t *Transcoder) Executor() process.Executor {
	return t.executor
}

// Engines returns the configured binaries.
func (t *Transcoder) Engines() cloud.Engines {
	return t.engines
}

// FFmpeg runs the transcoding engine with DefaultFFmpegArgs prepended.
func (t *Transcoder) FFmpeg(ctx context.Context, args ...string) (*process.Result, error) {
	full := append(append([]string{}, DefaultFFmpegArgs...), args...)
	return t.executor.Run(ctx, process.Command{Name: t.engines.FFmpeg, Args: full})
}

// Probe returns the duration of path in seconds.
func (t *Transcoder) Probe(ctx context.Context, path string) (float64, error) {
	res, err := t.executor.Run(ctx, process.Command{
		Name: t.engines.FFprobe,
		Args: []string{"-v", "error", "-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1", path},
		CaptureStdout: true,
	})
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, model.InputUnavailable(err, "could not read the duration of %s", path)
	}
	return d, nil
}

// HasAudio reports whether path carries at least one audio stream.
func (t *Transcoder) HasAudio(ctx context.Context, path string) (bool, error) {
	res, err := t.executor.Run(ctx, process.Command{
		Name: t.engines.FFprobe,
		Args: []string{"-v", "error", "-select_streams", "a",
			"-show_entries", "stream=codec_type", "-of", "csv=p=0", path},
		CaptureStdout: true,
	})
	if err != nil {
		return false, err
	}
	return strings.Contains(res.Stdout, "audio"), nil
}

// DetectSilence returns the silent intervals of path. Silence still open at
// the end of the output is closed at duration.
func (t *Transcoder) DetectSilence(ctx context.Context, path, noise string, minDuration, duration float64) ([]model.Interval, error) {
	filter := fmt.Sprintf("silencedetect=noise=%s:d=%s", noise, filtergraph.Num(minDuration))
	res, err := t.FFmpeg(ctx, "-i", path, "-af", filter, "-f", "null", "-")
	if err != nil {
		return nil, err
	}
	return timeline.ParseSilenceDetect(res.Stderr, duration), nil
}

// Render runs g and writes out. codec follows the stream maps.
func (t *Transcoder) Render(ctx context.Context, g *filtergraph.Graph, out string, codec ...string) error {
	outArgs, err := g.OutputArgs()
	if err != nil {
		return err
	}
	args := g.InputArgs()
	args = append(args, outArgs...)
	args = append(args, codec...)
	args = append(args, "-y", out)
	_, err = t.FFmpeg(ctx, args...)
	return err
}

// Trim writes iv of in to out, trying a stream copy before a re-encode.
func (t *Transcoder) Trim(ctx context.Context, in string, iv model.Interval, out string) error {
	seek := []string{"-ss", filtergraph.Num(iv.Start), "-i", in, "-t", filtergraph.Num(iv.Duration())}
	copyArgs := append(append(append([]string{}, seek...), CodecCopy...), "-y", out)
	_, err := t.FFmpeg(ctx, copyArgs...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	slog.WarnContext(ctx, "stream copy trim failed, re-encoding", "input", in, "interval", iv.String(), "error", err)
	encodeArgs := append(append(append([]string{}, seek...), CodecH264AAC...), "-y", out)
	_, err = t.FFmpeg(ctx, encodeArgs...)
	return err
}

// StreamCopy remuxes in to out without re-encoding.
func (t *Transcoder) StreamCopy(ctx context.Context, in, out string, inputOptions ...string) error {
	args := append([]string{}, inputOptions...)
	args = append(args, "-i", in)
	args = append(args, CodecCopy...)
	args = append(args, "-y", out)
	_, err := t.FFmpeg(ctx, args...)
	return err
}

// CopyFile copies src to dst.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("could not open dest file: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("could not copy to dest from source: %w", err)
	}
	return nil
}

// MoveFile renames src to dst, falling back to copy and remove across
// file systems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("could not remove source file: %w", err)
	}
	return nil
}
