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

// Package workflow_test runs every operation's chain end to end against a
// fake engine executor. The fake writes the output file of each invocation,
// so the chains move real files through a temporary scratch directory.
package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobID = "job1"

const twoSilences = `
[silencedetect @ 0x1] silence_start: 5
[silencedetect @ 0x1] silence_end: 8 | silence_duration: 3
[silencedetect @ 0x1] silence_start: 20
[silencedetect @ 0x1] silence_end: 22 | silence_duration: 2
`

// engine answers the probes like a 30 second source with an audio track;
// silencedetect reports silence; everything else writes its output.
func engine(silence string) func(context.Context, process.Command) (*process.Result, error) {
	return func(_ context.Context, cmd process.Command) (*process.Result, error) {
		switch {
		case cmd.Name == "ffprobe" && test.HasArg(cmd.Args, "-select_streams"):
			return &process.Result{Stdout: "audio\n"}, nil
		case cmd.Name == "ffprobe":
			return &process.Result{Stdout: "30.000000\n"}, nil
		case test.Arg(cmd.Args, "-af") != "":
			return &process.Result{Stderr: silence}, nil
		}
		test.WriteOutput(cmd)
		return &process.Result{}, nil
	}
}

type fakeTranscriber struct {
	segments []model.TranscriptSegment
	err      error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, bool) ([]model.TranscriptSegment, error) {
	return f.segments, f.err
}

type fakeScenes struct {
	scenes []model.Interval
}

func (f *fakeScenes) DetectScenes(context.Context, string, int) ([]model.Interval, error) {
	return f.scenes, nil
}

type fixture struct {
	deps   *workflow.Dependencies
	exec   *test.FakeExecutor
	source string
}

func newFixture(t *testing.T, handler func(context.Context, process.Command) (*process.Result, error)) *fixture {
	t.Helper()
	config := *test.GetConfig()
	config.Application.ScratchDir = t.TempDir()
	config.Application.AssetsDir = t.TempDir()
	config.Application.FontFiles = nil

	exec := &test.FakeExecutor{Handler: handler}
	deps, err := workflow.NewDependencies(&config, nil, exec)
	require.NoError(t, err)
	deps.Transcriber = &fakeTranscriber{}

	source := filepath.Join(t.TempDir(), "input.mp4")
	require.NoError(t, os.WriteFile(source, test.MP4Header(), 0o644))
	return &fixture{deps: deps, exec: exec, source: source}
}

func (f *fixture) run(w *workflow.MediaWorkflow) cor.Context {
	c := cor.NewBaseContext()
	c.SetContext(context.Background())
	c.Add(model.KeyJobID, jobID)
	w.Execute(c)
	return c
}

func (f *fixture) final() string {
	return f.deps.Scratch.Path(jobID, commands.SuffixFinal)
}

func TestPipelineWithoutEffectsIsACopy(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	assert.Empty(t, f.exec.Named("ffmpeg"))
	assert.Equal(t, f.final(), ctx.Get(model.KeyFinalPath))
	assert.Nil(t, ctx.Get(model.KeyOutputURL))

	ctx.Close()
	assert.FileExists(t, f.final())
	assert.NoFileExists(t, f.deps.Scratch.Path(jobID, commands.SuffixSource))
	assert.NoFileExists(t, f.deps.Scratch.Path(jobID, commands.SuffixEffects))
}

func TestPipelineSilenceReframeAndMute(t *testing.T) {
	f := newFixture(t, engine(twoSilences))
	ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{
		VideoURL:       f.source,
		SmartCrop:      true,
		CropStyle:      "zoom",
		SilenceRemoval: true,
		MuteAudio:      true,
	}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 3)
	cut, effects := calls[1].Args, calls[2].Args

	assert.Contains(t, test.Arg(cut, "-filter_complex"), "concat=n=3")
	assert.Equal(t, "ultrafast", test.Arg(cut, "-preset"))

	graph := test.Arg(effects, "-filter_complex")
	assert.Contains(t, graph, "crop=1080:1920")
	assert.Contains(t, graph, "volume=0")
	assert.False(t, test.HasArg(effects, "-shortest"))
	assert.Equal(t, "fast", test.Arg(effects, "-preset"))
	assert.Equal(t, "23", test.Arg(effects, "-crf"))
	assert.Equal(t, f.deps.Scratch.Path(jobID, commands.SuffixStructure), test.Arg(effects, "-i"))

	ctx.Close()
	assert.FileExists(t, f.final())
	assert.NoFileExists(t, f.deps.Scratch.Path(jobID, commands.SuffixStructure))
}

func TestPipelineCaptionsAndMissingMusic(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = &fakeTranscriber{segments: []model.TranscriptSegment{{
		Start: 0, End: 2, Text: "hello world",
		Words: []model.Word{{Word: "hello", Start: 0, End: 1}, {Word: "world", Start: 1, End: 2}},
	}}}

	ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{
		VideoURL:  f.source,
		Captions:  true,
		AddMusic:  true,
		MusicFile: "missing.mp3",
	}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	graph := test.Arg(calls[0].Args, "-filter_complex")
	assert.Contains(t, graph, "ass=")
	assert.NotContains(t, graph, "amix")
	assert.Nil(t, ctx.Get(model.KeyMusic))
}

func TestPipelineMusicEndsWithTheVideo(t *testing.T) {
	for name, mute := range map[string]bool{"music only": true, "mixed": false} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, engine(""))
			track := filepath.Join(t.TempDir(), "song.mp3")
			require.NoError(t, os.WriteFile(track, test.MP4Header(), 0o644))

			ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{
				VideoURL:  f.source,
				AddMusic:  true,
				MusicFile: track,
				MuteAudio: mute,
			}))
			require.NoError(t, ctx.Err())

			calls := f.exec.Named("ffmpeg")
			require.Len(t, calls, 1)
			args := calls[0].Args
			assert.Equal(t, "-1", test.Arg(args, "-stream_loop"))
			assert.True(t, test.HasArg(args, "-shortest"))
			assert.Equal(t, mute, !strings.Contains(test.Arg(args, "-filter_complex"), "amix"))
			assert.FileExists(t, f.final())
		})
	}
}

func TestPipelineCaptionsWithoutTranscriberAreSkipped(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = nil

	ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{
		VideoURL:  f.source,
		Captions:  true,
		SmartCrop: true,
	}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.NotContains(t, test.Arg(calls[0].Args, "-filter_complex"), "ass=")
	assert.Nil(t, ctx.Get(model.KeyCaptions))
	assert.FileExists(t, f.final())

	// The standalone operation has nothing to do without one.
	f = newFixture(t, engine(""))
	f.deps.Transcriber = nil
	ctx = f.run(workflow.NewAddCaptionsWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	assert.ErrorIs(t, ctx.Err(), model.ErrAnalysisEngineFailure)
}

func TestPipelineFailureCleansUp(t *testing.T) {
	f := newFixture(t, func(_ context.Context, cmd process.Command) (*process.Result, error) {
		if cmd.Name == "ffmpeg" && test.Arg(cmd.Args, "-filter_complex") != "" {
			return nil, model.ProcessFailure(&process.ExitError{Binary: "ffmpeg", ExitCode: 1}, "engine failed")
		}
		return engine("")(context.Background(), cmd)
	})
	ctx := f.run(workflow.NewPipelineWorkflow(f.deps, &model.PipelineRequest{VideoURL: f.source, SmartCrop: true}))

	assert.ErrorIs(t, ctx.Err(), model.ErrProcessFailure)
	assert.Nil(t, ctx.Get(model.KeyFinalPath))
	ctx.Close()
	entries, err := os.ReadDir(f.deps.Scratch.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSmartCropCodecFollowsStyle(t *testing.T) {
	for style, want := range map[string][]string{
		"zoom":      {"fast", "23"},
		"blur":      {"ultrafast", "28"},
		"":          {"ultrafast", "28"},
		"Zoom-Crop": {"fast", "23"},
	} {
		t.Run(style, func(t *testing.T) {
			f := newFixture(t, engine(""))
			ctx := f.run(workflow.NewSmartCropWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source, CropStyle: style}))
			require.NoError(t, ctx.Err())

			calls := f.exec.Named("ffmpeg")
			require.Len(t, calls, 1)
			assert.Equal(t, want[0], test.Arg(calls[0].Args, "-preset"))
			assert.Equal(t, want[1], test.Arg(calls[0].Args, "-crf"))
			assert.Equal(t, "copy", test.Arg(calls[0].Args, "-c:a"))
		})
	}
}

func TestRemoveSilenceWithoutSilenceKeepsSource(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewRemoveSilenceWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.Equal(t, "silencedetect=noise=-35dB:d=0.75", test.Arg(calls[0].Args, "-af"))
	assert.FileExists(t, f.final())
}

func TestRemoveSilenceCutsAtFinalQuality(t *testing.T) {
	f := newFixture(t, engine(twoSilences))
	ctx := f.run(workflow.NewRemoveSilenceWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 2)
	assert.Equal(t, "23", test.Arg(calls[1].Args, "-crf"))
	assert.Equal(t, "aac", test.Arg(calls[1].Args, "-c:a"))
}

func TestMuteAudioDropsTheAudioStream(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewMuteAudioWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.True(t, test.HasArg(calls[0].Args, "-an"))
	assert.Equal(t, "copy", test.Arg(calls[0].Args, "-c:v"))
	assert.FileExists(t, f.final())
}

func TestAddCaptionsBurnsSubtitles(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = &fakeTranscriber{segments: []model.TranscriptSegment{{Start: 0, End: 2, Text: "Welcome back everyone"}}}
	ctx := f.run(workflow.NewAddCaptionsWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.Contains(t, test.Arg(calls[0].Args, "-filter_complex"), "subtitles=")
	assert.Equal(t, "copy", test.Arg(calls[0].Args, "-c:a"))
}

func TestAddCaptionsWithoutSpeechIsACopy(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = &fakeTranscriber{segments: []model.TranscriptSegment{{Start: 0, End: 2, Text: "[Music]"}}}
	ctx := f.run(workflow.NewAddCaptionsWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	assert.Empty(t, f.exec.Named("ffmpeg"))
	assert.FileExists(t, f.final())
}

func TestAddCaptionsTranscriberFailure(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = &fakeTranscriber{err: errors.New("model crashed")}
	ctx := f.run(workflow.NewAddCaptionsWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	assert.ErrorIs(t, ctx.Err(), model.ErrAnalysisEngineFailure)
}

func TestAddMusicMixesPresetTrack(t *testing.T) {
	f := newFixture(t, engine(""))
	musicDir := filepath.Join(f.deps.Config.Application.AssetsDir, "music")
	require.NoError(t, os.MkdirAll(musicDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(musicDir, "upbeat.mp3"), test.MP4Header(), 0o644))

	ctx := f.run(workflow.NewAddMusicWorkflow(f.deps, &model.MusicRequest{VideoURL: f.source, Volume: model.Float(0.3)}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	args := calls[0].Args
	graph := test.Arg(args, "-filter_complex")
	assert.Contains(t, graph, "volume=0.3")
	assert.Contains(t, graph, "amix")
	assert.Equal(t, "-1", test.Arg(args, "-stream_loop"))
	assert.Equal(t, "0:v", test.Arg(args, "-map"))
	assert.True(t, test.HasArg(args, "-shortest"))
}

func TestAddMusicWithoutTrackIsUnavailable(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewAddMusicWorkflow(f.deps, &model.MusicRequest{VideoURL: f.source, MusicFile: "nope.mp3"}))
	assert.ErrorIs(t, ctx.Err(), model.ErrInputUnavailable)
}

func TestMusicGraph(t *testing.T) {
	g, err := workflow.MusicGraph("in.mp4", "song.mp3", 0.2, true)
	require.NoError(t, err)
	assert.Contains(t, g.String(), "amix")
	assert.Equal(t, filtergraph.LabelAudioOut, g.Audio())

	g, err = workflow.MusicGraph("in.mp4", "song.mp3", 0.2, false)
	require.NoError(t, err)
	assert.Equal(t, "[1:a]volume=0.2[a_out]", g.String())
	assert.Equal(t, filtergraph.VideoOf(0), g.Video())
}

func TestRenderClipArguments(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewRenderClipWorkflow(f.deps, &model.ClipRequest{VideoURL: f.source, StartTime: 5, EndTime: 12.5}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	args := calls[0].Args
	assert.Equal(t, "5", test.Arg(args, "-ss"))
	assert.Equal(t, "12.5", test.Arg(args, "-to"))
	assert.Equal(t, filtergraph.VerticalCrop().String(), test.Arg(args, "-vf"))

	f = newFixture(t, engine(""))
	f.run(workflow.NewRenderClipWorkflow(f.deps, &model.ClipRequest{VideoURL: f.source, StartTime: 0, EndTime: 3, TargetAspectRatio: "16:9"}))
	assert.Equal(t, "scale=1920:-1", test.Arg(f.exec.Named("ffmpeg")[0].Args, "-vf"))
}

func TestRenderViralClipWithoutOverlaysCopiesTheTrim(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewRenderViralClipWorkflow(f.deps, &model.ViralClipRequest{VideoURL: f.source, StartTime: 2, EndTime: 8}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.Equal(t, "6", test.Arg(calls[0].Args, "-t"))
	assert.Equal(t, "copy", test.Arg(calls[0].Args, "-c"))
	assert.FileExists(t, f.final())
}

func TestRenderViralClipWithTextAndCaptions(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Transcriber = &fakeTranscriber{segments: []model.TranscriptSegment{{Start: 0, End: 3, Text: "this is amazing"}}}
	ctx := f.run(workflow.NewRenderViralClipWorkflow(f.deps, &model.ViralClipRequest{
		VideoURL:     f.source,
		StartTime:    0,
		EndTime:      10,
		AutoCaptions: true,
		Overlays:     []model.Overlay{{ID: "title", Type: model.OverlayText, Text: "Top moment", StartTime: model.Float(1)}},
	}))
	require.NoError(t, ctx.Err())

	overlays := ctx.Get(model.KeyOverlays).([]model.Overlay)
	require.Len(t, overlays, 2)
	assert.Equal(t, "title", overlays[0].ID)
	assert.Equal(t, "auto_0", overlays[1].ID)

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 2)
	args := calls[1].Args
	graph := test.Arg(args, "-filter_complex")
	assert.Equal(t, 2, strings.Count(graph, "drawtext="))
	assert.Contains(t, graph, "Top moment")
	assert.True(t, test.HasArg(args, "-shortest"))
	assert.Equal(t, "copy", test.Arg(args, "-c:a"))
}

func TestRenderMontageCropsEverySegment(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewRenderMontageWorkflow(f.deps, &model.MontageRequest{
		VideoURL: f.source,
		Segments: []model.Interval{{Start: 0, End: 4}, {Start: 10, End: 14}},
	}))
	require.NoError(t, ctx.Err())

	calls := f.exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	graph := test.Arg(calls[0].Args, "-filter_complex")
	assert.Equal(t, 2, strings.Count(graph, "crop=in_h*9/16"))
	assert.Contains(t, graph, "concat=n=2")
}

func TestRenderMontageDropsInvalidSegments(t *testing.T) {
	f := newFixture(t, engine(""))
	ctx := f.run(workflow.NewRenderMontageWorkflow(f.deps, &model.MontageRequest{
		VideoURL: f.source,
		Segments: []model.Interval{{Start: 5, End: 3}},
	}))
	assert.ErrorIs(t, ctx.Err(), model.ErrEmptyTimeline)
	assert.Empty(t, f.exec.Named("ffmpeg"))
}

func TestClipAnalysisWorkflow(t *testing.T) {
	f := newFixture(t, engine(""))
	f.deps.Scenes = &fakeScenes{scenes: []model.Interval{{Start: 0, End: 1}, {Start: 1, End: 6}, {Start: 6, End: 12}}}
	f.deps.Transcriber = &fakeTranscriber{segments: []model.TranscriptSegment{{Start: 7, End: 9, Text: "This is amazing!"}}}

	ctx := f.run(workflow.NewClipAnalysisWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())

	result, ok := ctx.Get(model.KeyAnalysis).(*model.AnalysisResult)
	require.True(t, ok)
	assert.Equal(t, jobID, result.JobID)
	require.Len(t, result.Scenes, 2)
	assert.Greater(t, result.Scenes[0].ViralScore, analysis.BaseScore)
	assert.Nil(t, ctx.Get(model.KeyFinalPath))
}

func TestTranscribeWorkflow(t *testing.T) {
	f := newFixture(t, engine(""))
	want := []model.TranscriptSegment{{Start: 0, End: 1, Text: "hi"}}
	f.deps.Transcriber = &fakeTranscriber{segments: want}

	ctx := f.run(workflow.NewTranscribeWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source}))
	require.NoError(t, ctx.Err())
	assert.Equal(t, want, ctx.Get(model.KeyTranscript))
}

func TestWorkflowKindsAndExecutable(t *testing.T) {
	f := newFixture(t, engine(""))
	w := workflow.NewMuteAudioWorkflow(f.deps, &model.SourceRequest{VideoURL: f.source})
	assert.Equal(t, model.KindMuteAudio, w.Kind())

	c := cor.NewBaseContext()
	assert.False(t, w.IsExecutable(c))
	c.SetContext(context.Background())
	assert.True(t, w.IsExecutable(c))
}

func TestNewDependenciesFallsBackToWhisper(t *testing.T) {
	config := *test.GetConfig()
	config.Application.ScratchDir = t.TempDir()
	config.Analysis.Transcriber = workflow.TranscriberGemini

	deps, err := workflow.NewDependencies(&config, nil, &test.FakeExecutor{})
	require.NoError(t, err)
	assert.IsType(t, &analysis.WhisperCLI{}, deps.Transcriber)
	assert.False(t, deps.Uploader.Enabled())
}

func TestResolveFontFile(t *testing.T) {
	dir := t.TempDir()
	font := filepath.Join(dir, "font.ttf")
	require.NoError(t, os.WriteFile(font, []byte("ttf"), 0o644))

	assert.Equal(t, font, workflow.ResolveFontFile([]string{filepath.Join(dir, "missing.ttf"), dir, font}))
	assert.Equal(t, "", workflow.ResolveFontFile(nil))
}
