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

package commands_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var engines = cloud.Engines{FFmpeg: "ffmpeg", FFprobe: "ffprobe", YTDLP: "yt-dlp"}

const jobID = "job1"

func newContext(in string) cor.Context {
	c := cor.NewBaseContext()
	c.SetContext(context.Background())
	c.Add(model.KeyJobID, jobID)
	if in != "" {
		c.Add(cor.CtxIn, in)
	}
	return c
}

func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, test.MP4Header(), 0o644))
	return p
}

// silenceHandler answers ffprobe with a 30 second duration and silencedetect
// with two silences; every other invocation writes its output file.
func silenceHandler(stderr string) func(context.Context, process.Command) (*process.Result, error) {
	return func(_ context.Context, cmd process.Command) (*process.Result, error) {
		if cmd.Name == "ffprobe" {
			return &process.Result{Stdout: "30.000000\n"}, nil
		}
		if test.Arg(cmd.Args, "-af") != "" {
			return &process.Result{Stderr: stderr}, nil
		}
		test.WriteOutput(cmd)
		return &process.Result{}, nil
	}
}

const twoSilences = `
[silencedetect @ 0x1] silence_start: 5
[silencedetect @ 0x1] silence_end: 8 | silence_duration: 3
[silencedetect @ 0x1] silence_start: 20
[silencedetect @ 0x1] silence_end: 22 | silence_duration: 2
`

func TestMediaDownloadCopiesLocalSource(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "input.mp4")
	scratch := commands.Scratch{Dir: dir}

	ctx := newContext(src)
	commands.NewMediaDownload("download", commands.NewTranscoder(&test.FakeExecutor{}, engines), nil, scratch).Execute(ctx)

	require.False(t, ctx.HasErrors())
	dst := scratch.Path(jobID, commands.SuffixSource)
	assert.Equal(t, dst, ctx.Get(cor.CtxOut))
	assert.Equal(t, src, ctx.Get(model.KeySource))
	assert.FileExists(t, dst)
	assert.Contains(t, ctx.GetTempFiles(), dst)
}

func TestMediaDownloadRemoteUsesEngine(t *testing.T) {
	exec := &test.FakeExecutor{}
	ctx := newContext("https://example.com/clip.mp4")
	commands.NewMediaDownload("download", commands.NewTranscoder(exec, engines), nil, commands.Scratch{Dir: t.TempDir()}).Execute(ctx)

	require.False(t, ctx.HasErrors())
	calls := exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.Equal(t, commands.UserAgent, test.Arg(calls[0].Args, "-user_agent"))
	assert.Equal(t, "https://example.com/clip.mp4", test.Arg(calls[0].Args, "-i"))
	assert.True(t, test.HasArg(calls[0].Args, "copy"))
}

func TestMediaDownloadRejectsUnknownContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("just some text, not a video"), 0o644))

	ctx := newContext(src)
	commands.NewMediaDownload("download", commands.NewTranscoder(&test.FakeExecutor{}, engines), nil, commands.Scratch{Dir: dir}).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrInputUnavailable)

	ctx = newContext(filepath.Join(dir, "missing.mp4"))
	commands.NewMediaDownload("download", commands.NewTranscoder(&test.FakeExecutor{}, engines), nil, commands.Scratch{Dir: dir}).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrInputUnavailable)
}

func TestSilenceRemovalCutsKeepSegments(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	scratch := commands.Scratch{Dir: dir}
	exec := &test.FakeExecutor{Handler: silenceHandler(twoSilences)}
	tc := commands.NewTranscoder(exec, engines)

	chain := cor.NewBaseChain("silence").
		AddCommand(commands.NewSilencePlanner("plan", tc, "-30dB", 0.5, 0, commands.Always)).
		AddCommand(commands.NewStructuralCut("cut", tc, scratch, "", commands.CodecH264AAC))
	ctx := newContext(src)
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, []model.Interval{{Start: 0, End: 5}, {Start: 8, End: 20}, {Start: 22, End: 30}}, ctx.Get(model.KeySegments))
	assert.Equal(t, 30.0, ctx.Get(model.KeyDuration))
	assert.Equal(t, scratch.Path(jobID, commands.SuffixStructure), ctx.Get(cor.CtxIn))

	renders := exec.Named("ffmpeg")
	require.Len(t, renders, 2)
	assert.Equal(t, "silencedetect=noise=-30dB:d=0.5", test.Arg(renders[0].Args, "-af"))
	graph := test.Arg(renders[1].Args, "-filter_complex")
	assert.Contains(t, graph, "concat=n=3")
	assert.Equal(t, "[outv]", test.Arg(renders[1].Args, "-map"))
	assert.True(t, test.HasArg(renders[1].Args, "libx264"))
}

func TestNoSilenceKeepsTheInput(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	exec := &test.FakeExecutor{Handler: silenceHandler("")}
	tc := commands.NewTranscoder(exec, engines)

	chain := cor.NewBaseChain("silence").
		AddCommand(commands.NewSilencePlanner("plan", tc, "-30dB", 0.5, 0, commands.Always)).
		AddCommand(commands.NewStructuralCut("cut", tc, commands.Scratch{Dir: dir}, "", commands.CodecH264AAC))
	ctx := newContext(src)
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Nil(t, ctx.Get(model.KeySegments))
	assert.Equal(t, src, ctx.Get(cor.CtxIn))
	assert.Len(t, exec.Named("ffmpeg"), 1)
}

func TestSilenceCoveringEverythingIsEmptyTimeline(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	whole := "[silencedetect @ 0x1] silence_start: 0\n[silencedetect @ 0x1] silence_end: 30 | silence_duration: 30\n"
	tc := commands.NewTranscoder(&test.FakeExecutor{Handler: silenceHandler(whole)}, engines)

	ctx := newContext(src)
	commands.NewSilencePlanner("plan", tc, "-30dB", 0.5, 0, commands.Always).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrEmptyTimeline)
}

func TestTrailingSilenceIsCutAtTheProbedDuration(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	trailing := "[silencedetect @ 0x1] silence_start: 5\n" +
		"[silencedetect @ 0x1] silence_end: 8 | silence_duration: 3\n" +
		"[silencedetect @ 0x1] silence_start: 26.5\n"
	tc := commands.NewTranscoder(&test.FakeExecutor{Handler: silenceHandler(trailing)}, engines)

	ctx := newContext(src)
	commands.NewSilencePlanner("plan", tc, "-35dB", 0.3, 3600, commands.Always).Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, []model.Interval{{Start: 5, End: 8}, {Start: 26.5, End: 30}}, ctx.Get(model.KeySilences))
	assert.Equal(t, []model.Interval{{Start: 0, End: 5}, {Start: 8, End: 26.5}}, ctx.Get(model.KeySegments))
}

func TestSilenceProbeFallback(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	exec := &test.FakeExecutor{Handler: func(_ context.Context, cmd process.Command) (*process.Result, error) {
		if cmd.Name == "ffprobe" {
			return &process.Result{Stdout: "N/A"}, nil
		}
		return &process.Result{}, nil
	}}
	tc := commands.NewTranscoder(exec, engines)

	ctx := newContext(src)
	commands.NewSilencePlanner("plan", tc, "-35dB", 0.3, 3600, commands.Always).Execute(ctx)
	require.NoError(t, ctx.Err())
	assert.Equal(t, 3600.0, ctx.Get(model.KeyDuration))

	ctx = newContext(src)
	commands.NewSilencePlanner("plan", tc, "-35dB", 0.3, 0, commands.Always).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrInputUnavailable)
}

func TestMontageTakesPrecedenceOverSilence(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	exec := &test.FakeExecutor{Handler: silenceHandler(twoSilences)}
	tc := commands.NewTranscoder(exec, engines)
	cuts := []model.Interval{{Start: 10, End: 12}, {Start: 2, End: 4}, {Start: 7, End: 6}}

	chain := cor.NewBaseChain("structure").
		AddCommand(commands.NewMontagePlanner("montage", func(cor.Context) []model.Interval { return cuts })).
		AddCommand(commands.NewSilencePlanner("plan", tc, "-30dB", 0.5, 0, commands.Always))
	ctx := newContext(src)
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, []model.Interval{{Start: 10, End: 12}, {Start: 2, End: 4}}, ctx.Get(model.KeySegments))
	assert.Empty(t, exec.Calls())
}

func TestSingleSegmentTrimFallsBackToEncode(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	exec := &test.FakeExecutor{Handler: func(_ context.Context, cmd process.Command) (*process.Result, error) {
		if test.Arg(cmd.Args, "-c") == "copy" {
			return nil, model.ProcessFailure(errors.New("exit status 1"), "ffmpeg failed")
		}
		test.WriteOutput(cmd)
		return &process.Result{}, nil
	}}
	tc := commands.NewTranscoder(exec, engines)

	ctx := newContext(src)
	ctx.Add(model.KeySegments, []model.Interval{{Start: 5, End: 15}})
	commands.NewStructuralCut("cut", tc, commands.Scratch{Dir: dir}, commands.SuffixTrimmed, commands.CodecH264AAC).Execute(ctx)

	require.NoError(t, ctx.Err())
	calls := exec.Named("ffmpeg")
	require.Len(t, calls, 2)
	assert.Equal(t, "5", test.Arg(calls[0].Args, "-ss"))
	assert.Equal(t, "10", test.Arg(calls[0].Args, "-t"))
	assert.Equal(t, "libx264", test.Arg(calls[1].Args, "-c:v"))
	assert.FileExists(t, ctx.Get(cor.CtxOut).(string))
}

func TestEffectsPassCopiesWhenNothingIsRequested(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step1.mp4")
	exec := &test.FakeExecutor{}
	plan := func(_ cor.Context, source string) (*filtergraph.Graph, error) {
		return filtergraph.Build(source, filtergraph.Effects{})
	}

	ctx := newContext(src)
	commands.NewEffectsPass("effects", commands.NewTranscoder(exec, engines), commands.Scratch{Dir: dir}, "", plan, commands.Codec(commands.CodecH264AAC...)).Execute(ctx)

	require.NoError(t, ctx.Err())
	out := ctx.Get(cor.CtxOut).(string)
	assert.Equal(t, filepath.Join(dir, "job1_final_pass.mp4"), out)
	assert.FileExists(t, out)
	assert.Empty(t, exec.Calls())
}

func TestEffectsPassRendersPlannedGraph(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step1.mp4")
	exec := &test.FakeExecutor{}
	plan := func(_ cor.Context, source string) (*filtergraph.Graph, error) {
		return filtergraph.Build(source, filtergraph.Effects{Reframe: model.ReframeZoom, Mute: true})
	}

	ctx := newContext(src)
	codec := []string{"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-c:a", "aac"}
	commands.NewEffectsPass("effects", commands.NewTranscoder(exec, engines), commands.Scratch{Dir: dir}, "", plan, commands.Codec(codec...)).Execute(ctx)

	require.NoError(t, ctx.Err())
	calls := exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	args := calls[0].Args
	assert.Contains(t, test.Arg(args, "-filter_complex"), "[v_cropped]")
	assert.Contains(t, test.Arg(args, "-filter_complex"), "volume=0")
	assert.Equal(t, "fast", test.Arg(args, "-preset"))
	assert.Equal(t, filepath.Join(dir, "job1_final_pass.mp4"), args[len(args)-1])
}

func TestEngineStepRunsPlannedArguments(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step0.mp4")
	exec := &test.FakeExecutor{}
	mute := func(_ cor.Context, in, out string) ([]string, error) {
		return []string{"-i", in, "-c:v", "copy", "-an", "-y", out}, nil
	}

	ctx := newContext(src)
	commands.NewEngineStep("mute", commands.NewTranscoder(exec, engines), commands.Scratch{Dir: dir}, "muted.mp4", mute).Execute(ctx)

	require.NoError(t, ctx.Err())
	calls := exec.Named("ffmpeg")
	require.Len(t, calls, 1)
	assert.Equal(t, append(append([]string{}, commands.DefaultFFmpegArgs...), "-i", src, "-c:v", "copy", "-an", "-y", filepath.Join(dir, "job1_muted.mp4")), calls[0].Args)
}

func TestMediaFinalizeKeepsOnlyTheArtifact(t *testing.T) {
	dir := t.TempDir()
	scratch := commands.Scratch{Dir: dir}
	src := writeMedia(t, dir, "job1_step0.mp4")
	pass := writeMedia(t, dir, "job1_final_pass.mp4")

	ctx := newContext(pass)
	ctx.AddTempFile(src)
	ctx.AddTempFile(pass)
	commands.NewMediaFinalize("finalize", scratch, "").Execute(ctx)
	require.NoError(t, ctx.Err())
	ctx.Close()

	final := scratch.Path(jobID, commands.SuffixFinal)
	assert.Equal(t, final, ctx.Get(model.KeyFinalPath))
	assert.FileExists(t, final)
	assert.NoFileExists(t, src)
	assert.NoFileExists(t, pass)
}

func TestCancelledUploadDiscardsTheArtifact(t *testing.T) {
	dir := t.TempDir()
	scratch := commands.Scratch{Dir: dir}
	pass := writeMedia(t, dir, "job1_final_pass.mp4")

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	upload := commands.NewArtifactUpload("upload", cloud.NewUploader(client, nil, cloud.Storage{OutputBucket: "out"}, ""))

	ctx := newContext(pass)
	ctx.AddTempFile(pass)
	commands.NewMediaFinalize("finalize", scratch, "").Execute(ctx)
	require.NoError(t, ctx.Err())

	preempted, cancel := context.WithCancel(context.Background())
	cancel()
	ctx.SetContext(preempted)
	require.True(t, upload.IsExecutable(ctx))
	upload.Execute(ctx)

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Nil(t, ctx.Get(model.KeyFinalPath))
	ctx.Close()
	assert.NoFileExists(t, scratch.Path(jobID, commands.SuffixFinal))
}

func TestDiscardFinalWithoutArtifact(t *testing.T) {
	ctx := newContext("")
	commands.DiscardFinal(ctx)
	assert.Empty(t, ctx.GetTempFiles())
}

func TestArtifactUploadNeedsABucket(t *testing.T) {
	ctx := newContext("")
	ctx.Add(model.KeyFinalPath, "/tmp/job1_final.mp4")
	assert.False(t, commands.NewArtifactUpload("upload", nil).IsExecutable(ctx))
	uploader := cloud.NewUploader(nil, nil, cloud.Storage{OutputBucket: "out"}, "")
	assert.False(t, commands.NewArtifactUpload("upload", uploader).IsExecutable(ctx))
}

type fakeTranscriber struct {
	segments []model.TranscriptSegment
	err      error
	words    bool
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, words bool) ([]model.TranscriptSegment, error) {
	f.words = words
	return f.segments, f.err
}

func TestTranscribeAndWriteCaptions(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "job1_step1.mp4")
	tr := &fakeTranscriber{segments: []model.TranscriptSegment{
		{Start: 0, End: 2, Text: "hello there", Words: []model.Word{{Word: "hello", Start: 0, End: 1}, {Word: "there", Start: 1, End: 2}}},
	}}
	scratch := commands.Scratch{Dir: dir}

	chain := cor.NewBaseChain("captions").
		AddCommand(commands.NewTranscribe("transcribe", tr, true, commands.Always)).
		AddCommand(commands.NewCaptionWriter("write", scratch, commands.CaptionsASS))
	ctx := newContext(src)
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.True(t, tr.words)
	path := ctx.Get(model.KeyCaptions).(string)
	assert.Equal(t, scratch.Path(jobID, "captions.ass"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Events]")
	assert.Equal(t, src, ctx.Get(cor.CtxIn))
}

func TestEmptyTranscriptLeavesNoCaptions(t *testing.T) {
	dir := t.TempDir()
	ctx := newContext(writeMedia(t, dir, "job1_step1.mp4"))
	ctx.Add(model.KeyTranscript, []model.TranscriptSegment{{Start: 0, End: 1, Text: "  "}})
	commands.NewCaptionWriter("write", commands.Scratch{Dir: dir}, commands.CaptionsSRT).Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Nil(t, ctx.Get(model.KeyCaptions))
}

func TestTranscribeFailureIsAnalysisFailure(t *testing.T) {
	ctx := newContext("/tmp/in.mp4")
	commands.NewTranscribe("transcribe", &fakeTranscriber{err: errors.New("model missing")}, false, commands.Always).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrAnalysisEngineFailure)

	ctx = newContext("/tmp/in.mp4")
	commands.NewTranscribe("transcribe", nil, false, commands.Always).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrAnalysisEngineFailure)
}

func TestOptionalTranscribeSkipsWithoutAnEngine(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("must not run")}
	ctx := newContext("/tmp/in.mp4")
	commands.NewTranscribe("transcribe", tr, true, commands.Always).
		Optional(func() bool { return false }).Execute(ctx)
	require.NoError(t, ctx.Err())
	assert.Nil(t, ctx.Get(model.KeyTranscript))
	assert.False(t, tr.words)

	ctx = newContext("/tmp/in.mp4")
	commands.NewTranscribe("transcribe", nil, true, commands.Always).
		Optional(func() bool { return true }).Execute(ctx)
	require.NoError(t, ctx.Err())
	assert.Nil(t, ctx.Get(model.KeyTranscript))

	tr = &fakeTranscriber{segments: []model.TranscriptSegment{{Start: 0, End: 1, Text: "hi"}}}
	ctx = newContext("/tmp/in.mp4")
	commands.NewTranscribe("transcribe", tr, true, commands.Always).
		Optional(func() bool { return true }).Execute(ctx)
	require.NoError(t, ctx.Err())
	assert.Len(t, ctx.Get(model.KeyTranscript), 1)
}

func TestSafeSearchQuery(t *testing.T) {
	assert.Equal(t, "lofi beats royalty free bgm", commands.SafeSearchQuery("lofi beats"))
	assert.Equal(t, "Royalty Free piano", commands.SafeSearchQuery("Royalty Free piano"))
	assert.Equal(t, "nocopyright edm", commands.SafeSearchQuery("nocopyright edm"))
}

func musicQuery(q commands.MusicQuery) func(cor.Context) (commands.MusicQuery, bool) {
	return func(cor.Context) (commands.MusicQuery, bool) { return q, true }
}

func TestMusicResolvePresetTrack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "music"), 0o755))
	preset := writeMedia(t, filepath.Join(dir, "music"), "upbeat.mp3")
	exec := &test.FakeExecutor{}

	ctx := newContext(writeMedia(t, dir, "job1_step1.mp4"))
	commands.NewMusicResolve("music", commands.NewTranscoder(exec, engines), commands.Scratch{Dir: dir}, dir,
		musicQuery(commands.MusicQuery{Track: "upbeat.mp3"})).Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, preset, ctx.Get(model.KeyMusic))
	assert.Empty(t, exec.Calls())
}

func TestMusicResolveSearchDownloads(t *testing.T) {
	dir := t.TempDir()
	exec := &test.FakeExecutor{Handler: func(_ context.Context, cmd process.Command) (*process.Result, error) {
		out := strings.Replace(test.Arg(cmd.Args, "-o"), ".%(ext)s", ".mp3", 1)
		return &process.Result{}, os.WriteFile(out, test.MP4Header(), 0o644)
	}}

	ctx := newContext(writeMedia(t, dir, "job1_step1.mp4"))
	commands.NewMusicResolve("music", commands.NewTranscoder(exec, engines), commands.Scratch{Dir: dir}, dir,
		musicQuery(commands.MusicQuery{Track: "lofi", Search: true, SafeSearch: true})).Execute(ctx)

	require.NoError(t, ctx.Err())
	calls := exec.Named("yt-dlp")
	require.Len(t, calls, 1)
	assert.Equal(t, "ytsearch1:lofi royalty free bgm", calls[0].Args[len(calls[0].Args)-1])
	assert.Equal(t, filepath.Join(dir, "job1_song.mp3"), ctx.Get(model.KeyMusic))
}

func TestMusicFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	ctx := newContext(writeMedia(t, dir, "job1_step1.mp4"))
	commands.NewMusicResolve("music", commands.NewTranscoder(&test.FakeExecutor{}, engines), commands.Scratch{Dir: dir}, dir,
		musicQuery(commands.MusicQuery{Track: "missing.mp3"})).Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(model.KeyMusic))
}

func TestOverlayFetchResolvesInOrder(t *testing.T) {
	dir := t.TempDir()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logo.png" {
			_, _ = w.Write([]byte("png-bytes"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()
	localVideo := writeMedia(t, dir, "broll.mp4")

	overlays := []model.Overlay{
		{Type: model.OverlayText, Text: "hello"},
		{Type: model.OverlayImage, Src: server.URL + "/logo.png"},
		{Type: model.OverlayImage, Src: server.URL + "/missing.png"},
		{Type: model.OverlayVideo, Src: localVideo},
	}
	ctx := newContext(writeMedia(t, dir, "job1_trimmed.mp4"))
	ctx.Add(model.KeyOverlays, overlays)
	commands.NewOverlayFetch("overlays", commands.NewTranscoder(&test.FakeExecutor{}, engines), nil, commands.Scratch{Dir: dir}, 3).Execute(ctx)

	require.NoError(t, ctx.Err())
	layers := ctx.Get(model.KeyLayers).([]filtergraph.Layer)
	require.Len(t, layers, 4)
	assert.Equal(t, "", layers[0].Path)
	assert.Equal(t, filepath.Join(dir, "job1_img_1.png"), layers[1].Path)
	assert.FileExists(t, layers[1].Path)
	assert.Equal(t, "", layers[2].Path)
	assert.Equal(t, localVideo, layers[3].Path)
	assert.Contains(t, ctx.GetTempFiles(), layers[1].Path)
	assert.NotContains(t, ctx.GetTempFiles(), localVideo)
}

func TestOverlayFetchVideoFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	exec := &test.FakeExecutor{Handler: func(context.Context, process.Command) (*process.Result, error) {
		return nil, model.ProcessFailure(errors.New("exit status 1"), "ffmpeg failed")
	}}
	ctx := newContext(writeMedia(t, dir, "job1_trimmed.mp4"))
	ctx.Add(model.KeyOverlays, []model.Overlay{{Type: model.OverlayVideo, Src: "https://example.com/broll.mp4"}})
	commands.NewOverlayFetch("overlays", commands.NewTranscoder(exec, engines), nil, commands.Scratch{Dir: dir}, 2).Execute(ctx)

	assert.ErrorIs(t, ctx.Err(), model.ErrInputUnavailable)
	assert.Equal(t, filepath.Join(dir, "job1_ov_0.mp4"), exec.Calls()[0].Args[len(exec.Calls()[0].Args)-1])
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, "jpg", commands.ImageExtension("https://x.io/a/photo.jpg?size=large"))
	assert.Equal(t, "png", commands.ImageExtension("https://x.io/a/render"))
	assert.Equal(t, "png", commands.ImageExtension("https://x.io/a/file.download"))
	assert.Equal(t, "webp", commands.ImageExtension("https://x.io/a/file.webp"))
}

func TestAutoCaptionAppendsOverlays(t *testing.T) {
	tr := &fakeTranscriber{segments: []model.TranscriptSegment{
		{Start: 0, End: 2, Text: "first line"},
		{Start: 2, End: 4, Text: "second line"},
	}}
	ctx := newContext("/tmp/job1_trimmed.mp4")
	ctx.Add(model.KeyOverlays, []model.Overlay{{Type: model.OverlayText, Text: "Title"}})
	commands.NewAutoCaption("captions", tr, commands.Always).Execute(ctx)

	require.NoError(t, ctx.Err())
	overlays := ctx.Get(model.KeyOverlays).([]model.Overlay)
	require.Len(t, overlays, 3)
	assert.Equal(t, "Title", overlays[0].Text)
	assert.Equal(t, "auto_0", overlays[1].ID)
	assert.Equal(t, "second line", overlays[2].Text)
}

func TestAutoCaptionFailureIsNotFatal(t *testing.T) {
	ctx := newContext("/tmp/job1_trimmed.mp4")
	commands.NewAutoCaption("captions", &fakeTranscriber{err: errors.New("boom")}, commands.Always).Execute(ctx)
	assert.False(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(model.KeyOverlays))
}

func TestClipRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	result := &model.AnalysisResult{JobID: jobID, Scenes: []model.CandidateClip{{ID: "scene_0", ViralScore: 80}, {ID: "scene_3", ViralScore: 60}}}
	rows := commands.ClipRecords(result, "gs://in/video.mp4", now)
	require.Len(t, rows, 2)
	assert.Equal(t, jobID, rows[0].JobID)
	assert.Equal(t, "gs://in/video.mp4", rows[1].SourceURL)
	assert.Equal(t, "scene_3", rows[1].ID)
	assert.Equal(t, now, rows[1].CreateDate)
}

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) RunPipeline(_ context.Context, req *model.PipelineRequest) (*model.JobResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.JobResult{Status: "completed", JobID: "abc", OutputPath: "/tmp/abc_final.mp4"}, nil
}

func TestJobTrigger(t *testing.T) {
	runner := &fakeRunner{}
	ctx := newContext(test.GetTestJobRequestMessageText())
	commands.NewJobTrigger("trigger", runner).Execute(ctx)
	require.NoError(t, ctx.Err())
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "abc", ctx.Get(cor.CtxOut).(*model.JobResult).JobID)

	// Messages that can never succeed are dropped, not redelivered.
	ctx = newContext("{not json")
	commands.NewJobTrigger("trigger", runner).Execute(ctx)
	assert.False(t, ctx.HasErrors())
	assert.Equal(t, 1, runner.calls)

	ctx = newContext(`{"smart_crop": true}`)
	commands.NewJobTrigger("trigger", runner).Execute(ctx)
	assert.False(t, ctx.HasErrors())

	runner.err = model.Preempted(context.Canceled, "replaced by a newer job")
	ctx = newContext(test.GetTestJobRequestMessageText())
	commands.NewJobTrigger("trigger", runner).Execute(ctx)
	assert.False(t, ctx.HasErrors())

	runner.err = model.ProcessFailure(errors.New("exit status 1"), "ffmpeg failed")
	ctx = newContext(test.GetTestJobRequestMessageText())
	commands.NewJobTrigger("trigger", runner).Execute(ctx)
	assert.ErrorIs(t, ctx.Err(), model.ErrProcessFailure)
}
