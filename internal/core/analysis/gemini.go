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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// DefaultTranscriptPrompt asks the model for segments in the exact JSON
// shape of TranscriptSegment. EXAMPLE_JSON is filled with a sample response.
const DefaultTranscriptPrompt = `Transcribe the speech in the attached audio.
Return only a JSON array of segments. Each segment has "start" and "end" in
seconds, "text" and, when WORDS is true, a "words" array with the timing of
every word. Do not describe music or sound effects.
WORDS: {{ .WORDS }}
Example response:
{{ .EXAMPLE_JSON }}`

// GeminiTranscriber transcribes with a generative model. The audio track is
// extracted to a small mono mp3 and sent inline with the prompt.
type GeminiTranscriber struct {
	executor  process.Executor
	ffmpeg    string
	model     cloud.ContentGenerator
	template  *template.Template
	workDir   string
	inTokens  metric.Int64Counter
	outTokens metric.Int64Counter
	retries   metric.Int64Counter
}

// NewGeminiTranscriber creates a transcriber over model. ffmpeg extracts the
// audio through executor into workDir.
func NewGeminiTranscriber(executor process.Executor, ffmpeg string, model cloud.ContentGenerator, workDir string) (*GeminiTranscriber, error) {
	tmpl, err := template.New("transcript").Parse(DefaultTranscriptPrompt)
	if err != nil {
		return nil, err
	}
	meter := otel.Meter("analysis")
	t := &GeminiTranscriber{
		executor: executor,
		ffmpeg:   ffmpeg,
		model:    model,
		template: tmpl,
		workDir:  workDir,
	}
	t.inTokens, _ = meter.Int64Counter("transcriber.gemini.token.input")
	t.outTokens, _ = meter.Int64Counter("transcriber.gemini.token.output")
	t.retries, _ = meter.Int64Counter("transcriber.gemini.token.retry")
	return t, nil
}

// Transcribe implements Transcriber.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, path string, words bool) ([]model.TranscriptSegment, error) {
	audio, err := os.CreateTemp(t.workDir, "speech-*.mp3")
	if err != nil {
		return nil, err
	}
	audioPath := audio.Name()
	_ = audio.Close()
	defer os.Remove(audioPath)

	args := []string{"-nostdin", "-i", path, "-vn", "-ac", "1", "-ar", "16000", "-y", audioPath}
	if _, err := t.executor.Run(ctx, process.Command{Name: t.ffmpeg, Args: args}); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}

	example, _ := json.Marshal(model.GetExampleTranscript())
	var prompt bytes.Buffer
	if err := t.template.Execute(&prompt, map[string]interface{}{
		"WORDS":        words,
		"EXAMPLE_JSON": string(example),
	}); err != nil {
		return nil, fmt.Errorf("failed to execute prompt template: %w", err)
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			cloud.NewTextPart(prompt.String()),
			cloud.NewBlobPart(data, "audio/mpeg"),
		},
	}}
	out, err := cloud.GenerateMultiModalResponse(ctx, t.inTokens, t.outTokens, t.retries, t.model, contents)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed for %s: %w", filepath.Base(path), err)
	}

	var segments []model.TranscriptSegment
	if err := json.Unmarshal([]byte(out), &segments); err != nil {
		return nil, fmt.Errorf("gemini returned an unreadable transcript: %w", err)
	}
	return segments, nil
}
