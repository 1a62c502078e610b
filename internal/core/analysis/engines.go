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
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
)

// Transcriber turns the speech of a media file into timestamped segments.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, words bool) ([]model.TranscriptSegment, error)
}

// SceneDetector finds visual scene boundaries of a media file.
type SceneDetector interface {
	DetectScenes(ctx context.Context, path string, downscale int) ([]model.Interval, error)
}

// WhisperCLI runs the whisper command line tool and reads its JSON output.
type WhisperCLI struct {
	Executor process.Executor
	Binary   string
	Model    string
	WorkDir  string // Directory for the JSON output; a temp dir per call when empty.
}

type whisperOutput struct {
	Text     string                    `json:"text"`
	Segments []model.TranscriptSegment `json:"segments"`
}

// Transcribe implements Transcriber.
func (w *WhisperCLI) Transcribe(ctx context.Context, path string, words bool) ([]model.TranscriptSegment, error) {
	dir, err := os.MkdirTemp(w.WorkDir, "whisper-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	args := []string{path,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", dir,
		"--fp16", "False",
	}
	if words {
		args = append(args, "--word_timestamps", "True")
	}
	if _, err := w.Executor.Run(ctx, process.Command{Name: w.Binary, Args: args}); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	raw, err := os.ReadFile(filepath.Join(dir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("whisper produced no transcript: %w", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode whisper transcript: %w", err)
	}
	return out.Segments, nil
}

// SceneDetectCLI runs PySceneDetect's content detector and reads the scene
// list it writes as CSV.
type SceneDetectCLI struct {
	Executor  process.Executor
	Binary    string
	Threshold float64
	WorkDir   string
}

const (
	sceneStartColumn = "Start Time (seconds)"
	sceneEndColumn   = "End Time (seconds)"
)

// DetectScenes implements SceneDetector.
func (s *SceneDetectCLI) DetectScenes(ctx context.Context, path string, downscale int) ([]model.Interval, error) {
	dir, err := os.MkdirTemp(s.WorkDir, "scenes-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	args := []string{
		"-i", path,
		"-d", strconv.Itoa(downscale),
		"-q",
		"detect-content", "-t", strconv.FormatFloat(s.Threshold, 'f', -1, 64),
		"list-scenes", "-o", dir, "-f", "scenes.csv", "-s",
	}
	if _, err := s.Executor.Run(ctx, process.Command{Name: s.Binary, Args: args}); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, "scenes.csv"))
	if err != nil {
		return nil, fmt.Errorf("scene detector produced no scene list: %w", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode scene list: %w", err)
	}
	return ParseSceneList(records)
}

// ParseSceneList reads scene intervals from a scene list whose first record
// is the header.
func ParseSceneList(records [][]string) ([]model.Interval, error) {
	if len(records) == 0 {
		return nil, nil
	}
	start, end := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(h) {
		case sceneStartColumn:
			start = i
		case sceneEndColumn:
			end = i
		}
	}
	if start < 0 || end < 0 {
		return nil, fmt.Errorf("scene list is missing %q or %q", sceneStartColumn, sceneEndColumn)
	}

	scenes := make([]model.Interval, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) <= start || len(rec) <= end {
			continue
		}
		s, err := strconv.ParseFloat(strings.TrimSpace(rec[start]), 64)
		if err != nil {
			return nil, fmt.Errorf("scene start %q: %w", rec[start], err)
		}
		e, err := strconv.ParseFloat(strings.TrimSpace(rec[end]), 64)
		if err != nil {
			return nil, fmt.Errorf("scene end %q: %w", rec[end], err)
		}
		scenes = append(scenes, model.Interval{Start: s, End: e})
	}
	return scenes, nil
}
