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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
)

// MusicQuery describes the track a request asks for.
type MusicQuery struct {
	Track      string // Local file, preset name, URL or search text.
	Search     bool   // Treat Track as a search query.
	SafeSearch bool   // Restrict searches to royalty free music.
}

// SafeSearchQuery appends the royalty free qualifier unless the query
// already asks for it.
func SafeSearchQuery(query string) string {
	lower := strings.ToLower(query)
	if strings.Contains(lower, "royalty free") || strings.Contains(lower, "nocopyright") {
		return query
	}
	return query + " royalty free bgm"
}

// MusicResolve turns a music query into a local track stored under
// model.KeyMusic. Resolution order: local path, preset under the assets
// music directory, then a yt-dlp download for URLs and searches. A track
// that cannot be resolved is logged and the job continues without music.
type MusicResolve struct {
	cor.BaseCommand
	transcoder *Transcoder
	scratch    Scratch
	assetsDir  string
	query      func(context cor.Context) (MusicQuery, bool)
}

// NewMusicResolve is the constructor for the MusicResolve command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - transcoder: Supplies the executor and the yt-dlp binary for downloads.
//   - scratch: Where downloaded tracks are written.
//   - assetsDir: The directory whose music/ folder holds the presets.
//   - query: Returns the requested track, or false when the run wants no
//     music.
func NewMusicResolve(name string, transcoder *Transcoder, scratch Scratch, assetsDir string, query func(context cor.Context) (MusicQuery, bool)) *MusicResolve {
	return &MusicResolve{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		scratch:     scratch,
		assetsDir:   assetsDir,
		query:       query,
	}
}

func (c *MusicResolve) IsExecutable(context cor.Context) bool {
	if context == nil || context.GetContext() == nil {
		return false
	}
	_, ok := c.query(context)
	return ok
}

func (c *MusicResolve) Execute(context cor.Context) {
	q, _ := c.query(context)
	path, err := c.resolve(context, q)
	if err != nil {
		if ctxErr := context.GetContext().Err(); ctxErr != nil {
			c.Fail(context, ctxErr)
			return
		}
		slog.WarnContext(context.GetContext(), "music unavailable, continuing without it",
			"job_id", JobID(context), "track", q.Track, "error", err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	context.Add(model.KeyMusic, path)
	c.Succeed(context, nil)
}

func (c *MusicResolve) resolve(context cor.Context, q MusicQuery) (string, error) {
	track := strings.TrimSpace(q.Track)
	if track == "" {
		return "", errors.New("no track named")
	}
	if !q.Search && !IsRemote(track) {
		for _, candidate := range []string{track, filepath.Join(c.assetsDir, "music", track)} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("music file %q not found", track)
	}

	if !IsRemote(track) {
		if q.SafeSearch {
			track = SafeSearchQuery(track)
		}
		track = "ytsearch1:" + track
	}
	base := c.scratch.Path(JobID(context), SuffixSong)
	out := base + ".mp3"
	context.AddTempFile(out)

	_, err := c.transcoder.Executor().Run(context.GetContext(), process.Command{
		Name: c.transcoder.Engines().YTDLP,
		Args: []string{
			"-f", "bestaudio",
			"-x", "--audio-format", "mp3", "--audio-quality", "192K",
			"--no-playlist",
			"-o", base + ".%(ext)s",
			track,
		},
	})
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("download produced no track: %w", err)
	}
	return out, nil
}
