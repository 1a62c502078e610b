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
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Artifact suffixes inside the scratch directory.
const (
	SuffixSource    = "step0.mp4"
	SuffixStructure = "step1.mp4"
	SuffixTrimmed   = "trimmed.mp4"
	SuffixEffects   = "final_pass.mp4"
	SuffixFinal     = "final.mp4"
	SuffixSong      = "song"
)

// Scratch is the shared directory holding every job artifact, keyed by job id.
type Scratch struct {
	Dir string
}

// Path returns the artifact path of a job.
func (s Scratch) Path(jobID, suffix string) string {
	return filepath.Join(s.Dir, jobID+"_"+suffix)
}

// Predicate decides whether a command applies to a chain run.
type Predicate func(context cor.Context) bool

// Always applies in every run.
func Always(cor.Context) bool { return true }

// JobID returns the job id stored in the chain context.
func JobID(context cor.Context) string {
	id, _ := context.Get(model.KeyJobID).(string)
	return id
}

// InputPath returns the chain input as a path, or "".
func InputPath(context cor.Context) string {
	path, _ := context.Get(cor.CtxIn).(string)
	return path
}

// IsRemote reports whether uri is fetched over HTTP.
func IsRemote(uri string) bool {
	u := strings.ToLower(uri)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
