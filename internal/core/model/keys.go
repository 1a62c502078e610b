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

// Keys for values shared between chain commands, next to cor.CtxIn/CtxOut.
const (
	KeyJobID      = "__JOB_ID__"
	KeyRequest    = "__REQUEST__"
	KeySource     = "__SOURCE__"
	KeyDuration   = "__DURATION__"
	KeySilences   = "__SILENCES__"
	KeySegments   = "__SEGMENTS__"
	KeyTranscript = "__TRANSCRIPT__"
	KeyCaptions   = "__CAPTIONS__"
	KeyMusic      = "__MUSIC__"
	KeyOverlays   = "__OVERLAYS__"
	KeyLayers     = "__LAYERS__"
	KeyAnalysis   = "__ANALYSIS__"
	KeyFinalPath  = "__FINAL_PATH__"
	KeyOutputURL  = "__OUTPUT_URL__"
)
