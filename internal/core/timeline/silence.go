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

package timeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Leading silence is reported with a small negative start.
var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// ParseSilenceDetect extracts silence intervals from the diagnostic output of
// the silencedetect filter. Each start is paired with the next end in the
// output and starts are clamped to 0. A trailing start with no end is silence
// that runs to the end of the file: it is closed at duration, or dropped when
// duration is not positive. Unparsable values are skipped.
func ParseSilenceDetect(stderr string, duration float64) []model.Interval {
	var out []model.Interval
	start, open := 0.0, false
	for _, line := range strings.Split(stderr, "\n") {
		if v, ok := match(silenceStartRe, line); ok {
			start, open = max(v, 0), true
			continue
		}
		v, ok := match(silenceEndRe, line)
		if !ok || !open {
			continue
		}
		if v > start {
			out = append(out, model.Interval{Start: start, End: v})
		}
		open = false
	}
	if open && duration > start {
		out = append(out, model.Interval{Start: start, End: duration})
	}
	return out
}

func match(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
