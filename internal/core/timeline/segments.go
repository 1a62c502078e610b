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

// Package timeline turns detected or requested intervals into the ordered
// keep-segment list a structural edit renders. Everything here is pure.
package timeline

import (
	"sort"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// InvertExclusions returns the parts of [0, duration) not covered by the
// exclusion intervals. Exclusions are clamped to [0, duration) and sorted by
// start before the walk; overlapping exclusions are tolerated because the
// cursor never moves backwards. Gaps shorter than model.GapTolerance are
// dropped.
func InvertExclusions(exclusions []model.Interval, duration float64) ([]model.Interval, error) {
	if duration <= 0 {
		return nil, model.EmptyTimeline("source has no duration")
	}

	sorted := make([]model.Interval, 0, len(exclusions))
	for _, ex := range exclusions {
		ex = model.Interval{Start: max(ex.Start, 0), End: min(ex.End, duration)}
		if ex.End > ex.Start {
			sorted = append(sorted, ex)
		}
	}
	if len(sorted) == 0 {
		return []model.Interval{{Start: 0, End: duration}}, nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	keep := make([]model.Interval, 0, len(sorted)+1)
	cursor := 0.0
	for _, ex := range sorted {
		if cursor >= duration {
			break
		}
		if ex.Start > cursor+model.GapTolerance {
			keep = append(keep, model.Interval{Start: cursor, End: ex.Start})
		}
		cursor = max(cursor, ex.End)
	}
	if cursor < duration-model.GapTolerance {
		keep = append(keep, model.Interval{Start: cursor, End: duration})
	}

	if len(keep) == 0 {
		return nil, model.EmptyTimeline("exclusions cover the whole %.2fs timeline", duration)
	}
	return keep, nil
}

// DirectInclusions keeps every valid interval in the caller's order. The
// order is the output sequence, so nothing is sorted.
func DirectInclusions(inclusions []model.Interval) ([]model.Interval, error) {
	keep := make([]model.Interval, 0, len(inclusions))
	for _, in := range inclusions {
		if in.Valid() {
			keep = append(keep, in)
		}
	}
	if len(keep) == 0 {
		return nil, model.EmptyTimeline("no valid segments in the cut list")
	}
	return keep, nil
}

// Total returns the summed duration of the segments.
func Total(segments []model.Interval) float64 {
	var total float64
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}
