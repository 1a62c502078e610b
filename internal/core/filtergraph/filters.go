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

package filtergraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Arg is one filter option. An empty Key makes it positional.
type Arg struct {
	Key   string
	Value string
}

// Filter is a single operation inside a stage, e.g. scale=1080:1920.
type Filter struct {
	Name string
	Args []Arg
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		if a.Key == "" {
			parts[i] = a.Value
		} else {
			parts[i] = a.Key + "=" + a.Value
		}
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// With returns a copy of f with an extra option appended.
func (f Filter) With(key, value string) Filter {
	args := make([]Arg, len(f.Args), len(f.Args)+1)
	copy(args, f.Args)
	f.Args = append(args, Arg{Key: key, Value: value})
	return f
}

// EnableBetween limits f to the [start, end) window.
func (f Filter) EnableBetween(start, end float64) Filter {
	return f.With("enable", fmt.Sprintf("'between(t,%s,%s)'", Num(start), Num(end)))
}

// Num formats a float without trailing zeros.
func Num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pos(values ...string) []Arg {
	args := make([]Arg, len(values))
	for i, v := range values {
		args[i] = Arg{Value: v}
	}
	return args
}

// EscapeText escapes the characters drawtext's option syntax reserves.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		`:`, `\:`,
		`'`, `\'`,
		`,`, `\,`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(s)
}

// EscapeColor escapes commas in color expressions like rgba(0,0,0,0.5).
func EscapeColor(s string) string {
	return strings.ReplaceAll(s, ",", `\,`)
}

// EscapePath prepares a file path for use as a quoted filter option.
func EscapePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ReplaceAll(p, ":", `\:`)
}

func Scale(w, h string) Filter {
	return Filter{Name: "scale", Args: pos(w, h)}
}

func ScaleKeyed(w, h string) Filter {
	return Filter{Name: "scale", Args: []Arg{{Key: "w", Value: w}, {Key: "h", Value: h}}}
}

func Crop(w, h string) Filter {
	return Filter{Name: "crop", Args: pos(w, h)}
}

func CropAt(w, h, x, y string) Filter {
	return Filter{Name: "crop", Args: []Arg{{Value: w}, {Value: h}, {Key: "x", Value: x}, {Key: "y", Value: y}}}
}

func BoxBlur(radius, power int) Filter {
	return Filter{Name: "boxblur", Args: pos(strconv.Itoa(radius), strconv.Itoa(power))}
}

func Split() Filter {
	return Filter{Name: "split"}
}

func Overlay(x, y string) Filter {
	return Filter{Name: "overlay", Args: pos(x, y)}
}

func OverlayKeyed(x, y string) Filter {
	return Filter{Name: "overlay", Args: []Arg{{Key: "x", Value: x}, {Key: "y", Value: y}}}
}

func Trim(iv model.Interval) Filter {
	return Filter{Name: "trim", Args: []Arg{{Key: "start", Value: Num(iv.Start)}, {Key: "end", Value: Num(iv.End)}}}
}

func ATrim(iv model.Interval) Filter {
	return Filter{Name: "atrim", Args: []Arg{{Key: "start", Value: Num(iv.Start)}, {Key: "end", Value: Num(iv.End)}}}
}

func SetPTS() Filter {
	return Filter{Name: "setpts", Args: pos("PTS-STARTPTS")}
}

func ASetPTS() Filter {
	return Filter{Name: "asetpts", Args: pos("PTS-STARTPTS")}
}

func Concat(n int, video, audio bool) Filter {
	return Filter{Name: "concat", Args: []Arg{
		{Key: "n", Value: strconv.Itoa(n)},
		{Key: "v", Value: boolInt(video)},
		{Key: "a", Value: boolInt(audio)},
	}}
}

func Volume(v float64) Filter {
	return Filter{Name: "volume", Args: pos(Num(v))}
}

func Amix(inputs int, duration string, dropout int) Filter {
	return Filter{Name: "amix", Args: []Arg{
		{Key: "inputs", Value: strconv.Itoa(inputs)},
		{Key: "duration", Value: duration},
		{Key: "dropout_transition", Value: strconv.Itoa(dropout)},
	}}
}

func Eq(brightness float64) Filter {
	return Filter{Name: "eq", Args: []Arg{{Key: "brightness", Value: Num(brightness)}}}
}

// DrawText draws escaped text; callers add position and style options.
func DrawText(text string) Filter {
	return Filter{Name: "drawtext", Args: []Arg{{Key: "text", Value: "'" + EscapeText(text) + "'"}}}
}

// ASS burns an Advanced SubStation subtitle file.
func ASS(path string) Filter {
	return Filter{Name: "ass", Args: pos("'" + EscapePath(path) + "'")}
}

// Subtitles burns an SRT file with a force_style override.
func Subtitles(path, forceStyle string) Filter {
	return Filter{Name: "subtitles", Args: []Arg{
		{Value: "'" + EscapePath(path) + "'"},
		{Key: "force_style", Value: "'" + forceStyle + "'"},
	}}
}

func Null() Filter {
	return Filter{Name: "null"}
}

func boolInt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
