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

// Package filtergraph is a typed intermediate representation of the
// transcoding engine's filter graphs.
//
// A Graph is an ordered list of Stages. Each Stage consumes labelled streams,
// applies a chain of Filters and emits new labels. Labels are checked as
// stages are added: a stage may only consume raw input streams or labels an
// earlier stage emitted, an emitted label is defined once and consumed at
// most once. The graph is serialized to the engine's textual syntax only when
// the command line is built.
package filtergraph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Label names a stream inside a graph, without brackets.
type Label string

func (l Label) String() string {
	return "[" + string(l) + "]"
}

var rawLabelRe = regexp.MustCompile(`^(\d+):([va])$`)

// VideoOf is the raw video stream of input n.
func VideoOf(n int) Label {
	return Label(fmt.Sprintf("%d:v", n))
}

// AudioOf is the raw audio stream of input n.
func AudioOf(n int) Label {
	return Label(fmt.Sprintf("%d:a", n))
}

// Input is one engine input with the options that precede its -i.
type Input struct {
	Path    string
	Options []string
}

// Stage is one labelled filter chain.
type Stage struct {
	Inputs  []Label
	Filters []Filter
	Outputs []Label
}

func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteString(in.String())
	}
	parts := make([]string, len(s.Filters))
	for i, f := range s.Filters {
		parts[i] = f.String()
	}
	b.WriteString(strings.Join(parts, ","))
	for _, out := range s.Outputs {
		b.WriteString(out.String())
	}
	return b.String()
}

// Graph is an ordered, validated list of stages over a set of inputs.
type Graph struct {
	inputs   []Input
	stages   []Stage
	defined  map[Label]bool
	consumed map[Label]bool
	video    Label
	audio    Label
}

// New creates a graph whose input 0 is source.
func New(source string, options ...string) *Graph {
	g := &Graph{
		defined:  make(map[Label]bool),
		consumed: make(map[Label]bool),
	}
	g.AddInput(source, options...)
	g.video = VideoOf(0)
	return g
}

// AddInput appends an engine input and returns its index.
func (g *Graph) AddInput(path string, options ...string) int {
	g.inputs = append(g.inputs, Input{Path: path, Options: options})
	return len(g.inputs) - 1
}

// Inputs returns the engine inputs in index order.
func (g *Graph) Inputs() []Input {
	return g.inputs
}

// Stages returns the stages in emission order.
func (g *Graph) Stages() []Stage {
	return g.stages
}

// Empty reports whether no stage has been added.
func (g *Graph) Empty() bool {
	return len(g.stages) == 0
}

// Video returns the terminal video label.
func (g *Graph) Video() Label {
	return g.video
}

// Audio returns the terminal audio label, or "" when the source audio is
// passed through untouched.
func (g *Graph) Audio() Label {
	return g.audio
}

// SetVideo designates the terminal video label.
func (g *Graph) SetVideo(l Label) {
	g.video = l
}

// SetAudio designates the terminal audio label.
func (g *Graph) SetAudio(l Label) {
	g.audio = l
}

func (g *Graph) isRaw(l Label) bool {
	m := rawLabelRe.FindStringSubmatch(string(l))
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n < len(g.inputs)
}

// Add appends a stage after checking its labels.
func (g *Graph) Add(s Stage) error {
	if len(s.Filters) == 0 {
		return model.InvalidGraph("stage without filters")
	}
	if len(s.Outputs) == 0 {
		return model.InvalidGraph("stage %q has no output label", s.Filters[0].Name)
	}
	for _, in := range s.Inputs {
		if g.isRaw(in) {
			continue
		}
		if !g.defined[in] {
			return model.InvalidGraph("stage %q references undefined label %s", s.Filters[0].Name, in)
		}
		if g.consumed[in] {
			return model.InvalidGraph("label %s consumed twice", in)
		}
	}
	for _, out := range s.Outputs {
		if g.isRaw(out) || g.defined[out] {
			return model.InvalidGraph("label %s defined twice", out)
		}
	}
	for _, in := range s.Inputs {
		if !g.isRaw(in) {
			g.consumed[in] = true
		}
	}
	for _, out := range s.Outputs {
		g.defined[out] = true
	}
	g.stages = append(g.stages, s)
	return nil
}

// Chain adds a single-input, single-output stage and returns its output.
func (g *Graph) Chain(in Label, out Label, filters ...Filter) (Label, error) {
	if err := g.Add(Stage{Inputs: []Label{in}, Filters: filters, Outputs: []Label{out}}); err != nil {
		return "", err
	}
	return out, nil
}

// Validate checks that the terminal labels exist and are still unconsumed.
func (g *Graph) Validate() error {
	check := func(l Label, kind string) error {
		if l == "" || g.isRaw(l) {
			return nil
		}
		if !g.defined[l] {
			return model.InvalidGraph("terminal %s label %s is never emitted", kind, l)
		}
		if g.consumed[l] {
			return model.InvalidGraph("terminal %s label %s is consumed by a stage", kind, l)
		}
		return nil
	}
	if g.video == "" {
		return model.InvalidGraph("graph has no terminal video label")
	}
	if err := check(g.video, "video"); err != nil {
		return err
	}
	return check(g.audio, "audio")
}

// String serializes the stages as a filter_complex expression.
func (g *Graph) String() string {
	parts := make([]string, len(g.stages))
	for i, s := range g.stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}

// InputArgs returns the "-i" arguments for every input.
func (g *Graph) InputArgs() []string {
	var args []string
	for _, in := range g.inputs {
		args = append(args, in.Options...)
		args = append(args, "-i", in.Path)
	}
	return args
}

// OutputArgs returns the -filter_complex and -map arguments. A graph with no
// stages maps the source streams directly.
func (g *Graph) OutputArgs() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	var args []string
	if !g.Empty() {
		args = append(args, "-filter_complex", g.String())
	}
	args = append(args, "-map", mapArg(g.video, g.isRaw(g.video)))
	switch {
	case g.audio == "":
		args = append(args, "-map", "0:a?")
	default:
		args = append(args, "-map", mapArg(g.audio, g.isRaw(g.audio)))
	}
	return args, nil
}

func mapArg(l Label, raw bool) string {
	if raw {
		return string(l)
	}
	return l.String()
}
