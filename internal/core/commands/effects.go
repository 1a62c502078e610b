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
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// GraphPlan builds the filter graph of one chain run over source.
type GraphPlan func(context cor.Context, source string) (*filtergraph.Graph, error)

// CodecPlan returns the codec arguments of one chain run.
type CodecPlan func(context cor.Context) []string

// Codec is a CodecPlan that always returns args.
func Codec(args ...string) CodecPlan {
	return func(cor.Context) []string { return args }
}

// EffectsPass renders the chain input through a single planned graph. A
// plan that needs no filtering and no extra input is satisfied with a file
// copy instead of a transcode.
type EffectsPass struct {
	cor.BaseCommand
	transcoder *Transcoder
	scratch    Scratch
	suffix     string
	plan       GraphPlan
	codec      CodecPlan
}

// NewEffectsPass creates the pass.
//
// Inputs:
//   - name: A string name for this command instance.
//   - transcoder: Renders the planned graph.
//   - scratch, suffix: Name the output; an empty suffix means SuffixEffects.
//   - plan: Builds the graph over the chain input.
//   - codec: The codec arguments, placed after the stream maps.
//
// Outputs:
//   - *EffectsPass: A pointer to the newly instantiated command.
func NewEffectsPass(name string, transcoder *Transcoder, scratch Scratch, suffix string, plan GraphPlan, codec CodecPlan) *EffectsPass {
	if suffix == "" {
		suffix = SuffixEffects
	}
	return &EffectsPass{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		scratch:     scratch,
		suffix:      suffix,
		plan:        plan,
		codec:       codec,
	}
}

func (c *EffectsPass) Execute(context cor.Context) {
	in := InputPath(context)
	g, err := c.plan(context, in)
	if err != nil {
		c.Fail(context, err)
		return
	}
	out := c.scratch.Path(JobID(context), c.suffix)
	context.AddTempFile(out)

	if g.Empty() && len(g.Inputs()) == 1 && g.Audio() == "" {
		if err := CopyFile(in, out); err != nil {
			c.Fail(context, model.ProcessFailure(err, "could not carry %s forward", in))
			return
		}
		c.Succeed(context, out)
		return
	}
	if err := c.transcoder.Render(context.GetContext(), g, out, c.codec(context)...); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, out)
}

// ArgsPlan returns the engine arguments turning in into out, without the
// common prefix.
type ArgsPlan func(context cor.Context, in, out string) ([]string, error)

// EngineStep runs one planned engine invocation over the chain input. It
// serves the operations whose arguments are not a filter graph.
type EngineStep struct {
	cor.BaseCommand
	transcoder *Transcoder
	scratch    Scratch
	suffix     string
	args       ArgsPlan
}

func NewEngineStep(name string, transcoder *Transcoder, scratch Scratch, suffix string, args ArgsPlan) *EngineStep {
	return &EngineStep{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		scratch:     scratch,
		suffix:      suffix,
		args:        args,
	}
}

func (c *EngineStep) Execute(context cor.Context) {
	in := InputPath(context)
	out := c.scratch.Path(JobID(context), c.suffix)
	context.AddTempFile(out)

	args, err := c.args(context, in, out)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if _, err := c.transcoder.FFmpeg(context.GetContext(), args...); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, out)
}
