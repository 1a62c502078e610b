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

package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BaseChain runs an ordered list of commands. Stages run strictly one after
// another; nothing in a chain is pipelined.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Keep running commands after one fails.
	commands          []Command // Commands in execution order.
}

// NewBaseChain creates an empty chain with the given name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable only requires a Go context; each command checks its own input.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute runs the commands in order.
//
// Logic Flow:
//  1. Open a span for the chain and one child span per command.
//  2. Before each command, stop if a previous command failed (unless the
//     chain continues on failure) or if the Go context was cancelled. A
//     cancellation is recorded as the chain's error.
//  3. Skip commands whose IsExecutable returns false.
//  4. After each command, move CtxOut into CtxIn. When a command produced no
//     output the previous input carries forward to the next command.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), err)
			chainSpan.AddEvent("cancelled")
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		if !command.IsExecutable(chCtx) {
			commandSpan.SetAttributes(attribute.Bool("skipped", true))
			commandSpan.End()
			continue
		}

		chCtx.SetContext(commandContext)
		command.Execute(chCtx)
		chCtx.SetContext(outerCtx)

		if errs := chCtx.GetErrors(); errs[command.GetName()] != nil {
			commandSpan.RecordError(errs[command.GetName()])
			commandSpan.SetStatus(codes.Error, "command failed")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		if out := chCtx.Get(CtxOut); out != nil {
			chCtx.Add(CtxIn, out)
			chCtx.Remove(CtxOut)
		}
	}

	// Leave the caller's context in place for whoever inspects the result.
	chCtx.SetContext(parentCtx)

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
