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

// Package cor implements the Chain of Responsibility used to sequence the
// passes of a media job. Each pass (download, structural edit, effects,
// finalize, upload) is a Command; a Chain runs them in order against a shared
// Context that carries the current artifact path, the job request, any errors
// raised so far, and the intermediate files that must be removed when the job
// ends.
//
// Logic Flow:
//  1. A workflow builds a Chain and adds its Commands in pipeline order.
//  2. The caller creates a Context, attaches a context.Context and seeds CtxIn.
//  3. The Chain runs each executable Command, moving CtxOut into CtxIn between
//     Commands so every pass consumes the artifact produced by the one before.
//  4. The first error stops the Chain unless it was configured to continue.
//  5. The caller inspects Err() and calls Close() to delete intermediates.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn is the key for the input of the command about to run.
	CtxIn = "__IN__"
	// CtxOut is the key a command writes its primary output to.
	CtxOut = "__OUT__"
)

// Context is the shared state passed between the commands of a chain.
type Context interface {
	// SetContext attaches the Go context used for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the Go context currently attached.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error raised by the named command.
	AddError(key string, err error)

	// GetErrors returns every recorded error keyed by command name.
	GetErrors() map[string]error

	// Err returns the first recorded error, or nil.
	Err() error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes the value stored under key.
	Remove(key string)

	// HasErrors reports whether any command recorded an error.
	HasErrors() bool

	// AddTempFile registers an intermediate file for removal on Close.
	AddTempFile(file string)

	// KeepFile removes a file from the intermediate list so Close leaves it.
	KeepFile(file string)

	// GetTempFiles returns the registered intermediate files.
	GetTempFiles() []string

	// Close deletes every registered intermediate file. Failures are logged only.
	Close()
}

// Executable is anything that can run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a single named step of a chain with its own telemetry.
type Command interface {
	Executable

	GetName() string

	GetInputParam() string

	GetOutputParam() string

	// IsExecutable reports whether the command should run for this Context.
	// Returning false skips the command without failing the chain.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer

	GetMeter() metric.Meter

	GetSuccessCounter() metric.Int64Counter

	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command composed of other Commands run in order.
type Chain interface {
	Command

	ContinueOnFailure(bool) Chain

	AddCommand(command Command) Chain
}
