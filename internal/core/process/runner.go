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

// Package process launches and supervises the external engines (ffmpeg,
// ffprobe, whisper, scenedetect, yt-dlp) that do the actual media work.
//
// Logic Flow:
//  1. The Runner starts the command with its stderr (and optionally stdout)
//     captured in memory.
//  2. The live process is attached to a Tracker, normally the job registry,
//     so that a preemption can signal it. It is detached on every exit path.
//  3. When the context is cancelled the process receives SIGTERM; if it has
//     not exited after the grace period it is killed. The cancellation is then
//     returned to the caller wrapped in a ProcessFailure.
//  4. A non-zero exit fails with a ProcessFailure carrying an ExitError,
//     unless the command allows failure.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// DefaultGracePeriod is how long a terminated engine may take to exit
// before it is killed.
const DefaultGracePeriod = 5 * time.Second

const stderrTail = 2000

// Command is one engine invocation.
type Command struct {
	Name          string   // Binary name or path.
	Args          []string // Argument vector, without the binary.
	Dir           string   // Working directory, empty for the current one.
	CaptureStdout bool     // Keep stdout in Result.Stdout.
	AllowFailure  bool     // Return the Result instead of failing on a non-zero exit.
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a completed invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError describes an engine that exited non-zero or could not start.
type ExitError struct {
	Binary   string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	tail := e.Stderr
	if len(tail) > stderrTail {
		tail = tail[len(tail)-stderrTail:]
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.ExitCode, strings.TrimSpace(tail))
}

// Executor runs an engine invocation to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Tracker records live processes so they can be signalled from outside the
// goroutine that started them.
type Tracker interface {
	Attach(jobID string, p *os.Process) (detach func())
}

// Observer receives the outcome of every invocation, for metrics.
type Observer func(binary, outcome string, elapsed time.Duration)

// Runner is the default Executor.
type Runner struct {
	tracker  Tracker
	grace    time.Duration
	observer Observer
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. tracker may be nil.
func NewRunner(tracker Tracker, opts ...Option) *Runner {
	r := &Runner{tracker: tracker, grace: DefaultGracePeriod, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts c and waits for it, honouring ctx cancellation.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	binary := filepath.Base(c.Name)
	jobID := JobID(ctx)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.grace

	var stdout, stderr bytes.Buffer
	if c.CaptureStdout {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	r.logger.DebugContext(ctx, "starting engine", "binary", binary, "job_id", jobID, "args", c.Args)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		r.observe(binary, "start_error", 0)
		if ctx.Err() != nil {
			return nil, model.ProcessFailure(ctx.Err(), "%s not started", binary)
		}
		return nil, model.ProcessFailure(&ExitError{Binary: binary, ExitCode: -1, Stderr: err.Error()}, "%s could not be started", binary)
	}

	if r.tracker != nil {
		detach := r.tracker.Attach(jobID, cmd.Process)
		defer detach()
	}

	waitErr := cmd.Wait()
	res := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.observe(binary, "cancelled", res.Duration)
		r.logger.WarnContext(ctx, "engine terminated by cancellation", "binary", binary, "job_id", jobID, "exit_code", res.ExitCode)
		exitErr := &ExitError{Binary: binary, ExitCode: res.ExitCode, Stderr: res.Stderr}
		return res, model.ProcessFailure(fmt.Errorf("%w: %w", ctxErr, exitErr), "%s cancelled", binary)
	}

	var execErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &execErr) {
		// I/O copy or WaitDelay failures, the process itself did not report.
		r.observe(binary, "error", res.Duration)
		return res, model.ProcessFailure(waitErr, "%s did not complete", binary)
	}

	if res.ExitCode != 0 && !c.AllowFailure {
		r.observe(binary, "failure", res.Duration)
		exitErr := &ExitError{Binary: binary, ExitCode: res.ExitCode, Stderr: res.Stderr}
		r.logger.ErrorContext(ctx, "engine failed", "binary", binary, "job_id", jobID, "exit_code", res.ExitCode, "error", exitErr)
		return res, model.ProcessFailure(exitErr, "%s failed", binary)
	}

	r.observe(binary, "success", res.Duration)
	return res, nil
}

func (r *Runner) observe(binary, outcome string, elapsed time.Duration) {
	if r.observer != nil {
		r.observer(binary, outcome, elapsed)
	}
}

type jobIDKey struct{}

// WithJobID tags ctx with the job that owns any process started under it.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

// JobID returns the job id carried by ctx, or "".
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
