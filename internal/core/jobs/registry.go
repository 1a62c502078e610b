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

// Package jobs holds the worker's single job slot.
//
// The Registry records whether the worker is idle or busy, which job owns the
// slot, the cancel function of that job's context and the engine processes
// the job currently has running. Analysis runs two engines at once, so a job
// may own several processes. The lock guards field reads and writes only; no
// method holds it while waiting on a process.
package jobs

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Registry is the process-wide job slot. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.Mutex
	current   model.Job
	cancel    context.CancelFunc
	processes map[int]tracked
	onPreempt func(previous model.Job)
}

type tracked struct {
	jobID   string
	process *os.Process
}

// NewRegistry creates an idle registry.
func NewRegistry() *Registry {
	return &Registry{
		current:   model.IdleJob(),
		processes: make(map[int]tracked),
	}
}

// OnPreempt registers a hook called (outside the lock) after every
// preemption that found the slot busy.
func (r *Registry) OnPreempt(fn func(previous model.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPreempt = fn
}

// TryAcquire claims the slot for jobID if it is idle.
func (r *Registry) TryAcquire(jobID, kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.Status == model.StatusBusy {
		return false
	}
	r.current = model.Job{Status: model.StatusBusy, ID: jobID, Kind: kind, StartedAt: time.Now()}
	r.cancel = nil
	return true
}

// BindCancel stores the cancel function of jobID's context. It is a no-op if
// jobID no longer owns the slot, in which case cancel is invoked at once.
func (r *Registry) BindCancel(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	owns := r.current.Status == model.StatusBusy && r.current.ID == jobID
	if owns {
		r.cancel = cancel
	}
	r.mu.Unlock()
	if !owns && cancel != nil {
		cancel()
	}
}

// Release frees the slot if jobID still owns it. A preempted job releasing
// late never clobbers the job that replaced it.
func (r *Registry) Release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.ID != jobID {
		return
	}
	r.current = model.IdleJob()
	r.cancel = nil
}

// ForcePreempt cancels the active job, terminates its processes and resets
// the slot to idle. It reports whether anything was running.
func (r *Registry) ForcePreempt() bool {
	r.mu.Lock()
	previous := r.current
	cancel := r.cancel
	victims := make([]*os.Process, 0, len(r.processes))
	for pid, t := range r.processes {
		victims = append(victims, t.process)
		delete(r.processes, pid)
	}
	hook := r.onPreempt
	r.current = model.IdleJob()
	r.cancel = nil
	r.mu.Unlock()

	wasBusy := previous.Status == model.StatusBusy || len(victims) > 0
	if cancel != nil {
		cancel()
	}
	for _, p := range victims {
		terminate(p)
	}
	if wasBusy && hook != nil {
		hook(previous)
	}
	return wasBusy
}

// Attach records a live process for jobID and returns the function that
// forgets it. A process attached for a job that has already lost the slot is
// terminated immediately. An empty jobID tracks the process without tying it
// to a job, so a reset can still reach it.
func (r *Registry) Attach(jobID string, p *os.Process) (detach func()) {
	if p == nil {
		return func() {}
	}
	r.mu.Lock()
	stale := jobID != "" && r.current.ID != jobID
	if !stale {
		r.processes[p.Pid] = tracked{jobID: jobID, process: p}
	}
	r.mu.Unlock()

	if stale {
		slog.Warn("terminating process of preempted job", "job_id", jobID, "pid", p.Pid)
		terminate(p)
		return func() {}
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if t, ok := r.processes[p.Pid]; ok && t.process == p {
			delete(r.processes, p.Pid)
		}
	}
}

// Status returns a snapshot of the slot.
func (r *Registry) Status() model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Busy reports whether a job holds the slot.
func (r *Registry) Busy() bool {
	return r.Status().Status == model.StatusBusy
}

// ProcessCount returns the number of tracked live processes.
func (r *Registry) ProcessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processes)
}

func terminate(p *os.Process) {
	if err := p.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		slog.Warn("failed to signal process", "pid", p.Pid, "error", err)
	}
}
