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

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindInputUnavailable      ErrorKind = "InputUnavailable"      // Source could not be fetched or decoded.
	KindProcessFailure        ErrorKind = "ProcessFailure"        // An external engine exited non-zero.
	KindInvalidGraph          ErrorKind = "InvalidGraph"          // Filter graph construction defect.
	KindEmptyTimeline         ErrorKind = "EmptyTimeline"         // A structural edit removed everything.
	KindAnalysisEngineFailure ErrorKind = "AnalysisEngineFailure" // A fatal sub-analysis failure.
	KindBusy                  ErrorKind = "Busy"                  // The job slot is held and preemption is not allowed.
	KindInvalidRequest        ErrorKind = "InvalidRequest"        // The request payload is malformed.
	KindPreempted             ErrorKind = "Preempted"             // The job was force-preempted by a newer one.
)

var kindStatus = map[ErrorKind]int{
	KindInputUnavailable:      http.StatusBadRequest,
	KindProcessFailure:        http.StatusInternalServerError,
	KindInvalidGraph:          http.StatusInternalServerError,
	KindEmptyTimeline:         http.StatusUnprocessableEntity,
	KindAnalysisEngineFailure: http.StatusInternalServerError,
	KindBusy:                  http.StatusServiceUnavailable,
	KindInvalidRequest:        http.StatusBadRequest,
	KindPreempted:             http.StatusConflict,
}

// PipelineError is the structured error surfaced to callers.
type PipelineError struct {
	Kind    ErrorKind // Taxonomy entry.
	Status  int       // HTTP-style status code.
	Message string    // Human readable message.
	Err     error     // Underlying cause, if any.
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches another *PipelineError by kind, so errors.Is(err, ErrBusy) works.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// NewPipelineError creates an error of the given kind with its default status.
func NewPipelineError(kind ErrorKind, err error, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Status:  kindStatus[kind],
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Sentinels usable with errors.Is.
var (
	ErrInputUnavailable      = &PipelineError{Kind: KindInputUnavailable}
	ErrProcessFailure        = &PipelineError{Kind: KindProcessFailure}
	ErrInvalidGraph          = &PipelineError{Kind: KindInvalidGraph}
	ErrEmptyTimeline         = &PipelineError{Kind: KindEmptyTimeline}
	ErrAnalysisEngineFailure = &PipelineError{Kind: KindAnalysisEngineFailure}
	ErrBusy                  = &PipelineError{Kind: KindBusy}
	ErrInvalidRequest        = &PipelineError{Kind: KindInvalidRequest}
	ErrPreempted             = &PipelineError{Kind: KindPreempted}
)

func InputUnavailable(err error, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindInputUnavailable, err, format, args...)
}

func ProcessFailure(err error, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindProcessFailure, err, format, args...)
}

func InvalidGraph(format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindInvalidGraph, nil, format, args...)
}

func EmptyTimeline(format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindEmptyTimeline, nil, format, args...)
}

func AnalysisEngineFailure(err error, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindAnalysisEngineFailure, err, format, args...)
}

func Busy(format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindBusy, nil, format, args...)
}

func InvalidRequest(err error, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindInvalidRequest, err, format, args...)
}

func Preempted(err error, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(KindPreempted, err, format, args...)
}

// AsPipelineError maps any error onto the taxonomy. Cancellation becomes
// Preempted; anything unclassified becomes ProcessFailure.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return Preempted(err, "job was cancelled")
	}
	return ProcessFailure(err, "pipeline failed")
}

// StatusOf returns the HTTP-style status code for err.
func StatusOf(err error) int {
	if pe := AsPipelineError(err); pe != nil {
		if pe.Status == 0 {
			return http.StatusInternalServerError
		}
		return pe.Status
	}
	return http.StatusOK
}
