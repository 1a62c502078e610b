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

// Package test provides utility functions and mock data to support the application's
// test suite. It helps in setting up a consistent test environment, loading
// test-specific configurations, faking the external media engines and
// providing sample payloads for the job trigger.
package test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
)

// StateManager caches the application configuration during test runs.
type StateManager struct {
	mu     sync.Mutex
	config *cloud.Config
}

var state = &StateManager{}

// GetTestJobRequestMessageText returns a pipeline request as it arrives on
// the job request subscription.
func GetTestJobRequestMessageText() string {
	return `{
  "video_url": "gs://media_input_resources/test-trailer-001.mp4",
  "smart_crop": true,
  "crop_style": "zoom",
  "silence_removal": true,
  "captions": false,
  "add_music": false,
  "mute_audio": true
}`
}

// SetupOS points the configuration loader at the test configuration.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig returns the test configuration, loading it once.
func GetConfig() *cloud.Config {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config, "test"); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// FakeExecutor stands in for the media engines. It records every command and
// answers through Handler; by default it writes a small file at the last
// argument when that looks like an output path, the way the engines do.
type FakeExecutor struct {
	mu       sync.Mutex
	Commands []process.Command
	Handler  func(ctx context.Context, cmd process.Command) (*process.Result, error)
}

// Run records cmd and delegates to Handler.
func (f *FakeExecutor) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(ctx, cmd)
	}
	WriteOutput(cmd)
	return &process.Result{}, nil
}

// Calls returns a copy of the recorded commands.
func (f *FakeExecutor) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Command(nil), f.Commands...)
}

// Named returns the recorded commands of one binary.
func (f *FakeExecutor) Named(name string) []process.Command {
	var out []process.Command
	for _, c := range f.Calls() {
		if filepath.Base(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

// WriteOutput creates the file an engine would have produced: the last
// argument when it has a media extension.
func WriteOutput(cmd process.Command) {
	if len(cmd.Args) == 0 {
		return
	}
	last := cmd.Args[len(cmd.Args)-1]
	switch strings.ToLower(filepath.Ext(last)) {
	case ".mp4", ".mp3", ".png", ".jpg", ".wav", ".m4a":
		_ = os.WriteFile(last, MP4Header(), 0o644)
	}
}

// MP4Header returns the first bytes of an ISO base media file, enough for
// content sniffing to recognize a video.
func MP4Header() []byte {
	return []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}
}

// Arg returns the value following flag in args, or "".
func Arg(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// HasArg reports whether args contains value.
func HasArg(args []string, value string) bool {
	for _, a := range args {
		if a == value {
			return true
		}
	}
	return false
}
