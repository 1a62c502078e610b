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
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// BaseContext is the default Context. It is safe for concurrent use so that
// commands fanning out work (analysis, overlay downloads) can record results
// and errors from their own goroutines.
type BaseContext struct {
	mu         sync.RWMutex
	data       map[string]interface{} // Arbitrary key-value data shared between commands.
	errors     map[string]error       // Errors keyed by the command name that produced them.
	errorOrder []string               // Command names in the order their errors were recorded.
	tempFiles  []string               // Intermediate artifacts removed on Close.
	context    context.Context        // Go context for cancellation and request-scoped values.
}

// NewBaseContext creates an empty, initialized BaseContext.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

func (c *BaseContext) SetContext(context context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// Close removes every registered intermediate file. A file that is already
// gone is not an error; any other failure is logged and swallowed.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		err := os.Remove(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to remove intermediate file", "file", file, "error", err)
		}
	}
	c.mu.Lock()
	c.tempFiles = c.tempFiles[:0]
	c.mu.Unlock()
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

func (c *BaseContext) AddTempFile(file string) {
	if file == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.tempFiles {
		if f == file {
			return
		}
	}
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) KeepFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.tempFiles[:0]
	for _, f := range c.tempFiles {
		if f != file {
			kept = append(kept, f)
		}
	}
	c.tempFiles = kept
}

func (c *BaseContext) GetTempFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.tempFiles))
	copy(out, c.tempFiles)
	return out
}

func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.errors[key]; !exists {
		c.errorOrder = append(c.errorOrder, key)
	}
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

func (c *BaseContext) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.errorOrder) == 0 {
		return nil
	}
	return c.errors[c.errorOrder[0]]
}

func (c *BaseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}
