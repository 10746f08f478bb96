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
	"log/slog"
	"os"
	"time"
)

// finalizerTimeout bounds each cleanup action so a hung delete cannot stall
// the invocation's exit path.
const finalizerTimeout = 30 * time.Second

type namedFinalizer struct {
	name string
	fn   Finalizer
}

// BaseContext is the default Context implementation. It holds the invocation's
// data, collected errors, and the cleanup ledger (temp files plus finalizers).
type BaseContext struct {
	data       map[string]interface{}
	errors     map[string]error
	tempFiles  []string
	finalizers []namedFinalizer
	context    context.Context
}

// NewBaseContext returns an empty, ready-to-use context.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

func (c *BaseContext) SetContext(ctx context.Context) {
	c.context = ctx
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

func (c *BaseContext) AddFinalizer(name string, fn Finalizer) {
	c.finalizers = append(c.finalizers, namedFinalizer{name: name, fn: fn})
}

// Close releases every temporary resource created during the invocation.
// Local temp files are removed first, then finalizers run in reverse
// registration order. Failures are logged, never returned: cleanup must not
// override the pipeline's primary success or failure result. Close runs the
// finalizers on a fresh context so that cleanup still happens after the
// invocation's own context has been cancelled or timed out.
func (c *BaseContext) Close() {
	for _, file := range c.tempFiles {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
	c.tempFiles = nil

	for i := len(c.finalizers) - 1; i >= 0; i-- {
		f := c.finalizers[i]
		ctx, cancel := context.WithTimeout(context.Background(), finalizerTimeout)
		if err := f.fn(ctx); err != nil {
			slog.Warn("cleanup finalizer failed", "finalizer", f.name, "error", err)
		}
		cancel()
	}
	c.finalizers = nil
}
