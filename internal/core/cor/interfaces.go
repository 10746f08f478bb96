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

// Package cor (Chain of Responsibility) provides the building blocks for the
// processing pipelines: a Command is an atomic unit of work, a Chain executes
// commands in order, and a Context is the shared state bag one invocation
// carries through the chain. The Context also owns cleanup: it tracks every
// temporary file and remote finalizer created along the way and releases them
// on Close, regardless of which step failed.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys the chain uses to pipe one command's primary
// output into the next command's input.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Finalizer releases one temporary resource. Finalizers run during Close in
// reverse registration order; a failure is logged and never escalated, so a
// broken cleanup cannot mask the pipeline's primary result.
type Finalizer func(ctx context.Context) error

// Context is the shared state for a single pipeline invocation. Commands read
// their inputs from it, write their outputs to it, and record errors on it.
type Context interface {
	// SetContext and GetContext manage the standard Go context that carries
	// cancellation, deadlines and trace propagation for this invocation.
	SetContext(ctx context.Context)
	GetContext() context.Context

	// Add stores a key-value pair; it returns the Context for chaining.
	Add(key string, value interface{}) Context

	// Get retrieves a value by key, or nil when absent.
	Get(key string) interface{}

	// Remove deletes a key.
	Remove(key string)

	// AddError records an error keyed by the command name that produced it.
	AddError(key string, err error)

	// GetErrors returns every error collected during the invocation.
	GetErrors() map[string]error

	// HasErrors reports whether any command has failed.
	HasErrors() bool

	// AddTempFile tracks a local temporary file for deletion on Close.
	AddTempFile(file string)

	// GetTempFiles lists the tracked temporary file paths.
	GetTempFiles() []string

	// AddFinalizer registers a named cleanup action, typically deletion of a
	// remote temporary artifact such as an analysis frame uploaded only to be
	// referenced by a model call.
	AddFinalizer(name string, fn Finalizer)

	// Close deletes tracked temp files and runs registered finalizers. It is
	// safe to call exactly once on every exit path.
	Close()
}

// Executable is anything with core execution logic.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, testable unit of work within a chain.
type Command interface {
	Executable

	// GetName returns the command name used for logging and telemetry.
	GetName() string

	// GetInputParam and GetOutputParam name the context keys for the
	// command's primary input and output.
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable is the precondition check run before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a sequence of commands. A Chain is itself a Command, so chains
// compose.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing after a
	// command records an error. The default is to stop.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
