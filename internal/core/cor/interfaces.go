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

// Package cor implements a small chain-of-responsibility engine. A pipeline is
// a Chain of Commands that share one Context per run: each command reads its
// input from the context, does its unit of work, and leaves either an output
// or an error behind.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys a BaseChain uses to pipe the output of one
// command into the input of the next.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the per-run state bag handed to every command in a chain.
// A Context belongs to exactly one run and is not safe for concurrent use.
type Context interface {
	// SetContext replaces the Go context carried by this run.
	SetContext(context context.Context)

	// GetContext returns the Go context for cancellation and trace propagation.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records a failure produced by the command named key.
	AddError(key string, err error)

	// GetErrors returns every recorded failure keyed by command name.
	GetErrors() map[string]error

	// FirstError returns the earliest recorded failure and the command that
	// produced it. ok is false when the run has no failures.
	FirstError() (key string, err error, ok bool)

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key from the context.
	Remove(key string)

	// HasErrors reports whether any command has failed.
	HasErrors() bool
}

// Executable is anything with a unit of work to run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a single pipeline stage.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable checks the preconditions of Execute. A chain treats a
	// command that is not executable as a failed stage.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered list of commands that is itself a Command, so chains
// can be nested.
type Chain interface {
	Command

	// ContinueOnFailure controls whether later commands still run after a
	// command has recorded an error. The default is to stop.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the chain.
	AddCommand(command Command) Chain
}
