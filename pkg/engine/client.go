// Copyright 2026 Michael Kuhlmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine wraps the legacy external numerical engine that runs the
// settings-file-driven dereverberation. The engine itself is an opaque
// collaborator with a narrow contract; this package only manages its
// lifecycle, the variable round-trip, and the settings file. Engine
// failures never touch in-process algorithmic state.
package engine

import "fmt"

// Client is a connection to the external numerical engine. Implementations
// own the engine process; callers drive the lifecycle explicitly instead of
// sharing a process-wide singleton.
type Client interface {
	// Start launches or attaches to the engine process.
	Start() error
	// Stop shuts the engine process down.
	Stop() error
	// Started reports whether the engine process is running.
	Started() bool
	// Run executes a code snippet in the engine.
	Run(code string) error
	// SetMatrix assigns a frames-by-channels matrix to an engine variable.
	SetMatrix(name string, value [][]float64) error
	// GetMatrix reads a frames-by-channels matrix from an engine variable.
	GetMatrix(name string) ([][]float64, error)
	// SetString assigns a string to an engine variable.
	SetString(name, value string) error
	// GetString reads a string from an engine variable.
	GetString(name string) (string, error)
}

// EngineError reports that the external engine could not be driven: it
// failed to start, a call failed, or returned data failed a consistency
// check.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(op string, err error) *EngineError {
	return &EngineError{Op: op, Err: err}
}
