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

package wpe

import "fmt"

// ConfigError reports an invalid parameter value. It is returned before any
// numeric work starts.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wpe: invalid %s: %s", e.Param, e.Reason)
}

// ShapeError reports an input tensor whose rank or size is inconsistent with
// the configured parameters, e.g. a signal too short to contain a single
// regression target. It is returned before any numeric work starts.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "wpe: " + e.Reason
}

// SingularSystemError reports that the correlation or normal-equation matrix
// of one frequency bin could not be solved. A single singular bin aborts the
// whole call; a result with silently missing bins would corrupt downstream
// processing.
type SingularSystemError struct {
	Bin int
	Err error
}

func (e *SingularSystemError) Error() string {
	return fmt.Sprintf("wpe: bin %d: %v", e.Bin, e.Err)
}

func (e *SingularSystemError) Unwrap() error { return e.Err }
