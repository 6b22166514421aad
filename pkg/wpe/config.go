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

const (
	// DefaultEpsilon floors the power estimate so normalization never
	// divides by zero and the correlation matrices stay conditioned.
	DefaultEpsilon = 1e-6

	// DefaultOrder is the single-channel linear prediction order.
	DefaultOrder = 15

	// DefaultDelay is the single-channel prediction delay in frames.
	DefaultDelay = 1

	// DefaultIterations is the single-channel refinement count.
	DefaultIterations = 10

	// DefaultTaps is the multichannel prediction order K.
	DefaultTaps = 10

	// DefaultMultichannelDelay is the multichannel prediction delay Delta.
	DefaultMultichannelDelay = 3

	// DefaultMultichannelIterations is the multichannel refinement count.
	DefaultMultichannelIterations = 4

	// DefaultPowerFloor floors the spatial power estimate of the
	// multichannel variant.
	DefaultPowerFloor = 1e-10
)

// Config parameterizes single-channel dereverberation.
type Config struct {
	// Epsilon floors the per-bin power estimate. Must be > 0.
	Epsilon float64
	// Order is the number of prediction taps. Must be >= 1.
	Order int
	// Delay is the gap in frames between the prediction context and its
	// target. Must be >= 0.
	Delay int
	// Iterations is the number of refinement rounds. Must be >= 0; zero
	// returns the input unchanged.
	Iterations int
}

// DefaultConfig returns the single-channel defaults.
func DefaultConfig() Config {
	return Config{
		Epsilon:    DefaultEpsilon,
		Order:      DefaultOrder,
		Delay:      DefaultDelay,
		Iterations: DefaultIterations,
	}
}

// Validate checks the parameter ranges and returns a *ConfigError on the
// first violation.
func (c Config) Validate() error {
	if c.Epsilon <= 0 {
		return &ConfigError{Param: "epsilon", Reason: "must be > 0"}
	}
	if c.Order < 1 {
		return &ConfigError{Param: "order", Reason: "must be >= 1"}
	}
	if c.Delay < 0 {
		return &ConfigError{Param: "delay", Reason: "must be >= 0"}
	}
	if c.Iterations < 0 {
		return &ConfigError{Param: "iterations", Reason: "must be >= 0"}
	}
	return nil
}

// MultichannelConfig parameterizes MIMO dereverberation.
type MultichannelConfig struct {
	// Taps is the prediction order K. Must be >= 1.
	Taps int
	// Delay is the prediction delay Delta. Must be >= 0.
	Delay int
	// Iterations is the number of refinement rounds. Must be >= 0; zero
	// returns the input unchanged.
	Iterations int
	// PowerFloor floors the spatial power estimate. Must be > 0.
	PowerFloor float64
}

// DefaultMultichannelConfig returns the multichannel defaults.
func DefaultMultichannelConfig() MultichannelConfig {
	return MultichannelConfig{
		Taps:       DefaultTaps,
		Delay:      DefaultMultichannelDelay,
		Iterations: DefaultMultichannelIterations,
		PowerFloor: DefaultPowerFloor,
	}
}

// Validate checks the parameter ranges and returns a *ConfigError on the
// first violation.
func (c MultichannelConfig) Validate() error {
	if c.Taps < 1 {
		return &ConfigError{Param: "taps", Reason: "must be >= 1"}
	}
	if c.Delay < 0 {
		return &ConfigError{Param: "delay", Reason: "must be >= 0"}
	}
	if c.Iterations < 0 {
		return &ConfigError{Param: "iterations", Reason: "must be >= 0"}
	}
	if c.PowerFloor <= 0 {
		return &ConfigError{Param: "power floor", Reason: "must be > 0"}
	}
	return nil
}
