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

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/livekit/protocol/logger"
)

// SettingsFileName is the settings file the engine-side dereverberation
// expects in the settings directory. The name is fixed by the engine-side
// script.
const SettingsFileName = "wpe_settings.m"

// Dereverb runs the engine-side dereverberation on a frames-by-channels
// time-domain signal and returns a matrix of identical shape.
//
// The settings file in settingsDir governs the engine-side parameters; its
// channel count declaration is rewritten when it does not match the input.
// The client is started if it is not running, and stopped afterwards when
// stopAfter is set. All failures surface as *EngineError.
func Dereverb(c Client, settingsDir string, x [][]float64, stopAfter bool, log logger.Logger) ([][]float64, error) {
	frames := len(x)
	if frames == 0 {
		return nil, engineErr("validate input", errors.New("signal has no frames"))
	}
	channels := len(x[0])
	if channels == 0 {
		return nil, engineErr("validate input", errors.New("signal has no channels"))
	}
	for i, row := range x {
		if len(row) != channels {
			return nil, engineErr("validate input",
				fmt.Errorf("frame %d has %d channels, want %d", i, len(row), channels))
		}
	}

	settingsPath := filepath.Join(settingsDir, SettingsFileName)
	if err := ensureChannelCount(settingsPath, channels); err != nil {
		return nil, engineErr("prepare settings", err)
	}

	log = log.WithValues("component", "engine")
	if !c.Started() {
		log.Infow("starting external engine")
		if err := c.Start(); err != nil {
			return nil, engineErr("start", err)
		}
	} else if err := c.Run("clear all;"); err != nil {
		return nil, engineErr("clear state", err)
	}

	if err := c.SetMatrix("x", x); err != nil {
		return nil, engineErr("set input", err)
	}
	if err := c.SetString("settings", settingsPath); err != nil {
		return nil, engineErr("set settings path", err)
	}

	// Round-trip the variables before running anything expensive; a
	// mismatch means the connection is corrupting data.
	if err := verifyRoundTrip(c, x, settingsPath); err != nil {
		return nil, engineErr("verify round trip", err)
	}

	if err := c.Run(fmt.Sprintf("addpath('%s');", settingsDir)); err != nil {
		return nil, engineErr("add path", err)
	}

	log.Infow("dereverberating", "frames", frames, "channels", channels)
	if err := c.Run("y = wpe(x, settings);"); err != nil {
		return nil, engineErr("run dereverberation", err)
	}

	y, err := c.GetMatrix("y")
	if err != nil {
		return nil, engineErr("get result", err)
	}
	if len(y) != frames {
		return nil, engineErr("check result",
			fmt.Errorf("result has %d frames, want %d", len(y), frames))
	}
	for i, row := range y {
		if len(row) != channels {
			return nil, engineErr("check result",
				fmt.Errorf("result frame %d has %d channels, want %d", i, len(row), channels))
		}
	}

	if stopAfter && c.Started() {
		log.Infow("stopping external engine")
		if err := c.Stop(); err != nil {
			return nil, engineErr("stop", err)
		}
	}
	return y, nil
}

// ensureChannelCount rewrites the settings file's "num_mic = N;" declaration
// when it does not already declare the given channel count.
func ensureChannelCount(settingsPath string, channels int) error {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	want := fmt.Sprintf("num_mic = %d;", channels)
	lines := strings.Split(string(data), "\n")
	modified := false
	for i, line := range lines {
		if !strings.Contains(line, "num_mic = ") {
			continue
		}
		if strings.TrimSpace(line) == want {
			return nil
		}
		lines[i] = want
		modified = true
		break
	}
	if !modified {
		return fmt.Errorf("settings file %s declares no channel count", settingsPath)
	}
	if err := os.WriteFile(settingsPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite settings file: %w", err)
	}
	return nil
}

func verifyRoundTrip(c Client, x [][]float64, settingsPath string) error {
	got, err := c.GetMatrix("x")
	if err != nil {
		return err
	}
	if len(got) != len(x) {
		return fmt.Errorf("input came back with %d frames, want %d", len(got), len(x))
	}
	for i := range x {
		if len(got[i]) != len(x[i]) {
			return fmt.Errorf("input frame %d came back with %d channels, want %d",
				i, len(got[i]), len(x[i]))
		}
		for j := range x[i] {
			if got[i][j] != x[i][j] {
				return fmt.Errorf("input value (%d, %d) changed in transit", i, j)
			}
		}
	}

	gotPath, err := c.GetString("settings")
	if err != nil {
		return err
	}
	if gotPath != settingsPath {
		return fmt.Errorf("settings path came back as %q, want %q", gotPath, settingsPath)
	}
	return nil
}
