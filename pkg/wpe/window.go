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

// windowCount returns how many prediction context windows a signal of the
// given frame count yields. Windows of length order slide with stride 1 and
// the last delay+1 of them are dropped so that the window for the target at
// time t ends at t-delay-1.
func windowCount(frames, order, delay int) int {
	return frames - order - delay
}

// windowFrames materializes the overlapping context windows of a
// (frames, bins) signal. windows[j][d] aliases the signal row at time j+d,
// so windows[j] holds the order frames preceding the regression target at
// time j+order+delay. The returned sequence is finite and deterministic;
// rows are shared with the input and must not be written through.
func windowFrames(signal [][]complex128, order, delay int) [][][]complex128 {
	count := windowCount(len(signal), order, delay)
	if count <= 0 {
		return nil
	}
	windows := make([][][]complex128, count)
	for j := 0; j < count; j++ {
		windows[j] = signal[j : j+order]
	}
	return windows
}
