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

// estimatePower returns max(|signal|^2, floor) element-wise for a
// (frames, bins) tensor. The floor keeps the subsequent normalization free
// of divisions by zero and bounds the conditioning of the correlation
// matrices built from the normalized signal.
func estimatePower(signal [][]complex128, floor float64) [][]float64 {
	power := make([][]float64, len(signal))
	for t, row := range signal {
		p := make([]float64, len(row))
		for f, v := range row {
			m := real(v)*real(v) + imag(v)*imag(v)
			if m < floor {
				m = floor
			}
			p[f] = m
		}
		power[t] = p
	}
	return power
}
