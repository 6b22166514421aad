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

import "github.com/michael-kuhlmann/paderbox/pkg/linalg"

// spatialScalingRounds is the fixed number of power re-scaling rounds used
// when separating the spatial correlation matrix from the per-time power.
const spatialScalingRounds = 2

// scaledSpatialPrecision computes, for one frequency bin, the inverse of the
// power-scaled spatial correlation matrix together with the separable
// per-time power factor. x holds the bin's channels as (channels, frames).
//
// The correlation matrix is the time average of the channel outer products
// weighted by 1/power; the power is initialized as the floored channel-mean
// magnitude and re-estimated once as re(x_t^H R^-1 x_t)/channels, keeping the
// scale split between the two factors stable. The full precision tensor of
// the normal equations is invR scaled by 1/power per time index.
func scaledSpatialPrecision(x [][]complex128, floor float64) (invR []complex128, power []float64, err error) {
	channels := len(x)
	frames := len(x[0])

	power = make([]float64, frames)
	for t := 0; t < frames; t++ {
		var sum float64
		for a := 0; a < channels; a++ {
			v := x[a][t]
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
		sum /= float64(channels)
		if sum < floor {
			sum = floor
		}
		power[t] = sum
	}

	for round := 0; round < spatialScalingRounds; round++ {
		corr := make([]complex128, channels*channels)
		for t := 0; t < frames; t++ {
			w := 1.0 / (power[t] * float64(frames))
			for a := 0; a < channels; a++ {
				va := x[a][t]
				for b := 0; b < channels; b++ {
					vb := x[b][t]
					corr[a*channels+b] += complex(
						(real(va)*real(vb)+imag(va)*imag(vb))*w,
						(imag(va)*real(vb)-real(va)*imag(vb))*w,
					)
				}
			}
		}

		invR, err = linalg.InvertHermitian(corr, channels)
		if err != nil {
			return nil, nil, err
		}

		if round == spatialScalingRounds-1 {
			break
		}
		for t := 0; t < frames; t++ {
			var p float64
			for a := 0; a < channels; a++ {
				va := x[a][t]
				for b := 0; b < channels; b++ {
					vb := x[b][t]
					r := invR[a*channels+b]
					// re(conj(x_a) * R^-1[a,b] * x_b)
					reProd := real(va)*real(vb) + imag(va)*imag(vb)
					imProd := real(va)*imag(vb) - imag(va)*real(vb)
					p += real(r)*reProd - imag(r)*imProd
				}
			}
			p /= float64(channels)
			if p < floor {
				p = floor
			}
			power[t] = p
		}
	}

	return invR, power, nil
}
