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

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/livekit/protocol/logger"
	"github.com/stretchr/testify/require"
)

// randomSpectrogram returns a seeded (frames, bins) tensor of standard
// complex Gaussian values.
func randomSpectrogram(frames, bins int, seed int64) [][]complex128 {
	rng := rand.New(rand.NewSource(seed))
	signal := make([][]complex128, frames)
	for t := range signal {
		row := make([]complex128, bins)
		for f := range row {
			row[f] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
		signal[t] = row
	}
	return signal
}

func TestNewDereverberator(t *testing.T) {
	log := logger.GetLogger()

	t.Run("valid config", func(t *testing.T) {
		d, err := NewDereverberator(DefaultConfig(), log)
		require.NoError(t, err)
		require.NotNil(t, d)
	})

	for _, tc := range []struct {
		name string
		mut  func(*Config)
	}{
		{"zero epsilon", func(c *Config) { c.Epsilon = 0 }},
		{"negative epsilon", func(c *Config) { c.Epsilon = -1e-6 }},
		{"zero order", func(c *Config) { c.Order = 0 }},
		{"negative delay", func(c *Config) { c.Delay = -1 }},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(&cfg)
			d, err := NewDereverberator(cfg, log)
			require.Error(t, err)
			require.Nil(t, d)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestProcessShapeAndIdentity(t *testing.T) {
	log := logger.GetLogger()

	t.Run("output shape matches input", func(t *testing.T) {
		cfg := Config{Epsilon: 1e-6, Order: 5, Delay: 2, Iterations: 3}
		d, err := NewDereverberator(cfg, log)
		require.NoError(t, err)

		signal := randomSpectrogram(64, 7, 7)
		out, err := d.Process(signal)
		require.NoError(t, err)
		require.Len(t, out, 64)
		for _, row := range out {
			require.Len(t, row, 7)
		}
	})

	t.Run("leading frames pass through unmodified", func(t *testing.T) {
		for _, p := range []struct{ order, delay int }{{1, 0}, {3, 1}, {5, 4}} {
			cfg := Config{Epsilon: 1e-6, Order: p.order, Delay: p.delay, Iterations: 2}
			d, err := NewDereverberator(cfg, log)
			require.NoError(t, err)

			signal := randomSpectrogram(40, 3, 11)
			out, err := d.Process(signal)
			require.NoError(t, err)
			for t0 := 0; t0 < p.order+p.delay; t0++ {
				require.Equal(t, signal[t0], out[t0],
					"frame %d should be untouched for order=%d delay=%d", t0, p.order, p.delay)
			}
		}
	})

	t.Run("zero iterations is identity", func(t *testing.T) {
		cfg := Config{Epsilon: 1e-6, Order: 3, Delay: 1, Iterations: 0}
		d, err := NewDereverberator(cfg, log)
		require.NoError(t, err)

		signal := randomSpectrogram(30, 4, 13)
		out, err := d.Process(signal)
		require.NoError(t, err)
		require.Equal(t, signal, out)

		// The result is a copy, not an alias.
		out[10][0] += 1
		require.NotEqual(t, signal[10][0], out[10][0])
	})

	t.Run("deterministic", func(t *testing.T) {
		cfg := Config{Epsilon: 1e-6, Order: 4, Delay: 1, Iterations: 3}
		d, err := NewDereverberator(cfg, log)
		require.NoError(t, err)

		signal := randomSpectrogram(80, 6, 17)
		first, err := d.Process(signal)
		require.NoError(t, err)
		second, err := d.Process(signal)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestProcessSeededScenario(t *testing.T) {
	// (50, 4) seeded signal, order=3, delay=1, iterations=2: the first
	// order+delay frames are untouched, the tail is modified.
	cfg := Config{Epsilon: 1e-6, Order: 3, Delay: 1, Iterations: 2}
	d, err := NewDereverberator(cfg, logger.GetLogger())
	require.NoError(t, err)

	signal := randomSpectrogram(50, 4, 42)
	out, err := d.Process(signal)
	require.NoError(t, err)

	require.Len(t, out, 50)
	for _, row := range out {
		require.Len(t, row, 4)
	}
	for t0 := 0; t0 < 4; t0++ {
		require.Equal(t, signal[t0], out[t0])
	}

	changed := false
	for t0 := 4; t0 < 50 && !changed; t0++ {
		for f := 0; f < 4; f++ {
			if out[t0][f] != signal[t0][f] {
				changed = true
				break
			}
		}
	}
	require.True(t, changed, "dereverberation should modify at least one tail entry")
}

func TestProcessShapeErrors(t *testing.T) {
	log := logger.GetLogger()

	t.Run("no regression target", func(t *testing.T) {
		// Time length 5 with order=4, delay=2 leaves no valid target.
		cfg := Config{Epsilon: 1e-6, Order: 4, Delay: 2, Iterations: 1}
		d, err := NewDereverberator(cfg, log)
		require.NoError(t, err)

		_, err = d.Process(randomSpectrogram(5, 2, 3))
		var shapeErr *ShapeError
		require.ErrorAs(t, err, &shapeErr)
	})

	t.Run("empty signal", func(t *testing.T) {
		d, err := NewDereverberator(DefaultConfig(), log)
		require.NoError(t, err)

		_, err = d.Process(nil)
		var shapeErr *ShapeError
		require.ErrorAs(t, err, &shapeErr)
	})

	t.Run("ragged signal", func(t *testing.T) {
		d, err := NewDereverberator(DefaultConfig(), log)
		require.NoError(t, err)

		signal := randomSpectrogram(40, 4, 5)
		signal[20] = signal[20][:2]
		_, err = d.Process(signal)
		var shapeErr *ShapeError
		require.ErrorAs(t, err, &shapeErr)
	})
}

func TestProcessAnechoicNearInvariance(t *testing.T) {
	// Per-bin i.i.d. complex noise has nothing a linear predictor can
	// exploit, so the coefficients must stay near zero and the output
	// close to the input.
	cfg := Config{Epsilon: 1e-6, Order: 4, Delay: 1, Iterations: 3}
	d, err := NewDereverberator(cfg, logger.GetLogger())
	require.NoError(t, err)

	signal := randomSpectrogram(600, 3, 23)

	t.Run("coefficients near zero", func(t *testing.T) {
		power := estimatePower(signal, cfg.Epsilon)
		norm := normalizeByPower(signal, power)
		normWindows := windowFrames(norm, cfg.Order, cfg.Delay)

		for f := 0; f < 3; f++ {
			coeffs, err := d.solveBin(f, norm, normWindows)
			require.NoError(t, err)
			require.Len(t, coeffs, cfg.Order)
			for _, c := range coeffs {
				require.Less(t, cmplx.Abs(c), 0.2,
					"bin %d: noise admits no usable predictor", f)
			}
		}
	})

	t.Run("output close to input", func(t *testing.T) {
		out, err := d.Process(signal)
		require.NoError(t, err)

		var energy, diff float64
		for t0 := range signal {
			for f := range signal[t0] {
				v := signal[t0][f]
				e := out[t0][f] - v
				energy += real(v)*real(v) + imag(v)*imag(v)
				diff += real(e)*real(e) + imag(e)*imag(e)
			}
		}
		require.Less(t, diff/energy, 0.1,
			"unpredictable noise should survive dereverberation nearly unchanged")
	})
}

func TestProcessRemovesEchoTail(t *testing.T) {
	// A synthetic echo at a lag the prediction window covers is
	// predictable from the past, so dereverberation must strip a
	// substantial share of it.
	const (
		frames = 200
		bins   = 4
		lag    = 2
		gain   = 0.7
	)
	clean := randomSpectrogram(frames, bins, 29)
	reverbed := cloneMatrix(clean)
	for t0 := lag; t0 < frames; t0++ {
		for f := 0; f < bins; f++ {
			reverbed[t0][f] += complex(gain, 0) * clean[t0-lag][f]
		}
	}

	cfg := Config{Epsilon: 1e-6, Order: 3, Delay: 1, Iterations: 3}
	d, err := NewDereverberator(cfg, logger.GetLogger())
	require.NoError(t, err)

	out, err := d.Process(reverbed)
	require.NoError(t, err)

	var before, after float64
	for t0 := cfg.Order + cfg.Delay; t0 < frames; t0++ {
		for f := 0; f < bins; f++ {
			b := reverbed[t0][f] - clean[t0][f]
			a := out[t0][f] - clean[t0][f]
			before += real(b)*real(b) + imag(b)*imag(b)
			after += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	require.Less(t, after/before, 0.9,
		"echo energy should drop once the tail is predicted and subtracted")
}

func TestDereverberateConvenience(t *testing.T) {
	signal := randomSpectrogram(40, 2, 31)
	out, err := Dereverberate(signal, Config{Epsilon: 1e-6, Order: 2, Delay: 1, Iterations: 1})
	require.NoError(t, err)
	require.Len(t, out, 40)
}
