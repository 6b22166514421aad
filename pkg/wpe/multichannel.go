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
	"fmt"

	"github.com/livekit/protocol/logger"

	"github.com/michael-kuhlmann/paderbox/pkg/linalg"
)

// MultichannelDereverberator removes the late reverberation tail from a
// multichannel STFT signal of shape (bins, channels, frames). Per bin it
// estimates a stacked MIMO prediction filter of taps-by-channels-by-channels
// matrices by solving one (channels^2*taps)-sized Hermitian normal-equation
// system, whitened by the inverse spatial correlation of the previous
// round's dereverberated output.
type MultichannelDereverberator struct {
	cfg    MultichannelConfig
	log    logger.Logger
	filter [][][][]complex128
}

// NewMultichannelDereverberator validates the configuration and creates a
// MIMO dereverberator.
func NewMultichannelDereverberator(cfg MultichannelConfig, log logger.Logger) (*MultichannelDereverberator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MultichannelDereverberator{
		cfg: cfg,
		log: log.WithValues("component", "wpe-mimo"),
	}, nil
}

// MultichannelDereverberate runs MIMO dereverberation with the given
// configuration and the default logger.
func MultichannelDereverberate(signal [][][]complex128, cfg MultichannelConfig) ([][][]complex128, error) {
	d, err := NewMultichannelDereverberator(cfg, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	return d.Process(signal)
}

// Filter returns the prediction filter tensor of shape
// (bins, taps, channels, channels) estimated by the most recent Process
// call. Each round replaces the tensor wholesale; the returned value is
// never mutated afterwards.
func (d *MultichannelDereverberator) Filter() [][][][]complex128 {
	return d.filter
}

// Process dereverberates a (bins, channels, frames) STFT signal and returns
// a tensor of the same shape. Frames earlier than taps+delay carry
// insufficient prediction context and are returned unmodified. Each round
// first applies the previous round's filter and then re-estimates the
// filter from the result, so with Iterations == 0 or 1 the output equals
// the input (the zero filter predicts nothing).
func (d *MultichannelDereverberator) Process(signal [][][]complex128) ([][][]complex128, error) {
	bins, channels, frames, err := checkCuboid(signal)
	if err != nil {
		return nil, err
	}
	targets := frames - d.cfg.Taps - d.cfg.Delay + 1
	if targets < 1 {
		return nil, &ShapeError{
			Reason: "signal too short: no regression target after taps plus delay frames",
		}
	}

	d.filter = zeroFilter(bins, d.cfg.Taps, channels)
	out := cloneTensor(signal)
	if d.cfg.Iterations == 0 {
		return out, nil
	}

	d.log.Debugw("dereverberating",
		"bins", bins,
		"channels", channels,
		"frames", frames,
		"taps", d.cfg.Taps,
		"delay", d.cfg.Delay,
		"iterations", d.cfg.Iterations)

	for iter := 0; iter < d.cfg.Iterations; iter++ {
		out = d.subtractPrediction(signal)

		next := zeroFilter(bins, d.cfg.Taps, channels)
		err := forEachBin(bins, func(l int) error {
			return d.estimateBin(l, signal[l], out[l], targets, next[l])
		})
		if err != nil {
			return nil, err
		}
		// The filter tensor is owned by the round that solved it; replace
		// wholesale, never patch in place.
		d.filter = next
		d.log.Debugw("iteration complete", "iteration", iter+1)
	}

	return out, nil
}

// subtractPrediction applies the current filter causally:
//
//	x[l,:,t] = y[l,:,t] - sum_tau G[l,tau-delay]^H y[l,:,t-tau]
//
// for t >= delay+taps, with tau running over [delay, delay+taps).
func (d *MultichannelDereverberator) subtractPrediction(signal [][][]complex128) [][][]complex128 {
	out := cloneTensor(signal)
	taps, delay := d.cfg.Taps, d.cfg.Delay
	for l, bin := range signal {
		channels := len(bin)
		frames := len(bin[0])
		for t := delay + taps; t < frames; t++ {
			for tau := delay; tau < delay+taps; tau++ {
				tap := d.filter[l][tau-delay]
				for a := 0; a < channels; a++ {
					var p complex128
					for b := 0; b < channels; b++ {
						g := tap[b][a]
						p += complex(real(g), -imag(g)) * bin[b][t-tau]
					}
					out[l][a][t] -= p
				}
			}
		}
	}
	return out
}

// estimateBin solves one bin's stacked normal equations. The regressor rows
// are indexed m = channels^2*tap + channels*outChannel + inChannel; row m at
// target index j holds y[inChannel, t-delay-tap] with t = j+taps+delay-1.
// The stacked system is contracted against the precision invR/power of the
// dereverberated estimate, with time as the outermost summation axis so the
// accumulation order is reproducible.
func (d *MultichannelDereverberator) estimateBin(
	l int,
	bin [][]complex128,
	derevBin [][]complex128,
	targets int,
	filterBin [][][]complex128,
) error {
	taps, delay := d.cfg.Taps, d.cfg.Delay
	channels := len(bin)
	stacked := channels * channels * taps

	invR, power, err := scaledSpatialPrecision(derevBin, d.cfg.PowerFloor)
	if err != nil {
		return &SingularSystemError{Bin: l, Err: err}
	}

	// Dense regressor: one row per (tap, out channel, in channel), one
	// column per target index. Rows sharing a (tap, in channel) pair repeat
	// the same shifted observation; the out channel only selects which
	// precision entry weights them.
	regressor := make([]complex128, stacked*targets)
	for m := 0; m < stacked; m++ {
		tap := m / (channels * channels)
		inChannel := m % channels
		for j := 0; j < targets; j++ {
			t := j + taps + delay - 1
			regressor[m*targets+j] = bin[inChannel][t-delay-tap]
		}
	}

	normal := make([]complex128, stacked*stacked)
	rhs := make([]complex128, stacked)
	for j := 0; j < targets; j++ {
		t := j + taps + delay - 1
		w := 1.0 / power[j]
		for m := 0; m < stacked; m++ {
			outM := (m / channels) % channels
			pm := regressor[m*targets+j]
			for p := 0; p < stacked; p++ {
				outP := (p / channels) % channels
				r := invR[outM*channels+outP]
				pp := regressor[p*targets+j]
				normal[m*stacked+p] += pm *
					complex(real(r)*w, imag(r)*w) *
					complex(real(pp), -imag(pp))
			}
			var weighted complex128
			for o := 0; o < channels; o++ {
				r := invR[outM*channels+o]
				weighted += complex(real(r)*w, imag(r)*w) * bin[o][t]
			}
			rhs[m] += pm * weighted
		}
	}

	g, err := linalg.SolveHermitian(normal, rhs, stacked)
	if err != nil {
		return &SingularSystemError{Bin: l, Err: err}
	}

	for tap := 0; tap < taps; tap++ {
		for a := 0; a < channels; a++ {
			for b := 0; b < channels; b++ {
				filterBin[tap][a][b] = g[channels*channels*tap+channels*a+b]
			}
		}
	}
	return nil
}

// checkCuboid verifies a (bins, channels, frames) tensor is non-empty and
// consistent across bins and channels, returning its dimensions.
func checkCuboid(signal [][][]complex128) (bins, channels, frames int, err error) {
	bins = len(signal)
	if bins == 0 {
		return 0, 0, 0, &ShapeError{Reason: "signal has no frequency bins"}
	}
	channels = len(signal[0])
	if channels == 0 {
		return 0, 0, 0, &ShapeError{Reason: "signal has no channels"}
	}
	frames = len(signal[0][0])
	if frames == 0 {
		return 0, 0, 0, &ShapeError{Reason: "signal has no frames"}
	}
	for l, bin := range signal {
		if len(bin) != channels {
			return 0, 0, 0, &ShapeError{
				Reason: fmt.Sprintf("bin %d has %d channels, want %d", l, len(bin), channels),
			}
		}
		for n, ch := range bin {
			if len(ch) != frames {
				return 0, 0, 0, &ShapeError{
					Reason: fmt.Sprintf("bin %d channel %d has %d frames, want %d", l, n, len(ch), frames),
				}
			}
		}
	}
	return bins, channels, frames, nil
}

func zeroFilter(bins, taps, channels int) [][][][]complex128 {
	filter := make([][][][]complex128, bins)
	for l := range filter {
		filter[l] = make([][][]complex128, taps)
		for k := range filter[l] {
			filter[l][k] = make([][]complex128, channels)
			for a := range filter[l][k] {
				filter[l][k][a] = make([]complex128, channels)
			}
		}
	}
	return filter
}

func cloneTensor(signal [][][]complex128) [][][]complex128 {
	out := make([][][]complex128, len(signal))
	for l, bin := range signal {
		out[l] = make([][]complex128, len(bin))
		for n, ch := range bin {
			out[l][n] = append([]complex128(nil), ch...)
		}
	}
	return out
}
