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

// Package wpe implements weighted prediction error dereverberation of STFT
// signals, in single-channel and multichannel (MIMO) form. Both variants run
// a fixed number of refinement rounds in which per-frequency-bin prediction
// filters are re-estimated from the previous round's dereverberated output
// and the predicted late-reverberation tail is subtracted from the
// observation.
package wpe

import (
	"fmt"
	"math"

	"github.com/livekit/protocol/logger"

	"github.com/michael-kuhlmann/paderbox/pkg/linalg"
)

// Dereverberator removes the late reverberation tail from a single-channel
// STFT signal of shape (frames, bins).
type Dereverberator struct {
	cfg Config
	log logger.Logger
}

// NewDereverberator validates the configuration and creates a
// single-channel dereverberator.
func NewDereverberator(cfg Config, log logger.Logger) (*Dereverberator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dereverberator{
		cfg: cfg,
		log: log.WithValues("component", "wpe"),
	}, nil
}

// Dereverberate runs single-channel dereverberation with the given
// configuration and the default logger.
func Dereverberate(signal [][]complex128, cfg Config) ([][]complex128, error) {
	d, err := NewDereverberator(cfg, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	return d.Process(signal)
}

// Process dereverberates a (frames, bins) STFT signal and returns a tensor
// of the same shape. Frames earlier than order+delay carry insufficient
// prediction context and are returned unmodified. With Iterations == 0 the
// output is a copy of the input.
func (d *Dereverberator) Process(signal [][]complex128) ([][]complex128, error) {
	frames, bins, err := checkRectangular(signal)
	if err != nil {
		return nil, err
	}
	if windowCount(frames, d.cfg.Order, d.cfg.Delay) < 1 {
		return nil, &ShapeError{
			Reason: "signal too short: no regression target after order plus delay frames",
		}
	}

	out := cloneMatrix(signal)
	if d.cfg.Iterations == 0 {
		return out, nil
	}

	d.log.Debugw("dereverberating",
		"frames", frames,
		"bins", bins,
		"order", d.cfg.Order,
		"delay", d.cfg.Delay,
		"iterations", d.cfg.Iterations)

	power := estimatePower(signal, d.cfg.Epsilon)
	rawWindows := windowFrames(signal, d.cfg.Order, d.cfg.Delay)

	for iter := 0; iter < d.cfg.Iterations; iter++ {
		norm := normalizeByPower(signal, power)
		normWindows := windowFrames(norm, d.cfg.Order, d.cfg.Delay)

		out = cloneMatrix(signal)
		err := forEachBin(bins, func(f int) error {
			return d.estimateBin(f, signal, norm, rawWindows, normWindows, out)
		})
		if err != nil {
			return nil, err
		}

		// Global barrier: the next round's power estimate needs the
		// complete dereverberated tensor.
		power = estimatePower(out, d.cfg.Epsilon)
		d.log.Debugw("iteration complete", "iteration", iter+1)
	}

	return out, nil
}

// estimateBin runs one refinement round for a single frequency bin: the
// coefficient solve followed by the prediction subtraction. Windows are
// indexed so that window j predicts the target at time j+order+delay.
func (d *Dereverberator) estimateBin(
	f int,
	signal, norm [][]complex128,
	rawWindows, normWindows [][][]complex128,
	out [][]complex128,
) error {
	coeffs, err := d.solveBin(f, norm, normWindows)
	if err != nil {
		return err
	}

	order := d.cfg.Order
	offset := order + d.cfg.Delay

	for j, window := range rawWindows {
		var prediction complex128
		for di := 0; di < order; di++ {
			c := coeffs[di]
			prediction += complex(real(c), -imag(c)) * window[di][f]
		}
		t := j + offset
		out[t][f] = signal[t][f] - prediction
	}
	return nil
}

// solveBin accumulates one bin's correlation matrix and cross-correlation
// vector from the power-normalized windows and solves for the regression
// coefficients.
func (d *Dereverberator) solveBin(
	f int,
	norm [][]complex128,
	normWindows [][][]complex128,
) ([]complex128, error) {
	order := d.cfg.Order
	offset := order + d.cfg.Delay

	correlation := make([]complex128, order*order)
	crossCorrelation := make([]complex128, order)
	for j, window := range normWindows {
		target := norm[j+offset][f]
		targetConj := complex(real(target), -imag(target))
		for di := 0; di < order; di++ {
			wd := window[di][f]
			for e := 0; e < order; e++ {
				we := window[e][f]
				correlation[di*order+e] += wd * complex(real(we), -imag(we))
			}
			crossCorrelation[di] += wd * targetConj
		}
	}

	coeffs, err := linalg.SolveHermitian(correlation, crossCorrelation, order)
	if err != nil {
		return nil, &SingularSystemError{Bin: f, Err: err}
	}
	return coeffs, nil
}

// checkRectangular verifies a (frames, bins) tensor is non-empty and
// rectangular, returning its dimensions.
func checkRectangular(signal [][]complex128) (frames, bins int, err error) {
	frames = len(signal)
	if frames == 0 {
		return 0, 0, &ShapeError{Reason: "signal has no frames"}
	}
	bins = len(signal[0])
	if bins == 0 {
		return 0, 0, &ShapeError{Reason: "signal has no frequency bins"}
	}
	for t, row := range signal {
		if len(row) != bins {
			return 0, 0, &ShapeError{
				Reason: fmt.Sprintf("signal is ragged: frame %d has %d bins, want %d", t, len(row), bins),
			}
		}
	}
	return frames, bins, nil
}

// normalizeByPower returns signal / sqrt(power) element-wise. The power
// estimate is floored, so the division is always defined.
func normalizeByPower(signal [][]complex128, power [][]float64) [][]complex128 {
	norm := make([][]complex128, len(signal))
	for t, row := range signal {
		n := make([]complex128, len(row))
		for f, v := range row {
			s := math.Sqrt(power[t][f])
			n[f] = complex(real(v)/s, imag(v)/s)
		}
		norm[t] = n
	}
	return norm
}

func cloneMatrix(signal [][]complex128) [][]complex128 {
	out := make([][]complex128, len(signal))
	for t, row := range signal {
		out[t] = append([]complex128(nil), row...)
	}
	return out
}
