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

// Package stft provides the short-time Fourier transform that produces the
// (frames, bins) complex tensors consumed by the dereverberation core, and
// the matching overlap-add synthesis.
package stft

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// DefaultFrameSize is the analysis window length in samples
	// (32 ms at 16 kHz).
	DefaultFrameSize = 512
	// DefaultHopSize is the shift between frames in samples.
	DefaultHopSize = 128
)

// STFT converts between time-domain samples and framed complex spectra.
type STFT struct {
	frameSize int
	hopSize   int
	window    []float64
}

// New creates a transform with a Hann analysis window.
func New(frameSize, hopSize int) (*STFT, error) {
	if frameSize < 2 || frameSize%2 != 0 {
		return nil, fmt.Errorf("stft: frame size %d must be even and >= 2", frameSize)
	}
	if hopSize < 1 || hopSize > frameSize {
		return nil, fmt.Errorf("stft: hop size %d must be in [1, %d]", hopSize, frameSize)
	}
	return &STFT{
		frameSize: frameSize,
		hopSize:   hopSize,
		window:    HannWindow(frameSize),
	}, nil
}

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// FrameSize returns the analysis window length in samples.
func (s *STFT) FrameSize() int { return s.frameSize }

// HopSize returns the shift between frames in samples.
func (s *STFT) HopSize() int { return s.hopSize }

// Bins returns the number of non-redundant frequency bins per frame.
func (s *STFT) Bins() int { return s.frameSize/2 + 1 }

// Frames returns how many full analysis frames fit into the given number of
// samples.
func (s *STFT) Frames(samples int) int {
	if samples < s.frameSize {
		return 0
	}
	return 1 + (samples-s.frameSize)/s.hopSize
}

// Analyze windows the samples and returns the positive-frequency half of
// each frame's spectrum as a (frames, bins) tensor. Trailing samples that do
// not fill a full frame are dropped.
func (s *STFT) Analyze(samples []float64) [][]complex128 {
	count := s.Frames(len(samples))
	if count == 0 {
		return nil
	}

	frames := make([][]complex128, count)
	buf := make([]complex128, s.frameSize)
	for i := 0; i < count; i++ {
		offset := i * s.hopSize
		for j := 0; j < s.frameSize; j++ {
			buf[j] = complex(samples[offset+j]*s.window[j], 0)
		}
		spectrum := fft.FFT(buf)
		frames[i] = append([]complex128(nil), spectrum[:s.Bins()]...)
	}
	return frames
}

// Synthesize reconstructs time-domain samples from a (frames, bins) tensor
// by conjugate-symmetric inverse FFT and windowed overlap-add. Every frame
// must hold exactly Bins() values. The output length is
// frameSize + (frames-1)*hopSize.
func (s *STFT) Synthesize(frames [][]complex128) ([]float64, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	for i, frame := range frames {
		if len(frame) != s.Bins() {
			return nil, fmt.Errorf("stft: frame %d has %d bins, want %d", i, len(frame), s.Bins())
		}
	}

	length := s.frameSize + (len(frames)-1)*s.hopSize
	out := make([]float64, length)
	norm := make([]float64, length)
	buf := make([]complex128, s.frameSize)

	for i, frame := range frames {
		for j := range buf {
			buf[j] = 0
		}
		copy(buf, frame)
		// Rebuild the redundant negative frequencies; the time signal is
		// real.
		for j := 1; j < s.Bins()-1; j++ {
			buf[s.frameSize-j] = cmplx.Conj(buf[j])
		}
		timeFrame := fft.IFFT(buf)

		offset := i * s.hopSize
		for j := 0; j < s.frameSize; j++ {
			out[offset+j] += real(timeFrame[j]) * s.window[j]
			norm[offset+j] += s.window[j] * s.window[j]
		}
	}

	for i := range out {
		if norm[i] > 1e-12 {
			out[i] /= norm[i]
		}
	}
	return out, nil
}
